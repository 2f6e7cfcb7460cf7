package workflow

import "github.com/pkg/errors"

var (
	ErrWorkflowParamInvalid      = errors.New("workflow param invalid")
	ErrWorkflowDefinitionInvalid = errors.New("workflow definition invalid")
	ErrWorkflowStateNotFound     = errors.New("workflow state not found")
	ErrWorkflowActionNotFound    = errors.New("workflow action not found")
	ErrActionAlreadyRegistered   = errors.New("workflow action already registered")
	ErrWorkflowNotRunning        = errors.New("workflow not running")
	ErrDialogNotFound            = errors.New("dialog not found")
	// 特殊的error 用户层面的error，不会影响流程
	// ErrWorkflowFormInvalid: 表单校验失败，对话框保持打开，错误信息逐字段展示给用户
	ErrWorkflowFormInvalid = errors.New("workflow form invalid")
	// ErrWorkflowActionBusy: 当前对话框有按钮正在执行，按钮组处于禁用状态
	ErrWorkflowActionBusy = errors.New("workflow action busy")
	// ErrWorkflowActionFailed: 按钮的副作用函数失败，不转换状态，用户可以重试或者选择其他按钮
	ErrWorkflowActionFailed = errors.New("workflow action failed")
)

type DialogKind = string

const (
	DialogKindConfirm  DialogKind = "confirm"
	DialogKindForm     DialogKind = "form"
	DialogKindLightbox DialogKind = "lightbox"
)

// Variant 按钮样式
type Variant = string

const (
	VariantDefault Variant = "default"
	VariantDanger  Variant = "danger"
	VariantSuccess Variant = "success"
	VariantWarning Variant = "warning"
)

type ModalSize = string

const (
	ModalSizeSm   ModalSize = "sm"
	ModalSizeMd   ModalSize = "md"
	ModalSizeLg   ModalSize = "lg"
	ModalSizeXl   ModalSize = "xl"
	ModalSizeFull ModalSize = "full"
)

type FieldType = string

const (
	FieldTypeText     FieldType = "text"
	FieldTypeEmail    FieldType = "email"
	FieldTypePassword FieldType = "password"
	FieldTypeTextarea FieldType = "textarea"
	FieldTypeSelect   FieldType = "select"
	FieldTypeNumber   FieldType = "number"
)

type RunStatus = string

const (
	RunStatusInit    RunStatus = "init"
	RunStatusRunning RunStatus = "running"
	// 完成, 终止状态 普遍含义: exit按钮带有副作用函数，流程正常完成，触发onComplete
	RunStatusCompleted RunStatus = "completed"
	// 取消, 终止状态 普遍含义: exit按钮没有副作用函数，或者用户直接关闭了对话框，触发onCancel
	RunStatusCancelled RunStatus = "canceled"
	// 静默关闭, 终止状态 普遍含义: 按钮既没有next也没有exit，不触发任何回调
	RunStatusDismissed RunStatus = "dismissed"
	// 主动结束, 终止状态 普遍含义: 调用方调用Exit，触发onComplete
	RunStatusExited RunStatus = "exited"
)

func IsOverRunStatus(status RunStatus) bool {
	return status == RunStatusCompleted || status == RunStatusCancelled ||
		status == RunStatusDismissed || status == RunStatusExited
}

func GetRunStatusText(status RunStatus) string {
	switch status {
	case RunStatusInit:
		return "初始化"
	case RunStatusRunning:
		return "运行中"
	case RunStatusCompleted:
		return "完成"
	case RunStatusCancelled:
		return "取消"
	case RunStatusDismissed:
		return "关闭"
	case RunStatusExited:
		return "结束"
	}
	return "未知"
}

// IsSeriousError 用于判断是否是严重错误，如果是严重错误，则打error级别日志，
// 否则打warn级别日志
// 严重错误定义：调用方的配置错误，需要开发人员处理，如状态不存在、处理器未注册
// 表单校验失败、按钮忙、副作用失败属于用户层面的错误，用户可以自行重试
func IsSeriousError(err error) bool {
	if err == nil {
		return false
	}
	causeErr := errors.Cause(err)
	if errors.Is(causeErr, ErrWorkflowDefinitionInvalid) ||
		errors.Is(causeErr, ErrWorkflowStateNotFound) ||
		errors.Is(causeErr, ErrWorkflowActionNotFound) ||
		errors.Is(causeErr, ErrActionAlreadyRegistered) ||
		errors.Is(causeErr, ErrWorkflowParamInvalid) {
		return true
	}
	return false
}
