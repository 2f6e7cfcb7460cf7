package workflow

import (
	"fmt"

	"github.com/pkg/errors"
)

// WorkflowState 状态定义, 只有 FormState / ConfirmState / LightboxState 三种
// isWorkflowState 不导出, 包外无法新增状态类型, 新增类型时 switch 需要同步修改
type WorkflowState interface {
	Kind() DialogKind
	isWorkflowState()
}

// Transition Confirm 按钮的状态转换规则
type Transition struct {
	Label   string     `json:"label" validate:"required"` // 按钮文字, 允许重复, 按钮身份由位置决定
	Next    string     `json:"next"`                      // 下一个状态名称
	Exit    bool       `json:"exit"`                      // 是否结束流程
	Action  ActionFunc `json:"-"`                         // 副作用函数, 可以为空
	Variant Variant    `json:"variant"`                   // 按钮样式
}

// FormTransition Form 按钮的状态转换规则
type FormTransition struct {
	Label          string         `json:"label" validate:"required"`
	Next           string         `json:"next"`
	Exit           bool           `json:"exit"`
	Action         FormActionFunc `json:"-"`
	Variant        Variant        `json:"variant"`
	SkipValidation bool           `json:"skip_validation"` // 是否跳过表单校验, 取消/草稿按钮通常为true
}

// FormState 表单状态
type FormState struct {
	Title       Value[string]
	Description Value[string]
	Fields      Value[[]*FormField]
	Size        ModalSize
	Actions     []*FormTransition // 按声明顺序渲染按钮
}

// ConfirmState 确认状态, 支持多按钮
type ConfirmState struct {
	Title       Value[string]
	Description Value[string]
	Size        ModalSize
	Actions     []*Transition
}

// LightboxState 图片灯箱状态, 不是交互节点, 渲染后如果有Next会自动跳转
type LightboxState struct {
	Images       Value[[]string]
	CurrentIndex int
	Next         string
}

func (*FormState) Kind() DialogKind     { return DialogKindForm }
func (*ConfirmState) Kind() DialogKind  { return DialogKindConfirm }
func (*LightboxState) Kind() DialogKind { return DialogKindLightbox }

func (*FormState) isWorkflowState()     {}
func (*ConfirmState) isWorkflowState()  {}
func (*LightboxState) isWorkflowState() {}

// WorkflowDefinition 完整的流程定义
type WorkflowDefinition struct {
	Name       string                   `validate:"omitempty,max=128"`
	States     map[string]WorkflowState `validate:"required,min=1"`
	Start      string                   `validate:"required"`
	OnComplete func(wctx *WorkflowContext) // 流程正常结束的回调, 可以为空
	OnCancel   func(wctx *WorkflowContext) // 流程取消的回调, 可以为空
}

// Validate 校验流程定义
// start 和所有的 next 都必须指向存在的状态, 在创建时就报错, 不留到运行时卡住界面
func (d *WorkflowDefinition) Validate() error {
	if d == nil {
		return errors.WithMessage(ErrWorkflowDefinitionInvalid, "definition is nil")
	}
	if err := validatorUtil.Struct(d); err != nil {
		return errors.WithMessagef(ErrWorkflowDefinitionInvalid, "definition: %s, err: %v", d.Name, err)
	}
	if _, ok := d.States[d.Start]; !ok {
		return errors.WithMessagef(ErrWorkflowStateNotFound, "start state %q not found, definition: %s", d.Start, d.Name)
	}
	for name, state := range d.States {
		if err := d.validateState(name, state); err != nil {
			return errors.WithMessagef(err, "definition: %s", d.Name)
		}
	}
	return nil
}

func (d *WorkflowDefinition) validateState(name string, state WorkflowState) error {
	switch s := state.(type) {
	case *FormState:
		if s == nil {
			return errors.WithMessagef(ErrWorkflowDefinitionInvalid, "state %q is nil", name)
		}
		if len(s.Actions) == 0 {
			return errors.WithMessagef(ErrWorkflowDefinitionInvalid, "form state %q must have at least one action", name)
		}
		for i, action := range s.Actions {
			if action == nil {
				return errors.WithMessagef(ErrWorkflowDefinitionInvalid, "form state %q action #%d is nil", name, i)
			}
			if err := d.validateTransition(name, action.Label, action.Next, action.Exit); err != nil {
				return err
			}
		}
	case *ConfirmState:
		if s == nil {
			return errors.WithMessagef(ErrWorkflowDefinitionInvalid, "state %q is nil", name)
		}
		if len(s.Actions) == 0 {
			return errors.WithMessagef(ErrWorkflowDefinitionInvalid, "confirm state %q must have at least one action", name)
		}
		for i, action := range s.Actions {
			if action == nil {
				return errors.WithMessagef(ErrWorkflowDefinitionInvalid, "confirm state %q action #%d is nil", name, i)
			}
			if err := d.validateTransition(name, action.Label, action.Next, action.Exit); err != nil {
				return err
			}
		}
	case *LightboxState:
		if s == nil {
			return errors.WithMessagef(ErrWorkflowDefinitionInvalid, "state %q is nil", name)
		}
		if s.Next != "" {
			if _, ok := d.States[s.Next]; !ok {
				return errors.WithMessagef(ErrWorkflowStateNotFound, "lightbox state %q next %q not found", name, s.Next)
			}
		}
	default:
		return errors.WithMessagef(ErrWorkflowDefinitionInvalid, "state %q has unsupported type %T", name, state)
	}
	return nil
}

func (d *WorkflowDefinition) validateTransition(stateName, label, next string, exit bool) error {
	if label == "" {
		return errors.WithMessagef(ErrWorkflowDefinitionInvalid, "state %q has an action without label", stateName)
	}
	if exit && next != "" {
		return errors.WithMessagef(ErrWorkflowDefinitionInvalid, "state %q action %q sets both exit and next", stateName, label)
	}
	if next != "" {
		if _, ok := d.States[next]; !ok {
			return errors.WithMessagef(ErrWorkflowStateNotFound, "state %q action %q next %q not found", stateName, label, next)
		}
	}
	return nil
}

// ReachableStates 从 start 出发可以到达的所有状态
func (d *WorkflowDefinition) ReachableStates() map[string]bool {
	visitMap := make(map[string]bool)
	d.visitState(d.Start, visitMap)
	return visitMap
}

// visitState 和节点图的遍历不同, 对话框流程允许回环(编辑->确认->编辑), 访问过的直接跳过
func (d *WorkflowDefinition) visitState(name string, visitMap map[string]bool) {
	if name == "" || visitMap[name] {
		return
	}
	state, ok := d.States[name]
	if !ok {
		return
	}
	visitMap[name] = true
	for _, next := range nextStates(state) {
		d.visitState(next, visitMap)
	}
}

func nextStates(state WorkflowState) []string {
	ret := make([]string, 0)
	switch s := state.(type) {
	case *FormState:
		for _, action := range s.Actions {
			if action != nil && action.Next != "" {
				ret = append(ret, action.Next)
			}
		}
	case *ConfirmState:
		for _, action := range s.Actions {
			if action != nil && action.Next != "" {
				ret = append(ret, action.Next)
			}
		}
	case *LightboxState:
		if s.Next != "" {
			ret = append(ret, s.Next)
		}
	}
	return ret
}

// actionID 按钮的稳定身份, 状态名+按钮下标, 按钮文字重复也不会混淆
func actionID(stateName string, index int) string {
	return fmt.Sprintf("%s#%d", stateName, index)
}
