package workflow

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// Dialog 对话框实例, Kind 决定 Confirm/Form/Lightbox 哪一个有值
type Dialog struct {
	ID       string
	Kind     DialogKind
	Confirm  *ConfirmDialog
	Form     *FormDialog
	Lightbox *LightboxDialog
	// Busy 有按钮正在执行, 整个按钮组禁用
	Busy bool
	// LoadingAction 正在执行的按钮ID, 只有这个按钮显示加载中
	LoadingAction string
	// FieldErrors 最近一次表单校验的错误, 展示在字段下面
	FieldErrors FieldErrors
	OpenedAt    time.Time
}

// Actions 对话框上的按钮, 灯箱没有按钮
func (d *Dialog) Actions() []*DialogAction {
	switch d.Kind {
	case DialogKindConfirm:
		return d.Confirm.Actions
	case DialogKindForm:
		return d.Form.Actions
	}
	return nil
}

func (d *Dialog) onDismiss() func() {
	switch d.Kind {
	case DialogKindConfirm:
		return d.Confirm.OnDismiss
	case DialogKindForm:
		return d.Form.OnDismiss
	case DialogKindLightbox:
		return d.Lightbox.OnDismiss
	}
	return nil
}

// DialogStore 内存中的对话框列表, 实现 DialogHost
// 显式创建后注入给使用方, 多个流程和临时对话框共享同一个有序列表, 按打开顺序叠放
type DialogStore struct {
	mu      sync.Mutex
	dialogs []*Dialog
	logger  *slog.Logger
}

func NewDialogStore(logger *slog.Logger) *DialogStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &DialogStore{
		dialogs: make([]*Dialog, 0),
		logger:  logger,
	}
}

var _ DialogHost = (*DialogStore)(nil)

func generateDialogID() string {
	return "dialog-" + uuid.NewString()
}

func (s *DialogStore) open(d *Dialog) string {
	d.ID = generateDialogID()
	d.OpenedAt = time.Now()
	s.mu.Lock()
	s.dialogs = append(s.dialogs, d)
	s.mu.Unlock()
	return d.ID
}

func (s *DialogStore) Confirm(dialog *ConfirmDialog) string {
	return s.open(&Dialog{Kind: DialogKindConfirm, Confirm: dialog})
}

func (s *DialogStore) Form(dialog *FormDialog) string {
	return s.open(&Dialog{Kind: DialogKindForm, Form: dialog})
}

func (s *DialogStore) Lightbox(dialog *LightboxDialog) string {
	return s.open(&Dialog{Kind: DialogKindLightbox, Lightbox: dialog})
}

// Close 关闭指定对话框, 不存在时忽略
func (s *DialogStore) Close(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removeLocked(id)
}

// CloseAll 关闭所有对话框, 不触发 OnDismiss
func (s *DialogStore) CloseAll() {
	s.mu.Lock()
	s.dialogs = make([]*Dialog, 0)
	s.mu.Unlock()
}

// Dismiss 通用关闭入口(点遮罩/ESC), 会通知打开这个对话框的流程
func (s *DialogStore) Dismiss(id string) error {
	s.mu.Lock()
	d := s.removeLocked(id)
	s.mu.Unlock()
	if d == nil {
		return errors.WithMessagef(ErrDialogNotFound, "Dismiss failed, id: %s", id)
	}
	if onDismiss := d.onDismiss(); onDismiss != nil {
		onDismiss()
	}
	return nil
}

func (s *DialogStore) removeLocked(id string) *Dialog {
	for i, d := range s.dialogs {
		if d.ID == id {
			s.dialogs = append(s.dialogs[:i], s.dialogs[i+1:]...)
			return d
		}
	}
	return nil
}

func (s *DialogStore) findLocked(id string) *Dialog {
	for _, d := range s.dialogs {
		if d.ID == id {
			return d
		}
	}
	return nil
}

// List 按打开顺序返回对话框快照
func (s *DialogStore) List() []Dialog {
	s.mu.Lock()
	defer s.mu.Unlock()
	ret := make([]Dialog, 0, len(s.dialogs))
	for _, d := range s.dialogs {
		ret = append(ret, *d)
	}
	return ret
}

func (s *DialogStore) Get(id string) (Dialog, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d := s.findLocked(id)
	if d == nil {
		return Dialog{}, false
	}
	return *d, true
}

func (s *DialogStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.dialogs)
}

// ActionByLabel 按文字查找按钮ID, 文字重复时返回第一个
func (s *DialogStore) ActionByLabel(dialogID, label string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d := s.findLocked(dialogID)
	if d == nil {
		return "", false
	}
	for _, action := range d.Actions() {
		if action.Label == label {
			return action.ID, true
		}
	}
	return "", false
}

/*
*
  - @description: 点击按钮
    1. 对话框忙时直接返回 ErrWorkflowActionBusy, 按钮组是禁用状态
    2. 标记忙, 只有被点击的按钮显示加载中(按ID跟踪)
    3. 执行按钮回调, 表单对话框的数据是默认值叠加 data
    4. 成功: 对话框还在时关闭; 失败: 记录日志, 对话框保持打开, 按钮重新可用
  - @param ctx context.Context
  - @param dialogID string
  - @param actionID string
  - @param data map[string]any 表单数据, Confirm 对话框忽略
  - @return error
    *
*/
func (s *DialogStore) Click(ctx context.Context, dialogID, actionID string, data map[string]any) error {
	s.mu.Lock()
	d := s.findLocked(dialogID)
	if d == nil {
		s.mu.Unlock()
		return errors.WithMessagef(ErrDialogNotFound, "Click failed, dialog: %s", dialogID)
	}
	if d.Busy {
		loading := d.LoadingAction
		s.mu.Unlock()
		return errors.WithMessagef(ErrWorkflowActionBusy, "dialog: %s, loading action: %s", dialogID, loading)
	}
	var action *DialogAction
	for _, a := range d.Actions() {
		if a.ID == actionID {
			action = a
			break
		}
	}
	if action == nil || action.OnClick == nil {
		s.mu.Unlock()
		return errors.WithMessagef(ErrWorkflowActionNotFound, "dialog: %s, action: %s", dialogID, actionID)
	}
	var submitted map[string]any
	if d.Kind == DialogKindForm {
		submitted = DefaultFormData(d.Form.Fields)
		for k, v := range data {
			submitted[k] = v
		}
	}
	d.Busy = true
	d.LoadingAction = actionID
	s.mu.Unlock()

	// 回调里会关闭/打开对话框, 不能持有锁
	err := action.OnClick(ctx, submitted)

	s.mu.Lock()
	defer s.mu.Unlock()
	d.Busy = false
	d.LoadingAction = ""
	if err != nil {
		var fieldErrs FieldErrors
		if errors.As(err, &fieldErrs) {
			d.FieldErrors = fieldErrs
		} else {
			s.logger.WarnContext(ctx, "[DialogStore] action failed", "dialog", dialogID, "action", action.Label, "err", err)
		}
		return err
	}
	d.FieldErrors = nil
	s.removeLocked(dialogID)
	return nil
}

// CreateWorkflow 创建使用这个对话框列表的流程
func (s *DialogStore) CreateWorkflow(definition *WorkflowDefinition, opts ...Option) (*Controller, error) {
	return CreateWorkflow(definition, s, opts...)
}
