package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// ActionError 副作用函数执行失败
// errors.Is(err, ErrWorkflowActionFailed) 为 true, errors.Cause 可以拿到原始错误
type ActionError struct {
	State  string
	Action string
	Err    error
}

func (e *ActionError) Error() string {
	return fmt.Sprintf("%s, state: %s, action: %s, err: %v", ErrWorkflowActionFailed.Error(), e.State, e.Action, e.Err)
}

func (e *ActionError) Unwrap() error { return e.Err }

func (e *ActionError) Cause() error { return e.Err }

func (e *ActionError) Is(target error) bool { return target == ErrWorkflowActionFailed }

// Controller 一个流程定义的执行器, 每次 CreateWorkflow 得到一个独立的实例
// 上下文和当前状态都属于这个实例, 只有 DialogHost 是共享的
type Controller struct {
	definition    *WorkflowDefinition
	host          DialogHost
	logger        *slog.Logger
	lock          WorkflowLock
	lockTimeout   time.Duration
	runRepo       WorkflowRunRepo
	lightboxDelay time.Duration
	tracer        trace.Tracer

	mu sync.Mutex
	// wctx 当前运行的上下文, 每次运行一个新的实例
	// 运行结束之后交给回调的实例不会再被修改
	wctx            *WorkflowContext
	runID           string
	status          RunStatus
	currentState    string // 为空表示没有当前状态
	currentDialogID string
	// generation 每次进入状态或结束流程都会递增
	// 按钮回调和灯箱定时器记住创建时的 generation, 不一致说明对话框已经过期
	generation    uint64
	lightboxTimer *time.Timer
}

var _ WorkflowController = (*Controller)(nil)

/*
*
  - @description: 创建流程控制器, 创建时校验流程定义, start 和 next 指向不存在的状态直接返回错误
  - @param definition *WorkflowDefinition
  - @param host DialogHost 对话框渲染层
  - @param opts ...Option
  - @return *Controller, error
    *
*/
func CreateWorkflow(definition *WorkflowDefinition, host DialogHost, opts ...Option) (*Controller, error) {
	if host == nil {
		return nil, errors.WithMessage(ErrWorkflowParamInvalid, "dialog host is nil")
	}
	if err := definition.Validate(); err != nil {
		return nil, errors.WithMessage(err, "CreateWorkflow failed")
	}
	c := &Controller{
		definition:  definition,
		host:        host,
		logger:      slog.Default(),
		lock:        NewLocalWorkflowLock(),
		lockTimeout: 10 * time.Minute,
		tracer:      defaultTracer(),
		wctx:        NewWorkflowContext(nil),
		status:      RunStatusInit,
	}
	for _, opt := range opts {
		opt(c)
	}
	if unreachable := unreachableStatesOf(definition); len(unreachable) > 0 {
		c.logger.Warn("[Workflow] states unreachable from start", "workflow", definition.Name, "states", unreachable)
	}
	return c, nil
}

// Start 使用新的空上下文, 进入 start 状态
// 上一次运行还没有结束时直接放弃, 不触发任何回调
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.status == RunStatusRunning {
		c.logger.WarnContext(ctx, "[Workflow] restart abandons the running run", "workflow", c.definition.Name, "run_id", c.runID)
	}
	c.beginRunLocked(NewWorkflowContext(nil))
	runID := c.runID
	c.mu.Unlock()

	c.recordRunStarted(ctx, runID)
	return c.executeState(ctx, c.definition.Start, 0)
}

// beginRunLocked 开始一次新的运行
// 旧运行的对话框、灯箱定时器、还在执行的副作用函数都按 generation 判定为过期
func (c *Controller) beginRunLocked(wctx *WorkflowContext) {
	c.stopLightboxTimerLocked()
	c.generation++
	c.wctx = wctx
	c.runID = uuid.NewString()
	c.status = RunStatusRunning
}

// GoTo 强制跳转到指定状态, 不经过按钮的转换规则
// 状态不存在时记录日志并返回 ErrWorkflowStateNotFound, 当前状态不变
func (c *Controller) GoTo(ctx context.Context, stateName string) error {
	if _, ok := c.definition.States[stateName]; !ok {
		err := errors.WithMessagef(ErrWorkflowStateNotFound, "GoTo failed, workflow: %s, state: %s", c.definition.Name, stateName)
		c.logError(ctx, err)
		return err
	}
	c.mu.Lock()
	isNewRun := c.status != RunStatusRunning
	if isNewRun {
		// 没有启动或者已经结束, 跳转会开始一次新的运行, 新的上下文复制现有的数据
		c.beginRunLocked(NewWorkflowContext(c.wctx.Snapshot()))
	}
	runID := c.runID
	c.mu.Unlock()
	if isNewRun {
		c.recordRunStarted(ctx, runID)
	}
	return c.executeState(ctx, stateName, 0)
}

// UpdateContext 浅合并到上下文, 不触发状态转换
func (c *Controller) UpdateContext(partial map[string]any) {
	c.runContext().Merge(partial)
}

// GetContext 上下文快照, 之后的修改不会反映到返回值上
func (c *Controller) GetContext() map[string]any {
	return c.runContext().Snapshot()
}

func (c *Controller) runContext() *WorkflowContext {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.wctx
}

// Exit 关闭当前对话框, 调用 OnComplete, 流程结束
func (c *Controller) Exit(ctx context.Context) error {
	if !c.finish(ctx, 0, RunStatusExited, "") {
		return errors.WithMessagef(ErrWorkflowNotRunning, "Exit failed, workflow: %s", c.definition.Name)
	}
	return nil
}

// CurrentState 当前状态名称, 没有启动或者已经结束时返回 false
func (c *Controller) CurrentState() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.currentState, c.currentState != ""
}

func (c *Controller) RunID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.runID
}

func (c *Controller) Status() RunStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// CurrentDialogID 当前打开的对话框id, 没有时返回空字符串
func (c *Controller) CurrentDialogID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.currentDialogID
}

// executeState 进入指定状态
// 1. 状态不存在: 记录日志直接返回, 不改变任何状态
// 2. 关闭上一个对话框, 同一个流程同时最多只有一个对话框
// 3. 用当前上下文解析标题、描述、字段、图片
// 4. 构建按钮并通过 DialogHost 打开对话框
// expectGen 不为0时, 只有 generation 仍然等于 expectGen 才会进入, 否则返回 ErrWorkflowNotRunning
func (c *Controller) executeState(ctx context.Context, stateName string, expectGen uint64) (err error) {
	state, ok := c.definition.States[stateName]
	if !ok {
		err = errors.WithMessagef(ErrWorkflowStateNotFound, "executeState failed, workflow: %s, state: %s", c.definition.Name, stateName)
		c.logError(ctx, err)
		return err
	}
	ctx, span := c.startSpan(ctx, "workflow.state",
		attribute.String("workflow.state", stateName),
		attribute.String("workflow.state_kind", state.Kind()),
	)
	defer func() { endSpan(span, err) }()

	c.mu.Lock()
	if c.status != RunStatusRunning {
		c.mu.Unlock()
		return errors.WithMessagef(ErrWorkflowNotRunning, "executeState failed, workflow: %s, state: %s", c.definition.Name, stateName)
	}
	if expectGen != 0 && expectGen != c.generation {
		c.mu.Unlock()
		return errors.WithMessagef(ErrWorkflowNotRunning, "stale transition, workflow: %s, state: %s", c.definition.Name, stateName)
	}
	prevDialogID := c.currentDialogID
	c.stopLightboxTimerLocked()
	c.generation++
	gen := c.generation
	c.currentState = stateName
	c.currentDialogID = ""
	runID := c.runID
	wctx := c.wctx
	c.mu.Unlock()

	if prevDialogID != "" {
		c.host.Close(prevDialogID)
	}

	var dialogID string
	switch s := state.(type) {
	case *FormState:
		dialogID = c.host.Form(c.buildFormDialog(stateName, gen, wctx, s))
	case *ConfirmState:
		dialogID = c.host.Confirm(c.buildConfirmDialog(stateName, gen, wctx, s))
	case *LightboxState:
		dialogID = c.host.Lightbox(&LightboxDialog{
			Images:       s.Images.Resolve(wctx),
			CurrentIndex: s.CurrentIndex,
			OnDismiss:    c.dismissHandler(gen),
		})
	default:
		// Validate 已经拦截, 新增状态类型时需要补上分支
		err = errors.WithMessagef(ErrWorkflowDefinitionInvalid, "unsupported state type %T, state: %s", state, stateName)
		c.logError(ctx, err)
		return err
	}

	c.mu.Lock()
	if c.generation != gen {
		// 打开对话框的过程中流程已经跳走或者结束
		c.mu.Unlock()
		c.host.Close(dialogID)
		return nil
	}
	c.currentDialogID = dialogID
	if s, ok := state.(*LightboxState); ok && s.Next != "" {
		c.scheduleLightboxAdvanceLocked(ctx, gen, s.Next)
	}
	c.mu.Unlock()

	c.logger.DebugContext(ctx, "[Workflow] state entered", "workflow", c.definition.Name, "run_id", runID, "state", stateName, "dialog_id", dialogID)
	c.recordEvent(ctx, runID, RunEventStateEntered, stateName, "", "")
	c.updateRun(ctx, runID, &UpdateWorkflowRunField{CurrentState: &stateName})
	return nil
}

// scheduleLightboxAdvanceLocked 灯箱不是交互节点, 渲染之后异步跳转到 next
func (c *Controller) scheduleLightboxAdvanceLocked(ctx context.Context, gen uint64, next string) {
	advanceCtx := context.WithoutCancel(ctx)
	c.lightboxTimer = time.AfterFunc(c.lightboxDelay, func() {
		if !c.isActive(gen) {
			return
		}
		// isActive 之后流程仍然可能被 GoTo/Start/Exit, executeState 会在锁内再比较一次 generation
		err := c.executeState(advanceCtx, next, gen)
		if errors.Is(err, ErrWorkflowNotRunning) {
			return
		}
		if err != nil {
			c.logError(advanceCtx, errors.WithMessagef(err, "lightbox advance failed, next: %s", next))
		}
	})
}

func (c *Controller) stopLightboxTimerLocked() {
	if c.lightboxTimer != nil {
		c.lightboxTimer.Stop()
		c.lightboxTimer = nil
	}
}

func (c *Controller) buildFormDialog(stateName string, gen uint64, wctx *WorkflowContext, s *FormState) *FormDialog {
	fields := s.Fields.Resolve(wctx)
	dialog := &FormDialog{
		Title:       s.Title.Resolve(wctx),
		Description: s.Description.Resolve(wctx),
		Size:        s.Size,
		Fields:      fields,
		Actions:     make([]*DialogAction, 0, len(s.Actions)),
		OnDismiss:   c.dismissHandler(gen),
	}
	for i, t := range s.Actions {
		transition := t
		dialog.Actions = append(dialog.Actions, &DialogAction{
			ID:             actionID(stateName, i),
			Label:          transition.Label,
			Variant:        defaultVariant(transition.Variant),
			SkipValidation: transition.SkipValidation,
			OnClick: func(ctx context.Context, data map[string]any) error {
				if !transition.SkipValidation {
					if fieldErrs := ValidateFields(fields, data); fieldErrs != nil {
						return fieldErrs
					}
				}
				var effect func(ctx context.Context) error
				if transition.Action != nil {
					effect = func(ctx context.Context) error {
						return transition.Action(ctx, data, wctx)
					}
				}
				return c.handleAction(ctx, gen, wctx, stateName, transition.Label, data, effect, transition.Exit, transition.Next)
			},
		})
	}
	return dialog
}

func (c *Controller) buildConfirmDialog(stateName string, gen uint64, wctx *WorkflowContext, s *ConfirmState) *ConfirmDialog {
	dialog := &ConfirmDialog{
		Title:       s.Title.Resolve(wctx),
		Description: s.Description.Resolve(wctx),
		Size:        s.Size,
		Actions:     make([]*DialogAction, 0, len(s.Actions)),
		OnDismiss:   c.dismissHandler(gen),
	}
	for i, t := range s.Actions {
		transition := t
		dialog.Actions = append(dialog.Actions, &DialogAction{
			ID:      actionID(stateName, i),
			Label:   transition.Label,
			Variant: defaultVariant(transition.Variant),
			OnClick: func(ctx context.Context, _ map[string]any) error {
				var effect func(ctx context.Context) error
				if transition.Action != nil {
					effect = func(ctx context.Context) error {
						return transition.Action(ctx, wctx)
					}
				}
				return c.handleAction(ctx, gen, wctx, stateName, transition.Label, nil, effect, transition.Exit, transition.Next)
			},
		})
	}
	return dialog
}

func defaultVariant(v Variant) Variant {
	if v == "" {
		return VariantDefault
	}
	return v
}

// handleAction 按钮点击之后的处理, 整个过程持有运行锁, 同一个运行同时只有一个按钮在执行
// 1. 合并表单数据到上下文
// 2. 执行副作用函数, 失败时不转换状态, 对话框保持打开, 已经写入的上下文不回滚
// 3. exit: 有副作用函数是正常完成(OnComplete), 没有是取消(OnCancel)
// 4. next: 进入下一个状态
// 5. 都没有: 静默关闭, 不调用任何回调
// wctx 是对话框所属运行的上下文, 运行被放弃之后副作用函数的写入不会进入新的运行
func (c *Controller) handleAction(ctx context.Context, gen uint64, wctx *WorkflowContext, stateName, label string, data map[string]any,
	effect func(ctx context.Context) error, exit bool, next string) error {
	runID := c.RunID()
	err := c.lock.NonBlockingSynchronized(ctx, runLockKey(runID), c.lockTimeout, func(ctx context.Context) error {
		if !c.isActive(gen) {
			return errors.WithMessagef(ErrWorkflowNotRunning, "stale dialog, workflow: %s, state: %s, action: %s", c.definition.Name, stateName, label)
		}
		wctx.Merge(data)

		if effect != nil {
			if err := c.runEffect(ctx, stateName, label, effect); err != nil {
				c.logError(ctx, err)
				c.recordEvent(ctx, runID, RunEventActionFailed, stateName, label, errors.Cause(err).Error())
				return err
			}
			if !c.isActive(gen) {
				// 副作用执行期间流程被 Exit/GoTo 了, 以后来的操作为准
				c.logger.WarnContext(ctx, "[Workflow] run moved on while action was running", "workflow", c.definition.Name, "state", stateName, "action", label)
				return nil
			}
		}

		switch {
		case exit && effect != nil:
			c.finish(ctx, gen, RunStatusCompleted, label)
		case exit:
			c.finish(ctx, gen, RunStatusCancelled, label)
		case next != "":
			if err := c.executeState(ctx, next, gen); err != nil {
				// next 不存在: 流程卡在当前状态, 只记录日志
				c.logError(ctx, errors.WithMessagef(err, "transition failed, state: %s, action: %s", stateName, label))
			}
		default:
			c.finish(ctx, gen, RunStatusDismissed, label)
		}
		return nil
	})
	if errors.Is(err, LockFailedError) {
		return errors.WithMessagef(ErrWorkflowActionBusy, "workflow: %s, state: %s, action: %s", c.definition.Name, stateName, label)
	}
	return err
}

// runEffect 执行副作用函数, panic 也当作失败处理
func (c *Controller) runEffect(ctx context.Context, stateName, label string, effect func(ctx context.Context) error) (err error) {
	ctx, span := c.startSpan(ctx, "workflow.action",
		attribute.String("workflow.state", stateName),
		attribute.String("workflow.action", label),
	)
	defer func() {
		if r := recover(); r != nil {
			c.logger.ErrorContext(ctx, "[Workflow] action panic", "workflow", c.definition.Name, "state", stateName, "action", label, "panic", r, "stack", string(debug.Stack()))
			err = &ActionError{State: stateName, Action: label, Err: errors.Errorf("panic: %v", r)}
		}
		endSpan(span, err)
	}()
	if effectErr := effect(ctx); effectErr != nil {
		return &ActionError{State: stateName, Action: label, Err: effectErr}
	}
	return nil
}

// dismissHandler 对话框通过通用关闭入口关闭, 等同于取消流程
func (c *Controller) dismissHandler(gen uint64) func() {
	return func() {
		ctx := context.Background()
		if c.finish(ctx, gen, RunStatusCancelled, "") {
			c.logger.InfoContext(ctx, "[Workflow] active dialog dismissed, run canceled", "workflow", c.definition.Name)
		}
	}
}

func (c *Controller) isActive(gen uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status == RunStatusRunning && c.generation == gen
}

// finish 结束流程, gen 为0时不校验对话框是否过期
// 返回 false 表示流程已经结束或者对话框已经过期, 不会重复触发回调
func (c *Controller) finish(ctx context.Context, gen uint64, status RunStatus, label string) bool {
	c.mu.Lock()
	if c.status != RunStatusRunning || (gen != 0 && gen != c.generation) {
		c.mu.Unlock()
		return false
	}
	dialogID := c.currentDialogID
	stateName := c.currentState
	runID := c.runID
	wctx := c.wctx
	c.stopLightboxTimerLocked()
	c.generation++
	c.status = status
	c.currentState = ""
	c.currentDialogID = ""
	c.mu.Unlock()

	if dialogID != "" {
		c.host.Close(dialogID)
	}

	c.recordEvent(ctx, runID, runEventOfStatus(status), stateName, label, "")
	empty := ""
	c.updateRun(ctx, runID, &UpdateWorkflowRunField{Status: &status, CurrentState: &empty, RunContext: wctx})

	switch status {
	case RunStatusCompleted, RunStatusExited:
		if c.definition.OnComplete != nil {
			c.definition.OnComplete(wctx)
		}
	case RunStatusCancelled:
		if c.definition.OnCancel != nil {
			c.definition.OnCancel(wctx)
		}
	}
	return true
}

func runEventOfStatus(status RunStatus) RunEventType {
	switch status {
	case RunStatusCompleted:
		return RunEventCompleted
	case RunStatusCancelled:
		return RunEventCancelled
	case RunStatusDismissed:
		return RunEventDismissed
	default:
		return RunEventExited
	}
}

func (c *Controller) logError(ctx context.Context, err error) {
	if IsSeriousError(err) {
		c.logger.ErrorContext(ctx, fmt.Sprintf("[Workflow][error] %v", err), "workflow", c.definition.Name)
	} else {
		c.logger.WarnContext(ctx, fmt.Sprintf("[Workflow][warn] %v", err), "workflow", c.definition.Name)
	}
}

// 运行记录失败只记录日志, 不影响界面流程
func (c *Controller) recordRunStarted(ctx context.Context, runID string) {
	if c.runRepo == nil {
		return
	}
	_, err := c.runRepo.CreateWorkflowRun(ctx, &WorkflowRunPo{
		RunID:        runID,
		WorkflowName: c.definition.Name,
		Status:       RunStatusRunning,
	})
	if err != nil {
		c.logger.WarnContext(ctx, "[Workflow] record run failed", "run_id", runID, "err", err)
		return
	}
	c.recordEvent(ctx, runID, RunEventStarted, "", "", "")
}

func (c *Controller) recordEvent(ctx context.Context, runID string, eventType RunEventType, stateName, label, reason string) {
	if c.runRepo == nil {
		return
	}
	_, err := c.runRepo.CreateWorkflowRunEvent(ctx, &WorkflowRunEventPo{
		RunID:       runID,
		EventType:   eventType,
		State:       stateName,
		ActionLabel: label,
		Reason:      reason,
	})
	if err != nil {
		c.logger.WarnContext(ctx, "[Workflow] record run event failed", "run_id", runID, "event", eventType, "err", err)
	}
}

func (c *Controller) updateRun(ctx context.Context, runID string, fields *UpdateWorkflowRunField) {
	if c.runRepo == nil {
		return
	}
	err := c.runRepo.UpdateWorkflowRun(ctx, &UpdateWorkflowRunParams{RunID: runID, Fields: fields})
	if err != nil {
		c.logger.WarnContext(ctx, "[Workflow] update run failed", "run_id", runID, "err", err)
	}
}
