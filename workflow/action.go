package workflow

import (
	"context"
	"sync"

	"github.com/pkg/errors"
)

// ActionFunc Confirm 按钮的副作用函数
// 返回error表示执行失败, 引擎不会转换状态, 对话框保持打开, 用户可以重试
// 可以直接写入 wctx, 失败之前写入的数据不会回滚
type ActionFunc func(ctx context.Context, wctx *WorkflowContext) error

// FormActionFunc Form 按钮的副作用函数, 永远会收到表单数据和上下文
// 调用时 data 已经合并到 wctx 中
type FormActionFunc func(ctx context.Context, data map[string]any, wctx *WorkflowContext) error

// ActionRegistry 副作用函数注册表, 声明式配置(JSON/YAML)通过handler名字引用这里的函数
// 不使用包级别的全局变量, 每个调用方自己构建注册表, 测试之间互不干扰
type ActionRegistry struct {
	actions     sync.Map // name -> ActionFunc
	formActions sync.Map // name -> FormActionFunc
}

func NewActionRegistry() *ActionRegistry {
	return &ActionRegistry{}
}

/*
*
  - @description: 注册 Confirm 按钮副作用函数
  - @param name string handler名字, 在同一个注册表内唯一
  - @param action ActionFunc
  - @return error
    *
*/
func (r *ActionRegistry) RegisterAction(name string, action ActionFunc) error {
	if name == "" {
		return errors.WithMessage(ErrWorkflowParamInvalid, "action name is empty")
	}
	if action == nil {
		return errors.WithMessagef(ErrWorkflowParamInvalid, "action is nil, name: %s", name)
	}
	if _, loaded := r.actions.LoadOrStore(name, action); loaded {
		return errors.WithMessagef(ErrActionAlreadyRegistered, "action already registered, name: %s", name)
	}
	return nil
}

/*
*
  - @description: 注册 Form 按钮副作用函数
  - @param name string handler名字, 在同一个注册表内唯一
  - @param action FormActionFunc
  - @return error
    *
*/
func (r *ActionRegistry) RegisterFormAction(name string, action FormActionFunc) error {
	if name == "" {
		return errors.WithMessage(ErrWorkflowParamInvalid, "form action name is empty")
	}
	if action == nil {
		return errors.WithMessagef(ErrWorkflowParamInvalid, "form action is nil, name: %s", name)
	}
	if _, loaded := r.formActions.LoadOrStore(name, action); loaded {
		return errors.WithMessagef(ErrActionAlreadyRegistered, "form action already registered, name: %s", name)
	}
	return nil
}

func (r *ActionRegistry) GetAction(name string) (ActionFunc, bool) {
	i, ok := r.actions.Load(name)
	if !ok {
		return nil, false
	}
	action, ok := i.(ActionFunc)
	return action, ok
}

// GetFormAction 获取 Form 按钮副作用函数
// 没有注册 Form 版本时, 退化为 Confirm 版本, 表单数据已经合并进上下文, 不会丢失
func (r *ActionRegistry) GetFormAction(name string) (FormActionFunc, bool) {
	if i, ok := r.formActions.Load(name); ok {
		action, ok := i.(FormActionFunc)
		return action, ok
	}
	action, ok := r.GetAction(name)
	if !ok {
		return nil, false
	}
	return func(ctx context.Context, _ map[string]any, wctx *WorkflowContext) error {
		return action(ctx, wctx)
	}, true
}
