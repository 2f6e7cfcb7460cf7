package commonregister

import (
	"context"
	"time"

	"github.com/blingmoon/dialog-workflow/workflow"
	"github.com/pkg/errors"
)

const (
	ActionNoop             = "noop"
	ActionStampSubmittedAt = "stamp_submitted_at"
	ActionRequireConfirmed = "require_confirmed"
)

var ErrNotConfirmed = errors.New("not confirmed")

// RegisterCommonActions 注册通用的副作用函数
// noop: 只为了让 exit 按钮走正常完成(OnComplete)而不是取消
// stamp_submitted_at: 写入提交时间
// require_confirmed: 上下文中 confirmed 不为 true 时失败, 对话框保持打开
func RegisterCommonActions(registry *workflow.ActionRegistry) error {
	err := registry.RegisterAction(ActionNoop, func(ctx context.Context, wctx *workflow.WorkflowContext) error {
		return nil
	})
	if err != nil {
		return errors.Wrap(err, "register noop action failed")
	}

	err = registry.RegisterAction(ActionStampSubmittedAt, func(ctx context.Context, wctx *workflow.WorkflowContext) error {
		return wctx.Set([]string{"submitted_at"}, time.Now().Format(time.RFC3339))
	})
	if err != nil {
		return errors.Wrap(err, "register stamp_submitted_at action failed")
	}

	err = registry.RegisterAction(ActionRequireConfirmed, func(ctx context.Context, wctx *workflow.WorkflowContext) error {
		if confirmed, _ := wctx.GetBool("confirmed"); !confirmed {
			return ErrNotConfirmed
		}
		return nil
	})
	if err != nil {
		return errors.Wrap(err, "register require_confirmed action failed")
	}
	return nil
}
