package workflow

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestActionRegistry(t *testing.T) {
	ctx := context.Background()
	registry := NewActionRegistry()

	t.Run("注册和重复注册", func(t *testing.T) {
		require.NoError(t, registry.RegisterAction("mark", func(ctx context.Context, wctx *WorkflowContext) error {
			wctx.Merge(map[string]any{"marked": true})
			return nil
		}))
		err := registry.RegisterAction("mark", succeed)
		assert.True(t, errors.Is(err, ErrActionAlreadyRegistered))

		err = registry.RegisterAction("", succeed)
		assert.True(t, errors.Is(err, ErrWorkflowParamInvalid))
		err = registry.RegisterFormAction("nil", nil)
		assert.True(t, errors.Is(err, ErrWorkflowParamInvalid))
	})

	t.Run("Form版本优先, 没有时退化为Confirm版本", func(t *testing.T) {
		require.NoError(t, registry.RegisterFormAction("save", func(ctx context.Context, data map[string]any, wctx *WorkflowContext) error {
			wctx.Merge(map[string]any{"saved": data["name"]})
			return nil
		}))

		wctx := NewWorkflowContext(nil)
		save, ok := registry.GetFormAction("save")
		require.True(t, ok)
		require.NoError(t, save(ctx, map[string]any{"name": "张三"}, wctx))
		assert.Equal(t, "张三", wctx.Snapshot()["saved"])

		mark, ok := registry.GetFormAction("mark")
		require.True(t, ok)
		require.NoError(t, mark(ctx, nil, wctx))
		assert.Equal(t, true, wctx.Snapshot()["marked"])

		_, ok = registry.GetAction("save")
		assert.False(t, ok, "Form 版本不能用在 Confirm 按钮上")
		_, ok = registry.GetFormAction("missing")
		assert.False(t, ok)
	})

	t.Run("注册表之间互不影响", func(t *testing.T) {
		other := NewActionRegistry()
		_, ok := other.GetAction("mark")
		assert.False(t, ok)
		assert.NoError(t, other.RegisterAction("mark", succeed))
	})
}
