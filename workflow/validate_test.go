package workflow

import (
	"math"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateFields(t *testing.T) {
	fields := []*FormField{
		{Name: "name", Label: "姓名", Required: true},
		{Name: "email", Label: "邮箱", Type: FieldTypeEmail, Rules: "email"},
		{Name: "nickname", Label: "昵称", Rules: "min=2,max=8"},
		{Name: "agree", Label: "同意协议", Required: true},
		{Name: "code", Label: "邀请码", Validation: func(value any) string {
			if s, _ := value.(string); s != "" && s != "VIP" {
				return "邀请码无效"
			}
			return ""
		}},
	}

	t.Run("全部通过", func(t *testing.T) {
		errs := ValidateFields(fields, map[string]any{
			"name":     "张三",
			"email":    "zhangsan@example.com",
			"nickname": "三儿",
			"agree":    true,
			"code":     "VIP",
		})
		assert.Nil(t, errs)
	})

	t.Run("必填项为空", func(t *testing.T) {
		errs := ValidateFields(fields, map[string]any{"name": "   ", "agree": false})
		require.NotNil(t, errs)
		assert.Equal(t, "姓名 为必填项", errs["name"])
		assert.Equal(t, "同意协议 为必填项", errs["agree"])
		// 非必填的空值不走规则校验
		assert.NotContains(t, errs, "email")
		assert.NotContains(t, errs, "nickname")
	})

	t.Run("必填的数字0视为没有填写", func(t *testing.T) {
		amount := []*FormField{{Name: "amount", Label: "金额", Type: FieldTypeNumber, Required: true}}
		for _, v := range []any{0, int64(0), 0.0, math.NaN()} {
			errs := ValidateFields(amount, map[string]any{"amount": v})
			require.NotNil(t, errs, "value %v", v)
			assert.Equal(t, "金额 为必填项", errs["amount"])
		}
		assert.Nil(t, ValidateFields(amount, map[string]any{"amount": 12.5}))
		assert.Nil(t, ValidateFields(amount, map[string]any{"amount": -1}))
	})

	t.Run("规则和自定义校验", func(t *testing.T) {
		errs := ValidateFields(fields, map[string]any{
			"name":     "张三",
			"email":    "bad",
			"nickname": "a",
			"agree":    true,
			"code":     "XXX",
		})
		require.Len(t, errs, 3)
		assert.Equal(t, "邮箱 不满足规则 email", errs["email"])
		assert.Equal(t, "昵称 不满足规则 min=2", errs["nickname"])
		assert.Equal(t, "邀请码无效", errs["code"])
	})

	t.Run("FieldErrors实现error", func(t *testing.T) {
		var err error = FieldErrors{"b": "bb", "a": "aa"}
		assert.True(t, errors.Is(err, ErrWorkflowFormInvalid))
		assert.Equal(t, ErrWorkflowFormInvalid, errors.Cause(err))
		assert.Equal(t, "workflow form invalid: a: aa; b: bb", err.Error())
		assert.False(t, IsSeriousError(err))
	})
}

func TestDefaultFormData(t *testing.T) {
	data := DefaultFormData([]*FormField{
		{Name: "role", DefaultValue: "admin"},
		{Name: "remark"},
		nil,
	})
	assert.Equal(t, map[string]any{"role": "admin", "remark": ""}, data)
}
