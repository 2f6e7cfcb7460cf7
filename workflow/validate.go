package workflow

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
)

var validatorUtil = validator.New(validator.WithRequiredStructEnabled())

// SelectOption 下拉选项
type SelectOption struct {
	Label string `json:"label" yaml:"label"`
	Value string `json:"value" yaml:"value"`
}

// FormField 表单字段
type FormField struct {
	Name         string         `json:"name" yaml:"name" validate:"required"`
	Label        string         `json:"label" yaml:"label"`
	Type         FieldType      `json:"type" yaml:"type" validate:"omitempty,oneof=text email password textarea select number"`
	Placeholder  string         `json:"placeholder" yaml:"placeholder"`
	Required     bool           `json:"required" yaml:"required"`
	Options      []SelectOption `json:"options" yaml:"options"`
	DefaultValue any            `json:"default_value" yaml:"default_value"`
	// Rules validator 规则, 例如 "email" / "min=3,max=20" / "numeric"
	// 空值不会走 Rules 校验, 是否必填由 Required 决定
	Rules string `json:"rules" yaml:"rules"`
	// Validation 自定义校验, 返回非空字符串表示错误信息
	Validation func(value any) string `json:"-" yaml:"-"`
}

// FieldErrors 字段名 -> 错误信息, 展示在对应字段下面
type FieldErrors map[string]string

func (e FieldErrors) Error() string {
	names := make([]string, 0, len(e))
	for name := range e {
		names = append(names, name)
	}
	sort.Strings(names)
	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, fmt.Sprintf("%s: %s", name, e[name]))
	}
	return fmt.Sprintf("%s: %s", ErrWorkflowFormInvalid.Error(), strings.Join(parts, "; "))
}

// Unwrap errors.Is(err, ErrWorkflowFormInvalid) 可以识别
func (e FieldErrors) Unwrap() error {
	return ErrWorkflowFormInvalid
}

// Cause 兼容 github.com/pkg/errors 的 Cause
func (e FieldErrors) Cause() error {
	return ErrWorkflowFormInvalid
}

// DefaultFormData 表单初始数据, 没有默认值的字段为空字符串
func DefaultFormData(fields []*FormField) map[string]any {
	data := make(map[string]any, len(fields))
	for _, field := range fields {
		if field == nil {
			continue
		}
		if field.DefaultValue != nil {
			data[field.Name] = field.DefaultValue
		} else {
			data[field.Name] = ""
		}
	}
	return data
}

// ValidateFields 校验所有字段, 没有错误时返回 nil
// 顺序: 必填 -> Rules -> 自定义校验, 每个字段只保留第一个错误
func ValidateFields(fields []*FormField, data map[string]any) FieldErrors {
	errs := FieldErrors{}
	for _, field := range fields {
		if field == nil {
			continue
		}
		if msg := validateField(field, data[field.Name]); msg != "" {
			errs[field.Name] = msg
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return errs
}

func validateField(field *FormField, value any) string {
	label := field.Label
	if label == "" {
		label = field.Name
	}
	if isEmptyValue(value) {
		if field.Required {
			return fmt.Sprintf("%s 为必填项", label)
		}
	} else if field.Rules != "" {
		if err := validatorUtil.Var(value, field.Rules); err != nil {
			return ruleMessage(label, err)
		}
	}
	if field.Validation != nil {
		return field.Validation(value)
	}
	return ""
}

func ruleMessage(label string, err error) string {
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) && len(validationErrors) > 0 {
		fe := validationErrors[0]
		if fe.Param() != "" {
			return fmt.Sprintf("%s 不满足规则 %s=%s", label, fe.Tag(), fe.Param())
		}
		return fmt.Sprintf("%s 不满足规则 %s", label, fe.Tag())
	}
	return fmt.Sprintf("%s 校验失败: %v", label, err)
}

// isEmptyValue 必填校验的空值: nil、空白字符串、false、数字0
func isEmptyValue(value any) bool {
	switch v := value.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(v) == ""
	case bool:
		return !v
	case int:
		return v == 0
	case int32:
		return v == 0
	case int64:
		return v == 0
	case uint:
		return v == 0
	case uint64:
		return v == 0
	case float32:
		return v == 0 || math.IsNaN(float64(v))
	case float64:
		return v == 0 || math.IsNaN(v)
	}
	return false
}
