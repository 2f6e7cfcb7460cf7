package commonregister

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/blingmoon/dialog-workflow/workflow"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

var ErrUserNotFound = errors.New("user not found")

// UserInfo 用户资料接口返回
type UserInfo struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Email  string `json:"email"`
	Role   string `json:"role"`
	Avatar string `json:"avatar"`
}

type UserFetcher interface {
	FetchUser(ctx context.Context, userID string) (*UserInfo, error)
}

// MockUserFetcher 模拟用户接口, 1-10 之间的 id 都存在, 1-3 是管理员
type MockUserFetcher struct{}

func (MockUserFetcher) FetchUser(ctx context.Context, userID string) (*UserInfo, error) {
	id, err := strconv.Atoi(userID)
	if err != nil || id < 1 || id > 10 {
		return nil, errors.WithMessagef(ErrUserNotFound, "userID: %s", userID)
	}
	role := "user"
	if id <= 3 {
		role = "admin"
	}
	return &UserInfo{
		ID:     userID,
		Name:   fmt.Sprintf("用户 %d", id),
		Email:  fmt.Sprintf("user%d@example.com", id),
		Role:   role,
		Avatar: fmt.Sprintf("https://i.pravatar.cc/150?img=%d", id),
	}, nil
}

func userIDValidation(value any) string {
	s, _ := value.(string)
	id, err := strconv.Atoi(s)
	if err != nil || id < 1 || id > 10 {
		return "请输入 1-10 之间的数字"
	}
	return ""
}

func apiUserString(wctx *workflow.WorkflowContext, key string) string {
	v, _ := wctx.GetString("apiData", "user", key)
	return v
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}

/*
*
  - @description: 用户资料流程, 接口数据存放在上下文的 apiData 下
    输入ID -> 显示用户资料 -> (可选)编辑用户 -> 显示用户资料 -> 结束
  - @param fetcher UserFetcher
  - @return *workflow.WorkflowDefinition
    *
*/
func NewUserLookupWorkflow(fetcher UserFetcher) *workflow.WorkflowDefinition {
	return &workflow.WorkflowDefinition{
		Name:  "user_lookup",
		Start: "inputId",
		States: map[string]workflow.WorkflowState{
			"inputId": &workflow.FormState{
				Title:       workflow.Static("步骤 1：输入用户 ID"),
				Description: workflow.Static("请输入用户 ID，系统将获取用户资料"),
				Fields: workflow.Static([]*workflow.FormField{
					{
						Name:        "userId",
						Label:       "用户 ID",
						Type:        workflow.FieldTypeText,
						Required:    true,
						Placeholder: "请输入 1-10 之间的数字",
						Validation:  userIDValidation,
					},
				}),
				Actions: []*workflow.FormTransition{
					{Label: "取消", Exit: true, SkipValidation: true},
					{
						Label:   "获取资料",
						Next:    "showUserInfo",
						Variant: workflow.VariantSuccess,
						Action: func(ctx context.Context, data map[string]any, wctx *workflow.WorkflowContext) error {
							userID, _ := data["userId"].(string)
							user, err := fetcher.FetchUser(ctx, userID)
							if err != nil {
								return errors.WithMessage(err, "fetch user failed")
							}
							return wctx.Set([]string{"apiData"}, map[string]any{
								"user": map[string]any{
									"id":     user.ID,
									"name":   user.Name,
									"email":  user.Email,
									"role":   user.Role,
									"avatar": user.Avatar,
								},
								"fetchedAt": time.Now().Format(time.RFC3339),
								"requestId": uuid.NewString()[:8],
							})
						},
					},
				},
			},
			"showUserInfo": &workflow.ConfirmState{
				Title: workflow.Static("步骤 2：用户资料"),
				Description: workflow.Derived(func(wctx *workflow.WorkflowContext) string {
					requestID, _ := wctx.GetString("apiData", "requestId")
					return fmt.Sprintf("ID: %s\n姓名: %s\n邮件: %s\n角色: %s\n请求 ID: %s\n\n是否要编辑此用户的资料？",
						orNA(apiUserString(wctx, "id")),
						orNA(apiUserString(wctx, "name")),
						orNA(apiUserString(wctx, "email")),
						orNA(apiUserString(wctx, "role")),
						orNA(requestID))
				}),
				Actions: []*workflow.Transition{
					{Label: "取消", Exit: true},
					{Label: "编辑资料", Next: "editUser"},
					{
						Label:   "确认无误",
						Exit:    true,
						Variant: workflow.VariantSuccess,
						Action: func(ctx context.Context, wctx *workflow.WorkflowContext) error {
							slog.InfoContext(ctx, "[user_lookup] user confirmed", "user_id", apiUserString(wctx, "id"))
							return nil
						},
					},
				},
			},
			"editUser": &workflow.FormState{
				Title: workflow.Static("步骤 3：编辑用户资料"),
				// 字段默认值使用接口返回的数据
				Fields: workflow.Derived(func(wctx *workflow.WorkflowContext) []*workflow.FormField {
					role := apiUserString(wctx, "role")
					if role == "" {
						role = "user"
					}
					return []*workflow.FormField{
						{Name: "name", Label: "姓名", Type: workflow.FieldTypeText, Required: true, DefaultValue: apiUserString(wctx, "name")},
						{Name: "email", Label: "电子邮件", Type: workflow.FieldTypeEmail, Required: true, Rules: "email", DefaultValue: apiUserString(wctx, "email")},
						{
							Name: "role", Label: "角色", Type: workflow.FieldTypeSelect, Required: true, DefaultValue: role,
							Rules: "oneof=admin user",
							Options: []workflow.SelectOption{
								{Label: "管理员", Value: "admin"},
								{Label: "一般用户", Value: "user"},
							},
						},
					}
				}),
				Actions: []*workflow.FormTransition{
					{Label: "取消", Next: "showUserInfo", SkipValidation: true},
					{
						Label:   "保存修改",
						Next:    "showUserInfo",
						Variant: workflow.VariantSuccess,
						Action: func(ctx context.Context, data map[string]any, wctx *workflow.WorkflowContext) error {
							for _, key := range []string{"name", "email", "role"} {
								if err := wctx.Set([]string{"apiData", "user", key}, data[key]); err != nil {
									return err
								}
							}
							return wctx.Set([]string{"apiData", "user", "updatedAt"}, time.Now().Format(time.RFC3339))
						},
					},
				},
			},
		},
	}
}
