package commonregister

import (
	"context"
	"log/slog"

	"github.com/blingmoon/dialog-workflow/workflow"
	"github.com/pkg/errors"
)

const ActionSaveProfileDraft = "save_profile_draft"

// profileWorkflowConfig 填写资料向导
// 填写基本资料 -> 确认资料 -> (可选)编辑简介 -> 确认资料 -> 提交
const profileWorkflowConfig = `{
	"name": "profile_wizard",
	"start": "fillBasicInfo",
	"states": {
		"fillBasicInfo": {
			"type": "form",
			"title": "步骤 1：填写基本资料",
			"description": "请输入您的个人资料",
			"fields": [
				{"name": "name", "label": "姓名", "type": "text", "required": true, "placeholder": "请输入姓名"},
				{"name": "email", "label": "电子邮件", "type": "email", "required": true, "rules": "email", "placeholder": "example@email.com"}
			],
			"actions": [
				{"label": "取消", "exit": true, "skip_validation": true},
				{"label": "下一步", "next": "confirmInfo", "variant": "success"}
			]
		},
		"confirmInfo": {
			"type": "confirm",
			"title": "步骤 2：确认资料",
			"description": "请确认以下资料：姓名：{{or .name \"未填写\"}}，电子邮件：{{or .email \"未填写\"}}",
			"actions": [
				{"label": "取消", "exit": true},
				{"label": "编辑简介", "next": "editProfile"},
				{"label": "确认送出", "exit": true, "variant": "success", "handler": "stamp_submitted_at"}
			]
		},
		"editProfile": {
			"type": "form",
			"title": "步骤 3：编辑个人简介",
			"description": "补充您的个人简介信息",
			"fields": [
				{"name": "bio", "label": "个人简介", "type": "textarea", "placeholder": "介绍一下自己..."},
				{"name": "website", "label": "个人网站", "type": "text", "rules": "url", "placeholder": "https://..."}
			],
			"actions": [
				{"label": "取消", "next": "confirmInfo", "skip_validation": true},
				{"label": "保存草稿", "next": "confirmInfo", "skip_validation": true, "handler": "save_profile_draft"},
				{"label": "确认送出", "next": "confirmInfo", "variant": "success"}
			]
		}
	}
}`

/*
*
  - @description: 注册资料向导需要的副作用函数并构建流程定义
    registry 中需要已经注册了 RegisterCommonActions
  - @param registry *workflow.ActionRegistry
  - @return *workflow.WorkflowDefinition, error
    *
*/
func NewProfileWorkflow(registry *workflow.ActionRegistry) (*workflow.WorkflowDefinition, error) {
	if _, ok := registry.GetFormAction(ActionSaveProfileDraft); !ok {
		err := registry.RegisterFormAction(ActionSaveProfileDraft, func(ctx context.Context, data map[string]any, wctx *workflow.WorkflowContext) error {
			slog.InfoContext(ctx, "[profile_wizard] draft saved", "bio", data["bio"], "website", data["website"])
			return wctx.Set([]string{"draft"}, true)
		})
		if err != nil {
			return nil, errors.Wrap(err, "register save_profile_draft action failed")
		}
	}

	cfg, err := workflow.LoadWorkflowConfigJSON([]byte(profileWorkflowConfig))
	if err != nil {
		return nil, errors.Wrap(err, "load profile workflow config failed")
	}
	definition, err := workflow.BuildDefinition(cfg, registry)
	if err != nil {
		return nil, errors.Wrap(err, "build profile workflow failed")
	}
	return definition, nil
}
