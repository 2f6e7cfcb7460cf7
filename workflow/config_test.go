package workflow

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const profileConfigYAML = `
name: profile
start: fill
states:
  fill:
    type: form
    title: 填写基本信息
    size: md
    fields:
      - name: name
        label: 姓名
        type: text
        required: true
      - name: email
        label: 邮箱
        type: email
        rules: email
      - name: role
        label: 角色
        type: select
        default_value: user
        options:
          - label: 用户
            value: user
          - label: 管理员
            value: admin
    actions:
      - label: 取消
        exit: true
        skip_validation: true
      - label: 下一步
        next: confirm
        variant: success
  confirm:
    type: confirm
    title: "确认 {{.name}} 的信息"
    description: "角色: {{.role}}"
    actions:
      - label: 返回修改
        next: fill
      - label: 确认提交
        exit: true
        handler: submit
  avatar:
    type: lightbox
    images:
      - "https://example.com/{{.name}}.png"
      - https://example.com/default.png
`

const profileConfigJSON = `{
	"name": "profile",
	"start": "confirm",
	"states": {
		"confirm": {
			"type": "confirm",
			"title": "确认",
			"actions": [
				{"label": "确认提交", "exit": true, "handler": "submit"}
			]
		}
	}
}`

func newConfigRegistry(t *testing.T, submitted *int) *ActionRegistry {
	registry := NewActionRegistry()
	require.NoError(t, registry.RegisterAction("submit", func(ctx context.Context, wctx *WorkflowContext) error {
		*submitted++
		return nil
	}))
	return registry
}

func TestBuildDefinitionFromYAML(t *testing.T) {
	ctx := context.Background()
	cfg, err := LoadWorkflowConfigYAML([]byte(profileConfigYAML))
	require.NoError(t, err)
	submitted := 0
	def, err := BuildDefinition(cfg, newConfigRegistry(t, &submitted))
	require.NoError(t, err)

	assert.Equal(t, "profile", def.Name)
	assert.Len(t, def.States, 3)
	fill, ok := def.States["fill"].(*FormState)
	require.True(t, ok)
	assert.False(t, fill.Title.IsDerived())
	assert.Equal(t, "user", fill.Fields.Resolve(nil)[2].DefaultValue)
	confirm, ok := def.States["confirm"].(*ConfirmState)
	require.True(t, ok)
	assert.True(t, confirm.Title.IsDerived())
	avatar, ok := def.States["avatar"].(*LightboxState)
	require.True(t, ok)
	assert.Equal(t,
		[]string{"https://example.com/zs.png", "https://example.com/default.png"},
		avatar.Images.Resolve(NewWorkflowContext(map[string]any{"name": "zs"})))

	completed := 0
	def.OnComplete = func(wctx *WorkflowContext) { completed++ }
	store := newTestDialogStore()
	c, err := store.CreateWorkflow(def, WithLogger(discardLogger()))
	require.NoError(t, err)
	require.NoError(t, c.Start(ctx))

	require.NoError(t, clickLabel(t, store, c.CurrentDialogID(), "下一步", map[string]any{"name": "张三"}))
	dialog, ok := store.Get(c.CurrentDialogID())
	require.True(t, ok)
	assert.Equal(t, "确认 张三 的信息", dialog.Confirm.Title)
	assert.Equal(t, "角色: user", dialog.Confirm.Description)

	require.NoError(t, clickLabel(t, store, c.CurrentDialogID(), "确认提交", nil))
	assert.Equal(t, 1, submitted)
	assert.Equal(t, 1, completed)
}

func TestBuildDefinitionErrors(t *testing.T) {
	t.Run("handler没有注册", func(t *testing.T) {
		cfg, err := LoadWorkflowConfigJSON([]byte(profileConfigJSON))
		require.NoError(t, err)
		_, err = BuildDefinition(cfg, nil)
		assert.True(t, errors.Is(err, ErrWorkflowActionNotFound))
	})

	t.Run("状态类型不合法", func(t *testing.T) {
		cfg := &WorkflowConfig{Start: "a", States: map[string]*StateConfig{
			"a": {Type: "toast"},
		}}
		_, err := BuildDefinition(cfg, nil)
		assert.True(t, errors.Is(err, ErrWorkflowDefinitionInvalid))
	})

	t.Run("模板语法错误", func(t *testing.T) {
		cfg := &WorkflowConfig{Start: "a", States: map[string]*StateConfig{
			"a": {Type: DialogKindConfirm, Title: "{{.name", Actions: []*ActionConfig{{Label: "ok", Exit: true}}},
		}}
		_, err := BuildDefinition(cfg, nil)
		assert.True(t, errors.Is(err, ErrWorkflowDefinitionInvalid))
	})

	t.Run("next指向不存在的状态", func(t *testing.T) {
		cfg := &WorkflowConfig{Start: "a", States: map[string]*StateConfig{
			"a": {Type: DialogKindConfirm, Actions: []*ActionConfig{{Label: "ok", Next: "b"}}},
		}}
		_, err := BuildDefinition(cfg, nil)
		assert.True(t, errors.Is(err, ErrWorkflowStateNotFound))
	})

	t.Run("配置格式错误", func(t *testing.T) {
		_, err := LoadWorkflowConfigJSON([]byte("{"))
		assert.True(t, errors.Is(err, ErrWorkflowParamInvalid))
		_, err = LoadWorkflowConfigYAML([]byte("states: ["))
		assert.True(t, errors.Is(err, ErrWorkflowParamInvalid))
		_, err = BuildDefinition(nil, nil)
		assert.True(t, errors.Is(err, ErrWorkflowParamInvalid))
	})
}

func TestLoadWorkflowConfigFile(t *testing.T) {
	dir := t.TempDir()
	yamlPath := filepath.Join(dir, "profile.yaml")
	jsonPath := filepath.Join(dir, "profile.json")
	require.NoError(t, os.WriteFile(yamlPath, []byte(profileConfigYAML), 0o644))
	require.NoError(t, os.WriteFile(jsonPath, []byte(profileConfigJSON), 0o644))

	cfg, err := LoadWorkflowConfigFile(yamlPath)
	require.NoError(t, err)
	assert.Equal(t, "fill", cfg.Start)

	cfg, err = LoadWorkflowConfigFile(jsonPath)
	require.NoError(t, err)
	assert.Equal(t, "confirm", cfg.Start)

	_, err = LoadWorkflowConfigFile(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}
