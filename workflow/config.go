package workflow

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"text/template"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// WorkflowConfig 声明式流程定义, 可以从 JSON/YAML 加载
// 副作用函数不能序列化, 通过 handler 名字引用 ActionRegistry 中注册的函数
type WorkflowConfig struct {
	Name   string                  `json:"name" yaml:"name" validate:"omitempty,max=128"`
	Start  string                  `json:"start" yaml:"start" validate:"required"`
	States map[string]*StateConfig `json:"states" yaml:"states" validate:"required,min=1,dive,required"`
}

// StateConfig 状态配置
// Title/Description/Images 中包含 "{{" 时作为模板, 进入状态时用上下文渲染
type StateConfig struct {
	Type         DialogKind      `json:"type" yaml:"type" validate:"required,oneof=confirm form lightbox"`
	Title        string          `json:"title" yaml:"title"`
	Description  string          `json:"description" yaml:"description"`
	Size         ModalSize       `json:"size" yaml:"size" validate:"omitempty,oneof=sm md lg xl full"`
	Fields       []*FormField    `json:"fields" yaml:"fields" validate:"dive,required"`
	Actions      []*ActionConfig `json:"actions" yaml:"actions" validate:"dive,required"`
	Images       []string        `json:"images" yaml:"images"`
	CurrentIndex int             `json:"current_index" yaml:"current_index" validate:"gte=0"`
	Next         string          `json:"next" yaml:"next"`
}

type ActionConfig struct {
	Label          string  `json:"label" yaml:"label" validate:"required"`
	Next           string  `json:"next" yaml:"next"`
	Exit           bool    `json:"exit" yaml:"exit"`
	Variant        Variant `json:"variant" yaml:"variant" validate:"omitempty,oneof=default danger success warning"`
	SkipValidation bool    `json:"skip_validation" yaml:"skip_validation"`
	Handler        string  `json:"handler" yaml:"handler"` // 为空表示没有副作用函数
}

func LoadWorkflowConfigJSON(data []byte) (*WorkflowConfig, error) {
	cfg := &WorkflowConfig{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, errors.WithMessagef(ErrWorkflowParamInvalid, "unmarshal json config failed, err: %v", err)
	}
	return cfg, nil
}

func LoadWorkflowConfigYAML(data []byte) (*WorkflowConfig, error) {
	cfg := &WorkflowConfig{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.WithMessagef(ErrWorkflowParamInvalid, "unmarshal yaml config failed, err: %v", err)
	}
	return cfg, nil
}

// LoadWorkflowConfigFile 按扩展名选择格式, .yaml/.yml 为 YAML, 其他按 JSON 解析
func LoadWorkflowConfigFile(path string) (*WorkflowConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read workflow config failed, path: %s", path)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return LoadWorkflowConfigYAML(data)
	default:
		return LoadWorkflowConfigJSON(data)
	}
}

/*
*
  - @description: 把声明式配置转换成流程定义
    1. 配置本身的格式校验(validator)
    2. handler 名字必须在注册表中存在, 否则返回 ErrWorkflowActionNotFound
    3. 模板字符串编译失败返回 ErrWorkflowDefinitionInvalid
    4. 最后执行 WorkflowDefinition.Validate, 状态引用错误在这里报出来
  - @param cfg *WorkflowConfig
  - @param registry *ActionRegistry 可以为空, 为空时所有 handler 都视为不存在
  - @return *WorkflowDefinition, error
    *
*/
func BuildDefinition(cfg *WorkflowConfig, registry *ActionRegistry) (*WorkflowDefinition, error) {
	if cfg == nil {
		return nil, errors.WithMessage(ErrWorkflowParamInvalid, "workflow config is nil")
	}
	if err := validatorUtil.Struct(cfg); err != nil {
		return nil, errors.WithMessagef(ErrWorkflowDefinitionInvalid, "config: %s, err: %v", cfg.Name, err)
	}
	if registry == nil {
		registry = NewActionRegistry()
	}
	definition := &WorkflowDefinition{
		Name:   cfg.Name,
		Start:  cfg.Start,
		States: make(map[string]WorkflowState, len(cfg.States)),
	}
	for name, stateCfg := range cfg.States {
		state, err := buildState(name, stateCfg, registry)
		if err != nil {
			return nil, errors.WithMessagef(err, "config: %s", cfg.Name)
		}
		definition.States[name] = state
	}
	if err := definition.Validate(); err != nil {
		return nil, err
	}
	if unreachable := unreachableStatesOf(definition); len(unreachable) > 0 {
		slog.Warn("[WorkflowConfig] states unreachable from start", "workflow", cfg.Name, "states", unreachable)
	}
	return definition, nil
}

func unreachableStatesOf(definition *WorkflowDefinition) []string {
	reachable := definition.ReachableStates()
	ret := make([]string, 0)
	for name := range definition.States {
		if !reachable[name] {
			ret = append(ret, name)
		}
	}
	return ret
}

func buildState(name string, cfg *StateConfig, registry *ActionRegistry) (WorkflowState, error) {
	title, err := textValue(name+".title", cfg.Title)
	if err != nil {
		return nil, err
	}
	description, err := textValue(name+".description", cfg.Description)
	if err != nil {
		return nil, err
	}
	switch cfg.Type {
	case DialogKindForm:
		state := &FormState{
			Title:       title,
			Description: description,
			Fields:      Static(cfg.Fields),
			Size:        cfg.Size,
			Actions:     make([]*FormTransition, 0, len(cfg.Actions)),
		}
		for _, a := range cfg.Actions {
			var action FormActionFunc
			if a.Handler != "" {
				var ok bool
				if action, ok = registry.GetFormAction(a.Handler); !ok {
					return nil, errors.WithMessagef(ErrWorkflowActionNotFound, "state %q action %q handler %q not registered", name, a.Label, a.Handler)
				}
			}
			state.Actions = append(state.Actions, &FormTransition{
				Label:          a.Label,
				Next:           a.Next,
				Exit:           a.Exit,
				Action:         action,
				Variant:        a.Variant,
				SkipValidation: a.SkipValidation,
			})
		}
		return state, nil
	case DialogKindConfirm:
		state := &ConfirmState{
			Title:       title,
			Description: description,
			Size:        cfg.Size,
			Actions:     make([]*Transition, 0, len(cfg.Actions)),
		}
		for _, a := range cfg.Actions {
			var action ActionFunc
			if a.Handler != "" {
				var ok bool
				if action, ok = registry.GetAction(a.Handler); !ok {
					return nil, errors.WithMessagef(ErrWorkflowActionNotFound, "state %q action %q handler %q not registered", name, a.Label, a.Handler)
				}
			}
			state.Actions = append(state.Actions, &Transition{
				Label:   a.Label,
				Next:    a.Next,
				Exit:    a.Exit,
				Action:  action,
				Variant: a.Variant,
			})
		}
		return state, nil
	case DialogKindLightbox:
		images, err := imagesValue(name, cfg.Images)
		if err != nil {
			return nil, err
		}
		return &LightboxState{
			Images:       images,
			CurrentIndex: cfg.CurrentIndex,
			Next:         cfg.Next,
		}, nil
	}
	return nil, errors.WithMessagef(ErrWorkflowDefinitionInvalid, "state %q has unsupported type %q", name, cfg.Type)
}

// textValue 普通字符串为 Static, 模板字符串为 Derived
func textValue(name, text string) (Value[string], error) {
	if !strings.Contains(text, "{{") {
		return Static(text), nil
	}
	tmpl, err := template.New(name).Parse(text)
	if err != nil {
		return Value[string]{}, errors.WithMessagef(ErrWorkflowDefinitionInvalid, "parse template %s failed, err: %v", name, err)
	}
	return Derived(func(wctx *WorkflowContext) string {
		return renderTemplate(tmpl, wctx, text)
	}), nil
}

func imagesValue(name string, images []string) (Value[[]string], error) {
	templates := make([]*template.Template, len(images))
	hasTemplate := false
	for i, image := range images {
		if !strings.Contains(image, "{{") {
			continue
		}
		tmpl, err := template.New(name + ".images").Parse(image)
		if err != nil {
			return Value[[]string]{}, errors.WithMessagef(ErrWorkflowDefinitionInvalid, "parse template %s.images[%d] failed, err: %v", name, i, err)
		}
		templates[i] = tmpl
		hasTemplate = true
	}
	if !hasTemplate {
		return Static(images), nil
	}
	return Derived(func(wctx *WorkflowContext) []string {
		ret := make([]string, len(images))
		for i, image := range images {
			if templates[i] == nil {
				ret[i] = image
				continue
			}
			ret[i] = renderTemplate(templates[i], wctx, image)
		}
		return ret
	}), nil
}

// renderTemplate 渲染失败时返回原始文本, 不让界面因为文案出错
func renderTemplate(tmpl *template.Template, wctx *WorkflowContext, raw string) string {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, wctx.Snapshot()); err != nil {
		slog.Warn("[WorkflowConfig] render template failed", "template", tmpl.Name(), "err", err)
		return raw
	}
	return buf.String()
}
