package workflow

import "context"

// DialogHost 对话框渲染层, 引擎只负责发出打开/关闭请求, 不直接渲染界面
// 打开类方法同步返回对话框id, 实际展示是异步的
type DialogHost interface {
	Confirm(dialog *ConfirmDialog) string
	Form(dialog *FormDialog) string
	Lightbox(dialog *LightboxDialog) string
	Close(id string)
}

// ClickFunc 按钮点击回调, data 为表单数据, Confirm 对话框为 nil
// 返回 error 时对话框保持打开, 按钮重新可用
type ClickFunc func(ctx context.Context, data map[string]any) error

// DialogAction 对话框上的一个按钮
type DialogAction struct {
	ID             string // 稳定身份, 加载状态按ID跟踪而不是按文字
	Label          string
	Variant        Variant
	SkipValidation bool
	OnClick        ClickFunc
}

// ConfirmDialog 确认对话框请求, 所有推导值已经解析完成
type ConfirmDialog struct {
	Title       string
	Description string
	Size        ModalSize
	Actions     []*DialogAction
	// OnDismiss 通过通用关闭入口(点遮罩/ESC)关闭时调用, 可以为空
	OnDismiss func()
}

// FormDialog 表单对话框请求
type FormDialog struct {
	Title       string
	Description string
	Size        ModalSize
	Fields      []*FormField
	Actions     []*DialogAction
	OnDismiss   func()
}

// LightboxDialog 图片灯箱请求
type LightboxDialog struct {
	Images       []string
	CurrentIndex int
	OnDismiss    func()
}
