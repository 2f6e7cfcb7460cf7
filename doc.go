// Package workflow 提供多步骤对话框流程编排功能。
//
// 这是一个轻量级的对话框状态机：把「表单 -> 确认 -> 编辑 -> 确认」这类多步骤交互
// 描述成一个流程定义，由引擎负责打开/关闭对话框、校验表单、执行副作用函数、在步骤之间传递上下文。
//
// 主要特性：
//   - 不负责渲染：引擎只通过 DialogHost 发出打开/关闭请求，内置的 DialogStore 是一个内存实现
//   - 三种对话框：表单(Form)、确认(Confirm，支持多按钮)、图片灯箱(Lightbox，可自动跳转)
//   - 推导值：标题、描述、字段、图片可以是静态值，也可以由上下文推导
//   - 表单校验：必填、validator 规则、自定义校验函数，错误逐字段返回
//   - 声明式配置：JSON/YAML 配置 + 副作用函数注册表，标题支持模板
//   - 运行记录：支持 GORM，可使用 MySQL、PostgreSQL、SQLite 等数据库
//   - 并发安全：副作用函数执行期间按钮组禁用，支持本地锁和分布式锁（Redis）
//
// 基础使用示例:
//
//	package main
//
//	import (
//	    "context"
//
//	    "github.com/blingmoon/dialog-workflow/workflow"
//	)
//
//	func main() {
//	    // 1. 创建对话框列表
//	    store := workflow.NewDialogStore(nil)
//
//	    // 2. 定义流程
//	    definition := &workflow.WorkflowDefinition{
//	        Name:  "basic_info",
//	        Start: "fill",
//	        States: map[string]workflow.WorkflowState{
//	            "fill": &workflow.FormState{
//	                Title:  workflow.Static("填写基本资料"),
//	                Fields: workflow.Static([]*workflow.FormField{{Name: "name", Label: "姓名", Required: true}}),
//	                Actions: []*workflow.FormTransition{
//	                    {Label: "取消", Exit: true, SkipValidation: true},
//	                    {Label: "下一步", Next: "confirm"},
//	                },
//	            },
//	            "confirm": &workflow.ConfirmState{
//	                Title: workflow.Derived(func(wctx *workflow.WorkflowContext) string {
//	                    name, _ := wctx.GetString("name")
//	                    return "确认提交 " + name + " 的资料？"
//	                }),
//	                Actions: []*workflow.Transition{
//	                    {Label: "返回", Next: "fill"},
//	                    {Label: "提交", Exit: true, Action: func(ctx context.Context, wctx *workflow.WorkflowContext) error {
//	                        return nil
//	                    }},
//	                },
//	            },
//	        },
//	        OnComplete: func(wctx *workflow.WorkflowContext) {},
//	        OnCancel:   func(wctx *workflow.WorkflowContext) {},
//	    }
//
//	    // 3. 创建并启动流程
//	    controller, _ := store.CreateWorkflow(definition)
//	    controller.Start(context.Background())
//
//	    // 4. 界面层把用户点击交给 DialogStore
//	    dialogID := controller.CurrentDialogID()
//	    actionID, _ := store.ActionByLabel(dialogID, "下一步")
//	    store.Click(context.Background(), dialogID, actionID, map[string]any{"name": "张三"})
//	}
//
// 状态转换规则：
//
// 用户点击按钮之后：
//   - Form 按钮先校验字段（SkipValidation 为 true 时跳过），校验失败对话框保持打开
//   - 表单数据浅合并到上下文，同一个 key 以最后一次提交为准
//   - 执行副作用函数，失败时不转换状态，对话框保持打开，用户可以重试
//   - exit：有副作用函数视为正常完成（OnComplete），没有视为取消（OnCancel）
//   - next：关闭当前对话框，进入下一个状态
//   - 都没有：静默关闭，不调用任何回调
//
// 通过 DialogStore.Dismiss（点遮罩/ESC）关闭当前对话框等同于取消流程。
//
// 更多示例和文档请访问: https://github.com/blingmoon/dialog-workflow
package workflow
