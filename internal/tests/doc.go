// Package tests 是 dialog-workflow 的内部测试模块。
//
// ⚠️ 重要提示：此包位于 internal/ 目录下，受 Go 编译器保护，
// 外部项目无法导入。
//
// 📋 测试内容
//
// 此模块使用 DialogStore 模拟用户点击，把完整的对话框流程跑一遍：
//   - 资料向导(profile_wizard)：表单校验、可选步骤、回环
//   - 用户资料流程(user_lookup)：接口数据写入上下文、推导字段
//   - 运行记录：SQLite 中的运行状态和事件
//   - 多个流程共享同一个对话框列表
//   - WorkflowContext 功能测试
//
// 🚀 运行测试
//
// 在项目根目录：
//
//	go test ./internal/tests/...
//
// 查看覆盖率：
//
//	go test -coverprofile=coverage.out -coverpkg=github.com/blingmoon/dialog-workflow/workflow ./...
//	go tool cover -html=coverage.out
package tests
