package workflow

// Value 静态值或者由上下文推导出来的值
// 在进入状态时调用 Resolve 解析，解析时机固定，不会在渲染之后跟随上下文变化
type Value[T any] struct {
	static  T
	derived func(ctx *WorkflowContext) T
}

// Static 静态值
func Static[T any](v T) Value[T] {
	return Value[T]{static: v}
}

// Derived 由上下文推导的值, f 为 nil 时等价于零值
func Derived[T any](f func(ctx *WorkflowContext) T) Value[T] {
	return Value[T]{derived: f}
}

func (v Value[T]) IsDerived() bool {
	return v.derived != nil
}

func (v Value[T]) Resolve(ctx *WorkflowContext) T {
	if v.derived != nil {
		return v.derived(ctx)
	}
	return v.static
}
