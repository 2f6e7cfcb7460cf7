package workflow

import (
	"encoding/json"
	"sync"

	"github.com/pkg/errors"
)

// WorkflowContext 一次流程运行中所有状态共享的数据
// 表单提交的数据、UpdateContext、副作用函数直接写入都会落到这里
// 副作用函数和引擎可能在不同的goroutine中访问，所以所有操作都加锁
type WorkflowContext struct {
	mu   sync.RWMutex
	data map[string]any
}

// NewWorkflowContext 从 map 创建上下文, m 会被浅拷贝
func NewWorkflowContext(m map[string]any) *WorkflowContext {
	data := make(map[string]any, len(m))
	for k, v := range m {
		data[k] = v
	}
	return &WorkflowContext{data: data}
}

// NewWorkflowContextFromBytes 从 JSON 字节创建上下文
func NewWorkflowContextFromBytes(b []byte) (*WorkflowContext, error) {
	c := &WorkflowContext{data: make(map[string]any)}
	if len(b) == 0 {
		return c, nil
	}
	if err := json.Unmarshal(b, &c.data); err != nil {
		return nil, errors.WithMessage(err, "NewWorkflowContextFromBytes failed")
	}
	if c.data == nil {
		c.data = make(map[string]any)
	}
	return c, nil
}

// Get 获取值，支持嵌套路径
// 例如: Get("apiData", "user") 获取 apiData.user
func (c *WorkflowContext) Get(keys ...string) (any, bool) {
	if len(keys) == 0 {
		return nil, false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	current := any(c.data)
	for _, key := range keys {
		currentMap, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		val, exists := currentMap[key]
		if !exists {
			return nil, false
		}
		current = val
	}
	return current, true
}

func (c *WorkflowContext) GetString(keys ...string) (string, bool) {
	val, ok := c.Get(keys...)
	if !ok {
		return "", false
	}
	str, ok := val.(string)
	return str, ok
}

// GetInt64 获取 int64 值, 表单和JSON来的数字类型不统一，都尝试一下
func (c *WorkflowContext) GetInt64(keys ...string) (int64, bool) {
	val, ok := c.Get(keys...)
	if !ok {
		return 0, false
	}
	switch v := val.(type) {
	case int64:
		return v, true
	case int:
		return int64(v), true
	case int32:
		return int64(v), true
	case float64:
		return int64(v), true
	case json.Number:
		n, err := v.Int64()
		return n, err == nil
	default:
		return 0, false
	}
}

func (c *WorkflowContext) GetFloat64(keys ...string) (float64, bool) {
	val, ok := c.Get(keys...)
	if !ok {
		return 0, false
	}
	switch v := val.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int64:
		return float64(v), true
	case int:
		return float64(v), true
	default:
		return 0, false
	}
}

func (c *WorkflowContext) GetBool(keys ...string) (bool, bool) {
	val, ok := c.Get(keys...)
	if !ok {
		return false, false
	}
	b, ok := val.(bool)
	return b, ok
}

// Set 设置值，支持嵌套路径, 中间路径不是 map 的会被覆盖
func (c *WorkflowContext) Set(keys []string, value any) error {
	if len(keys) == 0 {
		return errors.New("keys cannot be empty")
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	current := c.data
	for _, key := range keys[:len(keys)-1] {
		nextMap, ok := current[key].(map[string]any)
		if !ok {
			nextMap = make(map[string]any)
			current[key] = nextMap
		}
		current = nextMap
	}
	current[keys[len(keys)-1]] = value
	return nil
}

// Delete 删除指定路径的值
func (c *WorkflowContext) Delete(keys ...string) {
	if len(keys) == 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	current := c.data
	for _, key := range keys[:len(keys)-1] {
		nextMap, ok := current[key].(map[string]any)
		if !ok {
			return
		}
		current = nextMap
	}
	delete(current, keys[len(keys)-1])
}

// Merge 浅合并, 同一个key后写入的覆盖先写入的
func (c *WorkflowContext) Merge(partial map[string]any) {
	if len(partial) == 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for k, v := range partial {
		c.data[k] = v
	}
}

// Reset 原地清空上下文, 持有同一个实例的调用方都会看到空的上下文
func (c *WorkflowContext) Reset() {
	c.mu.Lock()
	c.data = make(map[string]any)
	c.mu.Unlock()
}

// Snapshot 返回顶层的浅拷贝, 之后的修改不会反映到返回值上
func (c *WorkflowContext) Snapshot() map[string]any {
	c.mu.RLock()
	defer c.mu.RUnlock()
	ret := make(map[string]any, len(c.data))
	for k, v := range c.data {
		ret[k] = v
	}
	return ret
}

func (c *WorkflowContext) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.data)
}

func (c *WorkflowContext) ToBytes() ([]byte, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return json.Marshal(c.data)
}

func (c *WorkflowContext) ToBytesWithoutError() []byte {
	b, err := c.ToBytes()
	if err != nil {
		return nil
	}
	return b
}

// Clone 深拷贝上下文, 通过JSON往返实现，不能序列化的值会丢失
func (c *WorkflowContext) Clone() *WorkflowContext {
	ret, err := NewWorkflowContextFromBytes(c.ToBytesWithoutError())
	if err != nil {
		return NewWorkflowContext(nil)
	}
	return ret
}

// Unmarshal 将上下文反序列化到指定结构体
func (c *WorkflowContext) Unmarshal(v any) error {
	b, err := c.ToBytes()
	if err != nil {
		return errors.WithMessage(err, "WorkflowContext.Unmarshal marshal failed")
	}
	return json.Unmarshal(b, v)
}
