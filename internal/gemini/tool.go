package gemini

import (
	"context"
	"fmt"

	"google.golang.org/genai"
)

// Tool 可供模型调用的能力
// 每个工具声明唯一的名字、参数 schema 和自然语言描述，
// 模型根据描述决定何时调用。
type Tool interface {
	Name() string
	Description() string
	// Parameters 返回 JSON-schema 形式的参数声明，无参数时可返回 nil
	Parameters() *genai.Schema
	// Invoke 执行工具，args 中除模型给出的参数外还包含引擎注入的
	// isAdmin/isOwner/sender/mode 字段。返回值作为 functionResponse
	// 回传给模型；返回 error 时由引擎包装成错误载荷，不会中断会话。
	Invoke(ctx context.Context, args map[string]any) (map[string]any, error)
}

// Registry 单次会话使用的工具集合
// 每条入站消息都重新构建，不跨会话共享。
type Registry struct {
	tools map[string]Tool
	order []string
}

// NewRegistry 创建空工具注册表
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

// Register 注册工具，重名直接报错，避免派发歧义
func (r *Registry) Register(t Tool) error {
	name := t.Name()
	if name == "" {
		return fmt.Errorf("工具名不能为空")
	}
	if _, ok := r.tools[name]; ok {
		return fmt.Errorf("工具名重复: %s", name)
	}
	r.tools[name] = t
	r.order = append(r.order, name)
	return nil
}

// MustRegister 注册工具，重名时 panic（仅用于启动期静态目录）
func (r *Registry) MustRegister(t Tool) {
	if err := r.Register(t); err != nil {
		panic(err)
	}
}

// Lookup 按名字查找工具
func (r *Registry) Lookup(name string) (Tool, bool) {
	t, ok := r.tools[name]
	return t, ok
}

// Len 已注册的工具数量
func (r *Registry) Len() int {
	return len(r.order)
}

// Declarations 翻译为 Gemini 的函数声明，保持注册顺序
func (r *Registry) Declarations() []*genai.FunctionDeclaration {
	decls := make([]*genai.FunctionDeclaration, 0, len(r.order))
	for _, name := range r.order {
		t := r.tools[name]
		decls = append(decls, &genai.FunctionDeclaration{
			Name:        t.Name(),
			Description: t.Description(),
			Parameters:  t.Parameters(),
		})
	}
	return decls
}
