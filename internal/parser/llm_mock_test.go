package parser

import (
	"context"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

// 测试用LLM模型模拟器
type MockLLMModel struct {
	// 模拟响应
	mockResponse string
	// 用于测试的错误
	Err error
	// 记录最近一次收到的消息
	lastMessages []*schema.Message
	// 用于测试的调用次数
	CallCount int
}

// Generate 实现model.ChatModel接口
func (m *MockLLMModel) Generate(ctx context.Context, messages []*schema.Message, options ...model.Option) (*schema.Message, error) {
	m.CallCount++
	m.lastMessages = messages
	if m.Err != nil {
		return nil, m.Err
	}
	// 返回预设的模拟响应
	return &schema.Message{
		Role:    "assistant",
		Content: m.mockResponse,
	}, nil
}

// Stream 实现model.ChatModel接口
func (m *MockLLMModel) Stream(ctx context.Context, messages []*schema.Message, options ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	// 测试中不需要流式响应
	return nil, nil
}

// BindTools 实现model.ChatModel接口
func (m *MockLLMModel) BindTools(tools []*schema.ToolInfo) error {
	// 空实现，测试中不需要工具绑定
	return nil
}

// WithTools 实现 model.ToolCallingChatModel 接口
func (m *MockLLMModel) WithTools(tools []*schema.ToolInfo) (model.ToolCallingChatModel, error) {
	return m, nil
}
