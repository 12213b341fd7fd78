package provider

import (
	"context"

	"assistant/internal/chat"
)

// ChatRequest 封装一次补全请求
// ChatRequest wraps a single completion call.
type ChatRequest struct {
	Model       string
	Messages    []chat.Message
	MaxTokens   int
	Temperature float32
}

// Usage token 用量统计
// Usage reports token consumption.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// ChatResponse 补全服务返回的单条消息
// ChatResponse is the single assistant message a completion call yields.
type ChatResponse struct {
	Content      string
	FinishReason string
	Usage        Usage
}

// Provider 补全服务接口；对编排器而言是不透明的外部协作者
// Provider is the completion-service boundary: an ordered role-tagged message
// list in, one assistant message (or an error) out. The orchestrator treats
// it as an opaque external collaborator.
type Provider interface {
	// Chat 发送请求并返回响应 / Chat issues one completion call.
	Chat(ctx context.Context, req ChatRequest) (ChatResponse, error)

	// Name 返回 provider 名称 / Name returns the provider name.
	Name() string

	// CurrentModel 返回当前活跃模型 / CurrentModel returns the active model.
	CurrentModel() string

	// SetModel 切换活跃模型 / SetModel switches the active model.
	SetModel(model string) error
}
