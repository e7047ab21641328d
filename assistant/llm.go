package assistant

import (
	"context"
	"errors"
)

var (
	// ErrLLMNotConfigured 表示既没有代理也没有任何 API Key。
	ErrLLMNotConfigured = errors.New("llm not configured: missing proxy url or api key")
	// ErrEmptyCompletion 表示模型返回了空文本。
	ErrEmptyCompletion = errors.New("llm returned empty content")
)

// LLMClient 抽象大模型客户端，便于替换/Mock。
type LLMClient interface {
	Complete(ctx context.Context, prompt Prompt) (string, error)
}

// configurable 由能够声明自身是否可用的客户端实现。
type configurable interface {
	Configured() bool
}

// IsConfigured 判断客户端是否可用；未实现 Configured 的客户端视为可用。
func IsConfigured(c LLMClient) bool {
	if c == nil {
		return false
	}
	if cc, ok := c.(configurable); ok {
		return cc.Configured()
	}
	return true
}

// LLMSettings 提供给具体实现的基础配置。
type LLMSettings struct {
	Provider string
	Model    string
	APIKey   string
	BaseURL  string
}
