package assistant

import "context"

// DisabledLLM 在没有可用模型配置时使用，每次调用都失败，助手据此只用模板回复。
type DisabledLLM struct{}

func (DisabledLLM) Complete(context.Context, Prompt) (string, error) {
	return "", ErrLLMNotConfigured
}

func (DisabledLLM) Configured() bool { return false }
