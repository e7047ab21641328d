package assistant

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
)

// OllamaLLM 通过 langchaingo 调用本地 Ollama 模型。
type OllamaLLM struct {
	Model string
	llm   llms.Model
}

// NewOllamaLLM 连接 serverURL 上的 Ollama 服务。
func NewOllamaLLM(serverURL, model string) (*OllamaLLM, error) {
	if model == "" {
		return nil, errors.New("ollama model is required")
	}
	opts := []ollama.Option{ollama.WithModel(model)}
	if serverURL != "" {
		opts = append(opts, ollama.WithServerURL(serverURL))
	}
	m, err := ollama.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("create ollama client: %w", err)
	}
	return &OllamaLLM{Model: model, llm: m}, nil
}

func (o *OllamaLLM) Complete(ctx context.Context, prompt Prompt) (string, error) {
	messages := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, prompt.System),
		llms.TextParts(llms.ChatMessageTypeHuman, prompt.User),
	}
	callOpts := []llms.CallOption{llms.WithTemperature(prompt.Temperature)}
	if prompt.MaxTokens > 0 {
		callOpts = append(callOpts, llms.WithMaxTokens(prompt.MaxTokens))
	}

	resp, err := o.llm.GenerateContent(ctx, messages, callOpts...)
	if err != nil {
		return "", fmt.Errorf("ollama generate: %w", err)
	}
	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Content) == "" {
		return "", ErrEmptyCompletion
	}
	return resp.Choices[0].Content, nil
}
