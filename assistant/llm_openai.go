package assistant

import (
	"context"
	"errors"
	"net/http"
	"strings"

	openai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// 各提供方的 OpenAI 兼容入口和默认模型。
var providerDefaults = map[string]LLMSettings{
	"deepseek": {BaseURL: "https://api.deepseek.com/v1/", Model: "deepseek-chat"},
	"openai":   {BaseURL: "https://api.openai.com/v1/", Model: "gpt-4o-mini"},
}

// OpenAILLM implements LLMClient using the official openai-go SDK (chat completions).
type OpenAILLM struct {
	Model  string
	client openai.Client
}

// NewOpenAILLMFromConfig 支持 openai 和 deepseek，未填写的 BaseURL / Model 取提供方默认值。
func NewOpenAILLMFromConfig(cfg *LLMSettings, httpClient *http.Client) (*OpenAILLM, error) {
	if cfg == nil {
		return nil, errors.New("llm config is nil")
	}
	def, ok := providerDefaults[cfg.Provider]
	if !ok {
		return nil, errors.New("llm provider " + cfg.Provider + " is not openai-compatible")
	}
	if cfg.APIKey == "" {
		return nil, errors.New(cfg.Provider + " api key missing")
	}
	model := cfg.Model
	if model == "" {
		model = def.Model
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = def.BaseURL
	}
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}

	// 失败直接回退到模板，不在 SDK 内部重试。
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithBaseURL(baseURL),
		option.WithMaxRetries(0),
	}
	if httpClient != nil {
		opts = append(opts, option.WithHTTPClient(httpClient))
	}
	return &OpenAILLM{Model: model, client: openai.NewClient(opts...)}, nil
}

func (o *OpenAILLM) Complete(ctx context.Context, prompt Prompt) (string, error) {
	params := openai.ChatCompletionNewParams{
		Model: openai.ChatModel(o.Model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(prompt.System),
			openai.UserMessage(prompt.User),
		},
		Temperature: openai.Float(prompt.Temperature),
	}
	if prompt.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(prompt.MaxTokens))
	}

	resp, err := o.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("openai: empty choices")
	}
	content := resp.Choices[0].Message.Content
	if strings.TrimSpace(content) == "" {
		return "", ErrEmptyCompletion
	}
	return content, nil
}
