package assistant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

// 代理可能直接透传，也可能包一层 data。
var completionPaths = []string{
	"choices.0.message.content",
	"data.choices.0.message.content",
}

type proxyMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type proxyRequest struct {
	Model       string         `json:"model"`
	Messages    []proxyMessage `json:"messages"`
	Temperature float64        `json:"temperature"`
	MaxTokens   int            `json:"max_tokens,omitempty"`
}

// ProxyLLM 把请求转发给自建代理，代理负责鉴权，因此不发送 Authorization。
type ProxyLLM struct {
	URL    string
	Model  string
	client *http.Client
}

// NewProxyLLM 创建代理客户端；model 为空时使用 deepseek 默认模型。
func NewProxyLLM(url, model string, client *http.Client) (*ProxyLLM, error) {
	if url == "" {
		return nil, errors.New("llm proxy url is required")
	}
	if model == "" {
		model = providerDefaults["deepseek"].Model
	}
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}
	return &ProxyLLM{URL: url, Model: model, client: client}, nil
}

func (p *ProxyLLM) Complete(ctx context.Context, prompt Prompt) (string, error) {
	body, err := json.Marshal(proxyRequest{
		Model: p.Model,
		Messages: []proxyMessage{
			{Role: "system", Content: prompt.System},
			{Role: "user", Content: prompt.User},
		},
		Temperature: prompt.Temperature,
		MaxTokens:   prompt.MaxTokens,
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.URL, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("llm proxy request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("llm proxy read body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("llm proxy status %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}
	if !gjson.ValidBytes(data) {
		return "", errors.New("llm proxy returned malformed json")
	}
	for _, path := range completionPaths {
		if v := gjson.GetBytes(data, path); v.Type == gjson.String && strings.TrimSpace(v.String()) != "" {
			return v.String(), nil
		}
	}
	return "", ErrEmptyCompletion
}
