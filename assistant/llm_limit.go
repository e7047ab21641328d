package assistant

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"
)

// RateLimitedLLM 限制对外请求频率，等待期间 ctx 取消视为一次失败。
type RateLimitedLLM struct {
	inner   LLMClient
	limiter *rate.Limiter
}

// NewRateLimitedLLM 每秒最多 perSecond 次，允许 burst 次突发；perSecond <= 0 时直接返回 inner。
func NewRateLimitedLLM(inner LLMClient, perSecond float64, burst int) LLMClient {
	if perSecond <= 0 {
		return inner
	}
	if burst < 1 {
		burst = 1
	}
	return &RateLimitedLLM{inner: inner, limiter: rate.NewLimiter(rate.Limit(perSecond), burst)}
}

func (r *RateLimitedLLM) Complete(ctx context.Context, prompt Prompt) (string, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("llm rate limit: %w", err)
	}
	return r.inner.Complete(ctx, prompt)
}

func (r *RateLimitedLLM) Configured() bool { return IsConfigured(r.inner) }
