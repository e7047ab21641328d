package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"poetry_companion/assistant"
	"poetry_companion/config"
	"poetry_companion/poetry"
)

const defaultRepositoryTimeout = 30 * time.Second

func setupLogging(cfg config.LogConfig) {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	if cfg.Pretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
}

// buildAssistant 按配置组装仓库和模型客户端，返回的 close 用于释放连接池。
func buildAssistant(ctx context.Context, cfg *config.Config) (*assistant.Assistant, poetry.Repository, func(), error) {
	repo, closeRepo, err := buildRepository(ctx, cfg)
	if err != nil {
		return nil, nil, nil, err
	}
	llm, err := buildLLM(cfg.LLM)
	if err != nil {
		closeRepo()
		return nil, nil, nil, err
	}
	a, err := assistant.NewAssistant(repo, llm,
		assistant.WithContextPoems(cfg.Assistant.ContextPoems),
		assistant.WithSuggestionLimit(cfg.Assistant.SuggestionLimit),
	)
	if err != nil {
		closeRepo()
		return nil, nil, nil, err
	}
	return a, repo, closeRepo, nil
}

func buildRepository(ctx context.Context, cfg *config.Config) (poetry.Repository, func(), error) {
	noop := func() {}
	backend := cfg.Repository.ResolveBackend()
	switch backend {
	case config.BackendPostgres:
		repo, err := poetry.NewPostgresRepository(ctx, cfg.Repository.DatabaseURL, cfg.Repository.View)
		if err != nil {
			return nil, nil, err
		}
		log.Info().Str("backend", backend).Msg("poem repository ready")
		return repo, repo.Close, nil
	case config.BackendPostgREST:
		repo, err := newPostgREST(cfg)
		if err != nil {
			return nil, nil, err
		}
		log.Info().Str("backend", backend).Str("url", cfg.Repository.SupabaseURL).Msg("poem repository ready")
		return repo, noop, nil
	case config.BackendMemory:
		log.Warn().Msg("no poem store configured, using built-in sample poems")
		return poetry.NewSeededRepository(), noop, nil
	default:
		return nil, nil, fmt.Errorf("unknown repository backend %q", backend)
	}
}

func newPostgREST(cfg *config.Config) (*poetry.PostgRESTRepository, error) {
	return poetry.NewPostgRESTRepository(poetry.PostgRESTConfig{
		BaseURL: cfg.Repository.SupabaseURL,
		APIKey:  cfg.Repository.SupabaseKey,
		View:    cfg.Repository.View,
	}, repositoryHTTPClient(cfg.Repository))
}

// repositoryHTTPClient 与模型请求的超时分开配置，未设置时退回 30 秒。
func repositoryHTTPClient(cfg config.RepositoryConfig) *http.Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultRepositoryTimeout
	}
	return &http.Client{Timeout: timeout}
}

// buildLLM 未配置任何提供方时返回 DisabledLLM，助手退回模板回复。
func buildLLM(cfg config.LLMConfig) (assistant.LLMClient, error) {
	httpClient := &http.Client{Timeout: cfg.Timeout}

	var (
		client assistant.LLMClient
		err    error
	)
	provider := cfg.ResolveProvider()
	switch provider {
	case config.ProviderProxy:
		client, err = assistant.NewProxyLLM(cfg.ProxyURL, cfg.Model, httpClient)
	case config.ProviderDeepSeek, config.ProviderOpenAI:
		client, err = assistant.NewOpenAILLMFromConfig(&assistant.LLMSettings{
			Provider: provider,
			Model:    cfg.Model,
			APIKey:   cfg.APIKey(provider),
			BaseURL:  cfg.BaseURL,
		}, httpClient)
	case config.ProviderOllama:
		client, err = assistant.NewOllamaLLM(cfg.OllamaURL, cfg.OllamaModel)
	case config.ProviderDisabled:
		log.Info().Msg("no llm configured, replies come from templates")
		return assistant.DisabledLLM{}, nil
	default:
		return nil, fmt.Errorf("llm provider %s not supported", provider)
	}
	if err != nil {
		return nil, err
	}
	log.Info().Str("provider", provider).Msg("llm client ready")
	return assistant.NewRateLimitedLLM(client, cfg.RatePerSecond, cfg.Burst), nil
}
