package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/rs/zerolog"
)

// DefaultPath 是未指定 --config 时尝试读取的文件。
const DefaultPath = "poetry.toml"

// EnvPrefix 是本服务自有环境变量的前缀，层级用 "__" 分隔。
const EnvPrefix = "POETRY_"

// 支持的后端与模型提供方。
const (
	BackendAuto      = "auto"
	BackendPostgREST = "postgrest"
	BackendPostgres  = "postgres"
	BackendMemory    = "memory"

	ProviderAuto     = "auto"
	ProviderDeepSeek = "deepseek"
	ProviderOpenAI   = "openai"
	ProviderOllama   = "ollama"
	ProviderProxy    = "proxy"
	ProviderDisabled = ""
)

// 占位符说明 .env 还没有填写真实值。
var placeholders = []string{"your_project_url", "your_anon_key_here"}

// vendorEnv 兼容各服务商约定俗成的环境变量名。
var vendorEnv = map[string]string{
	"LLM_PROXY_URL":     "llm.proxy_url",
	"DEEPSEEK_API_KEY":  "llm.deepseek_api_key",
	"OPENAI_API_KEY":    "llm.openai_api_key",
	"SUPABASE_URL":      "repository.supabase_url",
	"SUPABASE_KEY":      "repository.supabase_key",
	"SUPABASE_ANON_KEY": "repository.supabase_key",
	"DATABASE_URL":      "repository.database_url",
}

type Config struct {
	Server     ServerConfig     `koanf:"server"`
	LLM        LLMConfig        `koanf:"llm"`
	Repository RepositoryConfig `koanf:"repository"`
	Assistant  AssistantConfig  `koanf:"assistant"`
	Log        LogConfig        `koanf:"log"`
}

type ServerConfig struct {
	Addr            string        `koanf:"addr"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

type LLMConfig struct {
	Provider       string        `koanf:"provider"`
	ProxyURL       string        `koanf:"proxy_url"`
	DeepSeekAPIKey string        `koanf:"deepseek_api_key"`
	OpenAIAPIKey   string        `koanf:"openai_api_key"`
	Model          string        `koanf:"model"`
	BaseURL        string        `koanf:"base_url"`
	OllamaURL      string        `koanf:"ollama_url"`
	OllamaModel    string        `koanf:"ollama_model"`
	Timeout        time.Duration `koanf:"timeout"`
	RatePerSecond  float64       `koanf:"rate_per_second"`
	Burst          int           `koanf:"burst"`
}

type RepositoryConfig struct {
	Backend     string        `koanf:"backend"`
	SupabaseURL string        `koanf:"supabase_url"`
	SupabaseKey string        `koanf:"supabase_key"`
	View        string        `koanf:"view"`
	DatabaseURL string        `koanf:"database_url"`
	Timeout     time.Duration `koanf:"timeout"`
}

type AssistantConfig struct {
	ContextPoems    int `koanf:"context_poems"`
	SuggestionLimit int `koanf:"suggestion_limit"`
}

type LogConfig struct {
	Level  string `koanf:"level"`
	Pretty bool   `koanf:"pretty"`
}

func defaults() map[string]interface{} {
	return map[string]interface{}{
		"server.addr":                ":8080",
		"server.shutdown_timeout":    "10s",
		"llm.provider":               ProviderAuto,
		"llm.timeout":                "60s",
		"llm.rate_per_second":        0.0,
		"llm.burst":                  1,
		"llm.ollama_url":             "http://localhost:11434",
		"repository.backend":         BackendAuto,
		"repository.view":            "poems_view",
		"repository.timeout":         "30s",
		"assistant.context_poems":    3,
		"assistant.suggestion_limit": 5,
		"log.level":                  "info",
		"log.pretty":                 false,
	}
}

// Load 依次读取默认值、TOML 文件和环境变量，后者覆盖前者。
// path 为空时尝试 DefaultPath，文件不存在则跳过；显式指定的文件必须存在。
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if path == "" {
		if _, err := os.Stat(DefaultPath); err == nil {
			path = DefaultPath
		}
	}
	if path != "" {
		if err := k.Load(file.Provider(path), toml.Parser()); err != nil {
			return nil, fmt.Errorf("load config %s: %w", path, err)
		}
	}

	if err := k.Load(env.ProviderWithValue("", ".", vendorKey), nil); err != nil {
		return nil, fmt.Errorf("load vendor env: %w", err)
	}
	if err := k.Load(env.Provider(EnvPrefix, ".", prefixedKey), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.normalize()
	return &cfg, nil
}

// prefixedKey: POETRY_LLM__PROXY_URL -> llm.proxy_url
func prefixedKey(s string) string {
	s = strings.TrimPrefix(s, EnvPrefix)
	return strings.ReplaceAll(strings.ToLower(s), "__", ".")
}

// vendorKey 只保留 vendorEnv 中登记且非空的变量，其余返回空 key 被忽略。
func vendorKey(k, v string) (string, interface{}) {
	if v == "" {
		return "", nil
	}
	return vendorEnv[k], v
}

func (c *Config) normalize() {
	c.LLM.Provider = strings.ToLower(strings.TrimSpace(c.LLM.Provider))
	c.Repository.Backend = strings.ToLower(strings.TrimSpace(c.Repository.Backend))
	if c.Repository.Backend == "" {
		c.Repository.Backend = BackendAuto
	}
	if IsPlaceholder(c.Repository.SupabaseURL) {
		c.Repository.SupabaseURL = ""
	}
	if IsPlaceholder(c.Repository.SupabaseKey) {
		c.Repository.SupabaseKey = ""
	}
}

// IsPlaceholder 判断是否仍是示例占位值。
func IsPlaceholder(v string) bool {
	for _, p := range placeholders {
		if strings.Contains(v, p) {
			return true
		}
	}
	return false
}

// SupabaseConfigured 表示 URL 和 Key 都已填写真实值。
func (r RepositoryConfig) SupabaseConfigured() bool {
	return r.SupabaseURL != "" && r.SupabaseKey != "" &&
		!IsPlaceholder(r.SupabaseURL) && !IsPlaceholder(r.SupabaseKey)
}

// ResolveBackend 把 auto 解析为具体后端：DATABASE_URL 优先，其次 Supabase，最后内存。
func (r RepositoryConfig) ResolveBackend() string {
	if r.Backend != "" && r.Backend != BackendAuto {
		return r.Backend
	}
	switch {
	case r.DatabaseURL != "":
		return BackendPostgres
	case r.SupabaseConfigured():
		return BackendPostgREST
	default:
		return BackendMemory
	}
}

// ResolveProvider 决定使用哪个模型提供方：代理优先，其次显式指定，
// 再按 deepseek、openai 的顺序看哪个 Key 存在；都没有时返回 ProviderDisabled。
func (l LLMConfig) ResolveProvider() string {
	if l.ProxyURL != "" {
		return ProviderProxy
	}
	if l.Provider != "" && l.Provider != ProviderAuto {
		return l.Provider
	}
	switch {
	case l.DeepSeekAPIKey != "":
		return ProviderDeepSeek
	case l.OpenAIAPIKey != "":
		return ProviderOpenAI
	default:
		return ProviderDisabled
	}
}

// APIKey 返回指定提供方的 Key。
func (l LLMConfig) APIKey(provider string) string {
	switch provider {
	case ProviderDeepSeek:
		return l.DeepSeekAPIKey
	case ProviderOpenAI:
		return l.OpenAIAPIKey
	}
	return ""
}

// Validate 校验配置是否自洽。
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New("config is nil")
	}
	if cfg.Server.Addr == "" {
		return errors.New("server addr is required")
	}

	switch cfg.Repository.Backend {
	case BackendAuto, BackendMemory:
	case BackendPostgREST:
		if !cfg.Repository.SupabaseConfigured() {
			return errors.New("postgrest backend requires supabase_url and supabase_key")
		}
	case BackendPostgres:
		if cfg.Repository.DatabaseURL == "" {
			return errors.New("postgres backend requires database_url")
		}
	default:
		return fmt.Errorf("unknown repository backend %q", cfg.Repository.Backend)
	}

	switch p := cfg.LLM.ResolveProvider(); p {
	case ProviderProxy, ProviderDisabled:
	case ProviderDeepSeek, ProviderOpenAI:
		if cfg.LLM.APIKey(p) == "" {
			return fmt.Errorf("llm provider %s requires an api key", p)
		}
	case ProviderOllama:
		if cfg.LLM.OllamaModel == "" {
			return errors.New("llm provider ollama requires ollama_model")
		}
	default:
		return fmt.Errorf("unknown llm provider %q", p)
	}
	if cfg.Repository.Timeout <= 0 {
		return errors.New("repository timeout must be positive")
	}
	if cfg.LLM.RatePerSecond < 0 {
		return errors.New("llm rate_per_second must not be negative")
	}

	if cfg.Assistant.ContextPoems <= 0 {
		return errors.New("assistant context_poems must be positive")
	}
	if cfg.Assistant.SuggestionLimit <= 0 {
		return errors.New("assistant suggestion_limit must be positive")
	}

	if _, err := zerolog.ParseLevel(cfg.Log.Level); err != nil {
		return fmt.Errorf("invalid log level %q: %w", cfg.Log.Level, err)
	}
	return nil
}

// InitConfig 写出一份示例配置文件，文件已存在时报错。
func InitConfig(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("configuration file already exists at %s", path)
	}

	sample := `# 诗词助手配置

[server]
addr = ":8080"
shutdown_timeout = "10s"

[llm]
# auto: 按 deepseek、openai 的顺序选择已填写 Key 的提供方
provider = "auto"
# 设置代理后直接使用代理，不再需要 Key
proxy_url = ""
deepseek_api_key = ""
openai_api_key = ""
model = ""
timeout = "60s"
rate_per_second = 0

[repository]
# auto | postgrest | postgres | memory
backend = "auto"
supabase_url = "your_project_url"
supabase_key = "your_anon_key_here"
view = "poems_view"
database_url = ""
timeout = "30s"

[assistant]
context_poems = 3
suggestion_limit = 5

[log]
level = "info"
pretty = false
`
	return os.WriteFile(path, []byte(sample), 0644)
}
