package config

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino/components/model"
	"gopkg.in/yaml.v3"
)

const (
	defaultServiceName = "medical-rag-chatbot"
	sessionSecretSize  = 32
)

// Config 聚合整个服务的配置项。
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Session   SessionConfig   `yaml:"session"`
	AI        AIConfig        `yaml:"ai"`
	Retrieval RetrievalConfig `yaml:"retrieval"`
	Events    EventsConfig    `yaml:"events"`
}

// Load 依次应用默认值、可选的 YAML 文件 (CONFIG_PATH) 和环境变量。
func Load() (*Config, error) {
	cfg := defaults()

	if err := loadFile(cfg, getEnvOrDefault("CONFIG_PATH", "config.yaml")); err != nil {
		return nil, err
	}

	loaders := []func(*Config) error{
		loadServerConfig,
		loadSessionConfig,
		loadAIConfig,
		loadRetrievalConfig,
		loadEventsConfig,
	}
	for _, load := range loaders {
		if err := load(cfg); err != nil {
			return nil, err
		}
	}

	if len(cfg.Session.Secret) == 0 {
		secret, err := randomSecret()
		if err != nil {
			return nil, err
		}
		cfg.Session.Secret = secret
	}

	return cfg, nil
}

func defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:        ":8080",
			ServiceName: defaultServiceName,
		},
		Session: SessionConfig{
			CookieName: "rag_session",
			MaxAge:     86400,
		},
		AI: AIConfig{
			BaseURL: "https://ark.cn-beijing.volces.com/api/v3",
			Region:  "cn-beijing",
		},
		Retrieval: RetrievalConfig{
			Collection:     "medical-docs",
			TopK:           3,
			OllamaURL:      "http://localhost:11434",
			EmbeddingModel: "nomic-embed-text",
			CacheChain:     true,
		},
		Events: EventsConfig{
			Subject: "rag.chat.turn",
		},
	}
}

// loadFile 读取 YAML 配置文件，文件不存在时直接跳过。
func loadFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

// ServerConfig 描述 HTTP 服务配置。
type ServerConfig struct {
	Addr        string `yaml:"addr"`
	ServiceName string `yaml:"service_name"`
}

// loadServerConfig 解析服务器监听地址。
func loadServerConfig(cfg *Config) error {
	port := strings.TrimSpace(os.Getenv("PORT"))
	if port != "" {
		addr, err := parseAddr(port)
		if err != nil {
			return err
		}
		cfg.Server.Addr = addr
	}

	cfg.Server.ServiceName = getEnvOrDefault("SERVICE_NAME", cfg.Server.ServiceName)
	return nil
}

func parseAddr(port string) (string, error) {
	if strings.Contains(port, " ") {
		return "", fmt.Errorf("invalid PORT value: %q", port)
	}
	if strings.Contains(port, ":") {
		// 允许用户直接传入 ":8080" 或 "127.0.0.1:8080"。
		return port, nil
	}
	return ":" + port, nil
}

// SessionConfig 描述浏览器会话 cookie 的签名与生命周期。
type SessionConfig struct {
	// Secret 为空时在启动时随机生成，进程重启后旧会话失效。
	Secret     []byte `yaml:"-"`
	CookieName string `yaml:"cookie_name"`
	MaxAge     int    `yaml:"max_age"`
	Secure     bool   `yaml:"secure"`
}

func loadSessionConfig(cfg *Config) error {
	if secret := strings.TrimSpace(os.Getenv("SESSION_SECRET")); secret != "" {
		cfg.Session.Secret = []byte(secret)
	}
	cfg.Session.CookieName = getEnvOrDefault("SESSION_COOKIE_NAME", cfg.Session.CookieName)

	maxAge, err := parseOptionalIntEnv("SESSION_MAX_AGE")
	if err != nil {
		return err
	}
	if maxAge != nil {
		cfg.Session.MaxAge = *maxAge
	}

	secure, err := parseBoolEnv("SESSION_SECURE", cfg.Session.Secure)
	if err != nil {
		return err
	}
	cfg.Session.Secure = secure
	return nil
}

func randomSecret() ([]byte, error) {
	secret := make([]byte, sessionSecretSize)
	if _, err := rand.Read(secret); err != nil {
		return nil, fmt.Errorf("generate session secret: %w", err)
	}
	return secret, nil
}

// AIConfig 描述大模型相关配置。
type AIConfig struct {
	APIKey      string   `yaml:"-"`
	AccessKey   string   `yaml:"-"`
	SecretKey   string   `yaml:"-"`
	Model       string   `yaml:"model"`
	BaseURL     string   `yaml:"base_url"`
	Region      string   `yaml:"region"`
	Temperature *float64 `yaml:"temperature"`
	TopP        *float64 `yaml:"top_p"`
	MaxTokens   *int     `yaml:"max_tokens"`
}

// Enabled 表示是否提供了必需的密钥。
func (c AIConfig) Enabled() bool {
	return c.Model != "" && (c.APIKey != "" || (c.AccessKey != "" && c.SecretKey != ""))
}

// NewChatModel 使用配置创建一个模型实例。
func (c AIConfig) NewChatModel(ctx context.Context) (model.ChatModel, error) {
	if !c.Enabled() {
		return nil, fmt.Errorf("Ark 凭证或模型配置缺失，至少提供 ARK_API_KEY + Model 或 AK/SK 组合")
	}

	var temperature *float32
	if c.Temperature != nil {
		val := float32(*c.Temperature)
		temperature = &val
	}

	var topP *float32
	if c.TopP != nil {
		val := float32(*c.TopP)
		topP = &val
	}

	cfg := &ark.ChatModelConfig{
		BaseURL:     c.BaseURL,
		Region:      c.Region,
		APIKey:      c.APIKey,
		AccessKey:   c.AccessKey,
		SecretKey:   c.SecretKey,
		Model:       c.Model,
		MaxTokens:   c.MaxTokens,
		Temperature: temperature,
		TopP:        topP,
	}

	return ark.NewChatModel(ctx, cfg)
}

func loadAIConfig(cfg *Config) error {
	temperature, err := parseOptionalFloatEnv("ARK_TEMPERATURE")
	if err != nil {
		return err
	}
	if temperature != nil {
		cfg.AI.Temperature = temperature
	}

	topP, err := parseOptionalFloatEnv("ARK_TOP_P")
	if err != nil {
		return err
	}
	if topP != nil {
		cfg.AI.TopP = topP
	}

	maxTokens, err := parseOptionalIntEnv("ARK_MAX_TOKENS")
	if err != nil {
		return err
	}
	if maxTokens != nil {
		cfg.AI.MaxTokens = maxTokens
	}

	cfg.AI.APIKey = strings.TrimSpace(os.Getenv("ARK_API_KEY"))
	cfg.AI.AccessKey = strings.TrimSpace(os.Getenv("ARK_ACCESS_KEY"))
	cfg.AI.SecretKey = strings.TrimSpace(os.Getenv("ARK_SECRET_KEY"))
	cfg.AI.Model = getEnvOrDefault("Model", cfg.AI.Model)
	cfg.AI.BaseURL = getEnvOrDefault("ARK_BASE_URL", cfg.AI.BaseURL)
	cfg.AI.Region = getEnvOrDefault("ARK_REGION", cfg.AI.Region)
	return nil
}

// RetrievalConfig 描述向量检索 (pgvector + Ollama 向量化) 相关配置。
type RetrievalConfig struct {
	DatabaseURL    string `yaml:"-"`
	Collection     string `yaml:"collection"`
	TopK           int    `yaml:"top_k"`
	OllamaURL      string `yaml:"ollama_url"`
	EmbeddingModel string `yaml:"embedding_model"`
	CacheChain     bool   `yaml:"cache_chain"`
}

// Enabled 表示是否配置了向量库连接。
func (c RetrievalConfig) Enabled() bool {
	return c.DatabaseURL != ""
}

func loadRetrievalConfig(cfg *Config) error {
	cfg.Retrieval.DatabaseURL = strings.TrimSpace(os.Getenv("DATABASE_URL"))
	cfg.Retrieval.Collection = getEnvOrDefault("RAG_COLLECTION", cfg.Retrieval.Collection)
	cfg.Retrieval.OllamaURL = getEnvOrDefault("OLLAMA_URL", cfg.Retrieval.OllamaURL)
	cfg.Retrieval.EmbeddingModel = getEnvOrDefault("EMBEDDING_MODEL", cfg.Retrieval.EmbeddingModel)

	topK, err := parseOptionalIntEnv("RAG_TOP_K")
	if err != nil {
		return err
	}
	if topK != nil {
		cfg.Retrieval.TopK = *topK
	}
	if cfg.Retrieval.TopK < 1 {
		cfg.Retrieval.TopK = 1
	}

	cacheChain, err := parseBoolEnv("QA_CACHE_CHAIN", cfg.Retrieval.CacheChain)
	if err != nil {
		return err
	}
	cfg.Retrieval.CacheChain = cacheChain
	return nil
}

// EventsConfig 描述对话事件投递 (NATS) 配置，URL 为空时不投递。
type EventsConfig struct {
	NatsURL   string `yaml:"nats_url"`
	NatsToken string `yaml:"-"`
	Subject   string `yaml:"subject"`
}

// Enabled 表示是否配置了 NATS 地址。
func (c EventsConfig) Enabled() bool {
	return c.NatsURL != ""
}

func loadEventsConfig(cfg *Config) error {
	cfg.Events.NatsURL = getEnvOrDefault("NATS_URL", cfg.Events.NatsURL)
	cfg.Events.NatsToken = strings.TrimSpace(os.Getenv("NATS_TOKEN"))
	cfg.Events.Subject = getEnvOrDefault("EVENTS_SUBJECT", cfg.Events.Subject)
	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func parseBoolEnv(key string, defaultValue bool) (bool, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}

	val, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	return val, nil
}

func parseOptionalFloatEnv(key string) (*float64, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}

func parseOptionalIntEnv(key string) (*int, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.Atoi(value)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}
