package config

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino/components/model"
)

// DefaultWebhookURL 是站点自动化工作流的 webhook 地址。
const DefaultWebhookURL = "https://dahyzz.app.n8n.cloud/webhook/f8ab566a-82d4-44a5-b536-7e2a02a970c3/chat"

// Config 聚合整个服务的配置项。
type Config struct {
	Server  ServerConfig
	Backend BackendConfig
	Widget  WidgetConfig
	Storage StorageConfig
	AI      AIConfig
	Log     LogConfig
}

// Load 从环境变量加载配置。
func Load() (*Config, error) {
	server, err := loadServerConfig()
	if err != nil {
		return nil, err
	}

	backend, err := loadBackendConfig()
	if err != nil {
		return nil, err
	}

	widget, err := loadWidgetConfig()
	if err != nil {
		return nil, err
	}

	storage, err := loadStorageConfig()
	if err != nil {
		return nil, err
	}

	ai, err := loadAIConfig()
	if err != nil {
		return nil, err
	}

	return &Config{
		Server:  server,
		Backend: backend,
		Widget:  widget,
		Storage: storage,
		AI:      ai,
		Log: LogConfig{
			Level:  getEnvOrDefault("LOG_LEVEL", "info"),
			Format: getEnvOrDefault("LOG_FORMAT", "console"),
		},
	}, nil
}

// ServerConfig 描述 HTTP 服务配置。
type ServerConfig struct {
	Addr string
}

// loadServerConfig 解析服务器监听地址。
func loadServerConfig() (ServerConfig, error) {
	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		port = "8080"
	}

	if strings.Contains(port, ":") {
		// 允许用户直接传入 ":8080" 或 "127.0.0.1:8080"。
		return ServerConfig{Addr: port}, nil
	}

	if strings.Contains(port, " ") {
		return ServerConfig{}, fmt.Errorf("invalid PORT value: %q", port)
	}

	return ServerConfig{Addr: ":" + port}, nil
}

// BackendConfig 描述自动化后端（webhook）的调用方式。
type BackendConfig struct {
	URL     string
	Timeout time.Duration
	Breaker BreakerConfig
}

// BreakerConfig 控制 webhook 调用外层的熔断器。
type BreakerConfig struct {
	Enabled     bool
	MaxFailures uint32
	OpenTimeout time.Duration
}

func loadBackendConfig() (BackendConfig, error) {
	timeout, err := parseDurationEnv("BACKEND_TIMEOUT", 30*time.Second)
	if err != nil {
		return BackendConfig{}, err
	}
	if timeout <= 0 {
		return BackendConfig{}, fmt.Errorf("BACKEND_TIMEOUT must be positive, got %s", timeout)
	}

	enabled, err := parseBoolEnv("BREAKER_ENABLED", true)
	if err != nil {
		return BackendConfig{}, err
	}

	maxFailures := uint32(5)
	if override, err := parseOptionalIntEnv("BREAKER_MAX_FAILURES"); err != nil {
		return BackendConfig{}, err
	} else if override != nil {
		if *override < 1 {
			maxFailures = 1
		} else {
			maxFailures = uint32(*override)
		}
	}

	openTimeout, err := parseDurationEnv("BREAKER_OPEN_TIMEOUT", 30*time.Second)
	if err != nil {
		return BackendConfig{}, err
	}

	return BackendConfig{
		URL:     getEnvOrDefault("WEBHOOK_URL", DefaultWebhookURL),
		Timeout: timeout,
		Breaker: BreakerConfig{
			Enabled:     enabled,
			MaxFailures: maxFailures,
			OpenTimeout: openTimeout,
		},
	}, nil
}

// WidgetConfig 描述聊天挂件的外观与动画节奏。
type WidgetConfig struct {
	AssistantName     string
	OpenDelay         time.Duration
	CloseDelay        time.Duration
	ClearOnDisconnect bool
}

func loadWidgetConfig() (WidgetConfig, error) {
	openDelay, err := parseDurationEnv("WIDGET_OPEN_DELAY", 10*time.Millisecond)
	if err != nil {
		return WidgetConfig{}, err
	}

	closeDelay, err := parseDurationEnv("WIDGET_CLOSE_DELAY", 400*time.Millisecond)
	if err != nil {
		return WidgetConfig{}, err
	}

	clearOnDisconnect, err := parseBoolEnv("WIDGET_CLEAR_ON_DISCONNECT", true)
	if err != nil {
		return WidgetConfig{}, err
	}

	return WidgetConfig{
		AssistantName:     getEnvOrDefault("WIDGET_ASSISTANT_NAME", "Nilebyte"),
		OpenDelay:         openDelay,
		CloseDelay:        closeDelay,
		ClearOnDisconnect: clearOnDisconnect,
	}, nil
}

// Storage drivers.
const (
	StorageMemory = "memory"
	StorageSQLite = "sqlite"
)

// StorageConfig 选择消息记录的持久化介质。
type StorageConfig struct {
	Driver string
	Path   string
}

func loadStorageConfig() (StorageConfig, error) {
	driver := strings.ToLower(getEnvOrDefault("STORAGE_DRIVER", StorageMemory))
	switch driver {
	case StorageMemory, StorageSQLite:
	default:
		return StorageConfig{}, fmt.Errorf("invalid STORAGE_DRIVER value %q", driver)
	}

	return StorageConfig{
		Driver: driver,
		Path:   getEnvOrDefault("STORAGE_PATH", "data/widget.db"),
	}, nil
}

// LogConfig 控制日志级别与输出格式。
type LogConfig struct {
	Level  string
	Format string
}

// AIConfig 描述本地自动化后端使用的大模型配置。
type AIConfig struct {
	APIKey      string
	AccessKey   string
	SecretKey   string
	Model       string
	BaseURL     string
	Region      string
	Temperature *float64
	TopP        *float64
	MaxTokens   *int
}

// Enabled 表示是否提供了必需的密钥。
func (c AIConfig) Enabled() bool {
	return c.Model != "" && (c.APIKey != "" || (c.AccessKey != "" && c.SecretKey != ""))
}

// NewChatModel 使用配置创建一个模型实例。
func (c AIConfig) NewChatModel(ctx context.Context) (model.ChatModel, error) {
	if !c.Enabled() {
		return nil, fmt.Errorf("ark credentials or model missing: provide ARK_API_KEY + Model or an AK/SK pair")
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

func loadAIConfig() (AIConfig, error) {
	temperature, err := parseOptionalFloatEnv("ARK_TEMPERATURE")
	if err != nil {
		return AIConfig{}, err
	}

	topP, err := parseOptionalFloatEnv("ARK_TOP_P")
	if err != nil {
		return AIConfig{}, err
	}

	maxTokens, err := parseOptionalIntEnv("ARK_MAX_TOKENS")
	if err != nil {
		return AIConfig{}, err
	}

	return AIConfig{
		APIKey:      strings.TrimSpace(os.Getenv("ARK_API_KEY")),
		AccessKey:   strings.TrimSpace(os.Getenv("ARK_ACCESS_KEY")),
		SecretKey:   strings.TrimSpace(os.Getenv("ARK_SECRET_KEY")),
		Model:       strings.TrimSpace(os.Getenv("Model")),
		BaseURL:     getEnvOrDefault("ARK_BASE_URL", "https://ark.cn-beijing.volces.com/api/v3"),
		Region:      getEnvOrDefault("ARK_REGION", "cn-beijing"),
		Temperature: temperature,
		TopP:        topP,
		MaxTokens:   maxTokens,
	}, nil
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

// parseDurationEnv 接受 "400ms"、"30s" 这类写法，纯数字按毫秒处理。
func parseDurationEnv(key string, defaultValue time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}

	if ms, err := strconv.Atoi(raw); err == nil {
		return time.Duration(ms) * time.Millisecond, nil
	}

	val, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
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
