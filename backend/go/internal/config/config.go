package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// RedisConfig 定义了 Redis 数据库的连接配置。
type RedisConfig struct {
	Address  string `yaml:"address"`  // Redis 服务器地址 (例如: "localhost:6379")
	Password string `yaml:"password"` // Redis 密码
	DB       int    `yaml:"db"`       // Redis 数据库编号
	PoolSize int    `yaml:"poolSize"` // 连接池大小，0 使用驱动默认值
	// KeyPrefix 是缓存键的前缀，多个环境共用一个 Redis 时用来隔离
	KeyPrefix   string `yaml:"keyPrefix"`
	DialTimeout string `yaml:"dialTimeout"` // 例如: "5s"
}

// MySQLConfig 定义了 MySQL 数据库的连接配置。
type MySQLConfig struct {
	Address         string `yaml:"address"`         // MySQL 服务器地址
	Username        string `yaml:"username"`        // 用户名
	Password        string `yaml:"password"`        // 密码
	Database        string `yaml:"database"`        // 数据库名称
	MaxOpenConns    int    `yaml:"maxOpenConns"`    // 最大打开连接数
	MaxIdleConns    int    `yaml:"maxIdleConns"`    // 最大空闲连接数
	ConnMaxLifetime int    `yaml:"connMaxLifetime"` // 连接最大生命周期 (秒)
	// SlowQuery 超过该耗时的 SQL 记为慢查询，例如 "200ms"
	SlowQuery string `yaml:"slowQuery"`
}

// MinIOConfig 定义了 MinIO 对象存储的连接配置。
type MinIOConfig struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"accessKey"`
	SecretKey string `yaml:"secretKey"`
	Bucket    string `yaml:"bucket"`
	Region    string `yaml:"region"`
	Secure    bool   `yaml:"secure"`
}

// MongoConfig 定义了 MongoDB 数据库的连接配置。
type MongoConfig struct {
	Address    string `yaml:"address"`
	Username   string `yaml:"username"`
	Password   string `yaml:"password"`
	Database   string `yaml:"database"`
	Collection string `yaml:"collection"` // 轮次记录集合
	// MaxPoolSize 为 0 时使用驱动默认值
	MaxPoolSize    uint64 `yaml:"maxPoolSize"`
	ConnectTimeout string `yaml:"connectTimeout"` // 例如: "10s"
}

// EtcdConfig 定义了 Etcd 服务发现的连接配置。
type EtcdConfig struct {
	Endpoints []string `yaml:"endpoints"` // Etcd 节点地址列表
	Username  string   `yaml:"username"`
	Password  string   `yaml:"password"`
	LeaseTTL  int64    `yaml:"leaseTTL"` // 注册租约（秒）
}

// KafkaConfig 定义了 Kafka 消息队列的连接配置。
type KafkaConfig struct {
	Brokers    []string `yaml:"brokers"`    // Kafka Broker 地址列表
	Topics     []string `yaml:"topics"`     // 启动时确保存在的主题
	EventTopic string   `yaml:"eventTopic"` // 轮次事件发布的主题
}

// DatabaseConfigs 包含所有外部存储的配置，地址为空表示不启用。
type DatabaseConfigs struct {
	Redis   RedisConfig `yaml:"redis"`
	MySQL   MySQLConfig `yaml:"mysql"`
	MinIO   MinIOConfig `yaml:"minio"`
	MongoDB MongoConfig `yaml:"mongodb"`
	Etcd    EtcdConfig  `yaml:"etcd"`
	Kafka   KafkaConfig `yaml:"kafka"`
}

// AppInfo 对应 'app' 部分，包含应用程序的基本信息。
type AppInfo struct {
	Name        string `yaml:"name"`
	Version     string `yaml:"version"`
	Environment string `yaml:"environment"` // 例如: "development", "production"
}

// LoggerConfig 定义了日志记录器的配置。
type LoggerConfig struct {
	Level string `yaml:"level"` // 日志级别 (例如: "info", "debug", "warn", "error")
}

// ServerConfig 定义了 HTTP 服务的监听配置。
type ServerConfig struct {
	Address string `yaml:"address"`
	Mode    string `yaml:"mode"` // gin 模式: debug / release / test
}

// AppConfig 是整个 YAML 文件的根结构，包含了应用程序的所有配置。
type AppConfig struct {
	App        AppInfo          `yaml:"app"`
	Server     ServerConfig     `yaml:"server"`
	LLM        LLMConfig        `yaml:"llm"`
	DataQuery  DataQueryConfig  `yaml:"dataQuery"`
	Agent      AgentConfig      `yaml:"agent"`
	Export     ExportConfig     `yaml:"export"`
	Logger     LoggerConfig     `yaml:"logger"`
	Tracing    TracingConfig    `yaml:"tracing"`
	Databases  DatabaseConfigs  `yaml:"databases"`
	Middleware MiddlewareConfig `yaml:"middleware"`
}

// LLMConfig 包含了大模型调用的配置。
type LLMConfig struct {
	Provider    string  `yaml:"provider"` // "openai" / "ollama" / "gemini"
	Model       string  `yaml:"model"`
	APIKey      string  `yaml:"apiKey"`
	BaseURL     string  `yaml:"baseURL"` // OpenAI 兼容接口地址或 Ollama 地址
	Temperature float32 `yaml:"temperature"`
	Timeout     string  `yaml:"timeout"` // 例如: "120s"
	// Guard 为模型调用单独配置的熔断与限流
	Guard MiddlewareConfig `yaml:"guard"`
}

// DataQueryConfig 是数据仓库查询服务的配置。
type DataQueryConfig struct {
	Transport string          `yaml:"transport"` // "http" 或 "mcp"
	BaseURL   string          `yaml:"baseURL"`
	APIKey    string          `yaml:"apiKey"`
	Timeout   string          `yaml:"timeout"`
	CacheTTL  int             `yaml:"cacheTTL"` // 查询去重缓存（秒），0 表示不缓存
	MCP       MCPServerConfig `yaml:"mcp"`
	// CircuitBreaker 保护 HTTP 传输
	CircuitBreaker CircuitBreakerConfig `yaml:"circuitBreaker"`
}

// MCPServerConfig 描述 MCP 数据服务的连接方式。
type MCPServerConfig struct {
	ServerName string            `yaml:"serverName"`
	Transport  string            `yaml:"transport"` // "stdio" 或 "http-sse"
	Command    string            `yaml:"command"`
	Args       []string          `yaml:"args"`
	URL        string            `yaml:"url"`
	Env        map[string]string `yaml:"env"`
	Tool       string            `yaml:"tool"` // 查询工具名，默认 query_data
}

// AgentConfig 是智能体核心的进程级默认值。
type AgentConfig struct {
	LLMResponseType         string `yaml:"llmResponseType"`
	IsCacheRequest          bool   `yaml:"isCacheRequest"`
	CacheTTL                int    `yaml:"cacheTTL"`
	MaxRetryAttempts        int    `yaml:"maxRetryAttempts"`
	MaxUserCount            int    `yaml:"maxUserCount"`
	MaxDataCount            int    `yaml:"maxDataCount"`
	SplitMaxTokens          int    `yaml:"splitMaxTokens"`
	SplitChunkSize          int    `yaml:"splitChunkSize"`
	SplitChunkOverlap       int    `yaml:"splitChunkOverlap"`
	SplitMaxItemsPerChunk   int    `yaml:"splitMaxItemsPerChunk"`
	SplitUseParallel        bool   `yaml:"splitUseParallel"`
	SplitParallelMaxWorkers int    `yaml:"splitParallelMaxWorkers"`
	SummaryMaxChars         int    `yaml:"summaryMaxChars"`
}

// ExportConfig 是报告文件导出的配置。
type ExportConfig struct {
	Dir           string `yaml:"dir"`           // 本地导出目录
	PublicBaseURL string `yaml:"publicBaseURL"` // 未启用 MinIO 时文件的访问前缀
	LicenseKey    string `yaml:"licenseKey"`    // docx 导出所需的 unioffice 授权
}

// TracingConfig 是链路追踪配置。
type TracingConfig struct {
	Enabled     bool    `yaml:"enabled"`
	Endpoint    string  `yaml:"endpoint"` // OTLP/HTTP 地址，例如 "localhost:4318"
	Insecure    bool    `yaml:"insecure"`
	SampleRate  float64 `yaml:"sampleRate"`
	ServiceName string  `yaml:"serviceName"`
}

// MiddlewareConfig 包含所有中间件的配置。
type MiddlewareConfig struct {
	RateLimiter    RateLimiterConfig    `yaml:"rateLimiter"`
	CircuitBreaker CircuitBreakerConfig `yaml:"circuitBreaker"`
}

// RateLimiterConfig 定义了限流器的配置。
type RateLimiterConfig struct {
	Enabled        bool                 `yaml:"enabled"`
	Algorithm      string               `yaml:"algorithm"` // 支持: "fixedWindow", "slidingLog", "slidingCounter", "leakyBucket", "tokenBucket"
	KeyHeader      string               `yaml:"keyHeader"` // 不为空时按该请求头的值分别限流，例如 X-User-ID
	FixedWindow    FixedWindowConfig    `yaml:"fixedWindow"`
	SlidingLog     SlidingLogConfig     `yaml:"slidingLog"`
	SlidingCounter SlidingCounterConfig `yaml:"slidingCounter"`
	LeakyBucket    LeakyBucketConfig    `yaml:"leakyBucket"`
	TokenBucket    TokenBucketConfig    `yaml:"tokenBucket"`
}

// FixedWindowConfig 定义了固定窗口计数器算法的配置。
type FixedWindowConfig struct {
	Limit  int    `yaml:"limit"`
	Window string `yaml:"window"` // 例如: "1m", "30s"
}

// SlidingLogConfig 定义了滑动窗口日志算法的配置。
type SlidingLogConfig struct {
	Limit  int    `yaml:"limit"`
	Window string `yaml:"window"`
}

// SlidingCounterConfig 定义了滑动窗口计数器算法的配置。
type SlidingCounterConfig struct {
	Limit      int    `yaml:"limit"`
	Window     string `yaml:"window"`
	NumBuckets int    `yaml:"numBuckets"`
}

// LeakyBucketConfig 定义了漏桶算法的配置。
type LeakyBucketConfig struct {
	Rate     float64 `yaml:"rate"` // 每秒速率
	Capacity int     `yaml:"capacity"`
}

// TokenBucketConfig 定义了令牌桶算法的配置。
type TokenBucketConfig struct {
	Rate     float64 `yaml:"rate"` // 每秒速率
	Capacity int     `yaml:"capacity"`
}

// CircuitBreakerConfig 定义了熔断器的配置。
type CircuitBreakerConfig struct {
	Enabled          bool   `yaml:"enabled"`
	FailureThreshold uint32 `yaml:"failureThreshold"`
	SuccessThreshold uint32 `yaml:"successThreshold"`
	Timeout          string `yaml:"timeout"` // 例如: "30s"
}

// 敏感配置允许通过环境变量覆盖
var envOverrides = map[string]func(*AppConfig, string){
	"LLM_API_KEY":        func(c *AppConfig, v string) { c.LLM.APIKey = v },
	"DATA_QUERY_API_KEY": func(c *AppConfig, v string) { c.DataQuery.APIKey = v },
	"MYSQL_PASSWORD":     func(c *AppConfig, v string) { c.Databases.MySQL.Password = v },
	"REDIS_PASSWORD":     func(c *AppConfig, v string) { c.Databases.Redis.Password = v },
	"MINIO_SECRET_KEY":   func(c *AppConfig, v string) { c.Databases.MinIO.SecretKey = v },
	"UNIOFFICE_LICENSE":  func(c *AppConfig, v string) { c.Export.LicenseKey = v },
}

// LoadConfig 函数从指定路径加载并解析 YAML 配置文件。
//
// 参数:
//
//	path: YAML 配置文件的路径。
//
// 返回值:
//
//	*AppConfig: 解析后的应用程序配置结构体，已填充默认值并应用环境变量覆盖。
//	error: 如果文件读取、解析或校验失败，则返回错误。
func LoadConfig(path string) (*AppConfig, error) {
	yamlFile, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("无法读取 YAML 文件 '%s': %w", path, err)
	}
	cfg := Default()
	if err = yaml.Unmarshal(yamlFile, cfg); err != nil {
		return nil, fmt.Errorf("解析 YAML 文件失败: %w", err)
	}

	// .env 文件是可选的
	_ = godotenv.Load()
	for key, apply := range envOverrides {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			apply(cfg, v)
		}
	}

	if err = cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default 返回带默认值的配置。
func Default() *AppConfig {
	return &AppConfig{
		App:    AppInfo{Name: "ai-assistant", Version: "dev", Environment: "development"},
		Server: ServerConfig{Address: ":8080", Mode: "release"},
		LLM: LLMConfig{
			Provider:    "openai",
			Model:       "deepseek-chat",
			Temperature: 0.3,
			Timeout:     "120s",
		},
		DataQuery: DataQueryConfig{
			Transport: "http",
			Timeout:   "60s",
			CacheTTL:  300,
			MCP:       MCPServerConfig{Transport: "stdio", Tool: "query_data"},
		},
		Agent: AgentConfig{
			LLMResponseType:         "report",
			IsCacheRequest:          true,
			CacheTTL:                300,
			MaxRetryAttempts:        3,
			MaxUserCount:            100,
			MaxDataCount:            2000,
			SplitMaxTokens:          100000,
			SplitChunkSize:          100000,
			SplitChunkOverlap:       200,
			SplitMaxItemsPerChunk:   100,
			SplitUseParallel:        true,
			SplitParallelMaxWorkers: 5,
			SummaryMaxChars:         5000,
		},
		Export:  ExportConfig{Dir: "exports"},
		Logger:  LoggerConfig{Level: "info"},
		Tracing: TracingConfig{SampleRate: 1.0, ServiceName: "assistant-service"},
		Databases: DatabaseConfigs{
			Redis:   RedisConfig{KeyPrefix: "assistant:", DialTimeout: "5s"},
			MinIO:   MinIOConfig{Bucket: "ai-assistant-files"},
			MongoDB: MongoConfig{Database: "assistant", Collection: "turns", ConnectTimeout: "10s"},
			Etcd:    EtcdConfig{LeaseTTL: 10},
			Kafka:   KafkaConfig{EventTopic: "assistant_events"},
		},
	}
}

// Validate 校验配置的取值。
func (c *AppConfig) Validate() error {
	switch c.LLM.Provider {
	case "openai", "ollama", "gemini":
	default:
		return fmt.Errorf("不支持的 LLM 提供商: %q", c.LLM.Provider)
	}
	switch c.DataQuery.Transport {
	case "http", "mcp":
	default:
		return fmt.Errorf("不支持的数据查询传输方式: %q", c.DataQuery.Transport)
	}
	switch c.Agent.LLMResponseType {
	case "stream", "report", "invoke":
	default:
		return fmt.Errorf("不支持的 llmResponseType: %q", c.Agent.LLMResponseType)
	}
	limits := map[string]int{
		"agent.cacheTTL":                c.Agent.CacheTTL,
		"agent.maxRetryAttempts":        c.Agent.MaxRetryAttempts,
		"agent.maxDataCount":            c.Agent.MaxDataCount,
		"agent.splitMaxTokens":          c.Agent.SplitMaxTokens,
		"agent.splitChunkSize":          c.Agent.SplitChunkSize,
		"agent.splitChunkOverlap":       c.Agent.SplitChunkOverlap,
		"agent.splitParallelMaxWorkers": c.Agent.SplitParallelMaxWorkers,
	}
	for name, v := range limits {
		if v < 0 {
			return fmt.Errorf("配置项 %s 不能为负数: %d", name, v)
		}
	}
	return nil
}
