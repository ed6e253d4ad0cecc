package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// TelegramConfig 定义 Telegram Bot 接入配置
type TelegramConfig struct {
	Token       string // Bot API token，必填
	PollTimeout int    // 长轮询超时（秒），默认 30
	Debug       bool   // 输出 Bot API 调试日志
}

// ProviderConfig 定义临时邮箱提供方（mail.tm 风格 API）的访问配置
type ProviderConfig struct {
	BaseURL     string        // API 基地址，默认 "https://api.mail.tm"
	Timeout     time.Duration // 单次请求超时，默认 10s
	RequestRate float64       // 每秒请求数上限，默认 5
	Burst       int           // 突发请求数，默认 10
}

// DatabaseConfig 定义会话存储数据库配置（支持 MySQL 和 PostgreSQL）
type DatabaseConfig struct {
	Type            string        // 数据库类型: "mysql" 或 "postgres"，留空使用内存存储
	DSN             string        // 数据库连接字符串
	MaxOpenConns    int           // 最大打开连接数，默认 25
	MaxIdleConns    int           // 最大空闲连接数，默认 5
	ConnMaxLifetime time.Duration // 连接最大生命周期，默认 5 分钟
}

// RedisConfig 定义 Redis 配置（用于确认令牌存储，可选）
type RedisConfig struct {
	Address  string // Redis 服务地址，留空使用本地内存缓存
	Password string
	DB       int
}

// LogConfig 定义日志系统配置
type LogConfig struct {
	Level       string // 日志级别: debug, info, warn, error
	Development bool   // 开发模式: 控制台输出与详细堆栈
	File        string // 日志文件路径，留空仅输出到 stdout
}

// OpsConfig 定义运维 HTTP 端点（健康检查与指标）配置
type OpsConfig struct {
	Host string // 监听地址，默认 "0.0.0.0"
	Port int    // 监听端口，默认 8081
}

// ConfirmConfig 定义确认按钮的有效期配置
type ConfirmConfig struct {
	TTL time.Duration // 待确认状态的存活时间，默认 5 分钟
}

// DispatchConfig 定义更新分发协程池配置
type DispatchConfig struct {
	Workers   int // 并发处理协程数，默认 8
	QueueSize int // 任务队列长度，默认 64
}

// Config 是机器人全部子系统配置的根结构体
type Config struct {
	Telegram TelegramConfig
	Provider ProviderConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Log      LogConfig
	Ops      OpsConfig
	Confirm  ConfirmConfig
	Dispatch DispatchConfig
}

// Load 从环境变量和 .env 文件加载配置
//
// 优先级（从高到低）：系统环境变量 > .env 文件 > 默认值。
// 环境变量前缀 TEMPMAIL_BOT_，例如 TEMPMAIL_BOT_TELEGRAM_TOKEN。
func Load() (*Config, error) {
	loadEnvFile()

	v := viper.New()
	v.SetEnvPrefix("tempmail_bot")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("telegram.token", "")
	v.SetDefault("telegram.poll_timeout", 30)
	v.SetDefault("telegram.debug", false)
	v.SetDefault("provider.base_url", "https://api.mail.tm")
	v.SetDefault("provider.timeout", "10s")
	v.SetDefault("provider.request_rate", 5.0)
	v.SetDefault("provider.burst", 10)
	v.SetDefault("database.type", "") // 默认为空，使用内存存储
	v.SetDefault("database.dsn", "")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "5m")
	v.SetDefault("redis.address", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)
	v.SetDefault("log.file", "")
	v.SetDefault("ops.host", "0.0.0.0")
	v.SetDefault("ops.port", 8081)
	v.SetDefault("confirm.ttl", "5m")
	v.SetDefault("dispatch.workers", 8)
	v.SetDefault("dispatch.queue_size", 64)

	token := v.GetString("telegram.token")
	if token == "" {
		return nil, fmt.Errorf("telegram.token is required (set TEMPMAIL_BOT_TELEGRAM_TOKEN)")
	}

	pollTimeout := v.GetInt("telegram.poll_timeout")
	if pollTimeout <= 0 {
		pollTimeout = 30
	}

	baseURL := strings.TrimRight(v.GetString("provider.base_url"), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("provider.base_url must not be empty")
	}

	providerTimeout, err := time.ParseDuration(v.GetString("provider.timeout"))
	if err != nil || providerTimeout <= 0 {
		providerTimeout = 10 * time.Second
	}

	requestRate := v.GetFloat64("provider.request_rate")
	if requestRate <= 0 {
		requestRate = 5.0
	}
	burst := v.GetInt("provider.burst")
	if burst <= 0 {
		burst = 10
	}

	dbType := strings.ToLower(v.GetString("database.type"))
	switch dbType {
	case "", "mysql", "postgres":
	default:
		return nil, fmt.Errorf("unsupported database.type %q (want mysql or postgres)", dbType)
	}
	if dbType != "" && v.GetString("database.dsn") == "" {
		return nil, fmt.Errorf("database.dsn is required when database.type is set")
	}

	connMaxLifetime, err := time.ParseDuration(v.GetString("database.conn_max_lifetime"))
	if err != nil {
		connMaxLifetime = 5 * time.Minute
	}

	confirmTTL, err := time.ParseDuration(v.GetString("confirm.ttl"))
	if err != nil || confirmTTL <= 0 {
		confirmTTL = 5 * time.Minute
	}

	workers := v.GetInt("dispatch.workers")
	if workers <= 0 {
		workers = 8
	}
	queueSize := v.GetInt("dispatch.queue_size")
	if queueSize <= 0 {
		queueSize = 64
	}

	cfg := &Config{
		Telegram: TelegramConfig{
			Token:       token,
			PollTimeout: pollTimeout,
			Debug:       v.GetBool("telegram.debug"),
		},
		Provider: ProviderConfig{
			BaseURL:     baseURL,
			Timeout:     providerTimeout,
			RequestRate: requestRate,
			Burst:       burst,
		},
		Database: DatabaseConfig{
			Type:            dbType,
			DSN:             v.GetString("database.dsn"),
			MaxOpenConns:    v.GetInt("database.max_open_conns"),
			MaxIdleConns:    v.GetInt("database.max_idle_conns"),
			ConnMaxLifetime: connMaxLifetime,
		},
		Redis: RedisConfig{
			Address:  v.GetString("redis.address"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		Log: LogConfig{
			Level:       v.GetString("log.level"),
			Development: v.GetBool("log.development"),
			File:        v.GetString("log.file"),
		},
		Ops: OpsConfig{
			Host: v.GetString("ops.host"),
			Port: v.GetInt("ops.port"),
		},
		Confirm: ConfirmConfig{
			TTL: confirmTTL,
		},
		Dispatch: DispatchConfig{
			Workers:   workers,
			QueueSize: queueSize,
		},
	}

	return cfg, nil
}

// loadEnvFile 尝试加载 .env 文件
//
// 先尝试当前目录，再尝试父目录（从 cmd/ 子目录运行时）。
// 文件不存在时静默跳过，已存在的环境变量不会被覆盖。
func loadEnvFile() {
	if err := godotenv.Load(".env"); err == nil {
		return
	}
	parentEnv := filepath.Join("..", ".env")
	if _, err := os.Stat(parentEnv); err == nil {
		_ = godotenv.Load(parentEnv)
	}
}
