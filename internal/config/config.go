package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/yusuke-j0728/gmail-slack-forwarder/internal/domain"
)

// RunConfig 定义单轮运行的核心业务配置
type RunConfig struct {
	SenderFilter string           // 发件人过滤表达式（邮箱查询语法）
	Patterns     []string         // 主题匹配模式列表（有序）
	PatternMode  domain.MatchMode // 组合方式: any / all
	MaxMessages  int              // 单轮处理的邮件数上限
}

// NotifyConfig 定义通知投递配置
type NotifyConfig struct {
	Channel      string        // 目标频道
	PreviewLimit int           // 主通知正文预览字符数
	ChunkSize    int           // 续篇分块字符数上限
	MessageDelay time.Duration // 连续投递之间的固定间隔
}

// LedgerConfig 定义去重台账容量配置
type LedgerConfig struct {
	Capacity      int // 期望保留的最近记录数
	EvictionBatch int // 单次批量淘汰行数
	Slack         int // 超出容量多少行后触发淘汰
}

// SlackConfig 定义聊天投递通道配置
type SlackConfig struct {
	Mode       domain.TransportMode // webhook 或 bot
	WebhookURL string               // webhook 模式的 Incoming Webhook 地址
	BotToken   string               // bot 模式的 Bot Token
}

// DatabaseConfig 定义台账数据库连接配置（支持 MySQL 和 PostgreSQL）
type DatabaseConfig struct {
	Type            string        // "mysql" 或 "postgres"，留空使用内存台账
	DSN             string        // 数据库连接字符串
	MaxOpenConns    int           // 最大打开连接数，默认 25
	MaxIdleConns    int           // 最大空闲连接数，默认 5
	ConnMaxLifetime time.Duration // 连接最大生命周期，默认 5 分钟
}

// RedisConfig 定义旧版去重标记所在的 Redis（仅供一次性迁移读取）
type RedisConfig struct {
	Address   string
	Password  string
	DB        int
	KeyPrefix string // 旧版"已处理"标记的键前缀
}

// StorageConfig 定义附件归档的文件系统根目录
type StorageConfig struct {
	Path string
}

// GmailConfig 定义 Gmail 凭据文件位置
type GmailConfig struct {
	CredentialsFile string // OAuth 客户端凭据 JSON
	TokenFile       string // 已授权的用户令牌 JSON
}

// LogConfig 定义日志系统配置
type LogConfig struct {
	Level       string
	Development bool
	File        string
}

// Config 是系统核心配置的根结构体
type Config struct {
	Run      RunConfig
	Notify   NotifyConfig
	Ledger   LedgerConfig
	Slack    SlackConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Storage  StorageConfig
	Gmail    GmailConfig
	Log      LogConfig
}

// Load 从环境变量和 .env 文件加载配置
//
// 加载优先级（从高到低）：系统环境变量 > .env 文件 > 默认值。
// 环境变量前缀: GMAILSLACK_，如 GMAILSLACK_RUN_SENDER_FILTER。
// 验证失败返回 *domain.CriticalError：整轮运行在触碰任何邮件之前终止。
func Load() (*Config, error) {
	loadEnvFile()

	viper.SetEnvPrefix("gmailslack")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	viper.SetDefault("run.sender_filter", "")
	viper.SetDefault("run.patterns", "")
	viper.SetDefault("run.pattern_mode", "any")
	viper.SetDefault("run.max_messages", 50)
	viper.SetDefault("notify.channel", "#general")
	viper.SetDefault("notify.preview_limit", 500)
	viper.SetDefault("notify.chunk_size", 3000)
	viper.SetDefault("notify.message_delay", "1s")
	viper.SetDefault("ledger.capacity", 5000)
	viper.SetDefault("ledger.eviction_batch", 500)
	viper.SetDefault("ledger.slack", 100)
	viper.SetDefault("slack.mode", "webhook")
	viper.SetDefault("slack.webhook_url", "")
	viper.SetDefault("slack.bot_token", "")
	viper.SetDefault("database.type", "") // 默认为空，使用内存台账
	viper.SetDefault("database.dsn", "")
	viper.SetDefault("database.max_open_conns", 25)
	viper.SetDefault("database.max_idle_conns", 5)
	viper.SetDefault("database.conn_max_lifetime", "5m")
	viper.SetDefault("redis.address", "localhost:6379")
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("redis.key_prefix", "processed:")
	viper.SetDefault("storage.path", "./data/attachments")
	viper.SetDefault("gmail.credentials_file", "credentials.json")
	viper.SetDefault("gmail.token_file", "token.json")
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.development", false)
	viper.SetDefault("log.file", "")

	patterns := parseList(viper.GetString("run.patterns"))
	if len(patterns) == 0 {
		return nil, domain.NewCriticalError("run.patterns must not be empty", nil)
	}

	mode := domain.MatchMode(strings.ToLower(viper.GetString("run.pattern_mode")))
	if !mode.Valid() {
		return nil, domain.NewCriticalError(
			fmt.Sprintf("invalid run.pattern_mode %q (supported: any, all)", mode), nil)
	}

	transportMode := domain.TransportMode(strings.ToLower(viper.GetString("slack.mode")))
	if !transportMode.Valid() {
		return nil, domain.NewCriticalError(
			fmt.Sprintf("invalid slack.mode %q (supported: webhook, bot)", transportMode), nil)
	}
	if transportMode == domain.TransportWebhook && viper.GetString("slack.webhook_url") == "" {
		return nil, domain.NewCriticalError("slack.webhook_url is required in webhook mode", nil)
	}
	if transportMode == domain.TransportBot && viper.GetString("slack.bot_token") == "" {
		return nil, domain.NewCriticalError("slack.bot_token is required in bot mode", nil)
	}

	messageDelay, err := time.ParseDuration(viper.GetString("notify.message_delay"))
	if err != nil {
		return nil, domain.NewCriticalError("invalid notify.message_delay", err)
	}

	connMaxLifetime, err := time.ParseDuration(viper.GetString("database.conn_max_lifetime"))
	if err != nil {
		connMaxLifetime = 5 * time.Minute
	}

	ledgerCapacity := viper.GetInt("ledger.capacity")
	if ledgerCapacity <= 0 {
		return nil, domain.NewCriticalError("ledger.capacity must be positive", nil)
	}
	evictionBatch := viper.GetInt("ledger.eviction_batch")
	if evictionBatch <= 0 {
		return nil, domain.NewCriticalError("ledger.eviction_batch must be positive", nil)
	}

	cfg := &Config{
		Run: RunConfig{
			SenderFilter: viper.GetString("run.sender_filter"),
			Patterns:     patterns,
			PatternMode:  mode,
			MaxMessages:  viper.GetInt("run.max_messages"),
		},
		Notify: NotifyConfig{
			Channel:      viper.GetString("notify.channel"),
			PreviewLimit: viper.GetInt("notify.preview_limit"),
			ChunkSize:    viper.GetInt("notify.chunk_size"),
			MessageDelay: messageDelay,
		},
		Ledger: LedgerConfig{
			Capacity:      ledgerCapacity,
			EvictionBatch: evictionBatch,
			Slack:         viper.GetInt("ledger.slack"),
		},
		Slack: SlackConfig{
			Mode:       transportMode,
			WebhookURL: viper.GetString("slack.webhook_url"),
			BotToken:   viper.GetString("slack.bot_token"),
		},
		Database: DatabaseConfig{
			Type:            viper.GetString("database.type"),
			DSN:             viper.GetString("database.dsn"),
			MaxOpenConns:    viper.GetInt("database.max_open_conns"),
			MaxIdleConns:    viper.GetInt("database.max_idle_conns"),
			ConnMaxLifetime: connMaxLifetime,
		},
		Redis: RedisConfig{
			Address:   viper.GetString("redis.address"),
			Password:  viper.GetString("redis.password"),
			DB:        viper.GetInt("redis.db"),
			KeyPrefix: viper.GetString("redis.key_prefix"),
		},
		Storage: StorageConfig{
			Path: viper.GetString("storage.path"),
		},
		Gmail: GmailConfig{
			CredentialsFile: viper.GetString("gmail.credentials_file"),
			TokenFile:       viper.GetString("gmail.token_file"),
		},
		Log: LogConfig{
			Level:       viper.GetString("log.level"),
			Development: viper.GetBool("log.development"),
			File:        viper.GetString("log.file"),
		},
	}

	return cfg, nil
}

// parseList 将逗号分隔的字符串解析为字符串切片
func parseList(value string) []string {
	parts := strings.Split(value, ",")
	items := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			items = append(items, trimmed)
		}
	}
	return items
}

// loadEnvFile 尝试加载 .env 文件（可选，静默失败；
// 已存在的环境变量优先级更高，不会被覆盖）
func loadEnvFile() {
	if err := godotenv.Load(".env"); err == nil {
		return
	}
	parentEnv := filepath.Join("..", ".env")
	if _, err := os.Stat(parentEnv); err == nil {
		_ = godotenv.Load(parentEnv)
	}
}
