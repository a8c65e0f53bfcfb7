package redis

import (
	"context"
	"fmt"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/yusuke-j0728/gmail-slack-forwarder/internal/domain"
)

// scanBatchSize SCAN 每次迭代返回的键数提示
const scanBatchSize = 200

// Client 封装旧版去重标记所在的 Redis 连接
type Client struct {
	rdb *goredis.Client
	log *zap.Logger
}

// New 创建 Redis 客户端并验证连接
func New(address, password string, db int, logger *zap.Logger) (*Client, error) {
	rdb := goredis.NewClient(&goredis.Options{
		Addr:         address,
		Password:     password,
		DB:           db,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 2,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// 测试连接
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	if logger == nil {
		logger = zap.NewNop()
	}
	logger.Info("connected to Redis",
		zap.String("address", address),
		zap.Int("db", db),
	)

	return &Client{
		rdb: rdb,
		log: logger,
	}, nil
}

// Close 关闭 Redis 连接
func (c *Client) Close() error {
	if err := c.rdb.Close(); err != nil {
		c.log.Error("failed to close Redis connection", zap.Error(err))
		return err
	}
	return nil
}

// LegacyFlags 读取旧部署留在 Redis 里的"已处理"标记。
// 旧版按 <prefix><messageID> 存一个键，值为处理时刻（RFC3339），
// 本结构把这些键还原为台账行，供一次性迁移导入。
type LegacyFlags struct {
	client *Client
	prefix string
}

// NewLegacyFlags 创建旧版标记读取器
func NewLegacyFlags(client *Client, keyPrefix string) *LegacyFlags {
	return &LegacyFlags{
		client: client,
		prefix: keyPrefix,
	}
}

// Load 扫描全部旧版标记并还原为台账行。
// 值解析不出时间戳的键按当前时刻记录，不中断扫描。
func (f *LegacyFlags) Load() ([]domain.LedgerEntry, error) {
	ctx := context.Background()

	var entries []domain.LedgerEntry
	var cursor uint64
	pattern := f.prefix + "*"

	for {
		keys, next, err := f.client.rdb.Scan(ctx, cursor, pattern, scanBatchSize).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to scan legacy keys: %w", err)
		}

		for _, key := range keys {
			messageID := strings.TrimPrefix(key, f.prefix)
			if messageID == "" {
				continue
			}

			value, err := f.client.rdb.Get(ctx, key).Result()
			if err != nil && err != goredis.Nil {
				return nil, fmt.Errorf("failed to read legacy key %s: %w", key, err)
			}

			recordedAt, err := time.Parse(time.RFC3339, value)
			if err != nil {
				f.client.log.Warn("legacy flag has no parsable timestamp, using current time",
					zap.String("key", key),
				)
				recordedAt = time.Now().UTC()
			}

			entries = append(entries, domain.LedgerEntry{
				MessageID:  messageID,
				RecordedAt: recordedAt,
			})
		}

		cursor = next
		if cursor == 0 {
			break
		}
	}

	f.client.log.Info("legacy flags loaded",
		zap.String("prefix", f.prefix),
		zap.Int("count", len(entries)),
	)
	return entries, nil
}
