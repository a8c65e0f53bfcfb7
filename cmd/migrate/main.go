package main

import (
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/yusuke-j0728/gmail-slack-forwarder/internal/config"
	"github.com/yusuke-j0728/gmail-slack-forwarder/internal/ledger"
	"github.com/yusuke-j0728/gmail-slack-forwarder/internal/logger"
	"github.com/yusuke-j0728/gmail-slack-forwarder/internal/storage/redis"
	sqlstore "github.com/yusuke-j0728/gmail-slack-forwarder/internal/storage/sql"
)

// main 把旧部署留在 Redis 的"已处理"标记一次性导入台账数据库。
// 幂等：已存在的记录被跳过，可安全重复执行。
func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.NewLogger(logger.Config{
		Level:       cfg.Log.Level,
		Development: true,
	})
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
	defer log.Sync()

	if cfg.Database.Type == "" || cfg.Database.DSN == "" {
		log.Fatal("database.type and database.dsn are required for migration")
	}

	store, err := sqlstore.NewStore(
		cfg.Database.Type,
		cfg.Database.DSN,
		cfg.Database.MaxOpenConns,
		cfg.Database.MaxIdleConns,
		cfg.Database.ConnMaxLifetime,
	)
	if err != nil {
		log.Fatal("failed to initialize ledger database", zap.Error(err))
	}
	defer store.Close()

	client, err := redis.New(cfg.Redis.Address, cfg.Redis.Password, cfg.Redis.DB, log)
	if err != nil {
		log.Fatal("failed to connect to legacy Redis", zap.Error(err))
	}
	defer client.Close()

	led := ledger.New(store, ledger.Config{
		Capacity:      cfg.Ledger.Capacity,
		EvictionBatch: cfg.Ledger.EvictionBatch,
		Slack:         cfg.Ledger.Slack,
	}, log)

	imported, err := led.MigrateLegacy(redis.NewLegacyFlags(client, cfg.Redis.KeyPrefix))
	if err != nil {
		log.Fatal("migration failed", zap.Int("imported_before_failure", imported), zap.Error(err))
	}

	log.Info("migration completed", zap.Int("imported", imported))
}
