package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/yusuke-j0728/gmail-slack-forwarder/internal/archiver"
	"github.com/yusuke-j0728/gmail-slack-forwarder/internal/classifier"
	"github.com/yusuke-j0728/gmail-slack-forwarder/internal/config"
	"github.com/yusuke-j0728/gmail-slack-forwarder/internal/dispatcher"
	"github.com/yusuke-j0728/gmail-slack-forwarder/internal/domain"
	"github.com/yusuke-j0728/gmail-slack-forwarder/internal/ledger"
	"github.com/yusuke-j0728/gmail-slack-forwarder/internal/logger"
	"github.com/yusuke-j0728/gmail-slack-forwarder/internal/mailbox"
	"github.com/yusuke-j0728/gmail-slack-forwarder/internal/monitoring"
	"github.com/yusuke-j0728/gmail-slack-forwarder/internal/pipeline"
	"github.com/yusuke-j0728/gmail-slack-forwarder/internal/storage/filesystem"
	"github.com/yusuke-j0728/gmail-slack-forwarder/internal/storage/memory"
	sqlstore "github.com/yusuke-j0728/gmail-slack-forwarder/internal/storage/sql"
	"github.com/yusuke-j0728/gmail-slack-forwarder/internal/transport/slack"
)

// runTimeout 单轮运行的总超时
const runTimeout = 10 * time.Minute

// main 执行一轮 邮箱检索→分类→去重→归档→通知→落账。
func main() {
	cfg, err := config.Load()
	if err != nil {
		reportCritical(nil, err)
		os.Exit(1)
	}

	log, err := logger.NewLogger(logger.Config{
		Level:       cfg.Log.Level,
		Development: cfg.Log.Development,
		LogFile:     cfg.Log.File,
		MaxSize:     100,
		MaxBackups:  3,
		MaxAge:      28,
		Compress:    true,
	})
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
	defer log.Sync()

	log.Info("starting forwarder run",
		zap.String("log_level", cfg.Log.Level),
		zap.Bool("development", cfg.Log.Development),
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	ctx, timeoutCancel := context.WithTimeout(ctx, runTimeout)
	defer timeoutCancel()

	// Slack 投递通道：通知与告警共用
	transport, err := slack.New(slack.Config{
		Mode:       cfg.Slack.Mode,
		WebhookURL: cfg.Slack.WebhookURL,
		BotToken:   cfg.Slack.BotToken,
	}, log)
	if err != nil {
		critical := domain.NewCriticalError("failed to initialize Slack transport", err)
		reportCritical(log, critical)
		os.Exit(1)
	}

	// 台账存储：配置了数据库用 SQL，否则退回内存（开发环境）
	var ledgerStore domain.LedgerStore
	if cfg.Database.Type != "" && cfg.Database.DSN != "" {
		store, err := sqlstore.NewStore(
			cfg.Database.Type,
			cfg.Database.DSN,
			cfg.Database.MaxOpenConns,
			cfg.Database.MaxIdleConns,
			cfg.Database.ConnMaxLifetime,
		)
		if err != nil {
			critical := domain.NewCriticalError("failed to initialize ledger database", err)
			notifyCritical(ctx, transport, cfg.Notify.Channel, critical)
			reportCritical(log, critical)
			os.Exit(1)
		}
		defer store.Close()
		ledgerStore = store
		log.Info("using database ledger", zap.String("type", cfg.Database.Type))
	} else {
		ledgerStore = memory.NewLedgerStore()
		log.Warn("using in-memory ledger, records do not survive restarts")
	}

	blobStore, err := filesystem.NewStore(cfg.Storage.Path)
	if err != nil {
		critical := domain.NewCriticalError("failed to initialize attachment storage", err)
		notifyCritical(ctx, transport, cfg.Notify.Channel, critical)
		reportCritical(log, critical)
		os.Exit(1)
	}

	cls, err := classifier.New(cfg.Run.Patterns, cfg.Run.PatternMode, log)
	if err != nil {
		critical := domain.NewCriticalError("failed to build classifier", err)
		notifyCritical(ctx, transport, cfg.Notify.Channel, critical)
		reportCritical(log, critical)
		os.Exit(1)
	}

	led := ledger.New(ledgerStore, ledger.Config{
		Capacity:      cfg.Ledger.Capacity,
		EvictionBatch: cfg.Ledger.EvictionBatch,
		Slack:         cfg.Ledger.Slack,
	}, log)

	arc := archiver.New(blobStore, archiver.Config{}, log)

	dis := dispatcher.New(transport, dispatcher.Config{
		Channel:      cfg.Notify.Channel,
		PreviewLimit: cfg.Notify.PreviewLimit,
		ChunkSize:    cfg.Notify.ChunkSize,
		MessageDelay: cfg.Notify.MessageDelay,
	}, log)

	alerts := monitoring.NewAlertManager(log)
	alerts.AddReceiver(monitoring.NewLogAlertReceiver(log))
	alerts.AddReceiver(monitoring.NewChatAlertReceiver(transport, cfg.Notify.Channel))

	source, err := mailbox.NewGmailSource(ctx, cfg.Gmail.CredentialsFile, cfg.Gmail.TokenFile, log)
	if err != nil {
		critical := domain.NewCriticalError("failed to initialize Gmail source", err)
		notifyCritical(ctx, transport, cfg.Notify.Channel, critical)
		reportCritical(log, critical)
		os.Exit(1)
	}

	messages, err := source.Search(ctx, cfg.Run.SenderFilter, cfg.Run.MaxMessages)
	if err != nil {
		critical := domain.NewCriticalError("failed to search mailbox", err)
		notifyCritical(ctx, transport, cfg.Notify.Channel, critical)
		reportCritical(log, critical)
		os.Exit(1)
	}

	coordinator := pipeline.New(cls, led, arc, dis, pipeline.Config{
		MaxMessages: cfg.Run.MaxMessages,
	}, log)
	coordinator.SetHandledMarker(sourceMarker{source})
	coordinator.SetAlertManager(alerts)

	summary := coordinator.Run(ctx, messages)

	log.Info("forwarder run completed",
		zap.String("run_id", summary.RunID),
		zap.Int("checked", summary.Checked),
		zap.Int("processed", summary.Processed),
		zap.Int("skipped", summary.Skipped),
		zap.Int("errors", summary.Errors),
		zap.Duration("elapsed", summary.Elapsed),
	)
}

// sourceMarker 把邮箱适配器适配为协调器的回写协作方
type sourceMarker struct {
	source mailbox.Source
}

func (m sourceMarker) MarkHandled(ctx context.Context, msg *domain.Message) error {
	return m.source.MarkHandled(ctx, msg.ID)
}

// notifyCritical 尽力把致命错误推送到聊天频道，失败静默
func notifyCritical(ctx context.Context, transport domain.ChatTransport, channel string, critical *domain.CriticalError) {
	_, _ = transport.PostMessage(ctx, domain.DispatchUnit{
		Channel: channel,
		Body:    fmt.Sprintf("🚨 *メール転送が停止しました*\n%s", critical.Error()),
	})
}

// reportCritical 把致命错误写入日志（日志未就绪时写 stderr）
func reportCritical(log *zap.Logger, err error) {
	var critical *domain.CriticalError
	if !errors.As(err, &critical) {
		critical = domain.NewCriticalError("unexpected startup failure", err)
	}
	if log != nil {
		log.Error("critical failure, run aborted", zap.Error(critical))
		return
	}
	fmt.Fprintf(os.Stderr, "critical failure: %v\n", critical)
}
