package config

import (
	"errors"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yusuke-j0728/gmail-slack-forwarder/internal/domain"
)

// setEnv 设置带前缀的环境变量并在测试结束后还原 viper 状态
func setEnv(t *testing.T, kv map[string]string) {
	t.Helper()
	viper.Reset()
	t.Cleanup(viper.Reset)
	for k, v := range kv {
		t.Setenv(k, v)
	}
}

func TestLoad_Defaults(t *testing.T) {
	setEnv(t, map[string]string{
		"GMAILSLACK_RUN_PATTERNS":      `第\d+回.*部会`,
		"GMAILSLACK_SLACK_WEBHOOK_URL": "https://hooks.slack.com/services/T/B/x",
	})

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, []string{`第\d+回.*部会`}, cfg.Run.Patterns)
	assert.Equal(t, domain.MatchAny, cfg.Run.PatternMode)
	assert.Equal(t, domain.TransportWebhook, cfg.Slack.Mode)
	assert.Equal(t, 5000, cfg.Ledger.Capacity)
	assert.Equal(t, 500, cfg.Ledger.EvictionBatch)
	assert.Equal(t, 500, cfg.Notify.PreviewLimit)
	assert.Equal(t, "", cfg.Database.Type) // 默认内存台账
}

func TestLoad_PatternListParsing(t *testing.T) {
	setEnv(t, map[string]string{
		"GMAILSLACK_RUN_PATTERNS":      "会議, 報告 ,請求",
		"GMAILSLACK_RUN_PATTERN_MODE":  "all",
		"GMAILSLACK_SLACK_WEBHOOK_URL": "https://hooks.slack.com/services/T/B/x",
	})

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"会議", "報告", "請求"}, cfg.Run.Patterns)
	assert.Equal(t, domain.MatchAll, cfg.Run.PatternMode)
}

func TestLoad_MissingPatternsIsCritical(t *testing.T) {
	setEnv(t, map[string]string{
		"GMAILSLACK_SLACK_WEBHOOK_URL": "https://hooks.slack.com/services/T/B/x",
	})

	_, err := Load()
	require.Error(t, err)

	var critical *domain.CriticalError
	assert.True(t, errors.As(err, &critical))
}

func TestLoad_ModeValidation(t *testing.T) {
	t.Run("bad pattern mode", func(t *testing.T) {
		setEnv(t, map[string]string{
			"GMAILSLACK_RUN_PATTERNS":     "会議",
			"GMAILSLACK_RUN_PATTERN_MODE": "sometimes",
		})
		_, err := Load()
		assert.Error(t, err)
	})

	t.Run("bot mode requires token", func(t *testing.T) {
		setEnv(t, map[string]string{
			"GMAILSLACK_RUN_PATTERNS": "会議",
			"GMAILSLACK_SLACK_MODE":   "bot",
		})
		_, err := Load()
		assert.Error(t, err)
	})

	t.Run("bot mode with token", func(t *testing.T) {
		setEnv(t, map[string]string{
			"GMAILSLACK_RUN_PATTERNS":    "会議",
			"GMAILSLACK_SLACK_MODE":      "bot",
			"GMAILSLACK_SLACK_BOT_TOKEN": "xoxb-test",
		})
		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, domain.TransportBot, cfg.Slack.Mode)
	})
}
