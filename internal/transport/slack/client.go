package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/yusuke-j0728/gmail-slack-forwarder/internal/domain"
)

// DefaultAPIBaseURL Slack Web API 的默认入口
const DefaultAPIBaseURL = "https://slack.com/api"

// Config Slack 投递配置
type Config struct {
	Mode       domain.TransportMode // webhook / bot
	WebhookURL string               // webhook 模式必填
	BotToken   string               // bot 模式必填
	APIBaseURL string               // 留空使用 DefaultAPIBaseURL
}

// Client Slack 投递客户端。
// webhook 模式逐条发送独立顶层消息，不支持线程；
// bot 模式经 chat.postMessage 发送，返回的 ts 可作为线程句柄。
type Client struct {
	cfg        Config
	httpClient *http.Client
	logger     *zap.Logger
}

// New 创建 Slack 客户端
func New(cfg Config, logger *zap.Logger) (*Client, error) {
	if !cfg.Mode.Valid() {
		return nil, fmt.Errorf("unsupported transport mode: %q", cfg.Mode)
	}
	if cfg.Mode == domain.TransportWebhook && cfg.WebhookURL == "" {
		return nil, fmt.Errorf("webhook URL is required in webhook mode")
	}
	if cfg.Mode == domain.TransportBot && cfg.BotToken == "" {
		return nil, fmt.Errorf("bot token is required in bot mode")
	}
	if cfg.APIBaseURL == "" {
		cfg.APIBaseURL = DefaultAPIBaseURL
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Client{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		logger: logger,
	}, nil
}

// Mode 返回投递方式
func (c *Client) Mode() domain.TransportMode {
	return c.cfg.Mode
}

// PostMessage 投递一条消息。
// bot 模式返回消息的 ts 作为线程句柄；webhook 模式恒返回空句柄。
func (c *Client) PostMessage(ctx context.Context, unit domain.DispatchUnit) (domain.ThreadRef, error) {
	if c.cfg.Mode == domain.TransportBot {
		return c.postViaBotAPI(ctx, unit)
	}
	return "", c.postViaWebhook(ctx, unit)
}

// webhookPayload Incoming Webhook 的消息体
type webhookPayload struct {
	Text string `json:"text"`
}

// postViaWebhook 经 Incoming Webhook 投递
func (c *Client) postViaWebhook(ctx context.Context, unit domain.DispatchUnit) error {
	payload, err := json.Marshal(webhookPayload{Text: unit.Body})
	if err != nil {
		return fmt.Errorf("marshal webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.WebhookURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send webhook request: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook delivery failed: HTTP %d: %s", resp.StatusCode, string(body))
	}

	c.logger.Debug("webhook message delivered",
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(start)),
	)
	return nil
}

// botPayload chat.postMessage 的请求体
type botPayload struct {
	Channel  string `json:"channel"`
	Text     string `json:"text"`
	ThreadTS string `json:"thread_ts,omitempty"`
}

// botResponse chat.postMessage 的响应体
type botResponse struct {
	OK    bool   `json:"ok"`
	TS    string `json:"ts"`
	Error string `json:"error"`
}

// postViaBotAPI 经 Bot Token API 投递
func (c *Client) postViaBotAPI(ctx context.Context, unit domain.DispatchUnit) (domain.ThreadRef, error) {
	payload, err := json.Marshal(botPayload{
		Channel:  unit.Channel,
		Text:     unit.Body,
		ThreadTS: string(unit.Thread),
	})
	if err != nil {
		return "", fmt.Errorf("marshal bot payload: %w", err)
	}

	url := c.cfg.APIBaseURL + "/chat.postMessage"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("create bot request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	req.Header.Set("Authorization", "Bearer "+c.cfg.BotToken)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("send bot request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read bot response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("bot delivery failed: HTTP %d: %s", resp.StatusCode, string(body))
	}

	var parsed botResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("decode bot response: %w", err)
	}
	if !parsed.OK {
		return "", fmt.Errorf("bot delivery rejected: %s", parsed.Error)
	}

	c.logger.Debug("bot message delivered",
		zap.String("ts", parsed.TS),
		zap.Duration("elapsed", time.Since(start)),
	)
	return domain.ThreadRef(parsed.TS), nil
}
