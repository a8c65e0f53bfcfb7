package monitoring

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/yusuke-j0728/gmail-slack-forwarder/internal/domain"
)

// AlertLevel 告警级别
type AlertLevel string

const (
	AlertLevelInfo     AlertLevel = "info"
	AlertLevelWarning  AlertLevel = "warning"
	AlertLevelCritical AlertLevel = "critical"
)

// Alert 一条运行告警（批次出错摘要或启动级故障）
type Alert struct {
	ID        string     `json:"id"`
	Title     string     `json:"title"`
	Message   string     `json:"message"`
	Level     AlertLevel `json:"level"`
	Component string     `json:"component"`
	Timestamp time.Time  `json:"timestamp"`
}

// AlertReceiver 告警接收器接口
type AlertReceiver interface {
	SendAlert(ctx context.Context, alert *Alert) error
}

// AlertManager 把告警分发给全部接收器。投递失败只记录日志。
type AlertManager struct {
	receivers []AlertReceiver
	logger    *zap.Logger
}

// NewAlertManager 创建告警管理器
func NewAlertManager(logger *zap.Logger) *AlertManager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AlertManager{logger: logger}
}

// AddReceiver 添加告警接收器
func (am *AlertManager) AddReceiver(receiver AlertReceiver) {
	am.receivers = append(am.receivers, receiver)
}

// Trigger 触发告警并分发
func (am *AlertManager) Trigger(ctx context.Context, level AlertLevel, component, title, message string) {
	alert := &Alert{
		ID:        uuid.New().String(),
		Title:     title,
		Message:   message,
		Level:     level,
		Component: component,
		Timestamp: time.Now(),
	}

	for _, receiver := range am.receivers {
		if err := receiver.SendAlert(ctx, alert); err != nil {
			am.logger.Error("failed to send alert",
				zap.String("alert_id", alert.ID),
				zap.Error(err),
			)
		}
	}

	am.logger.Info("alert triggered",
		zap.String("alert_id", alert.ID),
		zap.String("level", string(alert.Level)),
		zap.String("component", alert.Component),
	)
}

// LogAlertReceiver 把告警写入日志
type LogAlertReceiver struct {
	logger *zap.Logger
}

// NewLogAlertReceiver 创建日志告警接收器
func NewLogAlertReceiver(logger *zap.Logger) *LogAlertReceiver {
	return &LogAlertReceiver{logger: logger}
}

// SendAlert 记录告警日志
func (r *LogAlertReceiver) SendAlert(_ context.Context, alert *Alert) error {
	r.logger.Warn("ALERT",
		zap.String("title", alert.Title),
		zap.String("message", alert.Message),
		zap.String("level", string(alert.Level)),
		zap.String("component", alert.Component),
	)
	return nil
}

// ChatAlertReceiver 把告警投递到聊天频道（运行出错摘要、启动级故障通告）
type ChatAlertReceiver struct {
	transport domain.ChatTransport
	channel   string
}

// NewChatAlertReceiver 创建聊天告警接收器
func NewChatAlertReceiver(transport domain.ChatTransport, channel string) *ChatAlertReceiver {
	return &ChatAlertReceiver{transport: transport, channel: channel}
}

// SendAlert 投递告警消息
func (r *ChatAlertReceiver) SendAlert(ctx context.Context, alert *Alert) error {
	icon := "ℹ️"
	switch alert.Level {
	case AlertLevelWarning:
		icon = "⚠️"
	case AlertLevelCritical:
		icon = "🚨"
	}

	unit := domain.DispatchUnit{
		Channel: r.channel,
		Body:    fmt.Sprintf("%s *%s*\n%s", icon, alert.Title, alert.Message),
	}
	_, err := r.transport.PostMessage(ctx, unit)
	return err
}
