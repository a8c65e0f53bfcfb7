package domain

import "context"

// TransportMode 聊天投递方式
type TransportMode string

const (
	TransportWebhook TransportMode = "webhook" // Incoming Webhook，逐条独立发送，不支持线程
	TransportBot     TransportMode = "bot"     // Bot Token API，主消息返回线程句柄，后续消息可挂入线程
)

// Valid 判断投递方式是否合法
func (m TransportMode) Valid() bool {
	return m == TransportWebhook || m == TransportBot
}

// ThreadRef 线程句柄。空值表示无线程（顶层消息）。
type ThreadRef string

// DispatchUnit 一条待投递的聊天消息。
// 一封邮件可产出多条：主通知、若干正文续篇、可选的附件汇总，顺序固定。
type DispatchUnit struct {
	Channel string    `json:"channel"`
	Body    string    `json:"body"`
	Thread  ThreadRef `json:"thread,omitempty"` // 非空时挂入该线程
}

// DeliveryOutcome 一封邮件的投递结果汇总
type DeliveryOutcome struct {
	PrimarySent bool      `json:"primarySent"`
	UnitsSent   int       `json:"unitsSent"`
	UnitsFailed int       `json:"unitsFailed"`
	Thread      ThreadRef `json:"thread,omitempty"` // 主消息的线程句柄（bot 模式）
}

// ChatTransport 聊天投递接口
type ChatTransport interface {
	// PostMessage 投递一条消息，返回可用于线程化后续消息的句柄。
	// webhook 模式恒返回空句柄。
	PostMessage(ctx context.Context, unit DispatchUnit) (ThreadRef, error)

	// Mode 返回投递方式
	Mode() TransportMode
}
