package domain

import "time"

// Message 表示一封待处理的入站邮件。
// 由邮箱适配器产出，处理过程中不可变，处理结束后不再持有。
type Message struct {
	ID          string        // 邮箱侧的稳定唯一标识（重试间不变）
	ThreadID    string        // 所属会话标识，处理完成后用于标记
	Subject     string        // 邮件主题
	Sender      string        // 发件人
	ReceivedAt  time.Time     // 接收时间
	BodyText    string        // 纯文本正文
	Attachments []*Attachment // 附件列表（保持原始顺序）
}

// Attachment 邮件附件。内容延迟加载，仅在归档时通过 Open 读取。
type Attachment struct {
	Name string                 // 原始文件名
	Size int64                  // 大小（字节）
	Open func() ([]byte, error) // 延迟读取附件内容
}
