package domain

import (
	"errors"
	"fmt"
)

// 各处理环节的哨兵错误，按 errors.Is 区分处理策略：
// 台账读错误按"未处理"放行（fail-open），写错误记录后吞掉，
// 归档错误按附件隔离，主通知投递失败则整封邮件计为失败。
var (
	ErrLedgerRead      = errors.New("ledger read failed")
	ErrLedgerWrite     = errors.New("ledger write failed")
	ErrArchive         = errors.New("attachment archive failed")
	ErrDispatchPrimary = errors.New("primary notification delivery failed")
)

// CriticalError 启动级错误（配置非法、必需的协作方不可达）。
// 在触碰任何邮件之前终止整轮运行，并尽力向操作者通告。
type CriticalError struct {
	Reason string
	Err    error
}

func (e *CriticalError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("critical: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("critical: %s", e.Reason)
}

func (e *CriticalError) Unwrap() error {
	return e.Err
}

// NewCriticalError 创建启动级错误
func NewCriticalError(reason string, err error) *CriticalError {
	return &CriticalError{Reason: reason, Err: err}
}
