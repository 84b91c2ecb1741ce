package domain

import (
	"time"

	"github.com/google/uuid"
)

// Clock 提供目前時間，測試時可替換成固定時鐘
type Clock interface {
	Now() time.Time
}

// ClockFunc 讓一般函式滿足 Clock
type ClockFunc func() time.Time

// Now implements Clock.
func (f ClockFunc) Now() time.Time { return f() }

// SystemClock 使用 UTC 的系統時鐘
var SystemClock Clock = ClockFunc(func() time.Time { return time.Now().UTC() })

// IDGenerator 產生交易 ID
type IDGenerator func() string

// NewUUID 預設的 ID 產生器
func NewUUID() string {
	return uuid.NewString()
}
