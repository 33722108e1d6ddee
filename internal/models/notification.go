package models

import "time"

// Notification представляет событие движка для внешних получателей
type Notification struct {
	ID            int64                  `json:"id" db:"id"`
	Timestamp     time.Time              `json:"timestamp" db:"timestamp"`
	Type          string                 `json:"type" db:"type"`         // TRADE_EXECUTED, POSITION_CLOSED, LIMIT_REACHED, EXECUTION_ERROR
	Severity      string                 `json:"severity" db:"severity"` // info, warn, error
	TradeID       *int64                 `json:"trade_id,omitempty" db:"trade_id"`
	OpportunityID *int64                 `json:"opportunity_id,omitempty" db:"opportunity_id"`
	Message       string                 `json:"message" db:"message"`
	Meta          map[string]interface{} `json:"meta,omitempty" db:"meta"` // JSON в БД
}

// Типы уведомлений
const (
	NotificationTypeTradeExecuted  = "TRADE_EXECUTED"  // открыта позиция
	NotificationTypePositionClosed = "POSITION_CLOSED" // позиция закрыта по TP/SL/trailing
	NotificationTypeLimitReached   = "LIMIT_REACHED"   // дневной лимит или лимит позиций
	NotificationTypeExecutionError = "EXECUTION_ERROR" // ордер не исполнен
)

// Уровни важности
const (
	SeverityInfo  = "info"
	SeverityWarn  = "warn"
	SeverityError = "error"
)

// ActivityEntry - запись журнала активности торгового цикла
type ActivityEntry struct {
	Timestamp time.Time `json:"timestamp"`
	CycleID   string    `json:"cycle_id"`
	Step      string    `json:"step"`
	Outcome   string    `json:"outcome,omitempty"`
	Level     string    `json:"level"`
	Message   string    `json:"message"`
}
