package bot

import (
	"time"

	"autotrader/internal/models"
)

// TradeStore - хранилище сделок
//
// Реализуется repository.TradeRepository. Методы безопасны для вызова
// из движка без внешней блокировки.
type TradeStore interface {
	Create(trade *models.Trade) error // заполняет trade.ID
	Update(trade *models.Trade) error
	GetOpen() ([]*models.Trade, error)
	CountAutoTradesSince(since time.Time) (int, error)
	LastAutoTradeTime() (*time.Time, error) // nil, если авто-сделок не было
}

// OpportunityStore - возможности от upstream-пайплайна
type OpportunityStore interface {
	GetActive() ([]*models.Opportunity, error)
	MarkExecuted(id int64) error
}

// RiskConfigStore - конфигурации риска
type RiskConfigStore interface {
	// GetActive возвращает nil без ошибки, если активной конфигурации нет
	GetActive() (*models.RiskConfig, error)
}

// NotificationSink принимает события движка (fire-and-forget, не блокирует)
//
// Реализуется service.NotificationService.
type NotificationSink interface {
	Emit(notif *models.Notification)
}

// CycleObserver получает итог каждого цикла (websocket hub)
//
// Вызывается синхронно из цикла; реализация не должна блокировать.
type CycleObserver interface {
	CycleFinished(report *CycleReport, status EngineStatus)
}

type nopSink struct{}

func (nopSink) Emit(*models.Notification) {}

// newEvent собирает уведомление; Message заполняет получатель по Type и Meta
func newEvent(now time.Time, typ, severity string, tradeID, opportunityID int64, meta map[string]interface{}) *models.Notification {
	n := &models.Notification{
		Timestamp: now,
		Type:      typ,
		Severity:  severity,
		Meta:      meta,
	}
	if tradeID > 0 {
		id := tradeID
		n.TradeID = &id
	}
	if opportunityID > 0 {
		id := opportunityID
		n.OpportunityID = &id
	}
	return n
}
