package websocket

import (
	"time"

	"autotrader/internal/bot"
	"autotrader/internal/models"
)

// MessageType определяет тип WebSocket сообщения
type MessageType string

// Типы WebSocket сообщений
const (
	// MessageTypeNotification - событие движка (TRADE_EXECUTED, POSITION_CLOSED и т.д.)
	MessageTypeNotification MessageType = "notification"

	// MessageTypeEngineStatus - состояние движка после каждого цикла
	MessageTypeEngineStatus MessageType = "engineStatus"

	// MessageTypeCycleReport - итог торгового цикла
	MessageTypeCycleReport MessageType = "cycleReport"
)

// BaseMessage - базовая структура для всех WebSocket сообщений
type BaseMessage struct {
	Type      MessageType `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
}

// NotificationMessage - сообщение о новом уведомлении
type NotificationMessage struct {
	BaseMessage
	Data *NotificationData `json:"data"`
}

// NotificationData - данные уведомления
type NotificationData struct {
	// ID уведомления в БД (0, если сохранить не удалось)
	ID int64 `json:"id"`

	Type     string `json:"type"`
	Severity string `json:"severity"`

	TradeID       *int64 `json:"trade_id,omitempty"`
	OpportunityID *int64 `json:"opportunity_id,omitempty"`

	Message string                 `json:"message"`
	Meta    map[string]interface{} `json:"meta,omitempty"`

	Timestamp time.Time `json:"timestamp"`
}

// EngineStatusMessage - снимок состояния движка
type EngineStatusMessage struct {
	BaseMessage
	Data bot.EngineStatus `json:"data"`
}

// CycleReportMessage - итог цикла
//
// Открытая и закрытые сделки передаются целиком, журнал активности нет:
// он доступен через REST.
type CycleReportMessage struct {
	BaseMessage
	Data *bot.CycleReport `json:"data"`
}

// ============ Фабричные функции для создания сообщений ============

// NewNotificationMessage создает сообщение уведомления
func NewNotificationMessage(notif *models.Notification) *NotificationMessage {
	return &NotificationMessage{
		BaseMessage: BaseMessage{
			Type:      MessageTypeNotification,
			Timestamp: time.Now(),
		},
		Data: &NotificationData{
			ID:            notif.ID,
			Type:          notif.Type,
			Severity:      notif.Severity,
			TradeID:       notif.TradeID,
			OpportunityID: notif.OpportunityID,
			Message:       notif.Message,
			Meta:          notif.Meta,
			Timestamp:     notif.Timestamp,
		},
	}
}

// NewEngineStatusMessage создает сообщение состояния движка
func NewEngineStatusMessage(status bot.EngineStatus) *EngineStatusMessage {
	return &EngineStatusMessage{
		BaseMessage: BaseMessage{
			Type:      MessageTypeEngineStatus,
			Timestamp: time.Now(),
		},
		Data: status,
	}
}

// NewCycleReportMessage создает сообщение с итогом цикла
func NewCycleReportMessage(report *bot.CycleReport) *CycleReportMessage {
	return &CycleReportMessage{
		BaseMessage: BaseMessage{
			Type:      MessageTypeCycleReport,
			Timestamp: report.FinishedAt,
		},
		Data: report,
	}
}
