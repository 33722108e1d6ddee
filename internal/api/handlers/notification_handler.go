package handlers

import (
	"net/http"
	"strings"
	"time"

	"autotrader/internal/models"
)

// NotificationReader - чтение журнала уведомлений
//
// Реализуется service.NotificationService.
type NotificationReader interface {
	GetNotifications(types []string, limit int) ([]*models.Notification, error)
}

// NotificationHandler отдаёт журнал событий движка
//
// Endpoints:
// - GET /api/v1/notifications - последние 100 уведомлений
// - GET /api/v1/notifications?types=trade_executed,limit_reached - фильтр по типам
// - GET /api/v1/notifications?limit=50 - ограничение количества (максимум 500)
type NotificationHandler struct {
	notificationService NotificationReader
}

// NewNotificationHandler создает новый NotificationHandler с внедрением зависимости
func NewNotificationHandler(notificationService NotificationReader) *NotificationHandler {
	return &NotificationHandler{
		notificationService: notificationService,
	}
}

// GetNotificationsResponse представляет ответ списка уведомлений
type GetNotificationsResponse struct {
	Notifications []NotificationDTO `json:"notifications"`
	Total         int               `json:"total"`
}

// NotificationDTO представляет уведомление в API
type NotificationDTO struct {
	ID            int64                  `json:"id"`
	Timestamp     string                 `json:"timestamp"`
	Type          string                 `json:"type"`
	Severity      string                 `json:"severity"`
	TradeID       *int64                 `json:"trade_id,omitempty"`
	OpportunityID *int64                 `json:"opportunity_id,omitempty"`
	Message       string                 `json:"message"`
	Meta          map[string]interface{} `json:"meta,omitempty"`
}

// GetNotifications возвращает список уведомлений с фильтрацией
//
// GET /api/v1/notifications
//
// Типы: TRADE_EXECUTED, POSITION_CLOSED, LIMIT_REACHED, EXECUTION_ERROR
// (регистр не важен, неизвестные игнорируются сервисом).
func (h *NotificationHandler) GetNotifications(w http.ResponseWriter, r *http.Request) {
	var types []string
	if typesParam := r.URL.Query().Get("types"); typesParam != "" {
		for _, part := range strings.Split(typesParam, ",") {
			if trimmed := strings.TrimSpace(part); trimmed != "" {
				types = append(types, strings.ToUpper(trimmed))
			}
		}
	}
	limit := parseLimit(r, 100, 500)

	notifications, err := h.notificationService.GetNotifications(types, limit)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, CodeInternal, "Failed to get notifications: "+err.Error())
		return
	}

	dtos := make([]NotificationDTO, 0, len(notifications))
	for _, n := range notifications {
		dtos = append(dtos, NotificationDTO{
			ID:            n.ID,
			Timestamp:     n.Timestamp.Format(time.RFC3339),
			Type:          n.Type,
			Severity:      n.Severity,
			TradeID:       n.TradeID,
			OpportunityID: n.OpportunityID,
			Message:       n.Message,
			Meta:          n.Meta,
		})
	}

	respondWithJSON(w, http.StatusOK, GetNotificationsResponse{
		Notifications: dtos,
		Total:         len(dtos),
	})
}
