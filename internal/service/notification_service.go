package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"autotrader/internal/bot"
	"autotrader/internal/models"
	"autotrader/pkg/utils"
)

// NotificationStore - хранилище уведомлений
//
// Реализуется repository.NotificationRepository.
type NotificationStore interface {
	Create(notif *models.Notification) error
	GetRecent(limit int) ([]*models.Notification, error)
	GetByTypes(types []string, limit int) ([]*models.Notification, error)
	DeleteOlderThan(threshold time.Time) (int64, error)
}

// WebSocketBroadcaster - интерфейс для отправки WebSocket сообщений
//
// Позволяет избежать циклических зависимостей между пакетами
// и упрощает тестирование (можно подставить mock)
type WebSocketBroadcaster interface {
	BroadcastNotification(notif *models.Notification)
}

// DefaultNotificationBuffer - ёмкость очереди по умолчанию
const DefaultNotificationBuffer = 256

// NotificationService доставляет события движка получателям.
//
// Emit никогда не блокирует торговый цикл: событие кладётся в буферизованную
// очередь, а отдельный воркер сохраняет его в БД и рассылает через WebSocket.
// При переполнении очереди событие отбрасывается и учитывается в метриках.
type NotificationService struct {
	repo   NotificationStore
	wsHub  WebSocketBroadcaster
	logger *utils.Logger

	queue   chan *models.Notification
	stop    chan struct{}
	done    chan struct{}
	started atomic.Bool
	stopped atomic.Bool
	once    sync.Once

	delivered atomic.Uint64
	dropped   atomic.Uint64
}

// NewNotificationService создает сервис с очередью на buffer событий
func NewNotificationService(repo NotificationStore, buffer int, logger *utils.Logger) *NotificationService {
	if buffer <= 0 {
		buffer = DefaultNotificationBuffer
	}
	if logger == nil {
		logger = utils.L()
	}
	return &NotificationService{
		repo:   repo,
		logger: logger.WithComponent("notifications"),
		queue:  make(chan *models.Notification, buffer),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
}

// SetWebSocketHub устанавливает WebSocket hub для broadcast уведомлений.
//
// Вызывается до Start.
func (s *NotificationService) SetWebSocketHub(hub WebSocketBroadcaster) {
	s.wsHub = hub
}

// Start запускает воркер доставки
func (s *NotificationService) Start() {
	if !s.started.CompareAndSwap(false, true) {
		return
	}
	go s.run()
}

// Stop останавливает воркер, доставив уже принятые события
func (s *NotificationService) Stop() {
	s.once.Do(func() {
		s.stopped.Store(true)
		close(s.stop)
		if s.started.Load() {
			<-s.done
		}
	})
}

// Emit принимает событие движка (bot.NotificationSink)
func (s *NotificationService) Emit(notif *models.Notification) {
	if notif == nil {
		return
	}
	if notif.Message == "" {
		notif.Message = FormatMessage(notif)
	}

	if s.stopped.Load() {
		s.drop(notif, "service stopped")
		return
	}

	select {
	case s.queue <- notif:
	default:
		s.drop(notif, "queue full")
	}
}

func (s *NotificationService) drop(notif *models.Notification, reason string) {
	s.dropped.Add(1)
	bot.RecordNotificationDropped()
	s.logger.Warn("notification dropped",
		utils.String("type", notif.Type),
		utils.Reason(reason))
}

// run - цикл воркера
func (s *NotificationService) run() {
	defer close(s.done)

	for {
		select {
		case notif := <-s.queue:
			s.deliver(notif)
		case <-s.stop:
			// Дочищаем очередь
			for {
				select {
				case notif := <-s.queue:
					s.deliver(notif)
				default:
					return
				}
			}
		}
	}
}

// deliver сохраняет и рассылает событие; ошибка БД не мешает рассылке
func (s *NotificationService) deliver(notif *models.Notification) {
	if err := s.repo.Create(notif); err != nil {
		s.logger.Error("failed to persist notification",
			utils.String("type", notif.Type),
			utils.Err(err))
	}

	if s.wsHub != nil {
		s.wsHub.BroadcastNotification(notif)
	}
	s.delivered.Add(1)
}

// Stats возвращает счётчики доставленных и отброшенных событий
func (s *NotificationService) Stats() (delivered, dropped uint64) {
	return s.delivered.Load(), s.dropped.Load()
}

// GetNotifications возвращает список уведомлений с фильтрацией.
//
// Пустой types - все типы. Неизвестные типы отбрасываются.
func (s *NotificationService) GetNotifications(types []string, limit int) ([]*models.Notification, error) {
	// Устанавливаем дефолтный лимит
	if limit <= 0 {
		limit = 100
	}

	// Ограничиваем максимальный лимит
	if limit > 500 {
		limit = 500
	}

	// Нормализуем типы (приводим к верхнему регистру)
	normalizedTypes := make([]string, 0, len(types))
	for _, t := range types {
		normalized := strings.ToUpper(strings.TrimSpace(t))
		if normalized != "" && isValidNotificationType(normalized) {
			normalizedTypes = append(normalizedTypes, normalized)
		}
	}

	if len(normalizedTypes) > 0 {
		return s.repo.GetByTypes(normalizedTypes, limit)
	}

	// Если типы не указаны (или все неизвестны), возвращаем все
	return s.repo.GetRecent(limit)
}

// RunRetention периодически удаляет уведомления старше retention
func (s *NotificationService) RunRetention(ctx context.Context, retention, every time.Duration) {
	if retention <= 0 || every <= 0 {
		return
	}

	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.CleanupOlderThan(time.Now().Add(-retention))
		}
	}
}

// CleanupOlderThan удаляет уведомления старше threshold
func (s *NotificationService) CleanupOlderThan(threshold time.Time) int64 {
	deleted, err := s.repo.DeleteOlderThan(threshold)
	if err != nil {
		s.logger.Error("notification cleanup failed", utils.Err(err))
		return 0
	}
	if deleted > 0 {
		s.logger.Info("old notifications removed", utils.Int64("deleted", deleted))
	}
	return deleted
}

// isValidNotificationType проверяет, является ли тип допустимым.
func isValidNotificationType(notifType string) bool {
	switch notifType {
	case models.NotificationTypeTradeExecuted,
		models.NotificationTypePositionClosed,
		models.NotificationTypeLimitReached,
		models.NotificationTypeExecutionError:
		return true
	}
	return false
}

// ============ Текст уведомлений ============

// FormatMessage строит человекочитаемый текст по Type и Meta
func FormatMessage(n *models.Notification) string {
	m := n.Meta
	switch n.Type {
	case models.NotificationTypeTradeExecuted:
		return fmt.Sprintf("Открыта позиция %s %s/%s: размер %.2f по %.4f (TP %.4f, SL %.4f)",
			metaString(m, "direction"), metaString(m, "platform"), metaString(m, "market_id"),
			metaFloat(m, "position_size"), metaFloat(m, "entry_price"),
			metaFloat(m, "take_profit"), metaFloat(m, "stop_loss"))

	case models.NotificationTypePositionClosed:
		return fmt.Sprintf("Позиция %s/%s закрыта (%s): %.4f → %.4f, PnL %.2f (%.1f%%)",
			metaString(m, "platform"), metaString(m, "market_id"), closeReasonText(metaString(m, "reason")),
			metaFloat(m, "entry_price"), metaFloat(m, "exit_price"),
			metaFloat(m, "pnl"), metaFloat(m, "pnl_percent"))

	case models.NotificationTypeLimitReached:
		switch metaString(m, "reason") {
		case bot.DenyDailyLimit:
			return fmt.Sprintf("Достигнут дневной лимит сделок: %.0f из %.0f",
				metaFloat(m, "daily_trades"), metaFloat(m, "max_daily_trades"))
		case bot.GateMaxOpenPositions:
			return fmt.Sprintf("Достигнут лимит открытых позиций: %.0f из %.0f",
				metaFloat(m, "open_positions"), metaFloat(m, "max_open_positions"))
		}
		return "Достигнут торговый лимит: " + metaString(m, "reason")

	case models.NotificationTypeExecutionError:
		if market := metaString(m, "market_id"); market != "" {
			return fmt.Sprintf("Ордер %s/%s не исполнен: %s",
				metaString(m, "platform"), market, metaString(m, "error"))
		}
		return "Ошибка исполнения: " + metaString(m, "error")
	}
	return n.Type
}

func closeReasonText(reason string) string {
	switch reason {
	case models.CloseReasonTakeProfit:
		return "take profit"
	case models.CloseReasonStopLoss:
		return "stop loss"
	case models.CloseReasonTrailingStop:
		return "trailing stop"
	}
	return reason
}

func metaString(m map[string]interface{}, key string) string {
	if v, ok := m[key]; ok && v != nil {
		return fmt.Sprint(v)
	}
	return ""
}

// metaFloat читает число из Meta (float64 или int после JSON, int из движка)
func metaFloat(m map[string]interface{}, key string) float64 {
	switch v := m[key].(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	case int64:
		return float64(v)
	}
	return 0
}
