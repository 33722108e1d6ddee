package repository

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	"autotrader/internal/models"
)

const notificationColumns = `id, timestamp, type, severity, trade_id, opportunity_id, message, meta`

// NotificationRepository - журнал уведомлений движка
type NotificationRepository struct {
	db *sql.DB
}

// NewNotificationRepository создает новый экземпляр репозитория
func NewNotificationRepository(db *sql.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

func scanNotification(row rowScanner) (*models.Notification, error) {
	n := &models.Notification{}
	var (
		tradeID, oppID sql.NullInt64
		meta           []byte
	)
	if err := row.Scan(&n.ID, &n.Timestamp, &n.Type, &n.Severity, &tradeID, &oppID, &n.Message, &meta); err != nil {
		return nil, err
	}
	if tradeID.Valid {
		id := tradeID.Int64
		n.TradeID = &id
	}
	if oppID.Valid {
		id := oppID.Int64
		n.OpportunityID = &id
	}
	if len(meta) > 0 {
		if err := json.Unmarshal(meta, &n.Meta); err != nil {
			return nil, fmt.Errorf("decode meta: %w", err)
		}
	}
	return n, nil
}

func scanNotifications(rows *sql.Rows) ([]*models.Notification, error) {
	defer rows.Close()

	var out []*models.Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// Create сохраняет уведомление и заполняет notif.ID
func (r *NotificationRepository) Create(notif *models.Notification) error {
	var meta []byte
	if len(notif.Meta) > 0 {
		var err error
		meta, err = json.Marshal(notif.Meta)
		if err != nil {
			return fmt.Errorf("encode meta: %w", err)
		}
	}

	if notif.Timestamp.IsZero() {
		notif.Timestamp = time.Now()
	}

	query := `
		INSERT INTO notifications (timestamp, type, severity, trade_id, opportunity_id, message, meta)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`

	return r.db.QueryRow(
		query,
		notif.Timestamp,
		notif.Type,
		notif.Severity,
		notif.TradeID,
		notif.OpportunityID,
		notif.Message,
		meta,
	).Scan(&notif.ID)
}

// GetRecent возвращает последние уведомления, новые первыми
func (r *NotificationRepository) GetRecent(limit int) ([]*models.Notification, error) {
	if limit <= 0 {
		limit = 100
	}

	query := `SELECT ` + notificationColumns + ` FROM notifications ORDER BY timestamp DESC LIMIT $1`

	rows, err := r.db.Query(query, limit)
	if err != nil {
		return nil, err
	}
	return scanNotifications(rows)
}

// GetByTypes возвращает последние уведомления указанных типов
func (r *NotificationRepository) GetByTypes(types []string, limit int) ([]*models.Notification, error) {
	if len(types) == 0 {
		return r.GetRecent(limit)
	}
	if limit <= 0 {
		limit = 100
	}

	query := `SELECT ` + notificationColumns + ` FROM notifications WHERE type = ANY($1) ORDER BY timestamp DESC LIMIT $2`

	rows, err := r.db.Query(query, pq.Array(types), limit)
	if err != nil {
		return nil, err
	}
	return scanNotifications(rows)
}

// DeleteOlderThan удаляет уведомления старше порога
func (r *NotificationRepository) DeleteOlderThan(threshold time.Time) (int64, error) {
	result, err := r.db.Exec(`DELETE FROM notifications WHERE timestamp < $1`, threshold)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
