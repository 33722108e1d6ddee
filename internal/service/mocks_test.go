package service

import (
	"sync"
	"time"

	"autotrader/internal/models"
	"autotrader/internal/repository"
)

// ============ Mock NotificationRepository ============

type MockNotificationRepository struct {
	mu            sync.Mutex
	notifications []*models.Notification
	createErr     error
	getErr        error
	deleteErr     error
	nextID        int64

	// block задерживает Create до закрытия канала
	block chan struct{}

	lastTypes []string
	lastLimit int
	deletedAt time.Time
}

func NewMockNotificationRepository() *MockNotificationRepository {
	return &MockNotificationRepository{nextID: 1}
}

func (m *MockNotificationRepository) Create(notif *models.Notification) error {
	if m.block != nil {
		<-m.block
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	notif.ID = m.nextID
	m.nextID++
	m.notifications = append(m.notifications, notif)
	return nil
}

func (m *MockNotificationRepository) GetRecent(limit int) ([]*models.Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastTypes = nil
	m.lastLimit = limit
	if m.getErr != nil {
		return nil, m.getErr
	}
	return m.notifications, nil
}

func (m *MockNotificationRepository) GetByTypes(types []string, limit int) ([]*models.Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastTypes = types
	m.lastLimit = limit
	if m.getErr != nil {
		return nil, m.getErr
	}
	var out []*models.Notification
	for _, n := range m.notifications {
		for _, t := range types {
			if n.Type == t {
				out = append(out, n)
			}
		}
	}
	return out, nil
}

func (m *MockNotificationRepository) DeleteOlderThan(threshold time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deletedAt = threshold
	if m.deleteErr != nil {
		return 0, m.deleteErr
	}
	var kept []*models.Notification
	var deleted int64
	for _, n := range m.notifications {
		if n.Timestamp.Before(threshold) {
			deleted++
			continue
		}
		kept = append(kept, n)
	}
	m.notifications = kept
	return deleted, nil
}

func (m *MockNotificationRepository) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.notifications)
}

// ============ Mock WebSocket Hub ============

type MockBroadcaster struct {
	mu            sync.Mutex
	notifications []*models.Notification
}

func (b *MockBroadcaster) BroadcastNotification(notif *models.Notification) {
	b.mu.Lock()
	b.notifications = append(b.notifications, notif)
	b.mu.Unlock()
}

func (b *MockBroadcaster) count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.notifications)
}

// ============ Mock RiskConfigRepository ============

type MockRiskConfigRepository struct {
	active       *models.RiskConfig
	created      []*models.RiskConfig
	getErr       error
	createErr    error
	activateErr  error
	autoTradeErr error
	nextID       int64
}

func (m *MockRiskConfigRepository) GetActive() (*models.RiskConfig, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	return m.active, nil
}

func (m *MockRiskConfigRepository) Create(cfg *models.RiskConfig) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.nextID++
	cfg.ID = m.nextID
	m.created = append(m.created, cfg)
	return nil
}

func (m *MockRiskConfigRepository) Activate(id int64) error {
	if m.activateErr != nil {
		return m.activateErr
	}
	for _, c := range m.created {
		if c.ID == id {
			m.active = c
			return nil
		}
	}
	return repository.ErrRiskConfigNotFound
}

func (m *MockRiskConfigRepository) SetAutoTrade(enabled bool) error {
	if m.autoTradeErr != nil {
		return m.autoTradeErr
	}
	if m.active == nil {
		return repository.ErrRiskConfigNotFound
	}
	m.active.AutoTradeEnabled = enabled
	return nil
}
