package handlers

import (
	"context"
	"sync"
	"time"

	"autotrader/internal/bot"
	"autotrader/internal/models"
	"autotrader/internal/repository"
	"autotrader/internal/service"
)

// ============ Mock Engine ============

type MockEngine struct {
	mu       sync.Mutex
	running  bool
	runErr   error
	startErr error
	report   *bot.CycleReport
	activity []models.ActivityEntry

	startCtx  context.Context
	stopCalls int
	lastLimit int
}

func (m *MockEngine) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.startErr != nil {
		return m.startErr
	}
	m.startCtx = ctx
	m.running = true
	return nil
}

func (m *MockEngine) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopCalls++
	m.running = false
}

func (m *MockEngine) IsRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

func (m *MockEngine) RunCycleNow(ctx context.Context) (*bot.CycleReport, error) {
	if m.runErr != nil {
		return nil, m.runErr
	}
	return m.report, nil
}

func (m *MockEngine) Status() bot.EngineStatus {
	return bot.EngineStatus{Running: m.IsRunning(), DailyTradeCount: 3, OpenPositions: 1}
}

func (m *MockEngine) Activity(limit int) []models.ActivityEntry {
	m.lastLimit = limit
	if limit < len(m.activity) {
		return m.activity[:limit]
	}
	return m.activity
}

func (m *MockEngine) MonitorStats() bot.MonitorStats {
	return bot.MonitorStats{Checks: 10, Closed: 2, Skipped: 1}
}

// ============ Mock Trade Reader ============

type MockTradeReader struct {
	trades     []*models.Trade
	getErr     error
	pnlErr     error
	totalPnl   float64
	lastStatus string
	lastLimit  int
}

func (m *MockTradeReader) GetRecent(status string, limit int) ([]*models.Trade, error) {
	m.lastStatus = status
	m.lastLimit = limit
	if m.getErr != nil {
		return nil, m.getErr
	}
	var out []*models.Trade
	for _, t := range m.trades {
		if status == "" || t.Status == status {
			out = append(out, t)
		}
	}
	return out, nil
}

func (m *MockTradeReader) GetByID(id int64) (*models.Trade, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	for _, t := range m.trades {
		if t.ID == id {
			return t, nil
		}
	}
	return nil, repository.ErrTradeNotFound
}

func (m *MockTradeReader) GetTotalPnl() (float64, error) {
	return m.totalPnl, m.pnlErr
}

// ============ Mock Notification Reader ============

type MockNotificationReader struct {
	notifications []*models.Notification
	err           error
	lastTypes     []string
	lastLimit     int
}

func (m *MockNotificationReader) add(notifType, severity, message string) {
	m.notifications = append(m.notifications, &models.Notification{
		ID:        int64(len(m.notifications) + 1),
		Timestamp: time.Now(),
		Type:      notifType,
		Severity:  severity,
		Message:   message,
	})
}

func (m *MockNotificationReader) GetNotifications(types []string, limit int) ([]*models.Notification, error) {
	m.lastTypes = types
	m.lastLimit = limit
	if m.err != nil {
		return nil, m.err
	}
	var out []*models.Notification
	for _, n := range m.notifications {
		if len(out) == limit {
			break
		}
		if len(types) == 0 {
			out = append(out, n)
			continue
		}
		for _, t := range types {
			if n.Type == t {
				out = append(out, n)
				break
			}
		}
	}
	return out, nil
}

// ============ Mock Risk Controller ============

type MockRiskController struct {
	active *models.RiskConfig
	getErr error
	setErr error
}

func (m *MockRiskController) GetActive() (*models.RiskConfig, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	if m.active == nil {
		return nil, service.ErrNoActiveRiskConfig
	}
	return m.active, nil
}

func (m *MockRiskController) SetAutoTrade(enabled bool) error {
	if m.setErr != nil {
		return m.setErr
	}
	if m.active == nil {
		return repository.ErrRiskConfigNotFound
	}
	m.active.AutoTradeEnabled = enabled
	return nil
}
