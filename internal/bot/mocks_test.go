package bot

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"autotrader/internal/exchange"
	"autotrader/internal/models"
)

// ============ Хранилище сделок ============

type mockTradeStore struct {
	mu        sync.Mutex
	trades    map[int64]*models.Trade
	nextID    int64
	updates   int
	createErr error
	updateErr error
	countErr  error
	lastAuto  *time.Time
}

func newMockTradeStore(trades ...*models.Trade) *mockTradeStore {
	s := &mockTradeStore{trades: make(map[int64]*models.Trade)}
	for _, t := range trades {
		if t.ID > s.nextID {
			s.nextID = t.ID
		}
		s.trades[t.ID] = t
	}
	return s
}

func (s *mockTradeStore) Create(trade *models.Trade) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.createErr != nil {
		return s.createErr
	}
	s.nextID++
	trade.ID = s.nextID
	s.trades[trade.ID] = trade
	return nil
}

func (s *mockTradeStore) Update(trade *models.Trade) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updates++
	if s.updateErr != nil {
		return s.updateErr
	}
	s.trades[trade.ID] = trade
	return nil
}

func (s *mockTradeStore) GetOpen() ([]*models.Trade, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.Trade
	for _, t := range s.trades {
		if t.IsOpen() {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *mockTradeStore) CountAutoTradesSince(since time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.countErr != nil {
		return 0, s.countErr
	}
	n := 0
	for _, t := range s.trades {
		if t.AutoTrade && !t.OpenDate.Before(since) {
			n++
		}
	}
	return n, nil
}

func (s *mockTradeStore) LastAutoTradeTime() (*time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastAuto, nil
}

func (s *mockTradeStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.trades)
}

// ============ Возможности ============

type mockOppStore struct {
	mu       sync.Mutex
	opps     []*models.Opportunity
	executed []int64
	getErr   error
	panic    bool
}

func (s *mockOppStore) GetActive() ([]*models.Opportunity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.panic {
		panic("opportunity store exploded")
	}
	if s.getErr != nil {
		return nil, s.getErr
	}
	var out []*models.Opportunity
	for _, o := range s.opps {
		if o.Status == models.OpportunityStatusActive {
			out = append(out, o)
		}
	}
	return out, nil
}

func (s *mockOppStore) MarkExecuted(id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, o := range s.opps {
		if o.ID == id {
			o.Status = models.OpportunityStatusExecuted
		}
	}
	s.executed = append(s.executed, id)
	return nil
}

// ============ Конфигурация риска ============

type mockRiskStore struct {
	mu  sync.Mutex
	cfg *models.RiskConfig
	err error
}

func (s *mockRiskStore) GetActive() (*models.RiskConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg, s.err
}

// ============ Площадка ============

type mockClient struct {
	calls   int32
	execute func(ctx context.Context, platform string, req exchange.OrderRequest) (*exchange.OrderResult, error)
}

func (c *mockClient) ExecuteTrade(ctx context.Context, platform string, req exchange.OrderRequest) (*exchange.OrderResult, error) {
	atomic.AddInt32(&c.calls, 1)
	if c.execute != nil {
		return c.execute(ctx, platform, req)
	}
	return filled(req), nil
}

func (c *mockClient) callCount() int {
	return int(atomic.LoadInt32(&c.calls))
}

// filled - успешное исполнение по запрошенной цене
func filled(req exchange.OrderRequest) *exchange.OrderResult {
	return &exchange.OrderResult{
		Success:          true,
		ExecutedPrice:    req.EntryPrice,
		ExecutedQuantity: req.PositionSize / req.EntryPrice,
		OrderID:          "ORD-" + req.ClientOrderID[:8],
	}
}

// ============ Котировки ============

type mockFeed struct {
	mu     sync.Mutex
	prices map[string]float64 // по market_id
	errs   map[string]error
}

func newMockFeed() *mockFeed {
	return &mockFeed{prices: make(map[string]float64), errs: make(map[string]error)}
}

func (f *mockFeed) CurrentPrice(ctx context.Context, platform, marketID string) (float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.errs[marketID]; err != nil {
		return 0, err
	}
	p, ok := f.prices[marketID]
	if !ok {
		return 0, exchange.ErrPriceUnavailable
	}
	return p, nil
}

func (f *mockFeed) set(marketID string, price float64) {
	f.mu.Lock()
	f.prices[marketID] = price
	f.mu.Unlock()
}

// ============ Уведомления ============

type recordingSink struct {
	mu     sync.Mutex
	events []*models.Notification
}

func (s *recordingSink) Emit(n *models.Notification) {
	s.mu.Lock()
	s.events = append(s.events, n)
	s.mu.Unlock()
}

func (s *recordingSink) ofType(typ string) []*models.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.Notification
	for _, n := range s.events {
		if n.Type == typ {
			out = append(out, n)
		}
	}
	return out
}

// ============ Фикстуры ============

var testNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func testRiskConfig() *models.RiskConfig {
	return &models.RiskConfig{
		ID:                   1,
		MinConfidence:        0.6,
		MinEdge:              0.05,
		MaxPositionSize:      100,
		MaxPortfolioExposure: 1000,
		KellyMultiplier:      0.5,
		BankrollUnit:         1000,
		ScanIntervalMinutes:  5,
		AutoTradeEnabled:     true,
		TakeProfitPercent:    0.2,
		StopLossPercent:      0.12,
		MaxOpenPositions:     5,
		MaxDailyTrades:       10,
		CooldownMinutes:      0,
		OrderTimeoutSeconds:  5,
		RetryFailedOrders:    true,
		SlippageTolerance:    0.02,
		EnabledPlatforms:     []string{"polymarket", "kalshi"},
		IsActive:             true,
	}
}

func testOpportunity(id int64) *models.Opportunity {
	return &models.Opportunity{
		ID:                   id,
		Platform:             "polymarket",
		MarketID:             fmt.Sprintf("m-%d", id),
		Question:             "Will it happen?",
		Category:             "politics",
		MarketPrice:          0.40,
		EstimatedProbability: 0.52,
		Edge:                 0.12,
		Confidence:           0.8,
		KellyFraction:        0.25,
		RecommendedAction:    models.ActionBuy,
		Status:               models.OpportunityStatusActive,
		CreatedAt:            testNow.Add(-time.Minute),
	}
}

// openTrade - long позиция qty=100 от 0.40 с TP 0.48 и SL 0.352
func openTrade(id int64) *models.Trade {
	return &models.Trade{
		ID:              id,
		OpportunityID:   id,
		Platform:        "polymarket",
		MarketID:        "m-1",
		Direction:       models.DirectionLong,
		EntryPrice:      0.40,
		CurrentPrice:    0.40,
		PositionSize:    40,
		Quantity:        100,
		TakeProfit:      0.48,
		StopLoss:        0.352,
		InitialStopLoss: 0.352,
		Status:          models.TradeStatusOpen,
		AutoTrade:       true,
		OpenDate:        testNow.Add(-time.Hour),
	}
}
