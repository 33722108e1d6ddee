package bot

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"autotrader/internal/exchange"
	"autotrader/internal/models"
	"autotrader/pkg/utils"
)

type executorFixture struct {
	exec   *OrderExecutor
	client *mockClient
	trades *mockTradeStore
	opps   *mockOppStore
	sink   *recordingSink
	logs   *observer.ObservedLogs
	opp    *models.Opportunity
	cfg    *models.RiskConfig
	state  *CycleState
}

func newExecutorFixture(client *mockClient) *executorFixture {
	core, logs := observer.New(zap.DebugLevel)
	opp := testOpportunity(7)
	f := &executorFixture{
		client: client,
		trades: newMockTradeStore(),
		opps:   &mockOppStore{opps: []*models.Opportunity{opp}},
		sink:   &recordingSink{},
		logs:   logs,
		opp:    opp,
		cfg:    testRiskConfig(),
		state:  NewCycleState(),
	}
	f.exec = NewOrderExecutor(client, f.trades, f.opps, f.sink, time.Millisecond, utils.WrapLogger(zap.New(core)))
	f.exec.now = func() time.Time { return testNow }
	return f
}

func (f *executorFixture) execute() (*models.Trade, error) {
	sizing := NewPositionSizer(0).Plan(f.opp, f.cfg)
	return f.exec.Execute(context.Background(), f.opp, sizing, f.cfg, f.state)
}

// rejectAll - площадка отвечает отказом на каждую попытку
func rejectAll(permanent bool) *mockClient {
	return &mockClient{execute: func(ctx context.Context, platform string, req exchange.OrderRequest) (*exchange.OrderResult, error) {
		return &exchange.OrderResult{Success: false, RejectReason: "insufficient liquidity", Permanent: permanent}, nil
	}}
}

func TestOrderExecutor_Success(t *testing.T) {
	f := newExecutorFixture(&mockClient{})

	trade, err := f.execute()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if trade.ID == 0 || f.trades.count() != 1 {
		t.Fatal("trade not persisted")
	}
	if trade.Status != models.TradeStatusOpen || !trade.AutoTrade {
		t.Errorf("trade status=%s auto=%v", trade.Status, trade.AutoTrade)
	}
	if trade.EntryPrice != 0.40 || trade.PositionSize != 100 || trade.Quantity != 250 {
		t.Errorf("unexpected fill %+v", trade)
	}
	if trade.TakeProfit != 0.48 || trade.StopLoss != 0.352 || trade.InitialStopLoss != 0.352 {
		t.Errorf("unexpected levels %+v", trade)
	}
	if f.opp.Status != models.OpportunityStatusExecuted {
		t.Error("opportunity should be marked executed")
	}
	if f.state.DailyTradeCount != 1 || f.state.LastTradeAt == nil || !f.state.LastTradeAt.Equal(testNow) {
		t.Errorf("state not updated: %+v", f.state)
	}
	if len(f.state.RetryCounts) != 0 {
		t.Error("retry counts should be cleared")
	}

	events := f.sink.ofType(models.NotificationTypeTradeExecuted)
	if len(events) != 1 || *events[0].TradeID != trade.ID || *events[0].OpportunityID != 7 {
		t.Errorf("TRADE_EXECUTED events = %+v", events)
	}
}

func TestOrderExecutor_Preconditions(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(f *executorFixture)
	}{
		{"platform disabled", func(f *executorFixture) { f.cfg.EnabledPlatforms = []string{"kalshi"} }},
		{"low confidence", func(f *executorFixture) { f.opp.Confidence = 0.1 }},
		{"small edge", func(f *executorFixture) { f.opp.Edge = 0.001 }},
		{"not a buy", func(f *executorFixture) { f.opp.RecommendedAction = models.ActionHold }},
		{"zero size", func(f *executorFixture) { f.opp.KellyFraction = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newExecutorFixture(&mockClient{})
			tt.mutate(f)

			_, err := f.execute()
			if !errors.Is(err, ErrNotEligible) {
				t.Fatalf("expected ErrNotEligible, got %v", err)
			}
			if f.client.callCount() != 0 {
				t.Error("exchange must not be called")
			}
		})
	}
}

func TestOrderExecutor_RetriesTransientError(t *testing.T) {
	var f *executorFixture
	var seen []int
	var mu sync.Mutex

	client := &mockClient{}
	client.execute = func(ctx context.Context, platform string, req exchange.OrderRequest) (*exchange.OrderResult, error) {
		mu.Lock()
		seen = append(seen, f.state.RetryCounts[f.opp.ID])
		mu.Unlock()
		if client.callCount() == 1 {
			return nil, &exchange.ExchangeError{Platform: platform, Code: "503", Message: "busy", Transient: true}
		}
		return filled(req), nil
	}
	f = newExecutorFixture(client)

	if _, err := f.execute(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if client.callCount() != 2 {
		t.Errorf("calls = %d, want 2", client.callCount())
	}
	if len(seen) != 2 || seen[0] != 0 || seen[1] != 1 {
		t.Errorf("retry counts seen by attempts = %v, want [0 1]", seen)
	}
	if len(f.state.RetryCounts) != 0 {
		t.Error("retry counts should be cleared on success")
	}
}

func TestOrderExecutor_NonRetryableStopsImmediately(t *testing.T) {
	client := &mockClient{execute: func(ctx context.Context, platform string, req exchange.OrderRequest) (*exchange.OrderResult, error) {
		return nil, &exchange.ExchangeError{Platform: platform, Code: "400", Message: "invalid market"}
	}}
	f := newExecutorFixture(client)

	_, err := f.execute()
	var exErr *exchange.ExchangeError
	if !errors.As(err, &exErr) || exErr.Message != "invalid market" {
		t.Fatalf("expected ExchangeError, got %v", err)
	}
	if errors.Is(err, ErrRetryBudgetExhausted) {
		t.Error("non-retryable error must not exhaust the budget")
	}
	if client.callCount() != 1 {
		t.Errorf("calls = %d, want 1", client.callCount())
	}
	if f.trades.count() != 0 || f.opp.Status != models.OpportunityStatusActive {
		t.Error("failure must leave no trade and an active opportunity")
	}
	if len(f.sink.ofType(models.NotificationTypeExecutionError)) != 1 {
		t.Error("EXECUTION_ERROR should be emitted")
	}
}

func TestOrderExecutor_PermanentRejection(t *testing.T) {
	client := rejectAll(true)
	f := newExecutorFixture(client)

	_, err := f.execute()
	if !errors.Is(err, ErrOrderRejected) {
		t.Fatalf("expected ErrOrderRejected, got %v", err)
	}
	if client.callCount() != 1 {
		t.Errorf("calls = %d, want 1", client.callCount())
	}
}

func TestOrderExecutor_RetryBudgetExhausted(t *testing.T) {
	client := rejectAll(false)
	f := newExecutorFixture(client)

	_, err := f.execute()
	if !errors.Is(err, ErrRetryBudgetExhausted) {
		t.Fatalf("expected ErrRetryBudgetExhausted, got %v", err)
	}
	if !errors.Is(err, ErrOrderRejected) {
		t.Errorf("exhaustion should wrap the last error, got %v", err)
	}
	if client.callCount() != 3 {
		t.Errorf("calls = %d, want 3", client.callCount())
	}
	if len(f.state.RetryCounts) != 0 {
		t.Error("retry counts should be cleared on exhaustion")
	}
	if f.state.DailyTradeCount != 0 {
		t.Error("failed order must not count as a trade")
	}
}

func TestOrderExecutor_RetryDisabled(t *testing.T) {
	client := rejectAll(false)
	f := newExecutorFixture(client)
	f.cfg.RetryFailedOrders = false

	_, err := f.execute()
	if !errors.Is(err, ErrOrderRejected) {
		t.Fatalf("expected ErrOrderRejected, got %v", err)
	}
	if errors.Is(err, ErrRetryBudgetExhausted) {
		t.Error("single attempt without retries is not budget exhaustion")
	}
	if client.callCount() != 1 {
		t.Errorf("calls = %d, want 1", client.callCount())
	}
}

// slowFill - площадка исполняет ордер позже таймаута и игнорирует отмену
func slowFill(delay time.Duration) *mockClient {
	return &mockClient{execute: func(ctx context.Context, platform string, req exchange.OrderRequest) (*exchange.OrderResult, error) {
		time.Sleep(delay)
		return filled(req), nil
	}}
}

func TestOrderExecutor_TimeoutDiscardsLateFill(t *testing.T) {
	f := newExecutorFixture(slowFill(60 * time.Millisecond))
	f.cfg.RetryFailedOrders = false
	f.exec.orderTimeout = func(*models.RiskConfig) time.Duration { return 10 * time.Millisecond }

	_, err := f.execute()
	if !errors.Is(err, ErrOrderTimeout) {
		t.Fatalf("expected ErrOrderTimeout, got %v", err)
	}

	deadline := time.Now().Add(time.Second)
	for f.logs.FilterMessage("late fill discarded").Len() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("late fill was not logged")
		}
		time.Sleep(5 * time.Millisecond)
	}

	if f.trades.count() != 0 {
		t.Error("late fill must never be booked")
	}
	if f.state.DailyTradeCount != 0 {
		t.Error("late fill must not count as a trade")
	}
}

// TestOrderExecutor_FillAtDeadlineIsTimeout - ответ, готовый вместе с дедлайном, не бронируется
func TestOrderExecutor_FillAtDeadlineIsTimeout(t *testing.T) {
	client := &mockClient{execute: func(ctx context.Context, platform string, req exchange.OrderRequest) (*exchange.OrderResult, error) {
		<-ctx.Done()
		return filled(req), nil
	}}

	for i := 0; i < 20; i++ {
		f := newExecutorFixture(client)
		f.cfg.RetryFailedOrders = false
		f.exec.orderTimeout = func(*models.RiskConfig) time.Duration { return 2 * time.Millisecond }

		if _, err := f.execute(); !errors.Is(err, ErrOrderTimeout) {
			t.Fatalf("run %d: expected ErrOrderTimeout, got %v", i, err)
		}
		if f.trades.count() != 0 || f.state.DailyTradeCount != 0 {
			t.Fatalf("run %d: fill after deadline was booked", i)
		}
	}
}

func TestOrderExecutor_TimeoutRetried(t *testing.T) {
	client := slowFill(30 * time.Millisecond)
	f := newExecutorFixture(client)
	f.exec.orderTimeout = func(*models.RiskConfig) time.Duration { return 5 * time.Millisecond }

	_, err := f.execute()
	if !errors.Is(err, ErrRetryBudgetExhausted) || !errors.Is(err, ErrOrderTimeout) {
		t.Fatalf("expected exhausted timeout, got %v", err)
	}
	if client.callCount() != 3 {
		t.Errorf("calls = %d, want 3", client.callCount())
	}
}

// TestOrderExecutor_IdempotentClientOrderID - все попытки несут один ID
func TestOrderExecutor_IdempotentClientOrderID(t *testing.T) {
	var mu sync.Mutex
	var ids []string
	client := &mockClient{execute: func(ctx context.Context, platform string, req exchange.OrderRequest) (*exchange.OrderResult, error) {
		mu.Lock()
		ids = append(ids, req.ClientOrderID)
		mu.Unlock()
		return &exchange.OrderResult{Success: false, RejectReason: "try again"}, nil
	}}
	f := newExecutorFixture(client)
	f.execute()

	want := ClientOrderID(f.opp.ID)
	for i, id := range ids {
		if id != want {
			t.Errorf("attempt %d: ClientOrderID = %s, want %s", i, id, want)
		}
	}
	if ClientOrderID(7) != ClientOrderID(7) || ClientOrderID(7) == ClientOrderID(8) {
		t.Error("ClientOrderID must be deterministic per opportunity")
	}
}

func TestOrderExecutor_PersistFailure(t *testing.T) {
	f := newExecutorFixture(&mockClient{})
	f.trades.createErr = errors.New("db down")

	_, err := f.execute()
	if err == nil {
		t.Fatal("expected error")
	}
	if f.opp.Status != models.OpportunityStatusActive {
		t.Error("opportunity must stay active when trade is not persisted")
	}
	// позиция на площадке открыта, лимиты учитывают её
	if f.state.DailyTradeCount != 1 {
		t.Errorf("DailyTradeCount = %d, want 1", f.state.DailyTradeCount)
	}
	if len(f.sink.ofType(models.NotificationTypeExecutionError)) != 1 {
		t.Error("EXECUTION_ERROR should be emitted")
	}
}
