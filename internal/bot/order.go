package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"

	"autotrader/internal/exchange"
	"autotrader/internal/models"
	"autotrader/pkg/retry"
	"autotrader/pkg/utils"
)

// clientOrderNamespace - пространство имён UUIDv5 для идемпотентных ID ордеров
var clientOrderNamespace = uuid.MustParse("6f1c2a9e-3d4b-5c6d-8e7f-9a0b1c2d3e4f")

// ClientOrderID - детерминированный ID ордера для возможности
//
// Повторы по одной возможности несут один и тот же ID, шлюз дедуплицирует их.
func ClientOrderID(opportunityID int64) string {
	return uuid.NewSHA1(clientOrderNamespace, []byte("opportunity:"+strconv.FormatInt(opportunityID, 10))).String()
}

// Результаты попытки для метрик
const (
	attemptFilled   = "filled"
	attemptRejected = "rejected"
	attemptTimeout  = "timeout"
	attemptError    = "error"
)

// OrderExecutor отправляет ордер с таймаутом и ограниченным числом повторов
//
// Каждая попытка - гонка ExecuteTrade против context.WithTimeout.
// Ответ, пришедший после таймаута, не учитывается (late fill discarded).
type OrderExecutor struct {
	client   exchange.Client
	trades   TradeStore
	opps     OpportunityStore
	notifier NotificationSink
	backoff  time.Duration
	logger   *utils.Logger

	now          func() time.Time
	orderTimeout func(cfg *models.RiskConfig) time.Duration
}

// NewOrderExecutor создаёт исполнитель
func NewOrderExecutor(client exchange.Client, trades TradeStore, opps OpportunityStore, notifier NotificationSink, backoff time.Duration, logger *utils.Logger) *OrderExecutor {
	if notifier == nil {
		notifier = nopSink{}
	}
	if logger == nil {
		logger = utils.L()
	}
	return &OrderExecutor{
		client:       client,
		trades:       trades,
		opps:         opps,
		notifier:     notifier,
		backoff:      backoff,
		logger:       logger.WithComponent("executor"),
		now:          time.Now,
		orderTimeout: (*models.RiskConfig).OrderTimeout,
	}
}

// attemptReply - ответ площадки, доставляемый из горутины попытки
type attemptReply struct {
	result  *exchange.OrderResult
	err     error
	latency time.Duration
}

// Execute открывает позицию по возможности
//
// Успех: сделка сохранена как open/auto, возможность помечена executed,
// в state записана сделка, отправлено TRADE_EXECUTED.
// Ошибка: сделки нет, возможность остаётся active, отправлено EXECUTION_ERROR.
func (oe *OrderExecutor) Execute(ctx context.Context, opp *models.Opportunity, sizing Sizing, cfg *models.RiskConfig, state *CycleState) (*models.Trade, error) {
	log := oe.logger.WithOpportunityID(opp.ID).WithPlatform(opp.Platform)

	if err := checkPreconditions(opp, cfg); err != nil {
		return nil, err
	}
	if sizing.Size <= 0 {
		return nil, fmt.Errorf("opportunity %d sized to zero: %w", opp.ID, ErrNotEligible)
	}

	req := exchange.OrderRequest{
		ClientOrderID:     ClientOrderID(opp.ID),
		MarketID:          opp.MarketID,
		Direction:         sizing.Direction,
		PositionSize:      sizing.Size,
		EntryPrice:        sizing.EntryPrice,
		SlippageTolerance: cfg.SlippageTolerance,
	}

	rcfg := retry.OrderConfig(oe.backoff)
	if !cfg.RetryFailedOrders {
		rcfg.MaxRetries = 1
	}
	rcfg.RetryIf = func(err error) bool {
		return ctx.Err() == nil && retry.IsRetryable(err)
	}
	rcfg.OnRetry = func(attempt int, err error, delay time.Duration) {
		state.RetryCounts[opp.ID]++
		log.Warn("order attempt failed, retrying",
			utils.Attempt(attempt), utils.Err(err), utils.Duration("delay", delay))
	}

	timeout := oe.orderTimeout(cfg)
	attempts := 0
	result, err := retry.DoWithResult(ctx, func() (*exchange.OrderResult, error) {
		attempts++
		return oe.attempt(ctx, opp.Platform, req, timeout, log)
	}, rcfg)

	state.ClearRetries(opp.ID)

	if err != nil {
		if cfg.RetryFailedOrders && attempts >= rcfg.MaxRetries && retry.IsRetryable(err) {
			err = fmt.Errorf("%w after %d attempts: %w", ErrRetryBudgetExhausted, attempts, err)
		}
		log.Error("order failed", utils.Attempt(attempts), utils.Err(err))
		oe.notifier.Emit(newEvent(oe.now(), models.NotificationTypeExecutionError, models.SeverityError, 0, opp.ID,
			map[string]interface{}{
				"platform":  opp.Platform,
				"market_id": opp.MarketID,
				"attempts":  attempts,
				"error":     err.Error(),
			}))
		return nil, fmt.Errorf("execute opportunity %d: %w", opp.ID, err)
	}

	now := oe.now()
	trade := oe.buildTrade(opp, sizing, result, now)

	// Позиция на площадке уже открыта: фиксируем лимиты до записи в БД
	state.RecordTrade(now, cfg.Cooldown())

	if err := oe.trades.Create(trade); err != nil {
		log.Error("filled order not persisted", utils.OrderID(result.OrderID), utils.Err(err))
		oe.notifier.Emit(newEvent(now, models.NotificationTypeExecutionError, models.SeverityError, 0, opp.ID,
			map[string]interface{}{
				"order_id": result.OrderID,
				"error":    "persist trade: " + err.Error(),
			}))
		return nil, fmt.Errorf("persist trade for opportunity %d: %w", opp.ID, err)
	}

	if err := oe.opps.MarkExecuted(opp.ID); err != nil {
		log.Error("failed to mark opportunity executed", utils.Err(err))
	}

	TradesExecuted.WithLabelValues(opp.Platform, trade.Direction).Inc()
	log.Info("position opened",
		utils.TradeID(trade.ID),
		utils.OrderID(trade.OrderID),
		utils.Direction(trade.Direction),
		utils.Size(trade.PositionSize),
		utils.Price(trade.EntryPrice))

	oe.notifier.Emit(newEvent(now, models.NotificationTypeTradeExecuted, models.SeverityInfo, trade.ID, opp.ID,
		map[string]interface{}{
			"platform":      trade.Platform,
			"market_id":     trade.MarketID,
			"direction":     trade.Direction,
			"position_size": trade.PositionSize,
			"entry_price":   trade.EntryPrice,
			"take_profit":   trade.TakeProfit,
			"stop_loss":     trade.StopLoss,
		}))

	return trade, nil
}

// attempt - одна попытка: ExecuteTrade в горутине против таймера
func (oe *OrderExecutor) attempt(ctx context.Context, platform string, req exchange.OrderRequest, timeout time.Duration, log *utils.Logger) (*exchange.OrderResult, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	// буфер 1: проигравшая горутина не блокируется на отправке
	replies := make(chan attemptReply, 1)
	started := time.Now()

	go func() {
		res, err := oe.client.ExecuteTrade(attemptCtx, platform, req)
		replies <- attemptReply{result: res, err: err, latency: time.Since(started)}
	}()

	select {
	case r := <-replies:
		latencyMs := float64(r.latency.Microseconds()) / 1000
		// ответ и дедлайн могли быть готовы одновременно: после дедлайна это таймаут
		if errors.Is(attemptCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			RecordOrderAttempt(platform, attemptTimeout, latencyMs)
			logLateFill(r, log)
			return nil, fmt.Errorf("after %s: %w", timeout, ErrOrderTimeout)
		}
		if r.err != nil {
			RecordOrderAttempt(platform, attemptError, latencyMs)
			return nil, fmt.Errorf("submit order: %w", r.err)
		}
		if r.result == nil || !r.result.Success {
			RecordOrderAttempt(platform, attemptRejected, latencyMs)
			return nil, rejection(r.result)
		}
		RecordOrderAttempt(platform, attemptFilled, latencyMs)
		return r.result, nil

	case <-attemptCtx.Done():
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		RecordOrderAttempt(platform, attemptTimeout, float64(timeout.Milliseconds()))
		go discardLate(replies, log)
		return nil, fmt.Errorf("after %s: %w", timeout, ErrOrderTimeout)
	}
}

// discardLate дожидается опоздавшего ответа и только логирует его
func discardLate(replies <-chan attemptReply, log *utils.Logger) {
	logLateFill(<-replies, log)
}

func logLateFill(r attemptReply, log *utils.Logger) {
	if r.result != nil && r.result.Success {
		log.Warn("late fill discarded",
			utils.OrderID(r.result.OrderID),
			utils.Price(r.result.ExecutedPrice),
			utils.Latency(float64(r.latency.Milliseconds())))
	}
}

// rejection превращает неуспешный ответ в ошибку с классификацией повтора
func rejection(res *exchange.OrderResult) error {
	reason := "no result"
	if res != nil && res.RejectReason != "" {
		reason = res.RejectReason
	}
	err := fmt.Errorf("%s: %w", reason, ErrOrderRejected)
	if res != nil && res.Permanent {
		return retry.Permanent(err)
	}
	return err
}

// buildTrade собирает открытую сделку по результату исполнения
func (oe *OrderExecutor) buildTrade(opp *models.Opportunity, sizing Sizing, res *exchange.OrderResult, now time.Time) *models.Trade {
	entry := res.ExecutedPrice
	if entry <= 0 {
		entry = sizing.EntryPrice
	}
	qty := res.ExecutedQuantity
	if qty <= 0 && entry > 0 {
		qty = sizing.Size / entry
	}

	return &models.Trade{
		OpportunityID:   opp.ID,
		Platform:        opp.Platform,
		MarketID:        opp.MarketID,
		Direction:       sizing.Direction,
		EntryPrice:      entry,
		CurrentPrice:    entry,
		PositionSize:    sizing.Size,
		Quantity:        qty,
		TakeProfit:      sizing.TakeProfit,
		StopLoss:        sizing.StopLoss,
		InitialStopLoss: sizing.StopLoss,
		Status:          models.TradeStatusOpen,
		AutoTrade:       true,
		OrderID:         res.OrderID,
		OpenDate:        now,
		UpdatedAt:       now,
	}
}
