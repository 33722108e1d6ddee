package bot

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"autotrader/internal/exchange"
	"autotrader/internal/models"
	"autotrader/pkg/utils"
)

// MonitorAction - решение по позиции после очередной цены
type MonitorAction string

const (
	ActionHoldPosition  MonitorAction = "hold"
	ActionClosePosition MonitorAction = "close"
	ActionSkipPosition  MonitorAction = "skip"
)

// MonitorResult - итог оценки одной позиции
type MonitorResult struct {
	Action    MonitorAction
	Reason    string // причина закрытия для ActionClosePosition
	StopMoved bool   // trailing stop подтянут на этой оценке
}

// MonitorReport - итог прохода по всем открытым позициям
type MonitorReport struct {
	Closed   []*models.Trade
	Open     int     // остались открытыми, включая пропущенные
	Skipped  int     // нет цены в этом цикле
	Exposure float64 // сумма PositionSize открытых позиций

	// Unpersisted - закрытия, не записанные в хранилище; позиции считаются открытыми
	Unpersisted []error
}

// PositionMonitor сопровождает открытые позиции: PnL, trailing stop, TP/SL
//
// Монитор не отправляет ордера на закрытие: закрытие фиксирует выход
// в хранилище и событие POSITION_CLOSED.
type PositionMonitor struct {
	feed     exchange.PriceFeed
	trades   TradeStore
	notifier NotificationSink
	logger   *utils.Logger

	// Статистика
	checksCount  int64
	closedCount  int64
	skippedCount int64
}

// NewPositionMonitor создаёт монитор позиций
func NewPositionMonitor(feed exchange.PriceFeed, trades TradeStore, notifier NotificationSink, logger *utils.Logger) *PositionMonitor {
	if notifier == nil {
		notifier = nopSink{}
	}
	if logger == nil {
		logger = utils.L()
	}
	return &PositionMonitor{
		feed:     feed,
		trades:   trades,
		notifier: notifier,
		logger:   logger.WithComponent("monitor"),
	}
}

// Evaluate применяет цену к позиции и решает, закрывать ли её
//
// Мутирует trade: CurrentPrice, UnrealizedPnl, PnlPercent, StopLoss, UpdatedAt,
// а при закрытии Status, Pnl, CloseDate и CloseReason. Закрытая сделка не меняется.
func (pm *PositionMonitor) Evaluate(trade *models.Trade, price float64, cfg *models.RiskConfig, now time.Time) MonitorResult {
	if !trade.IsOpen() {
		return MonitorResult{Action: ActionSkipPosition}
	}
	atomic.AddInt64(&pm.checksCount, 1)

	price = utils.ClampBinaryPrice(price)
	long := trade.Direction != models.DirectionShort

	pnl := CalculatePnL(trade.Direction, trade.EntryPrice, price, trade.Quantity, trade.PositionSize)
	trade.CurrentPrice = price
	trade.UnrealizedPnl = pnl.Amount
	trade.PnlPercent = pnl.Percent
	trade.UpdatedAt = now

	var result MonitorResult

	// Trailing stop только подтягивается, только в прибыли
	if cfg.TrailingStopEnabled && pnl.Amount > 0 {
		if long {
			if candidate := scalePrice(price, -cfg.TrailingStopPercent); candidate > trade.StopLoss {
				trade.StopLoss = candidate
				result.StopMoved = true
			}
		} else {
			if candidate := scalePrice(price, cfg.TrailingStopPercent); candidate < trade.StopLoss {
				trade.StopLoss = candidate
				result.StopMoved = true
			}
		}
	}

	switch {
	case long && price >= trade.TakeProfit, !long && price <= trade.TakeProfit:
		result.Action = ActionClosePosition
		result.Reason = models.CloseReasonTakeProfit
	case long && price <= trade.StopLoss, !long && price >= trade.StopLoss:
		result.Action = ActionClosePosition
		result.Reason = models.CloseReasonStopLoss
		if trade.StopMoved() {
			result.Reason = models.CloseReasonTrailingStop
		}
	default:
		result.Action = ActionHoldPosition
		return result
	}

	closePosition(trade, result.Reason, pnl.Amount, now)
	return result
}

// closePosition переводит сделку в closed одним шагом
func closePosition(trade *models.Trade, reason string, pnl float64, now time.Time) {
	if !CanTransitionTrade(trade.Status, models.TradeStatusClosed) {
		return
	}
	final := pnl
	closedAt := now
	trade.Status = models.TradeStatusClosed
	trade.Pnl = &final
	trade.CloseDate = &closedAt
	trade.CloseReason = reason
	trade.UpdatedAt = now
}

// MonitorAll проходит по открытым позициям
//
// Ошибка котировки пропускает позицию до следующего цикла, принудительно она не закрывается.
// Возвращает ошибку только при отмене контекста.
func (pm *PositionMonitor) MonitorAll(ctx context.Context, trades []*models.Trade, cfg *models.RiskConfig, now time.Time) (*MonitorReport, error) {
	report := &MonitorReport{}

	for i, trade := range trades {
		if err := ctx.Err(); err != nil {
			for _, rest := range trades[i:] {
				if rest.IsOpen() {
					report.Open++
					report.Exposure += rest.PositionSize
				}
			}
			return report, err
		}
		if !trade.IsOpen() {
			continue
		}

		log := pm.logger.WithTradeID(trade.ID).WithPlatform(trade.Platform)

		price, err := pm.feed.CurrentPrice(ctx, trade.Platform, trade.MarketID)
		if err != nil {
			err = fmt.Errorf("trade %d %s/%s: %w: %w", trade.ID, trade.Platform, trade.MarketID, ErrPriceFeedUnavailable, err)
			log.Warn("price unavailable, position skipped", utils.Err(err))
			atomic.AddInt64(&pm.skippedCount, 1)
			report.Skipped++
			report.Open++
			report.Exposure += trade.PositionSize
			continue
		}

		before := *trade
		res := pm.Evaluate(trade, price, cfg, now)

		if err := pm.trades.Update(trade); err != nil {
			if res.Action == ActionClosePosition {
				// в БД позиция open: закрытие повторится в следующем цикле
				*trade = before
				err = fmt.Errorf("close trade %d (%s): %w", trade.ID, res.Reason, err)
				log.Error("position close not persisted, kept open", utils.Err(err))
				report.Unpersisted = append(report.Unpersisted, err)
				report.Open++
				report.Exposure += trade.PositionSize
				continue
			}
			log.Error("failed to persist position", utils.Err(err))
		}

		if res.StopMoved {
			log.Info("trailing stop moved", utils.Float64("stop_loss", trade.StopLoss), utils.Price(price))
		}

		if res.Action != ActionClosePosition {
			report.Open++
			report.Exposure += trade.PositionSize
			continue
		}

		report.Closed = append(report.Closed, trade)
		atomic.AddInt64(&pm.closedCount, 1)
		RecordPositionClosed(res.Reason)
		log.Info("position closed",
			utils.Reason(res.Reason),
			utils.Price(price),
			utils.PNL(*trade.Pnl))

		pm.notifier.Emit(newEvent(now, models.NotificationTypePositionClosed, models.SeverityInfo, trade.ID, trade.OpportunityID,
			map[string]interface{}{
				"platform":      trade.Platform,
				"market_id":     trade.MarketID,
				"direction":     trade.Direction,
				"reason":        res.Reason,
				"entry_price":   trade.EntryPrice,
				"exit_price":    price,
				"pnl":           *trade.Pnl,
				"pnl_percent":   trade.PnlPercent,
				"position_size": trade.PositionSize,
			}))
	}

	return report, nil
}

// MonitorStats - счётчики монитора
type MonitorStats struct {
	Checks  int64 `json:"checks"`
	Closed  int64 `json:"closed"`
	Skipped int64 `json:"skipped"`
}

// Stats возвращает счётчики с момента старта
func (pm *PositionMonitor) Stats() MonitorStats {
	return MonitorStats{
		Checks:  atomic.LoadInt64(&pm.checksCount),
		Closed:  atomic.LoadInt64(&pm.closedCount),
		Skipped: atomic.LoadInt64(&pm.skippedCount),
	}
}
