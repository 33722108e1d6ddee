package bot

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"autotrader/internal/models"
	"autotrader/pkg/utils"
)

// Источники запуска цикла
const (
	triggerScheduled = "scheduled"
	triggerManual    = "manual"
)

// Шаги цикла в журнале активности
const (
	stepCycle   = "cycle"
	stepConfig  = "config"
	stepMonitor = "monitor"
	stepGate    = "gate"
	stepScan    = "scan"
	stepSize    = "size"
	stepExecute = "execute"
)

// Причины ограничения открытия
const (
	GateMaxOpenPositions = "max_open_positions"
)

// CycleReport - итог одного торгового цикла
type CycleReport struct {
	CycleID     string          `json:"cycle_id"`
	Trigger     string          `json:"trigger"`
	StartedAt   time.Time       `json:"started_at"`
	FinishedAt  time.Time       `json:"finished_at"`
	Outcome     Outcome         `json:"outcome"`
	Reason      string          `json:"reason,omitempty"`
	Trade       *models.Trade   `json:"trade,omitempty"`
	Closed      []*models.Trade `json:"closed,omitempty"`
	Skipped     int             `json:"skipped_positions"`
	Unpersisted int             `json:"unpersisted_closes,omitempty"`
	Error       string          `json:"error,omitempty"`
}

// cycleRun - рабочее состояние одного цикла
type cycleRun struct {
	report *CycleReport
	log    *utils.Logger
	now    time.Time

	// -1, пока мониторинг не прошёл
	open     int
	exposure float64
}

// runCycle выполняет цикл под cycleMu
//
// Паника и ошибки превращаются в outcome=error, следующий тик выполняется как обычно.
func (e *Engine) runCycle(ctx context.Context, trigger string) (report *CycleReport, err error) {
	if !e.cycleMu.TryLock() {
		return nil, ErrCycleInProgress
	}
	defer e.cycleMu.Unlock()

	run := &cycleRun{
		report: &CycleReport{
			CycleID:   uuid.NewString(),
			Trigger:   trigger,
			StartedAt: e.now(),
		},
		now:  e.now(),
		open: -1,
	}
	run.log = e.logger.WithCycleID(run.report.CycleID)
	report = run.report

	defer func() {
		if r := recover(); r != nil {
			run.log.Error("cycle panic recovered", utils.Any("panic", r))
			e.fail(run, stepCycle, fmt.Errorf("panic: %v", r))
		}
		e.finish(run)
	}()

	e.cycle(ctx, run)
	return report, nil
}

// cycle - шаги в фиксированном порядке; каждый выход задаёт outcome
func (e *Engine) cycle(ctx context.Context, run *cycleRun) {
	e.setPhase(PhaseScanning)

	cfg, err := e.riskConfigs.GetActive()
	if err != nil {
		e.fail(run, stepConfig, fmt.Errorf("load risk config: %w", err))
		return
	}
	if cfg == nil {
		e.conclude(run, stepConfig, OutcomeConfigMissing, ErrConfigMissing.Error(), LevelWarn)
		return
	}

	since := utils.GetDayStartIn(run.now, e.cfg.Location)
	count, err := e.trades.CountAutoTradesSince(since)
	if err != nil {
		e.fail(run, stepConfig, fmt.Errorf("count daily trades: %w", err))
		return
	}
	e.state.SyncDailyCount(count, since)

	openTrades, err := e.trades.GetOpen()
	if err != nil {
		e.fail(run, stepMonitor, fmt.Errorf("load open trades: %w", err))
		return
	}

	// (a) мониторинг строго до решений
	e.setPhase(PhaseMonitoring)
	mon, err := e.monitor.MonitorAll(ctx, openTrades, cfg, run.now)
	run.report.Closed = mon.Closed
	run.report.Skipped = mon.Skipped
	run.report.Unpersisted = len(mon.Unpersisted)
	run.open = mon.Open
	run.exposure = mon.Exposure
	for _, t := range mon.Closed {
		e.addActivity(run, stepMonitor, "", LevelInfo,
			fmt.Sprintf("Позиция #%d закрыта (%s), PnL %.2f", t.ID, t.CloseReason, *t.Pnl))
	}
	for _, perr := range mon.Unpersisted {
		e.addActivity(run, stepMonitor, "", LevelError, "Закрытие не сохранено, позиция остаётся открытой: "+perr.Error())
	}
	if mon.Skipped > 0 {
		e.addActivity(run, stepMonitor, "", LevelWarn,
			fmt.Sprintf("Нет цены для %d позиций, пропущены до следующего цикла", mon.Skipped))
	}
	if err != nil {
		e.fail(run, stepMonitor, fmt.Errorf("monitor positions: %w", err))
		return
	}

	e.setPhase(PhaseDeciding)

	// (b)
	if !cfg.AutoTradeEnabled {
		e.conclude(run, stepGate, OutcomeAutoTradeDisabled, "auto_trade_disabled", LevelInfo)
		return
	}

	// (c)
	if run.open >= cfg.MaxOpenPositions {
		e.emitLimit(run, GateMaxOpenPositions, map[string]interface{}{
			"open_positions":     run.open,
			"max_open_positions": cfg.MaxOpenPositions,
		})
		e.conclude(run, stepGate, OutcomeLimitReached, GateMaxOpenPositions, LevelWarn)
		return
	}

	// (d)
	decision := e.limiter.CanTrade(cfg, e.state, run.now)
	if !decision.Allowed {
		run.log.Info("trading gated", utils.Reason(decision.Reason), utils.Err(decision.Err()))
	}
	switch decision.Reason {
	case DenyDailyLimit:
		e.emitLimit(run, DenyDailyLimit, map[string]interface{}{
			"daily_trades":     e.state.DailyTradeCount,
			"max_daily_trades": cfg.MaxDailyTrades,
		})
		e.conclude(run, stepGate, OutcomeLimitReached, DenyDailyLimit, LevelWarn)
		return
	case DenyCooldown:
		e.conclude(run, stepGate, OutcomeCooldownActive,
			fmt.Sprintf("%s: %ds remaining", DenyCooldown, decision.RemainingSeconds()), LevelInfo)
		return
	}

	// (e)
	active, err := e.opps.GetActive()
	if err != nil {
		e.fail(run, stepScan, fmt.Errorf("load opportunities: %w", err))
		return
	}
	eligible := FilterEligible(active, cfg, run.now)
	if len(eligible) == 0 {
		e.conclude(run, stepScan, OutcomeNoOpportunities,
			fmt.Sprintf("0 of %d active opportunities eligible", len(active)), LevelInfo)
		return
	}

	// (f)
	top := RankOpportunities(eligible)[0]
	e.addActivity(run, stepScan, "", LevelInfo,
		fmt.Sprintf("Выбрана возможность #%d %s/%s: edge %.4f, confidence %.2f (из %d)",
			top.ID, top.Platform, top.MarketID, top.Edge, top.Confidence, len(eligible)))

	// (g)
	sizing := e.sizer.Plan(top, cfg)
	if sizing.Size <= 0 {
		e.conclude(run, stepSize, OutcomeNoOpportunities,
			fmt.Sprintf("opportunity %d sized to zero", top.ID), LevelInfo)
		return
	}
	if err := e.sizer.CheckExposure(run.exposure, sizing.Size, cfg); err != nil {
		e.conclude(run, stepSize, OutcomeExposureLimit, err.Error(), LevelWarn)
		return
	}

	e.setPhase(PhaseExecuting)
	trade, err := e.executor.Execute(ctx, top, sizing, cfg, e.state)
	if err != nil {
		run.report.Error = err.Error()
		e.conclude(run, stepExecute, OutcomeExecutionFailed, err.Error(), LevelError)
		return
	}

	run.report.Trade = trade
	run.open++
	run.exposure += trade.PositionSize
	e.conclude(run, stepExecute, OutcomeExecuted,
		fmt.Sprintf("Открыта позиция #%d %s %s/%s, размер %.2f по %.4f",
			trade.ID, trade.Direction, trade.Platform, trade.MarketID, trade.PositionSize, trade.EntryPrice), LevelInfo)
}

// conclude фиксирует outcome цикла
func (e *Engine) conclude(run *cycleRun, step string, outcome Outcome, reason, level string) {
	run.report.Outcome = outcome
	run.report.Reason = reason
	e.addActivity(run, step, string(outcome), level, OutcomeInfo(outcome)+": "+reason)
}

// fail фиксирует outcome=error
func (e *Engine) fail(run *cycleRun, step string, err error) {
	run.report.Error = err.Error()
	run.log.Error("cycle failed", utils.String("step", step), utils.Err(err))
	e.conclude(run, step, OutcomeError, err.Error(), LevelError)
}

// finish закрывает цикл: метрики, снимок, журнал
func (e *Engine) finish(run *cycleRun) {
	report := run.report
	report.FinishedAt = e.now()
	if report.Outcome == "" {
		report.Outcome = OutcomeError
	}

	// LIMIT_REACHED повторяется только после смены причины
	if report.Outcome != OutcomeLimitReached {
		e.lastGate = ""
	}

	e.publishCycle(report, run.open, run.exposure)
	RecordCycle(report.Outcome, report.FinishedAt.Sub(report.StartedAt).Seconds())
	if e.observer != nil {
		e.observer.CycleFinished(report, e.Status())
	}

	run.log.Info("cycle finished",
		utils.String("trigger", report.Trigger),
		utils.Outcome(string(report.Outcome)),
		utils.Reason(report.Reason),
		utils.Int("closed", len(report.Closed)),
		utils.Int("daily_trades", e.state.DailyTradeCount),
		utils.Duration("duration", report.FinishedAt.Sub(report.StartedAt)))
}

// emitLimit отправляет LIMIT_REACHED при смене причины ограничения
func (e *Engine) emitLimit(run *cycleRun, reason string, meta map[string]interface{}) {
	if e.lastGate == reason {
		return
	}
	e.lastGate = reason
	meta["reason"] = reason
	e.notifier.Emit(newEvent(run.now, models.NotificationTypeLimitReached, models.SeverityWarn, 0, 0, meta))
}

func (e *Engine) addActivity(run *cycleRun, step, outcome, level, msg string) {
	e.activity.Add(models.ActivityEntry{
		Timestamp: e.now(),
		CycleID:   run.report.CycleID,
		Step:      step,
		Outcome:   outcome,
		Level:     level,
		Message:   msg,
	})
}
