package bot

import "autotrader/internal/models"

// CyclePhase - фаза торгового цикла
type CyclePhase string

const (
	PhaseIdle       CyclePhase = "idle"
	PhaseScanning   CyclePhase = "scanning"
	PhaseMonitoring CyclePhase = "monitoring"
	PhaseDeciding   CyclePhase = "deciding"
	PhaseExecuting  CyclePhase = "executing"
)

// ValidPhaseTransitions определяет допустимые переходы между фазами цикла
//
// Любая фаза может вернуться в idle (ранний выход с outcome или ошибка).
var ValidPhaseTransitions = map[CyclePhase][]CyclePhase{
	PhaseIdle:       {PhaseScanning},
	PhaseScanning:   {PhaseMonitoring, PhaseIdle},
	PhaseMonitoring: {PhaseDeciding, PhaseIdle},
	PhaseDeciding:   {PhaseExecuting, PhaseIdle},
	PhaseExecuting:  {PhaseIdle},
}

// CanTransitionPhase проверяет допустимость перехода фазы
func CanTransitionPhase(from, to CyclePhase) bool {
	for _, p := range ValidPhaseTransitions[from] {
		if p == to {
			return true
		}
	}
	return false
}

// ValidTradeTransitions - статус сделки меняется только open → closed
var ValidTradeTransitions = map[string][]string{
	models.TradeStatusOpen:   {models.TradeStatusClosed},
	models.TradeStatusClosed: {},
}

// CanTransitionTrade проверяет допустимость перехода статуса сделки
func CanTransitionTrade(from, to string) bool {
	for _, s := range ValidTradeTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Outcome - итог торгового цикла
type Outcome string

const (
	OutcomeConfigMissing     Outcome = "config_missing"
	OutcomeAutoTradeDisabled Outcome = "auto_trade_disabled"
	OutcomeLimitReached      Outcome = "limit_reached"
	OutcomeCooldownActive    Outcome = "cooldown_active"
	OutcomeNoOpportunities   Outcome = "no_opportunities"
	OutcomeExposureLimit     Outcome = "exposure_limit"
	OutcomeExecuted          Outcome = "executed"
	OutcomeExecutionFailed   Outcome = "execution_failed"
	OutcomeError             Outcome = "error"
	OutcomeSkipped           Outcome = "skipped"
)

// OutcomeInfo возвращает описание итога для UI
func OutcomeInfo(o Outcome) string {
	switch o {
	case OutcomeConfigMissing:
		return "Нет активной конфигурации риска"
	case OutcomeAutoTradeDisabled:
		return "Авто-трейдинг выключен, только мониторинг позиций"
	case OutcomeLimitReached:
		return "Достигнут лимит позиций или сделок за день"
	case OutcomeCooldownActive:
		return "Пауза после последней сделки"
	case OutcomeNoOpportunities:
		return "Нет подходящих возможностей"
	case OutcomeExposureLimit:
		return "Превышен лимит суммарной экспозиции"
	case OutcomeExecuted:
		return "Позиция открыта"
	case OutcomeExecutionFailed:
		return "Ордер не исполнен"
	case OutcomeError:
		return "Ошибка цикла"
	case OutcomeSkipped:
		return "Цикл пропущен, предыдущий ещё выполняется"
	default:
		return "Неизвестный итог"
	}
}

// GatesTrading - итог означает, что торговля заблокирована условием риска
func GatesTrading(o Outcome) bool {
	switch o {
	case OutcomeConfigMissing, OutcomeAutoTradeDisabled, OutcomeLimitReached,
		OutcomeCooldownActive, OutcomeExposureLimit:
		return true
	}
	return false
}
