package bot

import (
	"time"

	"autotrader/internal/models"
	"autotrader/pkg/utils"
)

// Причины отказа RateLimiter
const (
	DenyNone       = ""
	DenyDailyLimit = "daily_limit_reached"
	DenyCooldown   = "cooldown_active"
)

// Decision - результат проверки частоты торговли
type Decision struct {
	Allowed   bool
	Reason    string
	Remaining time.Duration // остаток cooldown, только для DenyCooldown
}

// RemainingSeconds - остаток cooldown в целых секундах (вверх)
func (d Decision) RemainingSeconds() int {
	return utils.SecondsCeil(d.Remaining)
}

// Err возвращает sentinel-ошибку для отказа
func (d Decision) Err() error {
	switch d.Reason {
	case DenyDailyLimit:
		return ErrLimitReached
	case DenyCooldown:
		return ErrCooldownActive
	default:
		return nil
	}
}

// RateLimiter ограничивает число сделок в день и паузу между ними
//
// Чистый запрос: состояние меняет только CycleState.RecordTrade.
type RateLimiter struct{}

// NewRateLimiter создаёт лимитер
func NewRateLimiter() *RateLimiter {
	return &RateLimiter{}
}

// CanTrade проверяет дневной лимит, затем cooldown
func (rl *RateLimiter) CanTrade(cfg *models.RiskConfig, state *CycleState, now time.Time) Decision {
	if state.DailyTradeCount >= cfg.MaxDailyTrades {
		return Decision{Reason: DenyDailyLimit}
	}

	if state.LastTradeAt != nil {
		elapsed := now.Sub(*state.LastTradeAt)
		if cooldown := cfg.Cooldown(); elapsed < cooldown {
			return Decision{Reason: DenyCooldown, Remaining: cooldown - elapsed}
		}
	}

	return Decision{Allowed: true}
}
