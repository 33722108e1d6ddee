package bot

import "errors"

// Ошибки торгового ядра
//
// Все оборачиваются через fmt.Errorf("...: %w", err) и проверяются errors.Is.
var (
	ErrConfigMissing        = errors.New("no active risk config")
	ErrLimitReached         = errors.New("trade limit reached")
	ErrCooldownActive       = errors.New("cooldown active")
	ErrOrderTimeout         = errors.New("order timed out")
	ErrOrderRejected        = errors.New("order rejected")
	ErrRetryBudgetExhausted = errors.New("retry budget exhausted")
	ErrPriceFeedUnavailable = errors.New("price feed unavailable")
	ErrExposureLimit        = errors.New("portfolio exposure limit exceeded")
	ErrNotEligible          = errors.New("opportunity not eligible")
	ErrCycleInProgress      = errors.New("trading cycle already in progress")
	ErrEngineStopped        = errors.New("engine stopped")
)
