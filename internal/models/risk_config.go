package models

import (
	"fmt"
	"time"
)

// RiskConfig представляет параметры риск-менеджмента и поведения авто-трейдинга
//
// Все проценты задаются долями (0.2 = 20%), а не процентами.
// Одновременно активной может быть только одна запись.
type RiskConfig struct {
	ID                   int64     `json:"id" db:"id" yaml:"-"`
	MinConfidence        float64   `json:"min_confidence" db:"min_confidence" yaml:"min_confidence"`
	MinEdge              float64   `json:"min_edge" db:"min_edge" yaml:"min_edge"`
	MaxPositionSize      float64   `json:"max_position_size" db:"max_position_size" yaml:"max_position_size"`
	MaxPortfolioExposure float64   `json:"max_portfolio_exposure" db:"max_portfolio_exposure" yaml:"max_portfolio_exposure"`
	KellyMultiplier      float64   `json:"kelly_multiplier" db:"kelly_multiplier" yaml:"kelly_multiplier"`
	BankrollUnit         float64   `json:"bankroll_unit" db:"bankroll_unit" yaml:"bankroll_unit"` // база для расчёта размера по Келли
	ScanIntervalMinutes  int       `json:"scan_interval_minutes" db:"scan_interval_minutes" yaml:"scan_interval_minutes"`
	AutoTradeEnabled     bool      `json:"auto_trade_enabled" db:"auto_trade_enabled" yaml:"auto_trade_enabled"`
	TakeProfitPercent    float64   `json:"take_profit_percent" db:"take_profit_percent" yaml:"take_profit_percent"`
	StopLossPercent      float64   `json:"stop_loss_percent" db:"stop_loss_percent" yaml:"stop_loss_percent"`
	MaxOpenPositions     int       `json:"max_open_positions" db:"max_open_positions" yaml:"max_open_positions"`
	MaxDailyTrades       int       `json:"max_daily_trades" db:"max_daily_trades" yaml:"max_daily_trades"`
	CooldownMinutes      int       `json:"cooldown_minutes" db:"cooldown_minutes" yaml:"cooldown_minutes"`
	OrderTimeoutSeconds  int       `json:"order_timeout_seconds" db:"order_timeout_seconds" yaml:"order_timeout_seconds"`
	RetryFailedOrders    bool      `json:"retry_failed_orders" db:"retry_failed_orders" yaml:"retry_failed_orders"`
	SlippageTolerance    float64   `json:"slippage_tolerance" db:"slippage_tolerance" yaml:"slippage_tolerance"`
	TrailingStopEnabled  bool      `json:"trailing_stop_enabled" db:"trailing_stop_enabled" yaml:"trailing_stop_enabled"`
	TrailingStopPercent  float64   `json:"trailing_stop_percent" db:"trailing_stop_percent" yaml:"trailing_stop_percent"`
	EnabledPlatforms     []string  `json:"enabled_platforms" db:"enabled_platforms" yaml:"enabled_platforms"`    // JSON в БД
	EnabledCategories    []string  `json:"enabled_categories" db:"enabled_categories" yaml:"enabled_categories"` // JSON в БД, пусто = все
	IsActive             bool      `json:"is_active" db:"is_active" yaml:"-"`
	UpdatedAt            time.Time `json:"updated_at" db:"updated_at" yaml:"-"`
}

// Validate проверяет диапазоны всех полей
func (c *RiskConfig) Validate() error {
	if err := inUnitRange("min_confidence", c.MinConfidence); err != nil {
		return err
	}
	if err := inUnitRange("min_edge", c.MinEdge); err != nil {
		return err
	}
	if c.MaxPositionSize <= 0 {
		return fmt.Errorf("max_position_size must be positive, got %v", c.MaxPositionSize)
	}
	if c.MaxPortfolioExposure <= 0 {
		return fmt.Errorf("max_portfolio_exposure must be positive, got %v", c.MaxPortfolioExposure)
	}
	if err := inUnitRange("kelly_multiplier", c.KellyMultiplier); err != nil {
		return err
	}
	if c.BankrollUnit <= 0 {
		return fmt.Errorf("bankroll_unit must be positive, got %v", c.BankrollUnit)
	}
	if c.ScanIntervalMinutes <= 0 {
		return fmt.Errorf("scan_interval_minutes must be positive, got %d", c.ScanIntervalMinutes)
	}
	if c.TakeProfitPercent <= 0 {
		return fmt.Errorf("take_profit_percent must be positive, got %v", c.TakeProfitPercent)
	}
	if c.StopLossPercent <= 0 {
		return fmt.Errorf("stop_loss_percent must be positive, got %v", c.StopLossPercent)
	}
	if c.MaxOpenPositions < 0 {
		return fmt.Errorf("max_open_positions cannot be negative, got %d", c.MaxOpenPositions)
	}
	if c.MaxDailyTrades < 0 {
		return fmt.Errorf("max_daily_trades cannot be negative, got %d", c.MaxDailyTrades)
	}
	if c.CooldownMinutes < 0 {
		return fmt.Errorf("cooldown_minutes cannot be negative, got %d", c.CooldownMinutes)
	}
	if c.OrderTimeoutSeconds <= 0 {
		return fmt.Errorf("order_timeout_seconds must be positive, got %d", c.OrderTimeoutSeconds)
	}
	if err := inUnitRange("slippage_tolerance", c.SlippageTolerance); err != nil {
		return err
	}
	if err := inUnitRange("trailing_stop_percent", c.TrailingStopPercent); err != nil {
		return err
	}
	return nil
}

func inUnitRange(name string, v float64) error {
	if v < 0 || v > 1 {
		return fmt.Errorf("%s must be within [0, 1], got %v", name, v)
	}
	return nil
}

// PlatformEnabled проверяет, разрешена ли торговля на платформе
func (c *RiskConfig) PlatformEnabled(platform string) bool {
	return contains(c.EnabledPlatforms, platform)
}

// CategoryEnabled проверяет категорию рынка (пустой список = все категории)
func (c *RiskConfig) CategoryEnabled(category string) bool {
	if len(c.EnabledCategories) == 0 {
		return true
	}
	return contains(c.EnabledCategories, category)
}

// OrderTimeout возвращает таймаут ордера
func (c *RiskConfig) OrderTimeout() time.Duration {
	return time.Duration(c.OrderTimeoutSeconds) * time.Second
}

// Cooldown возвращает паузу между сделками
func (c *RiskConfig) Cooldown() time.Duration {
	return time.Duration(c.CooldownMinutes) * time.Minute
}

// ScanInterval возвращает интервал между циклами
func (c *RiskConfig) ScanInterval() time.Duration {
	return time.Duration(c.ScanIntervalMinutes) * time.Minute
}

func contains(set []string, v string) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}
