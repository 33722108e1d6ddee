package repository

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	jsoniter "github.com/json-iterator/go"

	"autotrader/internal/models"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Ошибки репозитория конфигураций риска
var (
	ErrRiskConfigNotFound = errors.New("risk config not found")
)

const riskConfigColumns = `id, min_confidence, min_edge, max_position_size, max_portfolio_exposure, kelly_multiplier,
		bankroll_unit, scan_interval_minutes, auto_trade_enabled, take_profit_percent, stop_loss_percent,
		max_open_positions, max_daily_trades, cooldown_minutes, order_timeout_seconds, retry_failed_orders,
		slippage_tolerance, trailing_stop_enabled, trailing_stop_percent, enabled_platforms, enabled_categories,
		is_active, updated_at`

// RiskConfigRepository - таблица risk_configs
//
// Списки платформ и категорий хранятся JSON-массивами.
type RiskConfigRepository struct {
	db *sql.DB
}

// NewRiskConfigRepository создает новый экземпляр репозитория
func NewRiskConfigRepository(db *sql.DB) *RiskConfigRepository {
	return &RiskConfigRepository{db: db}
}

func scanRiskConfig(row rowScanner) (*models.RiskConfig, error) {
	c := &models.RiskConfig{}
	var platforms, categories []byte
	err := row.Scan(
		&c.ID,
		&c.MinConfidence,
		&c.MinEdge,
		&c.MaxPositionSize,
		&c.MaxPortfolioExposure,
		&c.KellyMultiplier,
		&c.BankrollUnit,
		&c.ScanIntervalMinutes,
		&c.AutoTradeEnabled,
		&c.TakeProfitPercent,
		&c.StopLossPercent,
		&c.MaxOpenPositions,
		&c.MaxDailyTrades,
		&c.CooldownMinutes,
		&c.OrderTimeoutSeconds,
		&c.RetryFailedOrders,
		&c.SlippageTolerance,
		&c.TrailingStopEnabled,
		&c.TrailingStopPercent,
		&platforms,
		&categories,
		&c.IsActive,
		&c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := decodeList(platforms, &c.EnabledPlatforms); err != nil {
		return nil, fmt.Errorf("decode enabled_platforms: %w", err)
	}
	if err := decodeList(categories, &c.EnabledCategories); err != nil {
		return nil, fmt.Errorf("decode enabled_categories: %w", err)
	}
	return c, nil
}

func decodeList(raw []byte, dst *[]string) error {
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, dst)
}

func encodeList(list []string) ([]byte, error) {
	if list == nil {
		list = []string{}
	}
	return json.Marshal(list)
}

// GetActive возвращает активную конфигурацию или nil, если её нет
func (r *RiskConfigRepository) GetActive() (*models.RiskConfig, error) {
	query := `SELECT ` + riskConfigColumns + ` FROM risk_configs WHERE is_active = true ORDER BY updated_at DESC LIMIT 1`

	c, err := scanRiskConfig(r.db.QueryRow(query))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return c, nil
}

// Create сохраняет неактивную конфигурацию; активирует её Activate
func (r *RiskConfigRepository) Create(cfg *models.RiskConfig) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid risk config: %w", err)
	}

	platforms, err := encodeList(cfg.EnabledPlatforms)
	if err != nil {
		return err
	}
	categories, err := encodeList(cfg.EnabledCategories)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO risk_configs (min_confidence, min_edge, max_position_size, max_portfolio_exposure, kelly_multiplier,
			bankroll_unit, scan_interval_minutes, auto_trade_enabled, take_profit_percent, stop_loss_percent,
			max_open_positions, max_daily_trades, cooldown_minutes, order_timeout_seconds, retry_failed_orders,
			slippage_tolerance, trailing_stop_enabled, trailing_stop_percent, enabled_platforms, enabled_categories,
			is_active, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, false, $21)
		RETURNING id`

	cfg.IsActive = false
	cfg.UpdatedAt = time.Now()

	return r.db.QueryRow(
		query,
		cfg.MinConfidence,
		cfg.MinEdge,
		cfg.MaxPositionSize,
		cfg.MaxPortfolioExposure,
		cfg.KellyMultiplier,
		cfg.BankrollUnit,
		cfg.ScanIntervalMinutes,
		cfg.AutoTradeEnabled,
		cfg.TakeProfitPercent,
		cfg.StopLossPercent,
		cfg.MaxOpenPositions,
		cfg.MaxDailyTrades,
		cfg.CooldownMinutes,
		cfg.OrderTimeoutSeconds,
		cfg.RetryFailedOrders,
		cfg.SlippageTolerance,
		cfg.TrailingStopEnabled,
		cfg.TrailingStopPercent,
		platforms,
		categories,
		cfg.UpdatedAt,
	).Scan(&cfg.ID)
}

// SetAutoTrade включает или выключает авто-трейдинг в активной конфигурации
func (r *RiskConfigRepository) SetAutoTrade(enabled bool) error {
	query := `UPDATE risk_configs SET auto_trade_enabled = $1, updated_at = $2 WHERE is_active = true`

	result, err := r.db.Exec(query, enabled, time.Now())
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrRiskConfigNotFound
	}
	return nil
}

// Activate делает конфигурацию id единственной активной
//
// Сброс и установка флага выполняются в одной транзакции.
func (r *RiskConfigRepository) Activate(id int64) error {
	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`UPDATE risk_configs SET is_active = false WHERE is_active = true`); err != nil {
		return err
	}

	result, err := tx.Exec(`UPDATE risk_configs SET is_active = true, updated_at = $2 WHERE id = $1`, id, time.Now())
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrRiskConfigNotFound
	}

	return tx.Commit()
}
