package bot

import (
	"fmt"

	"autotrader/internal/models"
	"autotrader/pkg/utils"
)

// DefaultBankrollUnit - база Келли, если в конфиге не задан BankrollUnit
const DefaultBankrollUnit = 10000.0

// Sizing - план позиции для одной возможности
type Sizing struct {
	Size       float64
	Direction  string
	EntryPrice float64
	TakeProfit float64
	StopLoss   float64
}

// PositionSizer считает размер позиции по дробному Келли
//
// size = min(kelly * multiplier * bankroll, maxPositionSize), не меньше нуля.
type PositionSizer struct {
	defaultBankroll float64
}

// NewPositionSizer создаёт sizer; defaultBankroll используется при BankrollUnit=0
func NewPositionSizer(defaultBankroll float64) *PositionSizer {
	if defaultBankroll <= 0 {
		defaultBankroll = DefaultBankrollUnit
	}
	return &PositionSizer{defaultBankroll: defaultBankroll}
}

func (ps *PositionSizer) bankroll(cfg *models.RiskConfig) float64 {
	if cfg.BankrollUnit > 0 {
		return cfg.BankrollUnit
	}
	return ps.defaultBankroll
}

// Size возвращает размер позиции в единицах банкролла
func (ps *PositionSizer) Size(opp *models.Opportunity, cfg *models.RiskConfig) float64 {
	raw := opp.KellyFraction * cfg.KellyMultiplier * ps.bankroll(cfg)
	if raw <= 0 {
		return 0
	}
	return utils.Min(raw, cfg.MaxPositionSize)
}

// CheckExposure отклоняет сделку, если суммарная открытая экспозиция превысит лимит
func (ps *PositionSizer) CheckExposure(openExposure, size float64, cfg *models.RiskConfig) error {
	if openExposure+size > cfg.MaxPortfolioExposure {
		return fmt.Errorf("open %.2f + new %.2f > max %.2f: %w",
			openExposure, size, cfg.MaxPortfolioExposure, ErrExposureLimit)
	}
	return nil
}

// Direction - long при положительном edge, иначе short
func (ps *PositionSizer) Direction(opp *models.Opportunity) string {
	if opp.Edge > 0 {
		return models.DirectionLong
	}
	return models.DirectionShort
}

// Levels возвращает уровни take profit и stop loss от цены входа
func (ps *PositionSizer) Levels(direction string, price float64, cfg *models.RiskConfig) (takeProfit, stopLoss float64) {
	if direction == models.DirectionLong {
		return scalePrice(price, cfg.TakeProfitPercent), scalePrice(price, -cfg.StopLossPercent)
	}
	return scalePrice(price, -cfg.TakeProfitPercent), scalePrice(price, cfg.StopLossPercent)
}

// Plan собирает размер, направление и уровни
//
// Уровни считаются от рыночной цены возможности и не пересчитываются от цены исполнения.
func (ps *PositionSizer) Plan(opp *models.Opportunity, cfg *models.RiskConfig) Sizing {
	direction := ps.Direction(opp)
	tp, sl := ps.Levels(direction, opp.MarketPrice, cfg)
	return Sizing{
		Size:       ps.Size(opp, cfg),
		Direction:  direction,
		EntryPrice: opp.MarketPrice,
		TakeProfit: tp,
		StopLoss:   sl,
	}
}
