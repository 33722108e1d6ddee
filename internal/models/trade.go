package models

import "time"

// Trade представляет позицию, открытую движком, на всём её жизненном цикле
//
// Status переходит open → closed ровно один раз, вместе с Pnl, CloseDate и CloseReason.
type Trade struct {
	ID              int64      `json:"id" db:"id"`
	OpportunityID   int64      `json:"opportunity_id" db:"opportunity_id"`
	Platform        string     `json:"platform" db:"platform"`
	MarketID        string     `json:"market_id" db:"market_id"`
	Direction       string     `json:"direction" db:"direction"` // long, short
	EntryPrice      float64    `json:"entry_price" db:"entry_price"`
	CurrentPrice    float64    `json:"current_price" db:"current_price"`
	PositionSize    float64    `json:"position_size" db:"position_size"`
	Quantity        float64    `json:"quantity" db:"quantity"`
	TakeProfit      float64    `json:"take_profit" db:"take_profit"`
	StopLoss        float64    `json:"stop_loss" db:"stop_loss"`                 // подтягивается trailing stop
	InitialStopLoss float64    `json:"initial_stop_loss" db:"initial_stop_loss"` // значение при открытии
	Status          string     `json:"status" db:"status"`
	CloseReason     string     `json:"close_reason,omitempty" db:"close_reason"`
	UnrealizedPnl   float64    `json:"unrealized_pnl" db:"unrealized_pnl"`
	Pnl             *float64   `json:"pnl,omitempty" db:"pnl"` // фиксируется при закрытии
	PnlPercent      float64    `json:"pnl_percent" db:"pnl_percent"`
	AutoTrade       bool       `json:"auto_trade" db:"auto_trade"`
	OrderID         string     `json:"order_id" db:"order_id"`
	OpenDate        time.Time  `json:"open_date" db:"open_date"`
	CloseDate       *time.Time `json:"close_date,omitempty" db:"close_date"`
	UpdatedAt       time.Time  `json:"updated_at" db:"updated_at"`
}

// Направления позиции
const (
	DirectionLong  = "long"
	DirectionShort = "short"
)

// Статусы сделки
const (
	TradeStatusOpen   = "open"
	TradeStatusClosed = "closed"
)

// Причины закрытия
const (
	CloseReasonTakeProfit   = "take_profit"
	CloseReasonStopLoss     = "stop_loss"
	CloseReasonTrailingStop = "trailing_stop"
)

// IsOpen возвращает true для открытой позиции
func (t *Trade) IsOpen() bool {
	return t.Status == TradeStatusOpen
}

// StopMoved показывает, что стоп подтянут trailing stop'ом
func (t *Trade) StopMoved() bool {
	return t.StopLoss != t.InitialStopLoss
}
