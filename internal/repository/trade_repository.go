package repository

import (
	"database/sql"
	"errors"
	"time"

	"autotrader/internal/models"
)

// Ошибки репозитория сделок
var (
	ErrTradeNotFound = errors.New("trade not found")
)

const tradeColumns = `id, opportunity_id, platform, market_id, direction, entry_price, current_price,
		position_size, quantity, take_profit, stop_loss, initial_stop_loss, status, close_reason,
		unrealized_pnl, pnl, pnl_percent, auto_trade, order_id, open_date, close_date, updated_at`

// TradeRepository - работа с таблицей trades
type TradeRepository struct {
	db *sql.DB
}

// NewTradeRepository создает новый экземпляр репозитория
func NewTradeRepository(db *sql.DB) *TradeRepository {
	return &TradeRepository{db: db}
}

// rowScanner - общий интерфейс *sql.Row и *sql.Rows
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanTrade(row rowScanner) (*models.Trade, error) {
	t := &models.Trade{}
	err := row.Scan(
		&t.ID,
		&t.OpportunityID,
		&t.Platform,
		&t.MarketID,
		&t.Direction,
		&t.EntryPrice,
		&t.CurrentPrice,
		&t.PositionSize,
		&t.Quantity,
		&t.TakeProfit,
		&t.StopLoss,
		&t.InitialStopLoss,
		&t.Status,
		&t.CloseReason,
		&t.UnrealizedPnl,
		&t.Pnl,
		&t.PnlPercent,
		&t.AutoTrade,
		&t.OrderID,
		&t.OpenDate,
		&t.CloseDate,
		&t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return t, nil
}

func scanTrades(rows *sql.Rows) ([]*models.Trade, error) {
	defer rows.Close()

	var trades []*models.Trade
	for rows.Next() {
		t, err := scanTrade(rows)
		if err != nil {
			return nil, err
		}
		trades = append(trades, t)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return trades, nil
}

// Create сохраняет новую сделку и заполняет trade.ID
func (r *TradeRepository) Create(trade *models.Trade) error {
	query := `
		INSERT INTO trades (opportunity_id, platform, market_id, direction, entry_price, current_price,
			position_size, quantity, take_profit, stop_loss, initial_stop_loss, status, close_reason,
			unrealized_pnl, pnl, pnl_percent, auto_trade, order_id, open_date, close_date, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21)
		RETURNING id`

	if trade.OpenDate.IsZero() {
		trade.OpenDate = time.Now()
	}
	trade.UpdatedAt = trade.OpenDate

	return r.db.QueryRow(
		query,
		trade.OpportunityID,
		trade.Platform,
		trade.MarketID,
		trade.Direction,
		trade.EntryPrice,
		trade.CurrentPrice,
		trade.PositionSize,
		trade.Quantity,
		trade.TakeProfit,
		trade.StopLoss,
		trade.InitialStopLoss,
		trade.Status,
		trade.CloseReason,
		trade.UnrealizedPnl,
		trade.Pnl,
		trade.PnlPercent,
		trade.AutoTrade,
		trade.OrderID,
		trade.OpenDate,
		trade.CloseDate,
		trade.UpdatedAt,
	).Scan(&trade.ID)
}

// Update сохраняет результат мониторинга: цену, PnL, стоп и поля закрытия
//
// Закрытая сделка не переоткрывается: условие status = 'open' в WHERE.
func (r *TradeRepository) Update(trade *models.Trade) error {
	query := `
		UPDATE trades
		SET current_price = $2, unrealized_pnl = $3, pnl_percent = $4, stop_loss = $5,
			status = $6, pnl = $7, close_reason = $8, close_date = $9, updated_at = $10
		WHERE id = $1 AND status = 'open'`

	result, err := r.db.Exec(
		query,
		trade.ID,
		trade.CurrentPrice,
		trade.UnrealizedPnl,
		trade.PnlPercent,
		trade.StopLoss,
		trade.Status,
		trade.Pnl,
		trade.CloseReason,
		trade.CloseDate,
		trade.UpdatedAt,
	)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrTradeNotFound
	}

	return nil
}

// GetByID возвращает сделку по ID
func (r *TradeRepository) GetByID(id int64) (*models.Trade, error) {
	query := `SELECT ` + tradeColumns + ` FROM trades WHERE id = $1`

	t, err := scanTrade(r.db.QueryRow(query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTradeNotFound
		}
		return nil, err
	}

	return t, nil
}

// GetOpen возвращает открытые сделки в порядке открытия
func (r *TradeRepository) GetOpen() ([]*models.Trade, error) {
	query := `SELECT ` + tradeColumns + ` FROM trades WHERE status = 'open' ORDER BY open_date ASC, id ASC`

	rows, err := r.db.Query(query)
	if err != nil {
		return nil, err
	}

	return scanTrades(rows)
}

// GetRecent возвращает последние сделки; пустой status - все
func (r *TradeRepository) GetRecent(status string, limit int) ([]*models.Trade, error) {
	if limit <= 0 {
		limit = 50
	}

	var (
		rows *sql.Rows
		err  error
	)
	if status == "" {
		rows, err = r.db.Query(`SELECT `+tradeColumns+` FROM trades ORDER BY open_date DESC LIMIT $1`, limit)
	} else {
		rows, err = r.db.Query(`SELECT `+tradeColumns+` FROM trades WHERE status = $1 ORDER BY open_date DESC LIMIT $2`, status, limit)
	}
	if err != nil {
		return nil, err
	}

	return scanTrades(rows)
}

// CountAutoTradesSince считает авто-сделки, открытые не раньше since
func (r *TradeRepository) CountAutoTradesSince(since time.Time) (int, error) {
	query := `SELECT COUNT(*) FROM trades WHERE auto_trade = true AND open_date >= $1`

	var count int
	if err := r.db.QueryRow(query, since).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

// LastAutoTradeTime возвращает время последней авто-сделки или nil
func (r *TradeRepository) LastAutoTradeTime() (*time.Time, error) {
	query := `SELECT MAX(open_date) FROM trades WHERE auto_trade = true`

	var last sql.NullTime
	if err := r.db.QueryRow(query).Scan(&last); err != nil {
		return nil, err
	}
	if !last.Valid {
		return nil, nil
	}
	return &last.Time, nil
}

// GetTotalPnl - реализованный PnL по закрытым сделкам
func (r *TradeRepository) GetTotalPnl() (float64, error) {
	query := `SELECT COALESCE(SUM(pnl), 0) FROM trades WHERE status = 'closed'`

	var total float64
	if err := r.db.QueryRow(query).Scan(&total); err != nil {
		return 0, err
	}
	return total, nil
}
