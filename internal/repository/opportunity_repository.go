package repository

import (
	"database/sql"
	"errors"
	"time"

	"autotrader/internal/models"
)

// Ошибки репозитория возможностей
var (
	ErrOpportunityNotFound = errors.New("opportunity not found")
	ErrPriceNotFound       = errors.New("no price observed for market")
)

const opportunityColumns = `id, platform, market_id, question, category, market_price, estimated_probability,
		edge, confidence, kelly_fraction, recommended_action, status, created_at, expires_at`

// OpportunityRepository - таблица opportunities, которую заполняет upstream-пайплайн
//
// Движок только читает активные записи и помечает исполненные.
type OpportunityRepository struct {
	db *sql.DB
	// now подменяется в тестах
	now func() time.Time
}

// NewOpportunityRepository создает новый экземпляр репозитория
func NewOpportunityRepository(db *sql.DB) *OpportunityRepository {
	return &OpportunityRepository{db: db, now: time.Now}
}

func scanOpportunity(row rowScanner) (*models.Opportunity, error) {
	o := &models.Opportunity{}
	var expiresAt sql.NullTime
	err := row.Scan(
		&o.ID,
		&o.Platform,
		&o.MarketID,
		&o.Question,
		&o.Category,
		&o.MarketPrice,
		&o.EstimatedProbability,
		&o.Edge,
		&o.Confidence,
		&o.KellyFraction,
		&o.RecommendedAction,
		&o.Status,
		&o.CreatedAt,
		&expiresAt,
	)
	if err != nil {
		return nil, err
	}
	if expiresAt.Valid {
		t := expiresAt.Time
		o.ExpiresAt = &t
	}
	return o, nil
}

// GetActive возвращает активные неистёкшие возможности, сильный edge первым
func (r *OpportunityRepository) GetActive() ([]*models.Opportunity, error) {
	query := `
		SELECT ` + opportunityColumns + `
		FROM opportunities
		WHERE status = 'active' AND (expires_at IS NULL OR expires_at > $1)
		ORDER BY ABS(edge) DESC, id ASC`

	rows, err := r.db.Query(query, r.now())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var opps []*models.Opportunity
	for rows.Next() {
		o, err := scanOpportunity(rows)
		if err != nil {
			return nil, err
		}
		opps = append(opps, o)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return opps, nil
}

// MarkExecuted переводит активную возможность в executed
//
// Повторный вызов для уже исполненной записи не считается ошибкой.
func (r *OpportunityRepository) MarkExecuted(id int64) error {
	query := `UPDATE opportunities SET status = 'executed' WHERE id = $1 AND status IN ('active', 'executed')`

	result, err := r.db.Exec(query, id)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrOpportunityNotFound
	}

	return nil
}

// GetLatestPrice возвращает последнюю наблюдаемую цену рынка
func (r *OpportunityRepository) GetLatestPrice(platform, marketID string) (float64, error) {
	query := `
		SELECT market_price FROM opportunities
		WHERE platform = $1 AND market_id = $2
		ORDER BY created_at DESC
		LIMIT 1`

	var price float64
	err := r.db.QueryRow(query, platform, marketID).Scan(&price)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, ErrPriceNotFound
		}
		return 0, err
	}
	return price, nil
}

// ExpireStale помечает expired все активные записи с истёкшим сроком
func (r *OpportunityRepository) ExpireStale() (int64, error) {
	query := `UPDATE opportunities SET status = 'expired' WHERE status = 'active' AND expires_at IS NOT NULL AND expires_at <= $1`

	result, err := r.db.Exec(query, r.now())
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
