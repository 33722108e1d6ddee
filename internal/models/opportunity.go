package models

import "time"

// Opportunity представляет торговую возможность от upstream-пайплайна оценки вероятностей
//
// Движок меняет только Status: active → executed после успешного ордера.
type Opportunity struct {
	ID                   int64      `json:"id" db:"id"`
	Platform             string     `json:"platform" db:"platform"`
	MarketID             string     `json:"market_id" db:"market_id"`
	Question             string     `json:"question" db:"question"`
	Category             string     `json:"category" db:"category"`
	MarketPrice          float64    `json:"market_price" db:"market_price"`                   // [0,1]
	EstimatedProbability float64    `json:"estimated_probability" db:"estimated_probability"` // [0,1]
	Edge                 float64    `json:"edge" db:"edge"`                                   // probability - price, со знаком
	Confidence           float64    `json:"confidence" db:"confidence"`
	KellyFraction        float64    `json:"kelly_fraction" db:"kelly_fraction"`
	RecommendedAction    string     `json:"recommended_action" db:"recommended_action"`
	Status               string     `json:"status" db:"status"`
	CreatedAt            time.Time  `json:"created_at" db:"created_at"`
	ExpiresAt            *time.Time `json:"expires_at,omitempty" db:"expires_at"`
}

// Статусы возможности
const (
	OpportunityStatusActive   = "active"
	OpportunityStatusExecuted = "executed"
	OpportunityStatusExpired  = "expired"
)

// Рекомендации модели
const (
	ActionStrongBuy  = "strong_buy"
	ActionBuy        = "buy"
	ActionHold       = "hold"
	ActionAvoid      = "avoid"
	ActionSell       = "sell"
	ActionStrongSell = "strong_sell"
)

// IsBuyAction возвращает true для рекомендаций, по которым разрешён вход
func IsBuyAction(action string) bool {
	return action == ActionStrongBuy || action == ActionBuy
}

// IsExpired проверяет истечение срока возможности
func (o *Opportunity) IsExpired(now time.Time) bool {
	if o.Status == OpportunityStatusExpired {
		return true
	}
	return o.ExpiresAt != nil && !now.Before(*o.ExpiresAt)
}
