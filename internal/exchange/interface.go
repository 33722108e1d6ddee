package exchange

import (
	"context"
	"errors"
	"fmt"
)

// Client отправляет ордера на площадку предсказательных рынков
//
// Реализации: Gateway (HTTP шлюз ордеров) и Paper (dry-run).
// ExecuteTrade должен уважать отмену ctx; ответ после отмены игнорируется вызывающим.
type Client interface {
	ExecuteTrade(ctx context.Context, platform string, req OrderRequest) (*OrderResult, error)
}

// PriceFeed отдаёт текущую вероятность-цену рынка в [0,1]
type PriceFeed interface {
	CurrentPrice(ctx context.Context, platform, marketID string) (float64, error)
}

// OrderRequest - параметры ордера на вход в позицию
type OrderRequest struct {
	ClientOrderID     string  `json:"client_order_id"` // детерминированный, для дедупликации повторов
	MarketID          string  `json:"market_id"`
	Direction         string  `json:"direction"`     // long, short
	PositionSize      float64 `json:"position_size"` // в единицах банкролла
	EntryPrice        float64 `json:"entry_price"`   // ожидаемая цена
	SlippageTolerance float64 `json:"slippage_tolerance"`
}

// OrderResult - ответ площадки
type OrderResult struct {
	Success          bool    `json:"success"`
	ExecutedPrice    float64 `json:"executed_price"`
	ExecutedQuantity float64 `json:"executed_quantity"`
	OrderID          string  `json:"order_id"`
	RejectReason     string  `json:"reject_reason,omitempty"`
	Permanent        bool    `json:"permanent"` // отказ окончательный, повтор бесполезен
}

// ErrPriceUnavailable - котировка рынка отсутствует
var ErrPriceUnavailable = errors.New("price unavailable")

// ExchangeError представляет ошибку площадки или шлюза
//
// Transient=false означает постоянный отказ (неверный рынок, невалидный запрос):
// повтор ничего не изменит.
type ExchangeError struct {
	Platform  string
	Code      string
	Message   string
	Transient bool
	Original  error
}

func (e *ExchangeError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s: %s (code %s)", e.Platform, e.Message, e.Code)
	}
	return e.Platform + ": " + e.Message
}

// Unwrap возвращает оригинальную ошибку для поддержки errors.Is() и errors.As()
func (e *ExchangeError) Unwrap() error {
	return e.Original
}

// Retryable реализует retry.RetryableError
func (e *ExchangeError) Retryable() bool {
	return e.Transient
}
