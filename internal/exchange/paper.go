package exchange

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Paper - dry-run клиент: ордера исполняются по запрошенной цене без выхода на площадку
//
// Quantity = PositionSize / EntryPrice. Повтор с тем же ClientOrderID
// возвращает исходное исполнение.
type Paper struct {
	latency time.Duration
	fills   map[string]*OrderResult
	mu      sync.Mutex
}

// NewPaper создаёт paper-клиент; latency имитирует задержку площадки
func NewPaper(latency time.Duration) *Paper {
	return &Paper{
		latency: latency,
		fills:   make(map[string]*OrderResult),
	}
}

// ExecuteTrade имитирует исполнение ордера
func (p *Paper) ExecuteTrade(ctx context.Context, platform string, req OrderRequest) (*OrderResult, error) {
	if req.EntryPrice <= 0 {
		return nil, &ExchangeError{Platform: platform, Code: "invalid_price", Message: fmt.Sprintf("entry price %v", req.EntryPrice)}
	}
	if req.PositionSize <= 0 {
		return nil, &ExchangeError{Platform: platform, Code: "invalid_size", Message: fmt.Sprintf("position size %v", req.PositionSize)}
	}

	if p.latency > 0 {
		timer := time.NewTimer(p.latency)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if req.ClientOrderID != "" {
		if prev, ok := p.fills[req.ClientOrderID]; ok {
			fill := *prev
			return &fill, nil
		}
	}

	result := &OrderResult{
		Success:          true,
		ExecutedPrice:    req.EntryPrice,
		ExecutedQuantity: req.PositionSize / req.EntryPrice,
		OrderID:          "PAPER-" + uuid.NewString(),
	}
	if req.ClientOrderID != "" {
		fill := *result
		p.fills[req.ClientOrderID] = &fill
	}
	return result, nil
}
