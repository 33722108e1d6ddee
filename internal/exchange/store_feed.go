package exchange

import (
	"context"
	"fmt"
)

// LatestPriceSource - последняя наблюдаемая цена рынка из хранилища
//
// Реализуется repository.OpportunityRepository.
type LatestPriceSource interface {
	GetLatestPrice(platform, marketID string) (float64, error)
}

// StoreFeed - PriceFeed поверх таблицы возможностей upstream-пайплайна
//
// Используется в paper-режиме, когда шлюз котировок недоступен.
type StoreFeed struct {
	source LatestPriceSource
}

// NewStoreFeed создаёт feed поверх источника цен
func NewStoreFeed(source LatestPriceSource) *StoreFeed {
	return &StoreFeed{source: source}
}

// CurrentPrice возвращает последнюю цену рынка
func (f *StoreFeed) CurrentPrice(ctx context.Context, platform, marketID string) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	price, err := f.source.GetLatestPrice(platform, marketID)
	if err != nil {
		return 0, fmt.Errorf("%s/%s: %w: %v", platform, marketID, ErrPriceUnavailable, err)
	}
	return price, nil
}
