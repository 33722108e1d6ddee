package exchange

import (
	"errors"
	"time"
)

// Режимы исполнения ордеров
const (
	ModePaper   = "paper"
	ModeGateway = "gateway"
)

// Options - выбор клиента и источника котировок для хоста
type Options struct {
	Paper        bool
	PaperLatency time.Duration
	PaperPrices  LatestPriceSource // котировки для paper-режима
	Gateway      GatewayConfig
}

// New создаёт клиента ордеров и источник котировок по настройкам
//
// Paper: исполнение dry-run, цены из хранилища возможностей.
// Gateway: ордера и цены через HTTP шлюз.
func New(opts Options) (Client, PriceFeed, string, error) {
	if opts.Paper {
		if opts.PaperPrices == nil {
			return nil, nil, "", errors.New("paper mode requires a price source")
		}
		return NewPaper(opts.PaperLatency), NewStoreFeed(opts.PaperPrices), ModePaper, nil
	}

	if opts.Gateway.BaseURL == "" {
		return nil, nil, "", errors.New("exchange gateway URL is not configured")
	}
	gw := NewGateway(opts.Gateway)
	return gw, gw, ModeGateway, nil
}
