package exchange

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"

	"autotrader/pkg/crypto"
	"autotrader/pkg/ratelimit"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	gatewayOrdersPath = "/v1/orders"
	gatewayPricePath  = "/v1/markets/%s/%s/price"

	headerAPIKey      = "X-API-KEY"
	headerSignature   = "X-SIGNATURE"
	headerTimestamp   = "X-TIMESTAMP"
	headerIdempotency = "Idempotency-Key"
)

// GatewayConfig - параметры HTTP шлюза ордеров
type GatewayConfig struct {
	BaseURL    string
	APIKey     string
	APISecret  string // уже расшифрованный
	OrderRate  float64
	OrderBurst float64
	PriceRate  float64
	PriceBurst float64
	HTTP       HTTPClientConfig
}

// Gateway реализует Client и PriceFeed поверх HTTP шлюза ордеров
//
// Запросы подписываются HMAC-SHA256 (timestamp + method + path + body).
// Повторная отправка ордера с тем же ClientOrderID дедуплицируется шлюзом.
type Gateway struct {
	baseURL string
	apiKey  string
	secret  string

	httpClient *http.Client
	limits     *ratelimit.Endpoints
	now        func() time.Time
}

// orderPayload - тело POST /v1/orders
type orderPayload struct {
	Platform string `json:"platform"`
	OrderRequest
}

// gatewayErrorBody - тело ответа с ошибкой
type gatewayErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// NewGateway создаёт клиента шлюза
func NewGateway(cfg GatewayConfig) *Gateway {
	limits := ratelimit.NewEndpoints()
	limits.Add(ratelimit.CategoryOrders, cfg.OrderRate, cfg.OrderBurst)
	limits.Add(ratelimit.CategoryPrices, cfg.PriceRate, cfg.PriceBurst)

	return &Gateway{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		secret:     cfg.APISecret,
		httpClient: NewHTTPClient(cfg.HTTP),
		limits:     limits,
		now:        time.Now,
	}
}

// ExecuteTrade отправляет ордер на вход
//
// HTTP 4xx (кроме 408/429) - постоянный отказ, 5xx и сетевые ошибки - временные.
// Ответ 200 с success=false возвращается как есть: решение о повторе принимает исполнитель.
func (g *Gateway) ExecuteTrade(ctx context.Context, platform string, req OrderRequest) (*OrderResult, error) {
	if err := g.limits.Wait(ctx, ratelimit.CategoryOrders); err != nil {
		return nil, err
	}

	body, err := json.Marshal(orderPayload{Platform: platform, OrderRequest: req})
	if err != nil {
		return nil, fmt.Errorf("encode order: %w", err)
	}

	headers := map[string]string{headerIdempotency: req.ClientOrderID}
	respBody, err := g.doRequest(ctx, platform, http.MethodPost, gatewayOrdersPath, body, headers)
	if err != nil {
		return nil, err
	}

	var result OrderResult
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, &ExchangeError{Platform: platform, Message: "malformed order response", Transient: true, Original: err}
	}
	return &result, nil
}

// CurrentPrice запрашивает текущую цену рынка
func (g *Gateway) CurrentPrice(ctx context.Context, platform, marketID string) (float64, error) {
	if err := g.limits.Wait(ctx, ratelimit.CategoryPrices); err != nil {
		return 0, err
	}

	path := fmt.Sprintf(gatewayPricePath, url.PathEscape(platform), url.PathEscape(marketID))
	respBody, err := g.doRequest(ctx, platform, http.MethodGet, path, nil, nil)
	if err != nil {
		var exErr *ExchangeError
		if errors.As(err, &exErr) && exErr.Code == strconv.Itoa(http.StatusNotFound) {
			return 0, fmt.Errorf("%s/%s: %w", platform, marketID, ErrPriceUnavailable)
		}
		return 0, err
	}

	var resp struct {
		Price *float64 `json:"price"`
	}
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return 0, fmt.Errorf("decode price: %w", err)
	}
	if resp.Price == nil {
		return 0, fmt.Errorf("%s/%s: %w", platform, marketID, ErrPriceUnavailable)
	}
	return *resp.Price, nil
}

// doRequest выполняет подписанный запрос и классифицирует ошибки
func (g *Gateway) doRequest(ctx context.Context, platform, method, path string, body []byte, headers map[string]string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, g.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	ts := g.now().UnixMilli()
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(headerAPIKey, g.apiKey)
	req.Header.Set(headerTimestamp, strconv.FormatInt(ts, 10))
	req.Header.Set(headerSignature, crypto.SignRequest(g.secret, ts, method, path, body))
	for k, v := range headers {
		if v != "" {
			req.Header.Set(k, v)
		}
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		// отмена или таймаут вызывающего - не ошибка площадки
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, &ExchangeError{Platform: platform, Message: "gateway unreachable", Transient: true, Original: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &ExchangeError{Platform: platform, Message: "read response", Transient: true, Original: err}
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return respBody, nil
	}

	var errBody gatewayErrorBody
	_ = json.Unmarshal(respBody, &errBody)
	msg := errBody.Message
	if msg == "" {
		msg = http.StatusText(resp.StatusCode)
	}

	return nil, &ExchangeError{
		Platform:  platform,
		Code:      strconv.Itoa(resp.StatusCode),
		Message:   msg,
		Transient: isTransientStatus(resp.StatusCode),
	}
}

// isTransientStatus - статусы, при которых повтор имеет смысл
func isTransientStatus(code int) bool {
	return code >= 500 || code == http.StatusTooManyRequests || code == http.StatusRequestTimeout
}
