package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Bucket - Token Bucket лимитер частоты исходящих запросов к шлюзу ордеров
//
// - Ведро наполняется токенами со скоростью rate токенов/сек
// - Ёмкость ведра = burst
// - Каждый запрос потребляет 1 токен, при пустом ведре Wait ждёт
//
//	limiter := NewBucket(5, 10) // 5 req/sec, burst 10
//	err := limiter.Wait(ctx)
type Bucket struct {
	rate       float64
	burst      float64
	tokens     float64
	lastRefill time.Time
	now        func() time.Time
	mu         sync.Mutex
}

// NewBucket создаёт лимитер с полным ведром
func NewBucket(rate, burst float64) *Bucket {
	if rate <= 0 {
		rate = 10
	}
	if burst <= 0 {
		burst = rate * 2
	}
	if burst < rate {
		burst = rate
	}

	b := &Bucket{
		rate:  rate,
		burst: burst,
		now:   time.Now,
	}
	b.tokens = burst
	b.lastRefill = b.now()
	return b
}

// refill пополняет токены на основе прошедшего времени (под lock'ом)
func (b *Bucket) refill() {
	now := b.now()
	elapsed := now.Sub(b.lastRefill).Seconds()
	if elapsed > 0 {
		b.tokens += elapsed * b.rate
		if b.tokens > b.burst {
			b.tokens = b.burst
		}
	}
	b.lastRefill = now
}

// Wait блокирует до получения токена или отмены контекста
func (b *Bucket) Wait(ctx context.Context) error {
	for {
		b.mu.Lock()
		b.refill()

		if b.tokens >= 1 {
			b.tokens--
			b.mu.Unlock()
			return nil
		}

		waitTime := time.Duration((1 - b.tokens) / b.rate * float64(time.Second))
		b.mu.Unlock()

		timer := time.NewTimer(waitTime)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		}
	}
}

// Allow забирает токен без блокировки
func (b *Bucket) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.refill()
	if b.tokens >= 1 {
		b.tokens--
		return true
	}
	return false
}

// Tokens возвращает текущее количество доступных токенов
func (b *Bucket) Tokens() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.refill()
	return b.tokens
}

// ============================================================
// Endpoints - лимиты по категориям запросов
// ============================================================

// Категории запросов шлюза
const (
	CategoryOrders = "orders"
	CategoryPrices = "prices"
)

// Endpoints хранит отдельное ведро на каждую категорию запросов
//
// Котировки могут запрашиваться чаще ордеров, поэтому у них свой бюджет.
type Endpoints struct {
	buckets map[string]*Bucket
	mu      sync.RWMutex
}

// NewEndpoints создаёт пустой набор лимитов
func NewEndpoints() *Endpoints {
	return &Endpoints{buckets: make(map[string]*Bucket)}
}

// Add задаёт лимит для категории
func (e *Endpoints) Add(category string, rate, burst float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.buckets[category] = NewBucket(rate, burst)
}

// Wait ожидает токен категории; категория без лимита пропускается сразу
func (e *Endpoints) Wait(ctx context.Context, category string) error {
	e.mu.RLock()
	b, ok := e.buckets[category]
	e.mu.RUnlock()

	if !ok {
		return nil
	}
	return b.Wait(ctx)
}

// Get возвращает ведро категории
func (e *Endpoints) Get(category string) *Bucket {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.buckets[category]
}
