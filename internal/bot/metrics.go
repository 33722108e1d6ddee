package bot

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ============================================================
// Prometheus метрики торгового ядра
// ============================================================

const metricsNamespace = "autotrader"

// ============ Цикл ============

// CyclesTotal - завершённые циклы по итогу
var CyclesTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Subsystem: "engine",
		Name:      "cycles_total",
		Help:      "Trading cycles by outcome",
	},
	[]string{"outcome"},
)

// CycleDuration - длительность цикла
var CycleDuration = promauto.NewHistogram(
	prometheus.HistogramOpts{
		Namespace: metricsNamespace,
		Subsystem: "engine",
		Name:      "cycle_duration_seconds",
		Help:      "Duration of a trading cycle in seconds",
		Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 15, 30, 60, 120},
	},
)

// ============ Ордера ============

// OrderAttempts - попытки отправки ордера по результату
var OrderAttempts = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Subsystem: "orders",
		Name:      "attempts_total",
		Help:      "Order submission attempts by result",
	},
	[]string{"platform", "result"}, // filled, rejected, timeout, error
)

// OrderLatency - время ответа площадки
var OrderLatency = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: metricsNamespace,
		Subsystem: "orders",
		Name:      "latency_ms",
		Help:      "Order submission latency in milliseconds",
		Buckets:   []float64{50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000},
	},
	[]string{"platform"},
)

// TradesExecuted - открытые позиции
var TradesExecuted = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Subsystem: "trading",
		Name:      "trades_executed_total",
		Help:      "Positions opened by the engine",
	},
	[]string{"platform", "direction"},
)

// ============ Позиции ============

// PositionsClosed - закрытия по причине
var PositionsClosed = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Subsystem: "trading",
		Name:      "positions_closed_total",
		Help:      "Positions closed by reason",
	},
	[]string{"reason"}, // take_profit, stop_loss, trailing_stop
)

// OpenPositions - текущее число открытых позиций
var OpenPositions = promauto.NewGauge(
	prometheus.GaugeOpts{
		Namespace: metricsNamespace,
		Subsystem: "trading",
		Name:      "open_positions",
		Help:      "Current number of open positions",
	},
)

// OpenExposure - суммарный размер открытых позиций
var OpenExposure = promauto.NewGauge(
	prometheus.GaugeOpts{
		Namespace: metricsNamespace,
		Subsystem: "trading",
		Name:      "open_exposure",
		Help:      "Sum of open position sizes",
	},
)

// DailyTrades - авто-сделки за текущий день
var DailyTrades = promauto.NewGauge(
	prometheus.GaugeOpts{
		Namespace: metricsNamespace,
		Subsystem: "trading",
		Name:      "daily_trades",
		Help:      "Auto trades opened since local day start",
	},
)

// NotificationsDropped - события, потерянные при переполненном буфере
var NotificationsDropped = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Subsystem: "notifications",
		Name:      "dropped_total",
		Help:      "Notifications dropped because the buffer was full",
	},
)

// ============ Вспомогательные функции ============

// RecordCycle записывает итог и длительность цикла
func RecordCycle(outcome Outcome, seconds float64) {
	CyclesTotal.WithLabelValues(string(outcome)).Inc()
	CycleDuration.Observe(seconds)
}

// RecordOrderAttempt записывает попытку ордера
func RecordOrderAttempt(platform, result string, latencyMs float64) {
	OrderAttempts.WithLabelValues(platform, result).Inc()
	if latencyMs > 0 {
		OrderLatency.WithLabelValues(platform).Observe(latencyMs)
	}
}

// RecordPositionClosed записывает закрытие позиции
func RecordPositionClosed(reason string) {
	PositionsClosed.WithLabelValues(reason).Inc()
}

// UpdatePortfolio обновляет gauges портфеля
func UpdatePortfolio(open int, exposure float64, dailyTrades int) {
	OpenPositions.Set(float64(open))
	OpenExposure.Set(exposure)
	DailyTrades.Set(float64(dailyTrades))
}

// RecordNotificationDropped записывает потерянное уведомление
func RecordNotificationDropped() {
	NotificationsDropped.Inc()
}
