package utils

import (
	"math"
)

// math.go - математические утилиты для торговых расчётов
//
// Все функции чистые, без побочных эффектов.

// Границы котировки бинарного рынка
const (
	MinBinaryPrice = 0.01
	MaxBinaryPrice = 0.99
)

// Abs возвращает абсолютное значение числа.
func Abs(x float64) float64 {
	return math.Abs(x)
}

// Min возвращает минимум из двух чисел.
func Min(a, b float64) float64 {
	return math.Min(a, b)
}

// Max возвращает максимум из двух чисел.
func Max(a, b float64) float64 {
	return math.Max(a, b)
}

// Clamp ограничивает значение диапазоном [min, max].
func Clamp(value, min, max float64) float64 {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}

// ClampBinaryPrice ограничивает цену диапазоном [0.01, 0.99].
func ClampBinaryPrice(price float64) float64 {
	return Clamp(price, MinBinaryPrice, MaxBinaryPrice)
}
