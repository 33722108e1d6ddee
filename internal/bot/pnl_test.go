package bot

import (
	"testing"

	"autotrader/internal/models"
)

func TestCalculatePnL(t *testing.T) {
	tests := []struct {
		name        string
		direction   string
		entry       float64
		price       float64
		qty         float64
		size        float64
		wantAmount  float64
		wantPercent float64
	}{
		{"long profit", models.DirectionLong, 0.40, 0.49, 100, 40, 9, 22.5},
		{"long loss", models.DirectionLong, 0.40, 0.35, 100, 40, -5, -12.5},
		{"short profit", models.DirectionShort, 0.60, 0.45, 100, 60, 15, 25},
		{"short loss", models.DirectionShort, 0.60, 0.66, 100, 60, -6, -10},
		{"flat", models.DirectionLong, 0.40, 0.40, 100, 40, 0, 0},
		{"zero size has no percent", models.DirectionLong, 0.40, 0.50, 100, 0, 10, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CalculatePnL(tt.direction, tt.entry, tt.price, tt.qty, tt.size)
			if got.Amount != tt.wantAmount {
				t.Errorf("Amount = %v, want %v", got.Amount, tt.wantAmount)
			}
			if got.Percent != tt.wantPercent {
				t.Errorf("Percent = %v, want %v", got.Percent, tt.wantPercent)
			}
		})
	}
}

// TestCalculatePnL_NoBinaryDrift - (0.49 - 0.40) * 100 во float64 даёт 8.999999999999998
func TestCalculatePnL_NoBinaryDrift(t *testing.T) {
	entry, price := 0.40, 0.49
	if naive := (price - entry) * 100; naive == 9 {
		t.Skip("float64 arithmetic happens to be exact on this platform")
	}
	if got := CalculatePnL(models.DirectionLong, 0.40, 0.49, 100, 40).Amount; got != 9 {
		t.Errorf("Amount = %v, want exactly 9", got)
	}
}

func TestScalePrice(t *testing.T) {
	tests := []struct {
		price, pct, want float64
	}{
		{0.45, -0.05, 0.4275},
		{0.40, 0.2, 0.48},
		{0.40, -0.12, 0.352},
		{0.60, 0.12, 0.672},
		{0.50, 0, 0.5},
	}

	for _, tt := range tests {
		if got := scalePrice(tt.price, tt.pct); got != tt.want {
			t.Errorf("scalePrice(%v, %v) = %v, want %v", tt.price, tt.pct, got, tt.want)
		}
	}
}
