package config

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"autotrader/internal/models"
)

// LoadRiskConfigFile читает конфигурацию риска из YAML
//
// Неизвестные ключи считаются ошибкой.
func LoadRiskConfigFile(path string) (*models.RiskConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read risk config file: %w", err)
	}
	return ParseRiskConfig(data)
}

// ParseRiskConfig разбирает YAML и проверяет диапазоны
func ParseRiskConfig(data []byte) (*models.RiskConfig, error) {
	cfg := &models.RiskConfig{
		OrderTimeoutSeconds: 30,
		RetryFailedOrders:   true,
		SlippageTolerance:   0.02,
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("parse risk config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid risk config: %w", err)
	}
	return cfg, nil
}
