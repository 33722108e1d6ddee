package service

import (
	"errors"
	"fmt"

	"autotrader/internal/config"
	"autotrader/internal/models"
	"autotrader/pkg/utils"
)

// ErrNoActiveRiskConfig - активной конфигурации риска нет
var ErrNoActiveRiskConfig = errors.New("no active risk config")

// RiskConfigStore - хранилище конфигураций риска
//
// Реализуется repository.RiskConfigRepository.
type RiskConfigStore interface {
	GetActive() (*models.RiskConfig, error)
	Create(cfg *models.RiskConfig) error
	Activate(id int64) error
	SetAutoTrade(enabled bool) error
}

// RiskService - управление конфигурацией риска вне торгового цикла
//
// Движок перечитывает активную конфигурацию в начале каждого цикла,
// поэтому изменения применяются со следующего цикла.
type RiskService struct {
	store  RiskConfigStore
	logger *utils.Logger
}

// NewRiskService создает новый экземпляр RiskService
func NewRiskService(store RiskConfigStore, logger *utils.Logger) *RiskService {
	if logger == nil {
		logger = utils.L()
	}
	return &RiskService{store: store, logger: logger.WithComponent("risk")}
}

// GetActive возвращает активную конфигурацию
func (s *RiskService) GetActive() (*models.RiskConfig, error) {
	cfg, err := s.store.GetActive()
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		return nil, ErrNoActiveRiskConfig
	}
	return cfg, nil
}

// EnsureActive активирует конфигурацию из YAML-файла, если активной нет
//
// Существующая активная конфигурация не перезаписывается. Пустой path без
// активной конфигурации не ошибка: движок будет ждать её появления.
func (s *RiskService) EnsureActive(path string) (*models.RiskConfig, error) {
	current, err := s.store.GetActive()
	if err != nil {
		return nil, fmt.Errorf("load active risk config: %w", err)
	}
	if current != nil {
		s.logger.Info("using active risk config", utils.Int64("risk_config_id", current.ID))
		return current, nil
	}
	if path == "" {
		s.logger.Warn("no active risk config and no seed file, trading stays idle")
		return nil, nil
	}

	seed, err := config.LoadRiskConfigFile(path)
	if err != nil {
		return nil, err
	}
	if err := s.store.Create(seed); err != nil {
		return nil, fmt.Errorf("store seed risk config: %w", err)
	}
	if err := s.store.Activate(seed.ID); err != nil {
		return nil, fmt.Errorf("activate seed risk config: %w", err)
	}
	seed.IsActive = true

	s.logger.Info("risk config seeded from file",
		utils.String("path", path),
		utils.Int64("risk_config_id", seed.ID),
		utils.Bool("auto_trade_enabled", seed.AutoTradeEnabled))
	return seed, nil
}

// SetAutoTrade включает или выключает авто-трейдинг
func (s *RiskService) SetAutoTrade(enabled bool) error {
	if err := s.store.SetAutoTrade(enabled); err != nil {
		return err
	}
	s.logger.Info("auto trading toggled", utils.Bool("enabled", enabled))
	return nil
}
