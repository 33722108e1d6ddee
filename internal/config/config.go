package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config содержит всю конфигурацию приложения
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Security SecurityConfig
	Bot      BotConfig
	Exchange ExchangeConfig
	Logging  LoggingConfig
}

// ServerConfig - настройки HTTP сервера
type ServerConfig struct {
	Port            int
	Host            string
	UseHTTPS        bool
	CertFile        string
	KeyFile         string
	ShutdownTimeout time.Duration
}

// DatabaseConfig - настройки подключения к БД
type DatabaseConfig struct {
	Driver       string
	Host         string
	Port         int
	Name         string
	User         string
	Password     string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

// SecurityConfig - настройки безопасности
type SecurityConfig struct {
	APITokenHash  string // bcrypt хеш bearer-токена управляющего API
	EncryptionKey string // AES-256 ключ для секрета шлюза
}

// BotConfig - настройки движка
type BotConfig struct {
	DefaultScanInterval time.Duration // пока нет активной конфигурации риска
	Timezone            string        // граница торгового дня
	ActivityLogSize     int
	PaperTrading        bool
	DefaultBankrollUnit float64
	RetryBackoff        time.Duration
	RunOnStart          bool
	AutoStart           bool

	// Уведомления
	NotificationBuffer    int
	NotificationRetention time.Duration

	// YAML с конфигурацией риска для первого запуска
	RiskConfigFile string
}

// ExchangeConfig - HTTP шлюз ордеров
type ExchangeConfig struct {
	GatewayURL     string
	APIKey         string
	APISecretEnc   string // зашифрован ENCRYPTION_KEY
	OrderRate      float64
	OrderBurst     float64
	PriceRate      float64
	PriceBurst     float64
	ConnectTimeout time.Duration
	RequestTimeout time.Duration
	PaperLatency   time.Duration
}

// LoggingConfig - настройки логирования
type LoggingConfig struct {
	Level       string
	Format      string
	Output      string
	Development bool
}

// Load загружает конфигурацию из переменных окружения
//
// Файлы .env (если есть) читаются первыми и не перекрывают уже заданные переменные.
func Load(envFiles ...string) (*Config, error) {
	if err := loadEnvFiles(envFiles...); err != nil {
		return nil, err
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:            getEnvAsInt("SERVER_PORT", 8080),
			Host:            getEnv("SERVER_HOST", "0.0.0.0"),
			UseHTTPS:        getEnvAsBool("USE_HTTPS", false),
			CertFile:        getEnv("CERT_FILE", ""),
			KeyFile:         getEnv("KEY_FILE", ""),
			ShutdownTimeout: getEnvAsDuration("SHUTDOWN_TIMEOUT", 30*time.Second),
		},
		Database: DatabaseConfig{
			Driver:       getEnv("DB_DRIVER", "postgres"),
			Host:         getEnv("DB_HOST", "localhost"),
			Port:         getEnvAsInt("DB_PORT", 5432),
			Name:         getEnv("DB_NAME", "autotrader"),
			User:         getEnv("DB_USER", "user"),
			Password:     getEnv("DB_PASSWORD", "password"),
			SSLMode:      getEnv("DB_SSL_MODE", "disable"),
			MaxOpenConns: getEnvAsInt("DB_MAX_OPEN_CONNS", 10),
			MaxIdleConns: getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
		},
		Security: SecurityConfig{
			APITokenHash:  getEnv("API_TOKEN_HASH", ""),
			EncryptionKey: getEnv("ENCRYPTION_KEY", ""),
		},
		Bot: BotConfig{
			DefaultScanInterval:   getEnvAsDuration("BOT_DEFAULT_SCAN_INTERVAL", 5*time.Minute),
			Timezone:              getEnv("BOT_TIMEZONE", "UTC"),
			ActivityLogSize:       getEnvAsInt("BOT_ACTIVITY_LOG_SIZE", 200),
			PaperTrading:          getEnvAsBool("BOT_PAPER_TRADING", true),
			DefaultBankrollUnit:   getEnvAsFloat("BOT_DEFAULT_BANKROLL_UNIT", 10000),
			RetryBackoff:          getEnvAsDuration("BOT_RETRY_BACKOFF", 500*time.Millisecond),
			RunOnStart:            getEnvAsBool("BOT_RUN_ON_START", false),
			AutoStart:             getEnvAsBool("BOT_AUTO_START", true),
			NotificationBuffer:    getEnvAsInt("BOT_NOTIFICATION_BUFFER", 256),
			NotificationRetention: getEnvAsDuration("BOT_NOTIFICATION_RETENTION", 30*24*time.Hour),
			RiskConfigFile:        getEnv("BOT_RISK_CONFIG_FILE", ""),
		},
		Exchange: ExchangeConfig{
			GatewayURL:     getEnv("EXCHANGE_GATEWAY_URL", ""),
			APIKey:         getEnv("EXCHANGE_API_KEY", ""),
			APISecretEnc:   getEnv("EXCHANGE_API_SECRET_ENC", ""),
			OrderRate:      getEnvAsFloat("EXCHANGE_ORDER_RATE", 5),
			OrderBurst:     getEnvAsFloat("EXCHANGE_ORDER_BURST", 5),
			PriceRate:      getEnvAsFloat("EXCHANGE_PRICE_RATE", 20),
			PriceBurst:     getEnvAsFloat("EXCHANGE_PRICE_BURST", 20),
			ConnectTimeout: getEnvAsDuration("EXCHANGE_CONNECT_TIMEOUT", 5*time.Second),
			RequestTimeout: getEnvAsDuration("EXCHANGE_REQUEST_TIMEOUT", 30*time.Second),
			PaperLatency:   getEnvAsDuration("EXCHANGE_PAPER_LATENCY", 0),
		},
		Logging: LoggingConfig{
			Level:       getEnv("LOG_LEVEL", "info"),
			Format:      getEnv("LOG_FORMAT", "json"),
			Output:      getEnv("LOG_OUTPUT", "stdout"),
			Development: getEnvAsBool("LOG_DEVELOPMENT", false),
		},
	}

	// Валидация критичных параметров безопасности
	if err := cfg.validateSecurity(); err != nil {
		return nil, err
	}

	// Валидация числовых диапазонов
	if err := cfg.validateRanges(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// loadEnvFiles подгружает .env; отсутствующий файл по умолчанию не ошибка
func loadEnvFiles(files ...string) error {
	if len(files) == 0 {
		if _, err := os.Stat(".env"); err != nil {
			return nil
		}
		files = []string{".env"}
	}
	if err := godotenv.Load(files...); err != nil {
		return fmt.Errorf("load env files %v: %w", files, err)
	}
	return nil
}

// validateSecurity проверяет параметры безопасности
func (c *Config) validateSecurity() error {
	// API_TOKEN_HASH обязателен: управляющее API запускает и останавливает торговлю
	if c.Security.APITokenHash == "" {
		return errors.New("API_TOKEN_HASH is required for the control API")
	}

	if !strings.HasPrefix(c.Security.APITokenHash, "$2") {
		return errors.New("API_TOKEN_HASH must be a bcrypt hash")
	}

	// Живой шлюз: секрет хранится только зашифрованным
	if !c.Bot.PaperTrading {
		if c.Exchange.GatewayURL == "" {
			return errors.New("EXCHANGE_GATEWAY_URL is required when BOT_PAPER_TRADING=false")
		}
		if c.Exchange.APISecretEnc == "" {
			return errors.New("EXCHANGE_API_SECRET_ENC is required when BOT_PAPER_TRADING=false")
		}
		if len(c.Security.EncryptionKey) != 32 {
			return errors.New("ENCRYPTION_KEY must be exactly 32 bytes for AES-256")
		}
	}

	return nil
}

// validateRanges проверяет числовые диапазоны параметров
func (c *Config) validateRanges() error {
	// Валидация портов
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("SERVER_PORT must be between 1 and 65535, got %d", c.Server.Port)
	}

	if c.Database.Port < 1 || c.Database.Port > 65535 {
		return fmt.Errorf("DB_PORT must be between 1 and 65535, got %d", c.Database.Port)
	}

	if c.Bot.DefaultScanInterval <= 0 {
		return fmt.Errorf("BOT_DEFAULT_SCAN_INTERVAL must be positive, got %v", c.Bot.DefaultScanInterval)
	}

	if _, err := c.Bot.Location(); err != nil {
		return fmt.Errorf("BOT_TIMEZONE is invalid: %w", err)
	}

	if c.Bot.ActivityLogSize < 1 {
		return fmt.Errorf("BOT_ACTIVITY_LOG_SIZE must be at least 1, got %d", c.Bot.ActivityLogSize)
	}

	if c.Bot.DefaultBankrollUnit <= 0 {
		return fmt.Errorf("BOT_DEFAULT_BANKROLL_UNIT must be positive, got %v", c.Bot.DefaultBankrollUnit)
	}

	if c.Bot.RetryBackoff <= 0 {
		return fmt.Errorf("BOT_RETRY_BACKOFF must be positive, got %v", c.Bot.RetryBackoff)
	}

	if c.Bot.NotificationBuffer < 1 {
		return fmt.Errorf("BOT_NOTIFICATION_BUFFER must be at least 1, got %d", c.Bot.NotificationBuffer)
	}

	if c.Exchange.OrderRate <= 0 || c.Exchange.PriceRate <= 0 {
		return fmt.Errorf("EXCHANGE_ORDER_RATE and EXCHANGE_PRICE_RATE must be positive")
	}

	if c.Exchange.RequestTimeout <= 0 {
		return fmt.Errorf("EXCHANGE_REQUEST_TIMEOUT must be positive, got %v", c.Exchange.RequestTimeout)
	}

	return nil
}

// Location возвращает часовой пояс торгового дня
func (b BotConfig) Location() (*time.Location, error) {
	if b.Timezone == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(b.Timezone)
}

// Addr - адрес для http.Server
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// DSN возвращает строку подключения к базе данных
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode)
}

// DSNWithoutPassword возвращает строку подключения без пароля (для логирования)
func (d DatabaseConfig) DSNWithoutPassword() string {
	return fmt.Sprintf("host=%s port=%d user=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Name, d.SSLMode)
}

// Вспомогательные функции для чтения переменных окружения

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
