// config предоставляет структуру конфигурации сервиса и функции
// загрузки из файла/переменных окружения с предсказуемым приоритетом.
package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// ErrInvalidConfig — конфигурация прочитана, но противоречива.
var ErrInvalidConfig = errors.New("invalid config")

// Config — корневая конфигурация сервиса.
// Источники значений (по убыванию приоритета):
//  1. явный путь через флаг --config;
//  2. путь в переменной окружения CONFIG_PATH;
//  3. файл local.yaml из рабочей директории;
//  4. переменные окружения (cleanenv).
type Config struct {
	Env      string        `yaml:"env" env:"ENV" env-default:"local"`
	HTTP     HTTPConfig    `yaml:"http"`
	Metrics  MetricsConfig `yaml:"metrics"`
	Auth     AuthConfig    `yaml:"auth"`
	Cookie   CookieConfig  `yaml:"cookie"`
	CORS     CORSConfig    `yaml:"cors"`
	DB       DBConfig      `yaml:"db"`
	Redis    RedisConfig   `yaml:"redis"`
	Kafka    KafkaConfig   `yaml:"kafka"`
	Tracing  TracingConfig `yaml:"tracing"`
	Timeouts TimeoutConfig `yaml:"timeouts"`
	Janitor  JanitorConfig `yaml:"janitor"`
}

// HTTPConfig — сетевые настройки основного HTTP-сервера.
type HTTPConfig struct {
	Host      string `yaml:"host" env:"HTTP_HOST" env-default:"0.0.0.0"`
	Port      string `yaml:"port" env:"PORT" env-default:"3001"`
	BodyLimit int64  `yaml:"body_limit" env:"HTTP_BODY_LIMIT" env-default:"16384"`
}

// Addr возвращает адрес в формате host:port.
func (h HTTPConfig) Addr() string {
	return net.JoinHostPort(h.Host, h.Port)
}

// MetricsConfig — отдельный листенер для /metrics.
type MetricsConfig struct {
	Host string `yaml:"host" env:"METRICS_HOST" env-default:"0.0.0.0"`
	Port string `yaml:"port" env:"METRICS_PORT" env-default:"9090"`
}

// Addr возвращает адрес в формате host:port.
func (m MetricsConfig) Addr() string {
	return net.JoinHostPort(m.Host, m.Port)
}

// AuthConfig содержит параметры выпуска и валидации токенов и политику паролей.
// RotateRefresh включает выпуск нового refresh-токена на каждый /refresh.
type AuthConfig struct {
	AccessSecret    string        `yaml:"access_secret" env:"ACCESS_TOKEN_SECRET" env-required:"true"`
	RefreshSecret   string        `yaml:"refresh_secret" env:"REFRESH_TOKEN_SECRET" env-required:"true"`
	AccessTokenTTL  time.Duration `yaml:"access_token_ttl" env:"ACCESS_TOKEN_EXPIRY" env-default:"15m"`
	RefreshTokenTTL time.Duration `yaml:"refresh_token_ttl" env:"REFRESH_TOKEN_EXPIRY" env-default:"168h"`
	Issuer          string        `yaml:"issuer" env:"ISSUER" env-default:"quotes-service"`
	Audience        []string      `yaml:"audience" env:"AUDIENCE" env-default:"quotes-web"`
	RotateRefresh   bool          `yaml:"rotate_refresh" env:"ROTATE_REFRESH" env-default:"false"`
	StrongPasswords bool          `yaml:"strong_passwords" env:"STRONG_PASSWORDS" env-default:"false"`
	BcryptCost      int           `yaml:"bcrypt_cost" env:"BCRYPT_COST" env-default:"10"`
}

// CookieConfig — параметры cookie с refresh-токеном.
// Secure по умолчанию true, значение задаёт defaults.
type CookieConfig struct {
	Name     string `yaml:"name" env:"COOKIE_NAME" env-default:"refreshToken"`
	Domain   string `yaml:"domain" env:"COOKIE_DOMAIN"`
	Path     string `yaml:"path" env:"COOKIE_PATH" env-default:"/"`
	Secure   bool   `yaml:"secure" env:"COOKIE_SECURE"`
	SameSite string `yaml:"same_site" env:"COOKIE_SAME_SITE" env-default:"lax"`
}

// CORSConfig — разрешённые источники для браузерного фронта.
// AllowCredentials по умолчанию true, значение задаёт defaults.
type CORSConfig struct {
	AllowedOrigins   []string `yaml:"allowed_origins" env:"CORS_ALLOWED_ORIGINS" env-default:"http://localhost:3000"`
	AllowCredentials bool     `yaml:"allow_credentials" env:"CORS_ALLOW_CREDENTIALS"`
}

// DBConfig — настройки подключения к базе данных.
// Схема URL выбирает бэкенд: mongodb:// или postgres://.
type DBConfig struct {
	DatabaseURL string `yaml:"db_url" env:"DATABASE_URL" env-required:"true"`
}

// RedisConfig — лимитер попыток входа. Пустой URL отключает лимитер.
type RedisConfig struct {
	RedisURL      string        `yaml:"redis_url" env:"REDIS_URL"`
	LoginAttempts int64         `yaml:"login_attempts" env:"LOGIN_ATTEMPTS" env-default:"5"`
	LoginWindow   time.Duration `yaml:"login_window" env:"LOGIN_WINDOW" env-default:"15m"`
}

// KafkaConfig — публикация событий. Пустой список брокеров отключает публикацию.
type KafkaConfig struct {
	Brokers []string `yaml:"brokers" env:"KAFKA_BROKERS"`
	Topic   string   `yaml:"topic" env:"KAFKA_TOPIC" env-default:"quotes.auth-events"`

	// QueueSize — ёмкость очереди фоновой публикации; при переполнении события отбрасываются.
	QueueSize int `yaml:"queue_size" env:"KAFKA_QUEUE_SIZE" env-default:"256"`
}

// TracingConfig — экспорт трейсов по OTLP/gRPC.
type TracingConfig struct {
	Enabled     bool    `yaml:"enabled" env:"TRACING_ENABLED" env-default:"false"`
	Endpoint    string  `yaml:"endpoint" env:"OTEL_EXPORTER_OTLP_ENDPOINT" env-default:"localhost:4317"`
	ServiceName string  `yaml:"service_name" env:"OTEL_SERVICE_NAME" env-default:"quotes-service"`
	SampleRatio float64 `yaml:"sample_ratio" env:"TRACING_SAMPLE_RATIO" env-default:"1"`
}

// TimeoutConfig — таймауты сервиса.
type TimeoutConfig struct {
	Service time.Duration `yaml:"service" env:"SERVICE_TIMEOUT" env-default:"5s"`
}

// JanitorConfig — период очистки просроченных сессий; 0 отключает.
type JanitorConfig struct {
	Period time.Duration `yaml:"period" env:"JANITOR_PERIOD" env-default:"30m"`
}

// defaults задаёт булевы значения по умолчанию, равные true.
// env-default для них не подходит: cleanenv применяет его поверх YAML.
func defaults() Config {
	return Config{
		Cookie: CookieConfig{Secure: true},
		CORS:   CORSConfig{AllowCredentials: true},
	}
}

// MustLoad — обёртка над Load с panic при ошибке.
func MustLoad(path string) *Config {
	cfg, err := Load(path)
	if err != nil {
		panic(err)
	}

	return cfg
}

// Load загружает конфигурацию по приоритету:
// 1) явный путь; 2) CONFIG_PATH; 3) ./local.yaml; 4) ENV.
// После чтения файла ENV-переменные накладываются поверх значений из YAML.
func Load(path string) (*Config, error) {
	cfg := defaults()

	readFile := func(p string) (*Config, error) {
		if _, err := os.Stat(p); err != nil {
			return nil, fmt.Errorf("config file does not exist: %s: %w", p, err)
		}

		if err := cleanenv.ReadConfig(p, &cfg); err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}

		if err := cleanenv.ReadEnv(&cfg); err != nil {
			return nil, fmt.Errorf("failed to overlay env: %w", err)
		}

		if err := cfg.validate(); err != nil {
			return nil, err
		}

		return &cfg, nil
	}

	// 1) Явный путь.
	if path != "" {
		return readFile(path)
	}

	// 2) CONFIG_PATH.
	if envPath := os.Getenv("CONFIG_PATH"); envPath != "" {
		return readFile(envPath)
	}

	// 3) ./local.yaml.
	if _, err := os.Stat("local.yaml"); err == nil {
		return readFile("local.yaml")
	}

	// 4) Только ENV.
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("config not found: provide --config, CONFIG_PATH, local.yaml or env vars: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// validate проверяет инварианты, которые не выражаются тегами cleanenv.
func (c *Config) validate() error {
	if strings.TrimSpace(c.Auth.AccessSecret) == "" || strings.TrimSpace(c.Auth.RefreshSecret) == "" {
		return fmt.Errorf("%w: access and refresh secrets are required", ErrInvalidConfig)
	}

	if c.Auth.AccessTokenTTL <= 0 || c.Auth.RefreshTokenTTL <= 0 {
		return fmt.Errorf("%w: token ttl must be positive", ErrInvalidConfig)
	}

	if c.Auth.AccessTokenTTL >= c.Auth.RefreshTokenTTL {
		return fmt.Errorf("%w: access_token_ttl must be shorter than refresh_token_ttl", ErrInvalidConfig)
	}

	switch strings.ToLower(c.Cookie.SameSite) {
	case "lax", "strict", "none", "":
	default:
		return fmt.Errorf("%w: cookie.same_site must be lax, strict or none", ErrInvalidConfig)
	}

	if c.HTTP.BodyLimit <= 0 {
		return fmt.Errorf("%w: http.body_limit must be positive", ErrInvalidConfig)
	}

	return nil
}
