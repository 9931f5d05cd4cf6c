package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

const (
	EnvPrefix = "STOREFRONT"

	EnvAddr            = "STOREFRONT_ADDR"
	EnvAPIURL          = "STOREFRONT_API_URL"
	EnvBackendMode     = "STOREFRONT_BACKEND_MODE"
	EnvAppEnv          = "STOREFRONT_ENV"
	EnvLogLevel        = "STOREFRONT_LOG_LEVEL"
	EnvLogFormat       = "STOREFRONT_LOG_FORMAT"
	EnvShutdownTimeout = "STOREFRONT_SHUTDOWN_TIMEOUT"

	BackendHTTP   = "http"
	BackendMemory = "memory"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

// Config настройки витрины из окружения
type Config struct {
	App     AppConfig
	Backend BackendConfig
	Log     LogConfig
}

type AppConfig struct {
	Env             string        `envconfig:"STOREFRONT_ENV" default:"dev" validate:"required"`
	Addr            string        `envconfig:"STOREFRONT_ADDR" default:":9091" validate:"required"`
	ShutdownTimeout time.Duration `envconfig:"STOREFRONT_SHUTDOWN_TIMEOUT" default:"5s" validate:"gt=0"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

// BackendConfig откуда брать данные: HTTP API или встроенный in-memory бэкенд
type BackendConfig struct {
	APIURL string `envconfig:"STOREFRONT_API_URL" default:"http://localhost:8000" validate:"required,url"`
	Mode   string `envconfig:"STOREFRONT_BACKEND_MODE" default:"http" validate:"oneof=http memory"`
}

type LogConfig struct {
	Level  string `envconfig:"STOREFRONT_LOG_LEVEL" default:"info"`
	Format string `envconfig:"STOREFRONT_LOG_FORMAT" default:"json" validate:"oneof=json console"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Load читает .env (если есть), затем окружение, и валидирует результат
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return &cfg, nil
}
