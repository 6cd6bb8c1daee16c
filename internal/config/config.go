package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"

	pkgcfg "github.com/Skotchmaster/accounts/pkg/config"
)

type Config struct {
	ServiceName string `env:"SERVICE_NAME" envDefault:"accounts"`
	ServerPort  int    `env:"SERVER_PORT"  envDefault:"8080"`
	LogLevel    string `env:"LOG_LEVEL"    envDefault:"info"`
	InstanceID  string `env:"INSTANCE_ID"`

	DatabaseURL string `env:"DATABASE_URL"`

	JWTAccessSecret  string        `env:"JWT_SECRET"`
	JWTRefreshSecret string        `env:"JWT_REFRESH_SECRET"`
	AccessTokenTTL   time.Duration `env:"ACCESS_TOKEN_TTL"  envDefault:"15m"`
	RefreshTokenTTL  time.Duration `env:"REFRESH_TOKEN_TTL" envDefault:"168h"`
	BcryptCost       int           `env:"BCRYPT_COST"       envDefault:"12"`

	TracingURL string `env:"TRACING_URL"`

	KafkaBrokers []string `env:"KAFKA_BROKERS" envSeparator:","`
	KafkaTopic   string   `env:"KAFKA_TOPIC"   envDefault:"account_events"`

	ESURL      string `env:"ES_URL"`
	ESUser     string `env:"ES_USER"`
	ESPassword string `env:"ES_PASSWORD"`
	ESIndex    string `env:"ES_INDEX" envDefault:"accounts"`
}

// Load reads an optional .env file and then the process environment.
func Load(dotenv ...string) (Config, error) {
	pkgcfg.LoadDotEnv(dotenv...)

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	cfg.KafkaBrokers = pkgcfg.CSV(strings.Join(cfg.KafkaBrokers, ","))

	return cfg, nil
}

func (c Config) Validate() error {
	return errors.Join(
		pkgcfg.NonEmpty(c.DatabaseURL, "DATABASE_URL"),
		pkgcfg.NonEmpty(c.JWTAccessSecret, "JWT_SECRET"),
		pkgcfg.NonEmpty(c.JWTRefreshSecret, "JWT_REFRESH_SECRET"),
	)
}

func (c Config) Addr() string {
	return fmt.Sprintf(":%d", c.ServerPort)
}
