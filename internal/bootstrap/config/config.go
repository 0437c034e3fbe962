package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/viper"

	"rosterrecon/internal/bootstrap/logging"
	"rosterrecon/internal/errs"
)

type Config struct {
	App      AppConfig      `mapstructure:"app"`
	Database DatabaseConfig `mapstructure:"database"`
	HTTP     HTTPConfig     `mapstructure:"http"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Reingest ReingestConfig `mapstructure:"reingest"`
	Intake   IntakeConfig   `mapstructure:"intake"`
}

type AppConfig struct {
	Name string `mapstructure:"name"`
	Env  string `mapstructure:"env"`
}

type DatabaseConfig struct {
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
	// Isolation is the transaction isolation level; empty keeps the driver default.
	Isolation       string        `mapstructure:"isolation"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	// Tracing installs the otelgorm plugin against the global tracer provider.
	Tracing bool `mapstructure:"tracing"`
}

type HTTPConfig struct {
	Addr string `mapstructure:"addr"`
}

// RedisConfig enables the cross-process resolve lock when Address is set.
type RedisConfig struct {
	Address  string        `mapstructure:"address"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	LockTTL  time.Duration `mapstructure:"lock_ttl"`
}

type ReingestConfig struct {
	// Transport is one of none, http or nats.
	Transport  string        `mapstructure:"transport"`
	URL        string        `mapstructure:"url"`
	NATSURL    string        `mapstructure:"nats_url"`
	Subject    string        `mapstructure:"subject"`
	Timeout    time.Duration `mapstructure:"timeout"`
	RetryAfter time.Duration `mapstructure:"retry_after"`
}

type IntakeConfig struct {
	PhoneRegion string `mapstructure:"phone_region"`
}

func Load(ctx context.Context, configFile string) (Config, error) {
	if ctx == nil {
		return Config{}, errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return Config{}, errs.Wrap(err, "check context")
	}

	logCtx := logging.WithAttrs(ctx, slog.String("component", "bootstrap.config"))

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("ORC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile == "" && errors.As(err, &notFound) {
			// Keep default and env-backed config when no file is provided.
			logging.Warn(logCtx, "config file not found, fallback to defaults and env")
		} else {
			return Config{}, errs.Wrap(err, "read config")
		}
	} else {
		logging.Info(logCtx, "using config file", slog.String("path", v.ConfigFileUsed()))
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, errs.Wrap(err, "unmarshal config")
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}

	logging.Info(
		logCtx,
		"config loaded",
		slog.String("app", cfg.App.Name),
		slog.String("env", cfg.App.Env),
		slog.String("database_driver", cfg.Database.Driver),
		slog.String("reingest_transport", cfg.Reingest.Transport),
		slog.Bool("redis_lock", cfg.Redis.Address != ""),
	)

	return cfg, nil
}

func (c Config) validate() error {
	if c.Database.DSN == "" {
		return errors.New("database.dsn is required")
	}

	switch strings.ToLower(c.Reingest.Transport) {
	case "", "none":
	case "http":
		if strings.TrimSpace(c.Reingest.URL) == "" {
			return errors.New("reingest.url is required for the http transport")
		}
	case "nats":
		if strings.TrimSpace(c.Reingest.NATSURL) == "" {
			return errors.New("reingest.nats_url is required for the nats transport")
		}
	default:
		return fmt.Errorf("unsupported reingest transport %q", c.Reingest.Transport)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "rosterrecon")
	v.SetDefault("app.env", "local")
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", ".data/rosterrecon.sqlite")
	v.SetDefault("database.isolation", "")
	v.SetDefault("database.max_open_conns", 0)
	v.SetDefault("database.max_idle_conns", 2)
	v.SetDefault("database.conn_max_lifetime", time.Duration(0))
	v.SetDefault("database.tracing", false)
	v.SetDefault("http.addr", "127.0.0.1:8080")
	v.SetDefault("redis.address", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.lock_ttl", 30*time.Second)
	v.SetDefault("reingest.transport", "none")
	v.SetDefault("reingest.url", "")
	v.SetDefault("reingest.nats_url", "")
	v.SetDefault("reingest.subject", "ingest.reingest")
	v.SetDefault("reingest.timeout", 30*time.Second)
	v.SetDefault("reingest.retry_after", 5*time.Minute)
	v.SetDefault("intake.phone_region", "US")
}
