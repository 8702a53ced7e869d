package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds settings for both the chat server and the deploy listener.
type Config struct {
	Port           string        `yaml:"port"`
	PublicDir      string        `yaml:"publicDir"`
	DatabaseDSN    string        `yaml:"databaseDSN"`
	DBMaxOpenConns int           `yaml:"dbMaxOpenConns"`
	JWTSecret      string        `yaml:"jwtSecret"`
	TokenTTL       time.Duration `yaml:"tokenTTL"`
	AMQPURL        string        `yaml:"amqpURL"`
	AMQPExchange   string        `yaml:"amqpExchange"`
	OTLPEndpoint   string        `yaml:"otlpEndpoint"`
	LogLevel       string        `yaml:"logLevel"`

	WebhookPort   string       `yaml:"webhookPort"`
	WebhookSecret string       `yaml:"webhookSecret"`
	Deploy        DeployConfig `yaml:"deploy"`
}

// DeployConfig describes how the deploy listener updates the running service.
type DeployConfig struct {
	Dir        string        `yaml:"dir"`
	Branch     string        `yaml:"branch"`
	InstallCmd string        `yaml:"installCmd"`
	RestartCmd string        `yaml:"restartCmd"`
	Timeout    time.Duration `yaml:"timeout"`
}

// Load reads an optional YAML file, then applies environment overrides and defaults.
// A missing file is not an error; an unreadable or malformed one is.
func Load(path string) (Config, error) {
	var cfg Config
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return cfg, fmt.Errorf("read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("parse config: %w", err)
			}
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return cfg, err
	}
	applyDefaults(&cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	overrideString(&cfg.Port, "PORT")
	overrideString(&cfg.PublicDir, "PUBLIC_DIR")
	overrideString(&cfg.DatabaseDSN, "DB_DSN")
	overrideString(&cfg.JWTSecret, "JWT_SECRET")
	overrideString(&cfg.AMQPURL, "AMQP_URL")
	overrideString(&cfg.AMQPExchange, "AMQP_EXCHANGE")
	overrideString(&cfg.OTLPEndpoint, "OTEL_EXPORTER_OTLP_ENDPOINT")
	overrideString(&cfg.LogLevel, "LOG_LEVEL")
	overrideString(&cfg.WebhookPort, "WEBHOOK_PORT")
	overrideString(&cfg.WebhookSecret, "WEBHOOK_SECRET")
	overrideString(&cfg.Deploy.Dir, "DEPLOY_DIR")
	overrideString(&cfg.Deploy.Branch, "DEPLOY_BRANCH")
	overrideString(&cfg.Deploy.InstallCmd, "DEPLOY_INSTALL_CMD")
	overrideString(&cfg.Deploy.RestartCmd, "DEPLOY_RESTART_CMD")

	if val, ok := os.LookupEnv("DB_MAX_OPEN_CONNS"); ok && val != "" {
		n, err := strconv.Atoi(val)
		if err != nil {
			return fmt.Errorf("config: DB_MAX_OPEN_CONNS: %w", err)
		}
		cfg.DBMaxOpenConns = n
	}
	if err := overrideDuration(&cfg.TokenTTL, "TOKEN_TTL"); err != nil {
		return err
	}
	return overrideDuration(&cfg.Deploy.Timeout, "DEPLOY_TIMEOUT")
}

func applyDefaults(cfg *Config) {
	setDefault(&cfg.Port, "3000")
	setDefault(&cfg.PublicDir, "public")
	setDefault(&cfg.AMQPExchange, "chat.events")
	setDefault(&cfg.LogLevel, "info")
	setDefault(&cfg.WebhookPort, "3001")
	setDefault(&cfg.Deploy.Branch, "main")
	setDefault(&cfg.Deploy.InstallCmd, "go mod download")
	setDefault(&cfg.Deploy.RestartCmd, "systemctl restart chat-relay")
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = time.Hour
	}
	if cfg.Deploy.Timeout <= 0 {
		cfg.Deploy.Timeout = 10 * time.Minute
	}
}

// ValidateServer checks the settings the chat server cannot run without.
func (c Config) ValidateServer() error {
	if c.DatabaseDSN == "" {
		return errors.New("config: DB_DSN is required")
	}
	if c.JWTSecret == "" {
		return errors.New("config: JWT_SECRET is required")
	}
	return nil
}

// ValidateDeployer checks the settings the deploy listener cannot run without.
func (c Config) ValidateDeployer() error {
	if c.WebhookSecret == "" {
		return errors.New("config: WEBHOOK_SECRET is required")
	}
	if c.Deploy.Dir == "" {
		return errors.New("config: DEPLOY_DIR is required")
	}
	return nil
}

func overrideString(dst *string, key string) {
	if val, ok := os.LookupEnv(key); ok && val != "" {
		*dst = val
	}
}

func overrideDuration(dst *time.Duration, key string) error {
	val, ok := os.LookupEnv(key)
	if !ok || val == "" {
		return nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return fmt.Errorf("config: %s: %w", key, err)
	}
	*dst = d
	return nil
}

func setDefault(dst *string, fallback string) {
	if *dst == "" {
		*dst = fallback
	}
}
