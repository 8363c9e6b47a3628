package config

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Environment overrides, applied after the file is read
const (
	EnvMySQLHost     = "HUD_MYSQL_HOST"
	EnvMySQLPort     = "HUD_MYSQL_PORT"
	EnvMySQLUser     = "HUD_MYSQL_USER"
	EnvMySQLPassword = "HUD_MYSQL_PASSWORD"
	EnvRedisURL      = "HUD_REDIS_URL"
	EnvNATSURL       = "HUD_NATS_URL"
	EnvAdminAddr     = "HUD_ADMIN_ADDR"
	EnvLogLevel      = "HUD_LOG_LEVEL"
)

// Load builds a Config from defaults, the YAML file at path (optional) and
// the environment. envFile is loaded into the environment first; when it is
// empty a .env in the working directory is used if present.
func Load(path, envFile string) (Config, error) {
	if err := loadEnvFile(envFile); err != nil {
		return Config{}, err
	}

	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("reading config %s: %w", path, err)
		}
		if err := Parse(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parsing config %s: %w", path, err)
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Parse decodes YAML over cfg. Unknown keys are rejected so typos surface.
func Parse(data []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && err != io.EOF {
		return err
	}
	return nil
}

func loadEnvFile(envFile string) error {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return fmt.Errorf("loading env file %s: %w", envFile, err)
		}
		return nil
	}
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			return fmt.Errorf("loading .env: %w", err)
		}
	}
	return nil
}

func applyEnv(cfg *Config) error {
	if v := os.Getenv(EnvMySQLHost); v != "" {
		cfg.Storage.MySQL.Host = v
		cfg.Storage.MySQL.Enabled = true
	}
	if v := os.Getenv(EnvMySQLPort); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parsing %s: %w", EnvMySQLPort, err)
		}
		cfg.Storage.MySQL.Port = port
	}
	if v := os.Getenv(EnvMySQLUser); v != "" {
		cfg.Storage.MySQL.Username = v
	}
	if v := os.Getenv(EnvMySQLPassword); v != "" {
		cfg.Storage.MySQL.Password = v
	}
	if v := os.Getenv(EnvRedisURL); v != "" {
		cfg.Storage.Redis.URL = v
		cfg.Storage.Redis.Enabled = true
	}
	if v := os.Getenv(EnvNATSURL); v != "" {
		cfg.Events.NATSURL = v
		cfg.Events.Embedded = false
	}
	if v := os.Getenv(EnvAdminAddr); v != "" {
		cfg.Admin.Addr = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		cfg.Log.Level = v
	}
	return nil
}
