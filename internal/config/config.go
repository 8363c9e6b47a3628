package config

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/pixil98/go-errors"

	"github.com/mcoot/ingamehud/internal/storage"
	"github.com/mcoot/ingamehud/internal/storage/mysql"
	"github.com/mcoot/ingamehud/internal/storage/redis"
	"github.com/mcoot/ingamehud/internal/storage/sqlite"
)

// Embedded provider drivers
const (
	DriverSQLite = "sqlite"
	DriverMemory = "memory"
)

// Config is the full plugin configuration
type Config struct {
	DefaultLanguage    string                   `yaml:"default_language"`
	SupportedLanguages []string                 `yaml:"supported_languages"`
	Storage            StorageConfig            `yaml:"storage"`
	CustomData         storage.CustomDataConfig `yaml:"custom_data"`
	Sync               SyncConfig               `yaml:"sync"`
	Events             EventsConfig             `yaml:"events"`
	Admin              AdminConfig              `yaml:"admin"`
	Log                LogConfig                `yaml:"log"`
}

// StorageConfig lists the providers in fallback order: MySQL, Redis, then
// the embedded provider
type StorageConfig struct {
	OpTimeout         time.Duration  `yaml:"op_timeout"`
	DisconnectTimeout time.Duration  `yaml:"disconnect_timeout"`
	SaveAttempts      int            `yaml:"save_attempts"`
	RetryInterval     time.Duration  `yaml:"retry_interval"`
	MySQL             mysql.Config   `yaml:"mysql"`
	Redis             redis.Config   `yaml:"redis"`
	Embedded          EmbeddedConfig `yaml:"embedded"`
}

// EmbeddedConfig selects the last-resort provider
type EmbeddedConfig struct {
	Driver string `yaml:"driver"`
	Path   string `yaml:"path"`
}

// SyncConfig controls the frame cadence
type SyncConfig struct {
	TickInterval         time.Duration `yaml:"tick_interval"`
	RefreshEveryTicks    int           `yaml:"refresh_every_ticks"`
	CustomDataEveryTicks int           `yaml:"custom_data_every_ticks"`

	// HostTicks paces OnTick from the host's tick events instead of the
	// loop's frames. Requires the event bridge.
	HostTicks bool `yaml:"host_ticks"`
}

// EventsConfig controls the host event bridge
type EventsConfig struct {
	Enabled       bool          `yaml:"enabled"`
	NATSURL       string        `yaml:"nats_url"`
	Embedded      bool          `yaml:"embedded"`
	Host          string        `yaml:"host"`
	Port          int           `yaml:"port"`
	StartTimeout  time.Duration `yaml:"start_timeout"`
	SubjectPrefix string        `yaml:"subject_prefix"`
}

// AdminConfig controls the admin HTTP API
type AdminConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// LogConfig controls the process logger
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the configuration used when no file is given
func Default() Config {
	return Config{
		DefaultLanguage:    "en",
		SupportedLanguages: []string{"en", "zh"},
		Storage: StorageConfig{
			OpTimeout:         3 * time.Second,
			DisconnectTimeout: 5 * time.Second,
			SaveAttempts:      3,
			RetryInterval:     200 * time.Millisecond,
			MySQL:             mysql.DefaultConfig(),
			Redis:             redis.DefaultConfig(),
			Embedded: EmbeddedConfig{
				Driver: DriverSQLite,
				Path:   sqlite.DefaultConfig().Path,
			},
		},
		CustomData: storage.DefaultCustomDataConfig(),
		Sync: SyncConfig{
			TickInterval:         time.Second / 64,
			RefreshEveryTicks:    64,
			CustomDataEveryTicks: 64 * 60,
		},
		Events: EventsConfig{
			Enabled:       true,
			Embedded:      true,
			Host:          "127.0.0.1",
			Port:          4222,
			StartTimeout:  5 * time.Second,
			SubjectPrefix: "hud",
		},
		Admin: AdminConfig{
			Enabled: true,
			Addr:    "127.0.0.1:8090",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Validate reports every problem in the configuration at once
func (c *Config) Validate() error {
	el := errors.NewErrorList()

	if c.DefaultLanguage == "" {
		el.Add(fmt.Errorf("default_language is required"))
	} else if !slices.ContainsFunc(c.SupportedLanguages, func(l string) bool {
		return strings.EqualFold(l, c.DefaultLanguage)
	}) {
		el.Add(fmt.Errorf("default_language %q is not in supported_languages", c.DefaultLanguage))
	}

	if c.Sync.HostTicks && !c.Events.Enabled {
		el.Add(fmt.Errorf("sync.host_ticks requires events.enabled"))
	}

	el.Add(c.Storage.Validate())
	el.Add(c.validateCustomData())
	el.Add(c.Sync.Validate())
	el.Add(c.Events.Validate())
	el.Add(c.Admin.Validate())
	el.Add(c.Log.Validate())

	return el.Err()
}

func (c *StorageConfig) Validate() error {
	el := errors.NewErrorList()

	if c.OpTimeout <= 0 {
		el.Add(fmt.Errorf("storage.op_timeout must be positive"))
	}
	if c.DisconnectTimeout <= 0 {
		el.Add(fmt.Errorf("storage.disconnect_timeout must be positive"))
	}
	if c.SaveAttempts < 1 {
		el.Add(fmt.Errorf("storage.save_attempts must be at least 1"))
	}
	if c.RetryInterval < 0 {
		el.Add(fmt.Errorf("storage.retry_interval must not be negative"))
	}

	if c.MySQL.Enabled {
		if c.MySQL.Host == "" {
			el.Add(fmt.Errorf("storage.mysql.host is required"))
		}
		if c.MySQL.Port < 1 || c.MySQL.Port > 65535 {
			el.Add(fmt.Errorf("storage.mysql.port %d is out of range", c.MySQL.Port))
		}
		if !storage.ValidIdentifier(c.MySQL.Database) {
			el.Add(fmt.Errorf("storage.mysql.database %q is not a valid identifier", c.MySQL.Database))
		}
	}

	if c.Redis.Enabled && c.Redis.URL == "" {
		el.Add(fmt.Errorf("storage.redis.url is required"))
	}

	switch c.Embedded.Driver {
	case DriverMemory:
	case DriverSQLite:
		if c.Embedded.Path == "" {
			el.Add(fmt.Errorf("storage.embedded.path is required for sqlite"))
		}
	default:
		el.Add(fmt.Errorf("storage.embedded.driver must be %q or %q", DriverSQLite, DriverMemory))
	}

	return el.Err()
}

func (c *Config) validateCustomData() error {
	el := errors.NewErrorList()

	for _, f := range c.CustomData.Enabled() {
		if f.Schema != "" && !storage.ValidIdentifier(f.Schema) {
			el.Add(fmt.Errorf("custom_data.%s.schema %q is not a valid identifier", f.Key, f.Schema))
		}
		for name, ident := range map[string]string{"table": f.Table, "column": f.Column, "id_column": f.IDColumn} {
			if !storage.ValidIdentifier(ident) {
				el.Add(fmt.Errorf("custom_data.%s.%s %q is not a valid identifier", f.Key, name, ident))
			}
		}
	}

	return el.Err()
}

func (c *SyncConfig) Validate() error {
	el := errors.NewErrorList()

	if c.TickInterval <= 0 {
		el.Add(fmt.Errorf("sync.tick_interval must be positive"))
	}
	if c.RefreshEveryTicks < 1 {
		el.Add(fmt.Errorf("sync.refresh_every_ticks must be at least 1"))
	}
	if c.CustomDataEveryTicks < 0 {
		el.Add(fmt.Errorf("sync.custom_data_every_ticks must not be negative"))
	}

	return el.Err()
}

func (c *EventsConfig) Validate() error {
	if !c.Enabled {
		return nil
	}
	el := errors.NewErrorList()

	if !c.Embedded && c.NATSURL == "" {
		el.Add(fmt.Errorf("events.nats_url is required unless events.embedded is set"))
	}
	if c.Embedded && (c.Port < -1 || c.Port > 65535) {
		el.Add(fmt.Errorf("events.port %d is out of range", c.Port))
	}
	if c.SubjectPrefix == "" || strings.ContainsAny(c.SubjectPrefix, " *>") {
		el.Add(fmt.Errorf("events.subject_prefix %q is not a valid subject token", c.SubjectPrefix))
	}

	return el.Err()
}

func (c *AdminConfig) Validate() error {
	if c.Enabled && c.Addr == "" {
		return fmt.Errorf("admin.addr is required when the admin API is enabled")
	}
	return nil
}

func (c *LogConfig) Validate() error {
	el := errors.NewErrorList()

	if _, err := parseLevel(c.Level); err != nil {
		el.Add(err)
	}
	if c.Format != "json" && c.Format != "text" {
		el.Add(fmt.Errorf("log.format must be json or text"))
	}

	return el.Err()
}
