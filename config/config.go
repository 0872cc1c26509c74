package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	"github.com/eddielth/signal-monitor/health"
	"github.com/eddielth/signal-monitor/logger"
	"github.com/eddielth/signal-monitor/telemetry"
)

// EnvPrefix prefixes environment overrides, e.g. SIGMON_MQTT_BROKER.
const EnvPrefix = "SIGMON"

// Config is the application configuration
type Config struct {
	MQTT         MQTTConfig             `mapstructure:"mqtt"`
	Transformers map[string]Transformer `mapstructure:"transformers"`
	Storage      StorageConfig          `mapstructure:"storage"`
	Logger       LoggerConfig           `mapstructure:"logger"`
	Decoder      DecoderConfig          `mapstructure:"decoder"`
	Health       HealthConfig           `mapstructure:"health"`
	Monitor      MonitorConfig          `mapstructure:"monitor"`
	API          APIConfig              `mapstructure:"api"`
	Validation   ValidationConfig       `mapstructure:"validation"`
}

// MQTTConfig is the broker connection
type MQTTConfig struct {
	Broker   string   `mapstructure:"broker"`
	ClientID string   `mapstructure:"client_id"`
	Username string   `mapstructure:"username"`
	Password string   `mapstructure:"password"`
	Topics   []string `mapstructure:"topics"`
	QoS      byte     `mapstructure:"qos"`
}

// Transformer configures the payload script of one equipment type
type Transformer struct {
	ScriptPath string `mapstructure:"script_path"`
	ScriptCode string `mapstructure:"script_code"`
}

// LoggerConfig is the logger section
type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	FilePath   string `mapstructure:"file_path"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	Console    bool   `mapstructure:"console"`
}

// DecoderConfig tunes raw record decoding
type DecoderConfig struct {
	Timezone string `mapstructure:"timezone"`
	Workers  int    `mapstructure:"workers"`
	Strict   bool   `mapstructure:"strict"`
}

// Location resolves Timezone, falling back to UTC.
func (d DecoderConfig) Location() (*time.Location, error) {
	if d.Timezone == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(d.Timezone)
}

// HealthConfig holds the classifier bands. Empty band lists use the
// reference bands.
type HealthConfig struct {
	Lookback   time.Duration `mapstructure:"lookback"`
	Slots      int           `mapstructure:"slots"`
	StaleAfter time.Duration `mapstructure:"stale_after"`
	GreenBands []health.Band `mapstructure:"green_bands"`
	RedBands   []health.Band `mapstructure:"red_bands"`
}

// Classifier builds a classifier from the section.
func (h HealthConfig) Classifier() *health.Classifier {
	return health.NewClassifier(h.GreenBands, h.RedBands, h.Lookback)
}

// Facility is one monitored equipment unit
type Facility struct {
	EquipmentID string `mapstructure:"equipment_id"`
	Units       int    `mapstructure:"units"`
}

// MonitorConfig drives the periodic health sweep
type MonitorConfig struct {
	Enabled    bool          `mapstructure:"enabled"`
	Interval   time.Duration `mapstructure:"interval"`
	Facilities []Facility    `mapstructure:"facilities"`
}

// APIConfig is the HTTP listener
type APIConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	Address      string        `mapstructure:"address"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// Range bounds one numeric sample field
type Range struct {
	Min float64 `mapstructure:"min"`
	Max float64 `mapstructure:"max"`
}

// ValidationConfig holds per-field ranges keyed by sample field name
type ValidationConfig struct {
	Ranges map[string]Range `mapstructure:"ranges"`
}

// StorageConfig is the storage section
type StorageConfig struct {
	File     FileStorageConfig     `mapstructure:"file"`
	Database DatabaseStorageConfig `mapstructure:"database"`
	Document DocumentStorageConfig `mapstructure:"document"`
}

// FileStorageConfig appends JSON lines to a directory
type FileStorageConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// DatabaseStorageConfig is a SQL backend: mysql, postgresql or sqlite3
type DatabaseStorageConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Type    string `mapstructure:"type"`
	DSN     string `mapstructure:"dsn"`
}

// DocumentStorageConfig is the MongoDB backend holding the mqtt_db collection
type DocumentStorageConfig struct {
	Enabled          bool   `mapstructure:"enabled"`
	URI              string `mapstructure:"uri"`
	Database         string `mapstructure:"database"`
	Collection       string `mapstructure:"collection"`
	StatusCollection string `mapstructure:"status_collection"`
}

// ConfigChangeCallback is called with the new configuration after a change
type ConfigChangeCallback func(cfg *Config) error

var viperMu sync.Mutex

func setDefaults(v *viper.Viper) {
	v.SetDefault("mqtt.client_id", "signal-monitor")
	v.SetDefault("mqtt.topics", []string{"devices/#"})
	v.SetDefault("mqtt.qos", 1)

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.file_path", "./logs/signal-monitor.log")
	v.SetDefault("logger.max_size", 10)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.console", true)

	v.SetDefault("decoder.timezone", "Asia/Seoul")
	v.SetDefault("decoder.workers", 0)
	v.SetDefault("decoder.strict", false)

	v.SetDefault("health.lookback", health.DefaultLookback)
	v.SetDefault("health.slots", health.DefaultSlots)
	v.SetDefault("health.stale_after", health.DefaultStaleAfter)

	v.SetDefault("monitor.enabled", true)
	v.SetDefault("monitor.interval", 5*time.Minute)

	v.SetDefault("api.enabled", true)
	v.SetDefault("api.address", ":8080")
	v.SetDefault("api.read_timeout", 15*time.Second)
	v.SetDefault("api.write_timeout", 15*time.Second)

	v.SetDefault("storage.file.path", "./data")
	v.SetDefault("storage.document.database", "signal")
	v.SetDefault("storage.document.collection", "mqtt_db")
	v.SetDefault("storage.document.status_collection", "equipment_status")
}

// LoadConfig loads the configuration file at configPath. Environment
// variables override file values.
func LoadConfig(configPath string) (*Config, error) {
	viperMu.Lock()
	defer viperMu.Unlock()

	setDefaults(viper.GetViper())
	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")
	viper.SetEnvPrefix(EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		return nil, err
	}

	return unmarshal(viper.GetViper())
}

func unmarshal(v *viper.Viper) (*Config, error) {
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// Validate checks values viper cannot check while decoding.
func (c *Config) Validate() error {
	if _, err := logger.ParseLogLevel(c.Logger.Level); err != nil {
		return err
	}
	if _, err := c.Decoder.Location(); err != nil {
		return fmt.Errorf("decoder.timezone: %v", err)
	}
	for _, b := range c.Health.GreenBands {
		if err := b.Validate(); err != nil {
			return fmt.Errorf("health.green_bands: %v", err)
		}
	}
	for _, b := range c.Health.RedBands {
		if err := b.Validate(); err != nil {
			return fmt.Errorf("health.red_bands: %v", err)
		}
	}
	for _, f := range c.Monitor.Facilities {
		if _, _, err := telemetry.ParseEquipmentID(f.EquipmentID); err != nil {
			return fmt.Errorf("monitor.facilities: %v", err)
		}
	}
	for name, r := range c.Validation.Ranges {
		if r.Min > r.Max {
			return fmt.Errorf("validation.ranges.%s: min greater than max", name)
		}
	}
	for deviceType := range c.Transformers {
		if _, err := telemetry.ParseEquipmentType(deviceType); err != nil {
			return fmt.Errorf("transformers: %v", err)
		}
	}
	switch c.Storage.Database.Type {
	case "", "mysql", "postgresql", "postgres", "sqlite3", "sqlite":
	default:
		return fmt.Errorf("storage.database.type: unsupported database type: %s", c.Storage.Database.Type)
	}
	return nil
}

// WatchConfig watches the config file and calls callback with every
// successfully parsed new version.
func WatchConfig(configPath string, callback ConfigChangeCallback) error {
	absPath, err := filepath.Abs(configPath)
	if err != nil {
		return err
	}

	viperMu.Lock()
	viper.SetConfigFile(absPath)
	viper.WatchConfig()
	viperMu.Unlock()

	// editors often emit several writes per save
	var lastChangeTime time.Time
	debounceInterval := 2 * time.Second

	viper.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		now := time.Now()
		if now.Sub(lastChangeTime) < debounceInterval {
			return
		}
		lastChangeTime = now

		logger.Info("config file changed: %s", e.Name)

		newConfig, err := unmarshal(viper.GetViper())
		if err != nil {
			logger.Error("failed to parse updated config: %v", err)
			return
		}

		if err := callback(newConfig); err != nil {
			logger.Error("failed to apply new config: %v", err)
			return
		}

		logger.Info("config reloaded")
	})

	return nil
}
