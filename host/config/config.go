// Package config loads host settings from a file, the environment and
// built-in defaults
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. V5LINK_SERIAL_DEVICE
const EnvPrefix = "V5LINK"

// SerialConfig selects the brain's communications port
type SerialConfig struct {
	Device      string        `mapstructure:"device"`
	Baud        int           `mapstructure:"baud"`
	ReadTimeout time.Duration `mapstructure:"readTimeout"`
}

// ProtocolConfig tunes framing and request pacing
type ProtocolConfig struct {
	Checksum       string        `mapstructure:"checksum"`
	RequestTimeout time.Duration `mapstructure:"requestTimeout"`
	RequestRate    float64       `mapstructure:"requestRate"` // requests per second, 0 = unlimited
	RequestBurst   int           `mapstructure:"requestBurst"`
}

// VisionConfig names the objects reported by the vision sensor
type VisionConfig struct {
	Vocabulary string            `mapstructure:"vocabulary"`
	ColorNames map[string]string `mapstructure:"colorNames"`
	CodeNames  map[string]string `mapstructure:"codeNames"`
}

// LumberjackConfig is the rotating log file
type LumberjackConfig struct {
	Filename   string `mapstructure:"filename"`
	MaxSizeMB  int    `mapstructure:"maxSize"`
	MaxBackups int    `mapstructure:"maxBackups"`
	MaxAgeDays int    `mapstructure:"maxAge"`
	Compress   bool   `mapstructure:"compress"`
}

// LoggingConfig is the log level and output
type LoggingConfig struct {
	Level  string           `mapstructure:"level"`
	Format string           `mapstructure:"format"`
	File   LumberjackConfig `mapstructure:"file"`
}

// MetricsConfig exposes Prometheus metrics; an empty Addr disables the
// endpoint
type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
	Path string `mapstructure:"path"`
}

// Config is the top level configuration
type Config struct {
	Serial   SerialConfig   `mapstructure:"serial"`
	Protocol ProtocolConfig `mapstructure:"protocol"`
	Vision   VisionConfig   `mapstructure:"vision"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
}

// Load reads configuration from a YAML/TOML/JSON file and the environment.
// An empty path falls back to $V5LINK_CONFIG, then to v5link.{yaml,toml,json}
// in the working directory or ./configs. A missing default file is not an
// error.
func Load(path string) (*Config, error) {
	v := viper.New()

	if path == "" {
		path = os.Getenv(EnvPrefix + "_CONFIG")
	}

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.SetConfigName("v5link")
	}

	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("serial.device", "/dev/ttyACM0")
	v.SetDefault("serial.baud", 115200)
	v.SetDefault("serial.readTimeout", "100ms")

	v.SetDefault("protocol.checksum", "crc16")
	v.SetDefault("protocol.requestTimeout", "1s")
	v.SetDefault("protocol.requestRate", 50)
	v.SetDefault("protocol.requestBurst", 10)

	v.SetDefault("vision.vocabulary", "game")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("logging.file.filename", "")
	v.SetDefault("logging.file.maxSize", 50)
	v.SetDefault("logging.file.maxBackups", 5)
	v.SetDefault("logging.file.maxAge", 14)
	v.SetDefault("logging.file.compress", true)

	v.SetDefault("metrics.addr", "")
	v.SetDefault("metrics.path", "/metrics")
}
