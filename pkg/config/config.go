package config

import (
	"fmt"
	"os"

	"github.com/spf13/viper"
)

// Config represents the application configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	TNC       TNCConfig       `mapstructure:"tnc"`
	PTT       PTTConfig       `mapstructure:"ptt"`
	Reflector ReflectorConfig `mapstructure:"reflector"`
	MQTT      MQTTConfig      `mapstructure:"mqtt"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
}

// ServerConfig holds host identification.
type ServerConfig struct {
	Name        string `mapstructure:"name"`
	Description string `mapstructure:"description"`
}

// TNCConfig holds the TNC core and KISS host-port settings.
type TNCConfig struct {
	// KISS host interface: either a TCP listen port or a serial device,
	// never both.
	KISSPort   int    `mapstructure:"kiss_port"`
	KISSSerial string `mapstructure:"kiss_serial"`
	KISSBaud   int    `mapstructure:"kiss_baud"`

	TxDelay      int     `mapstructure:"tx_delay"`      // units of 10ms
	FullDuplex   bool    `mapstructure:"full_duplex"`
	Persistence  float64 `mapstructure:"persistence"`   // CSMA p, 0.0-1.0
	SlotTime     int     `mapstructure:"slot_time"`      // ms between CSMA rechecks
	CAN          int     `mapstructure:"can"`            // channel access number, 0-15
}

// PTTConfig selects and configures one of the reference PTT driver
// implementations: gpio, serial, or noop.
type PTTConfig struct {
	Driver string `mapstructure:"driver"` // "gpio", "serial", or "noop"

	GPIO   GPIOPTTConfig   `mapstructure:"gpio"`
	Serial SerialPTTConfig `mapstructure:"serial"`
}

// GPIOPTTConfig configures the gpiochip-backed PTT/DCD lines.
type GPIOPTTConfig struct {
	Chip      string `mapstructure:"chip"` // e.g. "/dev/gpiochip0"
	PTTLine   int    `mapstructure:"ptt_line"`
	DCDLine   int    `mapstructure:"dcd_line"` // -1 disables DCD sensing
	InvertPTT bool   `mapstructure:"invert_ptt"`
	InvertDCD bool   `mapstructure:"invert_dcd"`
}

// SerialPTTConfig configures RTS/DTR modem-control-line PTT.
type SerialPTTConfig struct {
	Device string `mapstructure:"device"` // e.g. "/dev/ttyUSB0"
	Line   string `mapstructure:"line"`   // "rts" or "dtr"
	Invert bool   `mapstructure:"invert"`
}

// ReflectorConfig configures the M17 reflector client.
type ReflectorConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	HostPort string `mapstructure:"hostport"` // "host:port"
	Callsign string `mapstructure:"callsign"`
	Module   string `mapstructure:"module"` // single letter A-Z
}

// MQTTConfig holds MQTT client configuration.
type MQTTConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	Broker      string `mapstructure:"broker"`
	TopicPrefix string `mapstructure:"topic_prefix"`
	ClientID    string `mapstructure:"client_id"`
	Username    string `mapstructure:"username"`
	Password    string `mapstructure:"password"`
	QoS         byte   `mapstructure:"qos"`
	Retained    bool   `mapstructure:"retained"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	File       string `mapstructure:"file"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
}

// MetricsConfig holds metrics configuration.
type MetricsConfig struct {
	Enabled    bool             `mapstructure:"enabled"`
	Prometheus PrometheusConfig `mapstructure:"prometheus"`
}

// PrometheusConfig holds Prometheus exposition configuration.
type PrometheusConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Port    int    `mapstructure:"port"`
	Path    string `mapstructure:"path"`
}

// Load loads configuration from file and environment variables.
func Load(configFile string) (*Config, error) {
	setDefaults()

	if configFile != "" {
		viper.SetConfigFile(configFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath("./configs")
		viper.AddConfigPath("/etc/m17tnc")
	}

	viper.SetEnvPrefix("M17")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			// Config file not found is OK, use defaults.
		} else if os.IsNotExist(err) {
			// File explicitly specified but doesn't exist - also OK.
		} else {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

// setDefaults sets default configuration values.
func setDefaults() {
	viper.SetDefault("server.name", "m17tnc")
	viper.SetDefault("server.description", "M17 TNC / reflector client")

	viper.SetDefault("tnc.kiss_port", 8001)
	viper.SetDefault("tnc.tx_delay", 30)
	viper.SetDefault("tnc.full_duplex", false)
	viper.SetDefault("tnc.persistence", 0.25)
	viper.SetDefault("tnc.slot_time", 10)
	viper.SetDefault("tnc.can", 0)

	viper.SetDefault("ptt.driver", "noop")
	viper.SetDefault("ptt.gpio.dcd_line", -1)
	viper.SetDefault("ptt.serial.line", "rts")

	viper.SetDefault("reflector.enabled", false)
	viper.SetDefault("reflector.module", "A")

	viper.SetDefault("mqtt.enabled", false)
	viper.SetDefault("mqtt.topic_prefix", "m17/tnc")
	viper.SetDefault("mqtt.client_id", "m17tnc")
	viper.SetDefault("mqtt.qos", 1)
	viper.SetDefault("mqtt.retained", false)

	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "text")
	viper.SetDefault("logging.max_size", 100)
	viper.SetDefault("logging.max_backups", 3)
	viper.SetDefault("logging.max_age", 7)

	viper.SetDefault("metrics.enabled", true)
	viper.SetDefault("metrics.prometheus.enabled", true)
	viper.SetDefault("metrics.prometheus.port", 9090)
	viper.SetDefault("metrics.prometheus.path", "/metrics")
}
