package config

import (
	"fmt"
	"strings"
)

// validate validates the configuration.
func validate(cfg *Config) error {
	if cfg.TNC.KISSPort != 0 && cfg.TNC.KISSSerial != "" {
		return fmt.Errorf("tnc: kiss_port and kiss_serial are mutually exclusive")
	}
	if cfg.TNC.KISSPort != 0 && (cfg.TNC.KISSPort <= 0 || cfg.TNC.KISSPort > 65535) {
		return fmt.Errorf("tnc.kiss_port must be between 1 and 65535")
	}
	if cfg.TNC.Persistence < 0 || cfg.TNC.Persistence > 1 {
		return fmt.Errorf("tnc.persistence must be between 0 and 1")
	}
	if cfg.TNC.SlotTime <= 0 {
		return fmt.Errorf("tnc.slot_time must be positive")
	}
	if cfg.TNC.CAN < 0 || cfg.TNC.CAN > 15 {
		return fmt.Errorf("tnc.can must be between 0 and 15")
	}

	switch strings.ToLower(cfg.PTT.Driver) {
	case "noop":
	case "gpio":
		if cfg.PTT.GPIO.Chip == "" {
			return fmt.Errorf("ptt.gpio.chip is required for the gpio driver")
		}
	case "serial":
		if cfg.PTT.Serial.Device == "" {
			return fmt.Errorf("ptt.serial.device is required for the serial driver")
		}
		line := strings.ToLower(cfg.PTT.Serial.Line)
		if line != "rts" && line != "dtr" {
			return fmt.Errorf("ptt.serial.line must be rts or dtr")
		}
	default:
		return fmt.Errorf("ptt.driver must be one of gpio, serial, noop (got %q)", cfg.PTT.Driver)
	}

	if cfg.Reflector.Enabled {
		if cfg.Reflector.HostPort == "" {
			return fmt.Errorf("reflector.hostport is required when reflector is enabled")
		}
		if cfg.Reflector.Callsign == "" {
			return fmt.Errorf("reflector.callsign is required when reflector is enabled")
		}
		if len(cfg.Reflector.Module) != 1 || cfg.Reflector.Module[0] < 'A' || cfg.Reflector.Module[0] > 'Z' {
			return fmt.Errorf("reflector.module must be a single letter A-Z")
		}
	}

	if cfg.MQTT.Enabled {
		if cfg.MQTT.Broker == "" {
			return fmt.Errorf("mqtt.broker is required when mqtt is enabled")
		}
	}

	if cfg.Metrics.Prometheus.Enabled {
		if cfg.Metrics.Prometheus.Port <= 0 || cfg.Metrics.Prometheus.Port > 65535 {
			return fmt.Errorf("metrics.prometheus.port must be between 1 and 65535")
		}
	}

	return nil
}
