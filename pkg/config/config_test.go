package config

import (
	"testing"

	"github.com/spf13/viper"
)

func TestLoad_UsesDefaults_WhenNoFile(t *testing.T) {
	// Reset viper to avoid cross-test pollution
	viper.Reset()

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.TNC.KISSPort != 8001 {
		t.Errorf("expected TNC.KISSPort default 8001, got %d", cfg.TNC.KISSPort)
	}
	if cfg.TNC.TxDelay != 30 {
		t.Errorf("expected TNC.TxDelay default 30, got %d", cfg.TNC.TxDelay)
	}
	if cfg.TNC.Persistence != 0.25 {
		t.Errorf("expected TNC.Persistence default 0.25, got %v", cfg.TNC.Persistence)
	}
	if cfg.PTT.Driver != "noop" {
		t.Errorf("expected PTT.Driver default noop, got %q", cfg.PTT.Driver)
	}
	if cfg.Reflector.Module != "A" {
		t.Errorf("expected Reflector.Module default A, got %q", cfg.Reflector.Module)
	}
	if cfg.Logging.Level == "" {
		t.Errorf("expected Logging.Level to be set (default info)")
	}
	if cfg.Metrics.Prometheus.Port != 9090 {
		t.Errorf("expected Prometheus.Port default 9090, got %d", cfg.Metrics.Prometheus.Port)
	}
}

func TestValidate_Errors(t *testing.T) {
	t.Run("kiss_port and kiss_serial mutually exclusive", func(t *testing.T) {
		cfg := &Config{TNC: TNCConfig{KISSPort: 8001, KISSSerial: "/dev/ttyUSB0", SlotTime: 10}}
		if err := validate(cfg); err == nil {
			t.Fatal("expected error for kiss_port and kiss_serial both set")
		}
	})

	t.Run("invalid persistence range", func(t *testing.T) {
		cfg := &Config{TNC: TNCConfig{Persistence: 1.5, SlotTime: 10}, PTT: PTTConfig{Driver: "noop"}}
		if err := validate(cfg); err == nil {
			t.Fatal("expected error for persistence out of range")
		}
	})

	t.Run("invalid can", func(t *testing.T) {
		cfg := &Config{TNC: TNCConfig{CAN: 16, SlotTime: 10}, PTT: PTTConfig{Driver: "noop"}}
		if err := validate(cfg); err == nil {
			t.Fatal("expected error for can out of range")
		}
	})

	t.Run("gpio driver missing chip", func(t *testing.T) {
		cfg := &Config{TNC: TNCConfig{SlotTime: 10}, PTT: PTTConfig{Driver: "gpio"}}
		if err := validate(cfg); err == nil {
			t.Fatal("expected error for gpio driver without chip")
		}
	})

	t.Run("serial driver invalid line", func(t *testing.T) {
		cfg := &Config{
			TNC: TNCConfig{SlotTime: 10},
			PTT: PTTConfig{Driver: "serial", Serial: SerialPTTConfig{Device: "/dev/ttyUSB0", Line: "xyz"}},
		}
		if err := validate(cfg); err == nil {
			t.Fatal("expected error for invalid serial line")
		}
	})

	t.Run("unknown ptt driver", func(t *testing.T) {
		cfg := &Config{TNC: TNCConfig{SlotTime: 10}, PTT: PTTConfig{Driver: "vox"}}
		if err := validate(cfg); err == nil {
			t.Fatal("expected error for unknown ptt driver")
		}
	})

	t.Run("reflector enabled missing hostport", func(t *testing.T) {
		cfg := &Config{
			TNC:       TNCConfig{SlotTime: 10},
			PTT:       PTTConfig{Driver: "noop"},
			Reflector: ReflectorConfig{Enabled: true, Callsign: "N0CALL", Module: "A"},
		}
		if err := validate(cfg); err == nil {
			t.Fatal("expected error for reflector enabled without hostport")
		}
	})

	t.Run("reflector invalid module", func(t *testing.T) {
		cfg := &Config{
			TNC:       TNCConfig{SlotTime: 10},
			PTT:       PTTConfig{Driver: "noop"},
			Reflector: ReflectorConfig{Enabled: true, HostPort: "ref.example.com:17000", Callsign: "N0CALL", Module: "AB"},
		}
		if err := validate(cfg); err == nil {
			t.Fatal("expected error for multi-character reflector module")
		}
	})

	t.Run("mqtt enabled missing broker", func(t *testing.T) {
		cfg := &Config{
			TNC:  TNCConfig{SlotTime: 10},
			PTT:  PTTConfig{Driver: "noop"},
			MQTT: MQTTConfig{Enabled: true},
		}
		if err := validate(cfg); err == nil {
			t.Fatal("expected error for mqtt enabled without broker")
		}
	})

	t.Run("prometheus invalid port", func(t *testing.T) {
		cfg := &Config{
			TNC:     TNCConfig{SlotTime: 10},
			PTT:     PTTConfig{Driver: "noop"},
			Metrics: MetricsConfig{Prometheus: PrometheusConfig{Enabled: true, Port: 70000}},
		}
		if err := validate(cfg); err == nil {
			t.Fatal("expected error for prometheus port out of range")
		}
	})

	t.Run("valid config passes", func(t *testing.T) {
		cfg := &Config{
			TNC:       TNCConfig{KISSPort: 8001, Persistence: 0.25, SlotTime: 10, CAN: 0},
			PTT:       PTTConfig{Driver: "gpio", GPIO: GPIOPTTConfig{Chip: "/dev/gpiochip0", PTTLine: 17, DCDLine: -1}},
			Reflector: ReflectorConfig{Enabled: true, HostPort: "ref.example.com:17000", Callsign: "N0CALL", Module: "A"},
		}
		if err := validate(cfg); err != nil {
			t.Fatalf("expected valid config to pass, got %v", err)
		}
	})
}
