package cliconfig

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// FileConfig mirrors Config but uses strings for durations and sizes so
// files can say "120s" or "64MiB".
type FileConfig struct {
	ServiceURL string `toml:"service_url" yaml:"service_url"`
	Username   string `toml:"username" yaml:"username"`
	Feed       string `toml:"feed" yaml:"feed"`
	AuthKey    string `toml:"auth_key" yaml:"auth_key"`
	Transport  string `toml:"transport" yaml:"transport"`
	MQTTBroker string `toml:"mqtt_broker" yaml:"mqtt_broker"`

	HTTPTimeout string `toml:"http_timeout" yaml:"http_timeout"`

	CyclePeriod       string `toml:"cycle_period" yaml:"cycle_period"`
	FixTimeout        string `toml:"fix_timeout" yaml:"fix_timeout"`
	FixPolicy         string `toml:"fix_policy" yaml:"fix_policy"`
	MinSatellites     int    `toml:"min_satellites" yaml:"min_satellites"`
	FlushInterval     string `toml:"flush_interval" yaml:"flush_interval"`
	FlushThreshold    int    `toml:"flush_threshold" yaml:"flush_threshold"`
	MaxPayloadBytes   int    `toml:"max_payload_bytes" yaml:"max_payload_bytes"`
	OverflowPolicy    string `toml:"overflow_policy" yaml:"overflow_policy"`
	DrainLimit        int    `toml:"drain_limit" yaml:"drain_limit"`
	MaxPendingRecords int    `toml:"max_pending_records" yaml:"max_pending_records"`

	GPSPort string `toml:"gps_port" yaml:"gps_port"`
	GPSBaud int    `toml:"gps_baud" yaml:"gps_baud"`
	Iface   string `toml:"iface" yaml:"iface"`

	QueueBackend      string `toml:"queue_backend" yaml:"queue_backend"`
	QueueDir          string `toml:"queue_dir" yaml:"queue_dir"`
	QueueMaxBytes     string `toml:"queue_max_bytes" yaml:"queue_max_bytes"`
	QueueLowWatermark string `toml:"queue_low_watermark" yaml:"queue_low_watermark"`

	LEDPin   string `toml:"led_pin" yaml:"led_pin"`
	LogLevel string `toml:"log_level" yaml:"log_level"`
	Once     *bool  `toml:"once" yaml:"once"`
}

// LoadFileConfig reads a config file. Files ending in .yaml or .yml are
// parsed as YAML, everything else as TOML.
func LoadFileConfig(path string) (FileConfig, error) {
	var fc FileConfig
	b, err := os.ReadFile(path)
	if err != nil {
		return fc, err
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &fc); err != nil {
			return fc, fmt.Errorf("parse %s: %w", path, err)
		}
	default:
		if err := toml.Unmarshal(b, &fc); err != nil {
			return fc, fmt.Errorf("parse %s: %w", path, err)
		}
	}
	return fc, nil
}

// DefaultConfigPath returns the default configuration file path.
// Returns ~/.wifiship/config.toml if user home directory is accessible.
func DefaultConfigPath() string {
	if h, err := os.UserHomeDir(); err == nil {
		return filepath.Join(h, ".wifiship", "config.toml")
	}
	return ""
}

// ApplyFileConfig applies configuration from a file to the Config struct.
// It respects flags that have been explicitly set (changed map).
func ApplyFileConfig(cfg *Config, fc FileConfig, changed map[string]bool) error {
	s := newConfigSetter(changed)

	s.setString("service-url", fc.ServiceURL, &cfg.ServiceURL)
	s.setString("username", fc.Username, &cfg.Username)
	s.setString("feed", fc.Feed, &cfg.Feed)
	s.setString("auth-key", fc.AuthKey, &cfg.AuthKey)
	s.setString("transport", fc.Transport, &cfg.Transport)
	s.setString("mqtt-broker", fc.MQTTBroker, &cfg.MQTTBroker)
	s.setString("fix-policy", fc.FixPolicy, &cfg.FixPolicy)
	s.setString("overflow-policy", fc.OverflowPolicy, &cfg.OverflowPolicy)
	s.setString("gps-port", fc.GPSPort, &cfg.GPSPort)
	s.setString("iface", fc.Iface, &cfg.Iface)
	s.setString("queue-backend", fc.QueueBackend, &cfg.QueueBackend)
	s.setString("queue-dir", fc.QueueDir, &cfg.QueueDir)
	s.setString("led-pin", fc.LEDPin, &cfg.LEDPin)
	s.setString("log-level", fc.LogLevel, &cfg.LogLevel)

	if err := s.setDuration("timeout", fc.HTTPTimeout, &cfg.HTTPTimeout); err != nil {
		return err
	}
	if err := s.setDuration("cycle-period", fc.CyclePeriod, &cfg.CyclePeriod); err != nil {
		return err
	}
	if err := s.setDuration("fix-timeout", fc.FixTimeout, &cfg.FixTimeout); err != nil {
		return err
	}
	if err := s.setDuration("flush-interval", fc.FlushInterval, &cfg.FlushInterval); err != nil {
		return err
	}

	if err := s.setBytes("queue-max-bytes", fc.QueueMaxBytes, &cfg.QueueMaxBytes); err != nil {
		return err
	}
	if err := s.setBytes("queue-low-watermark", fc.QueueLowWatermark, &cfg.QueueLowWatermark); err != nil {
		return err
	}

	s.setInt("min-satellites", fc.MinSatellites, &cfg.MinSatellites)
	s.setInt("flush-threshold", fc.FlushThreshold, &cfg.FlushThreshold)
	s.setInt("max-payload-bytes", fc.MaxPayloadBytes, &cfg.MaxPayloadBytes)
	s.setInt("drain-limit", fc.DrainLimit, &cfg.DrainLimit)
	s.setInt("max-pending-records", fc.MaxPendingRecords, &cfg.MaxPendingRecords)
	s.setInt("gps-baud", fc.GPSBaud, &cfg.GPSBaud)

	s.setBool("once", fc.Once, &cfg.Once)

	return nil
}

// FileExists checks if a file exists at the given path.
func FileExists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}
