package cliconfig

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/bft-labs/wifiship/pkg/wifiship"
)

// DefaultServiceURL is the default ingestion endpoint.
const DefaultServiceURL = wifiship.DefaultServiceURL

// Transports and queue backends.
const (
	TransportHTTP = wifiship.TransportHTTP
	TransportMQTT = wifiship.TransportMQTT

	QueueBackendDir    = wifiship.QueueBackendDir
	QueueBackendSQLite = wifiship.QueueBackendSQLite
)

// Config holds CLI configuration for wifiship.
type Config struct {
	ServiceURL string
	Username   string
	Feed       string
	AuthKey    string
	Transport  string
	MQTTBroker string

	HTTPTimeout time.Duration

	CyclePeriod       time.Duration
	FixTimeout        time.Duration
	FixPolicy         string
	MinSatellites     int
	FlushInterval     time.Duration
	FlushThreshold    int
	MaxPayloadBytes   int
	OverflowPolicy    string
	DrainLimit        int
	MaxPendingRecords int

	GPSPort string
	GPSBaud int
	Iface   string

	QueueBackend      string
	QueueDir          string
	QueueMaxBytes     int64
	QueueLowWatermark int64

	LEDPin   string
	LogLevel string
	Once     bool
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{
		ServiceURL:        DefaultServiceURL,
		Feed:              wifiship.DefaultFeed,
		Transport:         TransportHTTP,
		HTTPTimeout:       wifiship.DefaultHTTPTimeout,
		CyclePeriod:       wifiship.DefaultCyclePeriod,
		FixTimeout:        wifiship.DefaultFixTimeout,
		FixPolicy:         string(wifiship.FixPolicyClean),
		MinSatellites:     wifiship.DefaultMinSatellites,
		FlushInterval:     wifiship.DefaultFlushInterval,
		FlushThreshold:    wifiship.DefaultFlushThreshold,
		MaxPayloadBytes:   wifiship.DefaultMaxPayloadBytes,
		OverflowPolicy:    string(wifiship.OverflowDrop),
		MaxPendingRecords: wifiship.DefaultMaxPendingRecords,
		GPSPort:           wifiship.DefaultGPSPort,
		GPSBaud:           wifiship.DefaultGPSBaud,
		Iface:             wifiship.DefaultIface,
		QueueBackend:      QueueBackendDir,
		QueueMaxBytes:     wifiship.DefaultQueueMaxBytes,
		LogLevel:          "info",
		AuthKey:           os.Getenv("WIFISHIP_AUTH_KEY"),
	}
}

// Validate checks the configuration for errors and sets derived defaults.
func (c *Config) Validate() error {
	if c.Username == "" {
		return fmt.Errorf("username is required")
	}
	if c.Feed == "" {
		return fmt.Errorf("feed is required")
	}

	c.ServiceURL = strings.TrimRight(c.ServiceURL, "/")
	if c.ServiceURL == "" {
		c.ServiceURL = DefaultServiceURL
	}

	switch c.Transport {
	case TransportHTTP:
	case TransportMQTT:
		if c.MQTTBroker == "" {
			return fmt.Errorf("mqtt-broker is required for the mqtt transport")
		}
	default:
		return fmt.Errorf("unknown transport %q (want %s or %s)", c.Transport, TransportHTTP, TransportMQTT)
	}

	if c.QueueDir == "" {
		c.QueueDir = DefaultQueueDir()
		if c.QueueDir == "" {
			return fmt.Errorf("queue-dir is required")
		}
	}
	switch c.QueueBackend {
	case QueueBackendDir, QueueBackendSQLite:
	default:
		return fmt.Errorf("unknown queue backend %q (want %s or %s)", c.QueueBackend, QueueBackendDir, QueueBackendSQLite)
	}
	if c.QueueMaxBytes < 0 {
		return fmt.Errorf("queue-max-bytes must not be negative")
	}
	if c.QueueLowWatermark > c.QueueMaxBytes {
		return fmt.Errorf("queue-low-watermark %s exceeds queue-max-bytes %s",
			humanize.IBytes(uint64(c.QueueLowWatermark)), humanize.IBytes(uint64(c.QueueMaxBytes)))
	}
	if c.GPSPort == "" {
		return fmt.Errorf("gps-port is required")
	}

	return c.ValidateTunables()
}

// ValidateTunables checks the settings that can change at runtime.
func (c *Config) ValidateTunables() error {
	return wifiship.ValidateTunables(c.Tunables())
}

// DefaultQueueDir returns ~/.wifiship/queue when the home directory is known.
func DefaultQueueDir() string {
	return wifiship.DefaultQueueDir()
}

// configSetter helps apply configuration values while respecting flag precedence.
// It only applies values if the corresponding flag hasn't been explicitly set.
type configSetter struct {
	changed map[string]bool
}

func newConfigSetter(changed map[string]bool) *configSetter {
	return &configSetter{changed: changed}
}

func (s *configSetter) setString(flag, value string, dst *string) {
	if value == "" || s.changed[flag] {
		return
	}
	*dst = value
}

// setInt sets an int value if positive and flag not changed.
func (s *configSetter) setInt(flag string, value int, dst *int) {
	if value <= 0 || s.changed[flag] {
		return
	}
	*dst = value
}

// setDuration parses and sets a duration from string if valid and flag not changed.
func (s *configSetter) setDuration(flag, value string, dst *time.Duration) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	*dst = d
	return nil
}

// setBytes parses a size such as "64MiB" or "500000".
func (s *configSetter) setBytes(flag, value string, dst *int64) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	n, err := humanize.ParseBytes(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	*dst = int64(n)
	return nil
}

func (s *configSetter) setBool(flag string, value *bool, dst *bool) {
	if value == nil || s.changed[flag] {
		return
	}
	*dst = *value
}

// setIntFromString parses a string to int and sets the destination if valid.
// Zero is accepted so that limits can be switched off from the environment.
func (s *configSetter) setIntFromString(flag, value string, dst *int) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	i, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	if i < 0 {
		return nil
	}
	*dst = i
	return nil
}

// setBoolFromString accepts "true" and "1" as true, anything else as false.
func (s *configSetter) setBoolFromString(flag, value string, dst *bool) {
	if value == "" || s.changed[flag] {
		return
	}
	*dst = value == "true" || value == "1"
}
