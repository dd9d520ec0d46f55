package wifiship

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/bft-labs/wifiship/internal/app"
	"github.com/bft-labs/wifiship/internal/domain"
)

// Delivery transports.
const (
	TransportHTTP = "http"
	TransportMQTT = "mqtt"
)

// Offline queue backends.
const (
	QueueBackendDir    = "dir"
	QueueBackendSQLite = "sqlite"
)

// Defaults applied by DefaultConfig and SetDefaults.
const (
	DefaultServiceURL        = "https://io.adafruit.com"
	DefaultFeed              = "wardrive"
	DefaultHTTPTimeout       = 15 * time.Second
	DefaultCyclePeriod       = 35 * time.Second
	DefaultFixTimeout        = 30 * time.Second
	DefaultFlushInterval     = 120 * time.Second
	DefaultFlushThreshold    = 80
	DefaultMaxPayloadBytes   = 1000
	DefaultMinSatellites     = app.DefaultMinSatellites
	DefaultMaxPendingRecords = 500
	DefaultGPSPort           = "/dev/serial0"
	DefaultGPSBaud           = 9600
	DefaultIface             = "wlan0"
	DefaultQueueMaxBytes     = 64 << 20

	sqliteFileName = "queue.db"
)

// Tunables are the cycle settings that may change while the agent runs.
type Tunables = app.Tunables

// FixPolicy decides what a cycle does without a trustworthy fix.
type FixPolicy = domain.FixPolicy

// OverflowPolicy decides what happens to records beyond the payload ceiling.
type OverflowPolicy = domain.OverflowPolicy

const (
	FixPolicyClean      = domain.FixPolicyClean
	FixPolicyPermissive = domain.FixPolicyPermissive
	OverflowDrop        = domain.OverflowDrop
	OverflowRequeue     = domain.OverflowRequeue
)

// Config contains configuration for a Wifiship instance.
type Config struct {
	// ServiceURL is the base URL of the ingestion service.
	ServiceURL string
	Username   string
	Feed       string
	AuthKey    string

	// Transport is TransportHTTP or TransportMQTT.
	Transport   string
	MQTTBroker  string
	HTTPTimeout time.Duration

	Tunables

	MinSatellites int
	// MaxPendingRecords caps the in-memory accumulator; the oldest records
	// are dropped beyond it.
	MaxPendingRecords int

	GPSPort string
	GPSBaud int
	// Iface is the wireless interface used for scanning and the link check.
	Iface string

	QueueBackend string
	QueueDir     string
	// QueueMaxBytes is the high watermark of the offline queue; zero
	// disables eviction.
	QueueMaxBytes     int64
	QueueLowWatermark int64

	// LEDPin names the status LED GPIO; empty disables it.
	LEDPin string

	// ConfigPath is the file the settings came from. Plugins watch it; the
	// agent itself never reads it.
	ConfigPath string

	// Once runs a single cycle, persists what is left and stops.
	Once bool
}

// DefaultConfig returns a Config with every default filled in.
func DefaultConfig() Config {
	return Config{
		ServiceURL:  DefaultServiceURL,
		Feed:        DefaultFeed,
		Transport:   TransportHTTP,
		HTTPTimeout: DefaultHTTPTimeout,
		Tunables: Tunables{
			CyclePeriod:     DefaultCyclePeriod,
			FixTimeout:      DefaultFixTimeout,
			FixPolicy:       FixPolicyClean,
			FlushInterval:   DefaultFlushInterval,
			FlushThreshold:  DefaultFlushThreshold,
			MaxPayloadBytes: DefaultMaxPayloadBytes,
			OverflowPolicy:  OverflowDrop,
		},
		MinSatellites:     DefaultMinSatellites,
		MaxPendingRecords: DefaultMaxPendingRecords,
		GPSPort:           DefaultGPSPort,
		GPSBaud:           DefaultGPSBaud,
		Iface:             DefaultIface,
		QueueBackend:      QueueBackendDir,
		QueueDir:          DefaultQueueDir(),
		QueueMaxBytes:     DefaultQueueMaxBytes,
	}
}

// DefaultQueueDir returns ~/.wifiship/queue, or "" when the home directory
// is unknown.
func DefaultQueueDir() string {
	if h, err := os.UserHomeDir(); err == nil {
		return filepath.Join(h, ".wifiship", "queue")
	}
	return ""
}

// SetDefaults fills zero values whose zero is never meaningful.
func (c *Config) SetDefaults() {
	if c.ServiceURL == "" {
		c.ServiceURL = DefaultServiceURL
	}
	c.ServiceURL = strings.TrimRight(c.ServiceURL, "/")
	if c.Feed == "" {
		c.Feed = DefaultFeed
	}
	if c.Transport == "" {
		c.Transport = TransportHTTP
	}
	if c.HTTPTimeout == 0 {
		c.HTTPTimeout = DefaultHTTPTimeout
	}
	if c.CyclePeriod == 0 {
		c.CyclePeriod = DefaultCyclePeriod
	}
	if c.FixTimeout == 0 {
		c.FixTimeout = DefaultFixTimeout
	}
	if c.FixPolicy == "" {
		c.FixPolicy = FixPolicyClean
	}
	if c.FlushInterval == 0 {
		c.FlushInterval = DefaultFlushInterval
	}
	if c.OverflowPolicy == "" {
		c.OverflowPolicy = OverflowDrop
	}
	if c.MinSatellites == 0 {
		c.MinSatellites = DefaultMinSatellites
	}
	if c.MaxPendingRecords == 0 {
		c.MaxPendingRecords = DefaultMaxPendingRecords
	}
	if c.GPSPort == "" {
		c.GPSPort = DefaultGPSPort
	}
	if c.GPSBaud == 0 {
		c.GPSBaud = DefaultGPSBaud
	}
	if c.QueueBackend == "" {
		c.QueueBackend = QueueBackendDir
	}
	if c.QueueDir == "" {
		c.QueueDir = DefaultQueueDir()
	}
}

// Validate checks the configuration for errors. Every error matches
// ErrInvalidConfig.
func (c *Config) Validate() error {
	if c.Username == "" {
		return invalid("username is required")
	}
	if c.Feed == "" {
		return invalid("feed is required")
	}
	switch c.Transport {
	case TransportHTTP:
		if c.ServiceURL == "" {
			return invalid("service URL is required for the http transport")
		}
	case TransportMQTT:
		if c.MQTTBroker == "" {
			return invalid("mqtt broker is required for the mqtt transport")
		}
	default:
		return invalid("unknown transport %q", c.Transport)
	}
	if c.HTTPTimeout < 0 {
		return invalid("http timeout must not be negative")
	}
	if c.MaxPendingRecords < 0 {
		return invalid("max pending records must not be negative")
	}
	switch c.QueueBackend {
	case QueueBackendDir, QueueBackendSQLite:
	default:
		return invalid("unknown queue backend %q", c.QueueBackend)
	}
	if c.QueueMaxBytes < 0 || c.QueueLowWatermark < 0 {
		return invalid("queue sizes must not be negative")
	}
	if c.QueueLowWatermark > c.QueueMaxBytes {
		return invalid("queue low watermark %s exceeds max %s",
			humanize.IBytes(uint64(c.QueueLowWatermark)), humanize.IBytes(uint64(c.QueueMaxBytes)))
	}
	return ValidateTunables(c.Tunables)
}

// ValidateTunables checks a set of cycle settings.
func ValidateTunables(t Tunables) error {
	if t.CyclePeriod <= 0 || t.FixTimeout <= 0 || t.FlushInterval <= 0 {
		return invalid("cycle period, fix timeout and flush interval must be positive")
	}
	if t.FlushThreshold < 0 || t.MaxPayloadBytes < 0 || t.DrainLimit < 0 {
		return invalid("flush threshold, max payload bytes and drain limit must not be negative")
	}
	switch t.FixPolicy {
	case FixPolicyClean, FixPolicyPermissive:
	default:
		return invalid("unknown fix policy %q", t.FixPolicy)
	}
	switch t.OverflowPolicy {
	case OverflowDrop, OverflowRequeue:
	default:
		return invalid("unknown overflow policy %q", t.OverflowPolicy)
	}
	return nil
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidConfig, fmt.Sprintf(format, args...))
}
