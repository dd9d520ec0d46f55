package wifiship

import (
	"io"

	"github.com/bft-labs/wifiship/internal/clock"
	"github.com/bft-labs/wifiship/internal/domain"
	"github.com/bft-labs/wifiship/internal/ports"
	"github.com/bft-labs/wifiship/pkg/log"
)

// Re-exported types so embedders can implement the injectable dependencies.
type (
	// HTTPClient is satisfied by *http.Client.
	HTTPClient = ports.HTTPClient
	Logger     = log.Logger
	LogField   = log.Field

	Scanner   = ports.Scanner
	Link      = ports.Link
	Deliverer = ports.Deliverer
	Queue     = ports.Queue
	Indicator = ports.Indicator
	Clock     = clock.Clock

	Observation = domain.Observation
	AuthMode    = domain.AuthMode
	MAC         = domain.MAC
	LocationFix = domain.LocationFix
	Record      = domain.Record
	Batch       = domain.Batch
	Outcome     = domain.Outcome
	EntryID     = domain.EntryID
)

// Constructors for implementing Deliverer and Scanner outside this module.
var (
	Succeeded = domain.Succeeded
	Failed    = domain.Failed
	Ambiguous = domain.Ambiguous
	ParseMAC  = domain.ParseMAC
)

// Authentication codes carried by Observation.Auth.
const (
	AuthOpen       = domain.AuthOpen
	AuthWEP        = domain.AuthWEP
	AuthWPAPSK     = domain.AuthWPAPSK
	AuthWPA2PSK    = domain.AuthWPA2PSK
	AuthWPAWPA2PSK = domain.AuthWPAWPA2PSK
)

// Option configures optional behavior of Wifiship.
type Option func(*options)

type options struct {
	httpClient   HTTPClient
	logger       Logger
	eventHandler EventHandler
	plugins      []Plugin

	scanner   Scanner
	fixSource io.Reader
	link      Link
	queue     Queue
	deliverer Deliverer
	indicator Indicator
	clock     Clock
}

// WithHTTPClient sets the client used by the HTTP transport. If not
// provided, a client with the configured timeout is used.
func WithHTTPClient(client HTTPClient) Option {
	return func(o *options) {
		o.httpClient = client
	}
}

// WithLogger sets a structured logger. If not provided, nothing is logged.
func WithLogger(logger Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithEventHandler sets a handler for lifecycle and cycle events.
func WithEventHandler(handler EventHandler) Option {
	return func(o *options) {
		o.eventHandler = handler
	}
}

// WithPlugin registers a plugin to be initialized when Wifiship starts.
func WithPlugin(plugin Plugin) Option {
	return func(o *options) {
		o.plugins = append(o.plugins, plugin)
	}
}

// WithScanner replaces the iw scanner.
func WithScanner(s Scanner) Option {
	return func(o *options) {
		o.scanner = s
	}
}

// WithFixSource replaces the serial GPS port with r. Reads should return
// within a bounded time. The reader is not closed by Wifiship.
func WithFixSource(r io.Reader) Option {
	return func(o *options) {
		o.fixSource = r
	}
}

// WithLink replaces the interface-table link check.
func WithLink(l Link) Option {
	return func(o *options) {
		o.link = l
	}
}

// WithQueue replaces the configured offline queue backend. The queue is not
// closed by Wifiship.
func WithQueue(q Queue) Option {
	return func(o *options) {
		o.queue = q
	}
}

// WithDeliverer replaces the configured transport.
func WithDeliverer(d Deliverer) Option {
	return func(o *options) {
		o.deliverer = d
	}
}

// WithIndicator replaces the GPIO status LED.
func WithIndicator(i Indicator) Option {
	return func(o *options) {
		o.indicator = i
	}
}

// WithClock replaces the wall clock, mainly for tests.
func WithClock(c Clock) Option {
	return func(o *options) {
		o.clock = c
	}
}
