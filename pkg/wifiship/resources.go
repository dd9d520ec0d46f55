package wifiship

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/bft-labs/wifiship/internal/adapters/fs"
	"github.com/bft-labs/wifiship/internal/adapters/gpio"
	httpAdapter "github.com/bft-labs/wifiship/internal/adapters/http"
	"github.com/bft-labs/wifiship/internal/adapters/iw"
	"github.com/bft-labs/wifiship/internal/adapters/mqtt"
	"github.com/bft-labs/wifiship/internal/adapters/netif"
	"github.com/bft-labs/wifiship/internal/adapters/nmea"
	"github.com/bft-labs/wifiship/internal/adapters/sqlite"
	"github.com/bft-labs/wifiship/internal/ports"
)

// resources are the handles a running agent holds open: the GPS port, the
// queue and the LED. They are acquired by Start or RunOnce and released when
// the agent stops.
type resources struct {
	source    io.Reader
	queue     Queue
	indicator Indicator
	closers   []namedCloser
}

type namedCloser struct {
	name string
	io.Closer
}

func (r *resources) close(logger Logger) {
	if r.indicator != nil {
		r.indicator.Set(false)
	}
	for i := len(r.closers) - 1; i >= 0; i-- {
		c := r.closers[i]
		if err := c.Close(); err != nil {
			logger.Warn("close failed", ports.String("resource", c.name), ports.Err(err))
		}
	}
	r.closers = nil
}

const userAgent = "wifiship"

// newDeliverer builds the configured transport.
func newDeliverer(cfg Config, client HTTPClient, logger Logger) Deliverer {
	if cfg.Transport == TransportMQTT {
		return mqtt.NewDeliverer(mqtt.Config{
			Broker:   cfg.MQTTBroker,
			Username: cfg.Username,
			AuthKey:  cfg.AuthKey,
			Feed:     cfg.Feed,
			Timeout:  cfg.HTTPTimeout,
		}, logger)
	}
	if client == nil {
		client = &http.Client{Timeout: cfg.HTTPTimeout}
	}
	return httpAdapter.NewDeliverer(client, httpAdapter.Config{
		ServiceURL: cfg.ServiceURL,
		Username:   cfg.Username,
		Feed:       cfg.Feed,
		AuthKey:    cfg.AuthKey,
		Timeout:    cfg.HTTPTimeout,
		UserAgent:  userAgent,
	}, logger)
}

func newScanner(cfg Config, logger Logger) Scanner {
	return iw.NewScanner(cfg.Iface, logger)
}

func newLink(cfg Config, logger Logger) Link {
	return netif.NewLink(cfg.Iface, logger)
}

// open acquires everything the options did not provide. On error, whatever
// was already opened is closed again.
func (w *Wifiship) open(ctx context.Context) (res *resources, err error) {
	res = &resources{}
	defer func() {
		if err != nil {
			res.close(w.logger)
			res = nil
		}
	}()

	if w.opts.fixSource != nil {
		res.source = w.opts.fixSource
	} else {
		port, perr := nmea.OpenSerial(w.config.GPSPort, w.config.GPSBaud, nmea.DefaultReadTimeout)
		if perr != nil {
			return res, fmt.Errorf("open gps port %s: %w", w.config.GPSPort, perr)
		}
		res.source = port
		res.closers = append(res.closers, namedCloser{"gps", port})
	}

	if w.opts.queue != nil {
		res.queue = w.opts.queue
	} else {
		q, qerr := w.openQueue(ctx)
		if qerr != nil {
			return res, qerr
		}
		res.queue = q
		if c, ok := q.(io.Closer); ok {
			res.closers = append(res.closers, namedCloser{"queue", c})
		}
	}

	switch {
	case w.opts.indicator != nil:
		res.indicator = w.opts.indicator
	case w.config.LEDPin != "":
		led, lerr := gpio.OpenLED(w.config.LEDPin, w.clock, w.logger)
		if lerr != nil {
			// The LED is cosmetic; run without it.
			w.logger.Warn("status LED unavailable",
				ports.String("pin", w.config.LEDPin),
				ports.Err(lerr),
			)
			res.indicator = gpio.Nop{}
		} else {
			res.indicator = led
		}
	default:
		res.indicator = gpio.Nop{}
	}

	if c, ok := w.deliverer.(io.Closer); ok && w.opts.deliverer == nil {
		res.closers = append(res.closers, namedCloser{"deliverer", c})
	}
	return res, nil
}

func (w *Wifiship) openQueue(ctx context.Context) (Queue, error) {
	switch w.config.QueueBackend {
	case QueueBackendSQLite:
		if err := os.MkdirAll(w.config.QueueDir, 0o700); err != nil {
			return nil, fmt.Errorf("create queue dir: %w", err)
		}
		return sqlite.Open(ctx, sqlite.QueueConfig{
			Path:         filepath.Join(w.config.QueueDir, sqliteFileName),
			MaxBytes:     w.config.QueueMaxBytes,
			LowWatermark: w.config.QueueLowWatermark,
		}, w.clock, w.logger)
	default:
		return fs.NewQueue(fs.QueueConfig{
			Dir:          w.config.QueueDir,
			MaxBytes:     w.config.QueueMaxBytes,
			LowWatermark: w.config.QueueLowWatermark,
		}, w.clock, w.logger)
	}
}
