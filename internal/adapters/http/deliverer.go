// Package http delivers batches to an Adafruit IO style REST feed.
package http

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptrace"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"github.com/bft-labs/wifiship/internal/domain"
	"github.com/bft-labs/wifiship/internal/ports"
)

// DefaultTimeout bounds one delivery attempt end to end.
const DefaultTimeout = 15 * time.Second

// maxReasonBytes caps how much of an error body ends up in logs.
const maxReasonBytes = 256

// Config describes the feed endpoint.
type Config struct {
	ServiceURL string
	Username   string
	Feed       string
	AuthKey    string
	Timeout    time.Duration
	UserAgent  string
}

// Deliverer implements ports.Deliverer over HTTP.
type Deliverer struct {
	client ports.HTTPClient
	config Config
	logger ports.Logger
}

// NewDeliverer creates a new HTTP deliverer.
func NewDeliverer(client ports.HTTPClient, config Config, logger ports.Logger) *Deliverer {
	if config.Timeout <= 0 {
		config.Timeout = DefaultTimeout
	}
	return &Deliverer{
		client: client,
		config: config,
		logger: logger,
	}
}

// Endpoint returns the data URL of the configured feed.
func (d *Deliverer) Endpoint() string {
	return fmt.Sprintf("%s/api/v2/%s/feeds/%s/data",
		strings.TrimRight(d.config.ServiceURL, "/"),
		url.PathEscape(d.config.Username),
		url.PathEscape(d.config.Feed),
	)
}

// Deliver posts the batch envelope once. An error before the request was
// fully written is a Failure; an error or timeout after that point means the
// endpoint may have accepted the data, so the outcome is Ambiguous.
func (d *Deliverer) Deliver(ctx context.Context, batch domain.Batch) domain.Outcome {
	body, err := domain.Envelope(batch)
	if err != nil {
		return domain.Failed(0, "encode envelope", err)
	}

	ctx, cancel := context.WithTimeout(ctx, d.config.Timeout)
	defer cancel()

	var written atomic.Bool
	trace := &httptrace.ClientTrace{
		WroteRequest: func(info httptrace.WroteRequestInfo) {
			if info.Err == nil {
				written.Store(true)
			}
		},
	}

	req, err := http.NewRequestWithContext(httptrace.WithClientTrace(ctx, trace), http.MethodPost, d.Endpoint(), bytes.NewReader(body))
	if err != nil {
		return domain.Failed(0, "create request", err)
	}
	req.Header.Set("X-AIO-Key", d.config.AuthKey)
	req.Header.Set("Content-Type", "application/json")
	if d.config.UserAgent != "" {
		req.Header.Set("User-Agent", d.config.UserAgent)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		if written.Load() {
			return domain.Ambiguous("no response after request was sent", err)
		}
		return domain.Failed(0, "send request: "+err.Error(), err)
	}
	defer resp.Body.Close()

	excerpt, _ := io.ReadAll(io.LimitReader(resp.Body, maxReasonBytes))
	// Drain the rest so the connection can be reused.
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode/100 != 2 {
		reason := strings.TrimSpace(string(excerpt))
		if reason == "" {
			reason = http.StatusText(resp.StatusCode)
		}
		return domain.Failed(resp.StatusCode, reason, nil)
	}

	d.logger.Debug("feed accepted batch",
		ports.Int("status", resp.StatusCode),
		ports.Int("bytes", len(body)),
	)
	return domain.Succeeded(resp.StatusCode)
}
