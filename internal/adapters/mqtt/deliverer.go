// Package mqtt delivers batches to a feed topic over MQTT.
package mqtt

import (
	"context"
	"errors"
	"fmt"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/bft-labs/wifiship/internal/domain"
	"github.com/bft-labs/wifiship/internal/ports"
)

// DefaultTimeout bounds connecting and waiting for a publish acknowledgement.
const DefaultTimeout = 15 * time.Second

// disconnectQuiesce is how long Close lets in-flight work finish, in ms.
const disconnectQuiesce = 250

// Config describes the broker and feed.
type Config struct {
	// Broker is a URL such as tls://io.adafruit.com:8883.
	Broker   string
	ClientID string
	Username string
	AuthKey  string
	Feed     string
	// QoS is 1 or 2; anything else publishes at QoS 1.
	QoS     byte
	Timeout time.Duration
}

// Topic returns the feed topic, "<username>/feeds/<feed>".
func (c Config) Topic() string {
	return fmt.Sprintf("%s/feeds/%s", c.Username, c.Feed)
}

// client is the part of paho.Client the deliverer uses.
type client interface {
	IsConnectionOpen() bool
	Connect() paho.Token
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
	Disconnect(quiesce uint)
}

// Deliverer implements ports.Deliverer by publishing the batch envelope.
type Deliverer struct {
	client client
	config Config
	logger ports.Logger
}

// NewDeliverer creates a deliverer. The session is opened lazily on the
// first delivery and reopened after it drops.
func NewDeliverer(config Config, logger ports.Logger) *Deliverer {
	config = withDefaults(config)
	opts := paho.NewClientOptions().
		AddBroker(config.Broker).
		SetClientID(config.ClientID).
		SetUsername(config.Username).
		SetPassword(config.AuthKey).
		SetConnectTimeout(config.Timeout).
		SetWriteTimeout(config.Timeout).
		SetAutoReconnect(false).
		SetCleanSession(true)
	return newDeliverer(paho.NewClient(opts), config, logger)
}

func newDeliverer(c client, config Config, logger ports.Logger) *Deliverer {
	return &Deliverer{client: c, config: withDefaults(config), logger: logger}
}

func withDefaults(c Config) Config {
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.ClientID == "" {
		c.ClientID = "wifiship"
	}
	if c.QoS != 2 {
		c.QoS = 1
	}
	return c
}

// Deliver publishes once. Connection failures are Failures; a publish that
// is not acknowledged in time is Ambiguous because the broker may still have
// accepted it.
func (d *Deliverer) Deliver(ctx context.Context, batch domain.Batch) domain.Outcome {
	payload, err := domain.Envelope(batch)
	if err != nil {
		return domain.Failed(0, "encode envelope", err)
	}
	if err := ctx.Err(); err != nil {
		return domain.Failed(0, "canceled", err)
	}

	if !d.client.IsConnectionOpen() {
		tok := d.client.Connect()
		if !tok.WaitTimeout(d.config.Timeout) {
			return domain.Failed(0, "connect timed out", errors.New("mqtt connect timeout"))
		}
		if err := tok.Error(); err != nil {
			return domain.Failed(0, "connect: "+err.Error(), err)
		}
		d.logger.Info("mqtt session established", ports.String("broker", d.config.Broker))
	}

	tok := d.client.Publish(d.config.Topic(), d.config.QoS, false, payload)
	select {
	case <-tok.Done():
	case <-time.After(d.config.Timeout):
		return domain.Ambiguous("publish not acknowledged", errors.New("mqtt publish timeout"))
	case <-ctx.Done():
		return domain.Ambiguous("publish interrupted", ctx.Err())
	}
	if err := tok.Error(); err != nil {
		return domain.Ambiguous("publish: "+err.Error(), err)
	}

	d.logger.Debug("broker accepted batch",
		ports.String("topic", d.config.Topic()),
		ports.Int("bytes", len(payload)),
	)
	return domain.Succeeded(0)
}

// Close ends the session.
func (d *Deliverer) Close() error {
	if d.client.IsConnectionOpen() {
		d.client.Disconnect(disconnectQuiesce)
	}
	return nil
}
