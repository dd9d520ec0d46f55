// Package gpio drives the status LED through periph.io.
package gpio

import (
	"fmt"
	"sync"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"

	"github.com/bft-labs/wifiship/internal/clock"
	"github.com/bft-labs/wifiship/internal/ports"
)

// BlinkDuration is how long a pulse inverts the LED.
const BlinkDuration = 100 * time.Millisecond

// Output is a digital output pin. gpio.PinOut satisfies it.
type Output interface {
	Out(l gpio.Level) error
}

// LED implements ports.Indicator on a GPIO pin.
type LED struct {
	pin    Output
	clock  clock.Clock
	logger ports.Logger

	mu sync.Mutex
	on bool
}

// OpenLED initializes the host drivers and claims the named pin, for
// example "GPIO17". The LED starts off.
func OpenLED(name string, clk clock.Clock, logger ports.Logger) (*LED, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("initialize gpio host: %w", err)
	}
	p := gpioreg.ByName(name)
	if p == nil {
		return nil, fmt.Errorf("gpio pin %q not found", name)
	}
	return NewLED(p, clk, logger)
}

// NewLED wraps an already opened pin and drives it low.
func NewLED(pin Output, clk clock.Clock, logger ports.Logger) (*LED, error) {
	if err := pin.Out(gpio.Low); err != nil {
		return nil, fmt.Errorf("drive led low: %w", err)
	}
	return &LED{pin: pin, clock: clk, logger: logger}, nil
}

// Set implements ports.Indicator.
func (l *LED) Set(on bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.on = on
	l.write(gpio.Level(on))
}

// Blink implements ports.Indicator. The LED is inverted for BlinkDuration
// and then restored.
func (l *LED) Blink() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.write(gpio.Level(!l.on))
	l.clock.Sleep(BlinkDuration)
	l.write(gpio.Level(l.on))
}

func (l *LED) write(level gpio.Level) {
	if err := l.pin.Out(level); err != nil {
		l.logger.Warn("led write failed", ports.Err(err))
	}
}

// Nop is an indicator for devices without an LED.
type Nop struct{}

// Set implements ports.Indicator.
func (Nop) Set(bool) {}

// Blink implements ports.Indicator.
func (Nop) Blink() {}
