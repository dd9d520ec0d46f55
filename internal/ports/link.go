package ports

import "context"

// Link reports whether the uplink can carry traffic right now.
type Link interface {
	Up(ctx context.Context) bool
}

// Indicator drives a status output such as an LED.
type Indicator interface {
	// Set holds the indicator on or off.
	Set(on bool)

	// Blink pulses the indicator once.
	Blink()
}
