package nmea

import (
	"fmt"
	"io"
	"time"

	"go.bug.st/serial"
)

// DefaultBaud is the usual rate for hobby GPS modules.
const DefaultBaud = 9600

// DefaultReadTimeout bounds each read so the fix gate can observe its deadline.
const DefaultReadTimeout = 200 * time.Millisecond

// OpenSerial opens the receiver's UART as 8N1. Reads that see no data within
// readTimeout return (0, nil).
func OpenSerial(path string, baud int, readTimeout time.Duration) (io.ReadCloser, error) {
	if baud <= 0 {
		baud = DefaultBaud
	}
	if readTimeout <= 0 {
		readTimeout = DefaultReadTimeout
	}
	mode := &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	port, err := serial.Open(path, mode)
	if err != nil {
		return nil, fmt.Errorf("open gps port %s: %w", path, err)
	}
	if err := port.SetReadTimeout(readTimeout); err != nil {
		_ = port.Close()
		return nil, fmt.Errorf("set gps read timeout: %w", err)
	}
	return port, nil
}
