// Package nmea turns the GPS receiver's NMEA 0183 stream into location fixes.
package nmea

import (
	"bytes"

	nmea "github.com/adrianmo/go-nmea"

	"github.com/bft-labs/wifiship/internal/domain"
	"github.com/bft-labs/wifiship/internal/ports"
)

// maxSentence is the longest partial line kept between reads. Standard
// sentences are at most 82 bytes; anything longer is line noise.
const maxSentence = 256

// Decoder implements ports.FixDecoder over GGA and RMC sentences. Other
// sentence types and lines failing their checksum are skipped.
type Decoder struct {
	buf    []byte
	fix    domain.LocationFix
	logger ports.Logger
}

// NewDecoder creates a decoder with an empty fix.
func NewDecoder(logger ports.Logger) *Decoder {
	return &Decoder{logger: logger}
}

// Feed consumes raw bytes and reports whether a GGA or RMC sentence was
// decoded. A sentence split across calls is completed by a later call.
func (d *Decoder) Feed(p []byte) bool {
	d.buf = append(d.buf, p...)

	decoded := false
	for {
		i := bytes.IndexByte(d.buf, '\n')
		if i < 0 {
			break
		}
		line := bytes.TrimSpace(d.buf[:i])
		d.buf = d.buf[i+1:]
		if d.decode(line) {
			decoded = true
		}
	}

	if len(d.buf) > maxSentence {
		d.logger.Debug("discarding unterminated gps input", ports.Int("bytes", len(d.buf)))
		d.buf = d.buf[:0]
	}
	// Release the consumed prefix.
	if len(d.buf) == 0 {
		d.buf = nil
	}
	return decoded
}

// Fix returns the position state accumulated so far.
func (d *Decoder) Fix() domain.LocationFix {
	return d.fix
}

func (d *Decoder) decode(line []byte) bool {
	if len(line) == 0 || (line[0] != '$' && line[0] != '!') {
		return false
	}
	sentence, err := nmea.Parse(string(line))
	if err != nil {
		d.logger.Debug("skipping gps sentence", ports.String("line", string(line)), ports.Err(err))
		return false
	}

	switch sentence.DataType() {
	case nmea.TypeGGA:
		m := sentence.(nmea.GGA)
		d.fix.Satellites = int(m.NumSatellites)
		d.fix.Valid = m.FixQuality != nmea.Invalid && m.FixQuality != ""
		d.fix.Latitude = m.Latitude
		d.fix.Longitude = m.Longitude
		return true
	case nmea.TypeRMC:
		m := sentence.(nmea.RMC)
		d.fix.Valid = m.Validity == nmea.ValidRMC
		d.fix.Latitude = m.Latitude
		d.fix.Longitude = m.Longitude
		return true
	default:
		return false
	}
}
