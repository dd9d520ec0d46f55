package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// AuthMode is the authentication scheme code reported by the scan driver.
type AuthMode uint8

// Authentication codes as reported by the radio firmware.
const (
	AuthOpen        AuthMode = 0
	AuthWEP         AuthMode = 1
	AuthWPAPSK      AuthMode = 3
	AuthWPA2PSK     AuthMode = 5
	AuthWPAWPA2PSK  AuthMode = 7
	AuthUnknownCode AuthMode = 255
)

// AuthUnknown is the label used for any code outside the known set.
const AuthUnknown = "Unknown"

// Label returns the human-readable name of the scheme.
func (a AuthMode) Label() string {
	switch a {
	case AuthOpen:
		return "Open"
	case AuthWEP:
		return "WEP"
	case AuthWPAPSK:
		return "WPA-PSK"
	case AuthWPA2PSK:
		return "WPA2-PSK"
	case AuthWPAWPA2PSK:
		return "WPA/WPA2-PSK"
	default:
		return AuthUnknown
	}
}

// HiddenSSID replaces names that are empty or cannot be decoded.
const HiddenSSID = "Hidden"

// MAC is a 6-byte hardware address.
type MAC [6]byte

// String renders the address as upper-case hex octets joined by colons.
func (m MAC) String() string {
	return fmt.Sprintf("%02X:%02X:%02X:%02X:%02X:%02X", m[0], m[1], m[2], m[3], m[4], m[5])
}

// ParseMAC parses a colon or dash separated 6-octet address.
func ParseMAC(s string) (MAC, error) {
	var m MAC
	s = strings.ReplaceAll(strings.TrimSpace(s), "-", ":")
	parts := strings.Split(s, ":")
	if len(parts) != 6 {
		return m, fmt.Errorf("parse mac %q: want 6 octets, got %d", s, len(parts))
	}
	for i, p := range parts {
		if len(p) != 2 {
			return m, fmt.Errorf("parse mac %q: bad octet %q", s, p)
		}
		b, err := strconv.ParseUint(p, 16, 8)
		if err != nil {
			return m, fmt.Errorf("parse mac %q: %w", s, err)
		}
		m[i] = byte(b)
	}
	return m, nil
}

// Observation is one wireless network seen by a scan.
type Observation struct {
	SSID  string
	BSSID MAC
	RSSI  int
	Auth  AuthMode
}

// LocationFix is a position reading from the GPS decoder.
type LocationFix struct {
	Latitude   float64
	Longitude  float64
	Satellites int
	Valid      bool
}

// SentinelFix is substituted for a real fix when the permissive policy is
// active and no trustworthy position arrived in time.
var SentinelFix = LocationFix{}

// Plausible reports whether the coordinates are non-zero and inside the
// valid latitude/longitude ranges.
func (f LocationFix) Plausible() bool {
	if f.Latitude == 0 || f.Longitude == 0 {
		return false
	}
	return f.Latitude >= -90 && f.Latitude <= 90 && f.Longitude >= -180 && f.Longitude <= 180
}
