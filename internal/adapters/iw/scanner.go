// Package iw scans for wireless networks with the iw(8) utility.
package iw

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/bft-labs/wifiship/internal/domain"
	"github.com/bft-labs/wifiship/internal/ports"
)

// DefaultTimeout bounds a single scan.
const DefaultTimeout = 10 * time.Second

// Runner executes a command and returns its standard output.
type Runner func(ctx context.Context, name string, args ...string) ([]byte, error)

func execRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return nil, fmt.Errorf("%w: %s", err, msg)
		}
		return nil, err
	}
	return out, nil
}

// Scanner implements ports.Scanner by running "iw dev <iface> scan".
type Scanner struct {
	iface   string
	binary  string
	timeout time.Duration
	run     Runner
	logger  ports.Logger
}

// Option configures a Scanner.
type Option func(*Scanner)

// WithBinary overrides the iw executable path.
func WithBinary(path string) Option {
	return func(s *Scanner) { s.binary = path }
}

// WithRunner replaces command execution, mainly for tests.
func WithRunner(r Runner) Option {
	return func(s *Scanner) { s.run = r }
}

// WithTimeout bounds each scan.
func WithTimeout(d time.Duration) Option {
	return func(s *Scanner) { s.timeout = d }
}

// NewScanner creates a scanner for the given interface.
func NewScanner(iface string, logger ports.Logger, opts ...Option) *Scanner {
	s := &Scanner{
		iface:   iface,
		binary:  "iw",
		timeout: DefaultTimeout,
		run:     execRunner,
		logger:  logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Scan runs one scan and returns the networks seen, strongest first.
func (s *Scanner) Scan(ctx context.Context) ([]domain.Observation, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	out, err := s.run(ctx, s.binary, "dev", s.iface, "scan")
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", s.iface, err)
	}
	obs := Parse(out)
	sort.SliceStable(obs, func(i, j int) bool { return obs[i].RSSI > obs[j].RSSI })

	s.logger.Debug("scan complete", ports.String("iface", s.iface), ports.Int("networks", len(obs)))
	return obs, nil
}

type bss struct {
	obs     domain.Observation
	rsn     bool
	wpa     bool
	privacy bool
	psk     bool
	other   bool
}

func (b *bss) auth() domain.AuthMode {
	switch {
	case (b.rsn || b.wpa) && b.other && !b.psk:
		return domain.AuthUnknownCode
	case b.rsn && b.wpa:
		return domain.AuthWPAWPA2PSK
	case b.rsn:
		return domain.AuthWPA2PSK
	case b.wpa:
		return domain.AuthWPAPSK
	case b.privacy:
		return domain.AuthWEP
	default:
		return domain.AuthOpen
	}
}

// Parse extracts observations from iw scan output. Blocks whose BSSID cannot
// be parsed are skipped.
func Parse(out []byte) []domain.Observation {
	var (
		result  []domain.Observation
		current *bss
	)
	flush := func() {
		if current != nil {
			current.obs.Auth = current.auth()
			result = append(result, current.obs)
		}
		current = nil
	}

	sc := bufio.NewScanner(bytes.NewReader(out))
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		raw := sc.Text()
		if strings.HasPrefix(raw, "BSS ") {
			flush()
			mac, err := domain.ParseMAC(bssidField(raw[len("BSS "):]))
			if err != nil {
				continue
			}
			current = &bss{obs: domain.Observation{BSSID: mac}}
			continue
		}
		if current == nil {
			continue
		}

		line := strings.TrimSpace(raw)
		switch {
		case strings.HasPrefix(line, "signal:"):
			current.obs.RSSI = parseSignal(strings.TrimPrefix(line, "signal:"))
		case strings.HasPrefix(line, "SSID:"):
			current.obs.SSID = unescapeSSID(strings.TrimSpace(strings.TrimPrefix(line, "SSID:")))
		case strings.HasPrefix(line, "RSN:"):
			current.rsn = true
		case strings.HasPrefix(line, "WPA:"):
			current.wpa = true
		case strings.HasPrefix(line, "capability:"):
			current.privacy = strings.Contains(line, "Privacy")
		case strings.Contains(line, "Authentication suites:"):
			suites := line[strings.Index(line, ":")+1:]
			if strings.Contains(suites, "PSK") {
				current.psk = true
			}
			if strings.Contains(suites, "802.1X") || strings.Contains(suites, "SAE") {
				current.other = true
			}
		}
	}
	flush()
	return result
}

// bssidField extracts the address from "aa:bb:cc:dd:ee:ff(on wlan0) -- associated".
func bssidField(s string) string {
	if i := strings.IndexAny(s, "( "); i >= 0 {
		s = s[:i]
	}
	return s
}

// parseSignal reads "-45.00 dBm" as a rounded integer.
func parseSignal(s string) int {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return 0
	}
	v, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return 0
	}
	if v < 0 {
		return int(v - 0.5)
	}
	return int(v + 0.5)
}

// unescapeSSID decodes the \xHH escapes iw uses for non-printable bytes.
func unescapeSSID(s string) string {
	if !strings.Contains(s, `\x`) {
		return s
	}
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+3 < len(s) && s[i+1] == 'x' {
			if v, err := strconv.ParseUint(s[i+2:i+4], 16, 8); err == nil {
				b.WriteByte(byte(v))
				i += 3
				continue
			}
		}
		b.WriteByte(s[i])
	}
	return b.String()
}
