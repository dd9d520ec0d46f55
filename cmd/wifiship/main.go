package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"runtime/debug"
	"strings"
	"syscall"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	pflag "github.com/spf13/pflag"

	"github.com/bft-labs/wifiship/internal/cliconfig"
	"github.com/bft-labs/wifiship/pkg/log"
	"github.com/bft-labs/wifiship/pkg/wifiship"
	"github.com/bft-labs/wifiship/plugins/configwatcher"
)

const helpDescription = `
Log the wireless networks you drive past, tagged with GPS position, and
forward them to a telemetry feed.

Highlights:
  - Records only when the GPS reports a trustworthy fix (or marks the rest).
  - Batches under the feed's payload ceiling; nothing is sent twice on purpose.
  - Anything that cannot be delivered is kept on disk and replayed later.
  - Configure via file, WIFISHIP_* environment or flags; edits to the file
    are picked up while running.
`

var exampleUsage = strings.TrimSpace(`
  wifiship --username alice --auth-key <key> --gps-port /dev/ttyACM0
  wifiship --config $HOME/.wifiship/config.toml --once
  wifiship --transport mqtt --mqtt-broker tls://io.adafruit.com:8883
`)

func getVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}
	return "dev"
}

func main() {
	cfg := cliconfig.DefaultConfig()
	var cfgPath string

	logger := cliconfig.Logger()

	root := &cobra.Command{
		Use:     "wifiship",
		Short:   "Wardriving agent: scan, tag with GPS, forward or queue",
		Long:    strings.TrimSpace(helpDescription),
		Example: exampleUsage,
		Version: fmt.Sprintf("%s %s/%s", getVersion(), runtime.GOOS, runtime.GOARCH),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgFile := cfgPath
			if cfgFile == "" {
				cfgFile = cliconfig.DefaultConfigPath()
			}

			changed := map[string]bool{}
			cmd.Flags().Visit(func(f *pflag.Flag) { changed[f.Name] = true })

			// cfg holds defaults plus flags; file and environment fill the rest.
			flagged := cfg
			resolved, err := cliconfig.Resolve(flagged, cfgFile, changed)
			if err != nil {
				return fmt.Errorf("configuration: %w", err)
			}

			zl := cliconfig.WithLevel(logger, resolved.LogLevel)
			logCfg := resolved
			if logCfg.AuthKey != "" {
				logCfg.AuthKey = "*****"
			}
			zl.Info().
				Interface("config", logCfg).
				Str("queue_max", humanize.IBytes(uint64(resolved.QueueMaxBytes))).
				Msg("configuration")

			watchedPath := ""
			if cliconfig.FileExists(cfgFile) {
				watchedPath = cfgFile
			}

			w, err := wifiship.New(resolved.Library(watchedPath),
				wifiship.WithLogger(log.NewZerologAdapterWithLogger(zl)),
				configwatcher.WithConfigWatcher(configwatcher.Config{
					Resolve: func(path string) (wifiship.Tunables, error) {
						c, err := cliconfig.Resolve(flagged, path, changed)
						if err != nil {
							return wifiship.Tunables{}, err
						}
						return c.Tunables(), nil
					},
				}),
			)
			if err != nil {
				return fmt.Errorf("create wifiship: %w", err)
			}

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
			defer signal.Stop(sigCh)

			if err := w.Start(ctx); err != nil {
				return fmt.Errorf("start wifiship: %w", err)
			}

			select {
			case sig := <-sigCh:
				zl.Info().Str("signal", sig.String()).Msg("received signal, stopping")
			case <-w.Done():
				// Once mode finished or the agent crashed.
			}

			if err := w.Stop(); err != nil && !errors.Is(err, wifiship.ErrNotRunning) {
				return fmt.Errorf("stop wifiship: %w", err)
			}
			if w.Status() == wifiship.StateCrashed {
				return errors.New("wifiship crashed")
			}
			return nil
		},
	}

	f := root.Flags()
	f.StringVar(&cfgPath, "config", "", "path to config file (default: $HOME/.wifiship/config.toml)")

	f.StringVar(&cfg.Username, "username", cfg.Username, "feed owner account name")
	f.StringVar(&cfg.Feed, "feed", cfg.Feed, "feed key records are sent to")
	f.StringVar(&cfg.AuthKey, "auth-key", cfg.AuthKey, "API key for the feed (or WIFISHIP_AUTH_KEY)")
	f.StringVar(&cfg.ServiceURL, "service-url", cfg.ServiceURL, fmt.Sprintf("base service URL (defaults to %s)", cliconfig.DefaultServiceURL))
	if err := f.MarkHidden("service-url"); err != nil {
		logger.Info().Err(err).Msg("failed to hide service-url flag")
	}
	f.StringVar(&cfg.Transport, "transport", cfg.Transport, "delivery transport: http or mqtt")
	f.StringVar(&cfg.MQTTBroker, "mqtt-broker", cfg.MQTTBroker, "MQTT broker URL for the mqtt transport")
	f.DurationVar(&cfg.HTTPTimeout, "timeout", cfg.HTTPTimeout, "bounded wait for one delivery attempt")

	f.DurationVar(&cfg.CyclePeriod, "cycle-period", cfg.CyclePeriod, "target time between cycle starts")
	f.DurationVar(&cfg.FixTimeout, "fix-timeout", cfg.FixTimeout, "how long a cycle waits for a GPS fix")
	f.StringVar(&cfg.FixPolicy, "fix-policy", cfg.FixPolicy, "without a fix: clean (skip cycle) or permissive (sentinel coordinates)")
	f.IntVar(&cfg.MinSatellites, "min-satellites", cfg.MinSatellites, "satellites required for a trustworthy fix")
	f.DurationVar(&cfg.FlushInterval, "flush-interval", cfg.FlushInterval, "flush at least this often")
	f.IntVar(&cfg.FlushThreshold, "flush-threshold", cfg.FlushThreshold, "flush when more records than this are pending (0 disables)")
	f.IntVar(&cfg.MaxPayloadBytes, "max-payload-bytes", cfg.MaxPayloadBytes, "serialized payload ceiling (0 disables)")
	f.StringVar(&cfg.OverflowPolicy, "overflow-policy", cfg.OverflowPolicy, "records beyond the ceiling: drop or requeue")
	f.IntVar(&cfg.DrainLimit, "drain-limit", cfg.DrainLimit, "queued entries replayed per flush (0 means all)")
	f.IntVar(&cfg.MaxPendingRecords, "max-pending-records", cfg.MaxPendingRecords, "records held in memory before the oldest are dropped")

	f.StringVar(&cfg.GPSPort, "gps-port", cfg.GPSPort, "serial device of the GPS receiver")
	f.IntVar(&cfg.GPSBaud, "gps-baud", cfg.GPSBaud, "GPS serial baud rate")
	f.StringVar(&cfg.Iface, "iface", cfg.Iface, "wireless interface to scan and use as uplink")

	f.StringVar(&cfg.QueueBackend, "queue-backend", cfg.QueueBackend, "offline queue backend: dir or sqlite")
	f.StringVar(&cfg.QueueDir, "queue-dir", cfg.QueueDir, "offline queue directory (default: $HOME/.wifiship/queue)")
	f.Var(newBytesValue(&cfg.QueueMaxBytes), "queue-max-bytes", "offline queue size that triggers eviction, e.g. 64MiB (0 disables)")
	f.Var(newBytesValue(&cfg.QueueLowWatermark), "queue-low-watermark", "size eviction shrinks the queue to (default: 3/4 of max)")

	f.StringVar(&cfg.LEDPin, "led-pin", cfg.LEDPin, "GPIO name of the status LED, e.g. GPIO17 (empty disables)")
	f.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "debug, info, warn or error")
	f.BoolVar(&cfg.Once, "once", cfg.Once, "run a single cycle, persist what is left and exit")

	if err := root.Execute(); err != nil {
		logger.Error().Err(err).Msg("wifiship")
		os.Exit(1)
	}
}

// bytesValue is a pflag.Value accepting human sizes such as "64MiB".
type bytesValue struct {
	dst *int64
}

func newBytesValue(dst *int64) *bytesValue {
	return &bytesValue{dst: dst}
}

func (b *bytesValue) String() string {
	if b.dst == nil || *b.dst == 0 {
		return "0"
	}
	return humanize.IBytes(uint64(*b.dst))
}

func (b *bytesValue) Set(s string) error {
	n, err := humanize.ParseBytes(s)
	if err != nil {
		return err
	}
	*b.dst = int64(n)
	return nil
}

func (b *bytesValue) Type() string { return "bytes" }

var _ pflag.Value = (*bytesValue)(nil)
