package cliconfig

import "github.com/bft-labs/wifiship/pkg/wifiship"

// Tunables returns the cycle settings of c.
func (c Config) Tunables() wifiship.Tunables {
	return wifiship.Tunables{
		CyclePeriod:     c.CyclePeriod,
		FixTimeout:      c.FixTimeout,
		FixPolicy:       wifiship.FixPolicy(c.FixPolicy),
		FlushInterval:   c.FlushInterval,
		FlushThreshold:  c.FlushThreshold,
		MaxPayloadBytes: c.MaxPayloadBytes,
		OverflowPolicy:  wifiship.OverflowPolicy(c.OverflowPolicy),
		DrainLimit:      c.DrainLimit,
	}
}

// Library converts the CLI configuration into the embeddable one. path is
// the config file the settings were read from, if any.
func (c Config) Library(path string) wifiship.Config {
	return wifiship.Config{
		ServiceURL:        c.ServiceURL,
		Username:          c.Username,
		Feed:              c.Feed,
		AuthKey:           c.AuthKey,
		Transport:         c.Transport,
		MQTTBroker:        c.MQTTBroker,
		HTTPTimeout:       c.HTTPTimeout,
		Tunables:          c.Tunables(),
		MinSatellites:     c.MinSatellites,
		MaxPendingRecords: c.MaxPendingRecords,
		GPSPort:           c.GPSPort,
		GPSBaud:           c.GPSBaud,
		Iface:             c.Iface,
		QueueBackend:      c.QueueBackend,
		QueueDir:          c.QueueDir,
		QueueMaxBytes:     c.QueueMaxBytes,
		QueueLowWatermark: c.QueueLowWatermark,
		LEDPin:            c.LEDPin,
		ConfigPath:        path,
		Once:              c.Once,
	}
}

// Resolve layers the config file at path (when it exists) and then the
// WIFISHIP_* environment over base. Settings named in changed came from
// flags and are left alone. The result is validated.
func Resolve(base Config, path string, changed map[string]bool) (Config, error) {
	cfg := base
	if changed == nil {
		changed = map[string]bool{}
	}
	if path != "" && FileExists(path) {
		fc, err := LoadFileConfig(path)
		if err != nil {
			return cfg, err
		}
		if err := ApplyFileConfig(&cfg, fc, changed); err != nil {
			return cfg, err
		}
	}
	if err := ApplyEnvConfig(&cfg, changed); err != nil {
		return cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}
