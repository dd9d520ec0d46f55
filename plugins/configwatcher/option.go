package configwatcher

import "github.com/bft-labs/wifiship/pkg/wifiship"

// WithConfigWatcher returns a wifiship Option that reloads tunables when
// the instance's config file changes.
//
// Usage:
//
//	w, err := wifiship.New(cfg,
//	    configwatcher.WithConfigWatcher(configwatcher.Config{
//	        DebounceDelay: 500 * time.Millisecond,
//	    }),
//	)
func WithConfigWatcher(cfg Config) wifiship.Option {
	return wifiship.WithPlugin(New(cfg))
}

// WithDefaultConfigWatcher enables config watching with default settings.
func WithDefaultConfigWatcher() wifiship.Option {
	return WithConfigWatcher(DefaultConfig())
}
