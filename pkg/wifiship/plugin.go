package wifiship

import (
	"context"
	"fmt"
)

// Plugin extends a Wifiship instance. Plugins are initialized in
// registration order when Start is called and shut down in reverse order
// when the instance stops.
type Plugin interface {
	// Name returns a unique identifier used in logs.
	Name() string

	// Initialize is called during Start. Returning an error aborts Start
	// and leaves the instance in StateCrashed. ctx is canceled when the
	// instance begins stopping.
	Initialize(ctx context.Context, cfg PluginConfig) error

	// Shutdown is called during Stop. Errors are logged and do not prevent
	// the remaining plugins from shutting down.
	Shutdown(ctx context.Context) error
}

// PluginConfig is what a plugin receives at initialization.
type PluginConfig struct {
	// ConfigPath is the file the instance settings came from, if any.
	ConfigPath string
	Username   string
	Feed       string
	// Tunables are the cycle settings in effect when the plugin started.
	Tunables Tunables
	Logger   Logger
	// Reconfigure schedules new cycle settings; see Wifiship.Reconfigure.
	Reconfigure func(Tunables) error
}

// BasePlugin provides no-op Initialize and Shutdown for embedding.
type BasePlugin struct {
	name string
}

// NewBasePlugin returns a BasePlugin reporting name.
func NewBasePlugin(name string) BasePlugin {
	return BasePlugin{name: name}
}

func (p BasePlugin) Name() string                                 { return p.name }
func (BasePlugin) Initialize(context.Context, PluginConfig) error { return nil }
func (BasePlugin) Shutdown(context.Context) error                 { return nil }

// initPlugin runs Initialize, turning a panic into an error.
func initPlugin(ctx context.Context, p Plugin, cfg PluginConfig) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("plugin %s panicked during initialize: %v", p.Name(), r)
		}
	}()
	return p.Initialize(ctx, cfg)
}

// shutdownPlugin runs Shutdown, turning a panic into an error.
func shutdownPlugin(ctx context.Context, p Plugin) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("plugin %s panicked during shutdown: %v", p.Name(), r)
		}
	}()
	return p.Shutdown(ctx)
}
