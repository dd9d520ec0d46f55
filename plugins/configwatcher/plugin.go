// Package configwatcher reloads the cycle settings of a running wifiship
// instance when its config file changes.
package configwatcher

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/bft-labs/wifiship/internal/cliconfig"
	"github.com/bft-labs/wifiship/internal/ports"
	"github.com/bft-labs/wifiship/pkg/wifiship"
)

// DefaultDebounceDelay absorbs the burst of events an editor produces for
// one save.
const DefaultDebounceDelay = 250 * time.Millisecond

// Resolver turns the config file at path into cycle settings.
type Resolver func(path string) (wifiship.Tunables, error)

// Config holds configuration options for the config watcher plugin.
type Config struct {
	// DebounceDelay is how long the file must be quiet before a reload.
	DebounceDelay time.Duration

	// Resolve reads the settings. The default layers the file and the
	// WIFISHIP_* environment over the built-in defaults.
	Resolve Resolver
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{DebounceDelay: DefaultDebounceDelay}
}

// Plugin watches the config file and pushes changed tunables to the agent.
type Plugin struct {
	debounceDelay time.Duration
	resolve       Resolver

	path        string
	logger      wifiship.Logger
	reconfigure func(wifiship.Tunables) error
	current     wifiship.Tunables

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a new config watcher plugin with the given configuration.
func New(cfg Config) *Plugin {
	if cfg.DebounceDelay <= 0 {
		cfg.DebounceDelay = DefaultDebounceDelay
	}
	if cfg.Resolve == nil {
		cfg.Resolve = resolveFile
	}
	return &Plugin{
		debounceDelay: cfg.DebounceDelay,
		resolve:       cfg.Resolve,
	}
}

// resolveFile reads path over the defaults, ignoring command-line flags.
func resolveFile(path string) (wifiship.Tunables, error) {
	cfg, err := cliconfig.Resolve(cliconfig.DefaultConfig(), path, nil)
	if err != nil {
		return wifiship.Tunables{}, err
	}
	return cfg.Tunables(), nil
}

// Name returns the plugin identifier.
func (p *Plugin) Name() string {
	return "configwatcher"
}

// Initialize starts watching cfg.ConfigPath. Without a config path the
// plugin stays idle.
func (p *Plugin) Initialize(ctx context.Context, cfg wifiship.PluginConfig) error {
	p.logger = cfg.Logger
	if cfg.ConfigPath == "" {
		p.logger.Warn("config watcher disabled: no config file")
		return nil
	}
	if cfg.Reconfigure == nil {
		return errors.New("configwatcher: no reconfigure hook")
	}
	p.path = cfg.ConfigPath
	p.reconfigure = cfg.Reconfigure
	p.current = cfg.Tunables

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("configwatcher: create watcher: %w", err)
	}
	// Editors replace files by rename, so watch the directory.
	if err := watcher.Add(filepath.Dir(p.path)); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("configwatcher: watch %s: %w", filepath.Dir(p.path), err)
	}

	watchCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.wg.Add(1)
	go p.watchLoop(watchCtx, watcher)

	p.logger.Info("config watcher started", ports.String("path", p.path))
	return nil
}

// Shutdown stops the watcher and waits for an in-progress reload.
func (p *Plugin) Shutdown(ctx context.Context) error {
	if p.cancel != nil {
		p.cancel()
	}
	p.wg.Wait()
	return nil
}

func (p *Plugin) watchLoop(ctx context.Context, watcher *fsnotify.Watcher) {
	defer p.wg.Done()
	defer watcher.Close()

	name := filepath.Base(p.path)
	var debounce <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != name {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			debounce = time.After(p.debounceDelay)

		case <-debounce:
			debounce = nil
			p.reload()

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			p.logger.Warn("config watcher error", ports.Err(err))
		}
	}
}

// reload applies the file if its tunables differ from the current ones. A
// file that fails to parse or validate leaves the running settings alone.
func (p *Plugin) reload() {
	next, err := p.resolve(p.path)
	if err != nil {
		p.logger.Warn("config reload failed, keeping current settings",
			ports.String("path", p.path),
			ports.Err(err))
		return
	}
	if next == p.current {
		p.logger.Debug("config changed but tunables did not", ports.String("path", p.path))
		return
	}
	if err := p.reconfigure(next); err != nil {
		p.logger.Warn("config rejected, keeping current settings", ports.Err(err))
		return
	}
	p.current = next
	p.logger.Info("config reloaded",
		ports.Duration("cycle_period", next.CyclePeriod),
		ports.Int("flush_threshold", next.FlushThreshold),
		ports.Int("max_payload_bytes", next.MaxPayloadBytes),
	)
}

// Ensure Plugin implements wifiship.Plugin.
var _ wifiship.Plugin = (*Plugin)(nil)
