package wifiship

import (
	"context"
	"sync"
	"time"

	"github.com/bft-labs/wifiship/internal/adapters/nmea"
	"github.com/bft-labs/wifiship/internal/app"
	"github.com/bft-labs/wifiship/internal/clock"
	"github.com/bft-labs/wifiship/internal/ports"
	"github.com/bft-labs/wifiship/pkg/log"
)

// flushTimeout bounds the final persist after the cycle loop stops.
const flushTimeout = 10 * time.Second

// Wifiship is a wardriving agent that can be embedded in other applications.
// Use New to create an instance, then Start to begin cycling.
type Wifiship struct {
	config    Config
	opts      options
	lifecycle *app.Lifecycle
	emitter   *eventEmitterWrapper
	logger    Logger
	clock     Clock

	scanner   Scanner
	link      Link
	deliverer Deliverer

	plugins []Plugin

	mu     sync.Mutex
	cancel context.CancelFunc

	// tmu guards the tunables and the current agent, so plugins may call
	// Reconfigure while Start holds mu.
	tmu   sync.Mutex
	agent *app.Agent
}

// New creates a Wifiship instance in StateStopped. Nothing is opened until
// Start or RunOnce; an error means the configuration is invalid.
func New(cfg Config, opts ...Option) (*Wifiship, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var o options
	for _, opt := range opts {
		opt(&o)
	}

	logger := o.logger
	if logger == nil {
		logger = log.NewNoopLogger()
	}
	clk := o.clock
	if clk == nil {
		clk = clock.Real()
	}

	emitter := &eventEmitterWrapper{handler: o.eventHandler}

	w := &Wifiship{
		config:    cfg,
		opts:      o,
		lifecycle: app.NewLifecycle(logger, emitter),
		emitter:   emitter,
		logger:    logger,
		clock:     clk,
		scanner:   o.scanner,
		link:      o.link,
		deliverer: o.deliverer,
		plugins:   o.plugins,
	}
	if w.scanner == nil {
		w.scanner = newScanner(cfg, logger)
	}
	if w.link == nil {
		w.link = newLink(cfg, logger)
	}
	if w.deliverer == nil {
		w.deliverer = newDeliverer(cfg, o.httpClient, logger)
	}
	return w, nil
}

// newAgent builds an agent around res and makes it the target of
// Reconfigure.
func (w *Wifiship) newAgent(res *resources) *app.Agent {
	w.tmu.Lock()
	defer w.tmu.Unlock()

	gate := app.NewFixGate(res.source, nmea.NewDecoder(w.logger), w.clock, w.config.MinSatellites, w.logger)
	w.agent = app.NewAgent(app.AgentConfig{
		Tunables:          w.config.Tunables,
		MaxPendingRecords: w.config.MaxPendingRecords,
		Once:              w.config.Once,
	}, app.Deps{
		Gate:      gate,
		Scanner:   w.scanner,
		Link:      w.link,
		Deliverer: w.deliverer,
		Queue:     res.queue,
		Indicator: res.indicator,
		Clock:     w.clock,
		Logger:    w.logger,
		Emitter:   w.emitter,
	})
	return w.agent
}

// Start opens the GPS port, queue and LED, initializes plugins and runs the
// cycle loop in the background. The provided context bounds the lifetime of
// the loop; canceling it stops the instance the same way Stop does.
func (w *Wifiship) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.lifecycle.CanStart() {
		return ErrAlreadyRunning
	}
	if err := w.lifecycle.TransitionTo(app.StateStarting, "Start() called"); err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.lifecycle.SetCancel(cancel)

	res, err := w.open(runCtx)
	if err != nil {
		w.logger.Error("failed to open resources", ports.Err(err))
		cancel()
		_ = w.lifecycle.TransitionTo(app.StateCrashed, err.Error())
		return err
	}
	agent := w.newAgent(res)

	pluginCfg := w.pluginConfig()
	for i, p := range w.plugins {
		if err := initPlugin(runCtx, p, pluginCfg); err != nil {
			w.logger.Error("plugin initialization failed",
				ports.String("plugin", p.Name()),
				ports.Err(err))
			w.shutdownPlugins(w.plugins[:i])
			res.close(w.logger)
			cancel()
			_ = w.lifecycle.TransitionTo(app.StateCrashed, "plugin init failed: "+p.Name())
			return err
		}
		w.logger.Info("plugin initialized", ports.String("plugin", p.Name()))
	}

	w.lifecycle.AddWorker()
	go w.run(runCtx, agent, res)
	return nil
}

// run drives the cycle loop and persists what is left when it ends.
func (w *Wifiship) run(ctx context.Context, agent *app.Agent, res *resources) {
	defer w.lifecycle.WorkerDone()

	if err := w.lifecycle.TransitionTo(app.StateRunning, "agent starting"); err != nil {
		w.logger.Error("failed to transition to running", ports.Err(err))
		res.close(w.logger)
		return
	}

	err := agent.Run(ctx)
	w.persistPending(agent)
	res.close(w.logger)

	switch {
	case err == nil:
		w.selfStop("single cycle complete")
	case ctx.Err() != nil:
		// Stop() finishes the transition when it initiated the cancel.
		w.selfStop("context done: " + err.Error())
	default:
		w.logger.Error("agent error", ports.Err(err))
		w.shutdownPlugins(w.plugins)
		_ = w.lifecycle.TransitionTo(app.StateCrashed, err.Error())
	}
}

// selfStop moves a still-running instance to Stopped when the loop ended on
// its own. It is a no-op when Stop already owns the shutdown.
func (w *Wifiship) selfStop(reason string) {
	w.mu.Lock()
	if w.lifecycle.State() != app.StateRunning {
		w.mu.Unlock()
		return
	}
	_ = w.lifecycle.TransitionTo(app.StateStopping, reason)
	w.mu.Unlock()

	w.shutdownPlugins(w.plugins)
	_ = w.lifecycle.TransitionTo(app.StateStopped, reason)
}

// persistPending writes records still held in memory to the queue.
func (w *Wifiship) persistPending(agent *app.Agent) {
	ctx, cancel := context.WithTimeout(context.Background(), flushTimeout)
	defer cancel()
	if err := agent.Flush(ctx); err != nil {
		w.logger.Error("failed to persist pending records",
			ports.Int("pending", agent.Pending()),
			ports.Err(err))
	}
}

// Stop cancels the cycle loop, waits for the in-flight cycle, persists
// pending records and shuts plugins down. It waits up to ShutdownTimeout
// and returns ErrShutdownTimeout if the loop did not finish in time.
func (w *Wifiship) Stop() error {
	w.mu.Lock()
	if !w.lifecycle.CanStop() {
		w.mu.Unlock()
		return ErrNotRunning
	}
	if err := w.lifecycle.TransitionTo(app.StateStopping, "Stop() called"); err != nil {
		w.mu.Unlock()
		return err
	}
	if w.cancel != nil {
		w.cancel()
	}
	w.mu.Unlock()

	err := w.lifecycle.WaitWithTimeout(app.ShutdownTimeout)

	w.shutdownPlugins(w.plugins)

	if err != nil {
		_ = w.lifecycle.TransitionTo(app.StateCrashed, "shutdown timeout")
	} else {
		_ = w.lifecycle.TransitionTo(app.StateStopped, "graceful shutdown")
	}
	return err
}

// RunOnce runs a single cycle in the caller's goroutine, persists whatever
// the cycle left in memory and releases every resource. Plugins are not
// involved. It fails with ErrAlreadyRunning while the instance is started.
func (w *Wifiship) RunOnce(ctx context.Context) (CycleReport, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.lifecycle.CanStart() {
		return CycleReport{}, ErrAlreadyRunning
	}

	res, err := w.open(ctx)
	if err != nil {
		return CycleReport{}, err
	}
	defer res.close(w.logger)

	agent := w.newAgent(res)
	report := agent.RunCycle(ctx)
	res.indicator.Blink()
	if err := agent.Flush(ctx); err != nil {
		return report, err
	}
	return report, report.Err
}

// Status returns the current lifecycle state. Safe to call concurrently.
func (w *Wifiship) Status() State {
	return convertState(w.lifecycle.State())
}

// Done is closed when the instance reaches StateStopped or StateCrashed.
// A later Start replaces the channel.
func (w *Wifiship) Done() <-chan struct{} {
	return w.lifecycle.Done()
}

// Reconfigure replaces the cycle settings. A running agent picks them up at
// the start of its next cycle; otherwise they apply on the next Start.
func (w *Wifiship) Reconfigure(t Tunables) error {
	if err := ValidateTunables(t); err != nil {
		return err
	}
	w.tmu.Lock()
	defer w.tmu.Unlock()
	w.config.Tunables = t
	if w.agent != nil {
		w.agent.Reconfigure(t)
	}
	return nil
}

// Tunables returns the most recently configured cycle settings.
func (w *Wifiship) Tunables() Tunables {
	w.tmu.Lock()
	defer w.tmu.Unlock()
	return w.config.Tunables
}

// Pending returns the number of records held in memory by the current or
// last agent.
func (w *Wifiship) Pending() int {
	w.tmu.Lock()
	agent := w.agent
	w.tmu.Unlock()
	if agent == nil {
		return 0
	}
	return agent.Pending()
}

func (w *Wifiship) pluginConfig() PluginConfig {
	return PluginConfig{
		ConfigPath:  w.config.ConfigPath,
		Username:    w.config.Username,
		Feed:        w.config.Feed,
		Tunables:    w.Tunables(),
		Logger:      w.logger,
		Reconfigure: w.Reconfigure,
	}
}

// shutdownPlugins shuts plugins down in reverse order. Failures are logged
// and do not stop the rest.
func (w *Wifiship) shutdownPlugins(plugins []Plugin) {
	ctx := context.Background()
	for i := len(plugins) - 1; i >= 0; i-- {
		p := plugins[i]
		if err := shutdownPlugin(ctx, p); err != nil {
			w.logger.Error("plugin shutdown failed",
				ports.String("plugin", p.Name()),
				ports.Err(err))
		} else {
			w.logger.Info("plugin shutdown complete", ports.String("plugin", p.Name()))
		}
	}
}
