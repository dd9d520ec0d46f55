// Package wifiship provides an embeddable wardriving agent: it pairs wireless
// scan results with GPS fixes and forwards them to a telemetry feed, keeping
// anything it cannot deliver in a durable offline queue.
//
// It can be used as the standalone wifiship CLI or embedded as a library.
//
// # Basic Usage
//
//	cfg := wifiship.DefaultConfig()
//	cfg.Username = "alice"
//	cfg.AuthKey = "aio_..."
//
//	agent, err := wifiship.New(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := agent.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
//	// ... run until shutdown signal ...
//
//	if err := agent.Stop(); err != nil {
//	    log.Printf("shutdown error: %v", err)
//	}
//
// Stop persists every record still held in memory before returning.
//
// # Configuration
//
// Start from [DefaultConfig]. [Config.SetDefaults] only fills settings whose
// zero value is never meaningful; FlushThreshold, MaxPayloadBytes and
// DrainLimit treat zero as "disabled" and are left alone.
//
// The cycle settings in [Tunables] can change while the agent runs; see
// [Wifiship.Reconfigure]. New values apply from the next cycle.
//
// # Event Handling
//
// Implement [EventHandler] (embedding [BaseEventHandler]) and pass it via
// [WithEventHandler]. Events are called synchronously from the cycle
// goroutine and should return quickly.
//
// # Dependency Injection
//
// Every piece of hardware can be replaced:
//
//	agent, err := wifiship.New(cfg,
//	    wifiship.WithScanner(myScanner),
//	    wifiship.WithFixSource(nmeaReplay),
//	    wifiship.WithLink(alwaysUp),
//	    wifiship.WithQueue(memQueue),
//	)
//
// Without overrides the agent scans with iw, reads NMEA from a serial port,
// checks the link with the kernel interface table and queues to a directory
// or SQLite file.
//
// # Lifecycle States
//
// An instance is in one of [StateStopped], [StateStarting], [StateRunning],
// [StateStopping] or [StateCrashed]. Use [Wifiship.Status] to query it and
// [Wifiship.Done] to wait for a terminal state.
//
// # Plugins
//
//	import "github.com/bft-labs/wifiship/plugins/configwatcher"
//
//	agent, err := wifiship.New(cfg,
//	    configwatcher.WithConfigWatcher(configwatcher.DefaultConfig()),
//	)
package wifiship
