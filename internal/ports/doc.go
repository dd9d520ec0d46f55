// Package ports defines the interfaces that connect the engine in
// internal/app to infrastructure adapters.
//
// # Port Interfaces
//
//   - [Scanner]: lists the wireless networks currently visible
//   - [FixDecoder]: incremental NMEA decoder fed with raw bytes
//   - [Link]: reports whether the uplink interface can carry traffic
//   - [Deliverer]: performs one upload attempt and classifies the outcome
//   - [Queue]: durable FIFO store of batches that were not delivered
//   - [Indicator]: status LED or similar output
//   - [Logger]: structured logging abstraction
//   - [HTTPClient]: HTTP request abstraction for dependency injection
//
// The application layer depends only on these interfaces; adapters in
// internal/adapters provide the serial, netlink, HTTP, MQTT, directory and
// SQLite implementations.
package ports
