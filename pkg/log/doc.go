// Package log provides the structured logging abstraction used across
// wifiship.
//
// Components receive a [Logger] by injection and never reach for a global.
// The zerolog adapter is what the CLI wires; embedders can supply their own
// implementation, and tests usually pass [NewNoopLogger].
//
//	logger := log.NewZerologAdapter(os.Stderr, "info")
//	logger.Info("batch delivered", log.Int("records", 42), log.Bytes("payload", 871))
package log
