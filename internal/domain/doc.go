// Package domain contains the core entities and value objects for wifiship.
//
// This package is the innermost layer of the agent. It has no dependencies on
// infrastructure concerns (HTTP, serial ports, file system, logging) and holds
// only the rules that decide what a record, a batch and a delivery outcome are.
//
// # Entities
//
//   - [Observation]: one wireless network seen by a scan
//   - [LocationFix]: one position reading with its trust signal
//   - [Record]: the canonical text line built from an observation and a fix
//   - [Batch]: an ordered group of records awaiting delivery
//   - [EntryID]: the identifier of a batch held in the offline queue
//   - [Outcome]: the classified result of one delivery attempt
//
// The serialized size of a batch is defined by [Envelope]; every component
// that reasons about the wire budget measures through it.
package domain
