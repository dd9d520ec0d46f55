package ports

import (
	"context"

	"github.com/bft-labs/wifiship/internal/domain"
)

// Queue is durable storage for batches awaiting delivery. Payloads are the
// raw batch text, without the wire envelope. All errors are
// *domain.StorageError.
type Queue interface {
	// Enqueue stores a payload and returns its identifier. Identifiers are
	// strictly increasing in enqueue order.
	Enqueue(ctx context.Context, payload string) (domain.EntryID, error)

	// List returns pending identifiers, oldest first.
	List(ctx context.Context) ([]domain.EntryID, error)

	// Read returns the payload of an entry. Missing entries yield an error
	// matching domain.ErrEntryNotFound.
	Read(ctx context.Context, id domain.EntryID) (string, error)

	// Replace overwrites the payload of an existing entry, keeping its
	// identifier and so its place in the order. Missing entries yield an
	// error matching domain.ErrEntryNotFound.
	Replace(ctx context.Context, id domain.EntryID, payload string) error

	// Delete removes an entry. Deleting a missing entry is a no-op.
	Delete(ctx context.Context, id domain.EntryID) error
}
