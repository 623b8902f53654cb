package types

import "context"

// Overseer is the cluster-wide coordinator role run by the singleton leader.
//
// It is constructed when this process wins the overseer election and is owned
// by the process supervisor, which closes it on shutdown.
type Overseer interface {
	// Start begins the overseer's background work.
	Start(ctx context.Context) error

	// Close stops the overseer. Close is idempotent.
	Close() error
}

// OverseerFactory constructs a new, not yet started Overseer.
type OverseerFactory func() (Overseer, error)
