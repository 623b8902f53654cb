// Package natsutil classifies NATS client errors for the coordination layer.
package natsutil

import (
	"errors"
	"fmt"
	"strings"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/arloliu/leadsync/types"
)

// IsConnectivityError checks if an error is caused by connectivity issues.
//
// This includes NATS timeouts, connection refused, disconnections, etc.
// Kept in internal/natsutil to avoid importing NATS dependencies in types/ package.
//
// Parameters:
//   - err: Error to check
//
// Returns:
//   - bool: true if error indicates connectivity issue
func IsConnectivityError(err error) bool {
	if err == nil {
		return false
	}

	return errors.Is(err, types.ErrCoordinationUnavailable) ||
		errors.Is(err, nats.ErrTimeout) ||
		errors.Is(err, nats.ErrNoServers) ||
		errors.Is(err, nats.ErrDisconnected) ||
		errors.Is(err, nats.ErrConnectionClosed) ||
		errors.Is(err, nats.ErrNoResponders) ||
		errors.Is(err, jetstream.ErrNoStreamResponse) ||
		errors.Is(err, jetstream.ErrJetStreamNotEnabled) ||
		strings.Contains(err.Error(), "connection refused") ||
		strings.Contains(err.Error(), "i/o timeout")
}

// Classify maps a raw NATS error onto the coordination error vocabulary.
//
// Missing keys become types.ErrNoNode, create conflicts become types.ErrNodeExists
// and connectivity failures are wrapped with types.ErrCoordinationUnavailable.
// Any other error is wrapped with op for context.
//
// Parameters:
//   - op: Operation name used as the error prefix (e.g. "create")
//   - path: Logical path the operation targeted
//   - err: Error returned by the NATS client
//
// Returns:
//   - error: nil when err is nil, otherwise a classified error
func Classify(op, path string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, jetstream.ErrKeyNotFound), errors.Is(err, jetstream.ErrKeyDeleted):
		return fmt.Errorf("%s %s: %w", op, path, types.ErrNoNode)
	case errors.Is(err, jetstream.ErrKeyExists):
		return fmt.Errorf("%s %s: %w", op, path, types.ErrNodeExists)
	case IsConnectivityError(err):
		return fmt.Errorf("%s %s: %w: %w", op, path, types.ErrCoordinationUnavailable, err)
	default:
		return fmt.Errorf("%s %s: %w", op, path, err)
	}
}
