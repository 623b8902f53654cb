// Package kvutil provides utilities for working with NATS JetStream KeyValue stores.
package kvutil

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/nats-io/nats.go/jetstream"
)

// DefaultMaxRetries bounds EnsureBucket attempts when the caller passes zero.
const DefaultMaxRetries = 5

// EnsureBucket creates or opens a KV bucket with retry logic.
//
// Several nodes usually start at once and race to create the same buckets.
// A create that loses the race falls back to opening the existing bucket, and
// transient failures are retried with exponential backoff.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//   - js: JetStream context
//   - cfg: KV bucket configuration
//   - maxRetries: Maximum number of retries (DefaultMaxRetries if <= 0)
//
// Returns:
//   - jetstream.KeyValue: The KV bucket instance
//   - error: Last error after all retries, or the context error
//
// Example:
//
//	kv, err := kvutil.EnsureBucket(ctx, js, jetstream.KeyValueConfig{
//	    Bucket: "leadsync-ephemeral",
//	    TTL:    10 * time.Second,
//	}, 0)
func EnsureBucket(
	ctx context.Context,
	js jetstream.JetStream,
	cfg jetstream.KeyValueConfig,
	maxRetries int,
) (jetstream.KeyValue, error) {
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}

	var kv jetstream.KeyValue
	op := func() error {
		created, err := js.CreateKeyValue(ctx, cfg)
		if err == nil {
			kv = created
			return nil
		}

		if errors.Is(err, jetstream.ErrBucketExists) {
			opened, openErr := js.KeyValue(ctx, cfg.Bucket)
			if openErr == nil {
				kv = opened
				return nil
			}

			return fmt.Errorf("bucket exists but failed to open: %w", openErr)
		}

		if ctx.Err() != nil {
			return backoff.Permanent(ctx.Err())
		}

		return err
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 10 * time.Millisecond
	b.MaxInterval = 500 * time.Millisecond

	if err := backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(b, uint64(maxRetries)), ctx)); err != nil { //nolint:gosec // maxRetries is positive
		return nil, fmt.Errorf("failed to create/open KV bucket %s: %w", cfg.Bucket, err)
	}

	return kv, nil
}
