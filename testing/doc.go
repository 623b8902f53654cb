// Package testing provides test utilities for the leadsync library.
//
// This package offers helpers for setting up test environments, particularly
// embedded NATS servers for integration testing. It follows Go's convention
// of providing testing utilities in a dedicated package (similar to net/http/httptest).
//
// Key utilities:
//   - StartEmbeddedNATS: Single NATS server with JetStream
//   - CreateJetStreamKV: In-memory KV bucket with a bucket-level TTL
//   - CreatePersistentKV: In-memory KV bucket without TTL
//   - NewTestLogger: types.Logger writing to t.Log
//
// Example usage:
//
//	import (
//	    "testing"
//	    leadtest "github.com/arloliu/leadsync/testing"
//	)
//
//	func TestMyComponent(t *testing.T) {
//	    _, nc := leadtest.StartEmbeddedNATS(t)
//	    // Use nc for your tests
//	}
package testing
