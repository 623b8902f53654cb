// Package testutil provides shared fixtures for leadsync integration tests.
//
// It starts clusters of nodes that share one embedded NATS server, each node
// serving its peer endpoints from its own httptest server so candidates can
// reconcile against each other over real HTTP.
//
// Note: For NATS server setup alone, use the github.com/arloliu/leadsync/testing package.
package testutil
