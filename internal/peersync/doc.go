// Package peersync reconciles replica update logs between peers.
//
// Coordinator runs the two leadership-time reconciliations:
//
//   - SyncSelf compares a freshly elected candidate against its live ACTIVE
//     peers before it may claim leadership
//   - PropagateSync asks every peer to reconcile against the new leader
//
// Both fan out one request per peer, each with its own timeout, and never
// surface per-peer failures as errors.
//
// HTTPClient and Handler are one concrete transport for the version exchange:
//
//	GET  {coreURL}/versions?n=N    newest N versions held by the core
//	GET  {coreURL}/updates?v=a,b   updates for the given versions
//	POST {coreURL}/sync            {"leader": "<coreURL>"}: reconcile against leader
package peersync
