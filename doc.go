// Package leadsync provides sync-gated shard leadership over NATS JetStream KV.
//
// Every replica of a shard joins a sequential election queue. The replica at
// the front of the queue becomes leader, but only after proving it is not
// missing updates that a live peer still holds: a replica that replaces a
// previous leader compares its recent update versions with every live ACTIVE
// peer, pulls what it lacks, and abdicates into recovery if some peer remains
// ahead. A separate singleton election picks the node that runs the overseer.
//
// # Quick Start
//
//	cfg := leadsync.DefaultConfig()
//	cfg.NodeName = "10.0.0.5:8983_solr"
//	cfg.BaseURL = "http://10.0.0.5:8983/solr"
//
//	node, err := leadsync.NewNode(&cfg, nc, leadsync.WithHooks(hooks))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := node.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer node.Stop(context.Background())
//
//	// Serve the peer endpoints under the base URL path.
//	router.Mount("/solr", node.PeerHandler())
//
//	if err := node.Register(ctx, "products", "shard1", "core_node3", core); err != nil {
//	    log.Fatal(err)
//	}
//
// # Transition
//
// Each election win drives a candidate through:
//
//	Candidate → [Syncing] → Leading | Recovering
//
// Syncing happens only when the candidate replaces a previous leader and has
// a local core. Leading means the leader pointer at leaders/{collection}/{shard}
// holds the candidate's metadata. Recovering means the candidate published
// DOWN, dropped its election token, asked its core to recover and re-enrolled
// at the back of the queue.
//
// # Leaderless Fallback
//
// If sync fails but no other replica of the shard is live and ACTIVE, the
// candidate takes leadership anyway: a shard with stale data is preferred over
// a shard with no leader.
//
// # Coordination Layout
//
// Ephemeral entries (election tokens, leader pointers, live nodes) live in a
// KV bucket whose TTL is Config.SessionTTL and are renewed by the node's
// session. Replica states and sequence counters live in a persistent bucket.
package leadsync
