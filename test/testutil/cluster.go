package testutil

import (
	"context"
	"fmt"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/require"

	"github.com/arloliu/leadsync"
	"github.com/arloliu/leadsync/internal/replica"
	leadtest "github.com/arloliu/leadsync/testing"
)

// IntegrationTestConfig provides fast timings for integration tests.
func IntegrationTestConfig() leadsync.Config {
	cfg := leadsync.TestConfig()
	cfg.Sync.PeerTimeout = time.Second
	leadsync.SetDefaults(&cfg)

	return cfg
}

// ClusterNode is one node of a NodeCluster.
type ClusterNode struct {
	Name   string
	Node   *leadsync.Node
	Server *httptest.Server
}

// NodeCluster manages nodes sharing one NATS server.
type NodeCluster struct {
	Nodes []*ClusterNode
	NC    *nats.Conn
	T     *testing.T
}

// NewNodeCluster starts an embedded NATS server and returns an empty cluster.
//
// Nodes added with AddNode are stopped on test cleanup.
func NewNodeCluster(t *testing.T) *NodeCluster {
	t.Helper()

	_, nc := leadtest.StartEmbeddedNATS(t)

	return &NodeCluster{NC: nc, T: t}
}

// AddNode creates, serves and starts a node.
//
// The node's BaseURL points at its own httptest server with the peer handler
// mounted at /solr.
func (c *NodeCluster) AddNode(ctx context.Context, opts ...leadsync.Option) *ClusterNode {
	c.T.Helper()

	name := fmt.Sprintf("node-%d", len(c.Nodes))

	// The listener exists before Start, so the URL is known before the node is built.
	srv := httptest.NewUnstartedServer(nil)

	cfg := IntegrationTestConfig()
	cfg.NodeName = name
	cfg.BaseURL = "http://" + srv.Listener.Addr().String() + "/solr"

	node, err := leadsync.NewNode(&cfg, c.NC, opts...)
	require.NoError(c.T, err)

	router := chi.NewRouter()
	router.Mount("/solr", node.PeerHandler())
	srv.Config.Handler = router
	srv.Start()

	require.NoError(c.T, node.Start(ctx))

	cn := &ClusterNode{Name: name, Node: node, Server: srv}
	c.Nodes = append(c.Nodes, cn)

	c.T.Cleanup(func() {
		_ = node.Stop(context.Background())
		srv.Close()
	})

	return cn
}

// SeedCore returns an in-memory core holding updates with versions 1..n.
func SeedCore(name string, n int) *replica.MemoryCore {
	core := replica.NewMemory(name)
	updates := make([]leadsync.Update, 0, n)
	for i := 1; i <= n; i++ {
		updates = append(updates, leadsync.Update{Version: int64(i), ID: fmt.Sprintf("doc-%d", i)})
	}
	// Versions 1..n are always valid.
	_ = core.Apply(updates)

	return core
}
