package logging

import (
	"bytes"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

func TestLogrusLogger_Fields(t *testing.T) {
	buf := &bytes.Buffer{}
	base := logrus.New()
	base.SetOutput(buf)
	base.SetLevel(logrus.DebugLevel)
	base.SetFormatter(&logrus.TextFormatter{DisableColors: true, DisableTimestamp: true})

	logger := NewLogrus(base)
	logger.Info("claimed leader pointer", "shard", "shard1", "dangling")
	logger.Debug("peer compared", "peer", "http://b/solr/core")

	output := buf.String()
	require.Contains(t, output, "claimed leader pointer")
	require.Contains(t, output, "shard=shard1")
	require.Contains(t, output, "dangling=\"<missing>\"")
	require.Contains(t, output, "level=debug")
}
