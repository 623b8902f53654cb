package testing

import (
	"testing"

	"github.com/arloliu/leadsync/internal/logging"
	"github.com/arloliu/leadsync/types"
)

// NewTestLogger creates a logger that writes key-value formatted lines to t.Log.
// This is useful for seeing log output during test runs.
func NewTestLogger(t *testing.T) types.Logger {
	return logging.NewTest(t)
}
