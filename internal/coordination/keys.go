package coordination

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// ErrInvalidPath is returned for logical paths that cannot be mapped to a KV key.
var ErrInvalidPath = errors.New("invalid coordination path")

// seqSuffix separates a sequential node's prefix from its zero-padded sequence.
const seqSuffix = "-n_"

// seqCounterRoot is the key token under which sequence counters live.
const seqCounterRoot = "seq"

var segmentPattern = regexp.MustCompile(`^[-_=a-zA-Z0-9]+$`)

// Key maps a logical slash-separated path to a NATS KV key.
//
// Each segment becomes one dot-separated key token, so segments must be
// non-empty and restricted to [-_=a-zA-Z0-9].
//
// Parameters:
//   - path: Logical path such as "leaders/c1/shard1"
//
// Returns:
//   - string: KV key such as "leaders.c1.shard1"
//   - error: ErrInvalidPath when a segment is empty or uses a reserved character
func Key(path string) (string, error) {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return "", fmt.Errorf("%w: empty path", ErrInvalidPath)
	}

	segments := strings.Split(trimmed, "/")
	for _, seg := range segments {
		if !segmentPattern.MatchString(seg) {
			return "", fmt.Errorf("%w: bad segment %q in %q", ErrInvalidPath, seg, path)
		}
	}

	return strings.Join(segments, "."), nil
}

// Path maps a KV key back to its logical path.
func Path(key string) string {
	return strings.ReplaceAll(key, ".", "/")
}

// SequenceOf extracts the sequence number from a sequential node name.
//
// Parameters:
//   - name: Node name or path ending in "-n_0000000042"
//
// Returns:
//   - int64: Parsed sequence
//   - bool: false when the name carries no sequence suffix
func SequenceOf(name string) (int64, bool) {
	idx := strings.LastIndex(name, seqSuffix)
	if idx < 0 {
		return 0, false
	}

	n, err := strconv.ParseInt(name[idx+len(seqSuffix):], 10, 64)
	if err != nil {
		return 0, false
	}

	return n, true
}

func sequentialName(prefix string, seq int64) string {
	return fmt.Sprintf("%s%s%010d", prefix, seqSuffix, seq)
}

func counterKey(parentKey string) string {
	return seqCounterRoot + "." + parentKey
}

func parentPath(path string) string {
	trimmed := strings.Trim(path, "/")
	idx := strings.LastIndex(trimmed, "/")
	if idx < 0 {
		return ""
	}

	return trimmed[:idx]
}
