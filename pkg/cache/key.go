package cache

import (
	"net/url"
	"strconv"
	"strings"
)

// KeyPrefix namespaces every prediction key, which matters when the Redis
// backend shares a database with other tenants.
const KeyPrefix = "prediction"

// Key identifies a cached prediction by match and view.
type Key struct {
	// MatchID is the upstream match identifier
	MatchID string

	// Detail selects the privileged detailed view
	Detail bool
}

// String generates a deterministic cache key string.
// Format: prediction:<escaped match id>:detail=<bool>
//
// Example:
//
//	prediction:m1:detail=false
//
// The match id is query-escaped so a ':' inside it cannot collide with
// another key's separator.
func (k Key) String() string {
	parts := []string{
		KeyPrefix,
		url.QueryEscape(k.MatchID),
		"detail=" + strconv.FormatBool(k.Detail),
	}
	return strings.Join(parts, ":")
}
