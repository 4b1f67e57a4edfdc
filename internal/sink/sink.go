// Package sink provides the durable object stores drivesync mirrors its
// artifacts into. Every implementation overwrites on conflict; no versioning
// is kept.
package sink

import (
	"context"
	"strings"
)

// Sink stores bytes under a key.
type Sink interface {
	Put(ctx context.Context, key string, body []byte, contentType string) error
}

// JoinKey joins a folder-style prefix and a name with exactly one slash.
// An empty prefix yields the bare name.
func JoinKey(prefix, name string) string {
	prefix = strings.TrimRight(prefix, "/")
	if prefix == "" {
		return name
	}
	return prefix + "/" + strings.TrimLeft(name, "/")
}
