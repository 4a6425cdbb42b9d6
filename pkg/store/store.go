package store

import (
	"context"
	"encoding/json"
	"errors"
)

// ErrNoDocument is returned by Get and Patch when the addressed document
// does not exist. Delete is idempotent and never returns it.
var ErrNoDocument = errors.New("document not found")

// Snapshot is the full content of one path: document key -> raw JSON document.
type Snapshot map[string]json.RawMessage

// Store is a tree of JSON documents grouped under flat paths
// (e.g. "all-posts", "my-posts/<userID>") with push-based change
// notification per path.
type Store interface {
	Get(ctx context.Context, path, key string) (json.RawMessage, error)
	Put(ctx context.Context, path, key string, doc json.RawMessage) error
	// Patch merges the given top-level fields into an existing document.
	Patch(ctx context.Context, path, key string, fields map[string]interface{}) error
	Delete(ctx context.Context, path, key string) error
	List(ctx context.Context, path string) (Snapshot, error)

	// Watch emits the current snapshot of the path immediately and a fresh
	// full snapshot after every change to it. Delivery is at-least-once and
	// last-snapshot-wins: a slow consumer sees only the most recent state.
	// The returned cancel func stops notifications and closes the channel.
	Watch(ctx context.Context, path string) (<-chan Snapshot, func(), error)
}

func mergeFields(doc json.RawMessage, fields map[string]interface{}) (json.RawMessage, error) {
	merged := map[string]json.RawMessage{}
	if err := json.Unmarshal(doc, &merged); err != nil {
		return nil, err
	}

	for name, value := range fields {
		raw, err := json.Marshal(value)
		if err != nil {
			return nil, err
		}
		merged[name] = raw
	}

	return json.Marshal(merged)
}
