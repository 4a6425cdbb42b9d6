package store

import (
	"context"
	"encoding/json"
	"sync"
)

// MemStore keeps all documents in process memory. Used by tests and by the
// dev-mode server where no external store is configured.
type MemStore struct {
	mu    sync.RWMutex
	paths map[string]map[string]json.RawMessage
	subs  map[string]map[*memSub]struct{}
}

type memSub struct {
	out  chan Snapshot
	once sync.Once
}

func NewMemStore() *MemStore {
	return &MemStore{
		paths: make(map[string]map[string]json.RawMessage),
		subs:  make(map[string]map[*memSub]struct{}),
	}
}

func (ms *MemStore) Get(ctx context.Context, path, key string) (json.RawMessage, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	doc, ok := ms.paths[path][key]
	if !ok {
		return nil, ErrNoDocument
	}

	return append(json.RawMessage(nil), doc...), nil
}

func (ms *MemStore) Put(ctx context.Context, path, key string, doc json.RawMessage) error {
	ms.mu.Lock()
	if ms.paths[path] == nil {
		ms.paths[path] = make(map[string]json.RawMessage)
	}
	ms.paths[path][key] = append(json.RawMessage(nil), doc...)
	ms.mu.Unlock()

	ms.notify(path)
	return nil
}

func (ms *MemStore) Patch(ctx context.Context, path, key string, fields map[string]interface{}) error {
	ms.mu.Lock()
	doc, ok := ms.paths[path][key]
	if !ok {
		ms.mu.Unlock()
		return ErrNoDocument
	}

	merged, err := mergeFields(doc, fields)
	if err != nil {
		ms.mu.Unlock()
		return err
	}
	ms.paths[path][key] = merged
	ms.mu.Unlock()

	ms.notify(path)
	return nil
}

func (ms *MemStore) Delete(ctx context.Context, path, key string) error {
	ms.mu.Lock()
	_, existed := ms.paths[path][key]
	delete(ms.paths[path], key)
	ms.mu.Unlock()

	if existed {
		ms.notify(path)
	}
	return nil
}

func (ms *MemStore) List(ctx context.Context, path string) (Snapshot, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()
	return ms.snapshotLocked(path), nil
}

func (ms *MemStore) Watch(ctx context.Context, path string) (<-chan Snapshot, func(), error) {
	sub := &memSub{out: make(chan Snapshot, 1)}

	ms.mu.Lock()
	if ms.subs[path] == nil {
		ms.subs[path] = make(map[*memSub]struct{})
	}
	ms.subs[path][sub] = struct{}{}
	sub.out <- ms.snapshotLocked(path)
	ms.mu.Unlock()

	cancel := func() {
		// Taking the write lock here excludes in-flight notify sends, so
		// closing the channel is safe.
		ms.mu.Lock()
		delete(ms.subs[path], sub)
		sub.once.Do(func() { close(sub.out) })
		ms.mu.Unlock()
	}

	return sub.out, cancel, nil
}

func (ms *MemStore) notify(path string) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	snap := ms.snapshotLocked(path)
	for sub := range ms.subs[path] {
		offer(sub.out, snap)
	}
}

func (ms *MemStore) snapshotLocked(path string) Snapshot {
	snap := make(Snapshot, len(ms.paths[path]))
	for key, doc := range ms.paths[path] {
		snap[key] = append(json.RawMessage(nil), doc...)
	}

	return snap
}

// offer replaces the pending snapshot when the consumer is behind, so the
// consumer always wakes up to the most recent state.
func offer(out chan Snapshot, snap Snapshot) {
	for {
		select {
		case out <- snap:
			return
		default:
			select {
			case <-out:
			default:
			}
		}
	}
}
