package bptree

import "sync"

// SyncTree guards a BPlusTree with a read-write lock. Lookups run in
// parallel, edits are serialized.
type SyncTree struct {
	mu   sync.RWMutex
	tree *BPlusTree
}

func NewSyncTree(tree *BPlusTree) *SyncTree {
	return &SyncTree{tree: tree}
}

func (t *SyncTree) Insert(key, val []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.tree.Insert(key, val)
}

func (t *SyncTree) Delete(key []byte) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.tree.Delete(key)
}

// Get returns a copy of the value stored under key.
func (t *SyncTree) Get(key []byte) ([]byte, bool, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.tree.Get(key)
}

func (t *SyncTree) Size() int64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.tree.Size()
}

func (t *SyncTree) Verify() error {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.tree.Verify()
}

// Tree returns the wrapped tree. Callers must not use it concurrently with
// t.
func (t *SyncTree) Tree() *BPlusTree { return t.tree }

func (t *SyncTree) Reset() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.tree.Reset()
}

// Scan holds the read lock for the whole iteration; fn must not call back
// into t for writing.
func (t *SyncTree) Scan(fn func(key, val []byte) bool) error {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.tree.Scan(fn)
}

func (t *SyncTree) Stats() (Stats, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.tree.Stats()
}

func (t *SyncTree) Dump() (string, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.tree.Dump()
}

func (t *SyncTree) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.tree.Close()
}
