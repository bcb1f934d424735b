// Package bptree implements a copy-on-write B+ tree whose nodes are encoded
// into fixed-size pages of a pager.Store. Keys and values are byte strings;
// every edit writes new pages and frees the ones it supersedes.
package bptree

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"go-kvtree/pkg/cache"
	"go-kvtree/pkg/customerrors"
	"go-kvtree/pkg/pager"
	"go-kvtree/util/helpers"
	"go-kvtree/util/logger"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// bin is the byte order used for all marshals/unmarshals.
var bin = binary.NativeEndian

// Open returns a tree stored in store. If the store keeps metadata from an
// earlier session the tree is reopened at its last root, otherwise an empty
// tree is created. If nil options are provided, defaultOptions will be used.
func Open(store pager.Store, opts *Options) (*BPlusTree, error) {
	if opts == nil {
		opts = &defaultOptions
	}

	if opts.CacheSize > 0 {
		store = cache.New(store, opts.CacheSize)
	}

	tree := &BPlusTree{
		store: store,
		opts:  *opts,
	}

	if err := tree.open(); err != nil {
		return nil, err
	}
	return tree, nil
}

// BPlusTree is a copy-on-write B+ tree. It is not safe for concurrent use;
// see SyncTree.
type BPlusTree struct {
	store pager.Store
	opts  Options
	meta  *metadata
}

// Insert puts the key-value pair into the tree. If the key already exists,
// its value is replaced.
func (tree *BPlusTree) Insert(key, val []byte) error {
	if err := checkKey(key); err != nil {
		return err
	} else if len(val) > MaxValueSize {
		return errors.Wrapf(customerrors.ErrValueTooLarge, "%d bytes", len(val))
	}

	return tree.update(func(o *op) (pager.PageID, error) {
		return o.insert(key, val)
	})
}

// Delete removes key from the tree and reports whether it was removed.
// Deleting an absent key leaves every page untouched. If the new root was
// published but releasing the old pages failed, the key is gone and Delete
// returns true together with the error.
func (tree *BPlusTree) Delete(key []byte) (bool, error) {
	if err := checkKey(key); err != nil {
		return false, err
	}

	var last *op
	err := tree.update(func(o *op) (pager.PageID, error) {
		last = o
		return o.delete(key)
	})
	if last == nil || last.noop {
		return false, err
	}
	return err == nil || last.committed, err
}

// Search descends from the root to the leaf that would hold key. It returns
// that leaf, the index of the greatest entry <= key, and whether the entry
// matches key exactly. An empty tree yields a nil leaf.
func (tree *BPlusTree) Search(key []byte) (found bool, leaf Node, index uint16, err error) {
	if err := checkKey(key); err != nil {
		return false, nil, 0, err
	}

	defer guard(&err)
	if tree.meta.root.IsNil() {
		return false, nil, 0, nil
	}

	o := &op{tree: tree}
	n, err := o.fetch(tree.meta.root)
	if err != nil {
		return false, nil, 0, err
	}

	for n.Kind() == KindInternal {
		if n, err = o.fetch(n.Ptr(n.LookupLE(key))); err != nil {
			return false, nil, 0, err
		}
	}

	index = n.LookupLE(key)
	return bytes.Equal(n.Key(index), key), n, index, nil
}

// Get fetches the value associated with the given key.
func (tree *BPlusTree) Get(key []byte) ([]byte, bool, error) {
	found, leaf, index, err := tree.Search(key)
	if err != nil || !found {
		return nil, false, err
	}
	return helpers.CloneBytes(leaf.Value(index)), true, nil
}

// Reset frees every page of the tree and leaves it empty.
func (tree *BPlusTree) Reset() error {
	return tree.update(func(o *op) (pager.PageID, error) {
		err := tree.walk(tree.meta.root, func(f frame, _ Node) error {
			o.free(f.id)
			return nil
		})
		o.delta = -int64(tree.meta.size)
		return pager.Nil, err
	})
}

// Root returns the current root page, pager.Nil for an empty tree.
func (tree *BPlusTree) Root() pager.PageID { return tree.meta.root }

// Size returns the number of keys in the tree.
func (tree *BPlusTree) Size() int64 { return int64(tree.meta.size) }

// Store returns the store the tree reads and writes, including the cache
// layer if one was configured.
func (tree *BPlusTree) Store() pager.Store { return tree.store }

// Close writes pending metadata and closes the underlying store.
func (tree *BPlusTree) Close() error {
	if tree.store == nil {
		return nil
	}

	err := tree.writeMeta()
	if cerr := tree.store.Close(); err == nil {
		err = cerr
	}
	tree.store = nil
	return err
}

func (tree *BPlusTree) String() string {
	return fmt.Sprintf("BPlusTree{root=%v, size=%d}", tree.meta.root, tree.meta.size)
}

// update runs fn as one copy-on-write operation. The root returned by fn is
// published only if fn and every page write succeed; otherwise the pages
// fn allocated are released and the tree is left as it was.
func (tree *BPlusTree) update(fn func(o *op) (pager.PageID, error)) (err error) {
	o := &op{tree: tree}
	defer func() {
		if err != nil {
			o.rollback()
		}
	}()
	defer guard(&err)

	root, err := fn(o)
	if err != nil {
		return err
	}
	if o.noop {
		o.rollback()
		return nil
	}
	return o.commit(root)
}

// open loads the metadata from the store, or initializes a new tree when
// the store has none.
func (tree *BPlusTree) open() error {
	ms, ok := tree.store.(pager.MetaStore)
	if !ok {
		tree.meta = newMetadata()
		return nil
	}

	d, err := ms.ReadMeta()
	if errors.Is(err, customerrors.ErrNotFound) {
		tree.meta = newMetadata()
		return tree.writeMeta()
	} else if err != nil {
		return errors.Wrap(err, "failed to read meta while opening bptree")
	}

	tree.meta = &metadata{}
	if err := tree.meta.UnmarshalBinary(d); err != nil {
		return errors.Wrap(err, "failed to unmarshal meta")
	}
	if err := tree.meta.verify(); err != nil {
		return err
	}

	logger.L.WithFields(logrus.Fields{
		"root": tree.meta.root,
		"size": tree.meta.size,
	}).Debug("bptree reopened")
	return nil
}

func (tree *BPlusTree) writeMeta() error {
	if !tree.meta.dirty {
		return nil
	}

	ms, ok := tree.store.(pager.MetaStore)
	if !ok {
		tree.meta.dirty = false
		return nil
	}

	d, err := tree.meta.MarshalBinary()
	if err != nil {
		return errors.Wrap(err, "failed to marshal meta")
	}
	if err := ms.WriteMeta(d); err != nil {
		return errors.Wrap(err, "failed to write meta")
	}

	tree.meta.dirty = false
	return nil
}

func checkKey(key []byte) error {
	if len(key) == 0 {
		return customerrors.ErrEmptyKey
	} else if len(key) > MaxKeySize {
		return errors.Wrapf(customerrors.ErrKeyTooLarge, "%d bytes", len(key))
	}
	return nil
}

// guard turns the invariant panics raised by node accessors into errors.
// Anything else keeps panicking.
func guard(err *error) {
	r := recover()
	if r == nil {
		return
	}

	e, ok := r.(error)
	if !ok || !(errors.Is(e, customerrors.ErrIndexOutOfRange) || errors.Is(e, customerrors.ErrCorruptNode)) {
		panic(r)
	}

	logger.L.WithError(e).Error("bptree operation aborted")
	*err = e
}

func printable(b []byte) string {
	return helpers.Printable(b, 16)
}
