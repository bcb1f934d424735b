package bptree

import (
	"bytes"

	"go-kvtree/pkg/customerrors"
	"go-kvtree/pkg/pager"

	"github.com/pkg/errors"
)

// insert writes the path from the root to the leaf holding key and returns
// the new root.
func (o *op) insert(key, val []byte) (pager.PageID, error) {
	tree := o.tree
	if tree.meta.root.IsNil() {
		root := newNode(PageSize)
		root.SetHeader(KindLeaf, 2)
		root.AppendKV(0, pager.Nil, nil, nil)
		root.AppendKV(1, pager.Nil, key, val)
		o.delta++
		return o.alloc(root)
	}

	old, err := o.fetch(tree.meta.root)
	if err != nil {
		return pager.Nil, err
	}

	n, err := o.insertInto(old, key, val)
	if err != nil {
		return pager.Nil, err
	}
	o.free(tree.meta.root)

	pieces := split3(n)
	if len(pieces) > 1 {
		return o.newRoot(pieces)
	}
	return o.alloc(pieces[0])
}

// insertInto returns a copy of the subtree root n with (key, val) inserted.
// The result may be larger than a page; the caller splits it.
func (o *op) insertInto(n Node, key, val []byte) (Node, error) {
	i := n.LookupLE(key)

	switch n.Kind() {
	case KindLeaf:
		updated := newNode(2 * PageSize)
		if bytes.Equal(key, n.Key(i)) {
			leafUpdate(updated, n, i, key, val)
		} else {
			leafInsert(updated, n, i+1, key, val)
			o.delta++
		}
		return updated, nil

	case KindInternal:
		return o.insertChild(n, i, key, val)

	default:
		return nil, errors.Wrapf(customerrors.ErrCorruptNode, "unknown node kind %d", uint16(n.Kind()))
	}
}

// insertChild inserts into child i of the internal node n and replaces that
// child slot with the 1 to 3 nodes the updated child splits into.
func (o *op) insertChild(n Node, i uint16, key, val []byte) (Node, error) {
	ptr := n.Ptr(i)
	child, err := o.fetch(ptr)
	if err != nil {
		return nil, err
	}

	updated, err := o.insertInto(child, key, val)
	if err != nil {
		return nil, err
	}
	o.free(ptr)

	kids, err := o.allocKids(split3(updated))
	if err != nil {
		return nil, err
	}

	nn := newNode(2 * PageSize)
	replaceKids(nn, n, i, 1, kids...)
	return nn, nil
}
