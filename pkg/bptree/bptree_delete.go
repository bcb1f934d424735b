package bptree

import (
	"bytes"

	"go-kvtree/pkg/customerrors"
	"go-kvtree/pkg/pager"
	"go-kvtree/util/logger"

	"github.com/pkg/errors"
)

type mergeDir int

const (
	mergeNone mergeDir = iota
	mergeLeft
	mergeRight
)

// delete removes key and returns the new root. When key is absent o.noop is
// set and no page is touched.
func (o *op) delete(key []byte) (pager.PageID, error) {
	tree := o.tree
	if tree.meta.root.IsNil() {
		o.noop = true
		return pager.Nil, nil
	}

	old, err := o.fetch(tree.meta.root)
	if err != nil {
		return pager.Nil, err
	}

	n, found, err := o.deleteFrom(old, key)
	if err != nil {
		return pager.Nil, err
	} else if !found {
		o.noop = true
		return tree.meta.root, nil
	}
	o.free(tree.meta.root)
	o.delta--

	pieces := split3(n)
	if len(pieces) > 1 {
		return o.newRoot(pieces)
	}
	return o.collapse(pieces[0])
}

// collapse publishes n as the root, first dropping internal levels that have
// a single child.
func (o *op) collapse(n Node) (pager.PageID, error) {
	if n.Kind() == KindInternal && n.NKeys() == 0 {
		n = newNode(PageSize)
		n.SetHeader(KindLeaf, 1)
		n.AppendKV(0, pager.Nil, nil, nil)
	}

	id := pager.Nil // Nil while n is not written yet
	for n.Kind() == KindInternal && n.NKeys() == 1 {
		if !id.IsNil() {
			o.free(id)
		}

		var err error
		id = n.Ptr(0)
		if n, err = o.fetch(id); err != nil {
			return pager.Nil, err
		}
		logger.L.WithField("root", id).Debug("bptree root collapsed")
	}

	if id.IsNil() {
		return o.alloc(n)
	}
	return id, nil
}

// deleteFrom returns a copy of the subtree root n without key, and false if
// key is not in the subtree.
func (o *op) deleteFrom(n Node, key []byte) (Node, bool, error) {
	i := n.LookupLE(key)

	switch n.Kind() {
	case KindLeaf:
		if !bytes.Equal(key, n.Key(i)) {
			return nil, false, nil
		}
		updated := newNode(PageSize)
		leafDelete(updated, n, i)
		return updated, true, nil

	case KindInternal:
		return o.deleteChild(n, i, key)

	default:
		return nil, false, errors.Wrapf(customerrors.ErrCorruptNode, "unknown node kind %d", uint16(n.Kind()))
	}
}

// deleteChild deletes from child i of the internal node n, then merges the
// shrunk child with a sibling when it got small enough.
func (o *op) deleteChild(n Node, i uint16, key []byte) (Node, bool, error) {
	ptr := n.Ptr(i)
	child, err := o.fetch(ptr)
	if err != nil {
		return nil, false, err
	}

	updated, found, err := o.deleteFrom(child, key)
	if err != nil || !found {
		return nil, found, err
	}
	o.free(ptr)

	dir, sibling, err := o.shouldMerge(n, i, updated)
	if err != nil {
		return nil, false, err
	}

	nn := newNode(2 * PageSize)
	switch dir {
	case mergeLeft:
		merged := newNode(PageSize)
		merge(merged, sibling, updated)
		o.free(n.Ptr(i - 1))

		kids, err := o.allocKids([]Node{merged})
		if err != nil {
			return nil, false, err
		}
		replaceKids(nn, n, i-1, 2, kids...)

	case mergeRight:
		merged := newNode(PageSize)
		merge(merged, updated, sibling)
		o.free(n.Ptr(i + 1))

		kids, err := o.allocKids([]Node{merged})
		if err != nil {
			return nil, false, err
		}
		replaceKids(nn, n, i, 2, kids...)

	default:
		// an empty child without siblings is dropped; this leaves n empty
		// and the level above merges it away.
		pieces := []Node{}
		if updated.NKeys() > 0 {
			pieces = split3(updated)
		}

		kids, err := o.allocKids(pieces)
		if err != nil {
			return nil, false, err
		}
		replaceKids(nn, n, i, 1, kids...)
	}

	return nn, true, nil
}

// shouldMerge decides whether the updated child i of n is merged with its
// left or right sibling. Left is preferred when both fit a page.
func (o *op) shouldMerge(n Node, i uint16, updated Node) (mergeDir, Node, error) {
	if updated.Size() > PageSize/4 {
		return mergeNone, nil, nil
	}

	fits := func(sibling Node) bool {
		return sibling.Kind() == updated.Kind() &&
			sibling.Size()+updated.Size()-nodeHeaderSz <= PageSize
	}

	if i > 0 {
		sibling, err := o.fetch(n.Ptr(i - 1))
		if err != nil {
			return mergeNone, nil, err
		}
		if fits(sibling) {
			return mergeLeft, sibling, nil
		}
	}

	if i+1 < n.NKeys() {
		sibling, err := o.fetch(n.Ptr(i + 1))
		if err != nil {
			return mergeNone, nil, err
		}
		if fits(sibling) {
			return mergeRight, sibling, nil
		}
	}

	return mergeNone, nil, nil
}
