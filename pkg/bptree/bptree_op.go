package bptree

import (
	"go-kvtree/pkg/customerrors"
	"go-kvtree/pkg/pager"
	"go-kvtree/util/logger"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// op collects the page changes of a single tree operation. Pages written by
// the operation are remembered so they can be released if it fails; pages
// it supersedes are freed only once the new root has been published.
type op struct {
	tree *BPlusTree

	allocated []pager.PageID
	garbage   []pager.PageID
	delta     int64 // change of the key count
	noop      bool  // nothing changed, nothing to publish
	committed bool
}

// fetch reads and decodes the page id.
func (o *op) fetch(id pager.PageID) (Node, error) {
	d, err := o.tree.store.Get(id)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to fetch %v", id)
	}

	n := Node(d)
	if err := n.validate(); err != nil {
		logger.L.WithFields(logrus.Fields{
			"page":  id,
			"error": err,
		}).Error("corrupt page")
		return nil, errors.Wrapf(err, "page %v", id)
	}
	return n, nil
}

// alloc writes n as a new page.
func (o *op) alloc(n Node) (pager.PageID, error) {
	p := n.page()
	if o.tree.opts.VerifyWrites {
		if err := p.checkOrder(); err != nil {
			return pager.Nil, errors.Wrap(customerrors.ErrCorruptNode, err.Error())
		}
	}

	id, err := o.tree.store.Alloc(p)
	if err != nil {
		return pager.Nil, errors.Wrap(err, "failed to alloc page")
	}

	o.allocated = append(o.allocated, id)
	return id, nil
}

// allocKids writes every non-empty node of nodes and returns the child
// slots pointing at them.
func (o *op) allocKids(nodes []Node) ([]kid, error) {
	kids := make([]kid, 0, len(nodes))
	for _, n := range nodes {
		if n.NKeys() == 0 {
			continue
		}

		id, err := o.alloc(n)
		if err != nil {
			return nil, err
		}
		kids = append(kids, kid{ptr: id, key: n.Key(0)})
	}
	return kids, nil
}

// free schedules id to be released on commit.
func (o *op) free(id pager.PageID) {
	o.garbage = append(o.garbage, id)
}

// newRoot writes pieces as the children of a fresh internal root.
func (o *op) newRoot(pieces []Node) (pager.PageID, error) {
	kids, err := o.allocKids(pieces)
	if err != nil {
		return pager.Nil, err
	}

	root := newNode(PageSize)
	replaceKids(root, emptyInternal, 0, 0, kids...)

	logger.L.WithFields(logrus.Fields{
		"children": len(kids),
	}).Debug("bptree root split")
	return o.alloc(root)
}

// commit publishes root and releases the superseded pages.
func (o *op) commit(root pager.PageID) error {
	tree := o.tree
	tree.meta.root = root
	tree.meta.size = uint64(int64(tree.meta.size) + o.delta)
	tree.meta.dirty = true
	o.committed = true

	for _, id := range o.garbage {
		if err := tree.store.Free(id); err != nil {
			logger.L.WithError(err).WithField("page", id).Error("failed to free superseded page")
			return errors.Wrapf(err, "failed to free %v", id)
		}
	}

	return tree.writeMeta()
}

// rollback releases the pages written by a failed operation.
func (o *op) rollback() {
	if o.committed {
		return
	}

	for _, id := range o.allocated {
		if err := o.tree.store.Free(id); err != nil {
			logger.L.WithError(err).WithField("page", id).Warn("failed to release page on rollback")
		}
	}
	o.allocated = nil
	o.garbage = nil
}

// emptyInternal is the zero-entry internal node new roots are built from.
var emptyInternal = func() Node {
	n := newNode(nodeHeaderSz)
	n.SetHeader(KindInternal, 0)
	return n
}()
