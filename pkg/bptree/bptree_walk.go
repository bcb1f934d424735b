package bptree

import (
	"bytes"
	"fmt"

	"go-kvtree/pkg/pager"
	"go-kvtree/pkg/stack"
	"go-kvtree/util/helpers"

	"github.com/pkg/errors"
	"github.com/xlab/treeprint"
)

// frame is a page reached by a walk together with the key range its parent
// routes to it. upper is nil for the rightmost path.
type frame struct {
	id       pager.PageID
	depth    int
	leftmost bool
	lower    []byte
	upper    []byte
}

// walk visits every page reachable from root, parents before children and
// children from left to right. A nil root visits nothing.
func (tree *BPlusTree) walk(root pager.PageID, fn func(f frame, n Node) error) (err error) {
	defer guard(&err)
	if root.IsNil() {
		return nil
	}

	o := &op{tree: tree}
	s := stack.New[frame](16)
	s.Push(frame{id: root, leftmost: true})

	for !s.Empty() {
		f := s.Pop()
		n, err := o.fetch(f.id)
		if err != nil {
			return err
		}
		if err := fn(f, n); err != nil {
			return err
		}
		if n.Kind() != KindInternal {
			continue
		}

		for i := int(n.NKeys()) - 1; i >= 0; i-- {
			child := frame{
				id:       n.Ptr(uint16(i)),
				depth:    f.depth + 1,
				leftmost: f.leftmost && i == 0,
				lower:    n.Key(uint16(i)),
				upper:    f.upper,
			}
			if i+1 < int(n.NKeys()) {
				child.upper = n.Key(uint16(i + 1))
			}
			s.Push(child)
		}
	}
	return nil
}

// Walk calls fn for every page of the tree in depth-first order.
func (tree *BPlusTree) Walk(fn func(id pager.PageID, n Node, depth int) error) error {
	return tree.walk(tree.meta.root, func(f frame, n Node) error {
		return fn(f.id, n, f.depth)
	})
}

// Scan calls fn for every key-value pair in ascending key order until fn
// returns false.
func (tree *BPlusTree) Scan(fn func(key, val []byte) bool) error {
	stop := errors.New("stop")
	err := tree.walk(tree.meta.root, func(f frame, n Node) error {
		if n.Kind() != KindLeaf {
			return nil
		}

		i := uint16(0)
		if f.leftmost {
			i = 1
		}
		for ; i < n.NKeys(); i++ {
			if !fn(n.Key(i), n.Value(i)) {
				return stop
			}
		}
		return nil
	})
	if errors.Is(err, stop) {
		return nil
	}
	return err
}

// Verify checks the structure of the whole tree: every page decodes and fits
// a page, keys are ordered inside nodes and across them, parent keys match
// the first key of their children, the leftmost path starts with the empty
// sentinel, all leaves share one depth and the key count matches the
// metadata.
func (tree *BPlusTree) Verify() error {
	leafDepth := -1
	count := uint64(0)

	err := tree.walk(tree.meta.root, func(f frame, n Node) error {
		if n.Size() > PageSize {
			return errors.Errorf("%v: node of %d bytes exceeds a page", f.id, n.Size())
		}
		if n.NKeys() == 0 {
			return errors.Errorf("%v: node without entries", f.id)
		}
		if err := n.checkOrder(); err != nil {
			return errors.Wrapf(err, "%v", f.id)
		}

		if f.leftmost && len(n.Key(0)) != 0 {
			return errors.Errorf("%v: leftmost node does not start with the sentinel", f.id)
		}
		if !f.leftmost && !bytes.Equal(n.Key(0), f.lower) {
			return errors.Errorf("%v: first key '%s' differs from parent key '%s'",
				f.id, printable(n.Key(0)), printable(f.lower))
		}
		if last := n.Key(n.NKeys() - 1); f.upper != nil && bytes.Compare(last, f.upper) >= 0 {
			return errors.Errorf("%v: key '%s' beyond upper bound '%s'",
				f.id, printable(last), printable(f.upper))
		}

		switch n.Kind() {
		case KindInternal:
			if f.depth == 0 && n.NKeys() < 2 {
				return errors.Errorf("%v: internal root with a single child", f.id)
			}

		case KindLeaf:
			if leafDepth == -1 {
				leafDepth = f.depth
			} else if leafDepth != f.depth {
				return errors.Errorf("%v: leaf at depth %d, expected %d", f.id, f.depth, leafDepth)
			}

			count += uint64(n.NKeys())
			if f.leftmost {
				count--
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	if count != tree.meta.size {
		return errors.Errorf("tree holds %d keys, metadata says %d", count, tree.meta.size)
	}
	return nil
}

// Stats describes the shape of a tree.
type Stats struct {
	Height    int     `json:"height"`
	Pages     int     `json:"pages"`
	Internal  int     `json:"internal"`
	Leaves    int     `json:"leaves"`
	Keys      int64   `json:"keys"`
	Bytes     int     `json:"bytes"`
	MaxFill   float64 `json:"max_fill"`
	AvgFill   float64 `json:"avg_fill"`
	RootPage  uint64  `json:"root_page"`
	PageBytes int     `json:"page_bytes"`
}

func (s Stats) String() string {
	return fmt.Sprintf(
		"height=%d pages=%d (internal=%d leaves=%d) keys=%d fill=%.2f/%.2f",
		s.Height, s.Pages, s.Internal, s.Leaves, s.Keys, s.AvgFill, s.MaxFill,
	)
}

// Stats walks the tree and collects its Stats.
func (tree *BPlusTree) Stats() (Stats, error) {
	st := Stats{
		Keys:      tree.Size(),
		RootPage:  uint64(tree.meta.root),
		PageBytes: PageSize,
	}

	err := tree.walk(tree.meta.root, func(f frame, n Node) error {
		st.Pages++
		st.Bytes += n.Size()
		st.Height = helpers.Max(st.Height, f.depth+1)
		st.MaxFill = helpers.Max(st.MaxFill, float64(n.Size())/PageSize)
		if n.IsLeaf() {
			st.Leaves++
		} else {
			st.Internal++
		}
		return nil
	})
	if err != nil {
		return Stats{}, err
	}

	if st.Pages > 0 {
		st.AvgFill = float64(st.Bytes) / float64(st.Pages*PageSize)
	}
	return st, nil
}

// Height returns the number of levels of the tree, 0 when it is empty.
func (tree *BPlusTree) Height() (int, error) {
	height := 0
	err := tree.walk(tree.meta.root, func(f frame, n Node) error {
		height = helpers.Max(height, f.depth+1)
		return nil
	})
	return height, err
}

// Dump renders the tree, one line per node.
func (tree *BPlusTree) Dump() (s string, err error) {
	defer guard(&err)

	out := treeprint.New()
	out.SetValue(tree.String())
	if tree.meta.root.IsNil() {
		return out.String(), nil
	}

	o := &op{tree: tree}
	if err := o.dump(out, tree.meta.root); err != nil {
		return "", err
	}
	return out.String(), nil
}

func (o *op) dump(parent treeprint.Tree, id pager.PageID) error {
	n, err := o.fetch(id)
	if err != nil {
		return err
	}

	label := fmt.Sprintf("%v %v", id, n)
	if n.IsLeaf() {
		parent.AddNode(label)
		return nil
	}

	branch := parent.AddBranch(label)
	for i := uint16(0); i < n.NKeys(); i++ {
		if err := o.dump(branch, n.Ptr(i)); err != nil {
			return err
		}
	}
	return nil
}
