package bptree

import (
	"bytes"
	"fmt"

	"go-kvtree/pkg/customerrors"
	"go-kvtree/pkg/pager"

	"github.com/pkg/errors"
)

// Node layout, all integers in native byte order:
//
//	| kind (2B) | nkeys (2B) | child refs (8B * nkeys) | offsets (2B * nkeys) | entries |
//	entry: | key len (2B) | value len (2B) | key | value |
//
// offsets[i-1] holds the end of entry i-1 relative to the start of the
// entries area. The offset of entry 0 is always 0 and is not stored.
const (
	nodeHeaderSz  = 4
	entryHeaderSz = 4
	ptrSz         = 8
	offsetSz      = 2

	// PageSize is the encoded size budget of every node written to a store.
	PageSize = pager.PageSize

	MaxKeySize   = 1000
	MaxValueSize = 3000
)

func init() {
	// a node holding one maximal entry besides the header must fit a page,
	// otherwise splitting would never converge.
	max := nodeHeaderSz + ptrSz + offsetSz + entryHeaderSz + MaxKeySize + MaxValueSize
	if max > PageSize {
		panic(fmt.Errorf("max entry (%d bytes) does not fit a page", max))
	}
}

type NodeKind uint16

const (
	KindInternal NodeKind = 1
	KindLeaf     NodeKind = 2
)

func (k NodeKind) String() string {
	switch k {
	case KindInternal:
		return "internal"
	case KindLeaf:
		return "leaf"
	default:
		return fmt.Sprintf("kind(%d)", uint16(k))
	}
}

// Node is the decoded view of a page. Accessors read and write the buffer in
// place; byte slices returned by Key and Value alias it.
type Node []byte

func newNode(size int) Node {
	return make(Node, size)
}

func (n Node) Kind() NodeKind { return NodeKind(bin.Uint16(n[0:2])) }

func (n Node) NKeys() uint16 { return bin.Uint16(n[2:4]) }

func (n Node) IsLeaf() bool { return n.Kind() == KindLeaf }

func (n Node) SetHeader(kind NodeKind, nkeys uint16) {
	bin.PutUint16(n[0:2], uint16(kind))
	bin.PutUint16(n[2:4], nkeys)
}

func (n Node) Ptr(i uint16) pager.PageID {
	n.mustEntry(i)
	pos := nodeHeaderSz + ptrSz*int(i)
	return pager.PageID(bin.Uint64(n[pos:]))
}

func (n Node) SetPtr(i uint16, id pager.PageID) {
	n.mustEntry(i)
	pos := nodeHeaderSz + ptrSz*int(i)
	bin.PutUint64(n[pos:], uint64(id))
}

func (n Node) offsetPos(i uint16) int {
	return nodeHeaderSz + ptrSz*int(n.NKeys()) + offsetSz*int(i-1)
}

func (n Node) Offset(i uint16) uint16 {
	n.mustBound(i)
	if i == 0 {
		return 0
	}
	return bin.Uint16(n[n.offsetPos(i):])
}

func (n Node) SetOffset(i uint16, off uint16) {
	n.mustBound(i)
	if i == 0 {
		return
	}
	bin.PutUint16(n[n.offsetPos(i):], off)
}

// KVPos returns the absolute position of entry i. KVPos(NKeys()) is the end
// of the last entry.
func (n Node) KVPos(i uint16) int {
	n.mustBound(i)
	return nodeHeaderSz + (ptrSz+offsetSz)*int(n.NKeys()) + int(n.Offset(i))
}

func (n Node) Key(i uint16) []byte {
	n.mustEntry(i)
	pos := n.KVPos(i)
	klen := int(bin.Uint16(n[pos:]))
	return n[pos+entryHeaderSz:][:klen:klen]
}

func (n Node) Value(i uint16) []byte {
	n.mustEntry(i)
	pos := n.KVPos(i)
	klen := int(bin.Uint16(n[pos:]))
	vlen := int(bin.Uint16(n[pos+2:]))
	return n[pos+entryHeaderSz+klen:][:vlen:vlen]
}

// Size is the number of bytes the node occupies when encoded.
func (n Node) Size() int {
	return n.KVPos(n.NKeys())
}

// AppendKV writes entry i and the offset of entry i+1. Entries must be
// written in ascending index order, since the position of entry i comes
// from the offset left behind by entry i-1.
func (n Node) AppendKV(i uint16, ptr pager.PageID, key, val []byte) {
	n.SetPtr(i, ptr)
	pos := n.KVPos(i)
	if pos+entryHeaderSz+len(key)+len(val) > len(n) {
		panic(errors.Errorf("entry %d overflows node buffer of %d", i, len(n)))
	}
	bin.PutUint16(n[pos:], uint16(len(key)))
	bin.PutUint16(n[pos+2:], uint16(len(val)))
	copy(n[pos+entryHeaderSz:], key)
	copy(n[pos+entryHeaderSz+len(key):], val)
	n.SetOffset(i+1, n.Offset(i)+entryHeaderSz+uint16(len(key)+len(val)))
}

// LookupLE returns the greatest index i >= 1 whose key is <= key, or 0 when
// no such entry exists. Entry 0 is the node's lower bound and is never
// compared. The scan stops at the first empty key.
func (n Node) LookupLE(key []byte) uint16 {
	found := uint16(0)
	for i := uint16(1); i < n.NKeys(); i++ {
		k := n.Key(i)
		if len(k) == 0 {
			break
		}

		cmp := bytes.Compare(k, key)
		if cmp <= 0 {
			found = i
		}
		if cmp >= 0 {
			break
		}
	}
	return found
}

// page returns the node trimmed to exactly one page.
func (n Node) page() Node {
	if sz := n.Size(); sz > PageSize {
		panic(errors.Errorf("node of %d bytes does not fit a page", sz))
	}
	if len(n) >= PageSize {
		return n[:PageSize:PageSize]
	}
	p := newNode(PageSize)
	copy(p, n)
	return p
}

// validate checks that the buffer decodes into a well formed node, so that
// accessors cannot run past its end.
func (n Node) validate() error {
	if len(n) < nodeHeaderSz {
		return errors.Wrapf(customerrors.ErrCorruptNode, "short page of %d bytes", len(n))
	}

	switch n.Kind() {
	case KindLeaf, KindInternal:
	default:
		return errors.Wrapf(customerrors.ErrCorruptNode, "unknown node kind %d", uint16(n.Kind()))
	}

	nkeys := n.NKeys()
	if nodeHeaderSz+(ptrSz+offsetSz)*int(nkeys) > len(n) {
		return errors.Wrapf(customerrors.ErrCorruptNode, "%d entries overflow the page", nkeys)
	}

	for i := uint16(0); i < nkeys; i++ {
		pos, next := n.KVPos(i), n.KVPos(i+1)
		if next > len(n) || next < pos+entryHeaderSz {
			return errors.Wrapf(customerrors.ErrCorruptNode, "bad offset of entry %d", i+1)
		}

		klen := int(bin.Uint16(n[pos:]))
		vlen := int(bin.Uint16(n[pos+2:]))
		if pos+entryHeaderSz+klen+vlen != next {
			return errors.Wrapf(customerrors.ErrCorruptNode, "entry %d length mismatch", i)
		}
	}

	return nil
}

// checkOrder verifies that real keys are non-empty and strictly ascending
// and that entry 0 sorts before them.
func (n Node) checkOrder() error {
	nkeys := n.NKeys()
	for i := uint16(1); i < nkeys; i++ {
		if len(n.Key(i)) == 0 {
			return errors.Errorf("empty key at entry %d", i)
		}
		if bytes.Compare(n.Key(i-1), n.Key(i)) >= 0 {
			return errors.Errorf("entries %d and %d are out of order", i-1, i)
		}
	}

	if n.Kind() == KindInternal {
		for i := uint16(0); i < nkeys; i++ {
			if len(n.Value(i)) != 0 {
				return errors.Errorf("internal entry %d carries a value", i)
			}
			if n.Ptr(i).IsNil() {
				return errors.Errorf("internal entry %d has no child", i)
			}
		}
	}
	return nil
}

func (n Node) mustEntry(i uint16) {
	if i >= n.NKeys() {
		panic(errors.Wrapf(customerrors.ErrIndexOutOfRange, "entry %d of %d", i, n.NKeys()))
	}
}

func (n Node) mustBound(i uint16) {
	if i > n.NKeys() {
		panic(errors.Wrapf(customerrors.ErrIndexOutOfRange, "bound %d of %d", i, n.NKeys()))
	}
}

func (n Node) String() string {
	s := "{"
	for i := uint16(0); i < n.NKeys(); i++ {
		if i > 0 {
			s += " "
		}
		s += fmt.Sprintf("'%s'", printable(n.Key(i)))
	}
	s += "} "
	s += fmt.Sprintf("[size=%d, kind=%v, nkeys=%d]", n.Size(), n.Kind(), n.NKeys())
	return s
}
