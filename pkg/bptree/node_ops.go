package bptree

import (
	"go-kvtree/pkg/customerrors"
	"go-kvtree/pkg/pager"

	"github.com/pkg/errors"
)

// kid is a child slot of an internal node.
type kid struct {
	ptr pager.PageID
	key []byte
}

// copyRange copies n entries of src starting at srcStart into dst starting
// at dstStart. dst must already hold its header and every entry before
// dstStart.
func copyRange(dst, src Node, dstStart, srcStart, n uint16) {
	if n == 0 {
		return
	}
	if int(srcStart)+int(n) > int(src.NKeys()) || int(dstStart)+int(n) > int(dst.NKeys()) {
		panic(errors.Wrapf(
			customerrors.ErrIndexOutOfRange,
			"copy %d entries from %d/%d to %d/%d",
			n, srcStart, src.NKeys(), dstStart, dst.NKeys(),
		))
	}

	for i := uint16(0); i < n; i++ {
		dst.SetPtr(dstStart+i, src.Ptr(srcStart+i))
	}

	dstBegin := dst.Offset(dstStart)
	srcBegin := src.Offset(srcStart)
	for i := uint16(1); i <= n; i++ {
		dst.SetOffset(dstStart+i, dstBegin+src.Offset(srcStart+i)-srcBegin)
	}

	begin, end := src.KVPos(srcStart), src.KVPos(srcStart+n)
	at := dst.KVPos(dstStart)
	if at+end-begin > len(dst) {
		panic(errors.Errorf("copy of %d bytes overflows node buffer of %d", end-begin, len(dst)))
	}
	copy(dst[at:], src[begin:end])
}

// leafInsert builds dst as old with (key, val) inserted at index i.
func leafInsert(dst, old Node, i uint16, key, val []byte) {
	dst.SetHeader(KindLeaf, old.NKeys()+1)
	copyRange(dst, old, 0, 0, i)
	dst.AppendKV(i, pager.Nil, key, val)
	copyRange(dst, old, i+1, i, old.NKeys()-i)
}

// leafUpdate builds dst as old with entry i replaced by (key, val).
func leafUpdate(dst, old Node, i uint16, key, val []byte) {
	dst.SetHeader(KindLeaf, old.NKeys())
	copyRange(dst, old, 0, 0, i)
	dst.AppendKV(i, pager.Nil, key, val)
	copyRange(dst, old, i+1, i+1, old.NKeys()-i-1)
}

// leafDelete builds dst as old without entry i.
func leafDelete(dst, old Node, i uint16) {
	dst.SetHeader(old.Kind(), old.NKeys()-1)
	copyRange(dst, old, 0, 0, i)
	copyRange(dst, old, i, i+1, old.NKeys()-i-1)
}

// merge builds dst from the entries of left followed by those of right.
func merge(dst, left, right Node) {
	if left.Kind() != right.Kind() {
		panic(errors.Wrapf(
			customerrors.ErrCorruptNode,
			"merging %v node with %v node", left.Kind(), right.Kind(),
		))
	}

	dst.SetHeader(left.Kind(), left.NKeys()+right.NKeys())
	copyRange(dst, left, 0, 0, left.NKeys())
	copyRange(dst, right, left.NKeys(), 0, right.NKeys())
}

// replaceKids builds dst as the internal node old with the count child slots
// starting at i replaced by kids.
func replaceKids(dst, old Node, i, count uint16, kids ...kid) {
	nkeys := int(old.NKeys()) + len(kids) - int(count)
	if int(i)+int(count) > int(old.NKeys()) {
		panic(errors.Wrapf(customerrors.ErrIndexOutOfRange, "replace %d kids at %d of %d", count, i, old.NKeys()))
	}

	dst.SetHeader(KindInternal, uint16(nkeys))
	copyRange(dst, old, 0, 0, i)
	for j, k := range kids {
		dst.AppendKV(i+uint16(j), k.ptr, k.key, nil)
	}
	inc := uint16(len(kids))
	copyRange(dst, old, i+inc, i+count, old.NKeys()-i-count)
}

// split2 moves the entries of old into left and right. The split point
// starts at the middle and is moved so that right fits a page; left may
// still be oversized. right's entry 0 becomes its lower bound.
func split2(left, right, old Node) {
	nkeys := old.NKeys()
	if nkeys < 2 {
		panic(errors.Wrapf(customerrors.ErrIndexOutOfRange, "cannot split node of %d entries", nkeys))
	}

	nleft := nkeys / 2
	leftBytes := func() int {
		return nodeHeaderSz + (ptrSz+offsetSz)*int(nleft) + int(old.Offset(nleft))
	}
	for nleft > 1 && leftBytes() > PageSize {
		nleft--
	}

	rightBytes := func() int {
		return old.Size() - leftBytes() + nodeHeaderSz
	}
	for nleft < nkeys-1 && rightBytes() > PageSize {
		nleft++
	}

	nright := nkeys - nleft
	left.SetHeader(old.Kind(), nleft)
	right.SetHeader(old.Kind(), nright)
	copyRange(left, old, 0, 0, nleft)
	copyRange(right, old, 0, nleft, nright)
}

// split3 splits old into as many nodes as needed (at most 3) so that each
// of them fits a page. The result always has at least one node.
func split3(old Node) []Node {
	if old.Size() <= PageSize {
		return []Node{old.page()}
	}

	left := newNode(2 * PageSize)
	right := newNode(2 * PageSize)
	split2(left, right, old)
	if left.Size() <= PageSize {
		return []Node{left.page(), right.page()}
	}

	leftleft := newNode(2 * PageSize)
	middle := newNode(2 * PageSize)
	split2(leftleft, middle, left)
	return []Node{leftleft.page(), middle.page(), right.page()}
}
