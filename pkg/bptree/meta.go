package bptree

import (
	"go-kvtree/pkg/customerrors"
	"go-kvtree/pkg/pager"

	"github.com/pkg/errors"
)

const (
	magic        = 0xB7EE
	version      = uint8(0x1)
	metadataSize = 28
)

// metadata is the record a tree keeps in a pager.MetaStore so that it can
// be reopened.
type metadata struct {
	// temporary state info
	dirty bool

	// actual metadata
	magic      uint16       // magic marker to identify the tree
	version    uint8        // version of implementation
	flags      uint8        // flags (unused)
	maxKeySz   uint16       // maximum key size allowed
	maxValueSz uint16       // maximum value size allowed
	pageSz     uint32       // page size used to initialize
	size       uint64       // number of keys in the tree
	root       pager.PageID // root page, pager.Nil for an empty tree
}

func newMetadata() *metadata {
	return &metadata{
		dirty:      true,
		magic:      magic,
		version:    version,
		maxKeySz:   MaxKeySize,
		maxValueSz: MaxValueSize,
		pageSz:     PageSize,
		root:       pager.Nil,
	}
}

func (m metadata) MarshalBinary() ([]byte, error) {
	buf := make([]byte, metadataSize)
	bin.PutUint16(buf[0:2], m.magic)
	buf[2] = m.version
	buf[3] = m.flags
	bin.PutUint16(buf[4:6], m.maxKeySz)
	bin.PutUint16(buf[6:8], m.maxValueSz)
	bin.PutUint32(buf[8:12], m.pageSz)
	bin.PutUint64(buf[12:20], m.size)
	bin.PutUint64(buf[20:28], uint64(m.root))
	return buf, nil
}

func (m *metadata) UnmarshalBinary(d []byte) error {
	if len(d) < metadataSize {
		return errors.New("in-sufficient data for unmarshal")
	} else if m == nil {
		return errors.New("cannot unmarshal into nil")
	}

	m.magic = bin.Uint16(d[0:2])
	m.version = d[2]
	m.flags = d[3]
	m.maxKeySz = bin.Uint16(d[4:6])
	m.maxValueSz = bin.Uint16(d[6:8])
	m.pageSz = bin.Uint32(d[8:12])
	m.size = bin.Uint64(d[12:20])
	m.root = pager.PageID(bin.Uint64(d[20:28]))
	return nil
}

// verify rejects metadata written by another version or with other limits.
func (m *metadata) verify() error {
	switch {
	case m.magic != magic:
		return errors.Wrapf(customerrors.ErrIncompatibleMeta, "bad magic %#x", m.magic)
	case m.version != version:
		return errors.Wrapf(customerrors.ErrIncompatibleMeta, "version %#x (expected: %#x)", m.version, version)
	case m.pageSz != PageSize:
		return errors.Wrapf(customerrors.ErrIncompatibleMeta, "page size %d (expected: %d)", m.pageSz, PageSize)
	case m.maxKeySz != MaxKeySize || m.maxValueSz != MaxValueSize:
		return errors.Wrapf(
			customerrors.ErrIncompatibleMeta,
			"limits key=%d value=%d (expected: %d, %d)",
			m.maxKeySz, m.maxValueSz, MaxKeySize, MaxValueSize,
		)
	}
	return nil
}
