// Package pager provides page stores: tables mapping opaque page references
// to fixed-size byte buffers. Stores know nothing about the tree built on
// top of them.
package pager

import (
	"encoding/binary"
	"fmt"
)

// PageSize is the fixed size of every page handed to a Store.
const PageSize = 4096

// PageID is an opaque reference to one page in a Store.
type PageID uint64

// Nil is the null page reference. Stores never hand it out.
const Nil PageID = 0

// bin is the byte order used for page ids inside store keys.
var bin = binary.BigEndian

func (id PageID) IsNil() bool { return id == Nil }

func (id PageID) String() string {
	return fmt.Sprintf("page#%d", uint64(id))
}

// Store allocates, reads and frees pages.
//
// Get must return an independent copy of the stored bytes so callers may
// mutate the result freely. Get and Free on a reference that was never
// allocated, or was already freed, return an error wrapping
// customerrors.ErrPageNotFound.
type Store interface {
	Alloc(data []byte) (PageID, error)
	Get(id PageID) ([]byte, error)
	Free(id PageID) error
	Close() error
}

// MetaStore is implemented by stores that can keep one small metadata record
// next to the pages, which lets a tree be reopened.
type MetaStore interface {
	ReadMeta() ([]byte, error)
	WriteMeta(d []byte) error
}

// Counter is implemented by stores that can report how many pages are live.
type Counter interface {
	Count() (int, error)
}

func checkSize(data []byte) error {
	if len(data) != PageSize {
		return fmt.Errorf("got %d bytes, want %d", len(data), PageSize)
	}
	return nil
}
