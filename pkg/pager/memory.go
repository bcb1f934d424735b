package pager

import (
	"go-kvtree/pkg/customerrors"
	"go-kvtree/util/helpers"

	"github.com/pkg/errors"
)

// NewMemory returns a heap-backed Store. It is neither durable nor safe for
// concurrent use.
func NewMemory() *Memory {
	return &Memory{
		pages: make(map[PageID][]byte),
		next:  1,
	}
}

// Memory keeps pages in a map keyed by a monotonically increasing id.
type Memory struct {
	pages map[PageID][]byte
	meta  []byte
	next  PageID
}

func (m *Memory) Alloc(data []byte) (PageID, error) {
	if err := checkSize(data); err != nil {
		return Nil, errors.Wrap(customerrors.ErrInvalidPageSize, err.Error())
	}

	id := m.next
	m.next++
	m.pages[id] = helpers.CloneBytes(data)
	return id, nil
}

func (m *Memory) Get(id PageID) ([]byte, error) {
	d, ok := m.pages[id]
	if !ok {
		return nil, errors.Wrapf(customerrors.ErrPageNotFound, "get %v", id)
	}
	return helpers.CloneBytes(d), nil
}

func (m *Memory) Free(id PageID) error {
	if _, ok := m.pages[id]; !ok {
		return errors.Wrapf(customerrors.ErrPageNotFound, "free %v", id)
	}
	delete(m.pages, id)
	return nil
}

func (m *Memory) Count() (int, error) {
	return len(m.pages), nil
}

func (m *Memory) ReadMeta() ([]byte, error) {
	if m.meta == nil {
		return nil, customerrors.ErrNotFound
	}
	return helpers.CloneBytes(m.meta), nil
}

func (m *Memory) WriteMeta(d []byte) error {
	m.meta = helpers.CloneBytes(d)
	return nil
}

func (m *Memory) Close() error {
	m.pages = nil
	m.meta = nil
	return nil
}
