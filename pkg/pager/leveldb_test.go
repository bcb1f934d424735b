package pager

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLevel(t *testing.T) {
	l, err := OpenLevel("", false)
	require.NoError(t, err)
	testStore(t, l)
	require.NoError(t, l.Close())
}

func TestLevel_Reopen(t *testing.T) {
	dir := t.TempDir()

	l, err := OpenLevel(dir, true)
	require.NoError(t, err)

	page := make([]byte, PageSize)
	page[10] = 7
	id, err := l.Alloc(page)
	require.NoError(t, err)
	require.NoError(t, l.WriteMeta([]byte{1, 2, 3}))
	require.NoError(t, l.Close())

	l, err = OpenLevel(dir, true)
	require.NoError(t, err)
	defer l.Close()

	d, err := l.Get(id)
	require.NoError(t, err)
	require.Equal(t, page, d)

	meta, err := l.ReadMeta()
	require.NoError(t, err)
	require.Equal(t, []byte{1, 2, 3}, meta)

	next, err := l.Alloc(page)
	require.NoError(t, err)
	require.Greater(t, uint64(next), uint64(id))

	n, err := l.Count()
	require.NoError(t, err)
	require.Equal(t, 2, n)
}
