package bptree

import (
	"bytes"
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"testing"

	"go-kvtree/pkg/cache"
	"go-kvtree/pkg/customerrors"
	"go-kvtree/pkg/pager"
	"go-kvtree/util/helpers"

	"github.com/stretchr/testify/require"
)

func newTestTree(t *testing.T) (*BPlusTree, *pager.Memory) {
	t.Helper()

	store := pager.NewMemory()
	tree, err := Open(store, &Options{VerifyWrites: true})
	require.NoError(t, err)
	require.NotNil(t, tree)
	return tree, store
}

// requireNoLeaks checks that every live page of the store is reachable from
// the root.
func requireNoLeaks(t *testing.T, tree *BPlusTree, store pager.Counter) {
	t.Helper()

	st, err := tree.Stats()
	require.NoError(t, err)
	count, err := store.Count()
	require.NoError(t, err)
	require.Equal(t, st.Pages, count)
}

func TestBPlusTree_Scenario(t *testing.T) {
	tree, store := newTestTree(t)

	require.NoError(t, tree.Insert([]byte("abc"), []byte("def")))
	val, found, err := tree.Get([]byte("abc"))
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, []byte("def"), val)

	bigKey := func(c byte) []byte { return bytes.Repeat([]byte{c}, MaxKeySize-1) }
	bigVal := bytes.Repeat([]byte{'v'}, MaxValueSize-1)

	require.NoError(t, tree.Insert(bigKey('x'), bigVal))
	require.NoError(t, tree.Insert(bigKey('y'), bigVal))

	root, err := (&op{tree: tree}).fetch(tree.Root())
	require.NoError(t, err)
	require.Equal(t, KindInternal, root.Kind())
	require.GreaterOrEqual(t, int(root.NKeys()), 2)

	found, _, _, err = tree.Search([]byte("abc"))
	require.NoError(t, err)
	require.True(t, found)
	require.NoError(t, tree.Verify())

	height, err := tree.Height()
	require.NoError(t, err)

	deleted, err := tree.Delete(bigKey('y'))
	require.NoError(t, err)
	require.True(t, deleted)

	found, _, _, err = tree.Search(bigKey('y'))
	require.NoError(t, err)
	require.False(t, found)

	after, err := tree.Height()
	require.NoError(t, err)
	require.LessOrEqual(t, after, height)

	require.NoError(t, tree.Verify())
	requireNoLeaks(t, tree, store)
}

func TestBPlusTree_Update(t *testing.T) {
	tree, store := newTestTree(t)

	require.NoError(t, tree.Insert([]byte("k"), []byte("one")))
	require.NoError(t, tree.Insert([]byte("k"), []byte("two")))
	require.Equal(t, int64(1), tree.Size())

	val, found, err := tree.Get([]byte("k"))
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, []byte("two"), val)
	requireNoLeaks(t, tree, store)
}

func TestBPlusTree_Validation(t *testing.T) {
	tree, _ := newTestTree(t)

	require.ErrorIs(t, tree.Insert(nil, []byte("v")), customerrors.ErrEmptyKey)
	require.ErrorIs(t, tree.Insert(make([]byte, MaxKeySize+1), nil), customerrors.ErrKeyTooLarge)
	require.ErrorIs(t, tree.Insert([]byte("k"), make([]byte, MaxValueSize+1)), customerrors.ErrValueTooLarge)

	_, err := tree.Delete([]byte{})
	require.ErrorIs(t, err, customerrors.ErrEmptyKey)

	_, _, err = tree.Get(make([]byte, MaxKeySize+1))
	require.ErrorIs(t, err, customerrors.ErrKeyTooLarge)

	require.NoError(t, tree.Insert(make([]byte, MaxKeySize), make([]byte, MaxValueSize)))
	require.Equal(t, int64(1), tree.Size())
}

func TestBPlusTree_Empty(t *testing.T) {
	tree, _ := newTestTree(t)

	require.True(t, tree.Root().IsNil())

	found, leaf, _, err := tree.Search([]byte("a"))
	require.NoError(t, err)
	require.False(t, found)
	require.Nil(t, leaf)

	deleted, err := tree.Delete([]byte("a"))
	require.NoError(t, err)
	require.False(t, deleted)
	require.True(t, tree.Root().IsNil())

	height, err := tree.Height()
	require.NoError(t, err)
	require.Zero(t, height)
	require.NoError(t, tree.Verify())
}

func TestBPlusTree_DeleteMissingIsNoop(t *testing.T) {
	tree, store := newTestTree(t)

	for i := 0; i < 200; i++ {
		require.NoError(t, tree.Insert([]byte(fmt.Sprintf("key-%04d", i)), bytes.Repeat([]byte{'v'}, 100)))
	}

	root := tree.Root()
	count, err := store.Count()
	require.NoError(t, err)

	for _, key := range []string{"key-0000x", "a", "zzz", "key-0100x"} {
		deleted, err := tree.Delete([]byte(key))
		require.NoError(t, err)
		require.False(t, deleted)
	}

	after, err := store.Count()
	require.NoError(t, err)
	require.Equal(t, count, after)
	require.Equal(t, root, tree.Root())
	require.Equal(t, int64(200), tree.Size())
}

func TestBPlusTree_DeleteAll(t *testing.T) {
	tree, store := newTestTree(t)

	n := 500
	for i := 0; i < n; i++ {
		require.NoError(t, tree.Insert([]byte(fmt.Sprintf("%05d", i)), bytes.Repeat([]byte{'v'}, 200)))
	}
	require.NoError(t, tree.Verify())

	height, err := tree.Height()
	require.NoError(t, err)
	require.Greater(t, height, 1)

	for i := 0; i < n; i++ {
		deleted, err := tree.Delete([]byte(fmt.Sprintf("%05d", i)))
		require.NoError(t, err)
		require.True(t, deleted)
	}

	require.Zero(t, tree.Size())
	root, err := (&op{tree: tree}).fetch(tree.Root())
	require.NoError(t, err)
	require.Equal(t, KindLeaf, root.Kind())
	require.Equal(t, uint16(1), root.NKeys())
	require.Empty(t, root.Key(0))

	require.NoError(t, tree.Verify())
	requireNoLeaks(t, tree, store)

	count, err := store.Count()
	require.NoError(t, err)
	require.Equal(t, 1, count)
}

func TestBPlusTree_Random(t *testing.T) {
	tree, store := newTestTree(t)
	rnd := rand.New(rand.NewSource(42))
	want := map[string][]byte{}

	randBytes := func(min, max int) []byte {
		b := make([]byte, min+rnd.Intn(max-min+1))
		rnd.Read(b)
		return b
	}

	for i := 0; i < 3000; i++ {
		switch {
		case len(want) > 0 && rnd.Intn(3) == 0:
			for k := range want {
				deleted, err := tree.Delete([]byte(k))
				require.NoError(t, err)
				require.True(t, deleted)
				delete(want, k)
				break
			}

		default:
			key := randBytes(1, 24)
			val := randBytes(0, 200)
			if i%40 == 0 {
				key = randBytes(MaxKeySize/2, MaxKeySize)
				val = randBytes(MaxValueSize/2, MaxValueSize)
			}
			require.NoError(t, tree.Insert(key, val))
			want[string(key)] = val
		}

		if i%250 == 0 {
			require.NoError(t, tree.Verify())
			requireNoLeaks(t, tree, store)
		}
	}

	require.NoError(t, tree.Verify())
	requireNoLeaks(t, tree, store)
	require.Equal(t, int64(len(want)), tree.Size())

	for k, v := range want {
		got, found, err := tree.Get([]byte(k))
		require.NoError(t, err)
		require.True(t, found)
		require.Equal(t, v, got)
	}

	keys := make([]string, 0, len(want))
	for k := range want {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	scanned := []string{}
	require.NoError(t, tree.Scan(func(key, _ []byte) bool {
		scanned = append(scanned, string(key))
		return true
	}))
	require.Equal(t, keys, scanned)

	for _, k := range keys {
		deleted, err := tree.Delete([]byte(k))
		require.NoError(t, err)
		require.True(t, deleted)
	}
	require.Zero(t, tree.Size())
	require.NoError(t, tree.Verify())
	requireNoLeaks(t, tree, store)
}

func TestBPlusTree_Scan_Stop(t *testing.T) {
	tree, _ := newTestTree(t)
	for _, k := range []string{"c", "a", "b"} {
		require.NoError(t, tree.Insert([]byte(k), nil))
	}

	seen := []string{}
	require.NoError(t, tree.Scan(func(key, _ []byte) bool {
		seen = append(seen, string(key))
		return len(seen) < 2
	}))
	require.Equal(t, []string{"a", "b"}, seen)
}

func TestBPlusTree_Reset(t *testing.T) {
	tree, store := newTestTree(t)
	for i := 0; i < 300; i++ {
		require.NoError(t, tree.Insert([]byte(fmt.Sprintf("%d", i)), make([]byte, 100)))
	}

	require.NoError(t, tree.Reset())
	require.True(t, tree.Root().IsNil())
	require.Zero(t, tree.Size())

	count, err := store.Count()
	require.NoError(t, err)
	require.Zero(t, count)
}

// faultyStore serves garbage for the pages in bad.
type faultyStore struct {
	pager.Store
	bad map[pager.PageID][]byte
}

func (s *faultyStore) Get(id pager.PageID) ([]byte, error) {
	if d, ok := s.bad[id]; ok {
		return d, nil
	}
	return s.Store.Get(id)
}

func TestBPlusTree_CorruptPage(t *testing.T) {
	mem := pager.NewMemory()
	store := &faultyStore{Store: mem, bad: map[pager.PageID][]byte{}}
	tree, err := Open(store, nil)
	require.NoError(t, err)

	for i := 0; i < 200; i++ {
		require.NoError(t, tree.Insert([]byte(fmt.Sprintf("key-%04d", i)), make([]byte, 100)))
	}

	var leafID pager.PageID
	var leafKey []byte
	require.NoError(t, tree.Walk(func(id pager.PageID, n Node, depth int) error {
		if n.IsLeaf() && leafID.IsNil() && depth > 0 {
			leafID, leafKey = id, helpers.CloneBytes(n.Key(1))
		}
		return nil
	}))
	require.False(t, leafID.IsNil())

	tests := []struct {
		name string
		page []byte
		want error
	}{
		{"bad kind", func() []byte {
			p := make([]byte, PageSize)
			Node(p).SetHeader(NodeKind(9), 1)
			return p
		}(), customerrors.ErrCorruptNode},
		{"empty internal", func() []byte {
			p := make([]byte, PageSize)
			Node(p).SetHeader(KindInternal, 0)
			return p
		}(), customerrors.ErrIndexOutOfRange},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store.bad[leafID] = tt.page
			defer delete(store.bad, leafID)

			root, size := tree.Root(), tree.Size()
			count, err := mem.Count()
			require.NoError(t, err)

			require.ErrorIs(t, tree.Insert(leafKey, []byte("x")), tt.want)
			_, err = tree.Delete(leafKey)
			require.ErrorIs(t, err, tt.want)
			_, _, err = tree.Get(leafKey)
			require.ErrorIs(t, err, tt.want)
			require.Error(t, tree.Verify())

			require.Equal(t, root, tree.Root())
			require.Equal(t, size, tree.Size())
			after, err := mem.Count()
			require.NoError(t, err)
			require.Equal(t, count, after)
		})
	}

	require.NoError(t, tree.Verify())
}

// failingFree is a store whose Free fails once armed.
type failingFree struct {
	pager.Store
	armed bool
}

func (s *failingFree) Free(id pager.PageID) error {
	if s.armed {
		return errors.New("disk gone")
	}
	return s.Store.Free(id)
}

func TestBPlusTree_DeleteFreeFails(t *testing.T) {
	store := &failingFree{Store: pager.NewMemory()}
	tree, err := Open(store, &Options{})
	require.NoError(t, err)

	for i := 0; i < 50; i++ {
		require.NoError(t, tree.Insert([]byte(fmt.Sprintf("key-%04d", i)), []byte("v")))
	}

	store.armed = true
	deleted, err := tree.Delete([]byte("key-0007"))
	require.Error(t, err)
	require.True(t, deleted)
	require.Equal(t, int64(49), tree.Size())

	_, found, err := tree.Get([]byte("key-0007"))
	require.NoError(t, err)
	require.False(t, found)

	deleted, err = tree.Delete([]byte("key-0007"))
	require.NoError(t, err)
	require.False(t, deleted)
}

func TestBPlusTree_Reopen(t *testing.T) {
	dir := t.TempDir()

	store, err := pager.OpenLevel(dir, false)
	require.NoError(t, err)
	tree, err := Open(store, nil)
	require.NoError(t, err)

	for i := 0; i < 300; i++ {
		require.NoError(t, tree.Insert([]byte(fmt.Sprintf("key-%04d", i)), []byte(fmt.Sprintf("val-%d", i))))
	}
	root := tree.Root()
	require.NoError(t, tree.Close())

	store, err = pager.OpenLevel(dir, false)
	require.NoError(t, err)
	tree, err = Open(store, nil)
	require.NoError(t, err)
	defer tree.Close()

	require.Equal(t, root, tree.Root())
	require.Equal(t, int64(300), tree.Size())
	require.NoError(t, tree.Verify())
	requireNoLeaks(t, tree, store)

	val, found, err := tree.Get([]byte("key-0123"))
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, []byte("val-123"), val)

	require.NoError(t, tree.Insert([]byte("key-9999"), nil))
	requireNoLeaks(t, tree, store)
}

func TestBPlusTree_IncompatibleMeta(t *testing.T) {
	store := pager.NewMemory()
	tree, err := Open(store, nil)
	require.NoError(t, err)
	require.NoError(t, tree.Insert([]byte("a"), nil))

	d, err := store.ReadMeta()
	require.NoError(t, err)
	d[0] ^= 0xff
	require.NoError(t, store.WriteMeta(d))

	_, err = Open(store, nil)
	require.ErrorIs(t, err, customerrors.ErrIncompatibleMeta)
}

func TestBPlusTree_Cache(t *testing.T) {
	tree, err := Open(pager.NewMemory(), &Options{CacheSize: 16})
	require.NoError(t, err)

	for i := 0; i < 100; i++ {
		require.NoError(t, tree.Insert([]byte(fmt.Sprintf("%03d", i)), make([]byte, 64)))
	}
	for i := 0; i < 100; i++ {
		_, found, err := tree.Get([]byte(fmt.Sprintf("%03d", i)))
		require.NoError(t, err)
		require.True(t, found)
	}

	c, ok := tree.Store().(*cache.Cache)
	require.True(t, ok)
	hits, _ := c.Stats()
	require.NotZero(t, hits)
	require.NoError(t, tree.Verify())
	requireNoLeaks(t, tree, c)
}

func TestBPlusTree_Dump(t *testing.T) {
	tree, _ := newTestTree(t)

	s, err := tree.Dump()
	require.NoError(t, err)
	require.Contains(t, s, "root=page#0")

	for i := 0; i < 100; i++ {
		require.NoError(t, tree.Insert([]byte(fmt.Sprintf("%03d", i)), make([]byte, 100)))
	}

	s, err = tree.Dump()
	require.NoError(t, err)
	require.Contains(t, s, "internal")
	require.Contains(t, s, "leaf")

	st, err := tree.Stats()
	require.NoError(t, err)
	require.Equal(t, st.Internal+st.Leaves, st.Pages)
	require.Equal(t, int64(100), st.Keys)
	require.LessOrEqual(t, st.MaxFill, 1.0)
}

func TestSyncTree(t *testing.T) {
	tree, _ := newTestTree(t)
	st := NewSyncTree(tree)

	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				key := []byte(fmt.Sprintf("%d-%03d", w, i))
				if err := st.Insert(key, key); err != nil {
					t.Error(err)
					return
				}
				if _, _, err := st.Get(key); err != nil {
					t.Error(err)
					return
				}
			}
		}(w)
	}
	wg.Wait()

	require.Equal(t, int64(400), st.Size())
	require.NoError(t, st.Verify())

	deleted, err := st.Delete([]byte("0-000"))
	require.NoError(t, err)
	require.True(t, deleted)
}
