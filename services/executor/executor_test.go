package executor

import (
	"bytes"
	"testing"

	"go-kvtree/pkg/bptree"
	"go-kvtree/pkg/pager"
	"go-kvtree/services/parser"

	"github.com/stretchr/testify/require"
)

func newTestExecutor(t *testing.T, opts *bptree.Options) *ExecutorService {
	t.Helper()

	tree, err := bptree.Open(pager.NewMemory(), opts)
	require.NoError(t, err)
	return New(bptree.NewSyncTree(tree))
}

func run(t *testing.T, es *ExecutorService, in string) string {
	t.Helper()

	q, err := parser.New().ParseQuery([]byte(in))
	require.NoError(t, err)
	res, err := es.Exec(q)
	require.NoError(t, err)

	buf := &bytes.Buffer{}
	_, err = res.WriteTo(buf)
	require.NoError(t, err)
	return buf.String()
}

func TestExecutor(t *testing.T) {
	es := newTestExecutor(t, nil)
	defer es.Close()

	require.Equal(t, "OK\n", run(t, es, `put abc def`))
	require.Equal(t, "def\n", run(t, es, `get abc`))
	require.Equal(t, "(nil)\n", run(t, es, `get nope`))

	require.Equal(t, "OK\n", run(t, es, `put bin 0x0001`))
	require.Equal(t, "0x0001\n", run(t, es, `get bin`))

	require.Equal(t, "OK\n", run(t, es, `put c "x y"`))
	require.Equal(t,
		"'abc' -> 'def'\n'bin' -> '0x0001'\n'c' -> 'x y'\n(3 rows)\n",
		run(t, es, `scan`),
	)
	require.Equal(t, "'bin' -> '0x0001'\n(1 rows)\n", run(t, es, `scan b limit 1`))

	require.Equal(t, "(deleted 1)\n", run(t, es, `del abc`))
	require.Equal(t, "(deleted 0)\n", run(t, es, `del abc`))

	require.Equal(t, "OK\n", run(t, es, `verify`))
	require.Contains(t, run(t, es, `stats`), "keys=2")
	require.Contains(t, run(t, es, `dump`), "'bin'")

	require.Equal(t, "OK\n", run(t, es, `reset`))
	require.Equal(t, "(0 rows)\n", run(t, es, `scan`))
}

func TestExecutor_Errors(t *testing.T) {
	es := newTestExecutor(t, nil)

	q, err := parser.New().ParseQuery([]byte(`put 0x abc`))
	require.NoError(t, err)
	_, err = es.Exec(q)
	require.Error(t, err)
}

func TestExecutor_CacheStats(t *testing.T) {
	es := newTestExecutor(t, &bptree.Options{CacheSize: 4})

	run(t, es, `put a b`)
	run(t, es, `get a`)
	require.Contains(t, run(t, es, `stats`), "cache hits=")
}

func TestExecutor_ExportImport(t *testing.T) {
	src := newTestExecutor(t, nil)
	for _, in := range []string{`put a 1`, `put b 0x00`, `put c ""`} {
		run(t, src, in)
	}

	buf := &bytes.Buffer{}
	n, err := src.Export(buf)
	require.NoError(t, err)
	require.Equal(t, 3, n)

	dst := newTestExecutor(t, nil)
	n, err = dst.Import(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	require.Equal(t, 3, n)
	require.Equal(t, run(t, src, `scan`), run(t, dst, `scan`))

	_, err = dst.Import(bytes.NewReader(buf.Bytes()[:buf.Len()-4]))
	require.Error(t, err)
}
