package executor

import (
	"bytes"
	"fmt"
	"io"

	"go-kvtree/pkg/bptree"
	"go-kvtree/pkg/cache"
	"go-kvtree/services/parser/query"
	"go-kvtree/util/helpers"
	"go-kvtree/util/logger"

	"github.com/sirupsen/logrus"
)

// ExecutorService runs parsed queries against a tree. Results are rendered
// as text, one line per item.
type ExecutorService struct {
	tree *bptree.SyncTree
}

func New(tree *bptree.SyncTree) *ExecutorService {
	return &ExecutorService{tree: tree}
}

func (es *ExecutorService) Exec(q query.Querier) (io.WriterTo, error) {
	logger.L.WithField("type", q.GetType()).Debug("executing query")

	switch q.GetType() {
	case query.PUT:
		return es.put(q.(*query.QueryPut))
	case query.GET:
		return es.get(q.(*query.QueryGet))
	case query.DELETE:
		return es.delete(q.(*query.QueryDelete))
	case query.SCAN:
		return es.scan(q.(*query.QueryScan))
	case query.DUMP:
		return es.dump()
	case query.STATS:
		return es.stats()
	case query.VERIFY:
		return es.verify()
	case query.RESET:
		return es.reset()
	default:
		panic(fmt.Errorf("invalid query type: '%s'", q.GetType()))
	}
}

func (es *ExecutorService) Close() error {
	return es.tree.Close()
}

func (es *ExecutorService) put(q *query.QueryPut) (io.WriterTo, error) {
	if err := es.tree.Insert(q.Key, q.Value); err != nil {
		return nil, err
	}
	return bytes.NewBufferString("OK\n"), nil
}

func (es *ExecutorService) get(q *query.QueryGet) (io.WriterTo, error) {
	val, found, err := es.tree.Get(q.Key)
	if err != nil {
		return nil, err
	} else if !found {
		return bytes.NewBufferString("(nil)\n"), nil
	}
	return bytes.NewBufferString(helpers.Printable(val, 0) + "\n"), nil
}

func (es *ExecutorService) delete(q *query.QueryDelete) (io.WriterTo, error) {
	deleted, err := es.tree.Delete(q.Key)
	if err != nil {
		return nil, err
	}
	return bytes.NewBufferString(fmt.Sprintf("(deleted %d)\n", boolToInt(deleted))), nil
}

func (es *ExecutorService) scan(q *query.QueryScan) (io.WriterTo, error) {
	buf := &bytes.Buffer{}
	count := 0

	err := es.tree.Scan(func(key, val []byte) bool {
		if q.From != nil && bytes.Compare(key, q.From) < 0 {
			return true
		}

		fmt.Fprintf(buf, "'%s' -> '%s'\n", helpers.Printable(key, 0), helpers.Printable(val, 0))
		count++
		return q.Limit == 0 || count < q.Limit
	})
	if err != nil {
		return nil, err
	}

	fmt.Fprintf(buf, "(%d rows)\n", count)
	return buf, nil
}

func (es *ExecutorService) dump() (io.WriterTo, error) {
	s, err := es.tree.Dump()
	if err != nil {
		return nil, err
	}
	return bytes.NewBufferString(s), nil
}

func (es *ExecutorService) stats() (io.WriterTo, error) {
	st, err := es.tree.Stats()
	if err != nil {
		return nil, err
	}

	buf := bytes.NewBufferString(st.String() + "\n")
	if c, ok := es.tree.Tree().Store().(*cache.Cache); ok {
		hits, misses := c.Stats()
		fmt.Fprintf(buf, "cache hits=%d misses=%d\n", hits, misses)
	}
	return buf, nil
}

func (es *ExecutorService) verify() (io.WriterTo, error) {
	if err := es.tree.Verify(); err != nil {
		logger.L.WithError(err).Error("tree verification failed")
		return nil, err
	}
	return bytes.NewBufferString("OK\n"), nil
}

func (es *ExecutorService) reset() (io.WriterTo, error) {
	size := es.tree.Size()
	if err := es.tree.Reset(); err != nil {
		return nil, err
	}

	logger.L.WithFields(logrus.Fields{"keys": size}).Info("tree reset")
	return bytes.NewBufferString("OK\n"), nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
