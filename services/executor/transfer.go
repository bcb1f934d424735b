package executor

import (
	"io"

	"go-kvtree/util/helpers"
	"go-kvtree/util/logger"
	"go-kvtree/util/response"

	"github.com/pkg/errors"
)

// Export writes every pair of the tree to w in key order, key and value as
// two consecutive response lines. It returns the number of pairs written.
func (es *ExecutorService) Export(w io.Writer) (int, error) {
	rw := response.NewWriter(w)
	count := 0

	var werr error
	err := es.tree.Scan(func(key, val []byte) bool {
		if werr = rw.WriteLine(key); werr != nil {
			return false
		}
		if werr = rw.WriteLine(val); werr != nil {
			return false
		}
		count++
		return true
	})
	if err == nil {
		err = werr
	}
	if err != nil {
		return count, errors.Wrap(err, "failed to export")
	}

	logger.L.WithField("pairs", count).Info("export finished")
	return count, nil
}

// Import inserts the pairs written by Export. Existing keys are
// overwritten.
func (es *ExecutorService) Import(r io.Reader) (int, error) {
	rr := response.NewReader(r)
	count := 0

	for {
		key, err := rr.ReadLine()
		if err == io.EOF {
			break
		} else if err != nil {
			return count, errors.Wrap(err, "failed to read key")
		}
		key = helpers.CloneBytes(key)

		val, err := rr.ReadLine()
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		if err != nil {
			return count, errors.Wrapf(err, "failed to read value of '%s'", helpers.Printable(key, 16))
		}

		if err := es.tree.Insert(key, val); err != nil {
			return count, errors.Wrapf(err, "failed to import '%s'", helpers.Printable(key, 16))
		}
		count++
	}

	logger.L.WithField("pairs", count).Info("import finished")
	return count, nil
}
