package pager

import (
	"go-kvtree/pkg/customerrors"

	"github.com/pkg/errors"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/storage"
	"github.com/syndtr/goleveldb/leveldb/util"
)

var (
	pagePrefix = []byte("p/")
	metaKey    = []byte("m/tree")
	nextKey    = []byte("m/next")
)

// OpenLevel opens (or creates) a LevelDB-backed Store at path. An empty path
// opens an in-memory LevelDB instance, which is handy for tests.
func OpenLevel(path string, sync bool) (*Level, error) {
	var db *leveldb.DB
	var err error

	if path == "" {
		db, err = leveldb.Open(storage.NewMemStorage(), nil)
	} else {
		db, err = leveldb.OpenFile(path, nil)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open leveldb at '%s'", path)
	}

	l := &Level{
		db:   db,
		wo:   &opt.WriteOptions{Sync: sync},
		next: 1,
	}

	d, err := db.Get(nextKey, nil)
	switch {
	case err == leveldb.ErrNotFound:
	case err != nil:
		_ = db.Close()
		return nil, errors.Wrap(err, "failed to read next page id")
	default:
		l.next = PageID(bin.Uint64(d))
	}

	return l, nil
}

// Level stores every page as one LevelDB record keyed by its id. The next
// id to hand out is persisted together with each allocation.
type Level struct {
	db   *leveldb.DB
	wo   *opt.WriteOptions
	next PageID
}

func (l *Level) Alloc(data []byte) (PageID, error) {
	if err := checkSize(data); err != nil {
		return Nil, errors.Wrap(customerrors.ErrInvalidPageSize, err.Error())
	}

	id := l.next
	next := make([]byte, 8)
	bin.PutUint64(next, uint64(id+1))

	batch := new(leveldb.Batch)
	batch.Put(pageKey(id), data)
	batch.Put(nextKey, next)
	if err := l.db.Write(batch, l.wo); err != nil {
		return Nil, errors.Wrapf(err, "failed to write %v", id)
	}

	l.next++
	return id, nil
}

func (l *Level) Get(id PageID) ([]byte, error) {
	d, err := l.db.Get(pageKey(id), nil)
	if err == leveldb.ErrNotFound {
		return nil, errors.Wrapf(customerrors.ErrPageNotFound, "get %v", id)
	} else if err != nil {
		return nil, errors.Wrapf(err, "failed to read %v", id)
	}
	return d, nil
}

func (l *Level) Free(id PageID) error {
	key := pageKey(id)
	ok, err := l.db.Has(key, nil)
	if err != nil {
		return errors.Wrapf(err, "failed to look up %v", id)
	} else if !ok {
		return errors.Wrapf(customerrors.ErrPageNotFound, "free %v", id)
	}
	return errors.Wrapf(l.db.Delete(key, l.wo), "failed to delete %v", id)
}

func (l *Level) Count() (int, error) {
	iter := l.db.NewIterator(util.BytesPrefix(pagePrefix), nil)
	defer iter.Release()

	n := 0
	for iter.Next() {
		n++
	}
	return n, errors.Wrap(iter.Error(), "failed to iterate pages")
}

func (l *Level) ReadMeta() ([]byte, error) {
	d, err := l.db.Get(metaKey, nil)
	if err == leveldb.ErrNotFound {
		return nil, customerrors.ErrNotFound
	}
	return d, errors.Wrap(err, "failed to read meta")
}

func (l *Level) WriteMeta(d []byte) error {
	return errors.Wrap(l.db.Put(metaKey, d, l.wo), "failed to write meta")
}

func (l *Level) Close() error {
	return l.db.Close()
}

func pageKey(id PageID) []byte {
	key := make([]byte, len(pagePrefix)+8)
	copy(key, pagePrefix)
	bin.PutUint64(key[len(pagePrefix):], uint64(id))
	return key
}
