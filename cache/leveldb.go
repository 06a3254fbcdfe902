package cache

import (
	"github.com/rs/zerolog/log"
	"github.com/syndtr/goleveldb/leveldb"
)

// LevelDBStore is a core.Store backed by a LevelDB database directory.
// LevelDB serializes its own writes; no extra locking is needed.
type LevelDBStore struct {
	db *leveldb.DB
}

// NewLevelDBStore opens (or creates) the database at path.
func NewLevelDBStore(path string) (LevelDBStore, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return LevelDBStore{}, err
	}
	return LevelDBStore{db: db}, nil
}

// Close releases the underlying database.
func (l LevelDBStore) Close() error {
	return l.db.Close()
}

func (l LevelDBStore) Get(key string) ([]byte, bool, error) {
	bytes, err := l.db.Get([]byte(key), nil)
	if err == leveldb.ErrNotFound {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return bytes, true, nil
}

func (l LevelDBStore) Put(key string, bytes []byte) error {
	return l.db.Put([]byte(key), bytes, nil)
}

func (l LevelDBStore) Purge(key string) {
	if err := l.db.Delete([]byte(key), nil); err != nil {
		log.Error().Err(err).Str("key", key).Msg("Could not purge entry")
	}
}

func (l LevelDBStore) Has(key string) bool {
	ok, err := l.db.Has([]byte(key), nil)
	return err == nil && ok
}

func (l LevelDBStore) Keys(cb func(string)) {
	it := l.db.NewIterator(nil, nil)
	defer it.Release()
	for it.Next() {
		cb(string(it.Key()))
	}
}
