package cache

import (
	"context"
	"errors"

	"github.com/syndtr/goleveldb/leveldb"
)

// LevelDBCache is a persistent provider backed by a leveldb directory.
// It uses the same record layout as BoltCache.
type LevelDBCache struct {
	db *leveldb.DB
}

func NewLevelDBCache(path string) (*LevelDBCache, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, err
	}
	return &LevelDBCache{db: db}, nil
}

func (l *LevelDBCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	record, err := l.db.Get([]byte(key), nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	value, expires, err := decodeRecord(record)
	if err != nil {
		return nil, false, err
	}
	if expired(expires) {
		return nil, false, nil
	}
	return value, true, nil
}

func (l *LevelDBCache) Put(_ context.Context, key string, value []byte, ttlSeconds int) error {
	if ttlSeconds <= 0 {
		return ErrInvalidTTL
	}
	return l.db.Put([]byte(key), encodeRecord(value, expiresAt(now(), ttlSeconds)), nil)
}

// PurgeExpired deletes expired records in a single batch.
func (l *LevelDBCache) PurgeExpired(_ context.Context) (int64, error) {
	it := l.db.NewIterator(nil, nil)
	batch := new(leveldb.Batch)
	for it.Next() {
		if _, expires, err := decodeRecord(it.Value()); err != nil || expired(expires) {
			batch.Delete(append([]byte(nil), it.Key()...))
		}
	}
	it.Release()
	if err := it.Error(); err != nil {
		return 0, err
	}
	if batch.Len() == 0 {
		return 0, nil
	}
	return int64(batch.Len()), l.db.Write(batch, nil)
}

func (l *LevelDBCache) Close() error {
	return l.db.Close()
}
