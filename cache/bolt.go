package cache

import (
	"context"
	"encoding/binary"
	"errors"
	"time"

	bolt "go.etcd.io/bbolt"
)

const defaultBucket = "cache"

// errCorrupt marks stored records too short to hold an expiry header.
var errCorrupt = errors.New("cache: corrupt record")

// BoltCache is a persistent provider backed by a single bbolt file.
// Records are laid out as 8 bytes big endian expiry (unix ms) || raw value.
type BoltCache struct {
	db     *bolt.DB
	bucket []byte
}

func NewBoltCache(path string) (*BoltCache, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, err
	}
	bucket := []byte(defaultBucket)
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucket)
		return err
	}); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &BoltCache{db: db, bucket: bucket}, nil
}

func (b *BoltCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	var out []byte
	var found bool
	err := b.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(b.bucket).Get([]byte(key))
		if v == nil {
			return nil
		}
		value, expires, err := decodeRecord(v)
		if err != nil {
			return err
		}
		if expired(expires) {
			return nil
		}
		// bolt values are only valid inside the transaction
		out = append([]byte(nil), value...)
		found = true
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return out, found, nil
}

func (b *BoltCache) Put(_ context.Context, key string, value []byte, ttlSeconds int) error {
	if ttlSeconds <= 0 {
		return ErrInvalidTTL
	}
	record := encodeRecord(value, expiresAt(now(), ttlSeconds))
	return b.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(b.bucket).Put([]byte(key), record)
	})
}

// PurgeExpired deletes expired records.
func (b *BoltCache) PurgeExpired(_ context.Context) (int64, error) {
	var purged int64
	err := b.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(b.bucket)
		var stale [][]byte
		// deleting through the cursor while iterating skips records
		err := bucket.ForEach(func(k, v []byte) error {
			if _, expires, err := decodeRecord(v); err != nil || expired(expires) {
				stale = append(stale, append([]byte(nil), k...))
			}
			return nil
		})
		if err != nil {
			return err
		}
		for _, k := range stale {
			if err := bucket.Delete(k); err != nil {
				return err
			}
		}
		purged = int64(len(stale))
		return nil
	})
	return purged, err
}

func (b *BoltCache) Close() error {
	if b == nil || b.db == nil {
		return nil
	}
	return b.db.Close()
}

func encodeRecord(value []byte, expires int64) []byte {
	buf := make([]byte, 8+len(value))
	binary.BigEndian.PutUint64(buf[:8], uint64(expires))
	copy(buf[8:], value)
	return buf
}

func decodeRecord(record []byte) ([]byte, int64, error) {
	if len(record) < 8 {
		return nil, 0, errCorrupt
	}
	return record[8:], int64(binary.BigEndian.Uint64(record[:8])), nil
}
