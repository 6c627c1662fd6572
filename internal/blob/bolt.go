package blob

import (
	"context"
	"encoding/binary"
	"fmt"

	bolt "go.etcd.io/bbolt"
)

var (
	boltBlobsBucket = []byte("blobs")
	boltRevsBucket  = []byte("revs")
)

// BoltStore is a [Store] backed by a single bbolt file. Blobs live in one
// bucket keyed by path; a second bucket carries a per-path revision counter
// used as the precondition Tag. The precondition check and the write happen
// inside one transaction, so the compare-and-swap holds across processes
// sharing the file.
type BoltStore struct {
	db *bolt.DB
}

// OpenBoltStore opens (or creates) the bbolt file at path.
func OpenBoltStore(path string) (*BoltStore, error) {
	db, err := bolt.Open(path, 0o600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt store: %w", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(boltBlobsBucket); err != nil {
			return err
		}
		_, err := tx.CreateBucketIfNotExists(boltRevsBucket)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize bolt store: %w", err)
	}
	return &BoltStore{db: db}, nil
}

// Close releases the underlying database file.
func (bs *BoltStore) Close() error {
	return bs.db.Close()
}

// Exists implements [Store].
func (bs *BoltStore) Exists(ctx context.Context, path string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	var ok bool
	err := bs.db.View(func(tx *bolt.Tx) error {
		ok = tx.Bucket(boltBlobsBucket).Get([]byte(path)) != nil
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("failed to check blob %s: %w", path, err)
	}
	return ok, nil
}

// ReadAll implements [Store].
func (bs *BoltStore) ReadAll(ctx context.Context, path string) ([]byte, Tag, error) {
	if err := ctx.Err(); err != nil {
		return nil, "", err
	}
	var data []byte
	var rev uint64
	err := bs.db.View(func(tx *bolt.Tx) error {
		stored := tx.Bucket(boltBlobsBucket).Get([]byte(path))
		if stored == nil {
			return fmt.Errorf("%w: %s", ErrNotExist, path)
		}
		data = make([]byte, len(stored))
		copy(data, stored)
		rev = boltRev(tx, path)
		return nil
	})
	if err != nil {
		return nil, "", err
	}
	return data, revTag(rev), nil
}

// WriteAll implements [Store].
func (bs *BoltStore) WriteAll(ctx context.Context, path string, data []byte, expect Tag) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return bs.db.Update(func(tx *bolt.Tx) error {
		blobs := tx.Bucket(boltBlobsBucket)
		key := []byte(path)
		var current Tag
		rev := uint64(0)
		if blobs.Get(key) != nil {
			rev = boltRev(tx, path)
			current = revTag(rev)
		}
		if current != expect {
			return fmt.Errorf("%w: %s", ErrConflict, path)
		}
		if err := blobs.Put(key, data); err != nil {
			return fmt.Errorf("failed to write blob %s: %w", path, err)
		}
		var buf [8]byte
		binary.BigEndian.PutUint64(buf[:], rev+1)
		if err := tx.Bucket(boltRevsBucket).Put(key, buf[:]); err != nil {
			return fmt.Errorf("failed to write blob revision %s: %w", path, err)
		}
		return nil
	})
}

// boltRev reads the revision counter for path, 0 if absent.
func boltRev(tx *bolt.Tx, path string) uint64 {
	raw := tx.Bucket(boltRevsBucket).Get([]byte(path))
	if len(raw) != 8 {
		return 0
	}
	return binary.BigEndian.Uint64(raw)
}
