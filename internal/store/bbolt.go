// Package store provides the ephemeral bbolt-backed digest index used when
// a duplicate scan is too large to keep in memory. The index lives in a
// single temporary file that is removed when the index is closed.
package store

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/didzislauva/sdcard-forensics/internal/models"
	"github.com/google/uuid"
	bolt "go.etcd.io/bbolt"
)

// Bucket names used by the digest index.
var bucketDigests = []byte("digests")

// flushEvery is the number of buffered entries written per transaction.
const flushEvery = 8192

// keyLen is digest bytes followed by a big-endian block index, so a cursor
// walk visits equal digests together in index order.
const keyLen = len(models.Digest{}) + 8

// DigestIndex maps block digests to the block indices they occur at.
type DigestIndex struct {
	db      *bolt.DB
	path    string
	pending [][]byte
}

// NewDigestIndex creates an index file in dir, or the system temp
// directory when dir is empty.
func NewDigestIndex(dir string) (*DigestIndex, error) {
	if dir == "" {
		dir = os.TempDir()
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create index directory: %w", err)
	}

	path := filepath.Join(dir, fmt.Sprintf("sdscan-index-%s.db", uuid.NewString()))
	db, err := bolt.Open(path, 0600, &bolt.Options{
		Timeout:        1 * time.Second,
		NoSync:         true,
		NoFreelistSync: true,
	})
	if err != nil {
		return nil, fmt.Errorf("open index: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketDigests)
		return err
	})
	if err != nil {
		db.Close()
		os.Remove(path)
		return nil, fmt.Errorf("create bucket %s: %w", bucketDigests, err)
	}

	return &DigestIndex{db: db, path: path}, nil
}

// Path returns the index file location.
func (x *DigestIndex) Path() string {
	return x.path
}

// Add records that block index carries digest d.
func (x *DigestIndex) Add(d models.Digest, index int64) error {
	key := make([]byte, keyLen)
	copy(key, d[:])
	binary.BigEndian.PutUint64(key[len(d):], uint64(index))
	x.pending = append(x.pending, key)
	if len(x.pending) >= flushEvery {
		return x.flush()
	}
	return nil
}

func (x *DigestIndex) flush() error {
	if len(x.pending) == 0 {
		return nil
	}
	err := x.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketDigests)
		for _, key := range x.pending {
			if err := b.Put(key, nil); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("write index entries: %w", err)
	}
	x.pending = x.pending[:0]
	return nil
}

// Groups returns every digest seen at two or more indices. Groups come out
// in digest order; indices within a group ascend.
func (x *DigestIndex) Groups() ([]models.DuplicateGroup, error) {
	if err := x.flush(); err != nil {
		return nil, err
	}

	var groups []models.DuplicateGroup
	err := x.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketDigests).Cursor()

		var cur models.Digest
		var indices []int64
		emit := func() {
			if len(indices) >= 2 {
				groups = append(groups, models.DuplicateGroup{Digest: cur, Indices: indices})
			}
		}

		for k, _ := c.First(); k != nil; k, _ = c.Next() {
			var d models.Digest
			copy(d[:], k[:len(d)])
			idx := int64(binary.BigEndian.Uint64(k[len(d):]))
			if d != cur || indices == nil {
				emit()
				cur = d
				indices = nil
			}
			indices = append(indices, idx)
		}
		emit()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return groups, nil
}

// Close closes the index and removes its file.
func (x *DigestIndex) Close() error {
	if x.db == nil {
		return nil
	}
	err := x.db.Close()
	x.db = nil
	if rmErr := os.Remove(x.path); rmErr != nil && !os.IsNotExist(rmErr) && err == nil {
		err = rmErr
	}
	return err
}
