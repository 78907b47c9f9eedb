// Package boltstore keeps catalog documents in a bbolt database, one
// lz4-compressed value per stream key. Its readers and writers satisfy the
// persist stream interfaces with kind "bolt", so any format that does not
// need a file (JSON) can load and save through it.
package boltstore

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"log"
	"os"
	"sort"
	"time"

	bbolt "go.etcd.io/bbolt"

	"github.com/crystal-mush/gorom/pkg/persist"
)

// ErrNotFound is returned by Reader for a key with no stored value.
var ErrNotFound = errors.New("boltstore: no such catalog")

// Store wraps a bbolt database.
type Store struct {
	bolt *bbolt.DB
}

// Open opens or creates a bbolt database file and ensures all buckets exist.
func Open(path string) (*Store, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("boltstore: open %s: %w", path, err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{bucketMeta, bucketCatalogs} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		meta := tx.Bucket(bucketMeta)
		if v := meta.Get(keyVersion); v != nil {
			if got := binary.BigEndian.Uint32(v); got != storeVersion {
				return fmt.Errorf("store version %d, want %d", got, storeVersion)
			}
			return nil
		}
		buf := make([]byte, 4)
		binary.BigEndian.PutUint32(buf, storeVersion)
		return meta.Put(keyVersion, buf)
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("boltstore: init %s: %w", path, err)
	}
	return &Store{bolt: db}, nil
}

// Close closes the underlying bbolt database.
func (s *Store) Close() error {
	if s.bolt != nil {
		return s.bolt.Close()
	}
	return nil
}

// Path returns the filesystem path of the underlying bbolt database.
func (s *Store) Path() string {
	if s.bolt != nil {
		return s.bolt.Path()
	}
	return ""
}

// Put stores a catalog document under key.
func (s *Store) Put(key string, doc []byte) error {
	packed, err := compress(doc)
	if err != nil {
		return fmt.Errorf("boltstore: %s: %w", key, err)
	}
	return s.bolt.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketCatalogs).Put(catalogKey(key), packed)
	})
}

// Get returns the document stored under key.
func (s *Store) Get(key string) ([]byte, error) {
	var packed []byte
	err := s.bolt.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket(bucketCatalogs).Get(catalogKey(key))
		if v == nil {
			return fmt.Errorf("%w: %s", ErrNotFound, key)
		}
		packed = bytes.Clone(v)
		return nil
	})
	if err != nil {
		return nil, err
	}
	doc, err := decompress(packed)
	if err != nil {
		return nil, fmt.Errorf("boltstore: %s: %w", key, err)
	}
	return doc, nil
}

// Keys returns every stored key, sorted.
func (s *Store) Keys() []string {
	var keys []string
	s.bolt.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketCatalogs).ForEach(func(k, _ []byte) error {
			keys = append(keys, string(k))
			return nil
		})
	})
	sort.Strings(keys)
	return keys
}

// HasData returns true if any catalog has been stored.
func (s *Store) HasData() bool {
	hasData := false
	s.bolt.View(func(tx *bbolt.Tx) error {
		if tx.Bucket(bucketCatalogs).Stats().KeyN > 0 {
			hasData = true
		}
		return nil
	})
	return hasData
}

// PutSnapshotInfo records metadata about a completed snapshot.
func (s *Store) PutSnapshotInfo(info *SnapshotInfo) error {
	data, err := encodeSnapshot(info)
	if err != nil {
		return fmt.Errorf("boltstore: encode snapshot info: %w", err)
	}
	return s.bolt.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketMeta).Put(keySnapshot, data)
	})
}

// SnapshotInfo returns the last snapshot's metadata, or nil if none.
func (s *Store) SnapshotInfo() (*SnapshotInfo, error) {
	var data []byte
	s.bolt.View(func(tx *bbolt.Tx) error {
		if v := tx.Bucket(bucketMeta).Get(keySnapshot); v != nil {
			data = bytes.Clone(v)
		}
		return nil
	})
	if data == nil {
		return nil, nil
	}
	return decodeSnapshot(data)
}

// Backup creates a hot snapshot of the bbolt database using tx.WriteTo().
func (s *Store) Backup(path string) error {
	return s.bolt.View(func(tx *bbolt.Tx) error {
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("boltstore: create backup %s: %w", path, err)
		}
		defer f.Close()
		_, err = tx.WriteTo(f)
		if err != nil {
			return fmt.Errorf("boltstore: write backup: %w", err)
		}
		log.Printf("boltstore: backup written to %s", path)
		return nil
	})
}

// Reader returns a stream over the document stored under key.
func (s *Store) Reader(key string) (*Reader, error) {
	doc, err := s.Get(key)
	if err != nil {
		return nil, err
	}
	return &Reader{mem: persist.NewMemReader(doc)}, nil
}

// Writer returns a stream that stores everything written to it under key
// when flushed.
func (s *Store) Writer(key string) *Writer {
	return &Writer{store: s, key: key}
}

// Reader is a persist.Reader over a stored document.
type Reader struct {
	mem *persist.MemReader
}

func (r *Reader) GetByte() (byte, error)  { return r.mem.GetByte() }
func (r *Reader) Fill() ([]byte, error)   { return r.mem.Fill() }
func (r *Reader) Kind() persist.StreamKind { return persist.StreamBolt }

// Writer is a persist.Writer that commits to the store on Flush.
type Writer struct {
	store *Store
	key   string
	buf   bytes.Buffer
}

func (w *Writer) Write(p []byte) (int, error) { return w.buf.Write(p) }
func (w *Writer) PutByte(b byte) error        { return w.buf.WriteByte(b) }
func (w *Writer) Kind() persist.StreamKind    { return persist.StreamBolt }

// Flush compresses and stores the buffered document in one transaction.
func (w *Writer) Flush() error {
	return w.store.Put(w.key, w.buf.Bytes())
}

// Len returns the number of uncompressed bytes buffered.
func (w *Writer) Len() int { return w.buf.Len() }
