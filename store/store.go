// Package store keeps a history of fetched manifests in a bbolt database.
package store

import (
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"go.etcd.io/bbolt"
)

var ErrNotFound = errors.New("no snapshot stored")

var manifestsBucketName = []byte("manifests")

// Snapshot is one fetched revision of a manifest.
type Snapshot struct {
	URL       string    `json:"url"`
	FetchedAt time.Time `json:"fetched_at"`
	Type      string    `json:"type"`
	Periods   int       `json:"periods"`
	Body      []byte    `json:"body"`
}

type Store struct {
	db *bbolt.DB
}

func Open(path string) (*Store, error) {
	opts := &bbolt.Options{ //nolint:exhaustruct
		NoFreelistSync: true,
		ReadOnly:       false,
		Timeout:        1 * time.Second,
		NoGrowSync:     false,
		FreelistType:   bbolt.FreelistArrayType,
	}
	db, err := bbolt.Open(path, 0o600, opts)
	if nil != err {
		return nil, fmt.Errorf("failed to open database: %v", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(manifestsBucketName); nil != err {
			return fmt.Errorf("failed to create manifests bucket: %v", err)
		}

		return nil
	})
	if nil != err {
		return nil, errors.Join(err, db.Close())
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	if err := s.db.Close(); nil != err {
		return fmt.Errorf("failed to close database: %v", err)
	}

	return nil
}

// Snapshots of one manifest are keyed by fetch time so that cursor order is
// chronological.
func snapshotKey(t time.Time) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, uint64(t.UnixNano())) //nolint:gosec

	return key
}

func (s *Store) Put(snap Snapshot) error {
	value, err := json.Marshal(snap)
	if nil != err {
		return fmt.Errorf("failed to encode snapshot: %v", err)
	}

	err = s.db.Update(func(tx *bbolt.Tx) error {
		b, err := tx.Bucket(manifestsBucketName).CreateBucketIfNotExists([]byte(snap.URL))
		if nil != err {
			return fmt.Errorf("failed to create manifest bucket: %v", err)
		}

		if err := b.Put(snapshotKey(snap.FetchedAt), value); nil != err {
			return fmt.Errorf("failed to store snapshot: %v", err)
		}

		return nil
	})
	if nil != err {
		return fmt.Errorf("failed to store snapshot: %v", err)
	}

	return nil
}

// Latest returns the most recent snapshot of url.
func (s *Store) Latest(url string) (*Snapshot, error) {
	snaps, err := s.History(url, 1)
	if nil != err {
		return nil, err
	}

	return &snaps[0], nil
}

// History returns up to limit snapshots of url, newest first. A non-positive
// limit returns all of them.
func (s *Store) History(url string, limit int) ([]Snapshot, error) {
	var out []Snapshot
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(manifestsBucketName).Bucket([]byte(url))
		if nil == b {
			return ErrNotFound
		}

		c := b.Cursor()
		for k, v := c.Last(); nil != k; k, v = c.Prev() {
			var snap Snapshot
			if err := json.Unmarshal(v, &snap); nil != err {
				return fmt.Errorf("failed to decode snapshot: %v", err)
			}
			out = append(out, snap)

			if limit > 0 && len(out) == limit {
				break
			}
		}

		return nil
	})
	if nil != err {
		if errors.Is(err, ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to load snapshots: %v", err)
	}
	if len(out) == 0 {
		return nil, ErrNotFound
	}

	return out, nil
}

// URLs lists every manifest with stored snapshots.
func (s *Store) URLs() ([]string, error) {
	var out []string
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(manifestsBucketName).ForEachBucket(func(k []byte) error {
			out = append(out, string(k))
			return nil
		})
	})
	if nil != err {
		return nil, fmt.Errorf("failed to list manifests: %v", err)
	}

	return out, nil
}
