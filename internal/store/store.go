// Package store persists small durable state: run history and watch-mode
// inbound dedup.
package store

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/cybermolt/reply-runner/internal/core"
)

var (
	bucketRuns      = []byte("runs")
	bucketCursor    = []byte("cursors")
	bucketProcessed = []byte("processed")
	bucketMessages  = []byte("messages")
)

// Store wraps a BoltDB instance.
type Store struct {
	db *bolt.DB
}

// New opens (or creates) the database at the given path.
func New(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, err
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, b := range [][]byte{bucketRuns, bucketCursor, bucketProcessed, bucketMessages} {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

// Close releases the underlying DB handle.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// AppendRun records one finished pipeline run under a monotonically increasing key.
func (s *Store) AppendRun(rec core.RunRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketRuns)
		seq, err := b.NextSequence()
		if err != nil {
			return err
		}
		var key [8]byte
		binary.BigEndian.PutUint64(key[:], seq)
		return b.Put(key[:], data)
	})
}

// RecentRuns returns up to n most recent run records, newest first.
func (s *Store) RecentRuns(n int) ([]core.RunRecord, error) {
	var out []core.RunRecord
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketRuns).Cursor()
		for k, v := c.Last(); k != nil && len(out) < n; k, v = c.Prev() {
			var rec core.RunRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				return err
			}
			out = append(out, rec)
		}
		return nil
	})
	return out, err
}

// LastCursor returns the last event timestamp we processed for this sender.
func (s *Store) LastCursor(sender string) (time.Time, error) {
	var ts time.Time
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketCursor).Get([]byte(sender))
		if v == nil {
			return nil
		}
		parsed, err := time.Parse(time.RFC3339Nano, string(v))
		if err != nil {
			return err
		}
		ts = parsed
		return nil
	})
	return ts, err
}

// SaveCursor persists the last event timestamp for a sender.
func (s *Store) SaveCursor(sender string, t time.Time) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketCursor).Put([]byte(sender), []byte(t.UTC().Format(time.RFC3339Nano)))
	})
}

// AlreadyProcessed checks if we've handled an event ID; if not, it marks it
// processed. This is the watch-mode guard against re-running (and hence
// re-publishing) a redelivered message.
func (s *Store) AlreadyProcessed(id string) (bool, error) {
	if id == "" {
		return false, errors.New("empty event id")
	}
	var existed bool
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketProcessed)
		if v := b.Get([]byte(id)); v != nil {
			existed = true
			return nil
		}
		return b.Put([]byte(id), []byte{1})
	})
	return existed, err
}

// RecentMessageSeen returns true if the same sender/body was seen within the
// window, and records the current occurrence.
func (s *Store) RecentMessageSeen(sender, body string, window time.Duration) (bool, error) {
	if window <= 0 {
		window = 30 * time.Second
	}
	sender = strings.ToLower(strings.TrimSpace(sender))
	h := sha256.Sum256([]byte(strings.TrimSpace(body)))
	key := sender + ":" + hex.EncodeToString(h[:])
	now := time.Now().UTC()

	var seen bool
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketMessages)
		if v := b.Get([]byte(key)); v != nil {
			if ts, err := time.Parse(time.RFC3339Nano, string(v)); err == nil && now.Sub(ts) < window {
				seen = true
			}
		}
		return b.Put([]byte(key), []byte(now.Format(time.RFC3339Nano)))
	})
	return seen, err
}
