package bbolt

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/TecharoHQ/powhash/lib/store"
	"go.etcd.io/bbolt"
)

var bucketName = []byte("results")

const (
	cleanupInterval = 5 * time.Minute
	headerSize      = 8
)

// Store implements store.Interface on top of a bbolt database file.
//
// Every value lives in a single bucket. The stored bytes are an eight byte
// big-endian expiry (Unix nanoseconds) followed by the value itself, so the
// cleanup pass can decide what to drop without looking at the payload.
//
// A bbolt file can only be opened by one process at a time. Use the valkey
// backend when several powhashd instances must see each other's results.
type Store struct {
	bdb    *bbolt.DB
	lg     *slog.Logger
	cancel context.CancelFunc
}

func encodeRecord(value []byte, expires time.Time) []byte {
	buf := make([]byte, headerSize+len(value))
	binary.BigEndian.PutUint64(buf, uint64(expires.UnixNano()))
	copy(buf[headerSize:], value)
	return buf
}

func decodeRecord(raw []byte) (time.Time, []byte, error) {
	if len(raw) < headerSize {
		return time.Time{}, nil, fmt.Errorf("%w: record is %d bytes, need at least %d", store.ErrCantDecode, len(raw), headerSize)
	}

	expires := time.Unix(0, int64(binary.BigEndian.Uint64(raw[:headerSize])))
	return expires, raw[headerSize:], nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	return s.bdb.Update(func(tx *bbolt.Tx) error {
		bkt := tx.Bucket(bucketName)
		if bkt.Get([]byte(key)) == nil {
			return fmt.Errorf("%w: %q", store.ErrNotFound, key)
		}

		return bkt.Delete([]byte(key))
	})
}

// Get returns a copy of the value. An expired value is reported as missing
// and removed in the background.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	var result []byte
	expired := false

	if err := s.bdb.View(func(tx *bbolt.Tx) error {
		raw := tx.Bucket(bucketName).Get([]byte(key))
		if raw == nil {
			return fmt.Errorf("%w: %q", store.ErrNotFound, key)
		}

		expires, value, err := decodeRecord(raw)
		if err != nil {
			return fmt.Errorf("%w: %q", err, key)
		}

		if time.Now().After(expires) {
			expired = true
			return fmt.Errorf("%w: %q", store.ErrNotFound, key)
		}

		// bbolt memory is only valid for the life of the transaction.
		result = bytes.Clone(value)
		return nil
	}); err != nil {
		if expired {
			go s.dropIfExpired(key)
		}
		return nil, err
	}

	return result, nil
}

func (s *Store) Set(ctx context.Context, key string, value []byte, expiry time.Duration) error {
	record := encodeRecord(value, time.Now().Add(expiry))

	return s.bdb.Update(func(tx *bbolt.Tx) error {
		if err := tx.Bucket(bucketName).Put([]byte(key), record); err != nil {
			return fmt.Errorf("%w: %q: %w", store.ErrCantEncode, key, err)
		}

		return nil
	})
}

// Close stops the cleanup loop and closes the database file.
func (s *Store) Close() error {
	s.cancel()
	return s.bdb.Close()
}

// dropIfExpired deletes key unless it was rewritten with a later expiry since
// it was read.
func (s *Store) dropIfExpired(key string) {
	if err := s.bdb.Update(func(tx *bbolt.Tx) error {
		bkt := tx.Bucket(bucketName)
		raw := bkt.Get([]byte(key))
		if raw == nil {
			return nil
		}

		expires, _, err := decodeRecord(raw)
		if err == nil && !time.Now().After(expires) {
			return nil
		}

		return bkt.Delete([]byte(key))
	}); err != nil && !errors.Is(err, bbolt.ErrDatabaseNotOpen) {
		s.lg.Debug("can't drop expired value", "key", key, "err", err)
	}
}

func (s *Store) cleanup() (int, error) {
	now := time.Now()
	dropped := 0

	err := s.bdb.Update(func(tx *bbolt.Tx) error {
		c := tx.Bucket(bucketName).Cursor()

		for k, v := c.First(); k != nil; {
			expires, _, err := decodeRecord(v)
			if err != nil {
				s.lg.Warn("dropping undecodable value", "key", string(k), "err", err)
			}

			if err != nil || now.After(expires) {
				seen := bytes.Clone(k)
				if err := c.Delete(); err != nil {
					return err
				}
				dropped++
				// Next skips an item after Delete, so reposition from the
				// deleted key instead.
				k, v = c.Seek(seen)
				continue
			}

			k, v = c.Next()
		}

		return nil
	})

	return dropped, err
}

func (s *Store) cleanupThread(ctx context.Context) {
	t := time.NewTicker(cleanupInterval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			n, err := s.cleanup()
			if err != nil {
				s.lg.Error("error during bbolt cleanup", "err", err)
				continue
			}
			s.lg.Debug("bbolt cleanup finished", "dropped", n)
		}
	}
}
