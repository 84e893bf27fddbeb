package boltstore

import (
	"context"
	"encoding/binary"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	bolt "go.etcd.io/bbolt"
)

// ClaimStore remembers which audit log entries were already handled so a
// replayed gateway event is processed once.
type ClaimStore struct {
	db  *bolt.DB
	ttl time.Duration
	now func() time.Time
}

func encodeMillis(t time.Time) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, uint64(t.UnixMilli()))
	return b
}

func decodeMillis(b []byte) time.Time {
	if len(b) != 8 {
		return time.Time{}
	}
	return time.UnixMilli(int64(binary.BigEndian.Uint64(b)))
}

// Claim records entryID and reports whether this call was the first to do
// so within the TTL.
func (s *ClaimStore) Claim(ctx context.Context, entryID string) (bool, error) {
	now := s.now()
	claimed := false

	err := s.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(BucketAuditClaims)
		if bucket == nil {
			return fmt.Errorf("claims bucket not found")
		}

		key := []byte(entryID)
		if at := bucket.Get(key); at != nil && now.Sub(decodeMillis(at)) < s.ttl {
			return nil
		}
		claimed = true
		return bucket.Put(key, encodeMillis(now))
	})
	if err != nil {
		return false, fmt.Errorf("claim audit entry %s: %w", entryID, err)
	}
	return claimed, nil
}

// Prune deletes claims older than the TTL and returns how many were removed.
func (s *ClaimStore) Prune(ctx context.Context) (int, error) {
	cutoff := s.now().Add(-s.ttl)
	removed := 0

	err := s.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(BucketAuditClaims)
		if bucket == nil {
			return fmt.Errorf("claims bucket not found")
		}

		var stale [][]byte
		err := bucket.ForEach(func(k, v []byte) error {
			if decodeMillis(v).Before(cutoff) {
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
		removed = len(stale)
		return nil
	})
	return removed, err
}

// RunPruner prunes every interval until ctx is done.
func (s *ClaimStore) RunPruner(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := s.Prune(ctx)
			if err != nil {
				log.Warn().Err(err).Msg("boltstore: failed to prune audit claims")
				continue
			}
			if n > 0 {
				log.Debug().Int("removed", n).Msg("boltstore: pruned audit claims")
			}
		}
	}
}
