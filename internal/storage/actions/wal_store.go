// Package actions persists an append-only audit journal of submitted
// trading actions. The journal feeds the dashboard stream; the decision
// engine never reads it back.
package actions

import (
	"encoding/json"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"github.com/vadiminshakov/gowal"

	"github.com/hagglerbot/haggler/internal/domain"
)

const (
	// DefaultDir is where the journal lives unless configured otherwise.
	DefaultDir = "./wal/actions"

	segmentThreshold = 1000
	maxSegments      = 100

	actionKeyPrefix = "action_"
)

// WALStore appends action records to a write-ahead log.
type WALStore struct {
	wal *gowal.Wal
	mu  sync.RWMutex
}

// NewWALStore initializes a WAL-backed action journal in dir.
func NewWALStore(dir string) (*WALStore, error) {
	if dir == "" {
		dir = DefaultDir
	}

	cfg := gowal.Config{
		Dir:              dir,
		Prefix:           "journal_",
		SegmentThreshold: segmentThreshold,
		MaxSegments:      maxSegments,
		IsInSyncDiskMode: true,
	}

	wal, err := gowal.NewWAL(cfg)
	if err != nil {
		return nil, errors.Wrap(err, "init action journal WAL")
	}

	return &WALStore{wal: wal}, nil
}

// Append writes one action record to the journal.
func (s *WALStore) Append(record domain.ActionRecord) error {
	if s == nil || s.wal == nil {
		return errors.New("action journal is not initialized")
	}
	if record.Kind == "" {
		return errors.New("action record kind is required")
	}

	payload, err := json.Marshal(record)
	if err != nil {
		return errors.Wrap(err, "marshal action record")
	}

	key := actionKeyPrefix + string(record.Kind)

	s.mu.Lock()
	defer s.mu.Unlock()

	nextIndex := s.wal.CurrentIndex() + 1
	return s.wal.Write(nextIndex, key, payload)
}

// RecordsAfter returns journal entries written after the given WAL index,
// oldest first.
func (s *WALStore) RecordsAfter(index uint64) ([]domain.ActionRecordEntry, error) {
	if s == nil || s.wal == nil {
		return nil, errors.New("action journal is not initialized")
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	current := s.wal.CurrentIndex()
	if current <= index {
		return nil, nil
	}

	entries := make([]domain.ActionRecordEntry, 0, current-index)
	for idx := index + 1; idx <= current; idx++ {
		key, payload, err := s.wal.Get(idx)
		if err != nil {
			continue
		}
		if !strings.HasPrefix(key, actionKeyPrefix) {
			continue
		}
		var record domain.ActionRecord
		if err := json.Unmarshal(payload, &record); err != nil {
			return nil, errors.Wrapf(err, "unmarshal action record at index %d", idx)
		}
		entries = append(entries, domain.ActionRecordEntry{Index: idx, Record: record})
	}
	return entries, nil
}

// CurrentIndex returns the latest WAL index stored.
func (s *WALStore) CurrentIndex() uint64 {
	if s == nil || s.wal == nil {
		return 0
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.wal.CurrentIndex()
}

// Close releases the underlying WAL.
func (s *WALStore) Close() error {
	if s == nil || s.wal == nil {
		return nil
	}
	return s.wal.Close()
}
