package cache

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/unistudy/unirag/internal/models"
	"go.uber.org/zap"
)

const (
	readRetries   = 3
	readRetryWait = 50 * time.Millisecond
)

// Store persists enriched unit sequences on disk, one JSON file per
// fingerprint. Entries are committed atomically (write to temp, then rename)
// so a partially written entry is never observable as valid. An unreadable or
// corrupt entry is treated as a miss, never as an error.
type Store struct {
	dir    string
	logger *zap.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex // per-fingerprint single-writer locks
}

// NewStore opens (creating if needed) the cache directory at dir.
func NewStore(dir string, logger *zap.Logger) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}
	return &Store{
		dir:    dir,
		logger: logger,
		locks:  make(map[string]*sync.Mutex),
	}, nil
}

// Lock acquires the per-fingerprint lock and returns its release function.
// It serializes ingestion of the same document so two concurrent uploads of
// identical bytes do not both run the full pipeline.
func (s *Store) Lock(fingerprint string) func() {
	s.mu.Lock()
	l, ok := s.locks[fingerprint]
	if !ok {
		l = &sync.Mutex{}
		s.locks[fingerprint] = l
	}
	s.mu.Unlock()
	l.Lock()
	return l.Unlock
}

// Lookup returns the cached unit sequence for fingerprint, or ok=false on a
// miss. Transient read failures are retried with a short backoff so a reader
// is never blocked indefinitely behind a writer on platforms with exclusive
// file locking.
func (s *Store) Lookup(fingerprint string) ([]*models.EnrichedUnit, bool) {
	path := s.entryPath(fingerprint)
	var data []byte
	var err error
	for attempt := 0; attempt < readRetries; attempt++ {
		data, err = os.ReadFile(path)
		if err == nil {
			break
		}
		if os.IsNotExist(err) {
			return nil, false
		}
		time.Sleep(readRetryWait << attempt)
	}
	if err != nil {
		s.logger.Warn("cache entry unreadable, treating as miss",
			zap.String("fingerprint", fingerprint), zap.Error(err))
		return nil, false
	}
	var units []*models.EnrichedUnit
	if err := json.Unmarshal(data, &units); err != nil {
		s.logger.Warn("cache entry corrupt, treating as miss",
			zap.String("fingerprint", fingerprint), zap.Error(err))
		return nil, false
	}
	if len(units) == 0 {
		return nil, false
	}
	return units, true
}

// Put persists units under fingerprint. The entry becomes visible only after
// the final rename; on any failure the temp file is removed and the previous
// entry (if any) is left intact.
func (s *Store) Put(fingerprint string, units []*models.EnrichedUnit) error {
	data, err := json.Marshal(units)
	if err != nil {
		return fmt.Errorf("encode cache entry: %w", err)
	}
	tmp, err := os.CreateTemp(s.dir, fingerprint+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp entry: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("write cache entry: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("close cache entry: %w", err)
	}
	if err := os.Rename(tmpName, s.entryPath(fingerprint)); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("commit cache entry: %w", err)
	}
	return nil
}

func (s *Store) entryPath(fingerprint string) string {
	return filepath.Join(s.dir, fingerprint+".json")
}
