// Package cache owns the durable ticket-detail store: a single JSON file
// holding the full per-ticket history, loaded and saved as a whole mapping.
package cache

import (
    "bytes"
    "encoding/json"
    "os"
    "sync"
    "time"

    "github.com/michael131468/pioj/internal/domain"
    "github.com/natefinch/atomic"
    "github.com/rs/zerolog"
)

type Store struct {
    path string
    ttl  time.Duration
    log  zerolog.Logger
    mu   sync.Mutex
}

func NewStore(path string, ttl time.Duration, log zerolog.Logger) *Store {
    return &Store{path: path, ttl: ttl, log: log}
}

// Load reads the whole mapping. A missing or unreadable file yields an empty
// mapping; callers then behave as if nothing were cached.
func (s *Store) Load() map[string]domain.CacheEntry {
    s.mu.Lock(); defer s.mu.Unlock()
    out := map[string]domain.CacheEntry{}
    b, err := os.ReadFile(s.path)
    if err != nil {
        if !os.IsNotExist(err) { s.log.Error().Err(err).Str("file", s.path).Msg("cache load failed") }
        return out
    }
    if err := json.Unmarshal(b, &out); err != nil {
        s.log.Error().Err(err).Str("file", s.path).Msg("cache parse failed")
        return map[string]domain.CacheEntry{}
    }
    return out
}

// Save writes the whole mapping atomically; a crash mid-save never leaves a
// partial file behind.
func (s *Store) Save(m map[string]domain.CacheEntry) error {
    s.mu.Lock(); defer s.mu.Unlock()
    b, err := json.MarshalIndent(m, "", "  ")
    if err != nil { return err }
    if err := atomic.WriteFile(s.path, bytes.NewReader(b)); err != nil {
        s.log.Error().Err(err).Str("file", s.path).Msg("cache save failed")
        return err
    }
    return nil
}

// Fresh reports whether the entry is younger than the TTL.
func (s *Store) Fresh(e domain.CacheEntry) bool { return s.FreshAt(e, time.Now().UTC()) }

func (s *Store) FreshAt(e domain.CacheEntry, now time.Time) bool {
    if e.CachedAt.IsZero() { return false }
    return now.Sub(e.CachedAt) < s.ttl
}
