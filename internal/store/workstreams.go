// Package store persists user-defined workstream groupings as an opaque JSON
// document, with rotating backups taken before each overwrite.
package store

import (
    "bytes"
    "encoding/json"
    "fmt"
    "os"
    "path/filepath"
    "sort"
    "strings"
    "sync"
    "time"

    "github.com/natefinch/atomic"
    "github.com/rs/zerolog"
)

const backupPrefix = "workstreams_backup_"

type Workstreams struct {
    path string
    keep int
    log  zerolog.Logger
    mu   sync.Mutex
}

func NewWorkstreams(path string, log zerolog.Logger) *Workstreams {
    return &Workstreams{path: path, keep: 5, log: log}
}

// Load returns the stored document, or an empty list when none exists yet.
func (w *Workstreams) Load() (json.RawMessage, error) {
    w.mu.Lock(); defer w.mu.Unlock()
    b, err := os.ReadFile(w.path)
    if err != nil {
        if os.IsNotExist(err) { return json.RawMessage("[]"), nil }
        return nil, err
    }
    return json.RawMessage(b), nil
}

// Save backs up the previous non-empty content, writes the new document
// atomically, and prunes old backups down to the newest few.
func (w *Workstreams) Save(data json.RawMessage) error {
    w.mu.Lock(); defer w.mu.Unlock()
    if prev, err := os.ReadFile(w.path); err == nil {
        s := strings.TrimSpace(string(prev))
        if s != "" && s != "[]" && s != "{}" {
            name := filepath.Join(filepath.Dir(w.path), fmt.Sprintf("%s%d.json", backupPrefix, time.Now().Unix()))
            if err := os.WriteFile(name, prev, 0o644); err != nil {
                w.log.Error().Err(err).Str("file", name).Msg("workstreams backup failed")
            }
            w.rotate()
        }
    }
    var buf bytes.Buffer
    if err := json.Indent(&buf, data, "", "  "); err != nil { return fmt.Errorf("workstreams: invalid json: %w", err) }
    return atomic.WriteFile(w.path, &buf)
}

func (w *Workstreams) rotate() {
    dir := filepath.Dir(w.path)
    entries, err := os.ReadDir(dir)
    if err != nil { return }
    var backups []string
    for _, e := range entries {
        if !e.IsDir() && strings.HasPrefix(e.Name(), backupPrefix) { backups = append(backups, e.Name()) }
    }
    sort.Strings(backups)
    for i := 0; i < len(backups)-w.keep; i++ {
        _ = os.Remove(filepath.Join(dir, backups[i]))
    }
}
