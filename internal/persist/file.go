package persist

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/wnt/solforge/internal/config"
	"github.com/wnt/solforge/internal/metrics"
	"github.com/wnt/solforge/internal/models"
)

const snapshotFile = "ledger.json"

// FileAdapter keeps the snapshot in memory as the read path and flushes
// it to a local file with debounced, coalesced writes. Each flush writes
// to a temporary path and renames over the destination, so a crash
// mid-write never leaves a truncated file. A failed flush keeps the
// in-memory snapshot authoritative and retries on the next debounce tick.
//
// The flush path is a small state machine: idle, writing, and
// writing-with-pending. A flush requested while one is in flight is
// queued and re-attempted after the in-flight write completes.
type FileAdapter struct {
	path     string
	debounce time.Duration
	defaults models.Defaults
	logger   zerolog.Logger

	mu      sync.Mutex
	store   *models.Store
	latest  []byte // serialized snapshot awaiting flush
	loaded  bool
	dirty   bool
	writing bool
	pending bool
	closed  bool
	timer   *time.Timer
}

// NewFile creates a file adapter rooted at cfg.DataDir.
func NewFile(cfg config.Config, log zerolog.Logger) (*FileAdapter, error) {
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data dir: %w", err)
	}
	return &FileAdapter{
		path:     filepath.Join(cfg.DataDir, snapshotFile),
		debounce: cfg.FlushDebounce,
		defaults: cfg.Defaults(),
		logger:   log.With().Str("component", "persist_file").Logger(),
	}, nil
}

// Load returns the in-memory snapshot, reading the file only once. A
// missing file initializes an empty snapshot.
func (a *FileAdapter) Load(_ context.Context) (*models.Store, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.loaded {
		return a.store, nil
	}

	data, err := os.ReadFile(a.path)
	if os.IsNotExist(err) {
		a.store = models.NormalizeStore(models.NewStore(), a.defaults)
		a.loaded = true
		a.logger.Info().Str("path", a.path).Msg("No snapshot file, starting empty")
		return a.store, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot: %w", err)
	}

	var store models.Store
	if err := json.Unmarshal(data, &store); err != nil {
		return nil, fmt.Errorf("failed to unmarshal snapshot: %w", err)
	}
	a.store = models.NormalizeStore(&store, a.defaults)
	a.loaded = true
	a.logger.Info().Str("path", a.path).Int("bytes", len(data)).Msg("Snapshot loaded")
	return a.store, nil
}

// Save serializes the snapshot immediately and schedules a debounced
// flush. It never fails on disk errors; the in-memory snapshot stays the
// source of truth until the next successful flush.
func (a *FileAdapter) Save(_ context.Context, store *models.Store) error {
	data, err := json.Marshal(store)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	a.store = store
	a.loaded = true
	a.latest = data
	a.dirty = true
	a.scheduleLocked(a.debounce)
	return nil
}

// Flush forces a synchronous write of any unflushed snapshot.
func (a *FileAdapter) Flush(_ context.Context) error {
	a.mu.Lock()
	// Let an in-flight write finish first.
	for a.writing {
		a.mu.Unlock()
		time.Sleep(5 * time.Millisecond)
		a.mu.Lock()
	}
	if !a.dirty {
		a.mu.Unlock()
		return nil
	}
	data := a.latest
	a.dirty = false
	a.writing = true
	a.mu.Unlock()

	err := a.write(data)

	a.mu.Lock()
	a.writing = false
	if err != nil {
		a.dirty = true
	}
	a.mu.Unlock()
	return err
}

// Close stops the debounce timer and performs a final flush.
func (a *FileAdapter) Close() error {
	a.mu.Lock()
	a.closed = true
	if a.timer != nil {
		a.timer.Stop()
		a.timer = nil
	}
	a.mu.Unlock()
	return a.Flush(context.Background())
}

// scheduleLocked arms the debounce timer if no flush is already
// scheduled. Mutations within the window coalesce into one write.
func (a *FileAdapter) scheduleLocked(d time.Duration) {
	if a.closed || a.timer != nil {
		return
	}
	a.timer = time.AfterFunc(d, a.flush)
}

func (a *FileAdapter) flush() {
	a.mu.Lock()
	a.timer = nil
	if a.writing {
		// Queue behind the in-flight write.
		a.pending = true
		a.mu.Unlock()
		return
	}
	if !a.dirty || a.closed {
		a.mu.Unlock()
		return
	}
	data := a.latest
	a.dirty = false
	a.writing = true
	a.mu.Unlock()

	start := time.Now()
	err := a.write(data)

	a.mu.Lock()
	a.writing = false
	if err != nil {
		// Keep the data dirty and retry on the next cycle.
		a.dirty = true
		metrics.RecordFlush("failed", 0, 0)
		a.logger.Error().Err(err).Msg("Snapshot flush failed, will retry")
		a.scheduleLocked(a.debounce)
	} else {
		metrics.RecordFlush("success", time.Since(start).Seconds(), len(data))
		a.logger.Debug().Int("bytes", len(data)).Msg("Snapshot flushed")
		if a.pending || a.dirty {
			a.pending = false
			a.scheduleLocked(a.debounce)
		}
	}
	a.mu.Unlock()
}

// write performs the atomic temp-file-and-rename write.
func (a *FileAdapter) write(data []byte) error {
	tmp := a.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write temp snapshot: %w", err)
	}
	if err := os.Rename(tmp, a.path); err != nil {
		return fmt.Errorf("failed to rename snapshot: %w", err)
	}
	return nil
}
