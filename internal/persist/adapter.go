// Package persist saves and restores the history log as one durable record.
//
// Persistence is best-effort: every failure is logged and absorbed here so
// that a corrupt record or a full disk never blocks startup or a verification.
package persist

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ppiankov/factstrip/internal/model"
	"github.com/ppiankov/factstrip/internal/store"
)

// DefaultKey is the record key the browser client used
const DefaultKey = "factStripHistory"

// ErrQuotaExceeded is reported when a serialized history is larger than the quota
var ErrQuotaExceeded = errors.New("storage quota exceeded")

// Error is a contained persistence failure. It is only ever logged.
type Error struct {
	Op  string // load, save, delete
	Key string
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("persist %s %q: %v", e.Op, e.Key, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Options tune an Adapter
type Options struct {
	Key        string        // record key, DefaultKey if empty
	QuotaBytes int           // 0 disables the check
	Capacity   int           // entries kept on load, 0 means no truncation
	Timeout    time.Duration // per operation, 5s if zero
}

// Adapter reads and writes the history record
type Adapter struct {
	store    store.Store
	key      string
	quota    int
	capacity int
	timeout  time.Duration
	logger   *zap.Logger
}

// NewAdapter wraps s. A nil logger discards log output.
func NewAdapter(s store.Store, opts Options, logger *zap.Logger) *Adapter {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Key == "" {
		opts.Key = DefaultKey
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Second
	}
	return &Adapter{
		store:    s,
		key:      opts.Key,
		quota:    opts.QuotaBytes,
		capacity: opts.Capacity,
		timeout:  opts.Timeout,
		logger:   logger.Named("persist"),
	}
}

// Load returns the persisted history, newest first. It never fails: a
// missing record yields an empty list. Undecodable entries are logged and
// skipped; a record with nothing usable in it is deleted.
func (a *Adapter) Load() []model.HistoryEntry {
	ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
	defer cancel()

	data, err := a.store.Get(ctx, a.key)
	if errors.Is(err, store.ErrNotFound) {
		return []model.HistoryEntry{}
	}
	if err != nil {
		a.logger.Warn("history record unreadable, starting empty",
			zap.Error(&Error{Op: "load", Key: a.key, Err: err}))
		return []model.HistoryEntry{}
	}

	var raws []json.RawMessage
	if err := json.Unmarshal(data, &raws); err != nil {
		a.discard(ctx, err, len(data))
		return []model.HistoryEntry{}
	}

	entries := make([]model.HistoryEntry, 0, len(raws))
	var lastErr error
	for i, raw := range raws {
		entry, err := decodeEntry(raw)
		if err != nil {
			lastErr = err
			a.logger.Warn("skipping undecodable history entry",
				zap.Int("index", i),
				zap.Error(&Error{Op: "load", Key: a.key, Err: err}))
			continue
		}
		entries = append(entries, entry)
	}
	if len(entries) == 0 && lastErr != nil {
		a.discard(ctx, lastErr, len(data))
		return []model.HistoryEntry{}
	}

	if a.capacity > 0 && len(entries) > a.capacity {
		entries = entries[:a.capacity]
	}

	a.logger.Debug("history loaded", zap.Int("entries", len(entries)))
	return entries
}

func decodeEntry(raw json.RawMessage) (model.HistoryEntry, error) {
	var e model.HistoryEntry
	if err := json.Unmarshal(raw, &e); err != nil {
		return e, err
	}
	if e.ID == "" {
		return e, errors.New("entry has no id")
	}
	return e, nil
}

// discard drops a record that could not be decoded at all
func (a *Adapter) discard(ctx context.Context, cause error, size int) {
	a.logger.Warn("history record corrupted, discarding it",
		zap.Error(&Error{Op: "load", Key: a.key, Err: cause}),
		zap.Int("bytes", size))
	if err := a.store.Delete(ctx, a.key); err != nil {
		a.logger.Warn("failed to delete corrupted history record",
			zap.Error(&Error{Op: "delete", Key: a.key, Err: err}))
	}
}

// Save writes the full history. Failures are logged and dropped; the
// caller's in-memory copy stays authoritative.
func (a *Adapter) Save(entries []model.HistoryEntry) {
	if entries == nil {
		entries = []model.HistoryEntry{}
	}

	data, err := json.Marshal(entries)
	if err != nil {
		a.logger.Warn("history not saved",
			zap.Error(&Error{Op: "save", Key: a.key, Err: err}))
		return
	}

	if a.quota > 0 && len(data) > a.quota {
		a.logger.Warn("history not saved",
			zap.Error(&Error{Op: "save", Key: a.key, Err: ErrQuotaExceeded}),
			zap.Int("bytes", len(data)),
			zap.Int("quota", a.quota))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
	defer cancel()

	if err := a.store.Set(ctx, a.key, data); err != nil {
		a.logger.Warn("history not saved",
			zap.Error(&Error{Op: "save", Key: a.key, Err: err}))
		return
	}
	a.logger.Debug("history saved", zap.Int("entries", len(entries)), zap.Int("bytes", len(data)))
}

// Delete removes the persisted record
func (a *Adapter) Delete() {
	ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
	defer cancel()

	if err := a.store.Delete(ctx, a.key); err != nil {
		a.logger.Warn("history record not deleted",
			zap.Error(&Error{Op: "delete", Key: a.key, Err: err}))
	}
}
