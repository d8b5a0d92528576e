// Package conflicts persists detected local/network divergences in a JSON
// file under the local root, pending manual resolution.
package conflicts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/iudanet/compendio/internal/models"
)

var (
	// ErrMergeNotImplemented is returned when a conflict is resolved with
	// the merge choice. Manual merge is a declared option that has never
	// been built; it must fail loudly, never fall through to either side.
	ErrMergeNotImplemented = errors.New("manual merge is not implemented")

	// ErrInvalidIndex is returned when the resolution index does not
	// reference a ledger entry. Indices shift after every resolution, so
	// callers must re-fetch the list each time.
	ErrInvalidIndex = errors.New("invalid conflict index")

	// ErrInvalidChoice is returned for an unknown resolution choice.
	ErrInvalidChoice = errors.New("invalid resolution choice")
)

// Resolution choices.
const (
	KeepLocal   = "keep-local"
	KeepNetwork = "keep-network"
	Merge       = "merge"
)

// RecordUpdater applies a resolved snapshot to the registry.
type RecordUpdater interface {
	UpdateByNaturalKey(ctx context.Context, key models.NaturalKey, row models.Row) (int64, error)
}

// Ledger is the file-backed conflict queue. The whole file is read and
// rewritten on each mutation; conflict volume is human-scale, so there is
// no append protocol. The mutex serializes in-process access; the file
// lives under the instance-private local root, so no cross-process
// coordination is needed.
type Ledger struct {
	path   string
	logger *slog.Logger
	mu     sync.Mutex
}

// NewLedger creates a ledger persisted at path.
func NewLedger(path string, logger *slog.Logger) *Ledger {
	return &Ledger{path: path, logger: logger}
}

// Load returns all queued conflicts in order. A missing or unreadable file
// yields an empty list: the ledger degrades to "no known conflicts" rather
// than blocking the application.
func (l *Ledger) Load() []models.ConflictEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.load()
}

// Save rewrites the whole ledger file.
func (l *Ledger) Save(entries []models.ConflictEntry) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.save(entries)
}

// Add appends one conflict. Entries are not deduplicated by key: the same
// key re-detected on a later sync appears again, and resolution removes
// only the entry acted upon.
func (l *Ledger) Add(key models.NaturalKey, local, network models.Row) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	entries := l.load()
	entries = append(entries, models.ConflictEntry{
		Key:     key.String(),
		Local:   local,
		Network: network,
	})
	if err := l.save(entries); err != nil {
		return err
	}

	l.logger.Info("conflict queued", "key", key.String(), "pending", len(entries))
	return nil
}

// Resolve applies the chosen snapshot of the entry at index to the
// registry and removes the entry. KeepLocal and KeepNetwork update the
// act matched by the entry's natural key; Merge fails with
// ErrMergeNotImplemented and leaves the entry queued.
func (l *Ledger) Resolve(ctx context.Context, store RecordUpdater, index int, choice string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	entries := l.load()
	if index < 0 || index >= len(entries) {
		return fmt.Errorf("%w: %d of %d", ErrInvalidIndex, index, len(entries))
	}
	entry := entries[index]

	var row models.Row
	switch choice {
	case KeepLocal:
		row = entry.Local
	case KeepNetwork:
		row = entry.Network
	case Merge:
		return ErrMergeNotImplemented
	default:
		return fmt.Errorf("%w: %q", ErrInvalidChoice, choice)
	}

	key, err := models.ParseNaturalKey(entry.Key)
	if err != nil {
		return fmt.Errorf("corrupt ledger entry: %w", err)
	}

	affected, err := store.UpdateByNaturalKey(ctx, key, row)
	if err != nil {
		return fmt.Errorf("failed to apply %s: %w", choice, err)
	}
	if affected == 0 {
		// The key fields changed again since the conflict was recorded;
		// the natural-key match found nothing. The entry is still
		// consumed, matching the historical behavior.
		l.logger.Warn("resolution matched no rows", "key", entry.Key, "choice", choice)
	}

	entries = append(entries[:index], entries[index+1:]...)
	if err := l.save(entries); err != nil {
		return err
	}

	l.logger.Info("conflict resolved", "key", entry.Key, "choice", choice, "pending", len(entries))
	return nil
}

func (l *Ledger) load() []models.ConflictEntry {
	data, err := os.ReadFile(l.path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			l.logger.Warn("cannot read conflict ledger", "path", l.path, "error", err)
		}
		return []models.ConflictEntry{}
	}

	var entries []models.ConflictEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		l.logger.Warn("corrupt conflict ledger", "path", l.path, "error", err)
		return []models.ConflictEntry{}
	}
	return entries
}

func (l *Ledger) save(entries []models.ConflictEntry) error {
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode conflicts: %w", err)
	}
	if err := os.WriteFile(l.path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write conflict ledger: %w", err)
	}
	return nil
}
