// Package locking coordinates write access between application instances
// through marker files on the network share: one global write lock for the
// whole dataset and one advisory lock per record.
package locking

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/user"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/iudanet/compendio/internal/models"
	"github.com/iudanet/compendio/internal/netshare"
)

// Prober reports whether the network root is reachable.
type Prober interface {
	Online() bool
}

// DefaultRecordLockTTL is the staleness threshold after which an
// unreleased record lock is considered abandoned and may be reclaimed.
const DefaultRecordLockTTL = 2 * time.Hour

const lockTimeFormat = "2006-01-02 15:04:05"

// Manager owns this instance's lock state. "Do I hold the global lock" is
// tracked here, never derived from marker existence: the marker is also
// observed by other instances and may legitimately belong to one of them.
//
// Multiple Managers pointed at the same network layout model multiple
// contending instances, which is how the contention tests work.
type Manager struct {
	network   netshare.Layout
	probe     Prober
	recordTTL time.Duration
	logger    *slog.Logger
	host      string
	user      string
	instance  string

	mu          sync.Mutex
	holdsGlobal bool
	heldRecords map[int64]bool
}

// NewManager creates a lock manager for the given network layout.
// A non-positive recordTTL falls back to DefaultRecordLockTTL.
func NewManager(network netshare.Layout, probe Prober, recordTTL time.Duration, logger *slog.Logger) *Manager {
	if recordTTL <= 0 {
		recordTTL = DefaultRecordLockTTL
	}
	return &Manager{
		network:     network,
		probe:       probe,
		recordTTL:   recordTTL,
		logger:      logger,
		host:        hostName(),
		user:        userName(),
		instance:    uuid.NewString(),
		heldRecords: make(map[int64]bool),
	}
}

// AcquireGlobal attempts to take the global write lock. It returns false
// when another instance holds it or the marker cannot be created; it never
// returns an error. Acquiring while already held by this instance succeeds.
func (m *Manager) AcquireGlobal() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.holdsGlobal {
		return true
	}

	// O_EXCL makes existence-check and creation one atomic step; a plain
	// check-then-write would race against another instance doing the same.
	f, err := os.OpenFile(m.network.GlobalLockFile(), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			m.logger.Info("global lock held by another instance", "path", m.network.GlobalLockFile())
		} else {
			m.logger.Warn("cannot create global lock", "path", m.network.GlobalLockFile(), "error", err)
		}
		return false
	}

	if _, err := f.WriteString(m.ownerLine()); err != nil {
		m.logger.Warn("cannot write global lock metadata", "error", err)
	}
	if err := f.Close(); err != nil {
		m.logger.Warn("cannot close global lock", "error", err)
	}

	m.holdsGlobal = true
	m.logger.Info("global lock acquired", "host", m.host, "user", m.user)
	return true
}

// ReleaseGlobal removes the global lock marker if this instance holds it.
// It is a no-op otherwise and safe to call repeatedly, including from a
// deferred shutdown path after an explicit release.
func (m *Manager) ReleaseGlobal() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.holdsGlobal {
		return
	}
	m.holdsGlobal = false

	if err := os.Remove(m.network.GlobalLockFile()); err != nil && !errors.Is(err, fs.ErrNotExist) {
		m.logger.Warn("cannot remove global lock", "path", m.network.GlobalLockFile(), "error", err)
		return
	}
	m.logger.Info("global lock released")
}

// HoldsGlobal reports whether this instance currently holds the global lock.
func (m *Manager) HoldsGlobal() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.holdsGlobal
}

// GlobalLockInfo reads the ownership metadata of the current global lock
// marker, whoever holds it. It returns nil when no marker exists.
func (m *Manager) GlobalLockInfo() *models.LockInfo {
	data, err := os.ReadFile(m.network.GlobalLockFile())
	if err != nil {
		return nil
	}
	info := parseOwnerLine(string(data))
	return &info
}

// AcquireRecord attempts to take the edit lock for one record.
//
// Offline there is nobody to coordinate with, so acquisition always
// succeeds. Acquiring a lock this instance already holds also succeeds.
// Online, an existing marker older than the staleness threshold
// is treated as abandoned and silently reclaimed. Any filesystem error
// counts as "not acquired": record locking is advisory, not safety-critical.
func (m *Manager) AcquireRecord(attoID int64) bool {
	if !m.probe.Online() {
		return true
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.heldRecords[attoID] {
		return true
	}

	if err := os.MkdirAll(m.network.LocksDir(), 0o755); err != nil {
		m.logger.Warn("cannot create locks directory", "path", m.network.LocksDir(), "error", err)
		return false
	}

	path := m.network.RecordLockFile(attoID)
	if fi, err := os.Stat(path); err == nil {
		if time.Since(fi.ModTime()) <= m.recordTTL {
			m.logger.Info("record lock held by another user", "atto_id", attoID)
			return false
		}
		// Abandoned lock, reclaim it.
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			m.logger.Warn("cannot remove stale record lock", "atto_id", attoID, "error", err)
			return false
		}
		m.logger.Info("reclaimed stale record lock", "atto_id", attoID, "age", time.Since(fi.ModTime()))
	} else if !errors.Is(err, fs.ErrNotExist) {
		m.logger.Warn("cannot stat record lock", "atto_id", attoID, "error", err)
		return false
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		// Lost the race to another instance between stat and create.
		m.logger.Info("record lock contended", "atto_id", attoID, "error", err)
		return false
	}
	if _, err := f.WriteString(m.ownerLine()); err != nil {
		m.logger.Warn("cannot write record lock metadata", "atto_id", attoID, "error", err)
	}
	if err := f.Close(); err != nil {
		m.logger.Warn("cannot close record lock", "atto_id", attoID, "error", err)
	}
	m.heldRecords[attoID] = true
	return true
}

// ReleaseRecord removes the edit lock for one record. Offline it is a
// no-op; a missing marker is ignored.
func (m *Manager) ReleaseRecord(attoID int64) {
	if !m.probe.Online() {
		return
	}
	m.mu.Lock()
	delete(m.heldRecords, attoID)
	m.mu.Unlock()
	path := m.network.RecordLockFile(attoID)
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		m.logger.Warn("cannot remove record lock", "atto_id", attoID, "error", err)
	}
}

// ownerLine renders the marker metadata. Two sessions of the same user on
// the same machine are told apart by the per-process instance id; parsers
// that only know the PC/USER/TS fields skip it.
func (m *Manager) ownerLine() string {
	return fmt.Sprintf("PC=%s; USER=%s; TS=%s; SID=%s",
		m.host, m.user, time.Now().Format(lockTimeFormat), m.instance)
}

func parseOwnerLine(line string) models.LockInfo {
	info := models.LockInfo{}
	for _, part := range strings.Split(strings.TrimSpace(line), ";") {
		k, v, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch k {
		case "PC":
			info.Host = v
		case "USER":
			info.User = v
		case "TS":
			info.Timestamp = v
		}
	}
	return info
}

func hostName() string {
	if h, err := os.Hostname(); err == nil && h != "" {
		return h
	}
	return "?"
}

func userName() string {
	if u, err := user.Current(); err == nil && u.Username != "" {
		return u.Username
	}
	return "?"
}
