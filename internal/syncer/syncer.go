// Package syncer copies the dataset (registry database, spreadsheet
// mirror, PDF directory) between the local root and the network share,
// gated by connectivity and global-lock ownership.
package syncer

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/iudanet/compendio/internal/conflicts"
	"github.com/iudanet/compendio/internal/localstate"
	"github.com/iudanet/compendio/internal/models"
	"github.com/iudanet/compendio/internal/netshare"
	"github.com/iudanet/compendio/internal/registry"
)

// Prober reports whether the network root is reachable.
type Prober interface {
	Online() bool
}

// LockHolder reports whether this instance holds the global write lock.
type LockHolder interface {
	HoldsGlobal() bool
}

// Syncer performs whole-file synchronization. Copies are per-file
// best-effort: a failure on one file is logged and does not roll back the
// files already copied; the overall result reflects whether every step
// completed.
type Syncer struct {
	probe   Prober
	locks   LockHolder
	network netshare.Layout
	local   netshare.Layout
	ledger  *conflicts.Ledger
	state   *localstate.Store
	logger  *slog.Logger
}

// New creates a synchronizer between the two roots.
func New(probe Prober, locks LockHolder, network, local netshare.Layout,
	ledger *conflicts.Ledger, state *localstate.Store, logger *slog.Logger) *Syncer {
	return &Syncer{
		probe:   probe,
		locks:   locks,
		network: network,
		local:   local,
		ledger:  ledger,
		state:   state,
		logger:  logger,
	}
}

// PullFromNetwork copies the dataset network → local, overwriting local
// copies unconditionally: the network is authoritative on pull. Offline it
// is a no-op returning false. Before the local database is overwritten,
// unpushed local edits are diffed against the network copy and divergences
// are queued in the conflict ledger.
func (s *Syncer) PullFromNetwork(ctx context.Context) bool {
	if !s.probe.Online() {
		s.logger.Info("offline, using local dataset")
		return false
	}

	s.detectConflicts(ctx)

	ok := true
	for _, name := range []string{netshare.DBFileName, netshare.MirrorFileName} {
		src := filepath.Join(s.network.Root, name)
		dst := filepath.Join(s.local.Root, name)
		if err := copyFile(src, dst); err != nil {
			s.logger.Error("pull failed", "file", name, "error", err)
			ok = false
		}
	}

	if err := s.copyPDFs(s.network.PDFDir(), s.local.PDFDir()); err != nil {
		s.logger.Error("pull of pdf directory failed", "error", err)
		ok = false
	}

	if ok {
		if err := s.state.SaveLastPull(time.Now()); err != nil {
			s.logger.Warn("cannot record pull time", "error", err)
		}
		s.logger.Info("pull from network completed")
	}
	return ok
}

// PushToNetwork copies the dataset local → network, overwriting network
// copies unconditionally. It refuses (returning false, copying nothing)
// unless online and holding the global lock: only the lock holder may
// push, so two instances never race to overwrite the shared copy.
func (s *Syncer) PushToNetwork(ctx context.Context) bool {
	if !s.probe.Online() {
		return false
	}
	if !s.locks.HoldsGlobal() {
		s.logger.Info("not holding global lock, push refused")
		return false
	}

	ok := true
	for _, name := range []string{netshare.DBFileName, netshare.MirrorFileName} {
		src := filepath.Join(s.local.Root, name)
		dst := filepath.Join(s.network.Root, name)
		if err := copyFile(src, dst); err != nil {
			s.logger.Error("push failed", "file", name, "error", err)
			ok = false
		}
	}

	if err := s.copyPDFs(s.local.PDFDir(), s.network.PDFDir()); err != nil {
		s.logger.Error("push of pdf directory failed", "error", err)
		ok = false
	}

	if ok {
		if err := s.state.SaveLastPush(time.Now()); err != nil {
			s.logger.Warn("cannot record push time", "error", err)
		}
		s.logger.Info("push to network completed")
	}
	return ok
}

// detectConflicts diffs local rows against network rows by natural key and
// queues one ledger entry per divergent pair, both snapshots verbatim.
// It runs only when local edits exist that were never pushed; a failure is
// logged and the pull proceeds, leaving the record in its last-synchronized
// state until the next chance to detect.
func (s *Syncer) detectConflicts(ctx context.Context) {
	lastEdit, err := s.state.LastLocalEdit()
	if err != nil {
		s.logger.Warn("cannot read last edit time", "error", err)
		return
	}
	lastPush, err := s.state.LastPush()
	if err != nil {
		s.logger.Warn("cannot read last push time", "error", err)
		return
	}
	if lastEdit.IsZero() || !lastEdit.After(lastPush) {
		return
	}

	localRows, err := registry.LoadRows(ctx, s.local.DBFile())
	if err != nil {
		s.logger.Warn("conflict detection skipped, cannot read local rows", "error", err)
		return
	}
	networkRows, err := registry.LoadRows(ctx, s.network.DBFile())
	if err != nil {
		s.logger.Warn("conflict detection skipped, cannot read network rows", "error", err)
		return
	}

	detected := 0
	for keyStr, localRow := range localRows {
		networkRow, exists := networkRows[keyStr]
		if !exists || localRow.Equal(networkRow) {
			continue
		}
		key, err := models.ParseNaturalKey(keyStr)
		if err != nil {
			s.logger.Warn("skipping malformed key", "key", keyStr, "error", err)
			continue
		}
		if err := s.ledger.Add(key, localRow, networkRow); err != nil {
			s.logger.Error("cannot queue conflict", "key", keyStr, "error", err)
			continue
		}
		detected++
	}
	if detected > 0 {
		s.logger.Warn("divergent local edits detected", "conflicts", detected)
	}
}

// copyPDFs copies every .pdf file from srcDir to dstDir. A missing source
// directory is not an error; individual file failures abort with the first
// error after the files before it were already copied.
func (s *Syncer) copyPDFs(srcDir, dstDir string) error {
	entries, err := os.ReadDir(srcDir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return err
	}

	if err := os.MkdirAll(dstDir, 0o755); err != nil {
		return err
	}

	for _, entry := range entries {
		if entry.IsDir() || !strings.EqualFold(filepath.Ext(entry.Name()), ".pdf") {
			continue
		}
		src := filepath.Join(srcDir, entry.Name())
		dst := filepath.Join(dstDir, entry.Name())
		if err := copyFile(src, dst); err != nil {
			return err
		}
	}
	return nil
}

// copyFile overwrites dst with the contents of src. A missing src is
// skipped silently: a fresh share may not carry every dataset file yet.
func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
