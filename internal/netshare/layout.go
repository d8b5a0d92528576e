// Package netshare defines the on-disk layout shared by the network root and
// the local working copy, and the connectivity probe for the network root.
package netshare

import (
	"fmt"
	"path/filepath"
)

// Well-known file and directory names inside a dataset root.
const (
	DBFileName        = "compendio.db"
	MirrorFileName    = "elenco_atti.csv"
	PDFDirName        = "pdf"
	GlobalLockName    = "compendio.lock"
	LocksDirName      = "locks"
	ConflictsFileName = "pending_conflicts.json"
)

// Layout resolves paths inside one dataset root. The same layout applies to
// the network root and the local root; the lock files exist only under the
// network root and the conflict ledger only under the local root, but the
// path arithmetic is identical.
type Layout struct {
	Root string
}

func (l Layout) DBFile() string         { return filepath.Join(l.Root, DBFileName) }
func (l Layout) MirrorFile() string     { return filepath.Join(l.Root, MirrorFileName) }
func (l Layout) PDFDir() string         { return filepath.Join(l.Root, PDFDirName) }
func (l Layout) GlobalLockFile() string { return filepath.Join(l.Root, GlobalLockName) }
func (l Layout) LocksDir() string       { return filepath.Join(l.Root, LocksDirName) }
func (l Layout) ConflictsFile() string  { return filepath.Join(l.Root, ConflictsFileName) }

// PDFFile returns the path of one attachment inside the pdf directory.
func (l Layout) PDFFile(name string) string {
	return filepath.Join(l.PDFDir(), name)
}

// RecordLockFile returns the marker path for one record lock.
func (l Layout) RecordLockFile(attoID int64) string {
	return filepath.Join(l.LocksDir(), fmt.Sprintf("%d.lock", attoID))
}
