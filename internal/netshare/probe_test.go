package netshare

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestProbe_Online(t *testing.T) {
	root := t.TempDir()
	p := NewProbe(root, time.Hour, testLogger())

	assert.True(t, p.Online())
}

func TestProbe_OfflineWhenMissing(t *testing.T) {
	p := NewProbe(filepath.Join(t.TempDir(), "nope"), time.Hour, testLogger())

	assert.False(t, p.Online())
}

func TestProbe_OfflineWhenRootIsFile(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "share")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))

	p := NewProbe(path, time.Hour, testLogger())
	assert.False(t, p.Online())
}

func TestProbe_CachesAnswerWithinTTL(t *testing.T) {
	base := t.TempDir()
	root := filepath.Join(base, "share")
	require.NoError(t, os.Mkdir(root, 0o755))

	p := NewProbe(root, time.Hour, testLogger())
	require.True(t, p.Online())

	// The share goes away, but the cached answer survives until the TTL.
	require.NoError(t, os.Remove(root))
	assert.True(t, p.Online())

	// Expire the cache by hand and observe the real state.
	p.mu.Lock()
	p.checked = time.Now().Add(-2 * time.Hour)
	p.mu.Unlock()
	assert.False(t, p.Online())
}

func TestProbe_RecoversWhenShareReturns(t *testing.T) {
	base := t.TempDir()
	root := filepath.Join(base, "share")

	p := NewProbe(root, 0, testLogger())
	require.False(t, p.Online())

	require.NoError(t, os.Mkdir(root, 0o755))
	p.mu.Lock()
	p.checked = time.Now().Add(-time.Minute)
	p.mu.Unlock()

	assert.True(t, p.Online())
}

func TestLayout_Paths(t *testing.T) {
	l := Layout{Root: "/srv/share"}

	assert.Equal(t, filepath.Join("/srv/share", "compendio.db"), l.DBFile())
	assert.Equal(t, filepath.Join("/srv/share", "elenco_atti.csv"), l.MirrorFile())
	assert.Equal(t, filepath.Join("/srv/share", "pdf", "atto_9.pdf"), l.PDFFile("atto_9.pdf"))
	assert.Equal(t, filepath.Join("/srv/share", "locks", "42.lock"), l.RecordLockFile(42))
	assert.Equal(t, filepath.Join("/srv/share", "compendio.lock"), l.GlobalLockFile())
	assert.Equal(t, filepath.Join("/srv/share", "pending_conflicts.json"), l.ConflictsFile())
}
