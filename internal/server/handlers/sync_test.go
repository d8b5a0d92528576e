package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/compendio/internal/conflicts"
	"github.com/iudanet/compendio/internal/localstate"
	"github.com/iudanet/compendio/internal/locking"
	"github.com/iudanet/compendio/internal/models"
	"github.com/iudanet/compendio/internal/netshare"
	"github.com/iudanet/compendio/internal/policy"
	"github.com/iudanet/compendio/internal/registry"
	"github.com/iudanet/compendio/internal/syncer"
	"github.com/iudanet/compendio/pkg/api"
)

type syncFixture struct {
	handler *SyncHandler
	store   *registry.Store
	locks   *locking.Manager
	probe   *netshare.Probe
	ledger  *conflicts.Ledger
	state   *localstate.Store
	guard   *policy.Guard
	network netshare.Layout
	local   netshare.Layout
}

func newSyncFixture(t *testing.T, networkRoot string) *syncFixture {
	t.Helper()
	logger := testLogger()

	network := netshare.Layout{Root: networkRoot}
	local := netshare.Layout{Root: t.TempDir()}

	probe := netshare.NewProbe(networkRoot, 0, logger)
	locks := locking.NewManager(network, probe, 0, logger)
	ledger := conflicts.NewLedger(local.ConflictsFile(), logger)

	state, err := localstate.New(filepath.Join(local.Root, "state.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = state.Close() })

	store, err := registry.New(context.Background(), local.DBFile())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	sync := syncer.New(probe, locks, network, local, ledger, state, logger)

	return &syncFixture{
		handler: NewSyncHandler(logger, sync, store, probe, locks, ledger),
		store:   store,
		locks:   locks,
		probe:   probe,
		ledger:  ledger,
		state:   state,
		guard:   policy.NewGuard(locks, probe, logger),
		network: network,
		local:   local,
	}
}

func (f *syncFixture) conflictsHandler() *ConflictsHandler {
	return NewConflictsHandler(testLogger(), f.ledger, f.store, f.guard, f.state, "tester")
}

func TestSyncPull_Offline(t *testing.T) {
	f := newSyncFixture(t, filepath.Join(t.TempDir(), "unreachable"))

	rec := httptest.NewRecorder()
	f.handler.Pull(rec, httptest.NewRequest(http.MethodPost, "/", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp api.SyncResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.False(t, resp.OK)
}

func TestSyncPullPushRoundTrip(t *testing.T) {
	share := t.TempDir()
	f := newSyncFixture(t, share)
	ctx := context.Background()

	// Local edit, then push while holding the global lock.
	_, err := f.store.Create(ctx, &models.Atto{
		Anno: "2024", Numero: "17", Tipologia: "delibera", Fonte: "giunta", Oggetto: "x",
	})
	require.NoError(t, err)
	require.True(t, f.locks.AcquireGlobal())

	rec := httptest.NewRecorder()
	f.handler.Push(rec, httptest.NewRequest(http.MethodPost, "/", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var resp api.SyncResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.True(t, resp.OK)

	// The share now carries a complete database a second instance can read.
	rows, err := registry.LoadRows(ctx, f.network.DBFile())
	require.NoError(t, err)
	assert.Len(t, rows, 1)

	// Pull it back: the registry connection survives the file swap.
	rec = httptest.NewRecorder()
	f.handler.Pull(rec, httptest.NewRequest(http.MethodPost, "/", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.True(t, resp.OK)

	atti, err := f.store.Search(ctx, registry.SearchFilter{})
	require.NoError(t, err)
	assert.Len(t, atti, 1)
}

func TestSyncPush_RefusedWithoutLock(t *testing.T) {
	f := newSyncFixture(t, t.TempDir())

	rec := httptest.NewRecorder()
	f.handler.Push(rec, httptest.NewRequest(http.MethodPost, "/", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp api.SyncResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.False(t, resp.OK)
}

func TestStatus_OnlineHoldingLock(t *testing.T) {
	f := newSyncFixture(t, t.TempDir())
	require.True(t, f.locks.AcquireGlobal())

	rec := httptest.NewRecorder()
	f.handler.Status(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp api.StatusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Online)
	assert.True(t, resp.HoldsGlobalLock)
	assert.Equal(t, "allow", resp.WriteAccess)
	assert.Zero(t, resp.PendingConflicts)
	assert.Zero(t, resp.TotalAtti)
}

func TestStatus_LockHeldElsewhere(t *testing.T) {
	share := t.TempDir()
	f := newSyncFixture(t, share)

	other := locking.NewManager(f.network, f.probe, 0, testLogger())
	require.True(t, other.AcquireGlobal())

	rec := httptest.NewRecorder()
	f.handler.Status(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp api.StatusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "deny", resp.WriteAccess)
	require.NotNil(t, resp.LockOwner)
	assert.NotEmpty(t, resp.LockOwner.User)
}

func TestStatus_Offline(t *testing.T) {
	f := newSyncFixture(t, filepath.Join(t.TempDir(), "unreachable"))

	rec := httptest.NewRecorder()
	f.handler.Status(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp api.StatusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.False(t, resp.Online)
	assert.Equal(t, "allow-local-only", resp.WriteAccess)
}

func TestStatus_ReportsPendingConflicts(t *testing.T) {
	f := newSyncFixture(t, t.TempDir())

	key := models.NaturalKey{Anno: "2024", Numero: "17", Tipologia: "delibera", Fonte: "giunta"}
	require.NoError(t, f.ledger.Add(key, models.Row{"oggetto": "a"}, models.Row{"oggetto": "b"}))

	rec := httptest.NewRecorder()
	f.handler.Status(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	var resp api.StatusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.PendingConflicts)
}

func TestConflictsListAndResolve(t *testing.T) {
	f := newSyncFixture(t, t.TempDir())
	ctx := context.Background()

	a := &models.Atto{Anno: "2024", Numero: "17", Tipologia: "delibera", Fonte: "giunta", Oggetto: "current"}
	_, err := f.store.Create(ctx, a)
	require.NoError(t, err)

	local := a.Row()
	local["oggetto"] = "local edit"
	network := a.Row()
	network["oggetto"] = "network edit"
	require.NoError(t, f.ledger.Add(a.Key(), local, network))

	ch := f.conflictsHandler()

	rec := httptest.NewRecorder()
	ch.List(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var listResp api.ConflictsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listResp))
	require.Len(t, listResp.Conflicts, 1)
	assert.Equal(t, 0, listResp.Conflicts[0].Index)
	assert.Equal(t, "local edit", listResp.Conflicts[0].Local["oggetto"])

	// Keep the local snapshot.
	body, err := json.Marshal(api.ResolveRequest{Choice: conflicts.KeepLocal})
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(body))
	req.SetPathValue("index", "0")
	rec = httptest.NewRecorder()
	ch.Resolve(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	got, err := f.store.Get(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, "local edit", got.Oggetto)
	assert.Empty(t, f.ledger.Load())

	// The resolution is a mutation: audited and counted as a local edit.
	events, err := f.store.ListEvents(ctx, 10)
	require.NoError(t, err)
	require.NotEmpty(t, events)
	assert.Equal(t, "resolve_conflict", events[0].Action)
	assert.Equal(t, "tester", events[0].Actor)
	assert.Contains(t, events[0].Details, a.Key().String())
	edit, err := f.state.LastLocalEdit()
	require.NoError(t, err)
	assert.False(t, edit.IsZero())
}

func TestConflictsResolve_Merge(t *testing.T) {
	f := newSyncFixture(t, t.TempDir())

	key := models.NaturalKey{Anno: "2024", Numero: "17", Tipologia: "delibera", Fonte: "giunta"}
	require.NoError(t, f.ledger.Add(key, models.Row{}, models.Row{}))

	ch := f.conflictsHandler()

	body, err := json.Marshal(api.ResolveRequest{Choice: conflicts.Merge})
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(body))
	req.SetPathValue("index", "0")
	rec := httptest.NewRecorder()
	ch.Resolve(rec, req)

	assert.Equal(t, http.StatusNotImplemented, rec.Code)
	assert.Len(t, f.ledger.Load(), 1)
}

func TestConflictsResolve_BadIndex(t *testing.T) {
	f := newSyncFixture(t, t.TempDir())
	ch := f.conflictsHandler()

	body, err := json.Marshal(api.ResolveRequest{Choice: conflicts.KeepLocal})
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(body))
	req.SetPathValue("index", "5")
	rec := httptest.NewRecorder()
	ch.Resolve(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestConflictsResolve_DeniedWhenLockedElsewhere(t *testing.T) {
	f := newSyncFixture(t, t.TempDir())
	ctx := context.Background()

	a := &models.Atto{Anno: "2024", Numero: "17", Tipologia: "delibera", Fonte: "giunta", Oggetto: "current"}
	_, err := f.store.Create(ctx, a)
	require.NoError(t, err)

	local := a.Row()
	local["oggetto"] = "local edit"
	require.NoError(t, f.ledger.Add(a.Key(), local, a.Row()))

	other := locking.NewManager(f.network, f.probe, 0, testLogger())
	require.True(t, other.AcquireGlobal())

	ch := f.conflictsHandler()
	body, err := json.Marshal(api.ResolveRequest{Choice: conflicts.KeepLocal})
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(body))
	req.SetPathValue("index", "0")
	rec := httptest.NewRecorder()
	ch.Resolve(rec, req)
	assert.Equal(t, http.StatusConflict, rec.Code)

	// Nothing was applied and the entry is still queued.
	got, err := f.store.Get(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, "current", got.Oggetto)
	assert.Len(t, f.ledger.Load(), 1)
}

func TestConflictsResolve_SurvivesNextPull(t *testing.T) {
	share := t.TempDir()
	f := newSyncFixture(t, share)
	ctx := context.Background()

	a := &models.Atto{Anno: "2024", Numero: "17", Tipologia: "delibera", Fonte: "giunta", Oggetto: "current"}
	_, err := f.store.Create(ctx, a)
	require.NoError(t, err)
	require.True(t, f.locks.AcquireGlobal())

	rec := httptest.NewRecorder()
	f.handler.Push(rec, httptest.NewRequest(http.MethodPost, "/", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	// The network copy diverges after the push.
	net, err := registry.New(ctx, f.network.DBFile())
	require.NoError(t, err)
	netAtto, err := net.Get(ctx, a.ID)
	require.NoError(t, err)
	netAtto.Oggetto = "network edit"
	require.NoError(t, net.Update(ctx, netAtto))
	require.NoError(t, net.Checkpoint(ctx))
	require.NoError(t, net.Close())

	// A resolution applied after the push must not look already-pushed.
	require.NoError(t, f.state.SaveLastPush(time.Now().Add(-time.Minute)))

	local := a.Row()
	local["oggetto"] = "kept locally"
	require.NoError(t, f.ledger.Add(a.Key(), local, netAtto.Row()))

	ch := f.conflictsHandler()
	body, err := json.Marshal(api.ResolveRequest{Choice: conflicts.KeepLocal})
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(body))
	req.SetPathValue("index", "0")
	rec = httptest.NewRecorder()
	ch.Resolve(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Empty(t, f.ledger.Load())
	require.NoError(t, f.store.Checkpoint(ctx))

	// The next pull sees the resolved row as an unpushed local edit and
	// queues the divergence instead of discarding it.
	rec = httptest.NewRecorder()
	f.handler.Pull(rec, httptest.NewRequest(http.MethodPost, "/", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	entries := f.ledger.Load()
	require.Len(t, entries, 1)
	assert.Equal(t, "kept locally", entries[0].Local["oggetto"])
	assert.Equal(t, "network edit", entries[0].Network["oggetto"])
}

func TestHealth(t *testing.T) {
	rec := httptest.NewRecorder()
	Health(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}
