package api

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/samarth1234-dev/land-detection-1-sub000/pkg/artifacts"
	"github.com/samarth1234-dev/land-detection-1-sub000/pkg/audit"
	"github.com/samarth1234-dev/land-detection-1-sub000/pkg/ledger"
	"github.com/samarth1234-dev/land-detection-1-sub000/pkg/parcels"
	"github.com/samarth1234-dev/land-detection-1-sub000/pkg/snapshot"
	"github.com/samarth1234-dev/land-detection-1-sub000/pkg/verifier"
)

type fixture struct {
	audit    *audit.Service
	store    *artifacts.FileStore
	parcelID string
}

func setup(t *testing.T) *fixture {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	ctx := context.Background()
	chain := ledger.NewChain(db, ledger.DialectSQLite)
	require.NoError(t, chain.Init(ctx))
	_, err = chain.EnsureGenesis(ctx)
	require.NoError(t, err)

	auditSvc := audit.NewService(chain)
	parcelSvc := parcels.NewService(auditSvc)
	require.NoError(t, parcelSvc.Init(ctx))
	p, err := parcelSvc.Register(ctx, "clerk-1", snapshot.ParcelFields{
		ParcelRef: "PR-9",
		OwnerName: "A. Rao",
		LandUse:   "residential",
		Boundary:  [][]float64{{77.1, 12.1}, {77.2, 12.1}, {77.2, 12.2}},
	})
	require.NoError(t, err)

	store, err := artifacts.NewFileStore(t.TempDir())
	require.NoError(t, err)
	return &fixture{audit: auditSvc, store: store, parcelID: p.ID}
}

func do(t *testing.T, h http.Handler, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeProblem(t *testing.T, rec *httptest.ResponseRecorder) ProblemDetail {
	t.Helper()
	assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))
	var p ProblemDetail
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&p))
	return p
}

func TestHealth(t *testing.T) {
	f := setup(t)
	rec := do(t, NewServer(f.audit, f.store).Handler(), http.MethodGet, "/health")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestVerifyChain(t *testing.T) {
	f := setup(t)
	rec := do(t, NewServer(f.audit, f.store).Handler(), http.MethodGet, "/api/v1/ledger/verify")
	require.Equal(t, http.StatusOK, rec.Code)

	var report verifier.ChainReport
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&report))
	assert.True(t, report.Valid)
	assert.Equal(t, 2, report.TotalBlocks)
}

func TestListBlocks(t *testing.T) {
	f := setup(t)
	h := NewServer(f.audit, f.store).Handler()

	rec := do(t, h, http.MethodGet, "/api/v1/ledger/blocks?from=1&limit=1")
	require.Equal(t, http.StatusOK, rec.Code)
	var page blockPage
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&page))
	assert.Equal(t, int64(2), page.Total)
	require.Len(t, page.Blocks, 1)
	assert.Equal(t, int64(1), page.Blocks[0].Index)
	assert.Equal(t, ledger.EventParcelRegistered, page.Blocks[0].EventType)

	for _, q := range []string{"limit=0", "limit=9999", "from=-1", "from=x"} {
		rec = do(t, h, http.MethodGet, "/api/v1/ledger/blocks?"+q)
		assert.Equal(t, http.StatusBadRequest, rec.Code, q)
		assert.Equal(t, http.StatusBadRequest, decodeProblem(t, rec).Status)
	}
}

func TestGetBlock(t *testing.T) {
	f := setup(t)
	h := NewServer(f.audit, f.store).Handler()

	rec := do(t, h, http.MethodGet, "/api/v1/ledger/blocks/0")
	require.Equal(t, http.StatusOK, rec.Code)
	var b ledger.Block
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&b))
	assert.Equal(t, ledger.GenesisPreviousHash, b.PreviousHash)

	rec = do(t, h, http.MethodGet, "/api/v1/ledger/blocks/42")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	p := decodeProblem(t, rec)
	assert.Equal(t, "/api/v1/ledger/blocks/42", p.Instance)
	assert.NotEmpty(t, p.RequestID)

	rec = do(t, h, http.MethodGet, "/api/v1/ledger/blocks/abc")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestVerifyEntity(t *testing.T) {
	f := setup(t)
	h := NewServer(f.audit, f.store).Handler()

	rec := do(t, h, http.MethodGet, "/api/v1/ledger/entities/land_parcel/"+f.parcelID+"/verify")
	require.Equal(t, http.StatusOK, rec.Code)
	var report verifier.EntityReport
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&report))
	assert.True(t, report.Valid)
	assert.Equal(t, 1, report.EventCount)

	rec = do(t, h, http.MethodGet, "/api/v1/ledger/entities/spaceship/1/verify")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, h, http.MethodGet, "/api/v1/ledger/entities/land_parcel/missing/verify")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestExport(t *testing.T) {
	f := setup(t)
	h := NewServer(f.audit, f.store).Handler()

	rec := do(t, h, http.MethodPost, "/api/v1/ledger/export")
	require.Equal(t, http.StatusCreated, rec.Code)
	var res exportResult
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&res))
	assert.True(t, res.Valid)
	assert.Equal(t, 2, res.TotalBlocks)

	bundle, err := audit.LoadBundle(context.Background(), f.store, res.Ref)
	require.NoError(t, err)
	assert.Equal(t, res.ChainHead, bundle.ChainHead)

	rec = do(t, h, http.MethodGet, "/api/v1/ledger/export")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestExport_NoStore(t *testing.T) {
	f := setup(t)
	rec := do(t, NewServer(f.audit, nil).Handler(), http.MethodPost, "/api/v1/ledger/export")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestRateLimit(t *testing.T) {
	f := setup(t)
	h := NewServer(f.audit, f.store, WithLimiter(NewMemoryLimiter(0.001, 1))).Handler()

	assert.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/health").Code)
	rec := do(t, h, http.MethodGet, "/health")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))
	assert.Equal(t, http.StatusTooManyRequests, decodeProblem(t, rec).Status)
}

type brokenLimiter struct{}

func (brokenLimiter) Allow(context.Context, string) (bool, error) {
	return false, errors.New("connection refused")
}

func TestRateLimit_FailsOpen(t *testing.T) {
	f := setup(t)
	h := NewServer(f.audit, f.store, WithLimiter(brokenLimiter{})).Handler()
	assert.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/health").Code)
}

func TestMemoryLimiter_Evict(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	l := NewMemoryLimiter(1, 1)
	l.now = func() time.Time { return now }

	ok, err := l.Allow(context.Background(), "10.0.0.1")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, _ = l.Allow(context.Background(), "10.0.0.1")
	assert.False(t, ok)

	now = now.Add(10 * time.Minute)
	l.evict()
	assert.Empty(t, l.visitors)
}

func TestWriteInternal_HidesCause(t *testing.T) {
	f := setup(t)
	s := NewServer(f.audit, f.store)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	writeInternal(rec, req, s.logger, errors.New("pq: connection refused to host=10.0.0.1"))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.False(t, strings.Contains(rec.Body.String(), "10.0.0.1"))
}

// Requires a reachable Redis; set REDIS_URL to run.
func TestRedisLimiter_Integration(t *testing.T) {
	url := os.Getenv("REDIS_URL")
	if url == "" {
		t.Skip("REDIS_URL not set")
	}
	l, err := NewRedisLimiter(url, 1, 1)
	require.NoError(t, err)
	defer l.Close()
	l.prefix = "landledger:test:" + time.Now().Format("150405.000000") + ":"

	ctx := context.Background()
	ok, err := l.Allow(ctx, "client")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = l.Allow(ctx, "client")
	require.NoError(t, err)
	assert.False(t, ok)

	time.Sleep(1100 * time.Millisecond)
	ok, err = l.Allow(ctx, "client")
	require.NoError(t, err)
	assert.True(t, ok)
}
