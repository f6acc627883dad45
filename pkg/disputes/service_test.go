package disputes

import (
	"context"
	"database/sql"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/samarth1234-dev/land-detection-1-sub000/pkg/artifacts"
	"github.com/samarth1234-dev/land-detection-1-sub000/pkg/audit"
	"github.com/samarth1234-dev/land-detection-1-sub000/pkg/ledger"
	"github.com/samarth1234-dev/land-detection-1-sub000/pkg/snapshot"
)

func setupService(t *testing.T) (*Service, *audit.Service) {
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
	evidence, err := artifacts.NewFileStore(t.TempDir())
	require.NoError(t, err)
	svc := NewService(auditSvc, evidence)
	require.NoError(t, svc.Init(ctx))
	return svc, auditSvc
}

func newFields() snapshot.DisputeFields {
	lat, lng := 12.9716, 77.5946
	return snapshot.DisputeFields{
		ParcelRef:   "PR-100",
		Type:        "encroachment",
		Description: "Neighbour built a shed across the boundary",
		Latitude:    &lat,
		Longitude:   &lng,
		Bounds:      &snapshot.BoundsFields{North: 12.98, South: 12.96, East: 77.60, West: 77.58},
	}
}

func TestCreate(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()

	d, err := svc.Create(ctx, "user-1", newFields())
	require.NoError(t, err)
	assert.Equal(t, "ENCROACHMENT", d.Type)
	assert.Equal(t, snapshot.StatusOpen, d.Status)
	assert.Equal(t, "MEDIUM", d.Priority)
	assert.Equal(t, int64(1), d.LastBlockIndex)

	stored, err := svc.Get(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, d.LastBlockHash, stored.LastBlockHash)
	require.NotNil(t, stored.SelectionBounds)
	assert.Equal(t, 12.98, stored.SelectionBounds.North)
	assert.Equal(t, []string{}, stored.EvidenceRefs)
}

func TestCreate_RejectsInvalidInput(t *testing.T) {
	svc, _ := setupService(t)

	f := newFields()
	bad := 95.0
	f.Latitude = &bad
	_, err := svc.Create(context.Background(), "user-1", f)
	assert.ErrorIs(t, err, snapshot.ErrInvalid)

	f = newFields()
	f.Status = "resolved"
	_, err = svc.Create(context.Background(), "user-1", f)
	assert.ErrorIs(t, err, snapshot.ErrInvalid)
}

func TestEntityVerification_EndToEnd(t *testing.T) {
	svc, auditSvc := setupService(t)
	ctx := context.Background()

	d, err := svc.Create(ctx, "user-1", newFields())
	require.NoError(t, err)
	_, err = svc.Transition(ctx, d.ID, "officer-1", "under_review", "assigned")
	require.NoError(t, err)
	d, err = svc.Transition(ctx, d.ID, "officer-1", "RESOLVED", "Shed removed after survey")
	require.NoError(t, err)
	require.NotNil(t, d.ResolutionNote)

	r, err := auditSvc.VerifyEntity(ctx, EntityType, d.ID)
	require.NoError(t, err)
	assert.True(t, r.Valid)
	assert.Equal(t, 3, r.EventCount)
	assert.Equal(t, 0, r.MissingSnapshotHashEvents)
	assert.Equal(t, r.CurrentSnapshotHash, r.LatestSnapshotHash)

	again, err := auditSvc.VerifyEntity(ctx, EntityType, d.ID)
	require.NoError(t, err)
	assert.Equal(t, r, again)

	_, err = svc.db.ExecContext(ctx, `UPDATE land_disputes SET description = 'Nothing happened' WHERE id = $1`, d.ID)
	require.NoError(t, err)

	r, err = auditSvc.VerifyEntity(ctx, EntityType, d.ID)
	require.NoError(t, err)
	assert.False(t, r.Valid)
	assert.False(t, r.SnapshotMatch)
	assert.True(t, r.BlockIntegrityValid)

	chain, err := auditSvc.VerifyChain(ctx)
	require.NoError(t, err)
	assert.True(t, chain.Valid)
}

func TestVerifyEntity_RowNoLongerNormalizes(t *testing.T) {
	svc, auditSvc := setupService(t)
	ctx := context.Background()

	d, err := svc.Create(ctx, "user-1", newFields())
	require.NoError(t, err)
	_, err = svc.db.ExecContext(ctx, `UPDATE land_disputes SET dispute_type = 'WEATHER' WHERE id = $1`, d.ID)
	require.NoError(t, err)

	r, err := auditSvc.VerifyEntity(ctx, EntityType, d.ID)
	require.NoError(t, err)
	assert.False(t, r.SnapshotMatch)
}

func TestTransition_StateMachine(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()

	d, err := svc.Create(ctx, "user-1", newFields())
	require.NoError(t, err)

	_, err = svc.Transition(ctx, d.ID, "officer-1", "CLOSED", "")
	assert.ErrorIs(t, err, ErrInvalidTransition)

	_, err = svc.Transition(ctx, d.ID, "officer-1", "SNOOZED", "")
	assert.ErrorIs(t, err, snapshot.ErrInvalid)

	_, err = svc.Transition(ctx, "nope", "officer-1", "UNDER_REVIEW", "")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, err, ledger.ErrNotFound)

	for _, st := range []string{"UNDER_REVIEW", "IN_MEDIATION", "RESOLVED", "OPEN"} {
		d, err = svc.Transition(ctx, d.ID, "officer-1", st, "note")
		require.NoError(t, err, st)
	}
	assert.Nil(t, d.ResolutionNote, "reopened cases drop the resolution note")
}

func TestTransition_NoteCap(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()

	d, err := svc.Create(ctx, "user-1", newFields())
	require.NoError(t, err)

	_, err = svc.Transition(ctx, d.ID, "officer-1", "UNDER_REVIEW", strings.Repeat("n", snapshot.MaxResolutionNote+1))
	assert.ErrorIs(t, err, snapshot.ErrInvalid)

	d, err = svc.Transition(ctx, d.ID, "officer-1", "UNDER_REVIEW", strings.Repeat("n", snapshot.MaxResolutionNote))
	require.NoError(t, err)
	assert.Equal(t, snapshot.StatusUnderReview, d.Status)
}

func TestCanTransition(t *testing.T) {
	assert.True(t, CanTransition("OPEN", "UNDER_REVIEW"))
	assert.True(t, CanTransition("RESOLVED", "OPEN"))
	assert.True(t, CanTransition("REJECTED", "CLOSED"))
	assert.False(t, CanTransition("OPEN", "RESOLVED"))
	assert.False(t, CanTransition("CLOSED", "OPEN"))
}

func TestAttachEvidence(t *testing.T) {
	svc, auditSvc := setupService(t)
	ctx := context.Background()

	d, err := svc.Create(ctx, "user-1", newFields())
	require.NoError(t, err)

	d, ref, err := svc.AttachEvidence(ctx, d.ID, "user-1", []byte("photo bytes"), "site photo")
	require.NoError(t, err)
	assert.Equal(t, []string{ref}, d.EvidenceRefs)

	blob, err := svc.Evidence(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, []byte("photo bytes"), blob)

	_, _, err = svc.AttachEvidence(ctx, d.ID, "user-1", []byte("photo bytes"), "")
	assert.ErrorIs(t, err, ErrDuplicateEvidence)

	r, err := auditSvc.VerifyEntity(ctx, EntityType, d.ID)
	require.NoError(t, err)
	assert.True(t, r.Valid)
	assert.Equal(t, 2, r.EventCount)
	require.Len(t, r.Events, 2)
	assert.Equal(t, ledger.EventLandDisputeEvidence, r.Events[1].Record.EventType)
}

func TestAttachEvidence_Limit(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()

	d, err := svc.Create(ctx, "user-1", newFields())
	require.NoError(t, err)
	for i := 0; i < snapshot.MaxEvidenceRefs; i++ {
		_, _, err := svc.AttachEvidence(ctx, d.ID, "user-1", []byte{byte(i)}, "")
		require.NoError(t, err)
	}
	_, _, err = svc.AttachEvidence(ctx, d.ID, "user-1", []byte("one too many"), "")
	assert.ErrorIs(t, err, ErrEvidenceLimit)
}

func TestCreate_LedgerFailureRollsBackRow(t *testing.T) {
	svc, auditSvc := setupService(t)
	ctx := context.Background()

	_, err := svc.db.ExecContext(ctx, `DROP TABLE ledger_events`)
	require.NoError(t, err)

	_, err = svc.Create(ctx, "user-1", newFields())
	require.Error(t, err)

	var rows int
	require.NoError(t, svc.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM land_disputes`).Scan(&rows))
	assert.Equal(t, 0, rows)
	n, err := auditSvc.Chain().Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}
