package disputes

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/samarth1234-dev/land-detection-1-sub000/pkg/artifacts"
	"github.com/samarth1234-dev/land-detection-1-sub000/pkg/audit"
	"github.com/samarth1234-dev/land-detection-1-sub000/pkg/canonicalize"
	"github.com/samarth1234-dev/land-detection-1-sub000/pkg/ledger"
	"github.com/samarth1234-dev/land-detection-1-sub000/pkg/snapshot"
)

// Service owns the land_disputes table.
type Service struct {
	db       *sql.DB
	audit    *audit.Service
	evidence artifacts.Store
	clock    func() time.Time
	logger   *slog.Logger
}

// NewService creates a dispute service. evidence may be nil when attachments are not used.
func NewService(auditSvc *audit.Service, evidence artifacts.Store) *Service {
	return &Service{
		db:       auditSvc.Chain().DB(),
		audit:    auditSvc,
		evidence: evidence,
		clock:    time.Now,
		logger:   slog.Default().With("component", "disputes"),
	}
}

// Init creates the table and registers the service as the dispute state source.
func (s *Service) Init(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("disputes: init schema: %w", err)
	}
	s.audit.RegisterSource(EntityType, s)
	return nil
}

func (s *Service) lock() string {
	return s.audit.Chain().Dialect().LockSuffix()
}

// Create opens a new case. New cases always start OPEN.
func (s *Service) Create(ctx context.Context, reporterID string, f snapshot.DisputeFields) (*Dispute, error) {
	if f.Status != "" {
		if st, err := snapshot.Enum("status", f.Status, snapshot.DisputeStatuses, ""); err != nil || st != snapshot.StatusOpen {
			return nil, &snapshot.ValidationError{Field: "status", Reason: "new disputes start OPEN"}
		}
	}
	snap, err := snapshot.Dispute(f)
	if err != nil {
		return nil, err
	}

	now := s.clock().UTC()
	d := &Dispute{ID: uuid.NewString(), ReporterID: reporterID, CreatedAt: now, UpdatedAt: now}
	d.apply(snap)

	err = ledger.RunInTx(ctx, s.db, func(tx *sql.Tx) error {
		block, err := s.record(ctx, tx, d, snap, reporterID, ledger.EventLandDisputeCreated, nil, "", ledger.Document{
			"parcelRef": d.ParcelRef,
			"type":      d.Type,
			"priority":  d.Priority,
		})
		if err != nil {
			return err
		}
		d.LastBlockIndex, d.LastBlockHash = block.Index, block.Hash
		return insertDispute(ctx, tx, d)
	})
	if err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "dispute created", "id", d.ID, "parcel_ref", d.ParcelRef, "block", d.LastBlockIndex)
	return d, nil
}

// Transition moves a case to a new status. The note becomes the resolution note when
// the case is RESOLVED and is recorded on the event either way.
func (s *Service) Transition(ctx context.Context, id, actor, toStatus, note string) (*Dispute, error) {
	to, err := snapshot.Enum("status", toStatus, snapshot.DisputeStatuses, "")
	if err != nil {
		return nil, err
	}
	note, err = snapshot.Text("note", note, snapshot.MaxResolutionNote, false)
	if err != nil {
		return nil, err
	}

	var d *Dispute
	err = ledger.RunInTx(ctx, s.db, func(tx *sql.Tx) error {
		var err error
		if d, err = getDispute(ctx, tx, id, s.lock()); err != nil {
			return err
		}
		from := d.Status
		if !CanTransition(from, to) {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
		}

		f := d.Fields()
		f.Status = to
		if to == snapshot.StatusResolved {
			f.ResolutionNote = note
		}
		snap, err := snapshot.Dispute(f)
		if err != nil {
			return err
		}
		d.apply(snap)
		d.UpdatedAt = s.clock().UTC()

		block, err := s.record(ctx, tx, d, snap, actor, ledger.EventLandDisputeStatusChanged, &from, note, nil)
		if err != nil {
			return err
		}
		d.LastBlockIndex, d.LastBlockHash = block.Index, block.Hash
		return updateDispute(ctx, tx, d)
	})
	if err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "dispute status changed", "id", id, "status", d.Status, "block", d.LastBlockIndex)
	return d, nil
}

// AttachEvidence stores data in the evidence store and adds its reference to the case.
// Blobs are content-addressed, so a blob left behind by a failed transaction is harmless.
func (s *Service) AttachEvidence(ctx context.Context, id, actor string, data []byte, note string) (*Dispute, string, error) {
	if s.evidence == nil {
		return nil, "", fmt.Errorf("disputes: no evidence store configured")
	}
	ref, err := s.evidence.Store(ctx, data)
	if err != nil {
		return nil, "", fmt.Errorf("disputes: store evidence: %w", err)
	}

	var d *Dispute
	err = ledger.RunInTx(ctx, s.db, func(tx *sql.Tx) error {
		var err error
		if d, err = getDispute(ctx, tx, id, s.lock()); err != nil {
			return err
		}
		if slices.Contains(d.EvidenceRefs, ref) {
			return fmt.Errorf("%w: %s", ErrDuplicateEvidence, ref)
		}
		if len(d.EvidenceRefs) >= snapshot.MaxEvidenceRefs {
			return ErrEvidenceLimit
		}

		f := d.Fields()
		f.EvidenceRefs = append(slices.Clone(d.EvidenceRefs), ref)
		snap, err := snapshot.Dispute(f)
		if err != nil {
			return err
		}
		d.apply(snap)
		d.UpdatedAt = s.clock().UTC()

		block, err := s.record(ctx, tx, d, snap, actor, ledger.EventLandDisputeEvidence, nil, note,
			ledger.Document{"evidenceRef": ref, "size": len(data)})
		if err != nil {
			return err
		}
		d.LastBlockIndex, d.LastBlockHash = block.Index, block.Hash
		return updateDispute(ctx, tx, d)
	})
	if err != nil {
		return nil, "", err
	}
	return d, ref, nil
}

// record hashes the post-mutation snapshot and writes the block and event record.
// A nil from marks a creation; status-preserving events record the same from and to.
func (s *Service) record(ctx context.Context, tx *sql.Tx, d *Dispute, snap *snapshot.DisputeSnapshot, actor string,
	eventType ledger.EventType, from *string, note string, details ledger.Document) (*ledger.Block, error) {
	hash, err := snapshot.Hash(snap)
	if err != nil {
		return nil, err
	}
	to := d.Status
	if from == nil && eventType != ledger.EventLandDisputeCreated {
		from = &to
	}
	block, _, err := s.audit.Record(ctx, tx, audit.Entry{
		EntityType:   EntityType,
		EntityID:     d.ID,
		Actor:        actor,
		EventType:    eventType,
		FromStatus:   from,
		ToStatus:     &to,
		Note:         note,
		SnapshotHash: hash,
		Details:      details,
	})
	return block, err
}

// Get returns a case by id.
func (s *Service) Get(ctx context.Context, id string) (*Dispute, error) {
	return getDispute(ctx, s.db, id, "")
}

// Evidence returns an attached evidence blob.
func (s *Service) Evidence(ctx context.Context, ref string) ([]byte, error) {
	if s.evidence == nil {
		return nil, fmt.Errorf("disputes: no evidence store configured")
	}
	return s.evidence.Get(ctx, ref)
}

// CurrentSnapshotHash hashes the case exactly as it is stored now.
func (s *Service) CurrentSnapshotHash(ctx context.Context, id string) (string, error) {
	d, err := s.Get(ctx, id)
	if err != nil {
		return "", err
	}
	h, err := snapshot.DisputeHash(d.Fields())
	if errors.Is(err, snapshot.ErrInvalid) {
		// A row edited outside the service may no longer normalize. Hash its raw
		// fields so verification reports a mismatch instead of failing.
		s.logger.WarnContext(ctx, "stored dispute does not normalize", "id", id, "error", err)
		return canonicalize.CanonicalHash(d.Fields())
	}
	return h, err
}
