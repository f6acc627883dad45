// Package parcels manages registered land parcels and their boundaries.
package parcels

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/samarth1234-dev/land-detection-1-sub000/pkg/audit"
	"github.com/samarth1234-dev/land-detection-1-sub000/pkg/canonicalize"
	"github.com/samarth1234-dev/land-detection-1-sub000/pkg/ledger"
	"github.com/samarth1234-dev/land-detection-1-sub000/pkg/snapshot"
)

// EntityType is the ledger entity type of parcels.
const EntityType = "land_parcel"

var (
	ErrNotFound  = fmt.Errorf("parcels: parcel %w", ledger.ErrNotFound)
	ErrDuplicate = errors.New("parcels: parcel reference already registered")
)

const schema = `CREATE TABLE IF NOT EXISTS land_parcels (
	id TEXT PRIMARY KEY,
	parcel_ref TEXT NOT NULL UNIQUE,
	owner_name TEXT NOT NULL,
	land_use TEXT NOT NULL,
	area_sqm DOUBLE PRECISION,
	boundary TEXT NOT NULL,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL,
	last_block_index BIGINT,
	last_block_hash TEXT
)`

const columns = `id, parcel_ref, owner_name, land_use, area_sqm, boundary, created_at, updated_at, last_block_index, last_block_hash`

// Parcel is a registered parcel. Stored values are already normalized.
type Parcel struct {
	ID             string           `json:"id"`
	ParcelRef      string           `json:"parcelRef"`
	OwnerName      string           `json:"ownerName"`
	LandUse        string           `json:"landUse"`
	AreaSqm        *float64         `json:"areaSqm"`
	Boundary       []snapshot.Point `json:"boundary"`
	CreatedAt      time.Time        `json:"createdAt"`
	UpdatedAt      time.Time        `json:"updatedAt"`
	LastBlockIndex int64            `json:"lastBlockIndex"`
	LastBlockHash  string           `json:"lastBlockHash"`
}

// Fields converts the stored parcel back into snapshot input.
func (p *Parcel) Fields() snapshot.ParcelFields {
	ring := make([][]float64, 0, len(p.Boundary))
	for _, pt := range p.Boundary {
		ring = append(ring, []float64{pt.Lng, pt.Lat})
	}
	return snapshot.ParcelFields{
		ParcelRef: p.ParcelRef,
		OwnerName: p.OwnerName,
		LandUse:   p.LandUse,
		AreaSqm:   p.AreaSqm,
		Boundary:  ring,
	}
}

func (p *Parcel) apply(s *snapshot.ParcelSnapshot) {
	p.ParcelRef = s.ParcelRef
	p.OwnerName = s.OwnerName
	p.LandUse = s.LandUse
	p.AreaSqm = s.AreaSqm
	p.Boundary = s.Boundary
}

// Service owns the land_parcels table.
type Service struct {
	db     *sql.DB
	audit  *audit.Service
	clock  func() time.Time
	logger *slog.Logger
}

func NewService(auditSvc *audit.Service) *Service {
	return &Service{
		db:     auditSvc.Chain().DB(),
		audit:  auditSvc,
		clock:  time.Now,
		logger: slog.Default().With("component", "parcels"),
	}
}

// Init creates the table and registers the service as the parcel state source.
func (s *Service) Init(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("parcels: init schema: %w", err)
	}
	s.audit.RegisterSource(EntityType, s)
	return nil
}

// Register records a new parcel.
func (s *Service) Register(ctx context.Context, actor string, f snapshot.ParcelFields) (*Parcel, error) {
	snap, err := snapshot.Parcel(f)
	if err != nil {
		return nil, err
	}
	now := s.clock().UTC()
	p := &Parcel{ID: uuid.NewString(), CreatedAt: now, UpdatedAt: now}
	p.apply(snap)

	err = ledger.RunInTx(ctx, s.db, func(tx *sql.Tx) error {
		boundary, err := json.Marshal(p.Boundary)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `INSERT INTO land_parcels (`+columns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NULL, NULL)`,
			p.ID, p.ParcelRef, p.OwnerName, p.LandUse, p.AreaSqm, string(boundary),
			formatTime(p.CreatedAt), formatTime(p.UpdatedAt))
		if err != nil {
			if ledger.IsUniqueViolation(err) {
				return fmt.Errorf("%w: %s", ErrDuplicate, p.ParcelRef)
			}
			return fmt.Errorf("parcels: insert: %w", err)
		}
		return s.record(ctx, tx, p, snap, actor, ledger.EventParcelRegistered, ledger.Document{
			"parcelRef": p.ParcelRef,
			"landUse":   p.LandUse,
		})
	})
	if err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "parcel registered", "id", p.ID, "parcel_ref", p.ParcelRef, "block", p.LastBlockIndex)
	return p, nil
}

// UpdateBoundary replaces the boundary polygon and, when given, the surveyed area.
func (s *Service) UpdateBoundary(ctx context.Context, id, actor string, boundary [][]float64, areaSqm *float64) (*Parcel, error) {
	var p *Parcel
	err := ledger.RunInTx(ctx, s.db, func(tx *sql.Tx) error {
		var err error
		if p, err = getParcel(ctx, tx, id, s.audit.Chain().Dialect().LockSuffix()); err != nil {
			return err
		}
		f := p.Fields()
		f.Boundary = boundary
		if areaSqm != nil {
			f.AreaSqm = areaSqm
		}
		snap, err := snapshot.Parcel(f)
		if err != nil {
			return err
		}
		previous := len(p.Boundary)
		p.apply(snap)
		p.UpdatedAt = s.clock().UTC()

		ring, err := json.Marshal(p.Boundary)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `UPDATE land_parcels SET area_sqm = $2, boundary = $3, updated_at = $4 WHERE id = $1`,
			p.ID, p.AreaSqm, string(ring), formatTime(p.UpdatedAt)); err != nil {
			return fmt.Errorf("parcels: update %s: %w", id, err)
		}
		return s.record(ctx, tx, p, snap, actor, ledger.EventParcelBoundaryUpdated, ledger.Document{
			"previousVertices": previous,
			"vertices":         len(p.Boundary),
		})
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Service) record(ctx context.Context, tx *sql.Tx, p *Parcel, snap *snapshot.ParcelSnapshot, actor string,
	eventType ledger.EventType, details ledger.Document) error {
	hash, err := snapshot.Hash(snap)
	if err != nil {
		return err
	}
	block, _, err := s.audit.Record(ctx, tx, audit.Entry{
		EntityType:   EntityType,
		EntityID:     p.ID,
		Actor:        actor,
		EventType:    eventType,
		SnapshotHash: hash,
		Details:      details,
	})
	if err != nil {
		return err
	}
	p.LastBlockIndex, p.LastBlockHash = block.Index, block.Hash
	_, err = tx.ExecContext(ctx, `UPDATE land_parcels SET last_block_index = $2, last_block_hash = $3 WHERE id = $1`,
		p.ID, block.Index, block.Hash)
	return err
}

// Get returns a parcel by id.
func (s *Service) Get(ctx context.Context, id string) (*Parcel, error) {
	return getParcel(ctx, s.db, id, "")
}

// CurrentSnapshotHash hashes the parcel exactly as it is stored now.
func (s *Service) CurrentSnapshotHash(ctx context.Context, id string) (string, error) {
	p, err := s.Get(ctx, id)
	if err != nil {
		return "", err
	}
	h, err := snapshot.ParcelHash(p.Fields())
	if errors.Is(err, snapshot.ErrInvalid) {
		s.logger.WarnContext(ctx, "stored parcel does not normalize", "id", id, "error", err)
		return canonicalize.CanonicalHash(p.Fields())
	}
	return h, err
}

func getParcel(ctx context.Context, q ledger.Querier, id, lock string) (*Parcel, error) {
	var (
		p                    Parcel
		area                 sql.NullFloat64
		boundary             string
		createdAt, updatedAt string
		blockIndex           sql.NullInt64
		blockHash            sql.NullString
	)
	err := q.QueryRowContext(ctx, `SELECT `+columns+` FROM land_parcels WHERE id = $1`+lock, id).Scan(
		&p.ID, &p.ParcelRef, &p.OwnerName, &p.LandUse, &area, &boundary, &createdAt, &updatedAt, &blockIndex, &blockHash)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return nil, fmt.Errorf("parcels: get %s: %w", id, err)
	}
	if area.Valid {
		p.AreaSqm = &area.Float64
	}
	if err := json.Unmarshal([]byte(boundary), &p.Boundary); err != nil {
		return nil, fmt.Errorf("parcels: corrupt boundary on %s: %w", id, err)
	}
	p.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	p.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAt)
	p.LastBlockIndex = blockIndex.Int64
	p.LastBlockHash = blockHash.String
	return &p, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
