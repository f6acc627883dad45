package disputes

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/samarth1234-dev/land-detection-1-sub000/pkg/ledger"
	"github.com/samarth1234-dev/land-detection-1-sub000/pkg/snapshot"
)

const schema = `CREATE TABLE IF NOT EXISTS land_disputes (
	id TEXT PRIMARY KEY,
	reporter_id TEXT NOT NULL,
	parcel_ref TEXT NOT NULL,
	dispute_type TEXT NOT NULL,
	description TEXT NOT NULL,
	latitude DOUBLE PRECISION,
	longitude DOUBLE PRECISION,
	selection_bounds TEXT,
	status TEXT NOT NULL,
	priority TEXT NOT NULL,
	evidence_refs TEXT NOT NULL DEFAULT '[]',
	resolution_note TEXT,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL,
	last_block_index BIGINT,
	last_block_hash TEXT
)`

const columns = `id, reporter_id, parcel_ref, dispute_type, description, latitude, longitude, selection_bounds,
	status, priority, evidence_refs, resolution_note, created_at, updated_at, last_block_index, last_block_hash`

func insertDispute(ctx context.Context, q ledger.Querier, d *Dispute) error {
	bounds, refs, err := encodeJSONColumns(d)
	if err != nil {
		return err
	}
	_, err = q.ExecContext(ctx, `INSERT INTO land_disputes (`+columns+`)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`,
		d.ID, d.ReporterID, d.ParcelRef, d.Type, d.Description, d.Latitude, d.Longitude, bounds,
		d.Status, d.Priority, refs, d.ResolutionNote, formatTime(d.CreatedAt), formatTime(d.UpdatedAt),
		d.LastBlockIndex, d.LastBlockHash)
	if err != nil {
		return fmt.Errorf("disputes: insert: %w", err)
	}
	return nil
}

func updateDispute(ctx context.Context, q ledger.Querier, d *Dispute) error {
	bounds, refs, err := encodeJSONColumns(d)
	if err != nil {
		return err
	}
	_, err = q.ExecContext(ctx, `UPDATE land_disputes SET
	parcel_ref = $2, dispute_type = $3, description = $4, latitude = $5, longitude = $6, selection_bounds = $7,
	status = $8, priority = $9, evidence_refs = $10, resolution_note = $11, updated_at = $12,
	last_block_index = $13, last_block_hash = $14
	WHERE id = $1`,
		d.ID, d.ParcelRef, d.Type, d.Description, d.Latitude, d.Longitude, bounds,
		d.Status, d.Priority, refs, d.ResolutionNote, formatTime(d.UpdatedAt),
		d.LastBlockIndex, d.LastBlockHash)
	if err != nil {
		return fmt.Errorf("disputes: update %s: %w", d.ID, err)
	}
	return nil
}

func getDispute(ctx context.Context, q ledger.Querier, id, lock string) (*Dispute, error) {
	var (
		d                    Dispute
		lat, lng             sql.NullFloat64
		bounds, note, hash   sql.NullString
		refs                 string
		createdAt, updatedAt string
		blockIndex           sql.NullInt64
	)
	err := q.QueryRowContext(ctx, `SELECT `+columns+` FROM land_disputes WHERE id = $1`+lock, id).Scan(
		&d.ID, &d.ReporterID, &d.ParcelRef, &d.Type, &d.Description, &lat, &lng, &bounds,
		&d.Status, &d.Priority, &refs, &note, &createdAt, &updatedAt, &blockIndex, &hash)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return nil, fmt.Errorf("disputes: get %s: %w", id, err)
	}
	if lat.Valid {
		d.Latitude = &lat.Float64
	}
	if lng.Valid {
		d.Longitude = &lng.Float64
	}
	if bounds.Valid && bounds.String != "" {
		d.SelectionBounds = &snapshot.Bounds{}
		if err := json.Unmarshal([]byte(bounds.String), d.SelectionBounds); err != nil {
			return nil, fmt.Errorf("disputes: corrupt selection bounds on %s: %w", id, err)
		}
	}
	d.EvidenceRefs = []string{}
	if err := json.Unmarshal([]byte(refs), &d.EvidenceRefs); err != nil {
		return nil, fmt.Errorf("disputes: corrupt evidence refs on %s: %w", id, err)
	}
	if note.Valid {
		d.ResolutionNote = &note.String
	}
	d.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	d.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAt)
	d.LastBlockIndex = blockIndex.Int64
	d.LastBlockHash = hash.String
	return &d, nil
}

func encodeJSONColumns(d *Dispute) (bounds any, refs string, err error) {
	if d.SelectionBounds != nil {
		b, err := json.Marshal(d.SelectionBounds)
		if err != nil {
			return nil, "", err
		}
		bounds = string(b)
	}
	list := d.EvidenceRefs
	if list == nil {
		list = []string{}
	}
	r, err := json.Marshal(list)
	if err != nil {
		return nil, "", err
	}
	return bounds, string(r), nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
