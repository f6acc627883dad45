package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// InsertEvent stores an event record inside tx. The record must reference a block
// appended in the same transaction so both commit or roll back together.
func (c *Chain) InsertEvent(ctx context.Context, tx *sql.Tx, rec *EventRecord) error {
	if tx == nil {
		return ErrNilTx
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = c.clock().UTC()
	}
	_, err := tx.ExecContext(ctx, `INSERT INTO ledger_events
	(id, entity_type, entity_id, actor, event_type, from_status, to_status, note, created_at, block_index, block_hash)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		rec.ID, rec.EntityType, rec.EntityID, rec.Actor, string(rec.EventType),
		nullString(rec.FromStatus), nullString(rec.ToStatus), rec.Note,
		rec.CreatedAt.UTC().Format(time.RFC3339Nano), rec.BlockIndex, rec.BlockHash)
	if err != nil {
		if IsUniqueViolation(err) {
			return fmt.Errorf("%w: event for block %d: %v", ErrConflict, rec.BlockIndex, err)
		}
		return fmt.Errorf("ledger: insert event: %w", err)
	}
	return nil
}

// EntityEvents returns every event record of one entity joined with its block,
// ordered by block index.
func (c *Chain) EntityEvents(ctx context.Context, entityType, entityID string) ([]EventWithBlock, error) {
	rows, err := c.db.QueryContext(ctx, `SELECT
	e.id, e.entity_type, e.entity_id, e.actor, e.event_type, e.from_status, e.to_status, e.note, e.created_at,
	e.block_index, e.block_hash,
	b.block_index, b.block_timestamp, b.event_type, b.payload, b.previous_hash, b.nonce, b.hash
FROM ledger_events e
JOIN ledger_blocks b ON b.block_index = e.block_index
WHERE e.entity_type = $1 AND e.entity_id = $2
ORDER BY e.block_index ASC`, entityType, entityID)
	if err != nil {
		return nil, fmt.Errorf("ledger: list entity events: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out := make([]EventWithBlock, 0)
	for rows.Next() {
		var (
			ev                 EventWithBlock
			recType, blockType string
			from, to           sql.NullString
			createdAt, payload string
		)
		r, b := &ev.Record, &ev.Block
		if err := rows.Scan(
			&r.ID, &r.EntityType, &r.EntityID, &r.Actor, &recType, &from, &to, &r.Note, &createdAt,
			&r.BlockIndex, &r.BlockHash,
			&b.Index, &b.Timestamp, &blockType, &payload, &b.PreviousHash, &b.Nonce, &b.Hash,
		); err != nil {
			return nil, fmt.Errorf("ledger: scan entity event: %w", err)
		}
		r.EventType = EventType(recType)
		b.EventType = EventType(blockType)
		if from.Valid {
			r.FromStatus = &from.String
		}
		if to.Valid {
			r.ToStatus = &to.String
		}
		if ts, err := time.Parse(time.RFC3339Nano, createdAt); err == nil {
			r.CreatedAt = ts
		}
		if b.Payload, err = decodeDocument(payload); err != nil {
			return nil, fmt.Errorf("block %d: %w", b.Index, err)
		}
		out = append(out, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func nullString(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}
