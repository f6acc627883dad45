package audit

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/samarth1234-dev/land-detection-1-sub000/pkg/ledger"
	"github.com/samarth1234-dev/land-detection-1-sub000/pkg/verifier"
)

// Entry describes one state transition of a ledgered entity.
type Entry struct {
	EntityType   string
	EntityID     string
	Actor        string
	EventType    ledger.EventType
	FromStatus   *string
	ToStatus     *string
	Note         string
	SnapshotHash string
	// Details are merged into the block payload; the fixed keys above take precedence.
	Details ledger.Document
}

// Payload builds the block payload for e.
func (e Entry) Payload() ledger.Document {
	p := ledger.Document{}
	for k, v := range e.Details {
		p[k] = v
	}
	p["entityType"] = e.EntityType
	p["entityId"] = e.EntityID
	p["actor"] = e.Actor
	p["fromStatus"] = optional(e.FromStatus)
	p["toStatus"] = optional(e.ToStatus)
	p["note"] = e.Note
	if e.SnapshotHash != "" {
		p[verifier.SnapshotHashField] = e.SnapshotHash
	}
	return p
}

func optional(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

// Record appends a block for e and links it to the entity with an event record,
// both inside tx. Callers mutate their own row in the same tx and commit once.
func (s *Service) Record(ctx context.Context, tx *sql.Tx, e Entry) (*ledger.Block, *ledger.EventRecord, error) {
	if e.EntityType == "" || e.EntityID == "" || e.Actor == "" {
		return nil, nil, fmt.Errorf("%w: entity identity and actor are required", ErrInvalidEntry)
	}
	if e.SnapshotHash == "" {
		s.logger.WarnContext(ctx, "recording event without snapshot hash",
			"entity_type", e.EntityType, "entity_id", e.EntityID, "event_type", e.EventType)
	}

	block, err := s.Append(ctx, tx, e.EventType, e.Payload())
	if err != nil {
		return nil, nil, err
	}
	rec := &ledger.EventRecord{
		EntityType: e.EntityType,
		EntityID:   e.EntityID,
		Actor:      e.Actor,
		EventType:  e.EventType,
		FromStatus: e.FromStatus,
		ToStatus:   e.ToStatus,
		Note:       e.Note,
		BlockIndex: block.Index,
		BlockHash:  block.Hash,
	}
	if err := s.chain.InsertEvent(ctx, tx, rec); err != nil {
		return nil, nil, err
	}
	return block, rec, nil
}
