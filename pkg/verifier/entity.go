package verifier

import (
	"github.com/samarth1234-dev/land-detection-1-sub000/pkg/ledger"
)

// SnapshotHashField is the payload key collaborators embed the post-mutation snapshot hash under.
const SnapshotHashField = "snapshotHash"

// EventCheck is the per-event part of an EntityReport.
type EventCheck struct {
	Record       ledger.EventRecord `json:"record"`
	BlockIndex   int64              `json:"blockIndex"`
	BlockHash    string             `json:"blockHash"`
	Timestamp    string             `json:"timestamp"`
	HashValid    bool               `json:"hashValid"`
	LinkValid    bool               `json:"linkValid"`
	SnapshotHash string             `json:"snapshotHash,omitempty"`
}

// EntityReport is the result of VerifyEntity.
type EntityReport struct {
	Valid                     bool         `json:"valid"`
	BlockIntegrityValid       bool         `json:"blockIntegrityValid"`
	SnapshotMatch             bool         `json:"snapshotMatch"`
	CurrentSnapshotHash       string       `json:"currentSnapshotHash"`
	LatestSnapshotHash        string       `json:"latestSnapshotHash,omitempty"`
	EventCount                int          `json:"eventCount"`
	MissingSnapshotHashEvents int          `json:"missingSnapshotHashEvents"`
	Events                    []EventCheck `json:"events"`
}

// VerifyEntity replays an entity's events, ordered by block index, against the
// blocks that captured them and compares the latest embedded snapshot hash with
// currentSnapshotHash, the hash of the entity's row as it is now.
//
// An event with no snapshot hash only counts towards MissingSnapshotHashEvents,
// unless it is the latest event, in which case there is nothing to match against.
func VerifyEntity(currentSnapshotHash string, events []ledger.EventWithBlock) *EntityReport {
	report := &EntityReport{
		BlockIntegrityValid: true,
		CurrentSnapshotHash: currentSnapshotHash,
		EventCount:          len(events),
		Events:              make([]EventCheck, 0, len(events)),
	}

	for i := range events {
		ev := &events[i]
		check := EventCheck{
			Record:     ev.Record,
			BlockIndex: ev.Block.Index,
			BlockHash:  ev.Block.Hash,
			Timestamp:  ev.Block.Timestamp,
			HashValid:  ev.Block.HashValid(),
			LinkValid:  ev.Record.BlockIndex == ev.Block.Index && ev.Record.BlockHash == ev.Block.Hash,
		}
		if !check.HashValid || !check.LinkValid {
			report.BlockIntegrityValid = false
		}
		if h, ok := ev.Block.Payload.String(SnapshotHashField); ok {
			check.SnapshotHash = h
		} else {
			report.MissingSnapshotHashEvents++
		}
		report.Events = append(report.Events, check)
	}

	if n := len(report.Events); n > 0 {
		report.LatestSnapshotHash = report.Events[n-1].SnapshotHash
	}
	report.SnapshotMatch = report.LatestSnapshotHash != "" && report.LatestSnapshotHash == currentSnapshotHash
	report.Valid = report.BlockIntegrityValid && report.SnapshotMatch
	return report
}
