// Package ledger implements the tamper-evident, hash-linked block chain that every
// mutating operation writes to before it is considered durable.
package ledger

import (
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when a block or event record does not exist.
	ErrNotFound = errors.New("ledger: not found")
	// ErrConflict is returned when an append loses a race and hits the index/hash
	// uniqueness constraint. The caller's whole transaction must be rolled back.
	ErrConflict = errors.New("ledger: concurrent append conflict")
	// ErrGenesisExists is returned by CreateGenesis when index 0 is already taken.
	ErrGenesisExists = errors.New("ledger: genesis block already exists")
	// ErrNoGenesis is returned by EnsureGenesis when block 0 is not the fixed genesis block.
	ErrNoGenesis = errors.New("ledger: chain has no genesis block")
	// ErrNilTx is returned when an append is attempted outside a transaction.
	ErrNilTx = errors.New("ledger: append requires a transaction")
)

// EventType names the kind of event captured by a block.
type EventType string

const (
	EventGenesis                  EventType = "GENESIS"
	EventUserSignup               EventType = "USER_SIGNUP"
	EventUserLogin                EventType = "USER_LOGIN"
	EventSettingsUpdated          EventType = "SETTINGS_UPDATED"
	EventLandDisputeCreated       EventType = "LAND_DISPUTE_CREATED"
	EventLandDisputeStatusChanged EventType = "LAND_DISPUTE_STATUS_CHANGED"
	EventLandDisputeEvidence      EventType = "LAND_DISPUTE_EVIDENCE_ADDED"
	EventParcelRegistered         EventType = "PARCEL_REGISTERED"
	EventParcelBoundaryUpdated    EventType = "PARCEL_BOUNDARY_UPDATED"
)

// Genesis constants. The genesis block is identical on every deployment.
const (
	GenesisPreviousHash = "0"
	GenesisTimestamp    = "2024-01-01T00:00:00.000Z"
)

// GenesisPayload returns the fixed genesis payload.
func GenesisPayload() Document {
	return Document{
		"message": "Land records ledger genesis block",
		"version": "1",
	}
}

// Document is an opaque, JSON-compatible block payload.
type Document map[string]any

// Clone returns a shallow copy of d.
func (d Document) Clone() Document {
	out := make(Document, len(d))
	for k, v := range d {
		out[k] = v
	}
	return out
}

// String returns the value stored under key when it is a non-empty string.
func (d Document) String(key string) (string, bool) {
	v, ok := d[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	if !ok || s == "" {
		return "", false
	}
	return s, true
}

// Block is one immutable, hash-linked record in the ledger.
type Block struct {
	Index        int64     `json:"index"`
	Timestamp    string    `json:"timestamp"`
	EventType    EventType `json:"eventType"`
	Payload      Document  `json:"payload"`
	PreviousHash string    `json:"previousHash"`
	Nonce        int64     `json:"nonce"`
	Hash         string    `json:"hash"`
}

// EventRecord links a domain entity's transition to the block that captured it.
type EventRecord struct {
	ID         string    `json:"id"`
	EntityType string    `json:"entityType"`
	EntityID   string    `json:"entityId"`
	Actor      string    `json:"actor"`
	EventType  EventType `json:"eventType"`
	FromStatus *string   `json:"fromStatus"`
	ToStatus   *string   `json:"toStatus"`
	Note       string    `json:"note"`
	CreatedAt  time.Time `json:"createdAt"`
	BlockIndex int64     `json:"blockIndex"`
	BlockHash  string    `json:"blockHash"`
}

// EventWithBlock is an event record joined to the block it references.
type EventWithBlock struct {
	Record EventRecord `json:"record"`
	Block  Block       `json:"block"`
}
