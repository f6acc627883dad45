// Package disputes manages land dispute cases. Every change to a case is written in
// the same transaction as the ledger block that records it.
package disputes

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/samarth1234-dev/land-detection-1-sub000/pkg/ledger"
	"github.com/samarth1234-dev/land-detection-1-sub000/pkg/snapshot"
)

// EntityType is the ledger entity type of dispute cases.
const EntityType = "land_dispute"

var (
	ErrNotFound          = fmt.Errorf("disputes: dispute %w", ledger.ErrNotFound)
	ErrInvalidTransition = errors.New("disputes: status transition not allowed")
	ErrEvidenceLimit     = fmt.Errorf("disputes: evidence limit of %d reached", snapshot.MaxEvidenceRefs)
	ErrDuplicateEvidence = errors.New("disputes: evidence already attached")
)

var transitions = map[string][]string{
	snapshot.StatusOpen:        {snapshot.StatusUnderReview},
	snapshot.StatusUnderReview: {snapshot.StatusInMediation, snapshot.StatusResolved, snapshot.StatusRejected},
	snapshot.StatusInMediation: {snapshot.StatusResolved, snapshot.StatusRejected},
	snapshot.StatusResolved:    {snapshot.StatusClosed, snapshot.StatusOpen},
	snapshot.StatusRejected:    {snapshot.StatusClosed},
}

// CanTransition reports whether a case may move from one status to another.
func CanTransition(from, to string) bool {
	return slices.Contains(transitions[from], to)
}

// Dispute is a stored dispute case. Stored values are already normalized.
type Dispute struct {
	ID              string           `json:"id"`
	ReporterID      string           `json:"reporterId"`
	ParcelRef       string           `json:"parcelRef"`
	Type            string           `json:"type"`
	Description     string           `json:"description"`
	Latitude        *float64         `json:"latitude"`
	Longitude       *float64         `json:"longitude"`
	SelectionBounds *snapshot.Bounds `json:"selectionBounds"`
	Status          string           `json:"status"`
	Priority        string           `json:"priority"`
	EvidenceRefs    []string         `json:"evidenceRefs"`
	ResolutionNote  *string          `json:"resolutionNote"`
	CreatedAt       time.Time        `json:"createdAt"`
	UpdatedAt       time.Time        `json:"updatedAt"`
	LastBlockIndex  int64            `json:"lastBlockIndex"`
	LastBlockHash   string           `json:"lastBlockHash"`
}

// Fields converts the stored case back into snapshot input.
func (d *Dispute) Fields() snapshot.DisputeFields {
	f := snapshot.DisputeFields{
		ParcelRef:    d.ParcelRef,
		Type:         d.Type,
		Description:  d.Description,
		Latitude:     d.Latitude,
		Longitude:    d.Longitude,
		Status:       d.Status,
		Priority:     d.Priority,
		EvidenceRefs: d.EvidenceRefs,
	}
	if b := d.SelectionBounds; b != nil {
		f.Bounds = &snapshot.BoundsFields{North: b.North, South: b.South, East: b.East, West: b.West}
	}
	if d.ResolutionNote != nil {
		f.ResolutionNote = *d.ResolutionNote
	}
	return f
}

// apply copies a normalized snapshot onto the case.
func (d *Dispute) apply(s *snapshot.DisputeSnapshot) {
	d.ParcelRef = s.ParcelRef
	d.Type = s.Type
	d.Description = s.Description
	d.Latitude, d.Longitude = nil, nil
	if s.Coordinates != nil {
		lat, lng := s.Coordinates.Lat, s.Coordinates.Lng
		d.Latitude, d.Longitude = &lat, &lng
	}
	d.SelectionBounds = s.SelectionBounds
	d.Status = s.Status
	d.Priority = s.Priority
	d.EvidenceRefs = s.EvidenceRefs
	d.ResolutionNote = s.ResolutionNote
}
