package snapshot

// Dispute enumerations.
var (
	DisputeTypes      = []string{"BOUNDARY", "OWNERSHIP", "ENCROACHMENT", "INHERITANCE", "ACCESS_RIGHTS", "OTHER"}
	DisputeStatuses   = []string{StatusOpen, StatusUnderReview, StatusInMediation, StatusResolved, StatusRejected, StatusClosed}
	DisputePriorities = []string{"LOW", "MEDIUM", "HIGH", "URGENT"}
)

const (
	StatusOpen        = "OPEN"
	StatusUnderReview = "UNDER_REVIEW"
	StatusInMediation = "IN_MEDIATION"
	StatusResolved    = "RESOLVED"
	StatusRejected    = "REJECTED"
	StatusClosed      = "CLOSED"
)

// MaxResolutionNote caps resolution and transition notes, in runes.
const MaxResolutionNote = 1000

const (
	maxParcelRef   = 64
	maxDescription = 2000
	maxEvidenceRef = 256
)

// DisputeFields is raw dispute input, either from a request document or from a stored row.
type DisputeFields struct {
	ParcelRef      string        `json:"parcelRef"`
	Type           string        `json:"type"`
	Description    string        `json:"description"`
	Latitude       *float64      `json:"latitude,omitempty"`
	Longitude      *float64      `json:"longitude,omitempty"`
	Bounds         *BoundsFields `json:"selectionBounds,omitempty"`
	Status         string        `json:"status"`
	Priority       string        `json:"priority"`
	EvidenceRefs   []string      `json:"evidenceRefs,omitempty"`
	ResolutionNote string        `json:"resolutionNote,omitempty"`
}

// DisputeSnapshot is the ledger-relevant projection of a dispute case.
type DisputeSnapshot struct {
	ParcelRef       string   `json:"parcelRef"`
	Type            string   `json:"type"`
	Description     string   `json:"description"`
	Coordinates     *Point   `json:"coordinates"`
	SelectionBounds *Bounds  `json:"selectionBounds"`
	Status          string   `json:"status"`
	Priority        string   `json:"priority"`
	EvidenceRefs    []string `json:"evidenceRefs"`
	ResolutionNote  *string  `json:"resolutionNote"`
}

// Dispute normalizes f. A resolution note only survives on a RESOLVED case.
func Dispute(f DisputeFields) (*DisputeSnapshot, error) {
	var (
		s   DisputeSnapshot
		err error
	)
	if s.ParcelRef, err = Text("parcelRef", f.ParcelRef, maxParcelRef, true); err != nil {
		return nil, err
	}
	if s.Type, err = Enum("type", f.Type, DisputeTypes, ""); err != nil {
		return nil, err
	}
	if s.Description, err = Text("description", f.Description, maxDescription, true); err != nil {
		return nil, err
	}
	if s.Coordinates, err = NewPoint("coordinates", f.Latitude, f.Longitude); err != nil {
		return nil, err
	}
	if s.SelectionBounds, err = NewBounds("selectionBounds", f.Bounds); err != nil {
		return nil, err
	}
	if s.Status, err = Enum("status", f.Status, DisputeStatuses, StatusOpen); err != nil {
		return nil, err
	}
	if s.Priority, err = Enum("priority", f.Priority, DisputePriorities, "MEDIUM"); err != nil {
		return nil, err
	}
	if s.EvidenceRefs, err = RefList("evidenceRefs", f.EvidenceRefs, MaxEvidenceRefs, maxEvidenceRef); err != nil {
		return nil, err
	}
	if s.Status == StatusResolved {
		note, err := Text("resolutionNote", f.ResolutionNote, MaxResolutionNote, false)
		if err != nil {
			return nil, err
		}
		if note != "" {
			s.ResolutionNote = &note
		}
	}
	return &s, nil
}

// DisputeHash normalizes f and returns its snapshot hash.
func DisputeHash(f DisputeFields) (string, error) {
	s, err := Dispute(f)
	if err != nil {
		return "", err
	}
	return Hash(s)
}
