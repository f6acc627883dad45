package snapshot

// LandUses enumerates parcel land-use classes.
var LandUses = []string{"AGRICULTURAL", "RESIDENTIAL", "COMMERCIAL", "INDUSTRIAL", "FOREST", "PASTURE", "OTHER"}

const (
	MinBoundaryVertices = 3
	MaxBoundaryVertices = 500
	maxOwnerName        = 200
	areaDecimals        = 2
)

// ParcelFields is raw parcel input. Boundary vertices are [lng, lat] pairs in GeoJSON order.
type ParcelFields struct {
	ParcelRef string      `json:"parcelRef"`
	OwnerName string      `json:"ownerName"`
	LandUse   string      `json:"landUse"`
	AreaSqm   *float64    `json:"areaSqm,omitempty"`
	Boundary  [][]float64 `json:"boundary"`
}

// ParcelSnapshot is the ledger-relevant projection of a registered parcel.
type ParcelSnapshot struct {
	ParcelRef string   `json:"parcelRef"`
	OwnerName string   `json:"ownerName"`
	LandUse   string   `json:"landUse"`
	AreaSqm   *float64 `json:"areaSqm"`
	Boundary  []Point  `json:"boundary"`
}

// Parcel normalizes f. A closed ring (last vertex equal to the first) is stored open.
func Parcel(f ParcelFields) (*ParcelSnapshot, error) {
	var (
		s   ParcelSnapshot
		err error
	)
	if s.ParcelRef, err = Text("parcelRef", f.ParcelRef, maxParcelRef, true); err != nil {
		return nil, err
	}
	if s.OwnerName, err = Text("ownerName", f.OwnerName, maxOwnerName, true); err != nil {
		return nil, err
	}
	if s.LandUse, err = Enum("landUse", f.LandUse, LandUses, "OTHER"); err != nil {
		return nil, err
	}
	if f.AreaSqm != nil {
		a, err := Coordinate("areaSqm", *f.AreaSqm, 0, 1e12)
		if err != nil {
			return nil, err
		}
		a = Round(a, areaDecimals)
		s.AreaSqm = &a
	}
	if s.Boundary, err = boundary(f.Boundary); err != nil {
		return nil, err
	}
	return &s, nil
}

// ParcelHash normalizes f and returns its snapshot hash.
func ParcelHash(f ParcelFields) (string, error) {
	s, err := Parcel(f)
	if err != nil {
		return "", err
	}
	return Hash(s)
}

func boundary(ring [][]float64) ([]Point, error) {
	pts := make([]Point, 0, len(ring))
	for _, v := range ring {
		if len(v) != 2 {
			return nil, invalid("boundary", "vertex %d has %d components, want [lng, lat]", len(pts), len(v))
		}
		lng, err := Longitude("boundary.lng", v[0])
		if err != nil {
			return nil, err
		}
		lat, err := Latitude("boundary.lat", v[1])
		if err != nil {
			return nil, err
		}
		pts = append(pts, Point{Lat: lat, Lng: lng})
	}
	if n := len(pts); n > 1 && pts[0] == pts[n-1] {
		pts = pts[:n-1]
	}
	if len(pts) < MinBoundaryVertices || len(pts) > MaxBoundaryVertices {
		return nil, invalid("boundary", "has %d vertices, want %d..%d", len(pts), MinBoundaryVertices, MaxBoundaryVertices)
	}
	return pts, nil
}
