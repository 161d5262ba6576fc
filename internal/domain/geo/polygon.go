// Package geo models the request-scoped polygon used by the nazotte estate
// search and its derived bounding box.
package geo

import (
	"fmt"

	geom "github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/wkt"

	"github.com/sumika-cloud/sumika/internal/domain"
)

// Coordinate is one polygon vertex as submitted by the caller.
type Coordinate struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Polygon is an ephemeral user-drawn ring over estate locations. Vertices
// keep caller order; they are never reordered or deduplicated, so a
// malformed or self-intersecting ring stays the caller's responsibility.
type Polygon struct {
	ring *geom.Polygon
}

// NewPolygon builds a polygon from at least one vertex. The ring is closed
// by repeating the first vertex when the caller did not close it, which is
// required for valid polygon text.
func NewPolygon(coords []Coordinate) (*Polygon, error) {
	if len(coords) == 0 {
		return nil, fmt.Errorf("%w: no vertices", domain.ErrInvalidPolygon)
	}

	ring := make([]geom.Coord, 0, len(coords)+1)
	for _, c := range coords {
		ring = append(ring, geom.Coord{c.Latitude, c.Longitude})
	}
	if coords[0] != coords[len(coords)-1] {
		ring = append(ring, geom.Coord{coords[0].Latitude, coords[0].Longitude})
	}

	poly, err := geom.NewPolygon(geom.XY).SetCoords([][]geom.Coord{ring})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidPolygon, err)
	}
	return &Polygon{ring: poly}, nil
}

// Bounds is the component-wise min/max over all vertices. It exists purely
// as a sargable prefilter for the indexed latitude/longitude columns and is
// always weaker than or equal to the exact containment predicate.
type Bounds struct {
	MinLatitude  float64
	MaxLatitude  float64
	MinLongitude float64
	MaxLongitude float64
}

// Bounds returns the polygon's axis-aligned bounding box.
func (p *Polygon) Bounds() Bounds {
	b := p.ring.Bounds()
	return Bounds{
		MinLatitude:  b.Min(0),
		MaxLatitude:  b.Max(0),
		MinLongitude: b.Min(1),
		MaxLongitude: b.Max(1),
	}
}

// WKT returns the closed ring as POLYGON text with (latitude longitude)
// vertex order, the same order the containment predicate builds its point
// expression with.
func (p *Polygon) WKT() (string, error) {
	s, err := wkt.Marshal(p.ring)
	if err != nil {
		return "", fmt.Errorf("encode polygon: %w", err)
	}
	return s, nil
}
