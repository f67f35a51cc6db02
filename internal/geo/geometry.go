// Package geo wraps the GEOS bindings behind a small geometry type so the
// rest of the pipeline never touches cgo handles directly. All geometries
// share one GEOS context; the context serializes native calls internally, so
// concurrent requests may operate on catalog geometries without extra locking.
package geo

import (
	"fmt"

	"github.com/twpayne/go-geos"

	dErrors "urbacert/pkg/domain-errors"
)

var geosContext = geos.NewContext()

// Geometry is an immutable planar geometry. Coordinates are assumed to be in
// the catalog's shared metric system; areas are native square units.
type Geometry struct {
	g *geos.Geom
}

// Bounds is an axis-aligned bounding box used as a coarse pre-filter before
// exact GEOS computation.
type Bounds struct {
	MinX, MinY, MaxX, MaxY float64
}

// Intersects reports whether two boxes overlap, boundaries included.
func (b Bounds) Intersects(o Bounds) bool {
	return b.MinX <= o.MaxX && o.MinX <= b.MaxX && b.MinY <= o.MaxY && o.MinY <= b.MaxY
}

// Expand grows the box by d on every side, matching the reach of a geometry
// buffered by d.
func (b Bounds) Expand(d float64) Bounds {
	return Bounds{MinX: b.MinX - d, MinY: b.MinY - d, MaxX: b.MaxX + d, MaxY: b.MaxY + d}
}

// FromWKT parses a WKT geometry.
func FromWKT(wkt string) (*Geometry, error) {
	g, err := geosContext.NewGeomFromWKT(wkt)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInvalidGeometry, "parse WKT")
	}
	return &Geometry{g: g}, nil
}

// WKT serializes the geometry as WKT.
func (g *Geometry) WKT() string { return g.g.String() }

// GeoJSON serializes the geometry as a compact GeoJSON geometry object.
func (g *Geometry) GeoJSON() string { return g.g.ToGeoJSON(0) }

// Area returns the planar area in native square units.
func (g *Geometry) Area() float64 { return g.g.Area() }

// IsEmpty reports whether the geometry has no points.
func (g *Geometry) IsEmpty() bool { return g.g.IsEmpty() }

// IsValid reports topological validity.
func (g *Geometry) IsValid() bool { return g.g.IsValid() }

// Bounds returns the geometry's bounding box. Empty geometries yield an
// inverted box that intersects nothing.
func (g *Geometry) Bounds() Bounds {
	if g.g.IsEmpty() {
		return Bounds{MinX: 1, MinY: 1, MaxX: -1, MaxY: -1}
	}
	box := g.g.Bounds()
	return Bounds{MinX: box.MinX, MinY: box.MinY, MaxX: box.MaxX, MaxY: box.MaxY}
}

// Repair applies GEOS MakeValid to fix self-intersections and other defects.
func (g *Geometry) Repair() (out *Geometry, err error) {
	defer recoverGeos(&err, "make valid")
	fixed := g.g.MakeValid()
	if fixed == nil {
		return nil, dErrors.New(dErrors.CodeInvalidGeometry, "geometry could not be repaired")
	}
	return &Geometry{g: fixed}, nil
}

// Intersects runs the exact GEOS intersection predicate.
func (g *Geometry) Intersects(o *Geometry) (ok bool, err error) {
	defer recoverGeos(&err, "intersects")
	return g.g.Intersects(o.g), nil
}

// Covers reports whether every point of o lies within g.
func (g *Geometry) Covers(o *Geometry) (ok bool, err error) {
	defer recoverGeos(&err, "covers")
	return g.g.Covers(o.g), nil
}

// Intersection computes g ∩ o.
func (g *Geometry) Intersection(o *Geometry) (out *Geometry, err error) {
	defer recoverGeos(&err, "intersection")
	return &Geometry{g: g.g.Intersection(o.g)}, nil
}

// Difference computes g minus o.
func (g *Geometry) Difference(o *Geometry) (out *Geometry, err error) {
	defer recoverGeos(&err, "difference")
	return &Geometry{g: g.g.Difference(o.g)}, nil
}

// Union computes g ∪ o.
func (g *Geometry) Union(o *Geometry) (out *Geometry, err error) {
	defer recoverGeos(&err, "union")
	return &Geometry{g: g.g.Union(o.g)}, nil
}

// Buffer expands the geometry by dist native units. A zero distance returns
// the geometry unchanged so zero-buffer carving stays a strict no-op.
func (g *Geometry) Buffer(dist float64) (out *Geometry, err error) {
	if dist == 0 {
		return g, nil
	}
	defer recoverGeos(&err, "buffer")
	return &Geometry{g: g.g.Buffer(dist, 8)}, nil
}

// UnionAll folds a slice of geometries into one. An empty slice returns nil.
func UnionAll(geoms []*Geometry) (*Geometry, error) {
	var acc *Geometry
	for _, g := range geoms {
		if g == nil || g.IsEmpty() {
			continue
		}
		if acc == nil {
			acc = g
			continue
		}
		u, err := acc.Union(g)
		if err != nil {
			return nil, err
		}
		acc = u
	}
	return acc, nil
}

// GEOS reports topology exceptions as panics through the bindings; convert
// them to coded errors so degenerate source geometries degrade a stage
// instead of crashing the process.
func recoverGeos(err *error, op string) {
	if r := recover(); r != nil {
		*err = dErrors.Wrap(fmt.Errorf("%v", r), dErrors.CodeInvalidGeometry, "geos "+op)
	}
}
