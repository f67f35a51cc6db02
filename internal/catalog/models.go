package catalog

import (
	"urbacert/internal/geo"
)

// Layer is one regulatory dataset under a schema. Layers are immutable after
// catalog load and shared read-only across requests.
type Layer struct {
	Schema string
	Name   string

	// GeomColumn names the source geometry column; informational outside the
	// postgres loader.
	GeomColumn string

	// KeepAttrs is the attribute whitelist in layer-declared order. This
	// order drives deterministic values_limit truncation.
	KeepAttrs []string

	// CoverageAttrs lists attributes for which per-value coverage areas are
	// aggregated.
	CoverageAttrs []string

	// EnclaveTrigger marks layers whose features trigger enclave carving.
	EnclaveTrigger bool

	Features []Feature
}

// Qualified returns the schema-qualified layer name.
func (l Layer) Qualified() string { return l.Schema + "." + l.Name }

// Feature is one geographic entity of a layer.
type Feature struct {
	ID       string
	Geometry *geo.Geometry
	Attrs    []Attr
}

// Attr is a single named attribute value. Attrs are kept as an ordered slice,
// not a map, so truncation order stays deterministic.
type Attr struct {
	Name  string
	Value string
}

// AttrValue returns the first value recorded under name, or "".
func (f Feature) AttrValue(name string) string {
	for _, a := range f.Attrs {
		if a.Name == name {
			return a.Value
		}
	}
	return ""
}

// CommuneRecord is one row of the commune reference table.
type CommuneRecord struct {
	INSEE      string
	Name       string
	Department string
}
