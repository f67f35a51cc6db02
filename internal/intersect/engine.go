// Package intersect computes the geometric overlap between a parcel and every
// whitelisted catalog layer. This is the analytical core of the pipeline:
// everything downstream consumes its output.
package intersect

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"urbacert/internal/catalog"
	"urbacert/internal/certificate"
	"urbacert/internal/geo"
)

// Catalog is the slice of the layer catalog the engine consumes.
type Catalog interface {
	ListLayers(schemas []string) (layers []catalog.Layer, unknown []string)
}

// Engine intersects parcels against catalog layers.
type Engine struct {
	catalog Catalog
	logger  *slog.Logger
}

type Option func(*Engine)

func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

func New(cat Catalog, opts ...Option) *Engine {
	e := &Engine{catalog: cat}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Outcome is the full intersection result for one parcel.
type Outcome struct {
	Intersections []certificate.Intersection
	Coverage      []certificate.Coverage

	// Warnings records stage-local conditions (unknown schemas, skipped
	// degenerate features) that do not fail the stage.
	Warnings []string
}

// Intersect clips every whitelisted layer against the parcel boundary.
//
// A coarse bounding-box pre-filter skips exact GEOS computation for clearly
// disjoint features. Empty intersections are dropped. Attribute mappings are
// truncated to the first valuesLimit entries in layer-declared order, so
// truncation is deterministic for identical input. Whitelist schemas unknown
// to the catalog degrade to warnings, never to a request failure.
func (e *Engine) Intersect(ctx context.Context, parcel *certificate.Parcel, schemas []string, valuesLimit int) (*Outcome, error) {
	layers, unknown := e.catalog.ListLayers(schemas)

	out := &Outcome{}
	for _, schema := range unknown {
		out.Warnings = append(out.Warnings, "unknown schema: "+schema)
	}

	parcelBounds := parcel.Geometry.Bounds()
	parcelArea := parcel.AreaM2

	for _, layer := range layers {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		hits := e.intersectLayer(ctx, parcel, parcelBounds, layer, valuesLimit, out)
		if len(hits) == 0 {
			continue
		}
		out.Intersections = append(out.Intersections, hits...)
		out.Coverage = append(out.Coverage, coverageFor(layer, hits, parcelArea)...)
	}

	if e.logger != nil {
		e.logger.InfoContext(ctx, "intersection pass complete",
			"parcel", parcel.Label,
			"layers", len(layers),
			"hits", len(out.Intersections),
			"warnings", len(out.Warnings),
		)
	}
	return out, nil
}

func (e *Engine) intersectLayer(ctx context.Context, parcel *certificate.Parcel, parcelBounds geo.Bounds, layer catalog.Layer, valuesLimit int, out *Outcome) []certificate.Intersection {
	var hits []certificate.Intersection
	for i := range layer.Features {
		feature := &layer.Features[i]

		// Coarse pre-filter before exact GEOS work.
		if !parcelBounds.Intersects(feature.Geometry.Bounds()) {
			continue
		}

		clipped, err := parcel.Geometry.Intersection(feature.Geometry)
		if err != nil {
			// Degenerate source geometry: skip the feature, keep the layer.
			reason := fmt.Sprintf("layer %s feature %s: %v", layer.Qualified(), feature.ID, err)
			out.Warnings = append(out.Warnings, reason)
			if e.logger != nil {
				e.logger.WarnContext(ctx, "skipped degenerate feature",
					"layer", layer.Qualified(),
					"feature", feature.ID,
					"error", err,
				)
			}
			continue
		}
		if clipped.IsEmpty() {
			continue
		}

		area := clipped.Area()
		fraction := 0.0
		if parcel.AreaM2 > 0 {
			fraction = area / parcel.AreaM2
		}

		hits = append(hits, certificate.Intersection{
			Schema:           layer.Schema,
			Layer:            layer.Name,
			FeatureID:        feature.ID,
			Attrs:            truncateAttrs(feature.Attrs, layer.KeepAttrs, valuesLimit),
			AreaM2:           area,
			FractionOfParcel: fraction,
			Geometry:         clipped,
		})
	}
	return hits
}

// truncateAttrs keeps at most limit attributes, selected and ordered by the
// layer's declared whitelist. The selection is a deterministic prefix, never
// a sample.
func truncateAttrs(attrs []catalog.Attr, declared []string, limit int) []certificate.Attr {
	byName := make(map[string]string, len(attrs))
	for _, a := range attrs {
		if _, seen := byName[a.Name]; !seen {
			byName[a.Name] = a.Value
		}
	}

	out := make([]certificate.Attr, 0, min(limit, len(declared)))
	for _, name := range declared {
		if len(out) >= limit {
			break
		}
		if v, ok := byName[name]; ok {
			out = append(out, certificate.Attr{Name: name, Value: v})
		}
	}
	return out
}

// coverageFor aggregates intersection area per declared coverage attribute
// value, largest area first with a value tie-break for determinism.
func coverageFor(layer catalog.Layer, hits []certificate.Intersection, parcelArea float64) []certificate.Coverage {
	var out []certificate.Coverage
	for _, attr := range layer.CoverageAttrs {
		areas := make(map[string]float64)
		for _, hit := range hits {
			for _, a := range hit.Attrs {
				if a.Name == attr && a.Value != "" {
					areas[a.Value] += hit.AreaM2
				}
			}
		}
		if len(areas) == 0 {
			continue
		}

		values := make([]certificate.CoverageValue, 0, len(areas))
		for v, area := range areas {
			pct := 0.0
			if parcelArea > 0 {
				pct = area / parcelArea * 100
			}
			values = append(values, certificate.CoverageValue{Value: v, AreaM2: area, PctOfParcel: pct})
		}
		sort.Slice(values, func(i, j int) bool {
			if values[i].AreaM2 != values[j].AreaM2 {
				return values[i].AreaM2 > values[j].AreaM2
			}
			return values[i].Value < values[j].Value
		})

		out = append(out, certificate.Coverage{
			Layer:     layer.Qualified(),
			Attribute: attr,
			Values:    values,
		})
	}
	return out
}
