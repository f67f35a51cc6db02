// Package enclave carves non-applicable sub-regions out of intersection
// results. A sub-region is carved when it falls within a buffer distance of a
// trigger feature designated in the layer catalog.
package enclave

import (
	"context"
	"fmt"
	"log/slog"

	"urbacert/internal/catalog"
	"urbacert/internal/certificate"
	"urbacert/internal/geo"
)

// Carver applies buffer-based carving to a set of intersections.
type Carver struct {
	logger *slog.Logger
}

type Option func(*Carver)

func WithLogger(logger *slog.Logger) Option {
	return func(c *Carver) { c.logger = logger }
}

func New(opts ...Option) *Carver {
	c := &Carver{}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Outcome is the result of one carving pass.
type Outcome struct {
	// Intersections is the post-carve set; geometries of carved layers are
	// replaced, the rest pass through unchanged.
	Intersections []certificate.Intersection
	Enclaves      []certificate.Enclave
	Warnings      []string

	// CarvedAreaM2 is the total area removed, for consistency reporting.
	CarvedAreaM2 float64
}

// bufferedTrigger is one trigger feature with its precomputed buffer region.
type bufferedTrigger struct {
	layer     string
	featureID string
	region    *geo.Geometry
}

// Carve removes, from every non-trigger layer's intersection geometry, the
// parts lying within bufferM of a trigger feature. Triggers are processed in
// catalog-declared order and combined by sequential difference, which equals
// carving against the union of all trigger buffers while keeping per-trigger
// enclave attribution disjoint. A zero buffer distance is an exact no-op.
//
// Carving runs once per layer per invocation; calling it on the same input
// again yields the same result because carved geometry no longer overlaps any
// trigger buffer.
func (c *Carver) Carve(ctx context.Context, parcel *certificate.Parcel, intersections []certificate.Intersection, triggerLayers []catalog.Layer, bufferM float64) (*Outcome, error) {
	out := &Outcome{Intersections: intersections}
	if bufferM == 0 || len(intersections) == 0 {
		return out, nil
	}

	triggers, warnings, err := c.bufferTriggers(parcel, triggerLayers, bufferM)
	if err != nil {
		return nil, err
	}
	out.Warnings = warnings
	if len(triggers) == 0 {
		return out, nil
	}

	triggerNames := make(map[string]bool, len(triggerLayers))
	for _, l := range triggerLayers {
		triggerNames[l.Qualified()] = true
	}

	carved := make([]certificate.Intersection, len(intersections))
	copy(carved, intersections)

	for i := range carved {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		hit := &carved[i]
		if triggerNames[hit.QualifiedLayer()] {
			continue
		}

		remaining := hit.Geometry
		for _, trig := range triggers {
			if remaining.IsEmpty() {
				break
			}
			if !remaining.Bounds().Intersects(trig.region.Bounds()) {
				continue
			}

			enclaveGeom, err := remaining.Intersection(trig.region)
			if err != nil {
				out.Warnings = append(out.Warnings, fmt.Sprintf(
					"carving %s against %s/%s: %v", hit.QualifiedLayer(), trig.layer, trig.featureID, err))
				continue
			}
			if enclaveGeom.IsEmpty() {
				continue
			}

			remaining, err = remaining.Difference(trig.region)
			if err != nil {
				return nil, err
			}

			area := enclaveGeom.Area()
			out.CarvedAreaM2 += area
			out.Enclaves = append(out.Enclaves, certificate.Enclave{
				Layer:            hit.QualifiedLayer(),
				TriggerFeatureID: trig.featureID,
				BufferM:          bufferM,
				AreaM2:           area,
				Geometry:         enclaveGeom,
			})
		}

		if remaining != hit.Geometry {
			hit.Geometry = remaining
			hit.AreaM2 = remaining.Area()
			if parcel.AreaM2 > 0 {
				hit.FractionOfParcel = hit.AreaM2 / parcel.AreaM2
			}
		}
	}

	if c.logger != nil {
		c.logger.InfoContext(ctx, "enclave carving complete",
			"parcel", parcel.Label,
			"buffer_m", bufferM,
			"enclaves", len(out.Enclaves),
			"carved_area_m2", out.CarvedAreaM2,
		)
	}

	out.Intersections = carved
	return out, nil
}

// bufferTriggers buffers every trigger feature near enough to the parcel to
// matter, restricted to the parcel boundary.
func (c *Carver) bufferTriggers(parcel *certificate.Parcel, triggerLayers []catalog.Layer, bufferM float64) ([]bufferedTrigger, []string, error) {
	parcelBounds := parcel.Geometry.Bounds()

	var triggers []bufferedTrigger
	var warnings []string
	for _, layer := range triggerLayers {
		for i := range layer.Features {
			feature := &layer.Features[i]
			if !parcelBounds.Intersects(feature.Geometry.Bounds().Expand(bufferM)) {
				continue
			}

			buffered, err := feature.Geometry.Buffer(bufferM)
			if err != nil {
				warnings = append(warnings, fmt.Sprintf(
					"buffer trigger %s/%s: %v", layer.Qualified(), feature.ID, err))
				continue
			}
			region, err := buffered.Intersection(parcel.Geometry)
			if err != nil {
				return nil, nil, err
			}
			if region.IsEmpty() {
				continue
			}
			triggers = append(triggers, bufferedTrigger{
				layer:     layer.Qualified(),
				featureID: feature.ID,
				region:    region,
			})
		}
	}
	return triggers, warnings, nil
}
