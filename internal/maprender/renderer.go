// Package maprender produces a self-contained Leaflet HTML map of the parcel,
// its intersected features and carved enclaves. Geometries are planar
// (Lambert-93), so the map uses Leaflet's simple CRS rather than web tiles.
package maprender

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html/template"
	"log/slog"
	"sort"

	"urbacert/internal/artifact"
	"urbacert/internal/certificate"
	dErrors "urbacert/pkg/domain-errors"
)

// Renderer writes certificate maps to an artifact store.
type Renderer struct {
	store  artifact.Store
	logger *slog.Logger
}

type Option func(*Renderer)

func WithLogger(logger *slog.Logger) Option {
	return func(r *Renderer) { r.logger = logger }
}

func New(store artifact.Store, opts ...Option) *Renderer {
	r := &Renderer{store: store}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// mapLayer is one named overlay handed to the template.
type mapLayer struct {
	Name     string          `json:"name"`
	Color    string          `json:"color"`
	Features json.RawMessage `json:"features"`
}

// Render builds the HTML document and writes it to the artifact store.
// maxPerLayer caps how many features of each layer appear, largest overlap
// first.
func (r *Renderer) Render(ctx context.Context, result *certificate.Result, maxPerLayer int) (artifact.Locator, error) {
	doc, err := buildHTML(result, maxPerLayer)
	if err != nil {
		return artifact.Locator{}, dErrors.Wrap(err, dErrors.CodeCompositionFailed, "render map")
	}
	loc, err := r.store.Write("map", ".html", doc)
	if err != nil {
		return artifact.Locator{}, dErrors.Wrap(err, dErrors.CodeCompositionFailed, "write map artifact")
	}
	if r.logger != nil {
		r.logger.InfoContext(ctx, "map rendered",
			"parcel", result.Parcel.Label,
			"artifact", loc.ID,
		)
	}
	return loc, nil
}

// TopFeatures selects at most max intersections per layer, by descending
// overlap area. Ties keep the layer-declared feature order, which is the
// order intersections were produced in.
func TopFeatures(intersections []certificate.Intersection, max int) []certificate.Intersection {
	if max <= 0 {
		return nil
	}
	byLayer := make(map[string][]certificate.Intersection)
	var order []string
	for _, hit := range intersections {
		key := hit.QualifiedLayer()
		if _, seen := byLayer[key]; !seen {
			order = append(order, key)
		}
		byLayer[key] = append(byLayer[key], hit)
	}
	var out []certificate.Intersection
	for _, key := range order {
		hits := byLayer[key]
		sort.SliceStable(hits, func(i, j int) bool { return hits[i].AreaM2 > hits[j].AreaM2 })
		if len(hits) > max {
			hits = hits[:max]
		}
		out = append(out, hits...)
	}
	return out
}

func buildHTML(result *certificate.Result, maxPerLayer int) ([]byte, error) {
	layers := []mapLayer{}

	if result.Parcel.Geometry != nil {
		fc, err := featureCollection([]geoFeature{{
			Geometry:   result.Parcel.Geometry.GeoJSON(),
			Properties: map[string]string{"label": result.Parcel.Label},
		}})
		if err != nil {
			return nil, err
		}
		layers = append(layers, mapLayer{Name: "Parcelle " + result.Parcel.Label, Color: "#d62728", Features: fc})
	}

	selected := TopFeatures(result.Intersections, maxPerLayer)
	grouped := make(map[string][]geoFeature)
	var groupOrder []string
	for _, hit := range selected {
		if hit.Geometry == nil {
			continue
		}
		key := hit.QualifiedLayer()
		if _, seen := grouped[key]; !seen {
			groupOrder = append(groupOrder, key)
		}
		props := map[string]string{
			"feature_id": hit.FeatureID,
			"area_m2":    fmt.Sprintf("%.1f", hit.AreaM2),
		}
		for _, a := range hit.Attrs {
			props[a.Name] = a.Value
		}
		grouped[key] = append(grouped[key], geoFeature{Geometry: hit.Geometry.GeoJSON(), Properties: props})
	}
	for i, key := range groupOrder {
		fc, err := featureCollection(grouped[key])
		if err != nil {
			return nil, err
		}
		layers = append(layers, mapLayer{Name: key, Color: layerPalette[i%len(layerPalette)], Features: fc})
	}

	if len(result.Enclaves) > 0 {
		feats := make([]geoFeature, 0, len(result.Enclaves))
		for _, e := range result.Enclaves {
			if e.Geometry == nil {
				continue
			}
			feats = append(feats, geoFeature{
				Geometry: e.Geometry.GeoJSON(),
				Properties: map[string]string{
					"layer":   e.Layer,
					"trigger": e.TriggerFeatureID,
					"area_m2": fmt.Sprintf("%.1f", e.AreaM2),
				},
			})
		}
		if len(feats) > 0 {
			fc, err := featureCollection(feats)
			if err != nil {
				return nil, err
			}
			layers = append(layers, mapLayer{Name: "Enclaves", Color: "#7f7f7f", Features: fc})
		}
	}

	payload, err := json.Marshal(layers)
	if err != nil {
		return nil, fmt.Errorf("marshal map layers: %w", err)
	}

	var buf bytes.Buffer
	err = mapTemplate.Execute(&buf, map[string]any{
		"Title":  "Parcelle " + result.Parcel.Label + " — " + result.Parcel.Commune,
		"Layers": template.JS(payload),
	})
	if err != nil {
		return nil, fmt.Errorf("execute map template: %w", err)
	}
	return buf.Bytes(), nil
}

type geoFeature struct {
	Geometry   string
	Properties map[string]string
}

func featureCollection(feats []geoFeature) (json.RawMessage, error) {
	type feature struct {
		Type       string            `json:"type"`
		Geometry   json.RawMessage   `json:"geometry"`
		Properties map[string]string `json:"properties"`
	}
	fc := struct {
		Type     string    `json:"type"`
		Features []feature `json:"features"`
	}{Type: "FeatureCollection"}
	for _, f := range feats {
		if !json.Valid([]byte(f.Geometry)) {
			return nil, fmt.Errorf("invalid geojson geometry")
		}
		fc.Features = append(fc.Features, feature{
			Type:       "Feature",
			Geometry:   json.RawMessage(f.Geometry),
			Properties: f.Properties,
		})
	}
	return json.Marshal(fc)
}

var layerPalette = []string{"#1f77b4", "#2ca02c", "#ff7f0e", "#9467bd", "#8c564b", "#17becf"}

var mapTemplate = template.Must(template.New("map").Parse(`<!DOCTYPE html>
<html lang="fr">
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<link rel="stylesheet" href="https://unpkg.com/leaflet@1.9.4/dist/leaflet.css">
<script src="https://unpkg.com/leaflet@1.9.4/dist/leaflet.js"></script>
<style>html, body, #map { height: 100%; margin: 0; }</style>
</head>
<body>
<div id="map"></div>
<script>
var layers = {{.Layers}};
var map = L.map('map', {crs: L.CRS.Simple, minZoom: -10});
var coords = function (c) { return L.latLng(c[1], c[0]); };
var overlays = {};
var bounds = null;
layers.forEach(function (spec) {
  var layer = L.geoJSON(spec.features, {
    coordsToLatLng: coords,
    style: {color: spec.color, weight: 2, fillOpacity: 0.25},
    onEachFeature: function (feature, l) {
      var rows = Object.keys(feature.properties || {}).map(function (k) {
        return '<b>' + k + '</b>: ' + feature.properties[k];
      });
      if (rows.length) { l.bindPopup(rows.join('<br>')); }
    }
  }).addTo(map);
  overlays[spec.name] = layer;
  var b = layer.getBounds();
  if (b.isValid()) { bounds = bounds ? bounds.extend(b) : b; }
});
L.control.layers(null, overlays).addTo(map);
if (bounds) { map.fitBounds(bounds, {padding: [20, 20]}); }
</script>
</body>
</html>
`))
