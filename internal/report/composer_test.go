package report

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"urbacert/internal/artifact"
	"urbacert/internal/certificate"
)

type memStore struct {
	kind string
	ext  string
	data []byte
}

func (s *memStore) Write(kind, extension string, data []byte) (artifact.Locator, error) {
	s.kind, s.ext, s.data = kind, extension, data
	return artifact.Locator{ID: "art-1", Kind: kind, Path: "/tmp/art-1" + extension}, nil
}

type ComposerSuite struct {
	suite.Suite
	result *certificate.Result
}

func (s *ComposerSuite) SetupTest() {
	s.result = &certificate.Result{
		Parcel: certificate.Parcel{
			Label:   "AC 0494",
			Section: "AC",
			Numero:  "0494",
			INSEE:   "33234",
			Commune: "Latresne",
			AreaM2:  1250,
		},
		Intersections: []certificate.Intersection{
			{
				Schema:           "plu",
				Layer:            "zone_urba",
				FeatureID:        "17",
				Attrs:            []certificate.Attr{{Name: "typezone", Value: "Ub"}},
				AreaM2:           900,
				FractionOfParcel: 0.72,
			},
		},
		Coverage: []certificate.Coverage{
			{
				Layer:     "plu.zone_urba",
				Attribute: "typezone",
				Values: []certificate.CoverageValue{
					{Value: "Ub", AreaM2: 900, PctOfParcel: 72},
				},
			},
		},
		Enclaves: []certificate.Enclave{
			{Layer: "plu.zone_urba", TriggerFeatureID: "3", BufferM: 200, AreaM2: 120.5},
		},
		Regulations: []certificate.RegulationEntry{
			{ZoneCode: "UB", Text: "=== Article 1 ===\nSont interdits...", Provenance: certificate.ProvenanceCanonical},
		},
	}
}

func (s *ComposerSuite) TestComposeWritesMarkdownArtifact() {
	store := &memStore{}
	fixed := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	composer := New(store, WithClock(func() time.Time { return fixed }))

	loc, err := composer.Compose(context.Background(), s.result)
	s.Require().NoError(err)
	s.Equal("art-1", loc.ID)
	s.Equal("report", store.kind)
	s.Equal(".md", store.ext)

	doc := string(store.data)
	s.Contains(doc, "Latresne (INSEE 33234)")
	s.Contains(doc, "AC 0494")
	s.Contains(doc, "14/03/2026")
	s.Contains(doc, "| plu.zone_urba | 17 | 900.0 | 72.0 % | typezone=Ub |")
	s.Contains(doc, "Ub : 900.0 m² (72.0 %)")
	s.Contains(doc, "| plu.zone_urba | 3 | 200.0 | 120.5 |")
	s.Contains(doc, "Zone UB (source officielle)")
	s.Contains(doc, "Sont interdits")
}

func (s *ComposerSuite) TestRenderEmptySections() {
	doc := Render(&certificate.Result{Parcel: s.result.Parcel}, time.Now())
	s.Contains(doc, "Aucune couche réglementaire")
	s.Contains(doc, "Aucune enclave détectée")
	s.Contains(doc, "Aucun règlement de zonage")
}

func (s *ComposerSuite) TestProvenanceLabels() {
	s.result.Regulations = []certificate.RegulationEntry{
		{ZoneCode: "AUC", Text: "texte", Provenance: certificate.ProvenanceCompletion},
		{ZoneCode: "N", Provenance: certificate.ProvenanceFailed},
	}
	doc := Render(s.result, time.Now())
	s.Contains(doc, "Zone AUC (texte approché)")
	s.Contains(doc, "Zone N (non résolu)")
	s.Contains(doc, "Texte indisponible.")
}

func TestComposerSuite(t *testing.T) {
	suite.Run(t, new(ComposerSuite))
}

func TestRenderAttrsEmpty(t *testing.T) {
	require.Equal(t, "—", renderAttrs(nil))
}
