package pipeline

import (
	"context"
	"fmt"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"urbacert/internal/artifact"
	"urbacert/internal/catalog"
	"urbacert/internal/certificate"
	"urbacert/internal/enclave"
	"urbacert/internal/geo"
	"urbacert/internal/intersect"
	"urbacert/internal/jobs"
	"urbacert/internal/maprender"
	"urbacert/internal/notify"
	"urbacert/internal/parcel"
	"urbacert/internal/regulation"
	"urbacert/internal/report"
	dErrors "urbacert/pkg/domain-errors"
)

func mustGeom(t *testing.T, wkt string) *geo.Geometry {
	t.Helper()
	g, err := geo.FromWKT(wkt)
	require.NoError(t, err)
	return g
}

func rect(t *testing.T, x0, y0, x1, y1 float64) *geo.Geometry {
	t.Helper()
	return mustGeom(t, fmt.Sprintf("POLYGON((%g %g, %g %g, %g %g, %g %g, %g %g))",
		x0, y0, x1, y0, x1, y1, x0, y1, x0, y0))
}

// latresneCatalog models the reference scenario: a 1000x1000 m parcel in
// Latresne fully inside a Ub zone, with one neighbouring parcel 100 m to the
// east acting as an enclave trigger.
func latresneCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	cadastre := catalog.Layer{
		Schema: "public",
		Name:   "parcelles",
		Features: []catalog.Feature{{
			ID:       "p1",
			Geometry: rect(t, 0, 0, 1000, 1000),
			Attrs: []catalog.Attr{
				{Name: catalog.CadastralINSEE, Value: "33234"},
				{Name: catalog.CadastralSection, Value: "AC"},
				{Name: catalog.CadastralNumero, Value: "0494"},
			},
		}},
	}
	zoning := catalog.Layer{
		Schema:        "public",
		Name:          "b_zonage_plu",
		KeepAttrs:     []string{"typezone", "libelle"},
		CoverageAttrs: []string{"typezone"},
		Features: []catalog.Feature{{
			ID:       "z1",
			Geometry: rect(t, -500, -500, 1500, 1500),
			Attrs:    []catalog.Attr{{Name: "typezone", Value: "Ub"}},
		}},
	}
	neighbours := catalog.Layer{
		Schema:         "public",
		Name:           "parcelles_voisines",
		EnclaveTrigger: true,
		Features: []catalog.Feature{{
			ID:       "n1",
			Geometry: rect(t, 1100, 0, 1200, 1000),
		}},
	}
	communes := []catalog.CommuneRecord{{INSEE: "33234", Name: "Latresne", Department: "33"}}
	return catalog.New([]catalog.Layer{zoning, neighbours, cadastre}, communes, "public.parcelles")
}

type failingIndex struct{}

func (failingIndex) FindExcerpts(context.Context, string, string) ([]regulation.Excerpt, error) {
	return nil, dErrors.New(dErrors.CodeInternal, "regulation index unreachable")
}

type OrchestratorSuite struct {
	suite.Suite
	recorder *jobs.MemoryRecorder
}

func (s *OrchestratorSuite) newOrchestrator(index regulation.Index) *Orchestrator {
	store, err := artifact.NewDirStore(s.T().TempDir())
	s.Require().NoError(err)
	return s.newOrchestratorWithStore(index, store)
}

func (s *OrchestratorSuite) newOrchestratorWithStore(index regulation.Index, store artifact.Store, opts ...Option) *Orchestrator {
	cat := latresneCatalog(s.T())
	s.recorder = jobs.NewMemory()
	opts = append(opts, WithRecorder(s.recorder))
	return New(
		cat,
		parcel.New(cat),
		intersect.New(cat),
		enclave.New(),
		regulation.New(index),
		report.New(store),
		maprender.New(store),
		opts...,
	)
}

// kindFailingStore breaks writes of one artifact kind and delegates the rest.
type kindFailingStore struct {
	inner    artifact.Store
	failKind string
}

func (s kindFailingStore) Write(kind, extension string, data []byte) (artifact.Locator, error) {
	if kind == s.failKind {
		return artifact.Locator{}, fmt.Errorf("disk full writing %s", kind)
	}
	return s.inner.Write(kind, extension, data)
}

func canonicalIndex() *regulation.InMemoryIndex {
	index := regulation.NewInMemoryIndex()
	index.Add("33234", "UB", regulation.Excerpt{
		ZoneCode: "UB", Article: "Article 1", Content: "Sont interdits les affouillements.",
	})
	return index
}

func baseRequest() certificate.Request {
	return certificate.Request{
		Parcel:          "AC 0494",
		INSEE:           "33234",
		Commune:         "Latresne",
		SchemaWhitelist: []string{"public"},
		CarveEnclaves:   true,
		EnclaveBufferM:  200.0,
		MakeReport:      true,
		MakeMap:         true,
	}
}

func (s *OrchestratorSuite) TestFullRunCarvesEnclavesWithRequestedBuffer() {
	o := s.newOrchestrator(canonicalIndex())

	result, err := o.Run(context.Background(), baseRequest())
	s.Require().NoError(err)

	s.Equal(certificate.StageSucceeded, result.Stages[certificate.StageCarving].State)
	s.Require().NotEmpty(result.Enclaves)
	for _, e := range result.Enclaves {
		s.Equal(200.0, e.BufferM)
	}

	// The neighbour buffer reaches 100 m into the parcel: the zoning
	// intersection loses that strip to the enclave.
	s.Require().Len(result.Intersections, 1)
	s.InDelta(900_000, result.Intersections[0].AreaM2, 1)
	s.InDelta(100_000, result.Enclaves[0].AreaM2, 1)

	s.Equal(certificate.StageSucceeded, result.Stages[certificate.StageResolving].State)
	s.Equal(certificate.StageSucceeded, result.Stages[certificate.StageIntersecting].State)
	s.Equal(certificate.StageSucceeded, result.Stages[certificate.StageRegulations].State)
	s.Equal(certificate.StageSucceeded, result.Stages[certificate.StageReport].State)
	s.Equal(certificate.StageSucceeded, result.Stages[certificate.StageMap].State)

	s.Require().NotNil(result.ReportRef)
	s.Require().NotNil(result.MapRef)

	s.Require().Len(result.Regulations, 1)
	s.Equal("UB", result.Regulations[0].ZoneCode)
	s.Equal(certificate.ProvenanceCanonical, result.Regulations[0].Provenance)
}

func (s *OrchestratorSuite) TestUnknownCommuneIsFatal() {
	o := s.newOrchestrator(canonicalIndex())

	req := baseRequest()
	req.INSEE = "99999"

	result, err := o.Run(context.Background(), req)
	s.Require().Error(err)
	s.Nil(result)
	s.True(dErrors.HasCode(err, dErrors.CodeCommuneNotFound))
}

func (s *OrchestratorSuite) TestDisabledOutputsSkipCompositionButKeepAnalytics() {
	o := s.newOrchestrator(canonicalIndex())

	req := baseRequest()
	req.MakeReport = false
	req.MakeMap = false

	result, err := o.Run(context.Background(), req)
	s.Require().NoError(err)

	s.Nil(result.ReportRef)
	s.Nil(result.MapRef)
	s.Equal(certificate.StageSkipped, result.Stages[certificate.StageReport].State)
	s.Equal(certificate.StageSkipped, result.Stages[certificate.StageMap].State)

	s.NotEmpty(result.Intersections)
	s.NotEmpty(result.Enclaves)
	s.NotEmpty(result.Regulations)
}

func (s *OrchestratorSuite) TestUnreachableRegulationIndexDegradesOnlyThatStage() {
	o := s.newOrchestrator(failingIndex{})

	result, err := o.Run(context.Background(), baseRequest())
	s.Require().NoError(err)

	s.Equal(certificate.StageSucceeded, result.Stages[certificate.StageIntersecting].State)
	s.Equal(certificate.StageSucceeded, result.Stages[certificate.StageCarving].State)

	status := result.Stages[certificate.StageRegulations]
	s.Equal(certificate.StageFailed, status.State)
	s.Equal(string(dErrors.CodeRegulationLookupFailed), status.Reason)

	s.Require().Len(result.Regulations, 1)
	s.Equal(certificate.ProvenanceFailed, result.Regulations[0].Provenance)
}

func (s *OrchestratorSuite) TestCarvingDisabledIsSkipped() {
	o := s.newOrchestrator(canonicalIndex())

	req := baseRequest()
	req.CarveEnclaves = false

	result, err := o.Run(context.Background(), req)
	s.Require().NoError(err)

	s.Equal(certificate.StageSkipped, result.Stages[certificate.StageCarving].State)
	s.Empty(result.Enclaves)
	s.Require().Len(result.Intersections, 1)
	s.InDelta(1_000_000, result.Intersections[0].AreaM2, 1)
}

func (s *OrchestratorSuite) TestReportFailureLeavesMapAndAnalyticsIntact() {
	inner, err := artifact.NewDirStore(s.T().TempDir())
	s.Require().NoError(err)
	store := kindFailingStore{inner: inner, failKind: "report"}
	o := s.newOrchestratorWithStore(canonicalIndex(), store)

	result, err := o.Run(context.Background(), baseRequest())
	s.Require().NoError(err)

	reportStatus := result.Stages[certificate.StageReport]
	s.Equal(certificate.StageFailed, reportStatus.State)
	s.Equal(string(dErrors.CodeCompositionFailed), reportStatus.Reason)
	s.Nil(result.ReportRef)

	s.Equal(certificate.StageSucceeded, result.Stages[certificate.StageMap].State)
	s.Require().NotNil(result.MapRef)
	s.NotEmpty(result.MapRef.Path)

	s.NotEmpty(result.Intersections)
	s.NotEmpty(result.Enclaves)
	s.NotEmpty(result.Regulations)

	recorded := s.recorder.Jobs()
	s.Require().Len(recorded, 1)
	s.Equal("degraded", recorded[0].Status)
}

func (s *OrchestratorSuite) TestCleanRunNotifiesRequestedRecipients() {
	store, err := artifact.NewDirStore(s.T().TempDir())
	s.Require().NoError(err)
	notifier := notify.NewMemory()
	o := s.newOrchestratorWithStore(canonicalIndex(), store, WithNotifier(notifier))

	req := baseRequest()
	req.NotifyEmails = []string{"mairie@latresne.fr"}

	result, err := o.Run(context.Background(), req)
	s.Require().NoError(err)

	sent := notifier.Sent()
	s.Require().Len(sent, 1)
	s.Equal([]string{"mairie@latresne.fr"}, sent[0].Recipients)
	s.Equal("AC 0494", sent[0].ParcelLabel)
	s.Equal("33234", sent[0].INSEE)
	s.Equal(result.ReportRef.Path, sent[0].ReportPath)
	s.Equal(result.MapRef.Path, sent[0].MapPath)
}

func (s *OrchestratorSuite) TestDegradedRunStaysSilent() {
	inner, err := artifact.NewDirStore(s.T().TempDir())
	s.Require().NoError(err)
	store := kindFailingStore{inner: inner, failKind: "report"}
	notifier := notify.NewMemory()
	o := s.newOrchestratorWithStore(canonicalIndex(), store, WithNotifier(notifier))

	req := baseRequest()
	req.NotifyEmails = []string{"mairie@latresne.fr"}

	_, err = o.Run(context.Background(), req)
	s.Require().NoError(err)
	s.Empty(notifier.Sent())
}

func (s *OrchestratorSuite) TestJobRecordedWithTokenSubject() {
	o := s.newOrchestrator(canonicalIndex())

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "agent-7"})
	signed, err := token.SignedString([]byte("test-key"))
	s.Require().NoError(err)

	req := baseRequest()
	req.AccessToken = signed

	_, err = o.Run(context.Background(), req)
	s.Require().NoError(err)

	recorded := s.recorder.Jobs()
	s.Require().Len(recorded, 1)
	s.Equal("agent-7", recorded[0].UserID)
	s.Equal("33234", recorded[0].INSEE)
	s.Equal("AC 0494", recorded[0].ParcelLabel)
	s.Equal("done", recorded[0].Status)
	s.NotEmpty(recorded[0].ReportPath)
	s.NotEmpty(recorded[0].MapPath)
}

func (s *OrchestratorSuite) TestInvalidRequestRejectedBeforeAnyStage() {
	o := s.newOrchestrator(canonicalIndex())

	result, err := o.Run(context.Background(), certificate.Request{Parcel: "AC 0494"})
	s.Require().Error(err)
	s.Nil(result)
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
}

func TestOrchestratorSuite(t *testing.T) {
	suite.Run(t, new(OrchestratorSuite))
}
