// Package parcel resolves a cadastral reference to its boundary geometry and
// canonical INSEE code.
package parcel

import (
	"context"
	"log/slog"
	"strings"

	"urbacert/internal/catalog"
	"urbacert/internal/certificate"
	dErrors "urbacert/pkg/domain-errors"
)

// Catalog is the slice of the layer catalog the resolver needs.
type Catalog interface {
	LookupCommuneByINSEE(insee string) (catalog.CommuneRecord, error)
	LookupCommuneByName(name, department string) (catalog.CommuneRecord, error)
	FindParcelFeature(insee, section, numero string) (*catalog.Feature, error)
}

// Service resolves parcels against the catalog's cadastral layer.
type Service struct {
	catalog Catalog
	logger  *slog.Logger
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func New(cat Catalog, opts ...Option) *Service {
	s := &Service{catalog: cat}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Ref is a normalized cadastral reference: upper-case section, numero
// zero-padded to four digits.
type Ref struct {
	Section string
	Numero  string
}

// Label renders the reference in its display form ("AC 0494").
func (r Ref) Label() string { return r.Section + " " + r.Numero }

// ParseRef normalizes a "SECTION NUMERO" reference.
func ParseRef(raw string) (Ref, error) {
	parts := strings.Fields(strings.TrimSpace(raw))
	if len(parts) != 2 {
		return Ref{}, dErrors.New(dErrors.CodeValidation, "parcel reference must be 'SECTION NUMERO'")
	}
	numero := parts[1]
	for len(numero) < 4 {
		numero = "0" + numero
	}
	return Ref{Section: strings.ToUpper(parts[0]), Numero: numero}, nil
}

// Resolve looks up the commune (INSEE code preferred, name as fallback) and
// the parcel boundary. Source geometries that fail validation are repaired
// before use; an unrepairable geometry is a fatal InvalidGeometry.
func (s *Service) Resolve(ctx context.Context, rawRef, insee, commune string) (*certificate.Parcel, error) {
	ref, err := ParseRef(rawRef)
	if err != nil {
		return nil, err
	}

	rec, err := s.resolveCommune(insee, commune)
	if err != nil {
		return nil, err
	}

	feature, err := s.catalog.FindParcelFeature(rec.INSEE, ref.Section, ref.Numero)
	if err != nil {
		return nil, err
	}

	geom := feature.Geometry
	if !geom.IsValid() {
		repaired, err := geom.Repair()
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInvalidGeometry,
				"parcel "+ref.Label()+" has an unrepairable boundary")
		}
		if s.logger != nil {
			s.logger.WarnContext(ctx, "repaired invalid parcel boundary",
				"parcel", ref.Label(),
				"insee", rec.INSEE,
			)
		}
		geom = repaired
	}

	return &certificate.Parcel{
		Label:    ref.Label(),
		Section:  ref.Section,
		Numero:   ref.Numero,
		INSEE:    rec.INSEE,
		Commune:  rec.Name,
		AreaM2:   geom.Area(),
		Geometry: geom,
	}, nil
}

// resolveCommune validates the INSEE code when present, otherwise falls back
// to name lookup narrowed by the department prefix of the INSEE code.
func (s *Service) resolveCommune(insee, commune string) (catalog.CommuneRecord, error) {
	if strings.TrimSpace(insee) != "" {
		return s.catalog.LookupCommuneByINSEE(insee)
	}
	return s.catalog.LookupCommuneByName(commune, "")
}
