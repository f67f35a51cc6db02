// Package report renders the certificate findings as a structured text
// document: parcel summary, per-layer intersection table, enclave table and
// regulation excerpts.
package report

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"urbacert/internal/artifact"
	"urbacert/internal/certificate"
	dErrors "urbacert/pkg/domain-errors"
)

// Composer writes certificate reports to an artifact store.
type Composer struct {
	store  artifact.Store
	logger *slog.Logger
	now    func() time.Time
}

type Option func(*Composer)

func WithLogger(logger *slog.Logger) Option {
	return func(c *Composer) { c.logger = logger }
}

// WithClock overrides the timestamp source in tests.
func WithClock(now func() time.Time) Option {
	return func(c *Composer) { c.now = now }
}

func New(store artifact.Store, opts ...Option) *Composer {
	c := &Composer{store: store, now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Compose renders the document and writes it to the artifact store.
func (c *Composer) Compose(ctx context.Context, result *certificate.Result) (artifact.Locator, error) {
	doc := Render(result, c.now())
	loc, err := c.store.Write("report", ".md", []byte(doc))
	if err != nil {
		return artifact.Locator{}, dErrors.Wrap(err, dErrors.CodeCompositionFailed, "write report artifact")
	}
	if c.logger != nil {
		c.logger.InfoContext(ctx, "report composed",
			"parcel", result.Parcel.Label,
			"artifact", loc.ID,
		)
	}
	return loc, nil
}

// Render builds the report text. Split from Compose so tests can assert on
// content without an artifact store.
func Render(result *certificate.Result, at time.Time) string {
	var b strings.Builder
	p := result.Parcel

	fmt.Fprintf(&b, "# Certificat d'urbanisme d'information\n\n")
	fmt.Fprintf(&b, "Commune : %s (INSEE %s)\n", p.Commune, p.INSEE)
	fmt.Fprintf(&b, "Parcelle : %s\n", p.Label)
	fmt.Fprintf(&b, "Surface : %.0f m²\n", p.AreaM2)
	fmt.Fprintf(&b, "Édité le : %s\n\n", at.Format("02/01/2006"))

	b.WriteString("## Couches intersectées\n\n")
	if len(result.Intersections) == 0 {
		b.WriteString("Aucune couche réglementaire n'intersecte la parcelle.\n\n")
	} else {
		b.WriteString("| Couche | Entité | Surface (m²) | Part de parcelle | Attributs |\n")
		b.WriteString("|---|---|---|---|---|\n")
		for _, hit := range result.Intersections {
			fmt.Fprintf(&b, "| %s | %s | %.1f | %.1f %% | %s |\n",
				hit.QualifiedLayer(), hit.FeatureID, hit.AreaM2,
				hit.FractionOfParcel*100, renderAttrs(hit.Attrs))
		}
		b.WriteString("\n")
	}

	if len(result.Coverage) > 0 {
		b.WriteString("## Couverture par attribut\n\n")
		for _, cov := range result.Coverage {
			fmt.Fprintf(&b, "%s — %s :\n", cov.Layer, cov.Attribute)
			for _, v := range cov.Values {
				fmt.Fprintf(&b, "  - %s : %.1f m² (%.1f %%)\n", v.Value, v.AreaM2, v.PctOfParcel)
			}
			b.WriteString("\n")
		}
	}

	b.WriteString("## Enclaves\n\n")
	if len(result.Enclaves) == 0 {
		b.WriteString("Aucune enclave détectée.\n\n")
	} else {
		b.WriteString("| Couche | Déclencheur | Tampon (m) | Surface exclue (m²) |\n")
		b.WriteString("|---|---|---|---|\n")
		for _, e := range result.Enclaves {
			fmt.Fprintf(&b, "| %s | %s | %.1f | %.1f |\n",
				e.Layer, e.TriggerFeatureID, e.BufferM, e.AreaM2)
		}
		b.WriteString("\n")
	}

	b.WriteString("## Règlements applicables\n\n")
	if len(result.Regulations) == 0 {
		b.WriteString("Aucun règlement de zonage identifié.\n")
	} else {
		for _, reg := range result.Regulations {
			fmt.Fprintf(&b, "### Zone %s (%s)\n\n", reg.ZoneCode, provenanceLabel(reg.Provenance))
			if reg.Text == "" {
				b.WriteString("Texte indisponible.\n\n")
			} else {
				b.WriteString(reg.Text)
				b.WriteString("\n\n")
			}
		}
	}

	return b.String()
}

func renderAttrs(attrs []certificate.Attr) string {
	if len(attrs) == 0 {
		return "—"
	}
	parts := make([]string, 0, len(attrs))
	for _, a := range attrs {
		parts = append(parts, a.Name+"="+a.Value)
	}
	return strings.Join(parts, ", ")
}

func provenanceLabel(p certificate.Provenance) string {
	switch p {
	case certificate.ProvenanceCanonical:
		return "source officielle"
	case certificate.ProvenanceCompletion:
		return "texte approché"
	default:
		return "non résolu"
	}
}
