// Package regulation resolves zoning codes discovered during intersection to
// textual regulation excerpts. Canonical passages come from the regulation
// index; misses fall back to a text-completion collaborator, and failures
// degrade to empty entries with a failure provenance tag. Nothing in this
// package ever aborts the pipeline.
package regulation

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"urbacert/internal/certificate"
)

// Attribute names inspected for zoning codes, matching the zoning layer's
// declared attributes.
var zoneAttrNames = []string{"typezone", "libelle"}

// Service resolves regulation entries for a set of intersections.
type Service struct {
	index             Index
	completer         Completer
	completionTimeout time.Duration
	logger            *slog.Logger
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// WithCompleter enables the text-completion fallback.
func WithCompleter(completer Completer, timeout time.Duration) Option {
	return func(s *Service) {
		s.completer = completer
		s.completionTimeout = timeout
	}
}

func New(index Index, opts ...Option) *Service {
	s := &Service{index: index, completionTimeout: 30 * time.Second}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Resolve produces one RegulationEntry per distinct zoning code found in the
// intersections, in first-seen order. Lookup failures yield entries with
// empty text and failed provenance; they never return an error.
func (s *Service) Resolve(ctx context.Context, insee, commune string, intersections []certificate.Intersection) []certificate.RegulationEntry {
	codes := ZoneCodes(intersections)

	entries := make([]certificate.RegulationEntry, 0, len(codes))
	for _, code := range codes {
		entries = append(entries, s.resolveOne(ctx, insee, commune, code))
	}
	return entries
}

func (s *Service) resolveOne(ctx context.Context, insee, commune, code string) certificate.RegulationEntry {
	var lookupErr error
	for _, candidate := range CandidatesForZone(code) {
		excerpts, err := s.index.FindExcerpts(ctx, insee, candidate)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				continue
			}
			lookupErr = err
			break
		}
		return certificate.RegulationEntry{
			ZoneCode:   code,
			Article:    excerpts[0].Article,
			Text:       joinExcerpts(excerpts),
			Provenance: certificate.ProvenanceCanonical,
		}
	}

	if lookupErr != nil {
		if s.logger != nil {
			s.logger.WarnContext(ctx, "regulation index lookup failed",
				"insee", insee,
				"code", code,
				"error", lookupErr,
			)
		}
		return certificate.RegulationEntry{ZoneCode: code, Provenance: certificate.ProvenanceFailed}
	}

	return s.completeFallback(ctx, commune, code)
}

// completeFallback asks the text-completion collaborator for an approximate
// excerpt, bounded by the configured timeout.
func (s *Service) completeFallback(ctx context.Context, commune, code string) certificate.RegulationEntry {
	if s.completer == nil {
		return certificate.RegulationEntry{ZoneCode: code, Provenance: certificate.ProvenanceFailed}
	}

	ctx, cancel := context.WithTimeout(ctx, s.completionTimeout)
	defer cancel()

	text, err := s.completer.Complete(ctx, commune, code)
	if err != nil {
		if s.logger != nil {
			s.logger.WarnContext(ctx, "completion fallback failed",
				"commune", commune,
				"code", code,
				"error", err,
			)
		}
		return certificate.RegulationEntry{ZoneCode: code, Provenance: certificate.ProvenanceFailed}
	}
	return certificate.RegulationEntry{
		ZoneCode:   code,
		Text:       text,
		Provenance: certificate.ProvenanceCompletion,
	}
}

// ZoneCodes extracts distinct zoning codes from intersection attributes in
// first-seen order. typezone wins over libelle within one intersection.
func ZoneCodes(intersections []certificate.Intersection) []string {
	seen := make(map[string]bool)
	var codes []string
	for _, hit := range intersections {
		code := zoneCodeOf(hit)
		if code == "" || seen[code] {
			continue
		}
		seen[code] = true
		codes = append(codes, code)
	}
	return codes
}

func zoneCodeOf(hit certificate.Intersection) string {
	for _, name := range zoneAttrNames {
		for _, a := range hit.Attrs {
			if a.Name == name && strings.TrimSpace(a.Value) != "" {
				return strings.ToUpper(strings.TrimSpace(a.Value))
			}
		}
	}
	return ""
}

func joinExcerpts(excerpts []Excerpt) string {
	parts := make([]string, 0, len(excerpts))
	for _, e := range excerpts {
		title := strings.TrimSpace(e.Article)
		content := strings.TrimSpace(e.Content)
		switch {
		case title != "" && content != "":
			parts = append(parts, "=== "+title+" ===\n"+content)
		case title != "":
			parts = append(parts, "=== "+title+" ===")
		case content != "":
			parts = append(parts, content)
		}
	}
	return strings.Join(parts, "\n\n")
}
