// Package certificate defines the request, result and stage-status types
// shared by every pipeline stage. All values are request-scoped: created
// fresh per request and discarded once the response is produced.
package certificate

import (
	"strings"

	"urbacert/internal/artifact"
	"urbacert/internal/geo"
	dErrors "urbacert/pkg/domain-errors"
	pstrings "urbacert/pkg/platform/strings"
)

// Stage names the pipeline phases recorded in the per-stage status map.
type Stage string

const (
	StageResolving    Stage = "Resolving"
	StageIntersecting Stage = "Intersecting"
	StageCarving      Stage = "Carving"
	StageRegulations  Stage = "Resolving-Regulations"
	StageReport       Stage = "Report"
	StageMap          Stage = "Map"
)

// StageState is the outcome of one pipeline stage.
type StageState string

const (
	StageSucceeded StageState = "succeeded"
	StageSkipped   StageState = "skipped"
	StageFailed    StageState = "failed"
)

// StageStatus carries the outcome and, for failures and warnings, a
// machine-readable reason. Degraded stages must never lose their reason.
type StageStatus struct {
	State    StageState `json:"state"`
	Reason   string     `json:"reason,omitempty"`
	Warnings []string   `json:"warnings,omitempty"`
}

// Succeeded builds a success status with optional warnings.
func Succeeded(warnings ...string) StageStatus {
	return StageStatus{State: StageSucceeded, Warnings: warnings}
}

// Skipped marks a stage disabled by the request.
func Skipped() StageStatus { return StageStatus{State: StageSkipped} }

// Failed marks a degraded stage with its reason.
func Failed(reason string) StageStatus { return StageStatus{State: StageFailed, Reason: reason} }

// Parcel is the resolved cadastral unit. Immutable once resolved.
type Parcel struct {
	Label    string        `json:"label"`
	Section  string        `json:"section"`
	Numero   string        `json:"numero"`
	INSEE    string        `json:"insee"`
	Commune  string        `json:"commune"`
	AreaM2   float64       `json:"area_m2"`
	Geometry *geo.Geometry `json:"-"`
}

// Attr is one retained attribute entry of an intersection, in layer-declared
// order.
type Attr struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Intersection is the clipped overlap between the parcel and one layer
// feature.
type Intersection struct {
	Schema           string        `json:"schema"`
	Layer            string        `json:"layer"`
	FeatureID        string        `json:"feature_id"`
	Attrs            []Attr        `json:"attrs"`
	AreaM2           float64       `json:"area_m2"`
	FractionOfParcel float64       `json:"fraction_of_parcel"`
	Geometry         *geo.Geometry `json:"-"`
}

// QualifiedLayer returns the schema-qualified layer name.
func (i Intersection) QualifiedLayer() string { return i.Schema + "." + i.Layer }

// Coverage aggregates intersection area per attribute value for one layer
// attribute, largest area first.
type Coverage struct {
	Layer     string          `json:"layer"`
	Attribute string          `json:"attribute"`
	Values    []CoverageValue `json:"values"`
}

// CoverageValue is the summed overlap recorded for one attribute value.
type CoverageValue struct {
	Value       string  `json:"value"`
	AreaM2      float64 `json:"area_m2"`
	PctOfParcel float64 `json:"pct_of_parcel"`
}

// Enclave is a carved-out sub-region excluded from a layer's applicability.
type Enclave struct {
	Layer            string        `json:"layer"`
	TriggerFeatureID string        `json:"trigger_feature_id"`
	BufferM          float64       `json:"buffer_m"`
	AreaM2           float64       `json:"area_m2"`
	Geometry         *geo.Geometry `json:"-"`
}

// Provenance distinguishes how a regulation excerpt was obtained.
type Provenance string

const (
	ProvenanceCanonical  Provenance = "canonical"
	ProvenanceCompletion Provenance = "completion"
	ProvenanceFailed     Provenance = "failed"
)

// RegulationEntry is a resolved zoning regulation excerpt.
type RegulationEntry struct {
	ZoneCode   string     `json:"zone_code"`
	Article    string     `json:"article,omitempty"`
	Text       string     `json:"text"`
	Provenance Provenance `json:"provenance"`
}

// Request is the pipeline input. Validate normalizes and checks it before the
// orchestrator runs.
type Request struct {
	Parcel          string   `json:"parcel"`
	INSEE           string   `json:"insee"`
	Commune         string   `json:"commune"`
	SchemaWhitelist []string `json:"schema_whitelist"`
	ValuesLimit     int      `json:"values_limit"`
	CarveEnclaves   bool     `json:"carve_enclaves"`
	EnclaveBufferM  float64  `json:"enclave_buffer_m"`
	MakeReport      bool     `json:"make_report"`
	MakeMap         bool     `json:"make_map"`
	MaxMapFeatures  int      `json:"max_features_per_layer_on_map"`

	// NotifyEmails lists recipients told when the certificate is ready.
	// Ignored when the pipeline degrades or no notifier is configured.
	NotifyEmails []string `json:"notify_emails,omitempty"`

	// AccessToken optionally attributes the recorded job to a user.
	AccessToken string `json:"access_token,omitempty"`
}

// Defaults applied by Validate.
const (
	DefaultValuesLimit    = 100
	DefaultMaxMapFeatures = 50
)

// Validate checks required fields and applies defaults in place.
func (r *Request) Validate() error {
	if strings.TrimSpace(r.Parcel) == "" {
		return dErrors.New(dErrors.CodeValidation, "parcel is required")
	}
	if strings.TrimSpace(r.INSEE) == "" && strings.TrimSpace(r.Commune) == "" {
		return dErrors.New(dErrors.CodeValidation, "insee or commune is required")
	}
	r.SchemaWhitelist = pstrings.DedupeAndTrim(r.SchemaWhitelist)
	if len(r.SchemaWhitelist) == 0 {
		return dErrors.New(dErrors.CodeValidation, "schema_whitelist must not be empty")
	}
	if r.ValuesLimit < 0 {
		return dErrors.New(dErrors.CodeValidation, "values_limit must not be negative")
	}
	if r.ValuesLimit == 0 {
		r.ValuesLimit = DefaultValuesLimit
	}
	if r.CarveEnclaves && r.EnclaveBufferM < 0 {
		return dErrors.New(dErrors.CodeValidation, "enclave_buffer_m must be non-negative")
	}
	if r.MaxMapFeatures < 0 {
		return dErrors.New(dErrors.CodeValidation, "max_features_per_layer_on_map must not be negative")
	}
	if r.MaxMapFeatures == 0 {
		r.MaxMapFeatures = DefaultMaxMapFeatures
	}
	r.NotifyEmails = pstrings.DedupeAndTrim(r.NotifyEmails)
	return nil
}

// Result aggregates everything the pipeline computed for one request. Stages
// lets callers distinguish "computed but empty" from "could not compute".
type Result struct {
	Parcel        Parcel                `json:"parcel"`
	Intersections []Intersection        `json:"intersections"`
	Coverage      []Coverage            `json:"coverage,omitempty"`
	Enclaves      []Enclave             `json:"enclaves"`
	Regulations   []RegulationEntry     `json:"regulations"`
	ReportRef     *artifact.Locator     `json:"report_ref,omitempty"`
	MapRef        *artifact.Locator     `json:"map_ref,omitempty"`
	Stages        map[Stage]StageStatus `json:"stages"`
}
