// Package pipeline orchestrates the certificate stages: parcel resolution,
// layer intersection, enclave carving, regulation resolution and document
// composition. Fatal conditions abort the run; everything downstream of the
// intersection pass degrades stage by stage, so a partial analysis is still
// returned with its per-stage status.
package pipeline

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"urbacert/internal/artifact"
	"urbacert/internal/catalog"
	"urbacert/internal/certificate"
	"urbacert/internal/enclave"
	"urbacert/internal/intersect"
	"urbacert/internal/jobs"
	"urbacert/internal/maprender"
	"urbacert/internal/notify"
	"urbacert/internal/parcel"
	"urbacert/internal/platform/metrics"
	"urbacert/internal/regulation"
	"urbacert/internal/report"
	dErrors "urbacert/pkg/domain-errors"
)

var tracer = otel.Tracer("urbacert/pipeline")

// Orchestrator runs the full certificate pipeline for one request at a time.
// All collaborators are request-agnostic and safe for concurrent use.
type Orchestrator struct {
	catalog     *catalog.Catalog
	parcels     *parcel.Service
	engine      *intersect.Engine
	carver      *enclave.Carver
	regulations *regulation.Service
	composer    *report.Composer
	renderer    *maprender.Renderer
	recorder    jobs.Recorder
	notifier    notify.Notifier
	metrics     *metrics.Metrics
	logger      *slog.Logger
}

type Option func(*Orchestrator)

func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) { o.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

// WithRecorder enables best-effort job recording.
func WithRecorder(recorder jobs.Recorder) Option {
	return func(o *Orchestrator) { o.recorder = recorder }
}

// WithNotifier enables best-effort completion mail for requests that list
// notify_emails.
func WithNotifier(notifier notify.Notifier) Option {
	return func(o *Orchestrator) { o.notifier = notifier }
}

func New(
	cat *catalog.Catalog,
	parcels *parcel.Service,
	engine *intersect.Engine,
	carver *enclave.Carver,
	regulations *regulation.Service,
	composer *report.Composer,
	renderer *maprender.Renderer,
	opts ...Option,
) *Orchestrator {
	o := &Orchestrator{
		catalog:     cat,
		parcels:     parcels,
		engine:      engine,
		carver:      carver,
		regulations: regulations,
		composer:    composer,
		renderer:    renderer,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Run executes the pipeline. A nil result with a non-nil error means a fatal
// condition: the parcel could not be resolved or its geometry is unusable.
// Any other condition degrades the affected stage and keeps going.
func (o *Orchestrator) Run(ctx context.Context, req certificate.Request) (*certificate.Result, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if o.metrics != nil {
		o.metrics.CertificatesStarted.Inc()
	}

	ctx, span := tracer.Start(ctx, "certificate.run", trace.WithAttributes(
		attribute.String("parcel", req.Parcel),
		attribute.String("insee", req.INSEE),
	))
	defer span.End()

	result := &certificate.Result{
		Stages: make(map[certificate.Stage]certificate.StageStatus),
	}

	p, err := o.runResolving(ctx, req, result)
	if err != nil {
		return nil, err
	}
	result.Parcel = *p

	if err := o.runIntersecting(ctx, req, p, result); err != nil {
		return nil, err
	}

	o.runCarving(ctx, req, p, result)
	o.runRegulations(ctx, p, result)
	o.compose(ctx, req, result)

	o.recordJob(req, result)
	o.sendNotification(ctx, req, result)
	return result, nil
}

func (o *Orchestrator) runResolving(ctx context.Context, req certificate.Request, result *certificate.Result) (*certificate.Parcel, error) {
	ctx, span := tracer.Start(ctx, "certificate.resolve")
	defer span.End()
	started := time.Now()

	p, err := o.parcels.Resolve(ctx, req.Parcel, req.INSEE, req.Commune)
	o.observeStage(certificate.StageResolving, started)
	if err != nil {
		result.Stages[certificate.StageResolving] = certificate.Failed(string(dErrors.CodeOf(err)))
		o.countStageFailure(certificate.StageResolving)
		return nil, err
	}
	result.Stages[certificate.StageResolving] = certificate.Succeeded()
	span.SetAttributes(attribute.Float64("parcel.area_m2", p.AreaM2))
	return p, nil
}

func (o *Orchestrator) runIntersecting(ctx context.Context, req certificate.Request, p *certificate.Parcel, result *certificate.Result) error {
	ctx, span := tracer.Start(ctx, "certificate.intersect")
	defer span.End()
	started := time.Now()

	outcome, err := o.engine.Intersect(ctx, p, req.SchemaWhitelist, req.ValuesLimit)
	o.observeStage(certificate.StageIntersecting, started)
	if err != nil {
		result.Stages[certificate.StageIntersecting] = certificate.Failed(string(dErrors.CodeOf(err)))
		o.countStageFailure(certificate.StageIntersecting)
		return err
	}
	result.Intersections = outcome.Intersections
	result.Coverage = outcome.Coverage
	result.Stages[certificate.StageIntersecting] = certificate.Succeeded(outcome.Warnings...)
	span.SetAttributes(attribute.Int("intersections", len(outcome.Intersections)))
	return nil
}

func (o *Orchestrator) runCarving(ctx context.Context, req certificate.Request, p *certificate.Parcel, result *certificate.Result) {
	if !req.CarveEnclaves {
		result.Stages[certificate.StageCarving] = certificate.Skipped()
		return
	}

	ctx, span := tracer.Start(ctx, "certificate.carve", trace.WithAttributes(
		attribute.Float64("buffer_m", req.EnclaveBufferM),
	))
	defer span.End()
	started := time.Now()

	outcome, err := o.carver.Carve(ctx, p, result.Intersections, o.catalog.TriggerLayers(), req.EnclaveBufferM)
	o.observeStage(certificate.StageCarving, started)
	if err != nil {
		// Pre-carve intersections stand; the stage records why carving
		// did not apply.
		result.Stages[certificate.StageCarving] = certificate.Failed(string(dErrors.CodeOf(err)))
		o.countStageFailure(certificate.StageCarving)
		if o.logger != nil {
			o.logger.WarnContext(ctx, "enclave carving degraded", "error", err)
		}
		return
	}
	result.Intersections = outcome.Intersections
	result.Enclaves = outcome.Enclaves
	result.Stages[certificate.StageCarving] = certificate.Succeeded(outcome.Warnings...)
	span.SetAttributes(
		attribute.Int("enclaves", len(outcome.Enclaves)),
		attribute.Float64("carved_area_m2", outcome.CarvedAreaM2),
	)
}

func (o *Orchestrator) runRegulations(ctx context.Context, p *certificate.Parcel, result *certificate.Result) {
	ctx, span := tracer.Start(ctx, "certificate.regulations")
	defer span.End()
	started := time.Now()

	entries := o.regulations.Resolve(ctx, p.INSEE, p.Commune, result.Intersections)
	o.observeStage(certificate.StageRegulations, started)
	result.Regulations = entries

	failed, completed := 0, 0
	for _, entry := range entries {
		switch entry.Provenance {
		case certificate.ProvenanceFailed:
			failed++
		case certificate.ProvenanceCompletion:
			completed++
		}
	}
	if o.metrics != nil && completed > 0 {
		o.metrics.RegulationCompletions.Add(float64(completed))
	}
	span.SetAttributes(attribute.Int("zones", len(entries)), attribute.Int("unresolved", failed))

	if len(entries) > 0 && failed == len(entries) {
		result.Stages[certificate.StageRegulations] = certificate.Failed(string(dErrors.CodeRegulationLookupFailed))
		o.countStageFailure(certificate.StageRegulations)
		return
	}
	var warnings []string
	for _, entry := range entries {
		if entry.Provenance == certificate.ProvenanceFailed {
			warnings = append(warnings, "unresolved zone: "+entry.ZoneCode)
		}
	}
	result.Stages[certificate.StageRegulations] = certificate.Succeeded(warnings...)
}

// compose runs report and map generation concurrently. Both are leaf stages:
// one failing never disturbs the other or the analytics already computed.
func (o *Orchestrator) compose(ctx context.Context, req certificate.Request, result *certificate.Result) {
	if !req.MakeReport {
		result.Stages[certificate.StageReport] = certificate.Skipped()
	}
	if !req.MakeMap {
		result.Stages[certificate.StageMap] = certificate.Skipped()
	}
	if !req.MakeReport && !req.MakeMap {
		return
	}

	ctx, span := tracer.Start(ctx, "certificate.compose")
	defer span.End()

	// Each goroutine writes only its own slot; statuses land in the shared
	// map after Wait.
	var (
		reportRef, mapRef       *artifact.Locator
		reportStatus, mapStatus certificate.StageStatus
	)
	g, gctx := errgroup.WithContext(ctx)
	if req.MakeReport {
		g.Go(func() error {
			started := time.Now()
			loc, err := o.composer.Compose(gctx, result)
			o.observeStage(certificate.StageReport, started)
			if err != nil {
				reportStatus = certificate.Failed(string(dErrors.CodeOf(err)))
				return nil
			}
			reportRef = &loc
			reportStatus = certificate.Succeeded()
			return nil
		})
	}
	if req.MakeMap {
		g.Go(func() error {
			started := time.Now()
			loc, err := o.renderer.Render(gctx, result, req.MaxMapFeatures)
			o.observeStage(certificate.StageMap, started)
			if err != nil {
				mapStatus = certificate.Failed(string(dErrors.CodeOf(err)))
				return nil
			}
			mapRef = &loc
			mapStatus = certificate.Succeeded()
			return nil
		})
	}
	_ = g.Wait()

	if req.MakeReport {
		result.ReportRef = reportRef
		result.Stages[certificate.StageReport] = reportStatus
		if reportStatus.State == certificate.StageFailed {
			o.countStageFailure(certificate.StageReport)
		}
	}
	if req.MakeMap {
		result.MapRef = mapRef
		result.Stages[certificate.StageMap] = mapStatus
		if mapStatus.State == certificate.StageFailed {
			o.countStageFailure(certificate.StageMap)
		}
	}
}

// recordJob persists the run for traceability. Failures are logged, never
// surfaced: recording must not affect the response.
func (o *Orchestrator) recordJob(req certificate.Request, result *certificate.Result) {
	if o.recorder == nil {
		return
	}
	payload, err := json.Marshal(result)
	if err != nil {
		payload = nil
	}
	job := jobs.NewJob(
		jobs.UserIDFromToken(req.AccessToken),
		result.Parcel.INSEE,
		result.Parcel.Label,
		jobStatus(result),
		payload,
	)
	if result.ReportRef != nil {
		job.ReportPath = result.ReportRef.Path
	}
	if result.MapRef != nil {
		job.MapPath = result.MapRef.Path
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := o.recorder.Record(ctx, job); err != nil && o.logger != nil {
		o.logger.Warn("job recording failed", "error", err)
	}
}

// sendNotification mails the requester when every stage went through cleanly.
// Degraded runs stay silent; delivery failures are logged, never surfaced.
func (o *Orchestrator) sendNotification(ctx context.Context, req certificate.Request, result *certificate.Result) {
	if o.notifier == nil || len(req.NotifyEmails) == 0 {
		return
	}
	if jobStatus(result) != "done" {
		return
	}

	n := notify.Notification{
		Recipients:  req.NotifyEmails,
		ParcelLabel: result.Parcel.Label,
		INSEE:       result.Parcel.INSEE,
	}
	if result.ReportRef != nil {
		n.ReportPath = result.ReportRef.Path
	}
	if result.MapRef != nil {
		n.MapPath = result.MapRef.Path
	}
	if err := o.notifier.Notify(ctx, n); err != nil && o.logger != nil {
		o.logger.WarnContext(ctx, "completion notification failed", "error", err, "recipients", len(req.NotifyEmails))
	}
}

func jobStatus(result *certificate.Result) string {
	for _, status := range result.Stages {
		if status.State == certificate.StageFailed {
			return "degraded"
		}
	}
	return "done"
}

func (o *Orchestrator) observeStage(stage certificate.Stage, started time.Time) {
	if o.metrics != nil {
		o.metrics.ObserveStage(string(stage), time.Since(started))
	}
}

func (o *Orchestrator) countStageFailure(stage certificate.Stage) {
	if o.metrics != nil {
		o.metrics.IncrementStageFailure(string(stage))
	}
}
