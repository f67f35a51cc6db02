// Package httptransport is the thin HTTP layer. Handlers decode, delegate to
// the pipeline and encode; no business logic lives here.
package httptransport

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"urbacert/internal/certificate"
	dErrors "urbacert/pkg/domain-errors"
	"urbacert/pkg/platform/httputil"
	"urbacert/pkg/platform/middleware/metadata"
	"urbacert/pkg/requestcontext"
)

// Pipeline defines the certificate operation the transport depends on.
type Pipeline interface {
	Run(ctx context.Context, req certificate.Request) (*certificate.Result, error)
}

// Handler wires certificate endpoints to the pipeline.
type Handler struct {
	pipeline Pipeline
	logger   *slog.Logger
}

// New constructs a certificate handler with its dependencies.
func New(pipeline Pipeline, logger *slog.Logger) *Handler {
	return &Handler{pipeline: pipeline, logger: logger}
}

// Register mounts certificate endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/v1/certificates", h.HandleCreate)
}

// HandleCreate handles POST /v1/certificates requests.
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	start := time.Now()

	req, ok := httputil.DecodeAndPrepare[certificate.Request](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	if req.AccessToken == "" {
		req.AccessToken = bearerToken(r)
	}

	result, err := h.pipeline.Run(ctx, req)
	if err != nil {
		// Fatal resolution codes are a server-side concern; everything else
		// is a caller problem and only worth a warning.
		level := slog.LevelWarn
		if dErrors.Fatal(dErrors.CodeOf(err)) {
			level = slog.LevelError
		}
		h.logger.Log(ctx, level, "certificate pipeline failed",
			"request_id", requestID,
			"client_ip", metadata.GetClientIP(ctx),
			"parcel", req.Parcel,
			"insee", req.INSEE,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "certificate produced",
		"request_id", requestID,
		"parcel", result.Parcel.Label,
		"insee", result.Parcel.INSEE,
		"intersections", len(result.Intersections),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	httputil.WriteJSON(w, http.StatusOK, result)
}

func bearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if token, found := strings.CutPrefix(auth, "Bearer "); found {
		return token
	}
	return ""
}
