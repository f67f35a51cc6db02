// Package jobs records completed certificate runs for traceability. Recording
// is best effort: a failed insert is logged and never fails the request.
package jobs

import (
	"context"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Job is one recorded certificate run.
type Job struct {
	ID          uuid.UUID
	UserID      string
	INSEE       string
	ParcelLabel string
	Status      string
	ReportPath  string
	MapPath     string
	Result      []byte
	CreatedAt   time.Time
}

// Recorder persists jobs.
type Recorder interface {
	Record(ctx context.Context, job Job) error
}

// UserIDFromToken extracts the subject claim from a bearer token without
// verifying the signature. Job attribution is informational only; an empty
// or malformed token attributes the job to nobody.
func UserIDFromToken(token string) string {
	if token == "" {
		return ""
	}
	parser := jwt.NewParser()
	claims := jwt.MapClaims{}
	if _, _, err := parser.ParseUnverified(token, claims); err != nil {
		return ""
	}
	sub, err := claims.GetSubject()
	if err != nil {
		return ""
	}
	return sub
}

// NewJob builds a job row with a fresh id and timestamp.
func NewJob(userID, insee, parcelLabel, status string, result []byte) Job {
	return Job{
		ID:          uuid.New(),
		UserID:      userID,
		INSEE:       insee,
		ParcelLabel: parcelLabel,
		Status:      status,
		Result:      result,
		CreatedAt:   time.Now().UTC(),
	}
}
