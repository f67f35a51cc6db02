package jobs

import (
	"context"
	"database/sql"
	"fmt"
)

// PostgresRecorder persists jobs in PostgreSQL. Pure I/O; attribution and
// status decisions belong to the caller.
type PostgresRecorder struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresRecorder {
	return &PostgresRecorder{db: db}
}

func (r *PostgresRecorder) Record(ctx context.Context, job Job) error {
	query := `
		INSERT INTO certificate_jobs (id, user_id, insee, parcel, status, report_path, map_path, result, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := r.db.ExecContext(ctx, query,
		job.ID,
		nullable(job.UserID),
		job.INSEE,
		job.ParcelLabel,
		job.Status,
		nullable(job.ReportPath),
		nullable(job.MapPath),
		job.Result,
		job.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("record certificate job: %w", err)
	}
	return nil
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
