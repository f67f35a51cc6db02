//go:build integration

package jobs_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"urbacert/internal/jobs"
	"urbacert/pkg/testutil/containers"
)

func TestPostgresRecorderIntegration(t *testing.T) {
	pc := containers.NewPostgresContainer(t)
	ctx := context.Background()

	_, err := pc.DB.ExecContext(ctx, `
		CREATE TABLE certificate_jobs (
			id UUID PRIMARY KEY,
			user_id TEXT,
			insee TEXT NOT NULL,
			parcel TEXT NOT NULL,
			status TEXT NOT NULL,
			report_path TEXT,
			map_path TEXT,
			result JSONB,
			created_at TIMESTAMPTZ NOT NULL
		)`)
	require.NoError(t, err)

	recorder := jobs.NewPostgres(pc.DB)

	job := jobs.NewJob("user-42", "33234", "AC 0494", "done", []byte(`{"ok":true}`))
	job.ReportPath = "/artifacts/report.md"
	require.NoError(t, recorder.Record(ctx, job))

	var userID, status, reportPath string
	var mapPath *string
	err = pc.DB.QueryRowContext(ctx,
		`SELECT user_id, status, report_path, map_path FROM certificate_jobs WHERE id = $1`,
		job.ID).Scan(&userID, &status, &reportPath, &mapPath)
	require.NoError(t, err)
	assert.Equal(t, "user-42", userID)
	assert.Equal(t, "done", status)
	assert.Equal(t, "/artifacts/report.md", reportPath)
	assert.Nil(t, mapPath, "unset locator stored as NULL")

	anonymous := jobs.NewJob("", "33234", "AC 0494", "degraded", nil)
	require.NoError(t, recorder.Record(ctx, anonymous))

	var anonUser *string
	err = pc.DB.QueryRowContext(ctx,
		`SELECT user_id FROM certificate_jobs WHERE id = $1`, anonymous.ID).Scan(&anonUser)
	require.NoError(t, err)
	assert.Nil(t, anonUser)
}
