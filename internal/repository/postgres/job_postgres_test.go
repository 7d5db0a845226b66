package postgres

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"

	"instashare/internal/model"
)

var jobCols = []string{"id", "user_id", "status", "artifact_path", "artifact_size", "message", "created_at", "updated_at"}

func TestJobPostgres_Create(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}
	defer db.Close()

	repo := NewJobPostgres(db)
	ctx := context.Background()

	now := time.Now().UTC()
	j := &model.ArchiveJob{
		ID:        "job-uuid",
		UserID:    "user-uuid",
		Status:    model.JobPending,
		CreatedAt: now,
		UpdatedAt: now,
	}

	rows := sqlmock.NewRows(jobCols).
		AddRow(j.ID, j.UserID, j.Status, nil, nil, nil, now, now)

	mock.ExpectQuery("INSERT INTO archive_jobs").
		WithArgs(j.ID, j.UserID, j.Status, now, now).
		WillReturnRows(rows)

	stored, err := repo.Create(ctx, j)

	assert.NoError(t, err)
	assert.Equal(t, model.JobPending, stored.Status)
	assert.Empty(t, stored.ArtifactPath)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestJobPostgres_FindByID(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}
	defer db.Close()

	repo := NewJobPostgres(db)
	ctx := context.Background()

	rows := sqlmock.NewRows(jobCols).
		AddRow("job-id", "user-id", "done", "artifacts/user-id.zip", 512, "archived 2 files", time.Now(), time.Now())

	mock.ExpectQuery("SELECT (.+) FROM archive_jobs WHERE id = ?").
		WithArgs("job-id", "user-id").
		WillReturnRows(rows)

	j, err := repo.FindByID(ctx, "job-id", "user-id")

	assert.NoError(t, err)
	assert.Equal(t, model.JobDone, j.Status)
	assert.Equal(t, "artifacts/user-id.zip", j.ArtifactPath)
	assert.Equal(t, int64(512), j.ArtifactSize)
}

func TestJobPostgres_StatusTransitions(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}
	defer db.Close()

	repo := NewJobPostgres(db)
	ctx := context.Background()

	t.Run("pending to processing", func(t *testing.T) {
		mock.ExpectExec("UPDATE archive_jobs").
			WithArgs("job-id").
			WillReturnResult(sqlmock.NewResult(0, 1))

		assert.NoError(t, repo.MarkProcessing(ctx, "job-id"))
	})

	t.Run("processing to done", func(t *testing.T) {
		mock.ExpectExec("UPDATE archive_jobs").
			WithArgs("job-id", "artifacts/u.zip", int64(1024), "archived 3 files").
			WillReturnResult(sqlmock.NewResult(0, 1))

		assert.NoError(t, repo.MarkDone(ctx, "job-id", "artifacts/u.zip", 1024, "archived 3 files"))
	})

	t.Run("processing to failed", func(t *testing.T) {
		mock.ExpectExec("UPDATE archive_jobs").
			WithArgs("job-id", "source file unreadable: a.txt").
			WillReturnResult(sqlmock.NewResult(0, 1))

		assert.NoError(t, repo.MarkFailed(ctx, "job-id", "source file unreadable: a.txt"))
	})

	t.Run("terminal job cannot move", func(t *testing.T) {
		// The WHERE status guard matches no row once the job is terminal.
		mock.ExpectExec("UPDATE archive_jobs").
			WithArgs("done-job").
			WillReturnResult(sqlmock.NewResult(0, 0))

		err := repo.MarkProcessing(ctx, "done-job")
		assert.True(t, errors.Is(err, sql.ErrNoRows))
	})
}
