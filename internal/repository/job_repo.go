package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/merchantsafe/kyc-screener/internal/models"
)

// SQLiteJobRepository implements JobRepository for SQLite.
type SQLiteJobRepository struct {
	db *sql.DB
}

// NewSQLiteJobRepository creates a new SQLite job repository.
func NewSQLiteJobRepository(db *sql.DB) *SQLiteJobRepository {
	return &SQLiteJobRepository{db: db}
}

const jobColumns = `id, reference_id, status, input_json, result_json, error_message,
	webhook_url, webhook_headers_json, webhook_status, webhook_attempts,
	started_at, completed_at, created_at, updated_at`

func (r *SQLiteJobRepository) Create(ctx context.Context, job *models.Job) error {
	query := `
		INSERT INTO jobs (id, reference_id, status, input_json, result_json, error_message,
			webhook_url, webhook_headers_json, webhook_status, webhook_attempts,
			started_at, completed_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.ExecContext(ctx, query,
		job.ID,
		nullString(job.ReferenceID),
		job.Status,
		job.InputJSON,
		nullString(job.ResultJSON),
		nullString(job.ErrorMessage),
		nullString(job.WebhookURL),
		nullString(job.WebhookHeadersJSON),
		nullString(job.WebhookStatus),
		job.WebhookAttempts,
		nullTime(job.StartedAt),
		nullTime(job.CompletedAt),
		job.CreatedAt.Format(time.RFC3339),
		job.UpdatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to create job: %w", err)
	}
	return nil
}

func (r *SQLiteJobRepository) GetByID(ctx context.Context, id string) (*models.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs WHERE id = ?`
	job, err := scanJob(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	return job, nil
}

func (r *SQLiteJobRepository) Update(ctx context.Context, job *models.Job) error {
	query := `
		UPDATE jobs
		SET status = ?, result_json = ?, error_message = ?,
			webhook_status = ?, webhook_attempts = ?,
			started_at = ?, completed_at = ?, updated_at = ?
		WHERE id = ?
	`
	_, err := r.db.ExecContext(ctx, query,
		job.Status,
		nullString(job.ResultJSON),
		nullString(job.ErrorMessage),
		nullString(job.WebhookStatus),
		job.WebhookAttempts,
		nullTime(job.StartedAt),
		nullTime(job.CompletedAt),
		time.Now().UTC().Format(time.RFC3339),
		job.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update job: %w", err)
	}
	return nil
}

// ClaimPending atomically claims the oldest pending job.
func (r *SQLiteJobRepository) ClaimPending(ctx context.Context) (*models.Job, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			tx.Rollback()
		}
	}()

	// UPDATE ... RETURNING claims and fetches in one statement to reduce
	// lock contention.
	now := time.Now().UTC().Format(time.RFC3339)
	query := `
		UPDATE jobs
		SET status = 'running', started_at = ?, updated_at = ?
		WHERE id = (
			SELECT id FROM jobs
			WHERE status = 'pending'
			ORDER BY created_at ASC
			LIMIT 1
		)
		RETURNING ` + jobColumns

	job, err := scanJob(tx.QueryRowContext(ctx, query, now, now))
	if err == sql.ErrNoRows {
		// No pending jobs - this is normal, not an error
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to claim job: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	committed = true

	return job, nil
}

func (r *SQLiteJobRepository) MarkStaleRunningJobsFailed(ctx context.Context, maxAge time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-maxAge).Format(time.RFC3339)
	now := time.Now().UTC().Format(time.RFC3339)
	res, err := r.db.ExecContext(ctx, `
		UPDATE jobs
		SET status = 'failed', error_message = 'job timed out', completed_at = ?, updated_at = ?
		WHERE status = 'running' AND started_at < ?
	`, now, now, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to mark stale jobs: %w", err)
	}
	return res.RowsAffected()
}

func (r *SQLiteJobRepository) UpdateWebhookStatus(ctx context.Context, id, status string, attempts int) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE jobs SET webhook_status = ?, webhook_attempts = ?, updated_at = ? WHERE id = ?
	`, status, attempts, time.Now().UTC().Format(time.RFC3339), id)
	if err != nil {
		return fmt.Errorf("failed to update webhook status: %w", err)
	}
	return nil
}

// rowScanner abstracts sql.Row and sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (*models.Job, error) {
	var job models.Job
	var referenceID, resultJSON, errorMessage sql.NullString
	var webhookURL, webhookHeaders, webhookStatus sql.NullString
	var startedAt, completedAt sql.NullString
	var createdAt, updatedAt string

	err := row.Scan(
		&job.ID, &referenceID, &job.Status, &job.InputJSON, &resultJSON, &errorMessage,
		&webhookURL, &webhookHeaders, &webhookStatus, &job.WebhookAttempts,
		&startedAt, &completedAt, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	job.ReferenceID = referenceID.String
	job.ResultJSON = resultJSON.String
	job.ErrorMessage = errorMessage.String
	job.WebhookURL = webhookURL.String
	job.WebhookHeadersJSON = webhookHeaders.String
	job.WebhookStatus = webhookStatus.String
	job.StartedAt = parseNullTime(startedAt)
	job.CompletedAt = parseNullTime(completedAt)
	job.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	job.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return &job, nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339)
}

func parseNullTime(s sql.NullString) *time.Time {
	if !s.Valid || s.String == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, s.String)
	if err != nil {
		return nil
	}
	return &t
}
