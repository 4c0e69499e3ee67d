package storage

import (
	"database/sql"
	"fmt"
	"time"

	"docbase/internal/domain"

	"github.com/google/uuid"
)

// UploadStore implements persistence for upload jobs and run logs.
type UploadStore struct {
	db *DB
}

// NewUploadStore creates a new UploadStore.
func NewUploadStore(db *DB) *UploadStore {
	return &UploadStore{db: db}
}

// ── UploadJob CRUD ─────────────────────────────────────────

func (s *UploadStore) CreateJob(job *domain.UploadJob) error {
	now := time.Now()
	job.ID = uuid.New().String()
	job.CreatedAt = now
	job.UpdatedAt = now

	// last_run_at is written explicitly so reads never scan NULL into time.Time.
	_, err := s.db.conn.Exec(
		`INSERT INTO upload_jobs (id, name, connection_id, collection_id, file_path,
		 sample_size, batch_size, trigger_type, trigger_config, enabled,
		 last_run_at, last_status, last_error, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		job.ID, job.Name, job.ConnectionID, job.CollectionID, job.FilePath,
		job.SampleSize, job.BatchSize, job.TriggerType, job.TriggerConfig, job.Enabled,
		job.LastRunAt, job.LastStatus, job.LastError,
		job.CreatedAt, job.UpdatedAt,
	)
	return err
}

func (s *UploadStore) GetJob(id string) (*domain.UploadJob, error) {
	job := &domain.UploadJob{}

	err := s.db.conn.QueryRow(
		`SELECT id, name, connection_id, collection_id, file_path,
		 sample_size, batch_size, trigger_type, trigger_config, enabled,
		 last_run_at, last_status, last_error, created_at, updated_at
		 FROM upload_jobs WHERE id = ?`, id,
	).Scan(
		&job.ID, &job.Name, &job.ConnectionID, &job.CollectionID, &job.FilePath,
		&job.SampleSize, &job.BatchSize, &job.TriggerType, &job.TriggerConfig, &job.Enabled,
		&job.LastRunAt, &job.LastStatus, &job.LastError,
		&job.CreatedAt, &job.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("upload job not found: %s", id)
	}
	if err != nil {
		return nil, err
	}
	return job, nil
}

func (s *UploadStore) UpdateJob(job *domain.UploadJob) error {
	job.UpdatedAt = time.Now()

	_, err := s.db.conn.Exec(
		`UPDATE upload_jobs SET name=?, connection_id=?, collection_id=?, file_path=?,
		 sample_size=?, batch_size=?, trigger_type=?, trigger_config=?,
		 enabled=?, updated_at=? WHERE id=?`,
		job.Name, job.ConnectionID, job.CollectionID, job.FilePath,
		job.SampleSize, job.BatchSize, job.TriggerType, job.TriggerConfig,
		job.Enabled, job.UpdatedAt, job.ID,
	)
	return err
}

func (s *UploadStore) UpdateJobStatus(id, status, errMsg string) error {
	_, err := s.db.conn.Exec(
		`UPDATE upload_jobs SET last_run_at=?, last_status=?, last_error=?, updated_at=? WHERE id=?`,
		time.Now(), status, errMsg, time.Now(), id,
	)
	return err
}

func (s *UploadStore) DeleteJob(id string) error {
	// Delete run logs first.
	if _, err := s.db.conn.Exec(`DELETE FROM upload_run_logs WHERE job_id = ?`, id); err != nil {
		return err
	}
	_, err := s.db.conn.Exec(`DELETE FROM upload_jobs WHERE id = ?`, id)
	return err
}

func (s *UploadStore) ListJobs() ([]domain.UploadJob, error) {
	rows, err := s.db.conn.Query(
		`SELECT id, name, connection_id, collection_id, file_path,
		 sample_size, batch_size, trigger_type, trigger_config, enabled,
		 last_run_at, last_status, last_error, created_at, updated_at
		 FROM upload_jobs ORDER BY created_at ASC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return rowsToJobs(rows)
}

// ListEnabledTriggerJobs returns enabled jobs with a schedule or file-watch trigger.
func (s *UploadStore) ListEnabledTriggerJobs() ([]domain.UploadJob, error) {
	rows, err := s.db.conn.Query(
		`SELECT id, name, connection_id, collection_id, file_path,
		 sample_size, batch_size, trigger_type, trigger_config, enabled,
		 last_run_at, last_status, last_error, created_at, updated_at
		 FROM upload_jobs WHERE enabled = 1 AND trigger_type IN ('schedule', 'file_watch')
		 ORDER BY created_at ASC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return rowsToJobs(rows)
}

func rowsToJobs(rows *sql.Rows) ([]domain.UploadJob, error) {
	var jobs []domain.UploadJob
	for rows.Next() {
		var job domain.UploadJob
		if err := rows.Scan(
			&job.ID, &job.Name, &job.ConnectionID, &job.CollectionID, &job.FilePath,
			&job.SampleSize, &job.BatchSize, &job.TriggerType, &job.TriggerConfig, &job.Enabled,
			&job.LastRunAt, &job.LastStatus, &job.LastError,
			&job.CreatedAt, &job.UpdatedAt,
		); err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// ── Run Logs ───────────────────────────────────────────────

func (s *UploadStore) CreateRunLog(log *domain.UploadRunLog) error {
	log.ID = uuid.New().String()
	_, err := s.db.conn.Exec(
		`INSERT INTO upload_run_logs (id, job_id, started_at, finished_at, status, total_records, success_count, error_count, message, error)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		log.ID, log.JobID, log.StartedAt, log.FinishedAt, log.Status,
		log.TotalRecords, log.SuccessCount, log.ErrorCount, log.Message, log.Error,
	)
	return err
}

func (s *UploadStore) ListRunLogs(jobID string, limit int) ([]domain.UploadRunLog, error) {
	rows, err := s.db.conn.Query(
		`SELECT id, job_id, started_at, finished_at, status, total_records, success_count, error_count, message, error
		 FROM upload_run_logs WHERE job_id = ? ORDER BY started_at DESC LIMIT ?`,
		jobID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var logs []domain.UploadRunLog
	for rows.Next() {
		var l domain.UploadRunLog
		if err := rows.Scan(&l.ID, &l.JobID, &l.StartedAt, &l.FinishedAt, &l.Status, &l.TotalRecords, &l.SuccessCount, &l.ErrorCount, &l.Message, &l.Error); err != nil {
			return nil, err
		}
		logs = append(logs, l)
	}
	return logs, rows.Err()
}
