package domain

import "time"

// Trigger types determine what starts an upload job.
const (
	TriggerManual    = "manual"
	TriggerSchedule  = "schedule"
	TriggerFileWatch = "file_watch"
)

// UploadJob holds the configuration for a recurring or one-shot bulk upload
// into a document-store collection. FilePath may be a local path or an
// http(s) URL.
type UploadJob struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	ConnectionID  string    `json:"connectionId"`
	CollectionID  string    `json:"collectionId"`
	FilePath      string    `json:"filePath"`
	SampleSize    int       `json:"sampleSize"`    // docs sampled for schema inference, 0 = default
	BatchSize     int       `json:"batchSize"`     // commit batch size, 0 = default
	TriggerType   string    `json:"triggerType"`   // "manual" | "schedule" | "file_watch"
	TriggerConfig string    `json:"triggerConfig"` // cron expression or watch path
	Enabled       bool      `json:"enabled"`
	LastRunAt     time.Time `json:"lastRunAt"`
	LastStatus    string    `json:"lastStatus"` // "success" | "error" | "running" | ""
	LastError     string    `json:"lastError"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// UploadRunLog is a historical record of one upload run.
type UploadRunLog struct {
	ID           string    `json:"id"`
	JobID        string    `json:"jobId"`
	StartedAt    time.Time `json:"startedAt"`
	FinishedAt   time.Time `json:"finishedAt"`
	Status       string    `json:"status"`
	TotalRecords int       `json:"totalRecords"`
	SuccessCount int       `json:"successCount"`
	ErrorCount   int       `json:"errorCount"`
	Message      string    `json:"message"`
	Error        string    `json:"error,omitempty"`
}
