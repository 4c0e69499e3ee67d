package service

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/robfig/cron/v3"

	"docbase/internal/domain"
	"docbase/internal/storage"
	"docbase/internal/upload"
)

// ─────────────────────────────────────────────────────────────
// Upload Service — business logic for bulk upload jobs
// ─────────────────────────────────────────────────────────────

// maxFileBytes bounds a single upload file, local or fetched. The
// pipeline holds the whole file in memory.
const maxFileBytes = 256 << 20 // 256 MiB

// UploadService manages upload jobs, scheduling, and file watching.
// It is decoupled from its host process via the EventEmitter interface.
type UploadService struct {
	store       *storage.UploadStore
	conns       *ConnectionService
	emitter     EventEmitter
	runningJobs uploadGuard

	// watcher / cron lifecycle
	watchCancel context.CancelFunc
	watcher     *fsnotify.Watcher
	cronSched   *cron.Cron
}

// NewUploadService creates an UploadService ready for use.
func NewUploadService(
	store *storage.UploadStore,
	conns *ConnectionService,
	emitter EventEmitter,
) *UploadService {
	return &UploadService{
		store:   store,
		conns:   conns,
		emitter: emitter,
	}
}

// ── Job CRUD ───────────────────────────────────────────────

type CreateUploadJobInput struct {
	Name          string `json:"name"`
	ConnectionID  string `json:"connectionId"`
	CollectionID  string `json:"collectionId"`
	FilePath      string `json:"filePath"`
	SampleSize    int    `json:"sampleSize"`
	BatchSize     int    `json:"batchSize"`
	TriggerType   string `json:"triggerType"`
	TriggerConfig string `json:"triggerConfig"`
	Enabled       bool   `json:"enabled"`
}

func (s *UploadService) CreateJob(ctx context.Context, input CreateUploadJobInput) (*domain.UploadJob, error) {
	job := &domain.UploadJob{
		Name:          input.Name,
		ConnectionID:  input.ConnectionID,
		CollectionID:  input.CollectionID,
		FilePath:      input.FilePath,
		SampleSize:    input.SampleSize,
		BatchSize:     input.BatchSize,
		TriggerType:   input.TriggerType,
		TriggerConfig: input.TriggerConfig,
		Enabled:       input.Enabled,
	}
	if job.TriggerType == "" {
		job.TriggerType = domain.TriggerManual
	}
	if err := s.validateJob(job); err != nil {
		return nil, err
	}

	if err := s.store.CreateJob(job); err != nil {
		return nil, fmt.Errorf("create upload job: %w", err)
	}
	s.RestartWatchers(ctx)
	return job, nil
}

func (s *UploadService) GetJob(id string) (*domain.UploadJob, error) {
	return s.store.GetJob(id)
}

func (s *UploadService) ListJobs() ([]domain.UploadJob, error) {
	return s.store.ListJobs()
}

func (s *UploadService) UpdateJob(ctx context.Context, id string, input CreateUploadJobInput) error {
	job, err := s.store.GetJob(id)
	if err != nil {
		return err
	}
	job.Name = input.Name
	job.ConnectionID = input.ConnectionID
	job.CollectionID = input.CollectionID
	job.FilePath = input.FilePath
	job.SampleSize = input.SampleSize
	job.BatchSize = input.BatchSize
	job.TriggerType = input.TriggerType
	job.TriggerConfig = input.TriggerConfig
	job.Enabled = input.Enabled
	if job.TriggerType == "" {
		job.TriggerType = domain.TriggerManual
	}
	if err := s.validateJob(job); err != nil {
		return err
	}

	if err := s.store.UpdateJob(job); err != nil {
		return err
	}
	s.RestartWatchers(ctx)
	return nil
}

func (s *UploadService) DeleteJob(ctx context.Context, id string) error {
	err := s.store.DeleteJob(id)
	if err == nil {
		s.RestartWatchers(ctx)
	}
	return err
}

// validateJob checks the pieces that would otherwise fail silently at
// trigger time. It also fills the file_watch default: watching the
// upload file itself.
func (s *UploadService) validateJob(job *domain.UploadJob) error {
	if job.CollectionID == "" {
		return fmt.Errorf("collection is required")
	}
	if job.FilePath == "" {
		return fmt.Errorf("file path is required")
	}
	if _, err := s.conns.GetConnection(job.ConnectionID); err != nil {
		return err
	}
	switch job.TriggerType {
	case domain.TriggerManual:
	case domain.TriggerSchedule:
		if _, err := cron.ParseStandard(job.TriggerConfig); err != nil {
			return fmt.Errorf("invalid cron expression %q: %w", job.TriggerConfig, err)
		}
	case domain.TriggerFileWatch:
		if job.TriggerConfig == "" {
			job.TriggerConfig = job.FilePath
		}
	default:
		return fmt.Errorf("unknown trigger type: %s", job.TriggerType)
	}
	return nil
}

// ── Run ────────────────────────────────────────────────────

// RunJob executes a single upload job synchronously. The returned
// Result carries the outcome even when the upload failed; the error is
// reserved for jobs that could not start at all.
func (s *UploadService) RunJob(ctx context.Context, id string) (*upload.Result, error) {
	// Prevent concurrent execution of the same job.
	if !s.runningJobs.TryLock(id) {
		return nil, fmt.Errorf("job %s is already running", id)
	}
	defer s.runningJobs.Unlock(id)

	job, err := s.store.GetJob(id)
	if err != nil {
		return nil, err
	}

	s.store.UpdateJobStatus(id, "running", "")

	runCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	start := time.Now()
	result := s.runUpload(runCtx, job)

	status := "error"
	if result.Success {
		status = "success"
	}

	runLog := &domain.UploadRunLog{
		JobID:        id,
		StartedAt:    start,
		FinishedAt:   time.Now(),
		Status:       status,
		TotalRecords: result.TotalRecords,
		SuccessCount: result.SuccessCount,
		ErrorCount:   result.ErrorCount,
		Message:      result.Message,
		Error:        strings.Join(result.Errors, "; "),
	}
	s.store.CreateRunLog(runLog)

	errMsg := ""
	if !result.Success {
		errMsg = result.Message
	}
	s.store.UpdateJobStatus(id, status, errMsg)

	log.Printf("[UPLOAD] job %s (%s): %s", id, job.Name, result.Message)

	if result.Success {
		s.emitter.Emit(ctx, "upload:finished", map[string]any{
			"jobId":        id,
			"collectionId": job.CollectionID,
			"count":        result.SuccessCount,
		})
	} else {
		s.emitter.Emit(ctx, "upload:failed", map[string]any{
			"jobId":   id,
			"message": result.Message,
		})
	}

	return result, nil
}

// runUpload opens the job's store, loads its file, and runs the upload
// pipeline. Infrastructure failures come back as a failure Result so
// run logs and job status get recorded the same way for every outcome.
func (s *UploadService) runUpload(ctx context.Context, job *domain.UploadJob) *upload.Result {
	st, err := s.conns.OpenStore(job.ConnectionID)
	if err != nil {
		return &upload.Result{Message: fmt.Sprintf("Upload failed: %v", err)}
	}

	data, err := loadFileData(ctx, job.FilePath)
	if err != nil {
		return &upload.Result{Message: fmt.Sprintf("Upload failed: %v", err)}
	}

	engine := upload.NewEngine(st)
	if job.SampleSize > 0 {
		engine.SampleSize = job.SampleSize
	}
	if job.BatchSize > 0 {
		engine.BatchSize = job.BatchSize
	}

	result := engine.Upload(ctx, job.CollectionID, filepath.Base(job.FilePath), data)

	if result.Success {
		if n, err := st.Count(ctx, job.CollectionID); err == nil {
			log.Printf("[UPLOAD] collection %q now holds %d document(s)", job.CollectionID, n)
		}
	}
	return result
}

// ListRunLogs returns the last 50 run logs for a job.
func (s *UploadService) ListRunLogs(jobID string) ([]domain.UploadRunLog, error) {
	return s.store.ListRunLogs(jobID, 50)
}

// ── Preview / Schema Discovery ─────────────────────────────

// PreviewResult is the response from PreviewFile.
type PreviewResult struct {
	Fields       []string         `json:"fields"`
	Records      []map[string]any `json:"records"`
	TotalRecords int              `json:"totalRecords"`
}

// PreviewFile parses a local file or URL and returns the first limit
// records (default 10) plus the sorted union of their field names.
// Nothing is validated or written; the preview is for composing a job.
func (s *UploadService) PreviewFile(ctx context.Context, filePath string, limit int) (*PreviewResult, error) {
	if limit <= 0 {
		limit = 10
	}

	loadCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	data, err := loadFileData(loadCtx, filePath)
	if err != nil {
		return nil, err
	}
	records, err := upload.ParseFile(filepath.Base(filePath), data)
	if err != nil {
		return nil, err
	}

	fieldSet := make(map[string]bool)
	for _, rec := range records {
		for name := range rec.Data {
			fieldSet[name] = true
		}
	}
	fields := make([]string, 0, len(fieldSet))
	for name := range fieldSet {
		fields = append(fields, name)
	}
	sort.Strings(fields)

	out := &PreviewResult{Fields: fields, TotalRecords: len(records)}
	for i, rec := range records {
		if i == limit {
			break
		}
		out.Records = append(out.Records, rec.Data)
	}
	return out, nil
}

// DiscoverSchema infers the collection's schema the same way an upload
// would, without writing anything.
func (s *UploadService) DiscoverSchema(ctx context.Context, connectionID, collectionID string, sampleSize int) (*upload.Schema, error) {
	st, err := s.conns.OpenStore(connectionID)
	if err != nil {
		return nil, err
	}

	discCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	inf := &upload.Inferencer{Store: st, SampleSize: sampleSize}
	return inf.Infer(discCtx, collectionID)
}

// ── Watchers (cron + file_watch) ──────────────────────────

// RestartWatchers tears down the current watcher/cron and rebuilds them
// from scratch. Called after every job mutation.
func (s *UploadService) RestartWatchers(ctx context.Context) {
	s.stopWatchers()

	jobs, err := s.store.ListEnabledTriggerJobs()
	if err != nil {
		log.Printf("upload watcher: failed to list jobs: %v", err)
		return
	}

	// ── Cron jobs ──
	var c *cron.Cron
	scheduled := 0
	for _, j := range jobs {
		if j.TriggerType != domain.TriggerSchedule || j.TriggerConfig == "" {
			continue
		}
		if c == nil {
			c = cron.New()
		}
		jid := j.ID
		_, err := c.AddFunc(j.TriggerConfig, func() {
			log.Printf("upload cron: running job %s", jid)
			if _, err := s.RunJob(ctx, jid); err != nil {
				log.Printf("upload cron: job %s failed: %v", jid, err)
			}
		})
		if err != nil {
			log.Printf("upload cron: invalid expression %q for job %s: %v", j.TriggerConfig, j.ID, err)
			continue
		}
		scheduled++
	}
	if c != nil {
		c.Start()
		s.cronSched = c
		log.Printf("upload cron: scheduled %d job(s)", scheduled)
	}

	// ── File watchers ──
	type watchEntry struct {
		jobID string
		path  string
	}
	var entries []watchEntry
	for _, j := range jobs {
		if j.TriggerType == domain.TriggerFileWatch && j.TriggerConfig != "" {
			entries = append(entries, watchEntry{jobID: j.ID, path: j.TriggerConfig})
		}
	}

	if len(entries) == 0 {
		return
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		log.Printf("upload watcher: failed to create watcher: %v", err)
		return
	}
	s.watcher = watcher

	pathToJob := make(map[string]string)
	watchedDirs := make(map[string]bool)
	for _, e := range entries {
		absPath, err := filepath.Abs(e.path)
		if err != nil {
			log.Printf("upload watcher: bad path %q: %v", e.path, err)
			continue
		}
		pathToJob[absPath] = e.jobID

		dir := filepath.Dir(absPath)
		if !watchedDirs[dir] {
			if err := watcher.Add(dir); err != nil {
				log.Printf("upload watcher: failed to watch dir %q: %v", dir, err)
			} else {
				watchedDirs[dir] = true
			}
		}
	}

	watchCtx, cancel := context.WithCancel(context.Background())
	s.watchCancel = cancel

	go func() {
		timers := make(map[string]*time.Timer)
		for {
			select {
			case <-watchCtx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
					continue
				}
				absPath, _ := filepath.Abs(event.Name)
				jobID, ok := pathToJob[absPath]
				if !ok {
					continue
				}
				// Debounce: editors fire several events per save.
				if t, exists := timers[jobID]; exists {
					t.Stop()
				}
				jid := jobID
				timers[jobID] = time.AfterFunc(500*time.Millisecond, func() {
					log.Printf("upload watcher: file changed %q, running job %s", absPath, jid)
					if _, err := s.RunJob(ctx, jid); err != nil {
						log.Printf("upload watcher: run failed for job %s: %v", jid, err)
					}
				})
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Printf("upload watcher: error: %v", err)
			}
		}
	}()

	log.Printf("upload watcher: watching %d file(s)", len(pathToJob))
}

// WaitRunning blocks until all running jobs finish or ctx is cancelled.
// Used for graceful shutdown.
func (s *UploadService) WaitRunning(ctx context.Context) {
	if active := s.runningJobs.Active(); len(active) > 0 {
		log.Printf("[UPLOAD] waiting for %d running job(s): %s",
			len(active), strings.Join(active, ", "))
	}
	s.runningJobs.WaitAll(ctx)
}

// Stop tears down all watchers and schedulers.
func (s *UploadService) Stop() {
	s.stopWatchers()
}

func (s *UploadService) stopWatchers() {
	if s.watchCancel != nil {
		s.watchCancel()
		s.watchCancel = nil
	}
	if s.watcher != nil {
		s.watcher.Close()
		s.watcher = nil
	}
	if s.cronSched != nil {
		s.cronSched.Stop()
		s.cronSched = nil
	}
}

// ── File Loading ───────────────────────────────────────────

// loadFileData reads an upload source, either a local path or an
// http(s) URL, enforcing maxFileBytes.
func loadFileData(ctx context.Context, pathOrURL string) ([]byte, error) {
	if strings.HasPrefix(pathOrURL, "http://") || strings.HasPrefix(pathOrURL, "https://") {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, pathOrURL, nil)
		if err != nil {
			return nil, fmt.Errorf("fetch %s: %w", pathOrURL, err)
		}
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("fetch %s: %w", pathOrURL, err)
		}
		defer resp.Body.Close()
		if resp.StatusCode > 299 {
			return nil, fmt.Errorf("fetch %s: status %d", pathOrURL, resp.StatusCode)
		}
		data, err := io.ReadAll(io.LimitReader(resp.Body, maxFileBytes+1))
		if err != nil {
			return nil, fmt.Errorf("fetch %s: %w", pathOrURL, err)
		}
		if len(data) > maxFileBytes {
			return nil, fmt.Errorf("fetch %s: file exceeds %d bytes", pathOrURL, maxFileBytes)
		}
		return data, nil
	}

	info, err := os.Stat(pathOrURL)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", pathOrURL, err)
	}
	if info.Size() > maxFileBytes {
		return nil, fmt.Errorf("read %s: file exceeds %d bytes", pathOrURL, maxFileBytes)
	}
	return os.ReadFile(pathOrURL)
}
