package upload

import (
	"context"
	"fmt"
	"log"
)

// ── Engine ──────────────────────────────────────────────────
// Sequences the pipeline: infer schema → parse file → validate →
// (abort | transform → commit). Every stage consumes the previous
// stage's full output before starting; only the inferencer and the
// committer touch the store. Nothing escapes Upload as a panic or an
// error — every outcome is folded into a Result.

// uploadState names the pipeline stages for logging.
type uploadState string

const (
	stateSchemaInferred uploadState = "schema inferred"
	stateParsed         uploadState = "parsed"
	stateValidated      uploadState = "validated"
	stateAborted        uploadState = "aborted"
	stateCommitted      uploadState = "committed"
)

// Engine runs bulk uploads against one store.
type Engine struct {
	Store      Store
	SampleSize int // schema inference sample, 0 means DefaultSampleSize
	BatchSize  int // commit batch size, 0 means DefaultBatchSize
}

// NewEngine returns an Engine with default sample and batch sizes.
func NewEngine(store Store) *Engine {
	return &Engine{Store: store}
}

// Upload ingests one fully-loaded file into a collection. The schema
// is inferred fresh from the current collection contents, every record
// is validated before anything is written, and a single validation
// error anywhere aborts the whole file with zero writes.
func (e *Engine) Upload(ctx context.Context, collectionID, fileName string, data []byte) (result *Result) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[UPLOAD] panic while uploading %q to %q: %v", fileName, collectionID, r)
			result = &Result{
				Success: false,
				Message: fmt.Sprintf("Upload failed: %v", r),
			}
		}
	}()

	// Idle → SchemaInferred
	inf := &Inferencer{Store: e.Store, SampleSize: e.SampleSize}
	schema, err := inf.Infer(ctx, collectionID)
	if err != nil {
		log.Printf("[UPLOAD] %q: schema inference failed: %v", collectionID, err)
		return &Result{Success: false, Message: err.Error()}
	}
	e.logState(collectionID, stateSchemaInferred)

	// SchemaInferred → Parsed
	records, err := ParseFile(fileName, data)
	if err != nil {
		log.Printf("[UPLOAD] %q: parse %q failed: %v", collectionID, fileName, err)
		return &Result{Success: false, Message: err.Error()}
	}
	if len(records) == 0 {
		err := &EmptyFileError{FileName: fileName}
		return &Result{Success: false, Message: err.Error()}
	}
	e.logState(collectionID, stateParsed)

	// Parsed → Validated
	validator, err := NewValidator(schema)
	if err != nil {
		return &Result{Success: false, Message: fmt.Sprintf("Upload failed: %v", err)}
	}
	verrs := validator.ValidateAll(records)
	e.logState(collectionID, stateValidated)

	if len(verrs) > 0 {
		// Validated → Aborted: no records are written; the caller gets
		// the complete error list so one retry can fix the whole file.
		invalid := map[int]struct{}{}
		for _, ve := range verrs {
			invalid[ve.RecordIndex] = struct{}{}
		}
		e.logState(collectionID, stateAborted)
		return &Result{
			Success:          false,
			Message:          fmt.Sprintf("Validation failed for %d of %d records; nothing was uploaded", len(invalid), len(records)),
			SuccessCount:     0,
			ErrorCount:       len(invalid),
			ValidationErrors: verrs,
			TotalRecords:     len(records),
		}
	}

	// Validated → Committed
	canonical := NewTransformer(schema).TransformAll(records)
	committer := &Committer{Store: e.Store, BatchSize: e.BatchSize}
	written, err := committer.Commit(ctx, collectionID, canonical)
	if err != nil {
		log.Printf("[UPLOAD] %q: commit failed: %v", collectionID, err)
		return &Result{
			Success:      false,
			Message:      fmt.Sprintf("Upload stopped after %d of %d records: %v", written, len(records), err),
			SuccessCount: written,
			ErrorCount:   len(records) - written,
			Errors:       []string{err.Error()},
			TotalRecords: len(records),
		}
	}
	e.logState(collectionID, stateCommitted)

	return &Result{
		Success:      true,
		Message:      fmt.Sprintf("Successfully uploaded %d records", written),
		SuccessCount: written,
		TotalRecords: len(records),
	}
}

func (e *Engine) logState(collectionID string, st uploadState) {
	log.Printf("[UPLOAD] %q: %s", collectionID, st)
}
