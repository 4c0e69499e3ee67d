package upload

import "fmt"

// ── Error taxonomy ──────────────────────────────────────────
// Terminal failures are typed so the orchestrator (and callers
// holding a bare error) can discriminate with errors.As. Field-level
// validation problems are data (ValidationError), never error values.

// SchemaInferenceError reports that a collection had no documents to
// sample, so no schema could be bootstrapped.
type SchemaInferenceError struct {
	Collection string
}

func (e *SchemaInferenceError) Error() string {
	return fmt.Sprintf("Cannot determine schema: collection %q has no documents to sample from", e.Collection)
}

// UnsupportedFormatError reports a file whose extension maps to no
// known parser.
type UnsupportedFormatError struct {
	FileName string
	Ext      string
}

func (e *UnsupportedFormatError) Error() string {
	if e.Ext == "" {
		return fmt.Sprintf("Unsupported file format: %q has no extension (expected .csv or .json)", e.FileName)
	}
	return fmt.Sprintf("Unsupported file format %q: expected .csv or .json", e.Ext)
}

// EmptyFileError reports a file that parsed cleanly but produced zero
// records.
type EmptyFileError struct {
	FileName string
}

func (e *EmptyFileError) Error() string {
	return fmt.Sprintf("File %q contains no records", e.FileName)
}

// CommitError reports a store write failure on one batch. Batches
// before this one are already persisted and stay persisted.
type CommitError struct {
	Batch   int // 1-based index of the failed batch
	Written int // records persisted before the failure
	Err     error
}

func (e *CommitError) Error() string {
	return fmt.Sprintf("commit batch %d failed after %d records written: %v", e.Batch, e.Written, e.Err)
}

func (e *CommitError) Unwrap() error { return e.Err }
