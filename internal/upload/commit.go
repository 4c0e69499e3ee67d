package upload

import (
	"context"
	"log"
)

// ── Batch commit ────────────────────────────────────────────
// The only stage with write side effects. Records are persisted in
// consecutive batches; each batch is one atomic store write, batches
// run strictly sequentially, and a failure on batch k leaves batches
// 1..k-1 committed with no compensating rollback.

// DefaultBatchSize is the batch partition size when the caller does
// not ask for one.
const DefaultBatchSize = 500

// Committer writes canonical records to the store in bounded batches.
type Committer struct {
	Store     Store
	BatchSize int // 0 means DefaultBatchSize
}

// Commit partitions records into ceil(N/B) batches and writes them in
// order. It returns how many records were persisted; on failure the
// returned CommitError names the failed batch and the count stands at
// the last fully committed batch.
func (c *Committer) Commit(ctx context.Context, collectionID string, records []Record) (int, error) {
	size := c.BatchSize
	if size <= 0 {
		size = DefaultBatchSize
	}

	written := 0
	batchNum := 0
	for start := 0; start < len(records); start += size {
		end := start + size
		if end > len(records) {
			end = len(records)
		}
		batchNum++

		docs := make([]map[string]any, 0, end-start)
		for _, rec := range records[start:end] {
			docs = append(docs, rec.Data)
		}

		if err := c.Store.BatchWrite(ctx, collectionID, docs); err != nil {
			return written, &CommitError{Batch: batchNum, Written: written, Err: err}
		}
		written += len(docs)
		log.Printf("[UPLOAD] committed batch %d (%d/%d records) to %q",
			batchNum, written, len(records), collectionID)
	}
	return written, nil
}
