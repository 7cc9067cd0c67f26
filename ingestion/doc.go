// Package ingestion turns documents into staged chunk records and pushes the
// reconciled staging log into an index.
//
// Ingest runs parse, chunk, identify, embed and append for one document:
//   - body text is split into fixed-size chunks with deterministic ids
//   - chunks are embedded in batches on a worker pool
//   - every record of the run shares one processed_at timestamp
//   - records are appended to the staging log as a single batch
//
// Sync reads the whole staging log, keeps the newest record per id and
// upserts the result. A failure in any stage aborts the run before the
// staging log or the index is touched.
package ingestion
