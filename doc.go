// Package capturex runs task-capture jobs asynchronously: a submitter writes a
// queued status record and pushes a message onto a Redis list, and workers pop
// messages, drive the planning/research/commit pipeline, and record the outcome
// in a status store that callers poll.
//
// Quick start:
//  1. Connect a go-redis client and create NewRedisQueue and NewRedisStore
//     (or NewSQLStore over a *sql.DB).
//  2. Create a Client with NewClient(queue, store, ...) and Submit payloads.
//  3. Build a pipeline.Orchestrator and pass it to NewWorker.
//  4. Run the worker; Shutdown stops it between pops, never mid-job.
//
// Delivery is at most once. A worker that dies after popping a message leaves the
// job's record in "running" until its TTL expires.
package capturex
