// Package queue persists documents in SQLite and exposes helpers for driving
// their lifecycle.
//
// The Store manages database connections, schema initialization, stats
// queries, heartbeat tracking, stuck-document recovery, and the status
// transitions that mirror the pipeline enum. Documents carry extraction
// output, embedding vectors, label references, and review flags so stages can
// coordinate without additional state. Stage outcomes accumulate in the
// stage_history table; tags, correspondents, and document types are resolved
// case-insensitively by slug and never duplicated.
//
// Treat this package as the single source of truth for pipeline semantics;
// when you add new statuses or metadata fields, update schema.sql and bump
// schemaVersion.
package queue
