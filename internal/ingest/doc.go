// Package ingest watches the inbox directory and turns stable files into
// queued documents: content hashing for duplicate detection, extension and
// size validation, free space checks, and the move into the document library.
package ingest
