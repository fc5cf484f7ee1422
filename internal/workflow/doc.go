// Package workflow orchestrates document processing through the pipeline
// stages: extraction, embedding, classification, and thumbnail rendering.
//
// A single dispatcher polls the store for documents whose status starts a
// stage and hands them to a bounded worker pool. A lease table enforces
// single-flight processing per document, heartbeats guard against silent
// worker death, and an explicit retry policy maps each failure to retry,
// degrade, or fail based on the error class and attempt count.
package workflow
