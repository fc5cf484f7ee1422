// Package ollama provides a typed client for the local Ollama HTTP API.
//
// The client covers the three calls the pipeline needs: JSON-mode text
// generation for classification, vision generation with attached page images,
// and batch embeddings. Requests retry with exponential backoff on transient
// HTTP failures and honor Retry-After headers; DecodeJSON tolerates the code
// fences and prose that local models wrap around structured output.
package ollama
