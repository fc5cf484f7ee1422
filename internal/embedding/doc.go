// Package embedding implements the semantic embedding stage: extracted text
// is split into overlapping chunks, each chunk is embedded by the local AI
// backend, and the chunk vectors are averaged and normalized into a single
// document vector.
package embedding
