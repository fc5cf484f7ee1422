// Package preflight provides readiness checks for external services
// and filesystem paths that the document pipeline depends on.
//
// The CLI status command uses these checks to report on the environment
// without requiring a running daemon.
package preflight
