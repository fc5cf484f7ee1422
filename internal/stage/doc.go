// Package stage defines the Handler contract every pipeline stage implements
// and the Health record stages report for readiness checks.
package stage
