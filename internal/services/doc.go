// Package services holds conventions shared by every external integration:
// sentinel errors and the transient/permanent/degraded classification the
// workflow retry policy runs on, plus context annotations that flow document
// and stage identity into structured logs.
package services
