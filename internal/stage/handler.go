package stage

import (
	"context"

	"docket/internal/queue"
)

// Handler describes the contract the workflow manager needs from each stage.
type Handler interface {
	Prepare(context.Context, *queue.Document) error
	Execute(context.Context, *queue.Document) error
	HealthCheck(context.Context) Health
}
