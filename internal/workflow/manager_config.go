package workflow

import (
	"docket/internal/queue"
	"docket/internal/stage"
)

// StageSet bundles the concrete pipeline handlers the manager orchestrates.
type StageSet struct {
	Extractor   stage.Handler
	Embedder    stage.Handler
	Classifier  stage.Handler
	Thumbnailer stage.Handler
}

type pipelineStage struct {
	name             string
	handler          stage.Handler
	startStatus      queue.Status
	processingStatus queue.Status
	doneStatus       queue.Status
}

// ConfigureStages registers the concrete stage handlers the pipeline will run.
// Stages chain in order; the final configured stage completes the document.
func (m *Manager) ConfigureStages(set StageSet) {
	var stages []pipelineStage

	embedderStart := queue.StatusQueued
	if set.Extractor != nil {
		stages = append(stages, pipelineStage{
			name:             "extractor",
			handler:          set.Extractor,
			startStatus:      queue.StatusQueued,
			processingStatus: queue.StatusExtracting,
			doneStatus:       queue.StatusExtracted,
		})
		embedderStart = queue.StatusExtracted
	}
	classifierStart := embedderStart
	if set.Embedder != nil {
		stages = append(stages, pipelineStage{
			name:             "embedder",
			handler:          set.Embedder,
			startStatus:      embedderStart,
			processingStatus: queue.StatusEmbedding,
			doneStatus:       queue.StatusEmbedded,
		})
		classifierStart = queue.StatusEmbedded
	}
	thumbnailerStart := classifierStart
	if set.Classifier != nil {
		stages = append(stages, pipelineStage{
			name:             "classifier",
			handler:          set.Classifier,
			startStatus:      classifierStart,
			processingStatus: queue.StatusClassifying,
			doneStatus:       queue.StatusClassified,
		})
		thumbnailerStart = queue.StatusClassified
	}
	if set.Thumbnailer != nil {
		stages = append(stages, pipelineStage{
			name:             "thumbnailer",
			handler:          set.Thumbnailer,
			startStatus:      thumbnailerStart,
			processingStatus: queue.StatusThumbnailing,
			doneStatus:       queue.StatusCompleted,
		})
	}

	// The last configured stage finishes the document.
	if len(stages) > 0 {
		stages[len(stages)-1].doneStatus = queue.StatusCompleted
	}

	stageByStart := make(map[queue.Status]pipelineStage, len(stages))
	statusOrder := make([]queue.Status, 0, len(stages))
	for _, stg := range stages {
		stageByStart[stg.startStatus] = stg
		statusOrder = append(statusOrder, stg.startStatus)
	}

	m.mu.Lock()
	m.pipeline = stages
	m.stageByStart = stageByStart
	m.statusOrder = statusOrder
	m.mu.Unlock()
}

func (m *Manager) stageForStatus(status queue.Status) (pipelineStage, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	stg, ok := m.stageByStart[status]
	return stg, ok
}
