package workflow

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"

	"docket/internal/config"
	"docket/internal/notifications"
	"docket/internal/queue"
)

// Manager coordinates document processing using registered stage handlers.
// A dispatcher goroutine polls the store for ready documents and hands them to
// a bounded worker pool; a lease table guarantees each document is processed by
// at most one worker at a time.
type Manager struct {
	cfg          *config.Config
	store        *queue.Store
	logger       *slog.Logger
	pollInterval time.Duration
	notifier     notifications.Service

	heartbeat *HeartbeatMonitor
	retry     RetryPolicy
	leases    *leaseTable

	pipeline     []pipelineStage
	statusOrder  []queue.Status
	stageByStart map[queue.Status]pipelineStage

	pool *ants.Pool

	mu        sync.RWMutex
	listeners []StatusListener
	running   bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	taskWG  sync.WaitGroup
	lastErr error
	lastDoc *queue.Document

	queueActive bool
	queueStart  time.Time
}

// StatusListener observes persisted document status transitions.
type StatusListener func(docID string, from, to queue.Status)

// OnStatusChange registers a listener invoked after every persisted status
// transition. Listeners run on the worker goroutine and must not block.
func (m *Manager) OnStatusChange(listener StatusListener) {
	if listener == nil {
		return
	}
	m.mu.Lock()
	m.listeners = append(m.listeners, listener)
	m.mu.Unlock()
}

// NewManager constructs a new workflow manager.
func NewManager(cfg *config.Config, store *queue.Store, logger *slog.Logger) *Manager {
	return NewManagerWithNotifier(cfg, store, logger, notifications.NewService(cfg))
}

// NewManagerWithNotifier constructs a workflow manager with a custom notifier (used in tests).
func NewManagerWithNotifier(cfg *config.Config, store *queue.Store, logger *slog.Logger, notifier notifications.Service) *Manager {
	return &Manager{
		cfg:          cfg,
		store:        store,
		logger:       logger,
		notifier:     notifier,
		pollInterval: time.Duration(cfg.Workflow.QueuePollInterval) * time.Second,
		heartbeat: NewHeartbeatMonitor(
			store,
			logger,
			time.Duration(cfg.Workflow.HeartbeatInterval)*time.Second,
			time.Duration(cfg.Workflow.HeartbeatTimeout)*time.Second,
		),
		retry:  RetryPolicyFromConfig(cfg),
		leases: newLeaseTable(),
	}
}
