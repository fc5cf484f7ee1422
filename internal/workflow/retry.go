package workflow

import (
	"time"

	"docket/internal/config"
	"docket/internal/services"
)

// RetryPolicy decides how a stage failure is resolved: retry with backoff,
// degrade and continue, or fail the document.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// Resolution is the action the manager takes after a stage error.
type Resolution int

const (
	// ResolutionRetry rolls the document back to the stage start and tries again later.
	ResolutionRetry Resolution = iota
	// ResolutionFail marks the document failed.
	ResolutionFail
	// ResolutionDegrade advances the document with partial results recorded.
	ResolutionDegrade
)

// Decision couples a resolution with the delay before the next attempt.
type Decision struct {
	Resolution Resolution
	Delay      time.Duration
}

// RetryPolicyFromConfig builds the policy from workflow settings.
func RetryPolicyFromConfig(cfg *config.Config) RetryPolicy {
	policy := RetryPolicy{MaxAttempts: 3, BaseDelay: 2 * time.Second, MaxDelay: 60 * time.Second}
	if cfg == nil {
		return policy
	}
	if cfg.Workflow.MaxStageAttempts > 0 {
		policy.MaxAttempts = cfg.Workflow.MaxStageAttempts
	}
	if cfg.Workflow.RetryBaseDelay > 0 {
		policy.BaseDelay = time.Duration(cfg.Workflow.RetryBaseDelay) * time.Second
	}
	if cfg.Workflow.RetryMaxDelay > 0 {
		policy.MaxDelay = time.Duration(cfg.Workflow.RetryMaxDelay) * time.Second
	}
	return policy
}

// Decide maps a stage, attempt count, and error class to a resolution.
// Degraded errors always advance; permanent errors always fail; transient
// errors retry with exponential backoff until attempts are exhausted.
func (p RetryPolicy) Decide(stage string, attempt int, class services.Class) Decision {
	switch class {
	case services.ClassDegraded:
		return Decision{Resolution: ResolutionDegrade}
	case services.ClassPermanent:
		return Decision{Resolution: ResolutionFail}
	}
	if attempt >= p.MaxAttempts {
		return Decision{Resolution: ResolutionFail}
	}
	return Decision{Resolution: ResolutionRetry, Delay: p.backoff(attempt)}
}

func (p RetryPolicy) backoff(attempt int) time.Duration {
	delay := p.BaseDelay
	for i := 1; i < attempt; i++ {
		if delay > p.MaxDelay/2 {
			return p.MaxDelay
		}
		delay *= 2
	}
	if p.MaxDelay > 0 && delay > p.MaxDelay {
		return p.MaxDelay
	}
	return delay
}
