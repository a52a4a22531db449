package execution

import (
	"context"
	"time"

	"covnorm/internal/domain"
)

// Executor normalizes a set of targets and returns their results
type Executor interface {
	Execute(ctx context.Context, targets []domain.Target) ([]domain.TargetResult, time.Duration, error)
}

// TargetRunner performs runAndNormalize for a single target
type TargetRunner interface {
	Run(ctx context.Context, target domain.Target) domain.TargetResult
}

// Progress receives completion updates from the worker pool
type Progress interface {
	Update(completed, ok, failed int)
	Finish()
}
