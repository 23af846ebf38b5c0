package scheduler

import (
	"context"
	"time"

	"github.com/mattjoyce/relaycmd/internal/registry"
)

//go:generate mockgen -destination=mocks/mock_executor.go -package=mocks github.com/mattjoyce/relaycmd/internal/scheduler Executor

// Executor runs a named command. *registry.Registry implements it.
type Executor interface {
	Execute(name string) (*registry.Execution, error)
}

// Pruner drops old execution history. *state.Store implements it.
type Pruner interface {
	Prune(ctx context.Context, retention time.Duration, now time.Time) (int64, error)
}
