package repository

import (
	"context"

	"github.com/beam-cloud/runwatch/pkg/types"
)

// StateRepository keeps the latest snapshot of every known run, keyed by run name.
// Only the most recent snapshot is kept; there is no history.
type StateRepository interface {
	SaveState(ctx context.Context, name string, state types.RunState) error
	GetState(ctx context.Context, name string) (types.RunState, error)
	ListStates(ctx context.Context) (map[string]types.RunState, error)
	DeleteState(ctx context.Context, name string) error
}
