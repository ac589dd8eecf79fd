// Package sink forwards run snapshots to downstream consumers.
package sink

import (
	"context"

	"github.com/beam-cloud/runwatch/pkg/common"
	"github.com/beam-cloud/runwatch/pkg/repository"
	"github.com/beam-cloud/runwatch/pkg/types"
)

// Update is a snapshot that differs from what the receiving sink last accepted
// for the run.
// Previous is nil until the sink has accepted a snapshot of the run.
type Update struct {
	Name     string
	Previous *types.RunState
	Current  types.RunState
}

func (u Update) PhaseChanged() bool {
	return u.Previous == nil || u.Previous.Phase != u.Current.Phase
}

func (u Update) AvailabilityChanged() bool {
	return u.Previous != nil && u.Previous.Available != u.Current.Available
}

type Sink interface {
	Name() string
	Publish(ctx context.Context, u Update) error
}

// RepositorySink stores every update as the run's latest snapshot
type RepositorySink struct {
	repo repository.StateRepository
}

func NewRepositorySink(repo repository.StateRepository) *RepositorySink {
	return &RepositorySink{repo: repo}
}

func (s *RepositorySink) Name() string {
	return "repository"
}

func (s *RepositorySink) Publish(ctx context.Context, u Update) error {
	return s.repo.SaveState(ctx, u.Name, u.Current)
}

// EventSink emits phase and availability changes on the event bus
type EventSink struct {
	bus *common.EventBus
}

func NewEventSink(bus *common.EventBus) *EventSink {
	return &EventSink{bus: bus}
}

func (s *EventSink) Name() string {
	return "events"
}

func (s *EventSink) Publish(ctx context.Context, u Update) error {
	if u.PhaseChanged() {
		s.bus.Emit(common.NewEvent(common.EventPhaseChanged, u.Name, u.Current))
	}
	if u.AvailabilityChanged() {
		s.bus.Emit(common.NewEvent(common.EventAvailabilityChanged, u.Name, u.Current))
	}
	return nil
}
