package common

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/beam-cloud/runwatch/pkg/types"
)

const eventBusResubscribeDelay = time.Second

type EventType string

const (
	EventPhaseChanged        EventType = "run.phase_changed"
	EventAvailabilityChanged EventType = "run.availability_changed"
)

type EventData struct {
	Name  string         `json:"name"`
	State types.RunState `json:"state"`
}

type Event struct {
	ID   string    `json:"id"`
	Type EventType `json:"type"`
	Data EventData `json:"data"`
}

func NewEvent(t EventType, name string, state types.RunState) Event {
	return Event{
		ID:   uuid.New().String(),
		Type: t,
		Data: EventData{Name: name, State: state},
	}
}

// EventBus fans run events out to handlers. With Redis every replica receives
// every event; without it events are dispatched in-process.
type EventBus struct {
	rdb      *RedisClient
	channel  string
	handlers map[EventType][]func(Event)
	mu       sync.RWMutex
	ctx      context.Context
}

func NewEventBus(ctx context.Context, rdb *RedisClient) *EventBus {
	return &EventBus{
		rdb:      rdb,
		channel:  Keys.EventChannel(),
		handlers: make(map[EventType][]func(Event)),
		ctx:      ctx,
	}
}

func (eb *EventBus) On(t EventType, fn func(Event)) {
	eb.mu.Lock()
	eb.handlers[t] = append(eb.handlers[t], fn)
	eb.mu.Unlock()
}

func (eb *EventBus) Emit(e Event) {
	if eb.rdb == nil {
		eb.dispatch(e)
		return
	}
	data, err := json.Marshal(e)
	if err != nil {
		log.Warn().Err(err).Str("type", string(e.Type)).Msg("eventbus: marshal failed")
		return
	}
	if err := eb.rdb.Publish(eb.ctx, eb.channel, data).Err(); err != nil {
		log.Warn().Err(err).Str("type", string(e.Type)).Msg("eventbus: publish failed")
	}
}

func (eb *EventBus) dispatch(e Event) {
	eb.mu.RLock()
	handlers := eb.handlers[e.Type]
	eb.mu.RUnlock()
	for _, fn := range handlers {
		fn(e)
	}
}

// Start blocks until the context is done. Call as a goroutine.
func (eb *EventBus) Start() {
	if eb.rdb == nil {
		<-eb.ctx.Done()
		return
	}
	log.Info().Str("channel", eb.channel).Msg("eventbus started")
	eb.listen()
}

func (eb *EventBus) listen() {
	for {
		if eb.ctx.Err() != nil {
			return
		}
		msgs, errs := eb.rdb.Subscribe(eb.ctx, eb.channel)
		eb.recv(msgs, errs)

		select {
		case <-eb.ctx.Done():
		case <-time.After(eventBusResubscribeDelay):
		}
	}
}

func (eb *EventBus) recv(msgs <-chan *redis.Message, errs <-chan error) {
	for {
		select {
		case <-eb.ctx.Done():
			return
		case err, ok := <-errs:
			if ok && err != nil {
				log.Warn().Err(err).Msg("eventbus: subscription lost")
			}
			return
		case msg, ok := <-msgs:
			if !ok {
				return
			}
			var e Event
			if json.Unmarshal([]byte(msg.Payload), &e) == nil {
				eb.dispatch(e)
			}
		}
	}
}
