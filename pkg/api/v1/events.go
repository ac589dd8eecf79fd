package apiv1

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/labstack/echo/v4"

	"github.com/beam-cloud/runwatch/pkg/common"
)

const (
	defaultEventLogSize = 512
	defaultEventLogTTL  = 24 * time.Hour
)

// EventLog keeps the most recent run events seen on the event bus. In remote
// mode that includes events emitted by other replicas.
type EventLog struct {
	events *expirable.LRU[string, common.Event]
}

func NewEventLog(size int, ttl time.Duration) *EventLog {
	if size <= 0 {
		size = defaultEventLogSize
	}
	if ttl <= 0 {
		ttl = defaultEventLogTTL
	}
	return &EventLog{events: expirable.NewLRU[string, common.Event](size, nil, ttl)}
}

// Subscribe records every run event emitted on bus
func (l *EventLog) Subscribe(bus *common.EventBus) {
	bus.On(common.EventPhaseChanged, l.Record)
	bus.On(common.EventAvailabilityChanged, l.Record)
}

func (l *EventLog) Record(e common.Event) {
	l.events.Add(e.ID, e)
}

// Recent returns events oldest first, optionally only those for one run
func (l *EventLog) Recent(name string) []common.Event {
	out := []common.Event{}
	for _, id := range l.events.Keys() {
		e, ok := l.events.Peek(id)
		if !ok || (name != "" && e.Data.Name != name) {
			continue
		}
		out = append(out, e)
	}
	return out
}

type EventsGroup struct {
	routerGroup *echo.Group
	log         *EventLog
}

func NewEventsGroup(routerGroup *echo.Group, events *EventLog) *EventsGroup {
	g := &EventsGroup{
		routerGroup: routerGroup,
		log:         events,
	}
	g.routerGroup.GET("", g.ListEvents)
	return g
}

// ListEvents returns recent run events. ?run=<name> narrows them to one run.
func (g *EventsGroup) ListEvents(c echo.Context) error {
	return SuccessResponse(c, g.log.Recent(c.QueryParam("run")))
}
