package apiv1

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/beam-cloud/runwatch/pkg/common"
	"github.com/beam-cloud/runwatch/pkg/types"
)

func TestEventLogRecordsBusEvents(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bus := common.NewEventBus(ctx, nil)
	events := NewEventLog(2, time.Hour)
	events.Subscribe(bus)

	since := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	bus.Emit(common.NewEvent(common.EventPhaseChanged, "run_a", types.RunState{Phase: types.PhaseInProgress, Since: since}))
	bus.Emit(common.NewEvent(common.EventAvailabilityChanged, "run_b", types.RunState{Phase: types.PhaseInProgress, Since: since}))
	bus.Emit(common.NewEvent(common.EventPhaseChanged, "run_a", types.RunState{Phase: types.PhaseComplete, Since: since}))

	all := events.Recent("")
	require.Len(t, all, 2, "the log is bounded")
	assert.Equal(t, "run_b", all[0].Data.Name)
	assert.Equal(t, types.PhaseComplete, all[1].Data.State.Phase)

	runA := events.Recent("run_a")
	require.Len(t, runA, 1)
	assert.Equal(t, common.EventPhaseChanged, runA[0].Type)
	assert.Empty(t, events.Recent("run_c"))
}

func TestListEvents(t *testing.T) {
	events := NewEventLog(0, 0)
	state := types.RunState{Phase: types.PhaseFailed, Root: "/runs/run_a", Since: time.Now().UTC()}
	events.Record(common.NewEvent(common.EventPhaseChanged, "run_a", state))
	events.Record(common.NewEvent(common.EventPhaseChanged, "run_b", state))

	e := echo.New()
	g := e.Group(HttpServerBaseRoute + "/events")
	g.Use(NewTokenAuthMiddleware("secret"))
	NewEventsGroup(g, events)

	assert.Equal(t, http.StatusUnauthorized, do(e, http.MethodGet, "/api/v1/events", "").Code)

	rec := do(e, http.MethodGet, "/api/v1/events?run=run_a", "secret")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Success bool           `json:"success"`
		Data    []common.Event `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.True(t, body.Success)
	require.Len(t, body.Data, 1)
	assert.Equal(t, "run_a", body.Data[0].Data.Name)
	assert.Equal(t, types.PhaseFailed, body.Data[0].Data.State.Phase)
}
