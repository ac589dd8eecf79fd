package apiv1

import (
	"context"
	"maps"
	"net/http"
	"slices"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"

	"github.com/beam-cloud/runwatch/pkg/rundir"
	"github.com/beam-cloud/runwatch/pkg/types"
)

// RunService is the part of the watcher the runs API needs
type RunService interface {
	States() map[string]types.RunState
	Get(name string) (types.RunState, error)
	Poll(ctx context.Context, name string) (types.RunState, error)
	Summary(name string) (rundir.Summary, error)
}

type RunsGroup struct {
	routerGroup *echo.Group
	runs        RunService
}

// RunResponse is a snapshot plus the run's name
type RunResponse struct {
	Name string `json:"name"`
	types.RunState
}

func NewRunsGroup(routerGroup *echo.Group, runs RunService) *RunsGroup {
	g := &RunsGroup{
		routerGroup: routerGroup,
		runs:        runs,
	}
	g.registerRoutes()
	return g
}

func (g *RunsGroup) registerRoutes() {
	g.routerGroup.GET("", g.ListRuns)
	g.routerGroup.GET("/:name", g.GetRun)
	g.routerGroup.POST("/:name/poll", g.PollRun)
	g.routerGroup.GET("/:name/substructure", g.GetSubstructure)
}

// ListRuns returns every tracked and recently retired run, sorted by name
func (g *RunsGroup) ListRuns(c echo.Context) error {
	states := g.runs.States()

	response := make([]RunResponse, 0, len(states))
	for _, name := range slices.Sorted(maps.Keys(states)) {
		response = append(response, RunResponse{Name: name, RunState: states[name]})
	}

	return SuccessResponse(c, response)
}

func (g *RunsGroup) GetRun(c echo.Context) error {
	name := c.Param("name")

	state, err := g.runs.Get(name)
	if err != nil {
		return runError(c, err)
	}

	return SuccessResponse(c, RunResponse{Name: name, RunState: state})
}

// PollRun polls the run immediately and returns the resulting snapshot
func (g *RunsGroup) PollRun(c echo.Context) error {
	name := c.Param("name")

	state, err := g.runs.Poll(c.Request().Context(), name)
	if err != nil {
		return runError(c, err)
	}

	return SuccessResponse(c, RunResponse{Name: name, RunState: state})
}

func (g *RunsGroup) GetSubstructure(c echo.Context) error {
	summary, err := g.runs.Summary(c.Param("name"))
	if err != nil {
		return runError(c, err)
	}

	return SuccessResponse(c, summary)
}

func runError(c echo.Context, err error) error {
	if (&types.ErrRunNotFound{}).From(err) {
		return ErrorResponse(c, http.StatusNotFound, err.Error())
	}
	log.Error().Err(err).Str("path", c.Path()).Msg("runs api error")
	return ErrorResponse(c, http.StatusInternalServerError, err.Error())
}
