package apiv1

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
	"github.com/shirou/gopsutil/v4/disk"

	"github.com/beam-cloud/runwatch/pkg/common"
)

type HealthGroup struct {
	redisClient *common.RedisClient
	routerGroup *echo.Group
	volumes     []string
}

// VolumeUsage reports free space on a filesystem holding watched runs
type VolumeUsage struct {
	Path        string  `json:"path"`
	Fstype      string  `json:"fstype,omitempty"`
	Total       uint64  `json:"total"`
	Free        uint64  `json:"free"`
	UsedPercent float64 `json:"used_percent"`
	Error       string  `json:"error,omitempty"`
}

type HealthResponse struct {
	Status  string        `json:"status"`
	Redis   string        `json:"redis,omitempty"`
	Volumes []VolumeUsage `json:"volumes"`
}

// NewHealthGroup registers the health check. rdb is nil in local mode.
func NewHealthGroup(g *echo.Group, rdb *common.RedisClient, volumes []string) *HealthGroup {
	group := &HealthGroup{routerGroup: g, redisClient: rdb, volumes: volumes}

	g.GET("", group.HealthCheck)

	return group
}

func (h *HealthGroup) HealthCheck(c echo.Context) error {
	ctx := c.Request().Context()
	resp := HealthResponse{Status: "ok", Volumes: []VolumeUsage{}}

	for _, path := range h.volumes {
		v := VolumeUsage{Path: path}
		usage, err := disk.UsageWithContext(ctx, path)
		if err != nil {
			v.Error = err.Error()
		} else {
			v.Fstype = usage.Fstype
			v.Total = usage.Total
			v.Free = usage.Free
			v.UsedPercent = usage.UsedPercent
		}
		resp.Volumes = append(resp.Volumes, v)
	}

	if h.redisClient == nil {
		return c.JSON(http.StatusOK, resp)
	}

	if err := h.redisClient.Ping(ctx).Err(); err != nil {
		log.Error().Err(err).Msg("health check failed")
		resp.Status = "not ok"
		resp.Redis = err.Error()
		return c.JSON(http.StatusInternalServerError, resp)
	}

	resp.Redis = "ok"
	return c.JSON(http.StatusOK, resp)
}
