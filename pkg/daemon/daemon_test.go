package daemon

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/beam-cloud/runwatch/pkg/common"
	"github.com/beam-cloud/runwatch/pkg/types"
)

func testConfig(t *testing.T, root string) types.AppConfig {
	t.Helper()
	cm, err := common.NewConfigManager[types.AppConfig]()
	require.NoError(t, err)

	cfg := cm.GetConfig()
	cfg.PrettyLogs = false
	cfg.HTTP.Enabled = false
	cfg.HTTP.AuthToken = "token"
	cfg.Watch.Roots = []string{root}
	cfg.Watch.Interval = time.Hour
	return cfg
}

func TestDaemonServesWatchedRuns(t *testing.T) {
	root := t.TempDir()
	run := filepath.Join(root, "20240101_run")
	require.NoError(t, os.MkdirAll(run, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(run, "RunInfo.xml"), nil, 0o644))

	t.Setenv(common.ConfigPathEnv, "")
	d, err := NewDaemonWithConfig(testConfig(t, root))
	require.NoError(t, err)
	assert.Nil(t, d.RedisClient)

	d.Watcher.PollAll(context.Background())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/runs/20240101_run", nil)
	req.Header.Set("Authorization", "Bearer token")
	rec := httptest.NewRecorder()
	d.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Data struct {
			Phase string `json:"phase"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "InProgress", body.Data.Phase)

	stored, err := d.Repo.GetState(context.Background(), "20240101_run")
	require.NoError(t, err)
	assert.Equal(t, types.PhaseInProgress, stored.Phase)

	req = httptest.NewRequest(http.MethodGet, "/api/v1/health/", nil)
	rec = httptest.NewRecorder()
	d.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code, "trailing slash is tolerated")
}

func TestDaemonStartAsyncAndShutdown(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "run_a"), 0o755))

	t.Setenv(common.ConfigPathEnv, "")
	d, err := NewDaemonWithConfig(testConfig(t, root))
	require.NoError(t, err)

	require.NoError(t, d.StartAsync())
	assert.Eventually(t, func() bool {
		_, err := d.Watcher.Get("run_a")
		return err == nil
	}, 2*time.Second, 10*time.Millisecond)

	d.Shutdown()
	assert.Error(t, d.ctx.Err())
}

func TestDaemonRecordsRunEvents(t *testing.T) {
	root := t.TempDir()
	run := filepath.Join(root, "20240101_run")
	require.NoError(t, os.MkdirAll(run, 0o755))

	t.Setenv(common.ConfigPathEnv, "")
	d, err := NewDaemonWithConfig(testConfig(t, root))
	require.NoError(t, err)

	d.Watcher.PollAll(context.Background())
	require.NoError(t, os.WriteFile(filepath.Join(run, "RunInfo.xml"), nil, 0o644))
	d.Watcher.PollAll(context.Background())

	recent := d.Events.Recent("20240101_run")
	require.Len(t, recent, 2)
	assert.Equal(t, types.PhaseNotStarted, recent[0].Data.State.Phase)
	assert.Equal(t, types.PhaseInProgress, recent[1].Data.State.Phase)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/events?run=20240101_run", nil)
	req.Header.Set("Authorization", "Bearer token")
	rec := httptest.NewRecorder()
	d.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Data []common.Event `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Data, 2)
	assert.Equal(t, common.EventPhaseChanged, body.Data[1].Type)
}
