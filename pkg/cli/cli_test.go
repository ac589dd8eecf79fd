package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/beam-cloud/runwatch/pkg/common"
	"github.com/beam-cloud/runwatch/pkg/completion"
	"github.com/beam-cloud/runwatch/pkg/types"
)

// captureOutput redirects command output and resets output modes afterwards
func captureOutput(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := stdout
	stdout = &buf
	t.Setenv(common.ConfigPathEnv, "")
	t.Cleanup(func() {
		stdout = prev
		SetJSONOutput(false)
		SetYAMLOutput(false)
	})
	return &buf
}

func writeRun(t *testing.T, code *types.CompletionCode) string {
	t.Helper()
	root := filepath.Join(t.TempDir(), "20231231_foo_ABCXYZ")
	lane := filepath.Join(root, "Data", "Intensities", "BaseCalls", "L001")
	require.NoError(t, os.MkdirAll(filepath.Join(lane, "C1.1"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(lane, "C2.1"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(lane, "C2.1", "L001_1.cbcl"), nil, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "RunInfo.xml"), nil, 0o644))
	if code != nil {
		data, err := completion.Encode(types.CompletionStatus{Status: *code, RunID: "20231231_foo_ABCXYZ", Message: "lost the flow cell"})
		require.NoError(t, err)
		require.NoError(t, os.WriteFile(filepath.Join(root, "RunCompletionStatus.xml"), data, 0o644))
	}
	return root
}

func TestTable(t *testing.T) {
	buf := captureOutput(t)

	table := NewTable("NAME", "PHASE")
	table.AddRow("a_much_longer_name", "Complete", "ignored")
	table.AddRow("b")
	table.Print()

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 4)
	assert.Contains(t, lines[0], "NAME")
	assert.Contains(t, lines[1], strings.Repeat("─", len("a_much_longer_name")))
	assert.Contains(t, lines[2], "Complete")
	assert.NotContains(t, buf.String(), "ignored")
}

func TestFormatRelative(t *testing.T) {
	now := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		ago  time.Duration
		want string
	}{
		{10 * time.Second, "just now"},
		{time.Minute, "1 minute ago"},
		{5 * time.Minute, "5 minutes ago"},
		{3 * time.Hour, "3 hours ago"},
		{26 * time.Hour, "1 day ago"},
		{30 * 24 * time.Hour, "Feb 9, 2024"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, formatRelative(now.Add(-tt.ago), now))
	}
}

func TestPrintStructured(t *testing.T) {
	buf := captureOutput(t)
	assert.False(t, PrintStructured(map[string]int{"a": 1}))

	SetJSONOutput(true)
	assert.True(t, PrintStructured(map[string]int{"a": 1}))
	assert.JSONEq(t, `{"a":1}`, buf.String())

	buf.Reset()
	SetJSONOutput(false)
	SetYAMLOutput(true)
	assert.True(t, PrintStructured(map[string]int{"a": 1}))
	assert.Equal(t, "---\na: 1\n", buf.String())
}

func TestRunPollStopsWhenFinished(t *testing.T) {
	buf := captureOutput(t)
	SetJSONOutput(true)

	code := types.CompletionExceptionEndedEarly
	root := writeRun(t, &code)

	require.NoError(t, runPoll([]string{root}, 5, time.Millisecond))

	dec := json.NewDecoder(buf)
	var rounds [][]RunSnapshot
	for dec.More() {
		var round []RunSnapshot
		require.NoError(t, dec.Decode(&round))
		rounds = append(rounds, round)
	}
	require.Len(t, rounds, 1, "a finished run ends polling early")
	assert.Equal(t, "20231231_foo_ABCXYZ", rounds[0][0].Name)
	assert.Equal(t, types.PhaseFailed, rounds[0][0].Phase)
	require.NotNil(t, rounds[0][0].Completion)
	assert.Equal(t, "lost the flow cell", rounds[0][0].Completion.Message)
}

func TestRunPollCountsRounds(t *testing.T) {
	buf := captureOutput(t)
	SetYAMLOutput(true)

	root := writeRun(t, nil)
	require.NoError(t, runPoll([]string{root, filepath.Join(t.TempDir(), "missing")}, 3, time.Millisecond))

	docs := strings.Split(strings.TrimPrefix(buf.String(), "---\n"), "---\n")
	require.Len(t, docs, 3)

	var round []map[string]interface{}
	require.NoError(t, yaml.Unmarshal([]byte(docs[0]), &round))
	require.Len(t, round, 2)
	assert.Equal(t, "InProgress", round[0]["phase"])
	assert.Equal(t, "NotStarted", round[1]["phase"])
	assert.Equal(t, false, round[1]["available"])
}

func TestReadOutcome(t *testing.T) {
	captureOutput(t)

	code := types.CompletionCompletedAsPlanned
	root := writeRun(t, &code)

	status, err := readOutcome(root)
	require.NoError(t, err)
	assert.True(t, status.IsSuccess())

	status, err = readOutcome(filepath.Join(root, "RunCompletionStatus.xml"))
	require.NoError(t, err)
	assert.Equal(t, "20231231_foo_ABCXYZ", status.RunID)

	_, err = readOutcome(writeRun(t, nil))
	assert.ErrorIs(t, err, os.ErrNotExist)
	assert.NotEmpty(t, GetErrorSuggestions(err))
}

func TestVerifyOutcome(t *testing.T) {
	captureOutput(t)

	code := types.CompletionCompletedAsPlanned
	root := writeRun(t, &code)
	err := verifyOutcome(root)
	assert.True(t, (&types.ErrRunIncomplete{}).From(err), "not copied yet")
	assert.NotEmpty(t, GetErrorSuggestions(err))

	require.NoError(t, os.WriteFile(filepath.Join(root, "CopyComplete.txt"), nil, 0o644))
	assert.NoError(t, verifyOutcome(root))

	failed := types.CompletionUserEndedEarly
	root = writeRun(t, &failed)
	require.NoError(t, os.WriteFile(filepath.Join(root, "CopyComplete.txt"), nil, 0o644))
	err = verifyOutcome(root)
	var unsuccessful *types.ErrRunUnsuccessful
	require.ErrorAs(t, err, &unsuccessful)
	assert.Equal(t, "UserEndedEarly", unsuccessful.Status.Code())
}

func TestRunLanes(t *testing.T) {
	buf := captureOutput(t)
	root := writeRun(t, nil)

	require.NoError(t, runLanes(root, "cycles"))
	assert.Equal(t, "L001/C1.1\nL001/C2.1\n", buf.String())

	buf.Reset()
	SetJSONOutput(true)
	require.NoError(t, runLanes(root, ""))
	var summary struct {
		Files map[string]string `json:"files"`
		Lanes []struct {
			Lane       string `json:"lane"`
			Cycles     int    `json:"cycles"`
			LastCycle  int    `json:"last_cycle"`
			DataBlocks int    `json:"data_blocks"`
		} `json:"lanes"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &summary))
	require.Len(t, summary.Lanes, 1)
	assert.Equal(t, 2, summary.Lanes[0].Cycles)
	assert.Equal(t, 2, summary.Lanes[0].LastCycle)
	assert.Equal(t, 1, summary.Lanes[0].DataBlocks)
	assert.Equal(t, map[string]string{"RunInfo.xml": filepath.Join(root, "RunInfo.xml")}, summary.Files)

	buf.Reset()
	SetJSONOutput(false)
	require.NoError(t, runLanes(root, ""))
	assert.Contains(t, buf.String(), filepath.Join(root, "RunInfo.xml"))

	assert.Error(t, runLanes(root, "tiles"))
	assert.Error(t, runLanes(filepath.Join(root, "nope"), ""))
}

func TestClient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.Header.Get("Authorization") != "Bearer secret" {
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"success":false,"error":"unauthorized"}`))
			return
		}
		switch r.URL.Path {
		case "/api/v1/runs":
			w.Write([]byte(`{"success":true,"data":[{"name":"run_a","phase":"Complete","available":true,"root":"/runs/run_a","since":"2024-01-01T00:00:00Z"}]}`))
		default:
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"success":false,"error":"run not found: x"}`))
		}
	}))
	defer srv.Close()

	client, err := NewClient(srv.URL, "secret")
	require.NoError(t, err)

	runs, err := client.ListRuns(context.Background())
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "run_a", runs[0].Name)
	assert.Equal(t, types.PhaseComplete, runs[0].Phase)

	_, err = client.PollRun(context.Background(), "x")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
	assert.Equal(t, "run not found: x", FormatError(err))

	bad, err := NewClient(srv.URL, "wrong")
	require.NoError(t, err)
	_, err = bad.ListRuns(context.Background())
	require.Error(t, err)
	assert.NotEmpty(t, GetErrorSuggestions(err))

	_, err = NewClient("localhost", "")
	assert.Error(t, err)
}
