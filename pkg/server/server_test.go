package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/de-tools/account-review/pkg/analytics"
	"github.com/de-tools/account-review/pkg/analytics/catalog"
	"github.com/de-tools/account-review/pkg/models/api"
	"github.com/de-tools/account-review/pkg/models/domain"
	arsmiddleware "github.com/de-tools/account-review/pkg/server/middleware"
	"github.com/de-tools/account-review/pkg/services/history"
	"github.com/de-tools/account-review/pkg/store/duckdb"
	"github.com/de-tools/account-review/pkg/store/duckdb/runs"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func unmarshalResponse[T any]() func([]byte) (interface{}, error) {
	return func(data []byte) (interface{}, error) {
		var v T
		err := json.Unmarshal(data, &v)
		return v, err
	}
}

func setupAPI(t *testing.T) (*httptest.Server, history.Service) {
	t.Helper()
	logger := zerolog.New(zerolog.NewTestWriter(t))
	ctx := logger.WithContext(context.Background())

	db, err := duckdb.NewDB(duckdb.Settings{DbPath: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	store, err := runs.NewStore(db)
	require.NoError(t, err)
	hist, err := history.NewService(db, store)
	require.NoError(t, err)

	registry, err := catalog.Load(ctx)
	require.NoError(t, err)

	started := time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC)
	finished := started.Add(90 * time.Second)
	run := domain.Run{ID: "run-1", ClientID: "1453", ClientName: "Connex CU", Month: "2025.12", Status: domain.RunStatusRunning, StartedAt: started}
	require.NoError(t, hist.Start(ctx, run))
	run.Status = domain.RunStatusSucceeded
	run.FinishedAt = &finished
	run.SlideCount = 12
	run.Steps = []domain.StepRecord{{Name: "load_data", Success: true, Elapsed: time.Second}}
	require.NoError(t, hist.Finish(ctx, run))

	api := NewWebAPI(logger, Config{
		Addr: ":0",
		Dependencies: Dependencies{
			History:  hist,
			Registry: registry,
		},
	})
	ts := httptest.NewServer(api.Handler())
	t.Cleanup(ts.Close)
	return ts, hist
}

func TestWebAPI_Endpoints(t *testing.T) {
	ts, _ := setupAPI(t)

	tests := []struct {
		name           string
		path           string
		expectedStatus int
		expected       interface{}
		parseResponse  func([]byte) (interface{}, error)
	}{
		{
			name:           "ListRuns_OtherClient",
			path:           "/api/v1/runs?client=77",
			expectedStatus: http.StatusOK,
			expected:       []api.Run{},
			parseResponse:  unmarshalResponse[[]api.Run](),
		},
		{
			name:           "GetRun_NotFound",
			path:           "/api/v1/runs/missing",
			expectedStatus: http.StatusNotFound,
			expected:       api.Error{Title: "Not Found", Message: "no run with id missing"},
			parseResponse:  unmarshalResponse[api.Error](),
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			resp, err := http.Get(ts.URL + tc.path)
			require.NoError(t, err, "Failed to send request")
			defer resp.Body.Close()

			assert.Equal(t, tc.expectedStatus, resp.StatusCode, "Status code mismatch")
			assert.NotEmpty(t, resp.Header.Get(arsmiddleware.RequestIDHeader))

			body, err := io.ReadAll(resp.Body)
			require.NoError(t, err)
			actual, err := tc.parseResponse(body)
			require.NoError(t, err)
			assert.Equal(t, tc.expected, actual)
		})
	}
}

func TestWebAPI_ListRuns(t *testing.T) {
	ts, _ := setupAPI(t)
	resp, err := http.Get(ts.URL + "/api/v1/runs?client=1453")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var runs []api.Run
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&runs))
	require.Len(t, runs, 1)
	assert.Equal(t, "run-1", runs[0].ID)
	assert.Equal(t, "Connex CU", runs[0].ClientName)
	assert.Equal(t, "succeeded", runs[0].Status)
	assert.Equal(t, 12, runs[0].SlideCount)
	assert.True(t, runs[0].StartedAt.Equal(time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC)))
	require.NotNil(t, runs[0].FinishedAt)
	assert.Equal(t, 90*time.Second, runs[0].FinishedAt.Sub(runs[0].StartedAt))
}

func TestWebAPI_GetRun(t *testing.T) {
	ts, _ := setupAPI(t)
	resp, err := http.Get(ts.URL + "/api/v1/runs/run-1")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var run api.Run
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&run))
	require.Len(t, run.Steps, 1)
	assert.Equal(t, api.Step{Name: "load_data", Success: true, ElapsedMs: 1000}, run.Steps[0])
}

func TestWebAPI_Modules(t *testing.T) {
	ts, _ := setupAPI(t)
	resp, err := http.Get(ts.URL + "/api/v1/modules")
	require.NoError(t, err)
	defer resp.Body.Close()

	var modules []api.Module
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&modules))
	ids := make([]string, 0, len(modules))
	for _, m := range modules {
		ids = append(ids, m.ID)
	}
	assert.Equal(t, analytics.DefaultOrder, ids)
}

func TestWebAPI_StartRunDisabled(t *testing.T) {
	ts, _ := setupAPI(t)
	resp, err := http.Post(ts.URL+"/api/v1/runs", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestWebAPI_Metrics(t *testing.T) {
	ts, _ := setupAPI(t)
	resp, err := http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "go_goroutines")
}
