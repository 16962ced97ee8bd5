package api

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"peakmotif/adapters/db"
	"peakmotif/domain/core"
	"peakmotif/domain/enrichment"
	"peakmotif/internal"
	"peakmotif/internal/migration"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	conn, err := sqlx.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	conn.SetMaxOpenConns(1)
	t.Cleanup(func() { conn.Close() })
	require.NoError(t, migration.NewRunner().Run(context.Background(), conn))

	repo := db.NewResultRepository(conn)
	run := &enrichment.Run{
		ID: "run-1", CreatedAt: core.NewTimestamp(time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)),
		Status: enrichment.RunStatusComplete, TotalPeaks: 100, MotifsTested: 3, Significant: 1,
	}
	results := []enrichment.MotifResult{
		{MotifID: "MA0001.1", Coef: 2.1, PAdj: 0.001, PAdjSig: 1, NumPeaks: 50},
		{MotifID: "MA0002.1", Coef: 0.4, PAdj: 0.3, NumPeaks: 20},
	}
	failures := []enrichment.MotifFailure{{MotifID: "MA0003.1", Index: 2, Reason: core.ReasonDegenerateLabel, Detail: "all"}}
	require.NoError(t, repo.SaveRun(context.Background(), run, results, failures))

	srv := httptest.NewServer(NewRouter(repo, internal.NewLoggerTo(internal.LogLevelError, io.Discard, false)))
	t.Cleanup(srv.Close)
	return srv
}

func get(t *testing.T, srv *httptest.Server, path string) (int, string) {
	t.Helper()
	resp, err := http.Get(srv.URL + path)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body)
}

func TestListRuns(t *testing.T) {
	srv := newTestServer(t)
	status, body := get(t, srv, "/api/runs")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, int64(1), gjson.Get(body, "count").Int())
	assert.Equal(t, "run-1", gjson.Get(body, "runs.0.id").String())

	status, body = get(t, srv, "/api/runs?limit=abc")
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "VALIDATION_ERROR", gjson.Get(body, "code").String())

	status, body = get(t, srv, "/api/runs?limit=-1")
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, gjson.Get(body, "error").String(), "limit")
}

func TestGetRun(t *testing.T) {
	srv := newTestServer(t)
	status, body := get(t, srv, "/api/runs/run-1")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "complete", gjson.Get(body, "status").String())
	assert.Equal(t, int64(3), gjson.Get(body, "motifs_tested").Int())

	status, body = get(t, srv, "/api/runs/missing")
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "NOT_FOUND", gjson.Get(body, "code").String())
}

func TestGetResults(t *testing.T) {
	srv := newTestServer(t)
	status, body := get(t, srv, "/api/runs/run-1/results")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, int64(2), gjson.Get(body, "count").Int())
	assert.Equal(t, "MA0001.1", gjson.Get(body, "results.0.motif_id").String())

	_, body = get(t, srv, "/api/runs/run-1/results?significant=true")
	assert.Equal(t, int64(1), gjson.Get(body, "count").Int())

	_, body = get(t, srv, "/api/runs/run-1/results?limit=1")
	assert.Equal(t, int64(1), gjson.Get(body, "count").Int())

	status, _ = get(t, srv, "/api/runs/missing/results")
	assert.Equal(t, http.StatusNotFound, status)
}

func TestGetFailures(t *testing.T) {
	srv := newTestServer(t)
	status, body := get(t, srv, "/api/runs/run-1/failures")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "degenerate_label", gjson.Get(body, "failures.0.reason").String())
}
