package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	prewarmcache "github.com/wolfeidau/prewarm-cache"
	"github.com/wolfeidau/prewarm-cache/engine"
)

func newTestServer(t *testing.T, cfg engine.Config) (*Server, *engine.Engine) {
	t.Helper()
	eng := engine.New(cfg)
	srv := New(Config{Engine: eng})
	return srv, eng
}

func doRequest(t *testing.T, srv *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v))
}

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t, engine.Config{})

	rec := doRequest(t, srv, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestRegisterAndGet(t *testing.T) {
	srv, eng := newTestServer(t, engine.Config{Strategy: prewarmcache.StrategyManual})

	rec := doRequest(t, srv, http.MethodPost, "/animations",
		`[{"id":"idle-1","type":"idle","priority":"high"},{"id":"speak-1","type":"speak"}]`)
	require.Equal(t, http.StatusAccepted, rec.Code)

	var created map[string]int
	decodeBody(t, rec, &created)
	require.Equal(t, 2, created["created"])

	rec = doRequest(t, srv, http.MethodGet, "/animations/idle-1", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var e prewarmcache.Entry
	decodeBody(t, rec, &e)
	require.Equal(t, "idle-1", e.ID)
	require.Equal(t, prewarmcache.StatusCold, e.Status)
	require.Equal(t, prewarmcache.PriorityHigh, e.Priority)

	rec = doRequest(t, srv, http.MethodGet, "/animations/nope", "")
	require.Equal(t, http.StatusNotFound, rec.Code)

	require.Equal(t, 2, eng.Stats().Entries)
}

func TestRegisterRejectsBadInput(t *testing.T) {
	srv, _ := newTestServer(t, engine.Config{})

	rec := doRequest(t, srv, http.MethodPost, "/animations", `not json`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(t, srv, http.MethodPost, "/animations", `[{"type":"idle"}]`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestWarmAndAccess(t *testing.T) {
	srv, _ := newTestServer(t, engine.Config{Strategy: prewarmcache.StrategyManual})

	doRequest(t, srv, http.MethodPost, "/animations", `[{"id":"a","type":"idle"}]`)

	rec := doRequest(t, srv, http.MethodPost, "/animations/a/warm", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var e prewarmcache.Entry
	decodeBody(t, rec, &e)
	require.Equal(t, prewarmcache.StatusWarm, e.Status)

	rec = doRequest(t, srv, http.MethodPost, "/animations/a/access", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var access struct {
		Hit    bool                `json:"hit"`
		Status prewarmcache.Status `json:"status"`
	}
	decodeBody(t, rec, &access)
	require.True(t, access.Hit)
	require.Equal(t, prewarmcache.StatusWarm, access.Status)

	rec = doRequest(t, srv, http.MethodPost, "/animations/nope/access", "")
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = doRequest(t, srv, http.MethodPost, "/animations/nope/warm", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMarkHotAndCold(t *testing.T) {
	srv, _ := newTestServer(t, engine.Config{Strategy: prewarmcache.StrategyManual})

	doRequest(t, srv, http.MethodPost, "/animations", `[{"id":"a","type":"idle"}]`)

	// Cold entries cannot be promoted.
	rec := doRequest(t, srv, http.MethodPost, "/animations/a/hot", "")
	var promoted map[string]bool
	decodeBody(t, rec, &promoted)
	require.False(t, promoted["promoted"])

	doRequest(t, srv, http.MethodPost, "/animations/a/warm", "")
	rec = doRequest(t, srv, http.MethodPost, "/animations/a/hot", "")
	decodeBody(t, rec, &promoted)
	require.True(t, promoted["promoted"])

	rec = doRequest(t, srv, http.MethodPost, "/animations/a/cold", "")
	var reset map[string]bool
	decodeBody(t, rec, &reset)
	require.True(t, reset["reset"])

	rec = doRequest(t, srv, http.MethodGet, "/animations/a", "")
	var e prewarmcache.Entry
	decodeBody(t, rec, &e)
	require.Equal(t, prewarmcache.StatusCold, e.Status)
}

func TestEvictEndpoints(t *testing.T) {
	srv, eng := newTestServer(t, engine.Config{Strategy: prewarmcache.StrategyManual})

	doRequest(t, srv, http.MethodPost, "/animations",
		`[{"id":"idle-1","type":"idle"},{"id":"idle-2","type":"idle"},{"id":"speak-1","type":"speak"}]`)

	rec := doRequest(t, srv, http.MethodDelete, "/animations/idle-1", "")
	require.Equal(t, http.StatusNoContent, rec.Code)
	rec = doRequest(t, srv, http.MethodDelete, "/animations/idle-1", "")
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = doRequest(t, srv, http.MethodDelete, "/animations?type=idle", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var evicted map[string]int
	decodeBody(t, rec, &evicted)
	require.Equal(t, 1, evicted["evicted"])

	rec = doRequest(t, srv, http.MethodDelete, "/animations", "")
	decodeBody(t, rec, &evicted)
	require.Equal(t, 1, evicted["evicted"])

	require.Equal(t, 0, eng.Stats().Entries)
}

func TestPredictEndpoint(t *testing.T) {
	srv, eng := newTestServer(t, engine.Config{Strategy: prewarmcache.StrategyManual})

	doRequest(t, srv, http.MethodPost, "/animations",
		`[{"id":"idle-1","type":"idle"},{"id":"speak-1","type":"speak"},{"id":"listen-1","type":"listen"}]`)

	rec := doRequest(t, srv, http.MethodPost, "/predict",
		`{"recent_animations":["idle-1"]}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var predicted map[string][]string
	decodeBody(t, rec, &predicted)
	require.Equal(t, []string{"speak-1", "listen-1"}, predicted["predicted"])

	// Prediction alone warms nothing.
	e, _ := eng.Get("speak-1")
	require.Equal(t, prewarmcache.StatusCold, e.Status)

	rec = doRequest(t, srv, http.MethodPost, "/predict?warm=true",
		`{"recent_animations":["idle-1"]}`)
	require.Equal(t, http.StatusOK, rec.Code)
	eng.Flush()

	e, _ = eng.Get("speak-1")
	require.Equal(t, prewarmcache.StatusWarm, e.Status)

	// Empty context predicts an empty list, not an error.
	rec = doRequest(t, srv, http.MethodPost, "/predict", `{}`)
	decodeBody(t, rec, &predicted)
	require.Empty(t, predicted["predicted"])
}

func TestWarmNextEndpoint(t *testing.T) {
	srv, eng := newTestServer(t, engine.Config{Strategy: prewarmcache.StrategyManual})

	doRequest(t, srv, http.MethodPost, "/animations",
		`[{"id":"low","type":"idle","priority":"low"},{"id":"crit","type":"speak","priority":"critical"}]`)

	rec := doRequest(t, srv, http.MethodPost, "/warm-next", "")
	require.Equal(t, http.StatusNoContent, rec.Code)
	eng.Flush()

	e, _ := eng.Get("crit")
	require.Equal(t, prewarmcache.StatusWarm, e.Status)
	e, _ = eng.Get("low")
	require.Equal(t, prewarmcache.StatusCold, e.Status)
}

func TestStatsAndReset(t *testing.T) {
	srv, eng := newTestServer(t, engine.Config{Strategy: prewarmcache.StrategyManual})

	doRequest(t, srv, http.MethodPost, "/animations", `[{"id":"a","type":"idle"}]`)
	doRequest(t, srv, http.MethodPost, "/animations/a/warm", "")
	doRequest(t, srv, http.MethodPost, "/animations/a/access", "")

	rec := doRequest(t, srv, http.MethodGet, "/stats", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var stats engine.Stats
	decodeBody(t, rec, &stats)
	require.Equal(t, 1, stats.Entries)
	require.Equal(t, int64(1), stats.CacheHits)
	require.Equal(t, float64(1), stats.HitRate)
	require.Greater(t, stats.UsageMB, 0.0)

	rec = doRequest(t, srv, http.MethodPost, "/reset", "")
	require.Equal(t, http.StatusNoContent, rec.Code)

	require.Equal(t, 0, eng.Stats().Entries)
	require.Equal(t, int64(0), eng.Stats().CacheHits)
}

func TestListEndpoint(t *testing.T) {
	srv, _ := newTestServer(t, engine.Config{Strategy: prewarmcache.StrategyManual})

	doRequest(t, srv, http.MethodPost, "/animations",
		`[{"id":"a","type":"idle"},{"id":"b","type":"speak"}]`)

	rec := doRequest(t, srv, http.MethodGet, "/animations", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var list struct {
		Pending []string `json:"pending_warms"`
		Count   int      `json:"count"`
	}
	decodeBody(t, rec, &list)
	require.Equal(t, 2, list.Count)
	require.Empty(t, list.Pending)
}
