package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairline-labs/fairline/internal/loop"
	"github.com/fairline-labs/fairline/internal/model"
	"github.com/fairline-labs/fairline/internal/orchestrate"
	"github.com/fairline-labs/fairline/internal/resolve"
	"github.com/fairline-labs/fairline/internal/store"
	"github.com/fairline-labs/fairline/internal/strategy"
	"github.com/fairline-labs/fairline/internal/violation"
)

func newTestEnv(t *testing.T) *loopEnv {
	t.Helper()

	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))

	violations := violation.NewEngine()
	strategies := strategy.NewEngine(store.OutcomeHistory{Store: st})
	registry := orchestrate.NewRegistry()
	bus := loop.NewBus()

	executor := orchestrate.NewLocalExecutor(registry, 0, nil)
	coordinator := loop.NewCoordinator(st, violations, strategies, executor, bus, 2)
	executor.SetCompletion(coordinator.OnPlanCompleted)
	t.Cleanup(coordinator.Wait)

	return &loopEnv{
		Store:       st,
		Resolver:    resolve.NewResolver(nil),
		Violations:  violations,
		Strategies:  strategies,
		Registry:    registry,
		Executor:    executor,
		Bus:         bus,
		Coordinator: coordinator,
	}
}

func TestServeHealth(t *testing.T) {
	router := newRouter(newTestEnv(t))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestServeUnknownSubject(t *testing.T) {
	router := newRouter(newTestEnv(t))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/subjects/ghost", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServeGetProfile(t *testing.T) {
	env := newTestEnv(t)
	profile := &model.UserCreditProfile{
		SubjectID:  "subj-1",
		Tradelines: []model.Tradeline{{ID: "tl-1", SubjectID: "subj-1"}},
		UpdatedAt:  time.Now().UTC(),
	}
	profile.RefreshSummary()
	require.NoError(t, env.Store.SaveProfile(context.Background(), profile))

	router := newRouter(env)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/subjects/subj-1", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var got model.UserCreditProfile
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "subj-1", got.SubjectID)
	assert.Len(t, got.Tradelines, 1)
}

func TestServeProcessAcceptsAndRuns(t *testing.T) {
	env := newTestEnv(t)
	profile := &model.UserCreditProfile{
		SubjectID: "subj-1",
		Tradelines: []model.Tradeline{{
			ID:        "tl-1",
			SubjectID: "subj-1",
			Creditor:  model.NewField("Capital One", "Capital One", 95, "r"),
			Balance:   model.NewField(0.0, "$0", 100, "r"),
			PastDue:   model.NewField(500.0, "$500", 100, "r"),
		}},
		UpdatedAt: time.Now().UTC(),
	}
	profile.RefreshSummary()
	require.NoError(t, env.Store.SaveProfile(context.Background(), profile))

	router := newRouter(env)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/subjects/subj-1/process", nil))

	require.Equal(t, http.StatusAccepted, rec.Code)
	env.Coordinator.Wait()

	stored, err := env.Store.LoadProfile(context.Background(), "subj-1")
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.NotEmpty(t, stored.ActiveViolations, "past-due balance on zero-balance account is flagged")
}

func TestServeRecordOutcomeValidation(t *testing.T) {
	router := newRouter(newTestEnv(t))

	body := bytes.NewBufferString(`{"entity_id":"","rule_id":"","outcome":""}`)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/subjects/subj-1/outcomes", body))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServeMetrics(t *testing.T) {
	router := newRouter(newTestEnv(t))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var snap map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	assert.EqualValues(t, 0, snap["subjects"])
}

func TestServeEventStream(t *testing.T) {
	env := newTestEnv(t)
	srv := httptest.NewServer(newRouter(env))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/subjects/subj-1/events")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	// Headers arrive only after the subscription is registered, so this
	// publish cannot be lost.
	env.Bus.Publish(model.LifecycleEvent{SubjectID: "subj-1", Phase: model.PhaseQueued, Message: "cycle queued"})

	reader := bufio.NewReader(resp.Body)
	var event, data string
	for event == "" || data == "" {
		line, err := reader.ReadString('\n')
		require.NoError(t, err)
		line = strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(line, "event: "):
			event = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			data = strings.TrimPrefix(line, "data: ")
		}
	}

	assert.Equal(t, "queued", event)
	assert.Contains(t, data, `"phase":"queued"`)
}
