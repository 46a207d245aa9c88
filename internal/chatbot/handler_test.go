package chatbot

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRouter(f *fixture) http.Handler {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := NewHandler(f.svc, f.appointments, f.history, log)
	r := chi.NewRouter()
	RegisterRoutes(r, h)
	return r
}

func postJSON(t *testing.T, router http.Handler, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func get(t *testing.T, router http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestMessageEndpoint(t *testing.T) {
	f := newFixture()
	router := newTestRouter(f)

	rec := postJSON(t, router, "/message", map[string]string{"user_id": "u1", "message": "iniciar"})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp messageResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "u1", resp.UserID)
	assert.Equal(t, StateAwaitingName, resp.State)
	assert.Contains(t, resp.Reply, "nome?")
}

func TestMessageEndpointEmptyInput(t *testing.T) {
	f := newFixture()
	router := newTestRouter(f)

	rec := postJSON(t, router, "/message", map[string]string{"user_id": "u1", "message": "   "})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var resp errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "EMPTY_INPUT", resp.Kind)
}

func TestMessageEndpointDefaultsUserID(t *testing.T) {
	f := newFixture()
	router := newTestRouter(f)

	rec := postJSON(t, router, "/message", map[string]string{"message": "oi"})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp messageResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "default", resp.UserID)
}

func TestConversationStatusEndpoint(t *testing.T) {
	f := newFixture()
	router := newTestRouter(f)

	f.send(t, "u1", "iniciar")
	f.send(t, "u1", "Maria")

	rec := get(t, router, "/conversations/u1")
	require.Equal(t, http.StatusOK, rec.Code)

	var conv Conversation
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &conv))
	assert.Equal(t, StateAwaitingDate, conv.State)
	assert.Equal(t, "Maria", conv.Collected.Name)
}

func TestResetEndpointIsIdempotent(t *testing.T) {
	f := newFixture()
	router := newTestRouter(f)

	rec := postJSON(t, router, "/conversations/ghost/reset", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	f.send(t, "u1", "iniciar")
	rec = postJSON(t, router, "/conversations/u1/reset", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	conv, err := f.svc.GetStatus(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, StateInitial, conv.State)
}

func TestAppointmentsAndHistoryEndpoints(t *testing.T) {
	f := newFixture()
	router := newTestRouter(f)
	finalize(t, f, "u1")

	rec := get(t, router, "/appointments")
	require.Equal(t, http.StatusOK, rec.Code)
	var appointments []Appointment
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &appointments))
	require.Len(t, appointments, 1)
	assert.Equal(t, "Maria", appointments[0].Name)

	rec = get(t, router, "/appointments?user_id=nobody")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = get(t, router, "/conversations/u1/history")
	require.Equal(t, http.StatusOK, rec.Code)
	var entries []HistoryEntry
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &entries))
	assert.Len(t, entries, 4)
}

func TestStatsEndpoint(t *testing.T) {
	f := newFixture()
	router := newTestRouter(f)
	finalize(t, f, "u1")

	rec := get(t, router, "/stats")
	require.Equal(t, http.StatusOK, rec.Code)

	var stats Stats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, 1, stats.TotalAppointments)
	assert.Equal(t, 1, stats.ByPeriod["tarde"])
	assert.Equal(t, 1, stats.DistinctUsers)
}

func TestHealthEndpoint(t *testing.T) {
	f := newFixture()
	router := newTestRouter(f)

	rec := get(t, router, "/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "ok")
}
