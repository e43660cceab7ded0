package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/simonbystrom/teamboard/internal/hub"
	"github.com/simonbystrom/teamboard/internal/team"
)

type MockSource struct {
	mock.Mock
}

func (m *MockSource) Teams() []team.Summary {
	return m.Called().Get(0).([]team.Summary)
}

func (m *MockSource) Team(name string) (*team.TeamConfig, bool) {
	args := m.Called(name)
	if args.Get(0) == nil {
		return nil, args.Bool(1)
	}
	return args.Get(0).(*team.TeamConfig), args.Bool(1)
}

func (m *MockSource) Inboxes(name string) map[string][]team.InboxMessage {
	return m.Called(name).Get(0).(map[string][]team.InboxMessage)
}

func (m *MockSource) Tasks(name string) []team.Task {
	return m.Called(name).Get(0).([]team.Task)
}

func (m *MockSource) Overview() []team.OverviewEntry {
	return m.Called().Get(0).([]team.OverviewEntry)
}

func newTestServer(t *testing.T, source Source, staticDir string) (http.Handler, *hub.Registry) {
	t.Helper()
	registry := hub.NewRegistry()
	srv := NewServer(NewHandler(source), registry, ":0", staticDir)
	return srv.Handler(), registry
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestListTeams(t *testing.T) {
	source := new(MockSource)
	source.On("Teams").Return([]team.Summary{
		{Name: "red", Members: []team.MemberSummary{}, Activity: team.Activity{Status: team.StatusActive}},
	}).Once()
	h, _ := newTestServer(t, source, "")

	w := get(t, h, "/api/teams")

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))

	var body []map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body, 1)
	assert.Equal(t, "red", body[0]["name"])
	assert.Equal(t, "active", body[0]["status"])
	source.AssertExpectations(t)
}

func TestGetTeam(t *testing.T) {
	t.Run("found returns raw config", func(t *testing.T) {
		raw := `{"description":"red","members":[],"leadAgentId":"abc"}`
		source := new(MockSource)
		source.On("Team", "red").Return(&team.TeamConfig{Description: "red", Raw: json.RawMessage(raw)}, true).Once()
		h, _ := newTestServer(t, source, "")

		w := get(t, h, "/api/teams/red")

		require.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, raw, w.Body.String())
		source.AssertExpectations(t)
	})

	t.Run("missing returns 404", func(t *testing.T) {
		source := new(MockSource)
		source.On("Team", "ghost").Return(nil, false).Once()
		h, _ := newTestServer(t, source, "")

		w := get(t, h, "/api/teams/ghost")

		require.Equal(t, http.StatusNotFound, w.Code)
		assert.JSONEq(t, `{"error":"Team not found"}`, w.Body.String())
		source.AssertExpectations(t)
	})
}

func TestGetInboxes(t *testing.T) {
	source := new(MockSource)
	source.On("Inboxes", "red").Return(map[string][]team.InboxMessage{
		"lead": {{"text": "hi", "read": false}},
	}).Once()
	h, _ := newTestServer(t, source, "")

	w := get(t, h, "/api/teams/red/inboxes")

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"lead":[{"text":"hi","read":false}]}`, w.Body.String())
	source.AssertExpectations(t)
}

func TestGetTasks(t *testing.T) {
	source := new(MockSource)
	source.On("Tasks", "red").Return([]team.Task{
		{"id": "1", "status": "pending"},
		{"id": "3", "status": "completed"},
	}).Once()
	h, _ := newTestServer(t, source, "")

	w := get(t, h, "/api/tasks/red")

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[{"id":"1","status":"pending"},{"id":"3","status":"completed"}]`, w.Body.String())
	source.AssertExpectations(t)
}

func TestGetTasks_EmptyIsArray(t *testing.T) {
	source := new(MockSource)
	source.On("Tasks", "ghost").Return([]team.Task{}).Once()
	h, _ := newTestServer(t, source, "")

	w := get(t, h, "/api/tasks/ghost")

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())
}

func TestGetOverview(t *testing.T) {
	source := new(MockSource)
	source.On("Overview").Return([]team.OverviewEntry{
		{Name: "red", TaskCount: 2, CompletedTasks: 1, PendingTasks: 1, TotalMessages: 3, UnreadMessages: 2},
	}).Once()
	h, _ := newTestServer(t, source, "")

	w := get(t, h, "/api/overview")

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[{"name":"red","description":"","memberCount":0,"taskCount":2,"completedTasks":1,
		"inProgressTasks":0,"pendingTasks":1,"totalMessages":3,"unreadMessages":2}]`, w.Body.String())
}

func TestCORSPreflight(t *testing.T) {
	h, _ := newTestServer(t, new(MockSource), "")
	req := httptest.NewRequest(http.MethodOptions, "/api/teams", nil)
	w := httptest.NewRecorder()

	h.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestStaticDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.html"), []byte("<h1>teams</h1>"), 0o644))

	h, _ := newTestServer(t, new(MockSource), dir)
	w := get(t, h, "/")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "<h1>teams</h1>")

	h, _ = newTestServer(t, new(MockSource), "")
	w = get(t, h, "/")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestWebSocketOnRoot(t *testing.T) {
	h, registry := newTestServer(t, new(MockSource), "")
	srv := httptest.NewServer(h)
	defer srv.Close()

	for _, path := range []string{"/", "/ws"} {
		url := "ws" + strings.TrimPrefix(srv.URL, "http") + path
		conn, _, err := websocket.DefaultDialer.Dial(url, nil)
		require.NoError(t, err, path)

		require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
		_, data, err := conn.ReadMessage()
		require.NoError(t, err)
		assert.Contains(t, string(data), `"type":"connected"`)
		conn.Close()
	}
	assert.Eventually(t, func() bool { return registry.Len() == 0 }, 3*time.Second, 10*time.Millisecond)
}

func TestNewServer_ReadHeaderTimeout(t *testing.T) {
	srv := NewServer(NewHandler(new(MockSource)), hub.NewRegistry(), ":0", "")
	assert.Equal(t, readHeaderTimeout, srv.server.ReadHeaderTimeout)
}
