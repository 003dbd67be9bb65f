package mboard

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/michae-lzhou/Task-Board/internal/events"
	"github.com/michae-lzhou/Task-Board/internal/models"
	"github.com/michae-lzhou/Task-Board/internal/store"
	"github.com/michae-lzhou/Task-Board/internal/store/memory"
	"github.com/michae-lzhou/Task-Board/internal/utils"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func testConfig() Config {
	return Config{
		Store:          storeMemory,
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Origin", "Content-Type"},
		WSSendBuffer:   16,
	}
}

// recorder keeps every dispatched event.
type recorder struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *recorder) Dispatch(_ context.Context, evs ...events.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, evs...)
}

func (r *recorder) Events() []events.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]events.Event(nil), r.events...)
}

func (r *recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}

func (r *recorder) Kinds() []events.Kind {
	return utils.Map(r.Events(), func(e events.Event) events.Kind { return e.Type })
}

type harness struct {
	t        *testing.T
	server   *Server
	recorder *recorder
}

func newHarness(t *testing.T) *harness {
	return newHarnessWithStore(t, memory.New())
}

func newHarnessWithStore(t *testing.T, st store.Store) *harness {
	t.Helper()
	rec := &recorder{}
	return &harness{
		t:        t,
		server:   NewServer(testConfig(), st, zap.NewNop(), rec),
		recorder: rec,
	}
}

func (h *harness) call(method, path string, body any) *httptest.ResponseRecorder {
	h.t.Helper()
	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		require.NoError(h.t, json.NewEncoder(&buf).Encode(b))
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.server.Handler().ServeHTTP(w, req)
	return w
}

// ok performs the call, asserts 200 and decodes the body into out.
func (h *harness) ok(method, path string, body, out any) {
	h.t.Helper()
	w := h.call(method, path, body)
	require.Equal(h.t, http.StatusOK, w.Code, w.Body.String())
	if out != nil {
		require.NoError(h.t, json.Unmarshal(w.Body.Bytes(), out))
	}
}

func (h *harness) fails(method, path string, body any, status int, msg string) {
	h.t.Helper()
	w := h.call(method, path, body)
	require.Equal(h.t, status, w.Code, w.Body.String())
	assert.JSONEq(h.t, mustJSON(h.t, gin.H{"error": msg}), w.Body.String())
}

func mustJSON(t *testing.T, v any) string {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return string(b)
}

func (h *harness) project(name string) models.ProjectDetail {
	var p models.ProjectDetail
	h.ok(http.MethodPost, "/projects", gin.H{"name": name}, &p)
	return p
}

func (h *harness) user(name, email string) models.User {
	var u models.User
	h.ok(http.MethodPost, "/users", gin.H{"name": name, "email": email}, &u)
	return u
}

func TestRootAndHealth(t *testing.T) {
	h := newHarness(t)

	w := h.call(http.MethodGet, "/", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"message":"Hello from backend"}`, w.Body.String())

	w = h.call(http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"alive"}`, w.Body.String())
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestProjects(t *testing.T) {
	h := newHarness(t)

	alpha := h.project("Alpha")
	assert.Equal(t, "Alpha", alpha.Name)
	assert.NotNil(t, alpha.Members)

	h.fails(http.MethodPost, "/projects", gin.H{"name": "Alpha"}, http.StatusBadRequest, "Duplicate project name [Alpha]!")
	h.fails(http.MethodGet, "/projects/999", nil, http.StatusNotFound, "Project 999 not found.")

	var renamed models.ProjectDetail
	h.ok(http.MethodPut, fmt.Sprintf("/projects/%d", alpha.ID), gin.H{"name": "Beta"}, &renamed)
	assert.Equal(t, "Beta", renamed.Name)

	var all []models.ProjectDetail
	h.ok(http.MethodGet, "/projects", nil, &all)
	require.Len(t, all, 1)
	assert.Equal(t, "Beta", all[0].Name)

	w := h.call(http.MethodDelete, fmt.Sprintf("/projects/%d", alpha.ID), nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"message":"Project [Beta] deleted"}`, w.Body.String())

	assert.Equal(t,
		[]events.Kind{events.ProjectCreated, events.ProjectUpdated, events.ProjectDeleted},
		h.recorder.Kinds(),
	)
}

func TestInvalidInput(t *testing.T) {
	h := newHarness(t)
	p := h.project("P")

	cases := []struct {
		name   string
		method string
		path   string
		body   any
	}{
		{"non numeric id", http.MethodGet, "/projects/abc", nil},
		{"zero id", http.MethodGet, "/tasks/0", nil},
		{"malformed json", http.MethodPost, "/projects", `{"name":`},
		{"missing name", http.MethodPost, "/projects", gin.H{}},
		{"bad email", http.MethodPost, "/users", gin.H{"name": "A", "email": "not-an-email"}},
		{"unknown status", http.MethodPost, "/tasks", gin.H{"title": "T", "project_id": p.ID, "status": "in-progress"}},
		{"missing project id", http.MethodPost, "/tasks", gin.H{"title": "T"}},
		{"bad member id", http.MethodDelete, fmt.Sprintf("/projects/%d/members/x", p.ID), nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := h.call(tc.method, tc.path, tc.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.JSONEq(t, `{"error":"invalid input"}`, w.Body.String())
		})
	}
}

func TestUsers(t *testing.T) {
	h := newHarness(t)

	u := h.user("Bob", "Bob@X.com")
	assert.Equal(t, "bob@x.com", u.Email)

	h.fails(http.MethodPost, "/users", gin.H{"name": "Bobby", "email": "BOB@x.com"},
		http.StatusBadRequest, "User with email bob@x.com already exists.")

	var got models.User
	h.ok(http.MethodGet, fmt.Sprintf("/users/%d", u.ID), nil, &got)
	assert.Equal(t, u, got)

	var all []models.User
	h.ok(http.MethodGet, "/users", nil, &all)
	assert.Len(t, all, 1)

	w := h.call(http.MethodDelete, fmt.Sprintf("/users/%d", u.ID), nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"message":"User [Bob] deleted"}`, w.Body.String())

	h.fails(http.MethodGet, fmt.Sprintf("/users/%d", u.ID), nil, http.StatusNotFound, fmt.Sprintf("User %d not found.", u.ID))
}

func TestMembershipScenario(t *testing.T) {
	h := newHarness(t)
	alpha := h.project("Alpha")
	a := h.user("A", "a@x.com")

	var added models.User
	h.ok(http.MethodPost, fmt.Sprintf("/projects/%d/members", alpha.ID), gin.H{"user_id": a.ID}, &added)
	assert.Equal(t, a, added)

	h.fails(http.MethodPost, fmt.Sprintf("/projects/%d/members", alpha.ID), gin.H{"user_id": a.ID},
		http.StatusBadRequest, "User [A] is already a member of project [Alpha].")

	var task models.TaskDetail
	h.ok(http.MethodPost, "/tasks", gin.H{"title": "T1", "project_id": alpha.ID, "assigned_to": a.ID}, &task)
	require.NotNil(t, task.AssignedUser)
	assert.Equal(t, "A", task.AssignedUser.Name)

	h.recorder.Reset()
	h.ok(http.MethodDelete, fmt.Sprintf("/projects/%d/members/%d", alpha.ID, a.ID), nil, nil)
	assert.Equal(t, []events.Kind{events.MemberRemoved, events.TaskUpdated}, h.recorder.Kinds())

	var after models.TaskDetail
	h.ok(http.MethodGet, fmt.Sprintf("/tasks/%d", task.ID), nil, &after)
	assert.Nil(t, after.AssignedTo)
	assert.Nil(t, after.AssignedUser)

	h.fails(http.MethodDelete, fmt.Sprintf("/projects/%d/members/%d", alpha.ID, a.ID), nil,
		http.StatusBadRequest, "User [A] is NOT a member of project [Alpha].")
}

func TestMembershipByIdentity(t *testing.T) {
	h := newHarness(t)
	p := h.project("P")

	var u models.User
	h.ok(http.MethodPost, fmt.Sprintf("/projects/%d/add-member", p.ID), gin.H{"name": "Cy", "email": "cy@x.com"}, &u)
	assert.Equal(t, []events.Kind{events.ProjectCreated, events.UserCreated, events.MemberAdded}, h.recorder.Kinds())

	var members []models.User
	h.ok(http.MethodGet, fmt.Sprintf("/projects/%d/users", p.ID), nil, &members)
	assert.Equal(t, []models.User{u}, members)

	var detail models.ProjectDetail
	h.ok(http.MethodGet, fmt.Sprintf("/projects/%d", p.ID), nil, &detail)
	assert.Equal(t, []models.User{u}, detail.Members)

	h.fails(http.MethodPost, fmt.Sprintf("/projects/%d/remove-member", p.ID), gin.H{"name": "Ghost", "email": "ghost@x.com"},
		http.StatusBadRequest, "User [Ghost] is NOT a member of project [P].")

	h.ok(http.MethodPost, fmt.Sprintf("/projects/%d/remove-member", p.ID), gin.H{"name": "Cy", "email": "CY@x.com"}, nil)
	h.ok(http.MethodGet, fmt.Sprintf("/projects/%d/users", p.ID), nil, &members)
	assert.Empty(t, members)

	h.fails(http.MethodPost, "/projects/999/add-member", gin.H{"name": "Dee", "email": "dee@x.com"},
		http.StatusNotFound, "Project 999 not found.")
}

func TestTasks(t *testing.T) {
	h := newHarness(t)
	p := h.project("P")
	outsider := h.user("Out", "out@x.com")

	var task models.TaskDetail
	h.ok(http.MethodPost, "/tasks", gin.H{"title": "T", "description": "d", "project_id": p.ID}, &task)
	assert.Equal(t, models.StatusTodo, task.Status)
	require.NotNil(t, task.Project)
	assert.Equal(t, "P", task.Project.Name)

	h.fails(http.MethodPost, "/tasks", gin.H{"title": "T", "project_id": p.ID},
		http.StatusBadRequest, "Duplicate task name [T] in project [P]!")
	h.fails(http.MethodPost, "/tasks", gin.H{"title": "X", "project_id": 999},
		http.StatusNotFound, "Project 999 not found.")
	h.fails(http.MethodPost, "/tasks", gin.H{"title": "X", "project_id": p.ID, "assigned_to": outsider.ID},
		http.StatusBadRequest, "User [Out] is not a member of project [P]!")

	var updated models.TaskDetail
	h.ok(http.MethodPut, fmt.Sprintf("/tasks/%d", task.ID),
		gin.H{"title": "T", "status": "in_progress", "project_id": p.ID}, &updated)
	assert.Equal(t, models.StatusInProgress, updated.Status)
	assert.Nil(t, updated.Description)

	var list []models.TaskDetail
	h.ok(http.MethodGet, fmt.Sprintf("/projects/%d/tasks", p.ID), nil, &list)
	require.Len(t, list, 1)
	assert.Equal(t, models.StatusInProgress, list[0].Status)

	w := h.call(http.MethodDelete, fmt.Sprintf("/tasks/%d", task.ID), nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"message":"Task [T] deleted"}`, w.Body.String())

	h.fails(http.MethodGet, fmt.Sprintf("/tasks/%d", task.ID), nil, http.StatusNotFound, fmt.Sprintf("Task %d not found.", task.ID))
}

func TestTaskCannotMoveToMissingProject(t *testing.T) {
	h := newHarness(t)
	p := h.project("P")

	var task models.TaskDetail
	h.ok(http.MethodPost, "/tasks", gin.H{"title": "T", "project_id": p.ID}, &task)

	h.fails(http.MethodPut, fmt.Sprintf("/tasks/%d", task.ID), gin.H{"title": "T", "project_id": 9999},
		http.StatusBadRequest, "Not allowed to move task [T] to a new project!")
}

func TestDeleteUserCascade(t *testing.T) {
	h := newHarness(t)
	p := h.project("P")
	u := h.user("U", "u@x.com")
	h.ok(http.MethodPost, fmt.Sprintf("/projects/%d/members", p.ID), gin.H{"user_id": u.ID}, nil)

	var task models.TaskDetail
	h.ok(http.MethodPost, "/tasks", gin.H{"title": "T", "project_id": p.ID, "assigned_to": u.ID}, &task)

	h.recorder.Reset()
	h.ok(http.MethodDelete, fmt.Sprintf("/users/%d", u.ID), nil, nil)
	assert.Equal(t, []events.Kind{events.TaskUpdated, events.UserDeleted}, h.recorder.Kinds())

	var after models.TaskDetail
	h.ok(http.MethodGet, fmt.Sprintf("/tasks/%d", task.ID), nil, &after)
	assert.Nil(t, after.AssignedTo)

	var detail models.ProjectDetail
	h.ok(http.MethodGet, fmt.Sprintf("/projects/%d", p.ID), nil, &detail)
	assert.Empty(t, detail.Members)
}

func TestFailedCallsDispatchNothing(t *testing.T) {
	h := newHarness(t)
	h.project("Alpha")
	h.recorder.Reset()

	h.call(http.MethodPost, "/projects", gin.H{"name": "Alpha"})
	h.call(http.MethodDelete, "/projects/999", nil)
	assert.Empty(t, h.recorder.Events())
}

type failingStore struct{}

func (failingStore) Do(context.Context, func(context.Context, store.Tx) error) error {
	return errors.New("connection reset by peer")
}

func (failingStore) Close() {}

func TestUnexpectedErrorsAreOpaque(t *testing.T) {
	h := newHarnessWithStore(t, failingStore{})

	w := h.call(http.MethodGet, "/projects", nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"error":"an unexpected error occurred"}`, w.Body.String())
	assert.NotContains(t, w.Body.String(), "connection reset")
}

func TestWebSocketReceivesEvents(t *testing.T) {
	h := newHarness(t)
	srv := httptest.NewServer(h.server.Handler())
	t.Cleanup(func() {
		h.server.hub.Close()
		srv.Close()
	})

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	read := func() map[string]any {
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
		var frame map[string]any
		require.NoError(t, conn.ReadJSON(&frame))
		return frame
	}

	assert.Equal(t, "connected", read()["type"])

	h.project("Live")

	frame := read()
	assert.Equal(t, "project_created", frame["type"])
	data, ok := frame["data"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "Live", data["name"])
}
