package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/SanteonNL/crumbtrail/cmd/crumbtrail/namecache"
	"github.com/SanteonNL/crumbtrail/cmd/crumbtrail/presenter"
	"github.com/SanteonNL/crumbtrail/cmd/crumbtrail/resolver"
	"github.com/SanteonNL/crumbtrail/cmd/crumbtrail/segment"
	"github.com/SanteonNL/crumbtrail/cmd/crumbtrail/trail"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const facilityID = "11111111-1111-1111-1111-111111111111"

type mapSource struct {
	mutex sync.Mutex
	names map[string]string
	errs  map[string]error
}

func (m *mapSource) FetchName(ctx context.Context, entity segment.EntityType, id string) (string, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if err, ok := m.errs[id]; ok {
		return "", err
	}
	if name, ok := m.names[id]; ok {
		return name, nil
	}
	return "", resolver.ErrNotFound
}

type viewJSON struct {
	State    string        `json:"state"`
	Head     trail.Crumb   `json:"head"`
	Overflow []trail.Crumb `json:"overflow"`
	Tail     []trail.Crumb `json:"tail"`
}

func (v viewJSON) names() []string {
	crumbs := append([]trail.Crumb{v.Head}, v.Overflow...)
	return trail.Trail(append(crumbs, v.Tail...)).Names()
}

func newTestServer(t *testing.T, source resolver.NameSource) (*httptest.Server, *SessionStore) {
	t.Helper()
	cache := namecache.New(zerolog.Nop())
	dispatcher := resolver.NewDispatcher(cache, source, resolver.Config{LookupTimeout: time.Second}, zerolog.Nop())
	sessions := NewSessionStore(cache, dispatcher, 0, zerolog.Nop())
	router := NewTrailRouter(sessions, cache, 5*time.Second, zerolog.Nop())

	server := httptest.NewServer(router.SetupRoutes())
	t.Cleanup(func() {
		server.Close()
		sessions.Stop()
		dispatcher.Close()
	})
	return server, sessions
}

func decodeView(t *testing.T, resp *http.Response) viewJSON {
	t.Helper()
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	var view viewJSON
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&view))
	return view
}

func TestGetTrailWaitsForNames(t *testing.T) {
	source := &mapSource{names: map[string]string{facilityID: "General Hospital"}}
	server, _ := newTestServer(t, source)

	query := url.Values{"path": {"/facility/" + facilityID + "/patients"}, "wait": {"true"}}
	resp, err := http.Get(server.URL + "/sessions/abc/trail?" + query.Encode())
	require.NoError(t, err)

	view := decodeView(t, resp)
	assert.Equal(t, "collapsed", view.State)
	assert.Equal(t, []string{"Home", "Facilities", "General Hospital", "Patients"}, view.names())
	assert.Len(t, view.Overflow, 2)
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))
}

func TestGetTrailWithoutPathReturnsCurrentView(t *testing.T) {
	server, _ := newTestServer(t, &mapSource{})

	resp, err := http.Get(server.URL + "/sessions/abc/trail?path=/notice_board")
	require.NoError(t, err)
	decodeView(t, resp)

	resp, err = http.Get(server.URL + "/sessions/abc/trail")
	require.NoError(t, err)
	assert.Equal(t, []string{"Home", "Notice Board"}, decodeView(t, resp).names())

	resp, err = http.Get(server.URL + "/sessions/other/trail")
	require.NoError(t, err)
	assert.Equal(t, []string{"Home"}, decodeView(t, resp).names())
}

func TestPostTrailWithOverrides(t *testing.T) {
	server, _ := newTestServer(t, &mapSource{})

	body, err := json.Marshal(map[string]any{
		"path":      "/notice_board",
		"overrides": map[string]any{"notice_board": map[string]string{"name": "Announcements", "styleHint": "italic"}},
	})
	require.NoError(t, err)

	resp, err := http.Post(server.URL+"/sessions/abc/trail", "application/json", bytes.NewReader(body))
	require.NoError(t, err)

	view := decodeView(t, resp)
	assert.Equal(t, []string{"Home", "Announcements"}, view.names())
	assert.Equal(t, "italic", view.Tail[0].Style)
}

func TestPostTrailInvalidBody(t *testing.T) {
	server, _ := newTestServer(t, &mapSource{})

	resp, err := http.Post(server.URL+"/sessions/abc/trail", "application/json", bytes.NewReader([]byte("{")))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var errResp ErrorResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&errResp))
	assert.NotEmpty(t, errResp.Error)
	assert.NotEmpty(t, errResp.RequestID)
}

func TestExpandKeepsStatePerSession(t *testing.T) {
	source := &mapSource{names: map[string]string{facilityID: "General Hospital"}}
	server, _ := newTestServer(t, source)
	path := url.Values{"path": {"/facility/" + facilityID + "/patients"}, "wait": {"1"}}.Encode()

	for _, session := range []string{"a", "b"} {
		resp, err := http.Get(server.URL + "/sessions/" + session + "/trail?" + path)
		require.NoError(t, err)
		decodeView(t, resp)
	}

	resp, err := http.Post(server.URL+"/sessions/a/expand", "application/json", nil)
	require.NoError(t, err)
	view := decodeView(t, resp)
	assert.Equal(t, "expanded", view.State)
	assert.Empty(t, view.Overflow)
	assert.Len(t, view.Tail, 3)

	resp, err = http.Get(server.URL + "/sessions/b/trail")
	require.NoError(t, err)
	assert.Equal(t, presenter.Collapsed.String(), decodeView(t, resp).State)
}

func TestRetry(t *testing.T) {
	source := &mapSource{errs: map[string]error{facilityID: errors.New("down")}}
	server, _ := newTestServer(t, source)

	resp, err := http.Post(server.URL+"/sessions/a/retry/"+facilityID, "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode, "nothing failed yet")

	resp, err = http.Get(server.URL + "/sessions/a/trail?wait=true&path=/facility/" + facilityID)
	require.NoError(t, err)
	assert.Equal(t, resolver.FailedLabel, decodeView(t, resp).Tail[0].Name)

	source.mutex.Lock()
	delete(source.errs, facilityID)
	source.names = map[string]string{facilityID: "General Hospital"}
	source.mutex.Unlock()

	resp, err = http.Post(server.URL+"/sessions/a/retry/"+facilityID, "application/json", nil)
	require.NoError(t, err)
	decodeView(t, resp)

	resp, err = http.Get(server.URL + "/sessions/a/trail?wait=true")
	require.NoError(t, err)
	assert.Equal(t, "General Hospital", decodeView(t, resp).Tail[0].Name)
}

func TestHealth(t *testing.T) {
	source := &mapSource{names: map[string]string{facilityID: "General Hospital"}}
	server, sessions := newTestServer(t, source)

	resp, err := http.Get(server.URL + "/sessions/a/trail?wait=true&path=/facility/" + facilityID)
	require.NoError(t, err)
	decodeView(t, resp)

	resp, err = http.Get(server.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()

	var health map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&health))
	assert.Equal(t, "ok", health["status"])
	assert.EqualValues(t, 1, health["sessions"])
	assert.EqualValues(t, 1, health["names"])
	assert.Equal(t, []string{"a"}, sessions.IDs())
}

func newTestRouter(t *testing.T, log zerolog.Logger) *TrailRouter {
	t.Helper()
	cache := namecache.New(zerolog.Nop())
	dispatcher := resolver.NewDispatcher(cache, &mapSource{}, resolver.Config{}, zerolog.Nop())
	sessions := NewSessionStore(cache, dispatcher, 0, zerolog.Nop())
	t.Cleanup(func() {
		sessions.Stop()
		dispatcher.Close()
	})
	return NewTrailRouter(sessions, cache, time.Second, log)
}

func TestAccessLogCarriesRequestID(t *testing.T) {
	var buf bytes.Buffer
	handler := newTestRouter(t, zerolog.New(&buf)).SetupRoutes()

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	requestID := rec.Header().Get("X-Request-ID")
	require.NotEmpty(t, requestID)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "Handled request", entry["message"])
	assert.Equal(t, requestID, entry["request_id"])
	assert.Equal(t, "/healthz", entry["path"])
	assert.EqualValues(t, http.StatusOK, entry["status"])
}

func TestPanicIsRecovered(t *testing.T) {
	handler := newTestRouter(t, zerolog.Nop()).SetupRoutes()
	router, ok := handler.(*mux.Router)
	require.True(t, ok)
	router.HandleFunc("/boom", func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	})

	rec := httptest.NewRecorder()
	assert.NotPanics(t, func() {
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/boom", nil))
	})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestRespondWithJSONLogsEncodeFailure(t *testing.T) {
	var buf bytes.Buffer
	tr := newTestRouter(t, zerolog.New(&buf).Level(zerolog.DebugLevel))

	rec := httptest.NewRecorder()
	tr.respondWithJSON(rec, http.StatusOK, make(chan int))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, buf.String(), "Failed to write response")
}

func TestMethodNotAllowed(t *testing.T) {
	server, _ := newTestServer(t, &mapSource{})

	resp, err := http.Get(server.URL + "/sessions/a/expand")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}
