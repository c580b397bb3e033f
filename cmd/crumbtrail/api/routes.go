package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/SanteonNL/crumbtrail/cmd/crumbtrail/namecache"
	"github.com/SanteonNL/crumbtrail/cmd/crumbtrail/trail"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
)

// TrailRouter serves breadcrumbs over HTTP
type TrailRouter struct {
	sessions *SessionStore
	cache    *namecache.Cache
	maxWait  time.Duration
	log      zerolog.Logger
}

type TrailRequest struct {
	Path      string          `json:"path"`
	Overrides trail.Overrides `json:"overrides,omitempty"`
	Wait      bool            `json:"wait,omitempty"`
}

type ErrorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"requestId,omitempty"`
}

// NewTrailRouter creates the router. maxWait bounds how long a request that
// asks to wait for pending names may block.
func NewTrailRouter(sessions *SessionStore, cache *namecache.Cache, maxWait time.Duration, log zerolog.Logger) *TrailRouter {
	return &TrailRouter{
		sessions: sessions,
		cache:    cache,
		maxWait:  maxWait,
		log:      log.With().Str("component", "api").Logger(),
	}
}

func (tr *TrailRouter) SetupRoutes() http.Handler {
	r := mux.NewRouter()

	r.Use(hlog.NewHandler(tr.log))
	r.Use(hlog.RequestIDHandler("request_id", "X-Request-ID"))
	r.Use(hlog.AccessHandler(logRequest))
	r.Use(middleware.Recoverer)

	r.HandleFunc("/healthz", tr.handleHealth).Methods(http.MethodGet)

	r.HandleFunc("/sessions/{session}/trail", tr.handleGetTrail).Methods(http.MethodGet)
	r.HandleFunc("/sessions/{session}/trail", tr.handlePostTrail).Methods(http.MethodPost)
	r.HandleFunc("/sessions/{session}/expand", tr.handleExpand).Methods(http.MethodPost)
	r.HandleFunc("/sessions/{session}/retry/{id}", tr.handleRetry).Methods(http.MethodPost)

	return r
}

func (tr *TrailRouter) handleHealth(w http.ResponseWriter, r *http.Request) {
	tr.respondWithJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"sessions": tr.sessions.Len(),
		"names":    tr.cache.Len(),
	})
}

func (tr *TrailRouter) handleGetTrail(w http.ResponseWriter, r *http.Request) {
	e, release := tr.sessions.Acquire(mux.Vars(r)["session"])
	defer release()
	query := r.URL.Query()

	if query.Has("path") {
		e.Navigate(query.Get("path"), nil)
	}

	wait, _ := strconv.ParseBool(query.Get("wait"))
	if wait {
		tr.waitForNames(r.Context(), e.Wait)
	}
	tr.respondWithJSON(w, http.StatusOK, e.View())
}

func (tr *TrailRouter) handlePostTrail(w http.ResponseWriter, r *http.Request) {
	var req TrailRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		tr.respondWithError(w, r, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}

	e, release := tr.sessions.Acquire(mux.Vars(r)["session"])
	defer release()
	e.Navigate(req.Path, req.Overrides)
	if req.Wait {
		tr.waitForNames(r.Context(), e.Wait)
	}
	tr.respondWithJSON(w, http.StatusOK, e.View())
}

func (tr *TrailRouter) handleExpand(w http.ResponseWriter, r *http.Request) {
	e, release := tr.sessions.Acquire(mux.Vars(r)["session"])
	defer release()
	tr.respondWithJSON(w, http.StatusOK, e.Expand())
}

func (tr *TrailRouter) handleRetry(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	e, release := tr.sessions.Acquire(vars["session"])
	defer release()

	view, ok := e.Retry(vars["id"])
	if !ok {
		tr.respondWithError(w, r, http.StatusNotFound, fmt.Sprintf("no failed name for %s", vars["id"]))
		return
	}
	tr.respondWithJSON(w, http.StatusOK, view)
}

// waitForNames blocks until pending lookups finish, the request ends or maxWait passes
func (tr *TrailRouter) waitForNames(ctx context.Context, wait func(context.Context) error) {
	if tr.maxWait > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, tr.maxWait)
		defer cancel()
	}
	if err := wait(ctx); err != nil {
		tr.log.Debug().Err(err).Msg("Stopped waiting for pending names")
	}
}

// logRequest is the access log line of every handled request
func logRequest(r *http.Request, status, size int, duration time.Duration) {
	hlog.FromRequest(r).Info().
		Str("method", r.Method).
		Str("path", r.URL.Path).
		Int("status", status).
		Int("size", size).
		Dur("duration", duration).
		Msg("Handled request")
}

func requestIDFrom(r *http.Request) string {
	if id, ok := hlog.IDFromRequest(r); ok {
		return id.String()
	}
	return ""
}

func (tr *TrailRouter) respondWithError(w http.ResponseWriter, r *http.Request, status int, message string) {
	tr.respondWithJSON(w, status, ErrorResponse{
		Error:     message,
		RequestID: requestIDFrom(r),
	})
}

func (tr *TrailRouter) respondWithJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		tr.log.Debug().Err(err).Int("status", status).Msg("Failed to write response")
	}
}
