package api

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/djlord-it/easy-views/internal/domain"
	"github.com/djlord-it/easy-views/internal/metrics"
	"github.com/djlord-it/easy-views/internal/transport/channel"
	"github.com/djlord-it/easy-views/internal/views"
	"github.com/djlord-it/easy-views/internal/visitor"
)

// DefaultSubjectStore is the store discriminator of subjects addressed over HTTP.
const DefaultSubjectStore = "default"

// Emitter publishes subject deletions to the observer.
type Emitter interface {
	Emit(ctx context.Context, event domain.SubjectDeleted) error
}

// HealthChecker provides database health status for the /health endpoint.
type HealthChecker interface {
	PingContext(ctx context.Context) error
}

// MetricsSink defines the interface for recording API metrics.
type MetricsSink interface {
	RequestCompleted(route, statusClass string, duration time.Duration)
}

type Handler struct {
	engine       *views.Engine
	visitors     *visitor.Resolver
	events       Emitter       // optional, nil = subject deletion disabled
	db           HealthChecker // optional
	auth         *authorizer   // nil = destructive endpoints disabled
	limiter      *ipLimiter    // nil = unlimited
	metrics      MetricsSink   // optional, nil = disabled
	subjectStore string
	clock        func() time.Time
}

func NewHandler(engine *views.Engine, visitors *visitor.Resolver) *Handler {
	return &Handler{
		engine:       engine,
		visitors:     visitors,
		subjectStore: DefaultSubjectStore,
		clock:        time.Now,
	}
}

// WithHealthChecker sets the database health checker for verbose /health responses.
func (h *Handler) WithHealthChecker(db HealthChecker) *Handler {
	h.db = db
	return h
}

// WithEvents enables DELETE /subjects/{type}/{id}.
func (h *Handler) WithEvents(events Emitter) *Handler {
	h.events = events
	return h
}

// WithAdminKey enables the destructive endpoints behind HS256 bearer tokens.
func (h *Handler) WithAdminKey(key string) *Handler {
	if key != "" {
		h.auth = &authorizer{key: []byte(key)}
	}
	return h
}

// WithRecordLimit rate limits POST .../views per client IP.
func (h *Handler) WithRecordLimit(rps float64, burst int) *Handler {
	if rps > 0 && burst > 0 {
		h.limiter = newIPLimiter(rps, burst)
	}
	return h
}

// WithSubjectStore sets the store discriminator used in cache keys.
func (h *Handler) WithSubjectStore(name string) *Handler {
	h.subjectStore = name
	return h
}

// WithMetrics attaches a metrics sink to the handler.
func (h *Handler) WithMetrics(sink MetricsSink) *Handler {
	h.metrics = sink
	return h
}

// WithClock replaces the time source used to resolve relative periods, for tests.
func (h *Handler) WithClock(clock func() time.Time) *Handler {
	h.clock = clock
	return h
}

// route is a matched request: the handler name (used as metrics label) and
// the path parameters.
type route struct {
	name    string
	subject domain.SubjectRef
	fn      func(w http.ResponseWriter, r *http.Request, rt route)
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	started := time.Now()
	rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

	rt, errStatus, errMsg := h.match(r)
	if errStatus != 0 {
		writeError(rec, errStatus, errMsg)
	} else {
		rt.fn(rec, r, rt)
	}

	if h.metrics != nil {
		name := rt.name
		if name == "" {
			name = "unmatched"
		}
		h.metrics.RequestCompleted(name, metrics.ClassifyStatus(rec.status), time.Since(started))
	}
}

// match resolves the route:
//
//	GET    /health
//	GET    /subjects/{type}/views
//	DELETE /subjects/{type}/views
//	GET    /subjects/{type}/top
//	DELETE /subjects/{type}/cooldowns
//	DELETE /subjects/{type}/{id}
//	GET    /subjects/{type}/{id}/views
//	POST   /subjects/{type}/{id}/views
//	DELETE /subjects/{type}/{id}/views
func (h *Handler) match(r *http.Request) (route, int, string) {
	path := r.URL.Path
	if path == "/health" && r.Method == http.MethodGet {
		return route{name: "health", fn: h.health}, 0, ""
	}

	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) < 3 || len(parts) > 4 || parts[0] != "subjects" {
		return route{}, http.StatusNotFound, "not found"
	}
	typ := parts[1]
	if err := validateName("type", typ); err != nil {
		return route{}, http.StatusBadRequest, err.Error()
	}

	if len(parts) == 3 {
		typeRef := domain.TypeRef(h.subjectStore, typ)
		switch {
		case parts[2] == "views" && r.Method == http.MethodGet:
			return route{name: "count_type", subject: typeRef, fn: h.count}, 0, ""
		case parts[2] == "views" && r.Method == http.MethodDelete:
			return route{name: "destroy_type", subject: typeRef, fn: h.admin(h.destroy)}, 0, ""
		case parts[2] == "top" && r.Method == http.MethodGet:
			return route{name: "top", subject: typeRef, fn: h.top}, 0, ""
		case parts[2] == "cooldowns" && r.Method == http.MethodDelete:
			return route{name: "forget_cooldowns", subject: typeRef, fn: h.forgetCooldowns}, 0, ""
		case r.Method == http.MethodDelete:
			if err := validateID(parts[2]); err != nil {
				return route{}, http.StatusBadRequest, err.Error()
			}
			subject := domain.Ref(h.subjectStore, typ, parts[2])
			return route{name: "delete_subject", subject: subject, fn: h.admin(h.deleteSubject)}, 0, ""
		}
		return route{}, http.StatusNotFound, "not found"
	}

	if parts[3] != "views" {
		return route{}, http.StatusNotFound, "not found"
	}
	if err := validateID(parts[2]); err != nil {
		return route{}, http.StatusBadRequest, err.Error()
	}
	subject := domain.Ref(h.subjectStore, typ, parts[2])
	switch r.Method {
	case http.MethodGet:
		return route{name: "count", subject: subject, fn: h.count}, 0, ""
	case http.MethodPost:
		return route{name: "record", subject: subject, fn: h.record}, 0, ""
	case http.MethodDelete:
		return route{name: "destroy", subject: subject, fn: h.admin(h.destroy)}, 0, ""
	}
	return route{}, http.StatusMethodNotAllowed, "method not allowed"
}

// admin wraps fn with bearer token authorization.
func (h *Handler) admin(fn func(http.ResponseWriter, *http.Request, route)) func(http.ResponseWriter, *http.Request, route) {
	return func(w http.ResponseWriter, r *http.Request, rt route) {
		if h.auth == nil {
			writeError(w, http.StatusForbidden, "destructive endpoints are disabled")
			return
		}
		if err := h.auth.authorize(r); err != nil {
			status := http.StatusUnauthorized
			if errors.Is(err, errForbidden) {
				status = http.StatusForbidden
			}
			writeError(w, status, err.Error())
			return
		}
		fn(w, r, rt)
	}
}

// HealthResponse represents the /health endpoint response.
type HealthResponse struct {
	Status     string            `json:"status"`
	Components map[string]string `json:"components,omitempty"`
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request, _ route) {
	verbose := r.URL.Query().Get("verbose") == "true"

	if !verbose || h.db == nil {
		writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
		return
	}

	resp := HealthResponse{
		Status:     "ok",
		Components: make(map[string]string),
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	if err := h.db.PingContext(ctx); err != nil {
		resp.Status = "degraded"
		resp.Components["database"] = "unhealthy: " + err.Error()
	} else {
		resp.Components["database"] = "healthy"
	}

	statusCode := http.StatusOK
	if resp.Status == "degraded" {
		statusCode = http.StatusServiceUnavailable
	}

	writeJSON(w, statusCode, resp)
}

// query builds the Views shared by count and top from the query string.
func (h *Handler) query(r *http.Request, subject domain.Subject) (views.Views, error) {
	q := r.URL.Query()
	v := h.engine.For(subject)

	p, err := parsePeriod(q, h.clock())
	if err != nil {
		return v, err
	}
	if p != nil {
		v = v.Period(*p)
	}
	if q.Get("unique") == "true" {
		v = v.Unique()
	}
	collection, err := parseCollection(q)
	if err != nil {
		return v, err
	}
	if collection != "" {
		v = v.Collection(collection)
	}
	return v, nil
}

func (h *Handler) count(w http.ResponseWriter, r *http.Request, rt route) {
	v, err := h.query(r, rt.subject)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	lifetime, remember, err := parseRemember(r.URL.Query())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if remember {
		v = v.Remember(lifetime)
	}

	n, err := v.Count(r.Context())
	if err != nil {
		log.Printf("api: count error: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to count views")
		return
	}
	writeJSON(w, http.StatusOK, CountResponse{Count: n})
}

func (h *Handler) record(w http.ResponseWriter, r *http.Request, rt route) {
	if h.limiter != nil && !h.limiter.allow(h.visitors.ClientIP(r)) {
		writeError(w, http.StatusTooManyRequests, "rate limited")
		return
	}

	q := r.URL.Query()
	collection, err := parseCollection(q)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	cooldown, err := parseCooldown(q)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	v := h.engine.For(rt.subject).Collection(collection).Cooldown(cooldown)
	outcome, err := v.Record(r.Context(), h.visitors.Resolve(r))
	if errors.Is(err, views.ErrNoSessions) {
		writeError(w, http.StatusNotImplemented, "cooldowns are not available")
		return
	}
	if err != nil {
		log.Printf("api: record error: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to record view")
		return
	}

	status := http.StatusOK
	if outcome.Recorded() {
		status = http.StatusCreated
	}
	writeJSON(w, status, recordResponse(outcome))
}

func (h *Handler) destroy(w http.ResponseWriter, r *http.Request, rt route) {
	n, err := h.engine.For(rt.subject).Destroy(r.Context())
	if err != nil {
		log.Printf("api: destroy error: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to delete views")
		return
	}
	writeJSON(w, http.StatusOK, DeleteViewsResponse{Deleted: n})
}

func (h *Handler) deleteSubject(w http.ResponseWriter, r *http.Request, rt route) {
	if h.events == nil {
		writeError(w, http.StatusNotImplemented, "subject deletion is not available")
		return
	}

	event := domain.SubjectDeleted{
		ID:          uuid.New(),
		Subject:     rt.subject,
		RetainViews: r.URL.Query().Get("retain_views") == "true",
		OccurredAt:  h.clock().UTC(),
	}
	if err := h.events.Emit(r.Context(), event); err != nil {
		log.Printf("api: emit subject deleted error: %v", err)
		if errors.Is(err, channel.ErrBufferFull) {
			writeError(w, http.StatusServiceUnavailable, "event buffer full")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to publish deletion")
		return
	}

	writeJSON(w, http.StatusAccepted, SubjectDeletedResponse{
		EventID:     event.ID.String(),
		RetainViews: event.RetainViews,
	})
}

func (h *Handler) top(w http.ResponseWriter, r *http.Request, rt route) {
	limit, err := parseTopLimit(r.URL.Query())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	v, err := h.query(r, rt.subject)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	top, err := v.Top(r.Context(), limit)
	if err != nil {
		log.Printf("api: top error: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to rank subjects")
		return
	}

	resp := TopResponse{Subjects: make([]SubjectCountResponse, len(top))}
	for i, sc := range top {
		resp.Subjects[i] = SubjectCountResponse{ID: sc.SubjectID, Count: sc.Count}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) forgetCooldowns(w http.ResponseWriter, r *http.Request, rt route) {
	collection, err := parseCollection(r.URL.Query())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	n, err := h.engine.For(rt.subject).Collection(collection).ForgetCooldowns(r.Context(), h.visitors.Resolve(r))
	if errors.Is(err, views.ErrNoSessions) {
		writeError(w, http.StatusNotImplemented, "cooldowns are not available")
		return
	}
	if err != nil {
		log.Printf("api: forget cooldowns error: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to forget cooldowns")
		return
	}
	writeJSON(w, http.StatusOK, ForgetCooldownsResponse{Forgotten: n})
}

// statusRecorder captures the response status for metrics.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("api: json encode error: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}
