// Package httpapi exposes the read-only HTTP introspection surface
// spec.md §5 requires: liveness/readiness probes and a clusters listing
// for operators. Grounded on the teacher's internal/api Handler
// (healthHandler/readinessHandler/writeJSONResponse/writeErrorResponse
// idiom), narrowed to the subset spec.md actually names — no account,
// billing, or admin surface survives since the new domain has no
// multi-tenant billing concept.
package httpapi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/mplswatch/sentinel/internal/logger"
	"github.com/mplswatch/sentinel/internal/models"
	"github.com/mplswatch/sentinel/internal/scheduler"
	"github.com/mplswatch/sentinel/internal/store"
)

// Handler serves the operator-facing HTTP surface.
type Handler struct {
	store       store.Store
	sched       *scheduler.Scheduler
	version     string
	buildTime   string
	gitCommit   string
	startTime   time.Time
}

// NewHandler builds a Handler over store and sched. sched may be nil in
// tests that don't exercise the scheduler-derived fields.
func NewHandler(st store.Store, sched *scheduler.Scheduler, version, buildTime, gitCommit string) *Handler {
	return &Handler{
		store:     st,
		sched:     sched,
		version:   version,
		buildTime: buildTime,
		gitCommit: gitCommit,
		startTime: time.Now(),
	}
}

// RegisterRoutes registers every route this handler serves onto r.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/healthz", h.livenessHandler)
	r.Get("/readyz", h.readinessHandler)
	r.Route("/v1", func(r chi.Router) {
		r.Get("/clusters", h.listClustersHandler)
		r.Get("/version", h.versionHandler)
	})
}

// livenessHandler reports that the process is up; it consults nothing
// external, matching the teacher's livenessHandler.
func (h *Handler) livenessHandler(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]any{
		"status": "alive",
		"uptime": time.Since(h.startTime).String(),
	})
}

// readinessHandler reports whether the store backend is reachable.
func (h *Handler) readinessHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	checks := map[string]string{"store": "ok"}
	statusCode := http.StatusOK
	status := "ready"

	if err := h.store.Health(ctx); err != nil {
		checks["store"] = "error: " + err.Error()
		statusCode = http.StatusServiceUnavailable
		status = "not_ready"
	}

	response := map[string]any{
		"status":    status,
		"timestamp": time.Now().UTC(),
		"checks":    checks,
	}
	if h.sched != nil {
		response["dropped_reports"] = h.sched.Dropped()
	}

	h.writeJSON(w, statusCode, response)
}

// listClustersHandler lists the currently ACTIVE clusters, the only
// ones the Correlator holds warm in memory. This is a read-only
// introspection endpoint, not a query API: filtering, pagination, and
// historical (EXPIRED) clusters are out of scope (spec.md's Non-goals).
func (h *Handler) listClustersHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	clusters, err := h.store.RestoreActiveClusters(ctx)
	if err != nil {
		logger.WithContext(ctx).Error("failed to list active clusters", "error", err)
		h.writeError(w, r, http.StatusInternalServerError, "internal server error")
		return
	}

	out := make([]clusterSummary, 0, len(clusters))
	for _, c := range clusters {
		out = append(out, summarize(c))
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"data":  out,
		"count": len(out),
	})
}

// versionHandler returns build identification.
func (h *Handler) versionHandler(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]any{
		"version":    h.version,
		"build_time": h.buildTime,
		"git_commit": h.gitCommit,
	})
}

// clusterSummary is the introspection-facing projection of a cluster:
// member reports are omitted since the endpoint is a dashboard surface,
// not an export mechanism.
type clusterSummary struct {
	ID              string    `json:"id"`
	State           string    `json:"state"`
	Label           string    `json:"label"`
	CentroidLat     float64   `json:"centroid_lat"`
	CentroidLon     float64   `json:"centroid_lon"`
	Confidence      float64   `json:"confidence"`
	SourceDiversity int       `json:"source_diversity"`
	MemberCount     int       `json:"member_count"`
	FirstSeen       time.Time `json:"first_seen"`
	LastUpdated     time.Time `json:"last_updated"`
	AlertsEmitted   int       `json:"alerts_emitted"`
}

func summarize(c *models.Cluster) clusterSummary {
	return clusterSummary{
		ID:              c.ID,
		State:           string(c.State),
		Label:           c.Label,
		CentroidLat:     c.CentroidLat,
		CentroidLon:     c.CentroidLon,
		Confidence:      c.Confidence,
		SourceDiversity: c.SourceDiversity(),
		MemberCount:     len(c.Members),
		FirstSeen:       c.FirstSeen,
		LastUpdated:     c.LastUpdated,
		AlertsEmitted:   len(c.AlertsEmitted),
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(data)
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, statusCode int, message string) {
	h.writeJSON(w, statusCode, errorResponse{
		Error:     http.StatusText(statusCode),
		Message:   message,
		Timestamp: time.Now().UTC(),
		RequestID: r.Header.Get("X-Request-ID"),
	})
}

// errorResponse mirrors the teacher's ErrorResponse shape.
type errorResponse struct {
	Error     string    `json:"error"`
	Message   string    `json:"message,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	RequestID string    `json:"request_id,omitempty"`
}
