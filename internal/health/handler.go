package health

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/alagappainfotech/student-registration-app/internal/httputil"
	"github.com/alagappainfotech/student-registration-app/internal/metrics"

	"github.com/go-chi/chi/v5"
)

const checkTimeout = 3 * time.Second

// Check probes one dependency.
type Check struct {
	Name  string
	Probe func(ctx context.Context) error
}

type Handler struct {
	checks  []Check
	metrics *metrics.HealthMetrics
	logger  *slog.Logger
}

func NewHandler(m *metrics.HealthMetrics, logger *slog.Logger, checks ...Check) *Handler {
	return &Handler{checks: checks, metrics: m, logger: logger}
}

func (h *Handler) RegisterRoutes(router chi.Router) {
	router.Get("/health", h.Health)
	router.Get("/ready", h.Ready)
}

type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	httputil.RespondWithJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

// Ready runs every check; any failure answers 503.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), checkTimeout)
	defer cancel()

	resp := HealthResponse{Status: "ready", Checks: make(map[string]string, len(h.checks))}
	code := http.StatusOK
	for _, c := range h.checks {
		start := time.Now()
		err := c.Probe(ctx)
		h.metrics.RecordDependencyCheck(ctx, c.Name, time.Since(start), err)
		if err != nil {
			h.logger.WarnContext(ctx, "readiness check failed", "dependency", c.Name, "error", err)
			resp.Checks[c.Name] = err.Error()
			resp.Status = "unavailable"
			code = http.StatusServiceUnavailable
			continue
		}
		resp.Checks[c.Name] = "ok"
	}
	httputil.RespondWithJSON(w, code, resp)
}
