package health

import (
	"context"
	"errors"
	"net/http"
	"time"

	httputil "carrental/pkg/http"
	"carrental/pkg/logger"

	"github.com/julienschmidt/httprouter"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const readinessTimeout = 2 * time.Second

var errNoDatabase = errors.New("database client not configured")

type Pinger interface {
	Ping(ctx context.Context, rp *readpref.ReadPref) error
}

// MetricsSource reports process counters for /metrics.
type MetricsSource interface {
	Snapshot() map[string]any
}

type Response struct {
	Status   string `json:"status"`
	Database string `json:"database,omitempty"`
}

type Handler struct {
	db      Pinger
	metrics MetricsSource
	log     *logger.Logger
}

func NewHandler(db Pinger, metrics MetricsSource, log *logger.Logger) *Handler {
	return &Handler{
		db:      db,
		metrics: metrics,
		log:     log,
	}
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	if err := httputil.WriteJSON(w, http.StatusOK, Response{Status: "ok"}); err != nil {
		h.log.Error("failed to write JSON response", "handler", "Health", "operation", "WriteJSON", "error", err)
	}
}

func (h *Handler) Ready(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
	defer cancel()

	status, resp := http.StatusOK, Response{Status: "ready", Database: "ok"}
	if err := h.ping(ctx); err != nil {
		h.log.Error("Database health check failed", "error", err, "path", r.URL.Path)
		status, resp = http.StatusServiceUnavailable, Response{Status: "unavailable", Database: "error"}
	}

	if err := httputil.WriteJSON(w, status, resp); err != nil {
		h.log.Error("failed to write JSON response", "handler", "Ready", "operation", "WriteJSON", "error", err)
	}
}

func (h *Handler) ping(ctx context.Context) error {
	if h.db == nil {
		return errNoDatabase
	}
	return h.db.Ping(ctx, readpref.Primary())
}

func (h *Handler) Metrics(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	snapshot := map[string]any{}
	if h.metrics != nil {
		snapshot = h.metrics.Snapshot()
	}
	if err := httputil.WriteJSON(w, http.StatusOK, snapshot); err != nil {
		h.log.Error("failed to write JSON response", "handler", "Metrics", "operation", "WriteJSON", "error", err)
	}
}

func (h *Handler) RegisterRoutes(router *httprouter.Router) {
	router.GET("/health", h.Health)
	router.GET("/ready", h.Ready)
	router.GET("/metrics", h.Metrics)
}
