// Package statusapi serves the optional read-only status surface for a
// running comparison: current orchestrator state, live counters, computed
// confusion matrices, a websocket progress stream, and Prometheus
// metrics. It never writes to the label store.
package statusapi

import (
	"context"
	"net/http"
	"os"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rawblock/idps-compare/internal/metrics"
	"github.com/rawblock/idps-compare/internal/normalize"
	"github.com/rawblock/idps-compare/internal/orchestrator"
	"github.com/rawblock/idps-compare/internal/store"
	"github.com/rawblock/idps-compare/pkg/models"
)

// Store is the read-only slice of the label store the handlers need.
// *store.LabelStore satisfies it.
type Store interface {
	CountersSnapshot(ctx context.Context) ([]store.CounterRow, error)
	EarliestGTTimestamp(ctx context.Context) (float64, bool, error)
	ReadConfusionMatrix(ctx context.Context, table string, tool models.Tool) (models.ConfusionMatrix, bool, error)
}

// StateSource reports the orchestrator's progress through its state
// machine. *orchestrator.Orchestrator satisfies it.
type StateSource interface {
	State() orchestrator.State
}

type statusHandler struct {
	store Store
	state StateSource
}

// SetupRouter builds the gin router: public read-only endpoints under
// /api/v1 plus the Prometheus scrape endpoint at /metrics.
func SetupRouter(st Store, state StateSource, hub *Hub) *gin.Engine {
	r := gin.Default()

	// CORS, configurable via ALLOWED_ORIGINS (comma-separated), wide open
	// when unset for local dashboards.
	allowedOrigins := os.Getenv("ALLOWED_ORIGINS")
	r.Use(func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if allowedOrigins == "" || allowedOrigins == "*" {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		} else {
			for _, allowed := range strings.Split(allowedOrigins, ",") {
				if strings.TrimSpace(allowed) == origin {
					c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
					break
				}
			}
		}
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Accept, Origin, Cache-Control")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	})

	handler := &statusHandler{store: st, state: state}

	pub := r.Group("/api/v1")
	{
		pub.GET("/health", handler.handleHealth)
		pub.GET("/state", handler.handleState)
		pub.GET("/counters", handler.handleCounters)
		pub.GET("/metrics/:tool", handler.handleToolMetrics)
		if hub != nil {
			pub.GET("/stream", hub.Subscribe)
		}
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(NewCounterCollector(st))
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))

	return r
}

func (h *statusHandler) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *statusHandler) handleState(c *gin.Context) {
	resp := gin.H{"state": h.state.State().String()}
	if ts, ok, err := h.store.EarliestGTTimestamp(c.Request.Context()); err == nil && ok {
		resp["anchor"] = ts
		resp["anchor_human"] = normalize.HumanReadable(ts)
	}
	c.JSON(http.StatusOK, resp)
}

func (h *statusHandler) handleCounters(c *gin.Context) {
	rows, err := h.store.CountersSnapshot(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	out := make(map[string]map[string]int64)
	for _, r := range rows {
		if out[r.Name] == nil {
			out[r.Name] = make(map[string]int64)
		}
		out[r.Name][r.Key] = r.Value
	}
	c.JSON(http.StatusOK, out)
}

func (h *statusHandler) handleToolMetrics(c *gin.Context) {
	tool := models.Tool(c.Param("tool"))
	if tool != models.ToolA && tool != models.ToolB {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown tool"})
		return
	}

	ctx := c.Request.Context()
	resp := gin.H{"tool": string(tool)}
	for view, table := range map[string]string{
		"flow_by_flow":   "confusion_matrix_flow",
		"per_timewindow": "confusion_matrix_tw",
	} {
		cm, ok, err := h.store.ReadConfusionMatrix(ctx, table, tool)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		if !ok {
			continue
		}
		resp[view] = gin.H{
			"confusion_matrix": cm,
			"derived":          metrics.Derive(cm),
		}
	}
	c.JSON(http.StatusOK, resp)
}
