package api

import (
	"context"
	"net/http"
	"runtime"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/luminahq/observe/internal/alerting"
	"github.com/luminahq/observe/internal/apicall"
	"github.com/luminahq/observe/internal/config"
	"github.com/luminahq/observe/internal/dbobs"
	"github.com/luminahq/observe/internal/logging"
	"github.com/luminahq/observe/internal/metrics"
)

// Version is stamped at build time via -ldflags.
var Version = "dev"

// Deps wires the observability surface to the process-wide aggregates.
// DB may be nil when no database is configured.
type Deps struct {
	Config   *config.Config
	Logger   *logging.Logger
	Registry *metrics.Registry
	Engine   *alerting.Engine
	Stats    *dbobs.Stats
	Health   *apicall.HealthTracker
	DB       dbobs.Pinger
}

type API struct {
	deps Deps
}

func New(deps Deps) *API { return &API{deps: deps} }

// RegisterRoutes mounts the surface on router.
func (a *API) RegisterRoutes(router *gin.Engine) {
	router.GET("/metrics", a.getMetrics)
	router.GET("/health", a.getHealth)
	router.GET("/health/live", a.getLive)
	router.GET("/health/ready", a.getReady)

	obs := router.Group("/observability")
	obs.GET("/dashboard", a.getDashboard)
	obs.GET("/alerts", a.getAlerts)
	obs.POST("/alerts/:ruleID/enable", a.setRuleEnabled(true))
	obs.POST("/alerts/:ruleID/disable", a.setRuleEnabled(false))
	if a.deps.Config.IsDevelopment() {
		obs.GET("/debug", a.getDebug)
		obs.POST("/test-alert", a.postTestAlert)
	}
}

func (a *API) getMetrics(c *gin.Context) {
	defer func() {
		if r := recover(); r != nil {
			c.Data(http.StatusInternalServerError, "text/plain; charset=utf-8",
				[]byte("# metrics export failed\n"))
		}
	}()
	body := a.deps.Registry.Prometheus()
	c.Data(http.StatusOK, "text/plain; version=0.0.4; charset=utf-8", []byte(body))
}

func (a *API) getHealth(c *gin.Context) {
	start := time.Now()
	ctx := c.Request.Context()

	dbHealth := dbobs.CheckHealth(ctx, a.deps.DB)

	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	percentUsed := 0.0
	if ms.HeapSys > 0 {
		percentUsed = float64(ms.HeapAlloc) / float64(ms.HeapSys) * 100
	}
	memStatus := "ok"
	if percentUsed > 90 {
		memStatus = "degraded"
	}

	unhealthyAPIs := a.deps.Health.Unhealthy()
	apiStatus := "ok"
	if len(unhealthyAPIs) > 0 {
		apiStatus = "degraded"
	}

	activeCount, criticalCount := a.deps.Engine.ActiveCounts()
	alertStatus := "ok"
	if criticalCount > 0 {
		alertStatus = "critical"
	}

	healthy := dbHealth.Healthy && criticalCount == 0
	status, code := "healthy", http.StatusOK
	if !healthy {
		status, code = "degraded", http.StatusServiceUnavailable
	}

	dbCheck := gin.H{"status": "healthy", "latency": dbHealth.Latency.Milliseconds()}
	if !dbHealth.Healthy {
		dbCheck["status"] = "unhealthy"
		if dbHealth.Err != "" {
			dbCheck["error"] = dbHealth.Err
		}
	}

	c.JSON(code, gin.H{
		"status":      status,
		"timestamp":   time.Now().UTC(),
		"uptime":      a.deps.Registry.Uptime().Seconds(),
		"version":     Version,
		"environment": a.deps.Config.Service.Env,
		"checks": gin.H{
			"database": dbCheck,
			"memory": gin.H{
				"status":      memStatus,
				"heapUsedMB":  float64(ms.HeapAlloc) / (1 << 20),
				"heapTotalMB": float64(ms.HeapSys) / (1 << 20),
				"percentUsed": percentUsed,
			},
			"externalApis": gin.H{"status": apiStatus, "unhealthy": unhealthyAPIs},
			"alerts": gin.H{
				"status":        alertStatus,
				"activeCount":   activeCount,
				"criticalCount": criticalCount,
			},
		},
		"responseTime": time.Since(start).Milliseconds(),
	})
}

func (a *API) getLive(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "alive", "timestamp": time.Now().UTC()})
}

func (a *API) getReady(c *gin.Context) {
	ctx, cancel := contextWithQuickTimeout(c)
	defer cancel()
	if h := dbobs.CheckHealth(ctx, a.deps.DB); !h.Healthy {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "not_ready",
			"reason": "database_unavailable",
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}

func contextWithQuickTimeout(c *gin.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request.Context(), 2*time.Second)
}

func (a *API) getDashboard(c *gin.Context) {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	c.JSON(http.StatusOK, gin.H{
		"metrics": a.deps.Registry.JSON(),
		"database": gin.H{
			"summary":     a.deps.Stats.Summarize(),
			"slowQueries": a.deps.Stats.TopByAvgDuration(10),
		},
		"apiHealth": a.deps.Health.Snapshot(),
		"alerts": gin.H{
			"active": a.deps.Engine.Active(),
			"recent": a.deps.Engine.History(20),
			"rules":  a.deps.Engine.Rules(),
		},
		"system": gin.H{
			"heapAllocBytes": ms.HeapAlloc,
			"heapSysBytes":   ms.HeapSys,
			"numGC":          ms.NumGC,
			"goroutines":     runtime.NumGoroutine(),
			"cpus":           runtime.NumCPU(),
		},
	})
}

func (a *API) getAlerts(c *gin.Context) {
	limit := 50
	if raw := c.Query("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}
	c.JSON(http.StatusOK, gin.H{
		"active":  a.deps.Engine.Active(),
		"history": a.deps.Engine.History(limit),
		"rules":   a.deps.Engine.Rules(),
	})
}

func (a *API) setRuleEnabled(enabled bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		ruleID := c.Param("ruleID")
		if err := a.deps.Engine.SetEnabled(ruleID, enabled); err != nil {
			c.JSON(http.StatusNotFound, gin.H{
				"error": gin.H{"code": "NOT_FOUND", "message": "unknown rule: " + ruleID},
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "ruleId": ruleID, "enabled": enabled})
	}
}

func (a *API) getDebug(c *gin.Context) {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	c.JSON(http.StatusOK, gin.H{
		"goVersion":  runtime.Version(),
		"goroutines": runtime.NumGoroutine(),
		"cpus":       runtime.NumCPU(),
		"memory": gin.H{
			"heapAllocBytes": ms.HeapAlloc,
			"heapSysBytes":   ms.HeapSys,
			"numGC":          ms.NumGC,
		},
		"service": gin.H{
			"name":        a.deps.Config.Service.Name,
			"environment": a.deps.Config.Service.Env,
			"uptime":      a.deps.Registry.Uptime().Seconds(),
		},
	})
}

func (a *API) postTestAlert(c *gin.Context) {
	alert, err := a.deps.Engine.FireTest(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": gin.H{"code": "INTERNAL_ERROR", "message": err.Error()},
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "alert": alert})
}
