package http

import (
	stdhttp "net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/conclave/internal/config"
	"github.com/vovakirdan/conclave/internal/core"
)

// Stats is the node snapshot served on /stats.
type Stats struct {
	Node       string          `json:"node"`
	Group      string          `json:"group"`
	State      string          `json:"state"`
	Queue      core.QueueStats `json:"queue"`
	Observers  int             `json:"observers"`
	TapDropped uint64          `json:"tap_dropped"`
}

// Sources feed the admin endpoints. Gatherer and Stats may be nil.
type Sources struct {
	Hub      *core.Hub
	Gatherer prometheus.Gatherer
	Stats    func() Stats
	NodeID   string
}

// NewServer builds the admin HTTP server.
func NewServer(src Sources, cfg config.AdminConfig, logger *zerolog.Logger) *stdhttp.Server {
	return &stdhttp.Server{
		Addr:              cfg.Addr,
		Handler:           NewRouter(src, logger),
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
}

// NewRouter registers the admin routes. The /ws tap sits on the plain mux
// because the upgrade hijacks the connection, which gin's writer refuses
// once the 101 status has gone out.
func NewRouter(src Sources, logger *zerolog.Logger) stdhttp.Handler {
	mux := stdhttp.NewServeMux()
	if src.Hub != nil {
		mux.Handle("/ws", NewWSHandler(src.Hub, src.NodeID, logger))
	}
	mux.Handle("/", newGinRouter(src, logger))
	return mux
}

func newGinRouter(src Sources, logger *zerolog.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), LoggerMiddleware(logger))

	router.GET("/health", healthHandler)
	router.GET("/stats", statsHandler(src))
	if src.Gatherer != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(src.Gatherer, promhttp.HandlerOpts{})))
	}
	return router
}

func healthHandler(c *gin.Context) {
	c.String(stdhttp.StatusOK, "ok")
}

func statsHandler(src Sources) gin.HandlerFunc {
	return func(c *gin.Context) {
		var stats Stats
		if src.Stats != nil {
			stats = src.Stats()
		}
		if stats.Node == "" {
			stats.Node = src.NodeID
		}
		if src.Hub != nil {
			stats.Observers = src.Hub.Clients()
			stats.TapDropped = src.Hub.Dropped()
		}
		c.JSON(stdhttp.StatusOK, stats)
	}
}
