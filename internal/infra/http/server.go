package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Spok95/batch-weighing/internal/domain/archive"
	"github.com/Spok95/batch-weighing/internal/domain/catalog"
	"github.com/Spok95/batch-weighing/internal/domain/packaging"
	"github.com/Spok95/batch-weighing/internal/domain/process"
	"github.com/Spok95/batch-weighing/internal/infra/listeners"
	"github.com/Spok95/batch-weighing/internal/infra/metrics"
)

// Deps are the services behind the API. Listeners and Metrics are optional.
type Deps struct {
	Catalog   *catalog.Service
	Processes *process.Service
	Archive   *archive.Service
	Packaging *packaging.Service
	Listeners *listeners.Registry
	Metrics   *metrics.Metrics
	Log       *slog.Logger
}

type Server struct {
	srv *http.Server
}

func New(addr string, d Deps) *Server {
	return &Server{srv: &http.Server{
		Addr:              addr,
		Handler:           NewRouter(d),
		ReadHeaderTimeout: 10 * time.Second,
	}}
}

func NewRouter(d Deps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestLogger(d.Log, d.Metrics))
	r.Use(cors())

	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "OK")
	})
	if d.Metrics != nil {
		r.GET("/metrics", gin.WrapH(d.Metrics.Handler()))
	}

	api := r.Group("/api")

	ch := &catalogHandler{svc: d.Catalog, log: d.Log}
	api.POST("/product", ch.create)
	api.GET("/products", ch.list)
	api.POST("/products/import", ch.importXLSX)
	api.GET("/product/:no", ch.get)
	api.PUT("/product/:id", ch.update)
	api.DELETE("/product/:id", ch.delete)
	api.DELETE("/product/:id/material/:materialId", ch.deleteMaterialLink)
	api.GET("/materials", ch.materials)

	ph := &processHandler{svc: d.Processes}
	api.POST("/weighing-process/start", ph.start)
	api.POST("/weighing-process/stop", ph.stop)
	api.POST("/material-weighing/start", ph.beginWeighing)
	api.POST("/material-weighing/stop", ph.endWeighing)
	api.POST("/material-weighing/cancel", ph.cancelWeighing)
	api.GET("/process/:id", ph.get)

	ah := &archiveHandler{svc: d.Archive}
	api.GET("/sap-list", ah.list)
	api.GET("/sap/export", ah.export)
	api.GET("/sap/:id", ah.get)

	if d.Packaging != nil {
		api.GET("/packaging", func(c *gin.Context) {
			items, err := d.Packaging.List(c.Request.Context())
			if err != nil {
				fail(c, err)
				return
			}
			c.JSON(http.StatusOK, gin.H{"message": "Success", "data": items})
		})
	}

	if d.Listeners != nil {
		lh := &listenerHandler{reg: d.Listeners}
		api.GET("/listeners", lh.list)
		api.POST("/listeners/tcp", lh.startTCP)
		api.DELETE("/listeners/tcp/:port", lh.stopTCP)
		api.GET("/scale/latest", lh.latest)
	}
	return r
}

func (s *Server) Start() error {
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
