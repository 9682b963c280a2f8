package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"github.com/snehaa-shrestha/Receipt-Analyzer/internal/async"
	"github.com/snehaa-shrestha/Receipt-Analyzer/internal/export"
	"github.com/snehaa-shrestha/Receipt-Analyzer/internal/ingest"
	"github.com/snehaa-shrestha/Receipt-Analyzer/internal/pipeline"
	"github.com/snehaa-shrestha/Receipt-Analyzer/internal/repository"
)

// Deps are the collaborators the HTTP API needs.
type Deps struct {
	DB        *repository.DB
	Processor *pipeline.Processor
	Ingestor  ingest.Ingestor
	Queue     async.Queue
	Records   repository.RecordRepository
	Files     repository.ReceiptFileRepository
	Export    *export.Service
	Gatherer  prometheus.Gatherer
	UploadDir string

	// UploadLimiter throttles POST /v1/receipts; nil disables throttling.
	UploadLimiter *rate.Limiter
	Logger        *slog.Logger
}

type handler struct {
	Deps
}

// NewRouter wires the HTTP API.
func NewRouter(deps Deps) *gin.Engine {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	h := &handler{Deps: deps}

	r := gin.New()
	r.Use(gin.Recovery(), requestID(), accessLog(deps.Logger))

	r.GET("/healthz", h.health)
	if deps.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{})))
	}

	v1 := r.Group("/v1")
	v1.POST("/extract", h.extract)
	v1.POST("/receipts", rateLimit(deps.UploadLimiter), h.upload)
	v1.GET("/receipts", h.listReceipts)
	v1.GET("/receipts/:id", h.getReceipt)
	v1.DELETE("/receipts/:id", h.deleteReceipt)
	v1.GET("/export.xlsx", h.exportXLSX)
	return r
}

// NewHTTPServer wraps handler with the configured timeouts.
func NewHTTPServer(addr string, handler http.Handler, readTimeout, writeTimeout time.Duration) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadTimeout:       readTimeout,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      writeTimeout,
	}
}
