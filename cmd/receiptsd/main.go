package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/snehaa-shrestha/Receipt-Analyzer/internal/async"
	"github.com/snehaa-shrestha/Receipt-Analyzer/internal/common"
	"github.com/snehaa-shrestha/Receipt-Analyzer/internal/export"
	"github.com/snehaa-shrestha/Receipt-Analyzer/internal/extract"
	"github.com/snehaa-shrestha/Receipt-Analyzer/internal/ingest"
	"github.com/snehaa-shrestha/Receipt-Analyzer/internal/metrics"
	"github.com/snehaa-shrestha/Receipt-Analyzer/internal/ocr"
	"github.com/snehaa-shrestha/Receipt-Analyzer/internal/pipeline"
	repo "github.com/snehaa-shrestha/Receipt-Analyzer/internal/repository"
	"github.com/snehaa-shrestha/Receipt-Analyzer/internal/server"
)

func main() {
	cfg := common.LoadConfig()
	logger := common.NewLogger(cfg.SlogLevel())
	slog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(2)
	}
	if cfg.SlogLevel() > slog.LevelDebug {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("receiptsd exited", "error", err)
		os.Exit(1)
	}
	logger.Info("receiptsd stopped")
}

func run(ctx context.Context, cfg *common.Config, logger *slog.Logger) error {
	db, err := server.ConnectDB(ctx, cfg.Database, logger)
	if err != nil {
		return err
	}
	defer db.Close(logger)

	engine, err := extract.NewEngineFromConfig(cfg.Extraction, logger)
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m, err := metrics.New(reg)
	if err != nil {
		return err
	}

	filesRepo := repo.NewReceiptFileRepository(db, logger)
	jobsRepo := repo.NewExtractJobRepository(db, logger)
	recordsRepo := repo.NewRecordRepository(db, logger)

	ocrAdapter := extract.NewOCRAdapter(ocr.ConfigFrom(cfg.OCR), logger)
	processor := pipeline.NewProcessor(logger,
		pipeline.NewOCRStage(filesRepo, jobsRepo, ocrAdapter, m, logger),
		pipeline.NewExtractStage(logger, pipeline.Config{ReviewThreshold: cfg.Extraction.ReviewThreshold}, engine, recordsRepo, jobsRepo, m),
	)

	queue := async.NewProcessorQueue(processor, logger,
		async.WithWorkers(cfg.Ingest.Workers),
		async.WithQueueSize(cfg.Ingest.QueueSize),
		async.WithProcessTimeout(cfg.Ingest.ProcessTimeout),
		async.WithMetrics(m),
	)

	ingestor := ingest.NewFSIngestor(filesRepo, cfg.Ingest.UploadDir, logger)
	ingestor.MaxUploadBytes = cfg.Ingest.MaxUploadBytes

	if cfg.Ingest.InboxDir != "" {
		paths, watchErrs, err := ingest.StartWatcher(ctx, ingest.WatchConfig{
			Roots:       []string{cfg.Ingest.InboxDir},
			InitialScan: true,
			Debounce:    cfg.Ingest.Debounce,
		}, logger)
		if err != nil {
			queue.Shutdown(context.Background())
			return err
		}
		go ingest.WatchAndEnqueue(ctx, paths, ingestor, queue, logger)
		go func() {
			for err := range watchErrs {
				logger.Warn("ingest.watch.error", "error", err)
			}
		}()
		logger.Info("inbox watcher started", "dir", cfg.Ingest.InboxDir)
	}

	router := server.NewRouter(server.Deps{
		DB:            db,
		Processor:     processor,
		Ingestor:      ingestor,
		Queue:         queue,
		Records:       recordsRepo,
		Files:         filesRepo,
		Export:        export.NewService(recordsRepo, filesRepo, logger),
		Gatherer:      reg,
		UploadDir:     cfg.Ingest.UploadDir,
		UploadLimiter: rate.NewLimiter(rate.Limit(cfg.Server.UploadRPS), cfg.Server.UploadBurst),
		Logger:        logger,
	})
	httpSrv := server.NewHTTPServer(cfg.Server.HTTPAddr, router, cfg.Server.ReadTimeout, cfg.Server.WriteTimeout)

	grpcSrv, healthSrv := server.NewGRPCServer(logger)
	lis, err := net.Listen("tcp", cfg.Server.GRPCAddr)
	if err != nil {
		queue.Shutdown(context.Background())
		return err
	}
	healthSrv.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("http listening", "addr", cfg.Server.HTTPAddr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		logger.Info("grpc listening", "addr", cfg.Server.GRPCAddr)
		return grpcSrv.Serve(lis)
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		healthSrv.Shutdown()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("http shutdown", "error", err)
		}
		queue.Shutdown(shutdownCtx)
		grpcSrv.GracefulStop()
		return nil
	})
	return g.Wait()
}
