package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/joseph-ayodele/gig-earnings-audit/constants"
	"github.com/joseph-ayodele/gig-earnings-audit/internal/app"
	"github.com/joseph-ayodele/gig-earnings-audit/internal/async"
	"github.com/joseph-ayodele/gig-earnings-audit/internal/common"
	"github.com/joseph-ayodele/gig-earnings-audit/internal/ingest"
	"github.com/joseph-ayodele/gig-earnings-audit/internal/pipeline"
	"github.com/joseph-ayodele/gig-earnings-audit/internal/server"
)

func main() {
	cfg := common.LoadConfig()
	logger := app.NewLogger(cfg.Log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("startup failed", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	var wg sync.WaitGroup

	// gRPC health
	grpcServer, hs := server.NewGRPCServer()
	lis, err := net.Listen("tcp", cfg.Server.GRPCAddr)
	if err != nil {
		logger.Error("failed to listen on address", "addr", cfg.Server.GRPCAddr, "error", err)
		os.Exit(1)
	}
	wg.Add(2)
	go func() {
		defer wg.Done()
		server.WatchHealth(ctx, hs, func(ctx context.Context) error {
			return a.DB.HealthCheck(ctx, 3*time.Second)
		}, 15*time.Second, logger)
	}()
	go func() {
		defer wg.Done()
		logger.Info("grpc health listening", "addr", cfg.Server.GRPCAddr)
		if err := grpcServer.Serve(lis); err != nil {
			logger.Error("grpc server stopped", "error", err)
		}
	}()

	// inbox watcher
	var queue *async.ProcessorQueue
	if dir := cfg.Ingest.InboxDir; dir != "" {
		queue = async.NewProcessorQueue(a.Processor, logger,
			async.WithWorkers(cfg.Ingest.Workers),
			async.WithQueueSize(cfg.Ingest.QueueSize),
			async.WithProcessTimeout(cfg.Ingest.ProcessLimit),
			async.WithAutoAudit(a.Processor),
			async.WithResultHook(func(job async.Job, res *pipeline.Result, err error) {
				if err != nil {
					logger.Warn("inbox.file.failed", "path", job.Path, "error", err)
				}
			}),
		)
		paths, errs, err := ingest.StartWatcher(ctx, ingest.WatchConfig{
			Roots:       []string{dir},
			AllowedExts: constants.AllowedExtensions,
			InitialScan: true,
			Debounce:    cfg.Ingest.Debounce,
			Logger:      logger,
		})
		if err != nil {
			logger.Error("failed to start inbox watcher", "dir", dir, "error", err)
			os.Exit(1)
		}
		wg.Add(2)
		go func() {
			defer wg.Done()
			ingest.Feed(ctx, paths, queue, dir, "inbox", "", logger)
		}()
		go func() {
			defer wg.Done()
			for err := range errs {
				logger.Warn("inbox.watch.error", "error", err)
			}
		}()
		logger.Info("inbox watching", "dir", dir, "workers", cfg.Ingest.Workers)
	}

	srv := server.New(a.Processor, a.Store, a.Exporter, server.Config{
		CORSOrigin:     cfg.Server.CORSOrigin,
		RateLimitRPS:   cfg.Server.RateLimitRPS,
		RateLimitBurst: cfg.Server.RateLimitBurst,
		MaxBodyBytes:   constants.MaxUploadBytes + 1<<20,
	}, logger)
	httpServer := srv.HTTPServer(cfg.Server.HTTPAddr)
	go func() {
		logger.Info("http listening", "addr", cfg.Server.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", "error", err)
	}
	grpcServer.GracefulStop()
	wg.Wait()
	if queue != nil {
		queue.Shutdown(shutdownCtx)
	}
	logger.Info("stopped")
}
