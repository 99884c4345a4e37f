package main

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"talentpulse/internal/common"
	"talentpulse/internal/wire"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

func main() {
	app, cleanup, err := wire.InitializeNotifsApp()
	if err != nil {
		log.Fatalf("Failed to initialize notification service: %v", err)
	}
	defer cleanup()

	logger := app.Logger
	cfg := app.Config

	r := mux.NewRouter()
	r.Use(loggingMiddleware(logger))
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		common.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}).Methods(http.MethodGet)
	r.Handle("/ws/notifications", app.Socket)
	app.Handler.RegisterRoutes(r, common.BearerAuth([]byte(cfg.JWT.Secret)))

	internal := mux.NewRouter()
	internal.Use(loggingMiddleware(logger))
	app.Handler.RegisterInternalRoutes(internal, common.ServiceAuth(cfg.JWT.ServiceToken))
	if cfg.JWT.ServiceToken == "" {
		logger.Warn("INTERNAL_SERVICE_TOKEN not set, internal ingest rejects every request")
	}

	srv := &http.Server{
		Addr:         net.JoinHostPort(cfg.Server.Host, cfg.Server.NotifServicePort),
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}
	internalSrv := &http.Server{
		Addr:         net.JoinHostPort(cfg.Server.Host, cfg.Server.InternalPort),
		Handler:      internal,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	ctx, stop := context.WithCancel(context.Background())
	var workers sync.WaitGroup

	workers.Add(1)
	go func() {
		defer workers.Done()
		app.Digest.Run(ctx)
	}()

	if cfg.RabbitMQ.Enabled {
		workers.Add(1)
		go func() {
			defer workers.Done()
			if err := app.Consumer.Run(ctx); err != nil {
				logger.Error("event consumer stopped", zap.Error(err))
			}
		}()
	}

	go func() {
		logger.Info("notification service listening",
			zap.String("addr", srv.Addr),
			zap.Bool("amqp_consumer", cfg.RabbitMQ.Enabled))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("failed to serve", zap.Error(err))
		}
	}()

	go func() {
		logger.Info("internal ingest listening", zap.String("addr", internalSrv.Addr))
		if err := internalSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("failed to serve internal ingest", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down notification service")
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	app.Realtime.CloseAll()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown incomplete", zap.Error(err))
	}
	if err := internalSrv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("internal http shutdown incomplete", zap.Error(err))
	}
	workers.Wait()
	app.Service.Shutdown(shutdownCtx)
	logger.Info("notification service stopped")
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

// loggingMiddleware skips the websocket route; the upgrader needs the raw
// writer to hijack.
func loggingMiddleware(logger *zap.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/ws/notifications" {
				next.ServeHTTP(w, r)
				return
			}
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)
			logger.Debug("request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", rec.status),
				zap.Duration("duration", time.Since(start)))
		})
	}
}
