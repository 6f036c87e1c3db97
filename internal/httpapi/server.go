package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"capture-scheduler-go/internal/api"
	"capture-scheduler-go/internal/models"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
)

// Server exposes the capture service over HTTP/1.1 and cleartext HTTP/2
type Server struct {
	service *api.CaptureService
	server  *http.Server
	cfg     models.HTTPConfig
}

func NewServer(cfg models.HTTPConfig, service *api.CaptureService) *Server {
	s := &Server{service: service, cfg: cfg}
	s.server = &http.Server{
		Addr:         cfg.Addr,
		Handler:      h2c.NewHandler(s.Router(), &http2.Server{}),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	return s
}

// Router builds the route table
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)

	r.Get("/healthz", s.handleHealth)

	r.Route("/v1", func(r chi.Router) {
		r.Get("/scheduler/status", s.handleSchedulerStatus)

		r.Route("/users/{user}", func(r chi.Router) {
			r.Route("/schedules", func(r chi.Router) {
				r.Post("/", s.handleCreateSchedule)
				r.Get("/", s.handleListSchedules)
				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", s.handleGetSchedule)
					r.Patch("/", s.handleUpdateSchedule)
					r.Delete("/", s.handleDeleteSchedule)
					r.Post("/pause", s.handlePauseSchedule)
					r.Post("/resume", s.handleResumeSchedule)
				})
			})

			r.Post("/captures", s.handleTriggerCapture)
			r.Get("/sessions", s.handleListSessions)
			r.Get("/sessions/{id}", s.handleGetSession)
			r.Get("/photos", s.handleListPhotos)

			r.Get("/consents/current", s.handleCurrentConsent)
			r.Post("/consents", s.handleGrantConsent)
			r.Post("/consents/{version}/revoke", s.handleRevokeConsent)

			r.Get("/balance", s.handleBalance)
			r.Get("/earnings", s.handleEarnings)
		})
	})
	return r
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully
func (s *Server) ListenAndServe(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.cfg.Addr, err)
	}
	return s.Serve(ctx, listener)
}

func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	errCh := make(chan error, 1)
	go func() {
		zap.L().Info("HTTP API listening", zap.String("addr", listener.Addr().String()))
		errCh <- s.server.Serve(listener)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	timeout := s.cfg.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	zap.L().Info("Shutting down HTTP API")
	if err := s.server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down HTTP API: %w", err)
	}
	return nil
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		zap.L().Debug("HTTP request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("proto", r.Proto),
			zap.Int("status", ww.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())))
	})
}
