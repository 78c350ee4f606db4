package server

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/franckalain/mealscan/internal/config"
	"github.com/franckalain/mealscan/internal/diary"
	"github.com/franckalain/mealscan/internal/metrics"
	"github.com/franckalain/mealscan/internal/session"
)

const shutdownTimeout = 10 * time.Second

// UsageReader reports recognition usage per day.
type UsageReader interface {
	GetDailyUsage(days int) ([]metrics.DailyUsage, error)
}

type Server struct {
	cfg        *config.Config
	diary      *diary.Diary
	recognizer session.Recognizer
	usage      UsageReader
	policy     session.NonFoodPolicy
	log        logrus.FieldLogger

	router  *gin.Engine
	clients sync.Map // client id → *client
}

// New creates a server. usage may be nil when metrics are not stored.
func New(cfg *config.Config, d *diary.Diary, rec session.Recognizer, usage UsageReader, log logrus.FieldLogger) (*Server, error) {
	policy, err := session.ParsePolicy(cfg.Session.NonFoodPolicy)
	if err != nil {
		return nil, err
	}

	s := &Server{
		cfg:        cfg,
		diary:      d,
		recognizer: rec,
		usage:      usage,
		policy:     policy,
		log:        log,
	}
	s.router = s.setupRouter()

	if cfg.Server.Debug {
		log.Debug("Debug logging enabled")
	}
	return s, nil
}

// Handler returns the HTTP handler serving the API, the WebSocket and the
// static client.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:              ":" + s.cfg.Server.Port,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.WithField("port", s.cfg.Server.Port).Info("Starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.log.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	// Hijacked WebSocket connections are not tracked by Shutdown.
	s.clients.Range(func(_, v any) bool {
		v.(*client).conn.Close()
		return true
	})
	return srv.Shutdown(shutdownCtx)
}

// broadcast sends a message to every connected client.
func (s *Server) broadcast(msgType string, data any) {
	s.clients.Range(func(_, v any) bool {
		v.(*client).send(msgType, data)
		return true
	})
}
