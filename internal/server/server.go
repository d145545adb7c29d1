package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/sokinpui/codedrop/model"
)

const shutdownTimeout = 5 * time.Second

// App is the part of the submission pipeline the transport needs.
type App interface {
	Submit(ctx context.Context, payload string) (model.Disposition, error)
	History(n int) ([]model.JournalEntry, error)
	Busy() bool
	RepoRoot() string
	SaveRoot() string
	JournalPath() string
}

// Options configures a Server.
type Options struct {
	Addr         string
	AllowOrigins []string
	// Gatherer backs /metrics. The endpoint is not registered when nil.
	Gatherer prometheus.Gatherer
	Log      *logrus.Entry
}

// Server exposes the pipeline over HTTP.
type Server struct {
	app        App
	engine     *gin.Engine
	httpServer *http.Server
	log        *logrus.Entry
	startTime  time.Time
}

// New creates a Server and registers its routes.
func New(app App, opts Options) *Server {
	if opts.Log == nil {
		opts.Log = logrus.NewEntry(logrus.StandardLogger())
	}
	gin.SetMode(gin.ReleaseMode)

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(RequestID())
	engine.Use(AccessLog(opts.Log))

	if len(opts.AllowOrigins) > 0 {
		corsConfig := cors.DefaultConfig()
		corsConfig.AllowOrigins = opts.AllowOrigins
		corsConfig.AllowMethods = []string{http.MethodGet, http.MethodPost, http.MethodOptions}
		corsConfig.AllowHeaders = []string{"Origin", "Content-Type", RequestIDHeader}
		corsConfig.ExposeHeaders = []string{RequestIDHeader}
		engine.Use(cors.New(corsConfig))
	}

	s := &Server{
		app:       app,
		engine:    engine,
		log:       opts.Log,
		startTime: time.Now(),
	}
	s.httpServer = &http.Server{
		Addr:              opts.Addr,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.setupRoutes(opts.Gatherer)
	return s
}

func (s *Server) setupRoutes(gatherer prometheus.Gatherer) {
	s.engine.GET("/healthz", s.handleHealth)
	s.engine.POST("/submit", s.handleSubmit)
	s.engine.GET("/history", s.handleHistory)
	if gatherer != nil {
		s.engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	}
}

// Handler returns the HTTP handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.WithField("addr", s.httpServer.Addr).Info("listening")
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return <-errCh
}
