// Package api serves the analysis service over HTTP.
package api

import (
	"context"
	stderrors "errors"
	"net/http"
	"sync"
	"time"

	"floodcv/app"
	"floodcv/internal"
	"floodcv/internal/errors"

	"github.com/gin-gonic/gin"
)

// Server is the JSON API over one analysis service. It holds the current
// session; runs started through it are tracked by the registry.
type Server struct {
	router  *gin.Engine
	service *app.AnalysisService
	runs    *app.RunRegistry
	hub     *SSEHub
	logger  *internal.Logger

	mu      sync.RWMutex
	session *app.Session
}

// NewServer wires the routes. The registry's observer is set to the SSE hub.
func NewServer(service *app.AnalysisService, runs *app.RunRegistry, logger *internal.Logger) *Server {
	s := &Server{
		router:  gin.New(),
		service: service,
		runs:    runs,
		hub:     NewSSEHub(logger),
		logger:  logger.Named("API"),
	}
	runs.SetObserver(NewSSERunObserver(s.hub))
	s.router.Use(gin.Recovery(), s.requestLogger())
	s.setupRoutes()
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) setupRoutes() {
	s.router.GET("/healthz", s.health)

	api := s.router.Group("/api")
	api.POST("/session", s.loadSession)
	api.GET("/session", s.getSession)
	api.GET("/folds", s.listFolds)
	api.GET("/folds/inner", s.innerSplits)
	api.GET("/features/correlation", s.featureCorrelation)
	api.GET("/features/ranges", s.featureRanges)

	api.POST("/studies", s.startExperiment)
	api.GET("/studies", s.listStudies)
	api.GET("/studies/:id", s.getStudy)
	api.GET("/studies/:id/folds", s.getStudyFolds)
	api.GET("/studies/:id/analytics", s.getStudyAnalytics)
	api.DELETE("/studies/:id", s.deleteStudy)

	api.POST("/evaluations", s.startEvaluation)
	api.POST("/importance", s.startImportance)

	api.GET("/runs", s.listRuns)
	api.GET("/runs/:id", s.getRun)
	api.DELETE("/runs/:id", s.cancelRun)
	api.GET("/runs/:id/events", s.hub.HandleSSE)
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug("%s %s -> %d (%s)", c.Request.Method, c.Request.URL.Path, c.Writer.Status(), time.Since(start))
	}
}

// ListenAndServe serves on addr until ctx is done, then shuts down
// gracefully. Background runs are left running.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.router, ReadHeaderTimeout: 10 * time.Second}
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening on %s", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if stderrors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s.hub.Close()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(err, "failed to shut down server")
	}
	return nil
}

func (s *Server) currentSession() (*app.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.session == nil {
		return nil, errors.Conflict("no session loaded; POST /api/session first")
	}
	return s.session, nil
}

func respondError(c *gin.Context, err error) {
	appErr := errors.FromDomain(err)
	c.JSON(errors.HTTPStatus(appErr), gin.H{"error": appErr.Message, "code": appErr.Code})
}
