// Package api exposes the issue, metadata and project resources over HTTP
// under /rest/api/2.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/nhle/issue-rest/internal/issue"
	"github.com/nhle/issue-rest/internal/meta"
	"github.com/nhle/issue-rest/internal/openapi"
	"github.com/nhle/issue-rest/internal/store"
)

// BasePath is the prefix of every resource.
const BasePath = "/rest/api/2"

// Server is the REST server.
type Server struct {
	store     store.Store
	issues    *issue.Service
	meta      *meta.Provider
	validator *openapi.Validator
	logger    *slog.Logger
	baseURL   string
	router    *gin.Engine
}

// NewServer wires the resources onto a gin engine.
func NewServer(st store.Store, issues *issue.Service, provider *meta.Provider, validator *openapi.Validator, logger *slog.Logger, baseURL string) *Server {
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(logger))

	s := &Server{
		store:     st,
		issues:    issues,
		meta:      provider,
		validator: validator,
		logger:    logger,
		baseURL:   baseURL,
		router:    router,
	}

	api := router.Group(BasePath)
	{
		api.POST("/issue", s.validateBody("createIssue"), s.handleCreateIssue)
		api.POST("/issue/bulk", s.validateBody("createIssues"), s.handleCreateIssues)
		api.GET("/issue/createmeta", s.handleCreateMeta)
		api.GET("/issue/:idOrKey", s.handleGetIssue)
		api.PUT("/issue/:idOrKey", s.validateBody("editIssue"), s.handleEditIssue)
		api.DELETE("/issue/:idOrKey", s.handleDeleteIssue)
		api.GET("/issue/:idOrKey/editmeta", s.handleEditMeta)
		api.GET("/issue/:idOrKey/transitions", s.handleGetTransitions)
		api.POST("/issue/:idOrKey/transitions", s.validateBody("doTransition"), s.handleDoTransition)

		api.GET("/project", s.handleGetProjects)
		api.GET("/project/:idOrKey", s.handleGetProject)
	}

	return s
}

// Handler returns the HTTP handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves on addr until ctx is cancelled.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
