package api

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/nhle/issue-rest/internal/errcol"
)

const (
	maxBodySize     = 1 << 20 // 1MB
	requestIDHeader = "X-Request-Id"
	userHeader      = "X-Remote-User"
)

// requestLogger tags each request with an id and logs it when done.
func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.New().String()
		}
		c.Header(requestIDHeader, id)
		c.Set("requestID", id)

		start := time.Now()
		c.Next()

		logger.Info("request",
			"id", id,
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}

// validateBody checks the JSON body against the operation's schema and
// puts it back for the handler.
func (s *Server) validateBody(operationID string) gin.HandlerFunc {
	return func(c *gin.Context) {
		body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxBodySize+1))
		if err != nil {
			s.abort(c, errcol.Of("Could not read request body", errcol.ValidationFailed))
			return
		}
		if len(body) > maxBodySize {
			s.abort(c, errcol.Of("Request body is too large", errcol.ValidationFailed))
			return
		}
		if err := s.validator.ValidateBody(operationID, body); err != nil {
			s.abort(c, errcol.Of(err.Error(), errcol.ValidationFailed))
			return
		}
		c.Request.Body = io.NopCloser(bytes.NewReader(body))
		c.Next()
	}
}

func (s *Server) abort(c *gin.Context, errs *errcol.Collection) {
	c.AbortWithStatusJSON(errs.Status(), errs.Body())
}

// writeError maps err to a response: error collections keep their status
// and body, anything else is a 500.
func (s *Server) writeError(c *gin.Context, err error) {
	var errs *errcol.Collection
	if errors.As(err, &errs) {
		c.JSON(errs.Status(), errs.Body())
		return
	}
	s.logger.Error("request failed", "path", c.Request.URL.Path, "error", err)
	c.JSON(http.StatusInternalServerError, errcol.Of("Internal server error", errcol.ServerError).Body())
}

// author names the user a change is recorded for. Authentication happens in
// front of this service.
func author(c *gin.Context) string {
	return c.GetHeader(userHeader)
}
