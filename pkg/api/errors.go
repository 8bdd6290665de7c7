package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kingston-civic/civicsim/pkg/agents"
	"github.com/kingston-civic/civicsim/pkg/backboard"
	"github.com/kingston-civic/civicsim/pkg/jobs"
	"github.com/kingston-civic/civicsim/pkg/session"
	"github.com/kingston-civic/civicsim/pkg/store"
)

// abortWithError maps service-layer errors to HTTP error responses.
func (s *Server) abortWithError(c *gin.Context, err error) {
	var statusErr *backboard.StatusError
	switch {
	case errors.As(err, &statusErr):
		c.AbortWithStatusJSON(http.StatusBadGateway, gin.H{"error": statusErr.Error()})
	case errors.Is(err, agents.ErrUnknownAgent):
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, jobs.ErrNotFound), errors.Is(err, session.ErrNotFound), errors.Is(err, store.ErrNotFound):
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": err.Error()})
	default:
		s.logger.Error("Unexpected service error", "path", c.Request.URL.Path, "error", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}

func badRequest(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": message})
}

// storageUnavailable rejects operations that require the database when
// the server started without one.
func storageUnavailable(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "storage unavailable"})
}
