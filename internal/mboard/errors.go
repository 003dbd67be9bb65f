package mboard

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/michae-lzhou/Task-Board/internal/logging"
	"github.com/michae-lzhou/Task-Board/internal/rules"
)

const (
	msgInvalidInput = "invalid input"
	msgUnexpected   = "an unexpected error occurred"
)

func statusFor(err error) int {
	switch {
	case errors.Is(err, rules.ErrNotFound):
		return http.StatusNotFound
	case rules.IsRulesError(err):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes the response for a failed operation. Rules failures
// carry their message to the client; anything else is logged and hidden.
func (s *Server) respondError(c *gin.Context, err error) {
	status := statusFor(err)
	fields := []zap.Field{
		zap.String("path", c.FullPath()),
		zap.String("request_id", logging.GetRequestID(c)),
		zap.Error(err),
	}

	if status == http.StatusInternalServerError {
		s.logger.Error("unexpected failure", fields...)
		_ = c.Error(err)
		c.JSON(status, gin.H{"error": msgUnexpected})
		return
	}

	if errors.Is(err, rules.ErrAlreadyMember) || errors.Is(err, rules.ErrNotAMember) {
		s.logger.Info("membership precondition failed", fields...)
	} else {
		s.logger.Warn("request rejected", fields...)
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func (s *Server) invalidInput(c *gin.Context, err error) {
	s.logger.Debug("failed to bind input",
		zap.String("path", c.FullPath()),
		zap.Error(err),
	)
	c.JSON(http.StatusBadRequest, gin.H{"error": msgInvalidInput})
}
