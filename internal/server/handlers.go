package server

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/sokinpui/codedrop/codedrop"
	"github.com/sokinpui/codedrop/model"
)

const defaultHistoryLimit = 20

// SubmitRequest is the body of POST /submit.
type SubmitRequest struct {
	Content string `json:"content"`
}

// ErrorResponse is returned for every non-2xx answer.
type ErrorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":       "ok",
		"busy":         s.app.Busy(),
		"uptime":       int64(time.Since(s.startTime).Seconds()),
		"working_root": s.app.RepoRoot(),
		"save_dir":     s.app.SaveRoot(),
		"journal":      s.app.JournalPath(),
	})
}

func (s *Server) handleSubmit(c *gin.Context) {
	requestID := c.GetString(requestIDKey)

	var req SubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.fail(c, http.StatusBadRequest, "invalid request: "+err.Error())
		return
	}

	ctx := codedrop.WithSubmissionID(c.Request.Context(), requestID)
	d, err := s.app.Submit(ctx, req.Content)
	if err != nil {
		var detailed *codedrop.DetailedError
		switch {
		case errors.Is(err, codedrop.ErrEmptyPayload):
			s.fail(c, http.StatusBadRequest, err.Error())
		case errors.Is(err, codedrop.ErrGateTimeout):
			s.fail(c, http.StatusServiceUnavailable, err.Error())
		case errors.As(err, &detailed):
			s.log.WithField("request_id", requestID).WithError(err).Errorf("submission panicked\n%s", detailed.Stack)
			s.fail(c, http.StatusInternalServerError, err.Error())
		default:
			s.fail(c, http.StatusInternalServerError, err.Error())
		}
		return
	}
	c.JSON(http.StatusOK, d)
}

func (s *Server) handleHistory(c *gin.Context) {
	limit := defaultHistoryLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			s.fail(c, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	entries, err := s.app.History(limit)
	if err != nil {
		s.fail(c, http.StatusInternalServerError, err.Error())
		return
	}
	if entries == nil {
		entries = []model.JournalEntry{}
	}
	c.JSON(http.StatusOK, gin.H{"entries": entries})
}

func (s *Server) fail(c *gin.Context, status int, msg string) {
	c.JSON(status, ErrorResponse{Error: msg, RequestID: c.GetString(requestIDKey)})
}
