package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"practice-service/internal/service"
	"practice-service/internal/session"
)

type SessionHandler struct {
	Runtime *service.SessionRuntime
}

func NewSessionHandler(runtime *service.SessionRuntime) *SessionHandler {
	return &SessionHandler{Runtime: runtime}
}

// Start activates a pending session and returns its first question.
func (h *SessionHandler) Start(c *gin.Context) {
	mgr, err := h.Runtime.Start(context.Background(), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"state":    mgr.State(),
		"question": mgr.CurrentQuestion(),
		"snapshot": mgr.Snapshot(),
	})
}

// SubmitAnswer records an answer for the current question.
func (h *SessionHandler) SubmitAnswer(c *gin.Context) {
	var body struct {
		AnswerID string `json:"answerId" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "answerId is required"})
		return
	}

	outcome, err := h.Runtime.SubmitAnswer(context.Background(), c.Param("id"), body.AnswerID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"correct":          outcome.Correct,
		"timeTakenSeconds": outcome.TimeTakenSeconds,
		"questionId":       outcome.QuestionID,
	})
}

// Next advances to the next question, completing the session on the last one.
func (h *SessionHandler) Next(c *gin.Context) {
	mgr, err := h.Runtime.Get(context.Background(), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}

	done, err := mgr.Next()
	if err != nil {
		h.writeError(c, err)
		return
	}
	if done {
		c.JSON(http.StatusOK, gin.H{"completed": true})
		return
	}
	c.JSON(http.StatusOK, gin.H{"completed": false, "question": mgr.CurrentQuestion()})
}

// Previous moves back one question.
func (h *SessionHandler) Previous(c *gin.Context) {
	mgr, err := h.Runtime.Get(context.Background(), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	if err := mgr.Previous(); err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"question": mgr.CurrentQuestion()})
}

func (h *SessionHandler) Pause(c *gin.Context) {
	mgr, err := h.Runtime.Get(context.Background(), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	if err := mgr.Pause(); err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"state": mgr.State()})
}

func (h *SessionHandler) Resume(c *gin.Context) {
	mgr, err := h.Runtime.Get(context.Background(), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	if err := mgr.Resume(); err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"state": mgr.State()})
}

// Complete forces completion (early submit). Blocks until acknowledged.
func (h *SessionHandler) Complete(c *gin.Context) {
	snap, err := h.Runtime.Complete(context.Background(), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"completed": true,
		"answered":  len(snap.Answers),
		"elapsed":   snap.ElapsedSeconds,
	})
}

// Status returns the live snapshot, restoring from the cache mirror if this
// process lost the session.
func (h *SessionHandler) Status(c *gin.Context) {
	mgr, err := h.Runtime.Get(context.Background(), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, mgr.Snapshot())
}

func (h *SessionHandler) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrSessionNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Session not found"})
	case errors.Is(err, session.ErrNotActive):
		c.JSON(http.StatusConflict, gin.H{"error": "Session is not active"})
	case errors.Is(err, session.ErrAlreadyComplete):
		c.JSON(http.StatusConflict, gin.H{"error": "Session already complete"})
	case errors.Is(err, session.ErrAlreadyStarted):
		c.JSON(http.StatusConflict, gin.H{"error": "Session already started"})
	case errors.Is(err, session.ErrUnknownOption):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Answer does not match any option"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
