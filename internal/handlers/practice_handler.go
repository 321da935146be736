package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"practice-service/internal/models"
	"practice-service/internal/selection"
	"practice-service/internal/service"
)

type PracticeHandler struct {
	Service *service.PracticeService
}

func NewPracticeHandler(s *service.PracticeService) *PracticeHandler {
	return &PracticeHandler{Service: s}
}

// SessionQuestions handles
// GET /api/practice/session-questions?childId&sessionType&subject&count
func (h *PracticeHandler) SessionQuestions(c *gin.Context) {
	childID := c.Query("childId")
	if childID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "childId is required"})
		return
	}

	sessionType := models.SessionType(c.DefaultQuery("sessionType", string(models.SessionQuick)))
	if !models.ValidSessionType(sessionType) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "sessionType must be quick, focus or mock"})
		return
	}

	criteria := selection.Criteria{
		ChildID:     childID,
		SessionType: sessionType,
		Subject:     c.Query("subject"),
	}
	if raw := c.Query("count"); raw != "" {
		count, err := strconv.Atoi(raw)
		if err != nil || count <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "count must be a positive integer"})
			return
		}
		criteria.Count = count
	}
	if difficulty := models.Tier(c.Query("difficulty")); difficulty != "" {
		if !models.ValidTier(difficulty) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "difficulty must be foundation, standard or challenge"})
			return
		}
		criteria.Difficulty = difficulty
	}

	result, err := h.Service.SelectQuestions(context.Background(), criteria)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to select questions"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"questions": result.Questions,
		"count":     len(result.Questions),
		"criteria":  criteria,
	})
}

// recommendationBody accepts both the legacy nested shape and the flat shape.
type recommendationBody struct {
	ChildID        string `json:"childId" binding:"required"`
	Recommendation *struct {
		Subject          string   `json:"subject"`
		Topics           []string `json:"topics"`
		Difficulty       string   `json:"difficulty"`
		EstimatedMinutes int      `json:"estimatedMinutes"`
	} `json:"recommendation"`
	Subject       string `json:"subject"`
	Topic         string `json:"topic"`
	QuestionCount int    `json:"questionCount"`
	Difficulty    string `json:"difficulty"`
}

// criteriaFromRecommendation normalizes the two accepted body shapes into
// selection criteria. The nested recommendation shape wins when present.
func criteriaFromRecommendation(body *recommendationBody) selection.Criteria {
	criteria := selection.Criteria{
		ChildID:     body.ChildID,
		SessionType: models.SessionFocus,
	}

	if body.Recommendation != nil {
		criteria.Subject = body.Recommendation.Subject
		criteria.Topics = body.Recommendation.Topics
		criteria.Difficulty = models.Tier(body.Recommendation.Difficulty)
		if body.Recommendation.EstimatedMinutes > 0 {
			// Roughly 1.5 minutes per question.
			criteria.Count = body.Recommendation.EstimatedMinutes * 2 / 3
		}
		return criteria
	}

	criteria.Subject = body.Subject
	if body.Topic != "" {
		criteria.Topics = []string{body.Topic}
	}
	criteria.Count = body.QuestionCount
	criteria.Difficulty = models.Tier(body.Difficulty)
	return criteria
}

// CreateFromRecommendation handles
// POST /api/practice/session/from-recommendation
func (h *PracticeHandler) CreateFromRecommendation(c *gin.Context) {
	var body recommendationBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request format",
			"details": err.Error(),
		})
		return
	}

	criteria := criteriaFromRecommendation(&body)
	if criteria.Difficulty != "" && !models.ValidTier(criteria.Difficulty) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "difficulty must be foundation, standard or challenge"})
		return
	}

	plan, err := h.Service.CreateSessionFromRecommendation(context.Background(), criteria)
	if errors.Is(err, service.ErrChildNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Child not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create session"})
		return
	}
	if plan == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "No questions match this recommendation"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":       true,
		"sessionId":     plan.SessionID,
		"questionCount": plan.QuestionCount,
		"redirect":      plan.Redirect,
		"questionIds":   plan.QuestionIDs,
	})
}
