package handlers

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"practice-service/internal/planner"
	"practice-service/internal/service"
)

type PlanHandler struct {
	Service *service.PlanService
}

func NewPlanHandler(s *service.PlanService) *PlanHandler {
	return &PlanHandler{Service: s}
}

// WeeklyPlan handles GET /api/plan/weekly/:childId. A missing plan is a 200
// with a null plan: the client renders a neutral empty state.
func (h *PlanHandler) WeeklyPlan(c *gin.Context) {
	childID := c.Param("childId")

	opts := planner.Options{
		FocusMode: planner.FocusMode(c.DefaultQuery("focusMode", string(planner.FocusBalanced))),
	}
	if raw := c.Query("days"); raw != "" {
		opts.ActiveDays = strings.Split(raw, ",")
	}
	if raw := c.Query("dailyMinutes"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil {
			opts.DailyMinutes = v
		}
	}
	if raw := c.Query("maxActivities"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil {
			opts.MaxActivitiesPerDay = v
		}
	}

	plan := h.Service.WeeklyPlan(context.Background(), childID, opts)
	c.JSON(http.StatusOK, gin.H{"plan": plan})
}

// Heatmap handles GET /api/progress/heatmap/:childId.
func (h *PlanHandler) Heatmap(c *gin.Context) {
	rows, err := h.Service.Heatmap(context.Background(), c.Param("childId"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load heatmap"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"topics": rows, "count": len(rows)})
}
