package rest

import (
	"github.com/gin-gonic/gin"

	"github.com/docuflow/backend/internal/application/services"
	"github.com/docuflow/backend/pkg/constants"
)

// StatsHandler handles the aggregate workflow statistics endpoint
type StatsHandler struct {
	svc *services.StatsService
}

// NewStatsHandler creates a new StatsHandler
func NewStatsHandler(svc *services.StatsService) *StatsHandler {
	return &StatsHandler{svc: svc}
}

// GetStats handles GET /api/workflow-stats
func (h *StatsHandler) GetStats(c *gin.Context) {
	user := GetUserFromContext(c)
	HandleGetEnvelope(c, constants.ResponseData, func() (interface{}, error) {
		return h.svc.GetStats(c.Request.Context(), user)
	})
}
