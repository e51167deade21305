package handlers

import (
	"nutricoach/internal/adapters/http/middleware"
	"nutricoach/internal/core/domain"
	"nutricoach/internal/core/services"
	"nutricoach/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

// DashboardHandler handles dashboard endpoints
type DashboardHandler struct {
	dashboardService *services.DashboardService
}

// NewDashboardHandler creates a new dashboard handler
func NewDashboardHandler(dashboardService *services.DashboardService) *DashboardHandler {
	return &DashboardHandler{
		dashboardService: dashboardService,
	}
}

// GetDashboard returns the caller's dashboard
// @Summary Dashboard
// @Description Admins get user counts per role, coaches their clients, clients their coaches
// @Tags Dashboard
// @Accept json
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Response
// @Failure 401 {object} response.Response
// @Router /dashboard [get]
func (h *DashboardHandler) GetDashboard(c *fiber.Ctx) error {
	rc, ok := middleware.GetRoleContext(c)
	if !ok {
		return response.FromError(c, domain.ErrNoToken)
	}

	data, err := h.dashboardService.Get(c.UserContext(), rc)
	if err != nil {
		return response.FromError(c, err)
	}

	return response.Success(c, "Dashboard retrieved successfully", data)
}
