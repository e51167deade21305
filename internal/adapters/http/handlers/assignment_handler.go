package handlers

import (
	"nutricoach/internal/core/services"
	"nutricoach/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

// AssignmentHandler manages coach/client assignments (admin only)
type AssignmentHandler struct {
	assignmentService *services.AssignmentService
}

// NewAssignmentHandler creates a new assignment handler
func NewAssignmentHandler(assignmentService *services.AssignmentService) *AssignmentHandler {
	return &AssignmentHandler{assignmentService: assignmentService}
}

// AssignRequest represents an assignment request body
type AssignRequest struct {
	CoachID  uint `json:"coach_id"`
	ClientID uint `json:"client_id"`
}

// Assign links a coach to a client
// @Summary Assign coach to client
// @Tags Assignments
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body AssignRequest true "Assignment"
// @Success 201 {object} response.Response
// @Failure 400 {object} response.Response
// @Failure 403 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /assignments [post]
func (h *AssignmentHandler) Assign(c *fiber.Ctx) error {
	var req AssignRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if req.CoachID == 0 || req.ClientID == 0 {
		return response.BadRequest(c, "coach_id and client_id are required")
	}

	if err := h.assignmentService.Assign(c.UserContext(), req.CoachID, req.ClientID); err != nil {
		return response.FromError(c, err)
	}

	return response.Created(c, "Coach assigned successfully", req)
}

// Unassign removes a coach/client link
// @Summary Unassign coach from client
// @Tags Assignments
// @Produce json
// @Security BearerAuth
// @Param coachId path int true "Coach ID"
// @Param clientId path int true "Client ID"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.Response
// @Failure 403 {object} response.Response
// @Router /assignments/{coachId}/{clientId} [delete]
func (h *AssignmentHandler) Unassign(c *fiber.Ctx) error {
	coachID, err1 := c.ParamsInt("coachId")
	clientID, err2 := c.ParamsInt("clientId")
	if err1 != nil || err2 != nil || coachID <= 0 || clientID <= 0 {
		return response.BadRequest(c, "Invalid assignment IDs")
	}

	if err := h.assignmentService.Unassign(c.UserContext(), uint(coachID), uint(clientID)); err != nil {
		return response.FromError(c, err)
	}

	return response.Success(c, "Coach unassigned successfully", nil)
}
