package handlers

import (
	"nutricoach/internal/adapters/http/middleware"
	"nutricoach/internal/core/domain"
	"nutricoach/internal/core/services"
	"nutricoach/internal/pkg/pagination"
	"nutricoach/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

// ClientHandler serves client records scoped by the caller's role
type ClientHandler struct {
	clientService *services.ClientService
}

// NewClientHandler creates a new client handler
func NewClientHandler(clientService *services.ClientService) *ClientHandler {
	return &ClientHandler{clientService: clientService}
}

// List returns the clients visible to the caller
// @Summary List clients
// @Description Admins see every client, coaches see their assigned clients
// @Tags Clients
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param page query int false "Page number" default(1)
// @Param limit query int false "Items per page" default(20)
// @Param X-Act-As-Role header string false "Role an administrator acts as"
// @Success 200 {object} response.Response
// @Failure 401 {object} response.Response
// @Failure 403 {object} response.Response
// @Router /clients [get]
func (h *ClientHandler) List(c *fiber.Ctx) error {
	rc, ok := middleware.GetRoleContext(c)
	if !ok {
		return response.FromError(c, domain.ErrNoToken)
	}

	params := pagination.GetParams(c)
	clients, total, err := h.clientService.List(c.UserContext(), rc, params.Offset, params.Limit)
	if err != nil {
		return response.FromError(c, err)
	}

	return response.Success(c, "Clients retrieved successfully", pagination.NewResponse(clients, params, total))
}

// Get returns one client if the caller may act on it
// @Summary Get client
// @Description Admins, the client itself, or an assigned coach may read a client
// @Tags Clients
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Client ID"
// @Success 200 {object} response.Response
// @Failure 401 {object} response.Response
// @Failure 403 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /clients/{id} [get]
func (h *ClientHandler) Get(c *fiber.Ctx) error {
	rc, ok := middleware.GetRoleContext(c)
	if !ok {
		return response.FromError(c, domain.ErrNoToken)
	}

	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return response.BadRequest(c, "Invalid client ID")
	}

	client, err := h.clientService.Get(c.UserContext(), rc, uint(id))
	if err != nil {
		return response.FromError(c, err)
	}

	return response.Success(c, "Client retrieved successfully", client)
}
