package response

import (
	"errors"

	"nutricoach/internal/core/domain"
	"nutricoach/internal/pkg/password"

	"github.com/gofiber/fiber/v2"
)

// Response represents a standard API response
type Response struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
	Code    string      `json:"code,omitempty"`
}

// Success sends a success response
func Success(c *fiber.Ctx, message string, data interface{}) error {
	return c.JSON(Response{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// Created sends a 201 created response
func Created(c *fiber.Ctx, message string, data interface{}) error {
	return c.Status(fiber.StatusCreated).JSON(Response{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// ErrorWithCode sends an error response carrying a machine-readable code
func ErrorWithCode(c *fiber.Ctx, statusCode int, code, message string) error {
	return c.Status(statusCode).JSON(Response{
		Success: false,
		Error:   message,
		Code:    code,
	})
}

// FromError maps a domain error to its status, code and message
func FromError(c *fiber.Ctx, err error) error {
	code := domain.CodeOf(err)

	var policyErr *password.PolicyError
	switch {
	case errors.As(err, &policyErr):
		return c.Status(fiber.StatusBadRequest).JSON(Response{
			Success: false,
			Error:   "Password does not meet the strength policy",
			Code:    code,
			Data:    fiber.Map{"missing": policyErr.Missing},
		})
	case domain.IsSessionFailure(err), errors.Is(err, domain.ErrInvalidCredentials):
		return ErrorWithCode(c, fiber.StatusUnauthorized, code, err.Error())
	case domain.IsAuthorizationFailure(err):
		return ErrorWithCode(c, fiber.StatusForbidden, code, err.Error())
	case errors.Is(err, domain.ErrTooManyAttempts):
		return ErrorWithCode(c, fiber.StatusTooManyRequests, code, err.Error())
	case errors.Is(err, domain.ErrEmailAlreadyExists):
		return ErrorWithCode(c, fiber.StatusConflict, code, err.Error())
	case errors.Is(err, domain.ErrUserNotFound), errors.Is(err, domain.ErrNotFound):
		return ErrorWithCode(c, fiber.StatusNotFound, code, err.Error())
	case errors.Is(err, domain.ErrInvalidInput), errors.Is(err, domain.ErrInvalidRole), errors.Is(err, domain.ErrPolicyViolation),
		errors.Is(err, domain.ErrSelfModification), errors.Is(err, domain.ErrWrongPassword):
		return ErrorWithCode(c, fiber.StatusBadRequest, code, err.Error())
	default:
		return InternalServerError(c)
	}
}

// BadRequest sends a 400 response for malformed input
func BadRequest(c *fiber.Ctx, message string) error {
	return ErrorWithCode(c, fiber.StatusBadRequest, domain.CodeInvalidInput, message)
}

// TooManyRequests sends a 429 response
func TooManyRequests(c *fiber.Ctx, message string) error {
	return ErrorWithCode(c, fiber.StatusTooManyRequests, domain.CodeTooManyAttempts, message)
}

// InternalServerError sends a 500 response without leaking the cause
func InternalServerError(c *fiber.Ctx) error {
	return ErrorWithCode(c, fiber.StatusInternalServerError, domain.CodeInternal, "Internal server error")
}
