package api

import (
	"errors"
	"log"
	"strings"

	"github.com/gofiber/fiber/v2"
	domain "github.com/khalidAdell/quick-task/domain/task"
	"github.com/khalidAdell/quick-task/domain/user"
)

// lifecycleErrors maps lifecycle sentinels to HTTP responses.
var lifecycleErrors = []struct {
	kind   error
	status int
	code   string
}{
	{domain.ErrValidation, fiber.StatusBadRequest, "validation_failed"},
	{domain.ErrPermissionDenied, fiber.StatusForbidden, "permission_denied"},
	{domain.ErrNotFound, fiber.StatusNotFound, "not_found"},
	{domain.ErrInvalidState, fiber.StatusConflict, "invalid_state"},
	{domain.ErrConflict, fiber.StatusConflict, "conflict"},
	{domain.ErrPaymentFailed, fiber.StatusBadGateway, "payment_failed"},
	{domain.ErrStoreUnavailable, fiber.StatusServiceUnavailable, "store_unavailable"},
}

// handleLifecycleError writes the response for an error returned by the task
// or notification ports. Permission errors for anonymous callers become 401.
func handleLifecycleError(c *fiber.Ctx, p user.Principal, err error) error {
	for _, e := range lifecycleErrors {
		if !errors.Is(err, e.kind) {
			continue
		}
		status, code := e.status, e.code
		if e.kind == domain.ErrPermissionDenied && p.Anonymous() {
			status, code = fiber.StatusUnauthorized, "unauthorized"
		}
		if status >= fiber.StatusInternalServerError {
			log.Printf("[api] %s %s failed: %v", c.Method(), c.Path(), err)
		}
		return c.Status(status).JSON(ErrorResponse{
			Error:   code,
			Message: domain.Reason(err),
		})
	}

	log.Printf("[api] %s %s failed: %v", c.Method(), c.Path(), err)
	return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{
		Error:   "internal_error",
		Message: "An unexpected error occurred",
	})
}

// handleIdentityError maps account errors, which cross the module boundary
// as plain strings, to user-facing responses without exposing internals.
func handleIdentityError(c *fiber.Ctx, err error) error {
	errStr := err.Error()

	switch {
	case strings.Contains(errStr, "invalid email or password"):
		return c.Status(fiber.StatusUnauthorized).JSON(ErrorResponse{
			Error:   "unauthorized",
			Message: "Invalid email or password",
		})
	case strings.Contains(errStr, "already exists"):
		return c.Status(fiber.StatusConflict).JSON(ErrorResponse{
			Error:   "conflict",
			Message: "User with this email already exists",
		})
	case strings.Contains(errStr, "invalid email format"):
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Error:   "bad_request",
			Message: "Invalid email format",
		})
	case strings.Contains(errStr, "password must be"):
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Error:   "bad_request",
			Message: passwordMessage(errStr),
		})
	case strings.Contains(errStr, "invalid profile"):
		msg := "Invalid profile"
		if _, reason, ok := strings.Cut(errStr, "invalid profile: "); ok {
			msg = reason
		}
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Error:   "bad_request",
			Message: msg,
		})
	case strings.Contains(errStr, "user not found"):
		return c.Status(fiber.StatusNotFound).JSON(ErrorResponse{
			Error:   "not_found",
			Message: "User not found",
		})
	case strings.Contains(errStr, "token"):
		return c.Status(fiber.StatusUnauthorized).JSON(ErrorResponse{
			Error:   "unauthorized",
			Message: "Invalid or expired token",
		})
	default:
		log.Printf("[api] identity request failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{
			Error:   "internal_error",
			Message: "An unexpected error occurred",
		})
	}
}

func passwordMessage(errStr string) string {
	if strings.Contains(errStr, "at most") {
		return "Password must be at most 72 characters"
	}
	return "Password must be at least 8 characters"
}

// customErrorHandler handles errors returned by routes and middleware.
func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal Server Error"

	var e *fiber.Error
	if errors.As(err, &e) {
		code = e.Code
		message = e.Message
	}

	return c.Status(code).JSON(ErrorResponse{
		Error:   "server_error",
		Message: message,
	})
}

func badRequest(c *fiber.Ctx, message string) error {
	return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
		Error:   "bad_request",
		Message: message,
	})
}
