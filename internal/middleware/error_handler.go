package middleware

import (
	"errors"

	"sportstore/internal/apperrors"
	"sportstore/internal/validation"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
)

// ErrorHandler renders every error returned by a handler as {"message": ...}.
// Validation failures also carry the per-property violations. Unexpected
// errors are logged and reported as an opaque 500.
func ErrorHandler(c *fiber.Ctx, err error) error {
	var vErr *validation.ValidationError
	if errors.As(err, &vErr) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": apperrors.ErrValidationFailed.Error(),
			"errors":  vErr.Violations,
		})
	}

	var fErr *fiber.Error
	if errors.As(err, &fErr) {
		return c.Status(fErr.Code).JSON(fiber.Map{
			"message": fErr.Message,
		})
	}

	status, message := apperrors.Resolve(err)
	if status >= fiber.StatusInternalServerError {
		log.Error().Err(err).
			Str("method", c.Method()).
			Str("path", c.Path()).
			Interface("request_id", c.Locals(RequestIDKey)).
			Msg("unexpected error")
	}
	return c.Status(status).JSON(fiber.Map{
		"message": message,
	})
}
