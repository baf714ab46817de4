package middleware

import (
	"bytes"
	"net/http"

	"sportstore/internal/apperrors"
	"sportstore/internal/validation"

	"github.com/gofiber/fiber/v2"
)

// PayloadKey is the c.Locals key holding the validated, typed request body.
const PayloadKey = "payload"

// ValidateBody decodes the JSON body, checks it against spec and stores the
// result as a T under PayloadKey. With partial set, absent fields are allowed.
// The handler behind it never runs for an invalid body.
func ValidateBody[T any](spec validation.Spec, partial bool) fiber.Handler {
	return func(c *fiber.Ctx) error {
		body := map[string]interface{}{}
		if raw := bytes.TrimSpace(c.Body()); len(raw) > 0 {
			if err := c.App().Config().JSONDecoder(raw, &body); err != nil {
				return apperrors.New(err, http.StatusBadRequest, "Invalid request body")
			}
		}

		if err := validation.Validate(spec, body, partial); err != nil {
			return err
		}

		var payload T
		if err := validation.Decode(body, &payload); err != nil {
			return apperrors.New(err, http.StatusBadRequest, "Invalid request body")
		}
		c.Locals(PayloadKey, payload)
		return c.Next()
	}
}

// Payload returns the value ValidateBody stored for this request.
func Payload[T any](c *fiber.Ctx) (T, bool) {
	payload, ok := c.Locals(PayloadKey).(T)
	return payload, ok
}
