package handlers

import (
	"sportstore/internal/middleware"
	"sportstore/internal/validation"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
)

// Authenticator issues tokens. *services.AuthService satisfies it.
type Authenticator interface {
	Login(username, password string) (string, error)
}

// AuthHandler handles HTTP requests for authentication.
type AuthHandler struct {
	authService Authenticator
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(authService Authenticator) *AuthHandler {
	return &AuthHandler{
		authService: authService,
	}
}

// RegisterRoutes registers the authentication routes with the Fiber app.
func (h *AuthHandler) RegisterRoutes(router fiber.Router) {
	authRoutes := router.Group("/auth")
	authRoutes.Post("/login", middleware.ValidateBody[LoginRequest](validation.LoginSpec, false), h.HandleLogin)
}

// LoginRequest represents the request body for login.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// HandleLogin handles user login and issues a JWT token.
func (h *AuthHandler) HandleLogin(c *fiber.Ctx) error {
	req, ok := middleware.Payload[LoginRequest](c)
	if !ok {
		return fiber.ErrBadRequest
	}

	token, err := h.authService.Login(req.Username, req.Password)
	if err != nil {
		log.Info().Str("username", req.Username).Str("ip", c.IP()).Msg("login failed")
		return err
	}

	return c.JSON(fiber.Map{
		"token": token,
	})
}
