package auth

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	apperrors "github.com/nyralabs/contact-pipeline/pkg/util"
)

// Middleware enforces bearer-token authentication on ingestion routes.
type Middleware struct {
	tokens *TokenVerifier
}

// NewMiddleware constructs middleware around a verifier.
func NewMiddleware(tokens *TokenVerifier) *Middleware {
	return &Middleware{tokens: tokens}
}

// Handle rejects requests without a valid bearer token.
func (m *Middleware) Handle(c *fiber.Ctx) error {
	authHeader := c.Get("Authorization")
	if authHeader == "" {
		return apperrors.NewUnauthorized("missing authorization header")
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return apperrors.NewUnauthorized("invalid authorization header")
	}

	if _, err := m.tokens.Verify(parts[1]); err != nil {
		return apperrors.NewUnauthorized("invalid token")
	}
	return c.Next()
}
