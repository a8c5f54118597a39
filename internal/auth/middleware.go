package auth

import (
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"task-manager-api/internal/engine"
	"task-manager-api/internal/metadata"
)

// Middleware validates the bearer token and stores the principal in the
// request locals.
func Middleware(tokens *Tokens) fiber.Handler {
	return func(c *fiber.Ctx) error {
		header := c.Get(fiber.HeaderAuthorization)
		scheme, raw, ok := strings.Cut(header, " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(raw) == "" {
			return engine.UnauthorizedError()
		}

		p, err := tokens.Authenticate(c.Context(), strings.TrimSpace(raw))
		if err != nil {
			if errors.Is(err, ErrInvalidToken) {
				return engine.UnauthorizedError()
			}
			return err
		}

		c.Locals(metadata.LocalsKey, p)
		return c.Next()
	}
}

// Verified requires an authenticated principal with a verified email.
func Verified() fiber.Handler {
	return func(c *fiber.Ctx) error {
		p := GetPrincipal(c)
		if p == nil {
			return engine.UnauthorizedError()
		}
		if !p.EmailVerified {
			return engine.ForbiddenError(engine.MsgEmailNotVerified)
		}
		return c.Next()
	}
}

// Signed rejects requests whose URL signature is missing, invalid or expired.
func Signed(signer *Signer, now func() time.Time) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !signer.Check(c.Path(), c.Query("expires"), c.Query("signature"), now()) {
			return engine.ForbiddenError(MsgInvalidSignature)
		}
		return c.Next()
	}
}

// GetPrincipal extracts the principal from a Fiber context.
func GetPrincipal(c *fiber.Ctx) *metadata.Principal {
	p, _ := c.Locals(metadata.LocalsKey).(*metadata.Principal)
	return p
}
