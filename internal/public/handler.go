package public

import (
	"github.com/gofiber/fiber/v2"

	"task-manager-api/internal/config"
)

const overview = "The TaskManager API is a simple task management system that allows users to create, update, delete, and retrieve tasks. Users need to authenticate to access the API."

// Handler serves the endpoints that need no login.
type Handler struct {
	app config.AppConfig
}

func NewHandler(app config.AppConfig) *Handler {
	return &Handler{app: app}
}

// Welcome handles GET {prefix}/
func (h *Handler) Welcome(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"app":        h.app.Name,
		"version":    h.app.Version,
		"overview":   overview,
		"repository": h.app.Repository,
	})
}

// Version handles GET {prefix}/version
func (h *Handler) Version(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"version": h.app.Version})
}

// Health handles GET /health
func (h *Handler) Health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}

// RegisterPublicRoutes mounts Welcome and Version on router.
func RegisterPublicRoutes(router fiber.Router, h *Handler) {
	router.Get("/", h.Welcome)
	router.Get("/version", h.Version)
}
