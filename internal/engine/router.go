package engine

import "github.com/gofiber/fiber/v2"

// RegisterResourceRoutes mounts the generic CRUD routes on router. The
// guards (authentication, verified email) run before every handler. Static
// routes sharing the prefix must be registered first.
func RegisterResourceRoutes(router fiber.Router, h *Handler, guards ...fiber.Handler) {
	with := func(handler fiber.Handler) []fiber.Handler {
		return append(append([]fiber.Handler{}, guards...), handler)
	}

	router.Get("/:model", with(h.List)...)
	router.Get("/:model/:id", with(h.Show)...)
	router.Post("/:model", with(h.Create)...)
	router.Put("/:model/:id", with(h.Update)...)
	router.Delete("/:model", with(h.Delete)...)
	router.Delete("/:model/:id", with(h.Delete)...)

	router.All("/:model", h.MethodNotAllowed)
	router.All("/:model/:id", h.MethodNotAllowed)
}
