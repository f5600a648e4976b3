package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/qr-menu/qr_menu/internal/menu"
)

// RegisterMenuRoutes mounts the public menu view and the owner-only menu and
// item endpoints. Menu creation honours Idempotency-Key. The public view is
// also served on root at /menu/:menuId, the path encoded in QR codes.
func RegisterMenuRoutes(root, api fiber.Router, h *menu.Handler, requireAuth, idempotent fiber.Handler) {
	root.Get("/menu/:menuId", h.Fetch)
	api.Get("/menu/fetch/:menuId", h.Fetch)

	api.Post("/menu/create", requireAuth, idempotent, h.Create)

	menus := api.Group("/menus", requireAuth)
	menus.Get("", h.List)
	menus.Get("/:menuId", h.Retrieve)
	menus.Get("/:menuId/qr", h.QRImage)
	menus.Patch("/:menuId", h.Update)
	menus.Delete("/:menuId", h.Delete)
	menus.Post("/:menuId/items", h.AddItems)

	items := api.Group("/item", requireAuth)
	items.Post("/add/:menuId", h.AddItem)
	items.Patch("/update/:itemId", h.UpdateItem)
	items.Delete("/delete/:itemId", h.DeleteItem)
}
