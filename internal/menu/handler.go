package menu

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/qr-menu/qr_menu/internal/qr"
	"github.com/qr-menu/qr_menu/internal/validation"
)

const permissionDeniedDetail = "You do not have permission to modify this menu."

// Handler exposes menu and item endpoints.
type Handler struct {
	service *Service
	logger  *slog.Logger
}

// NewHandler builds a menu HTTP handler.
func NewHandler(service *Service, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{service: service, logger: logger}
}

type createRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

type patchRequest struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	Available   *bool   `json:"available"`
}

type itemRequest struct {
	Name        *string `json:"item"`
	Description *string `json:"description"`
	Price       *int64  `json:"price"`
	Available   *bool   `json:"available"`
}

type bulkRequest struct {
	Items []itemRequest `json:"items"`
}

type menuResponse struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Available   bool      `json:"available"`
	QRCode      string    `json:"qr_code"`
	CreatedAt   time.Time `json:"created_at"`
}

type itemResponse struct {
	ID          string `json:"id"`
	Name        string `json:"item"`
	Description string `json:"description"`
	Price       int64  `json:"price"`
	Available   bool   `json:"available"`
}

func (h *Handler) menuJSON(m Menu) menuResponse {
	return menuResponse{
		ID:          m.ID,
		Title:       m.Title,
		Description: m.Description,
		Available:   m.Available,
		QRCode:      h.service.ArtifactURL(m),
		CreatedAt:   m.CreatedAt,
	}
}

func itemJSON(it Item) itemResponse {
	return itemResponse{ID: it.ID, Name: it.Name, Description: it.Description, Price: it.Price, Available: it.Available}
}

func (r itemRequest) input() ItemInput {
	in := ItemInput{Price: r.Price, Available: r.Available}
	if r.Name != nil {
		in.Name = *r.Name
	}
	if r.Description != nil {
		in.Description = *r.Description
	}
	return in
}

// Create stores a new menu for the authenticated user.
func (h *Handler) Create(c *fiber.Ctx) error {
	var req createRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid request body")
	}
	m, err := h.service.Create(c.UserContext(), userID(c), CreateInput{Title: req.Title, Description: req.Description})
	if err != nil {
		var verrs validation.Errors
		if errors.As(err, &verrs) {
			return c.Status(http.StatusBadRequest).JSON(fiber.Map{"errors": verrs, "message": "Validation failed."})
		}
		return h.fail(c, err, "menu does not exist")
	}
	return c.Status(http.StatusCreated).JSON(h.menuJSON(m))
}

// Fetch returns a menu and its items to anonymous viewers.
func (h *Handler) Fetch(c *fiber.Ctx) error {
	m, items, err := h.service.Public(c.UserContext(), c.Params("menuId"))
	if err != nil {
		return h.fail(c, err, "menu does not exist")
	}
	out := make([]itemResponse, 0, len(items))
	for _, it := range items {
		out = append(out, itemJSON(it))
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"menu": h.menuJSON(m), "items": out})
}

// List returns the caller's menus.
func (h *Handler) List(c *fiber.Ctx) error {
	menus, err := h.service.List(c.UserContext(), userID(c))
	if err != nil {
		return h.fail(c, err, "")
	}
	out := make([]menuResponse, 0, len(menus))
	for _, m := range menus {
		out = append(out, h.menuJSON(m))
	}
	return c.Status(http.StatusOK).JSON(out)
}

// Retrieve returns a menu with its QR image location.
func (h *Handler) Retrieve(c *fiber.Ctx) error {
	m, err := h.service.Get(c.UserContext(), c.Params("menuId"))
	if err != nil {
		return h.fail(c, err, "menu does not exist")
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"data": h.menuJSON(m), "image": h.service.ArtifactURL(m)})
}

// QRImage streams the menu's QR image.
func (h *Handler) QRImage(c *fiber.Ctx) error {
	png, err := h.service.Artifact(c.UserContext(), c.Params("menuId"))
	if err != nil {
		return h.fail(c, err, "menu does not exist")
	}
	c.Set(fiber.HeaderContentType, qr.ContentType)
	return c.Status(http.StatusOK).Send(png)
}

// Update applies a partial menu update.
func (h *Handler) Update(c *fiber.Ctx) error {
	var req patchRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid request body")
	}
	m, err := h.service.Update(c.UserContext(), userID(c), c.Params("menuId"), MenuPatch{
		Title:       req.Title,
		Description: req.Description,
		Available:   req.Available,
	})
	if err != nil {
		return h.fail(c, err, "menu does not exist")
	}
	return c.Status(http.StatusOK).JSON(h.menuJSON(m))
}

// Delete removes a menu, its items and its QR image.
func (h *Handler) Delete(c *fiber.Ctx) error {
	if err := h.service.Delete(c.UserContext(), userID(c), c.Params("menuId")); err != nil {
		return h.fail(c, err, "menu does not exist")
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"message": "Menu has been deleted"})
}

// AddItems stores a batch of items.
func (h *Handler) AddItems(c *fiber.Ctx) error {
	var req bulkRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid request body")
	}
	inputs := make([]ItemInput, 0, len(req.Items))
	for _, it := range req.Items {
		inputs = append(inputs, it.input())
	}
	if _, err := h.service.AddItems(c.UserContext(), userID(c), c.Params("menuId"), inputs); err != nil {
		return h.fail(c, err, "menu does not exist")
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"message": "items saved"})
}

// AddItem stores one item.
func (h *Handler) AddItem(c *fiber.Ctx) error {
	var req itemRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid request body")
	}
	it, err := h.service.AddItem(c.UserContext(), userID(c), c.Params("menuId"), req.input())
	if err != nil {
		return h.fail(c, err, "menu does not exist")
	}
	return c.Status(http.StatusCreated).JSON(itemJSON(it))
}

// UpdateItem applies a partial item update.
func (h *Handler) UpdateItem(c *fiber.Ctx) error {
	var req itemRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid request body")
	}
	it, err := h.service.UpdateItem(c.UserContext(), userID(c), c.Params("itemId"), ItemPatch{
		Name:        req.Name,
		Description: req.Description,
		Price:       req.Price,
		Available:   req.Available,
	})
	if err != nil {
		return h.fail(c, err, "item does not exist")
	}
	return c.Status(http.StatusOK).JSON(itemJSON(it))
}

// DeleteItem removes one item.
func (h *Handler) DeleteItem(c *fiber.Ctx) error {
	if err := h.service.DeleteItem(c.UserContext(), userID(c), c.Params("itemId")); err != nil {
		return h.fail(c, err, "Item not found")
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"message": "Item has been deleted"})
}

func userID(c *fiber.Ctx) string {
	uid, _ := c.Locals("user_id").(string)
	return uid
}

func (h *Handler) fail(c *fiber.Ctx, err error, notFound string) error {
	var verrs validation.Errors
	switch {
	case errors.As(err, &verrs):
		return c.Status(http.StatusBadRequest).JSON(verrs)
	case errors.Is(err, ErrNotFound):
		return fiber.NewError(http.StatusNotFound, notFound)
	case errors.Is(err, ErrPermissionDenied):
		return fiber.NewError(http.StatusForbidden, permissionDeniedDetail)
	default:
		h.logger.Error("menu.request_failed", slog.String("path", c.Path()), slog.Any("error", err))
		return fiber.NewError(http.StatusInternalServerError, "internal server error")
	}
}
