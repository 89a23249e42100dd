package remote

import (
	"finance-rag-be/pkg/tools"

	"github.com/gofiber/fiber/v2"
)

// Handler exposes a Catalog over HTTP for Client.
type Handler struct {
	catalog tools.Catalog
}

func NewHandler(catalog tools.Catalog) *Handler {
	return &Handler{catalog: catalog}
}

func (h *Handler) RegisterRoutes(r fiber.Router) {
	r.Get("/tools", h.List)
	r.Post("/tools/:name", h.Invoke)
}

func (h *Handler) List(ctx *fiber.Ctx) error {
	specs, err := h.catalog.List(ctx.UserContext())
	if err != nil {
		return fiber.NewError(fiber.StatusServiceUnavailable, err.Error())
	}
	return ctx.JSON(ListResponse{Tools: specs})
}

func (h *Handler) Invoke(ctx *fiber.Ctx) error {
	var req InvokeRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid body: "+err.Error())
	}
	result, err := h.catalog.Invoke(ctx.UserContext(), ctx.Params("name"), req.Arguments)
	if err != nil {
		return fiber.NewError(fiber.StatusServiceUnavailable, err.Error())
	}
	return ctx.JSON(InvokeResponse{Result: result})
}
