package controller

import (
	"finance-rag-be/internal/pkg/serverutils"
	"finance-rag-be/internal/service"

	"github.com/gofiber/fiber/v2"
)

type IToolController interface {
	RegisterRoutes(r fiber.Router)
	List(ctx *fiber.Ctx) error
}

type toolController struct {
	toolService service.IToolService
}

func NewToolController(toolService service.IToolService) IToolController {
	return &toolController{
		toolService: toolService,
	}
}

func (c *toolController) RegisterRoutes(r fiber.Router) {
	r.Get("/tools/v1", c.List)
}

func (c *toolController) List(ctx *fiber.Ctx) error {
	res, err := c.toolService.List(ctx.UserContext())
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success list tools", res))
}
