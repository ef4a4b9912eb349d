package controller

import (
	"rent360-scheduling-be/internal/pkg/serverutils"
	"rent360-scheduling-be/internal/service"

	"github.com/gofiber/fiber/v2"
)

type ISweepController interface {
	RegisterRoutes(r fiber.Router)
	Run(ctx *fiber.Ctx) error
}

type sweepController struct {
	sweep service.ISweepService
}

func NewSweepController(sweep service.ISweepService) ISweepController {
	return &sweepController{sweep: sweep}
}

func (c *sweepController) RegisterRoutes(r fiber.Router) {
	r.Post("/sweep", c.Run)
}

func (c *sweepController) Run(ctx *fiber.Ctx) error {
	res, err := c.sweep.RunOnce(ctx.UserContext())
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Sweep finished", res))
}
