package controller

import (
	"rent360-scheduling-be/internal/dto"
	"rent360-scheduling-be/internal/pkg/serverutils"
	"rent360-scheduling-be/internal/service"

	"github.com/gofiber/fiber/v2"
)

type IInstanceController interface {
	RegisterRoutes(r fiber.Router)
	Start(ctx *fiber.Ctx) error
	Complete(ctx *fiber.Ctx) error
	Cancel(ctx *fiber.Ctx) error
	RecordOutcome(ctx *fiber.Ctx) error
	MarkMissed(ctx *fiber.Ctx) error
}

type instanceController struct {
	service service.ISchedulingService
}

func NewInstanceController(service service.ISchedulingService) IInstanceController {
	return &instanceController{service: service}
}

func (c *instanceController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/instances")
	h.Post(":id/start", c.Start)
	h.Post(":id/complete", c.Complete)
	h.Post(":id/cancel", c.Cancel)
	h.Post(":id/outcome", c.RecordOutcome)
	h.Post(":id/mark-missed", c.MarkMissed)
}

func (c *instanceController) Start(ctx *fiber.Ctx) error {
	id, err := parseID(ctx, "id")
	if err != nil {
		return err
	}

	res, err := c.service.StartInstance(ctx.UserContext(), id)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Instance started", res))
}

func (c *instanceController) Complete(ctx *fiber.Ctx) error {
	id, err := parseID(ctx, "id")
	if err != nil {
		return err
	}

	var req dto.CompleteInstanceRequest
	if err := parseOptionalBody(ctx, &req); err != nil {
		return err
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.service.CompleteInstance(ctx.UserContext(), id, &req)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Instance completed", res))
}

func (c *instanceController) Cancel(ctx *fiber.Ctx) error {
	id, err := parseID(ctx, "id")
	if err != nil {
		return err
	}

	var req dto.CancelRequest
	if err := parseOptionalBody(ctx, &req); err != nil {
		return err
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.service.CancelInstance(ctx.UserContext(), id, req.Reason)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Instance cancelled", res))
}

func (c *instanceController) RecordOutcome(ctx *fiber.Ctx) error {
	id, err := parseID(ctx, "id")
	if err != nil {
		return err
	}

	var req dto.RecordOutcomeRequest
	if err := parseBody(ctx, &req); err != nil {
		return err
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.service.RecordOutcome(ctx.UserContext(), id, &req)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Outcome recorded", res))
}

func (c *instanceController) MarkMissed(ctx *fiber.Ctx) error {
	id, err := parseID(ctx, "id")
	if err != nil {
		return err
	}

	res, err := c.service.MarkMissedIfOverdue(ctx.UserContext(), id)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Missed check done", res))
}
