package controller

import (
	"strings"

	"rent360-scheduling-be/internal/dto"
	"rent360-scheduling-be/internal/pkg/serverutils"
	"rent360-scheduling-be/internal/service"
	"rent360-scheduling-be/pkg/apperror"

	"github.com/gofiber/fiber/v2"
)

type IRecurringServiceController interface {
	RegisterRoutes(r fiber.Router)
	Start(ctx *fiber.Ctx) error
	List(ctx *fiber.Ctx) error
	Show(ctx *fiber.Ctx) error
	Pause(ctx *fiber.Ctx) error
	Resume(ctx *fiber.Ctx) error
	Cancel(ctx *fiber.Ctx) error
	Complete(ctx *fiber.Ctx) error
	UpdateAmount(ctx *fiber.Ctx) error
	Instances(ctx *fiber.Ctx) error
	CompleteCurrentInstance(ctx *fiber.Ctx) error
	CancelCurrentInstance(ctx *fiber.Ctx) error
}

type recurringServiceController struct {
	service service.ISchedulingService
}

func NewRecurringServiceController(service service.ISchedulingService) IRecurringServiceController {
	return &recurringServiceController{service: service}
}

func (c *recurringServiceController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/recurring-services")
	h.Post("", c.Start)
	h.Get("", c.List)
	h.Get(":id", c.Show)
	h.Post(":id/pause", c.Pause)
	h.Post(":id/resume", c.Resume)
	h.Post(":id/cancel", c.Cancel)
	h.Post(":id/complete", c.Complete)
	h.Patch(":id/amount", c.UpdateAmount)
	h.Get(":id/instances", c.Instances)
	h.Post(":id/current-instance/complete", c.CompleteCurrentInstance)
	h.Post(":id/current-instance/cancel", c.CancelCurrentInstance)
}

func (c *recurringServiceController) Start(ctx *fiber.Ctx) error {
	var req dto.StartRecurringServiceRequest
	if err := parseBody(ctx, &req); err != nil {
		return err
	}
	req.Frequency = strings.ToLower(strings.TrimSpace(req.Frequency))
	if strings.TrimSpace(req.ClientId) == "" {
		req.ClientId = serverutils.CallerID(ctx)
	}

	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.service.StartRecurringService(ctx.UserContext(), &req)
	if err != nil {
		return err
	}

	return ctx.Status(fiber.StatusCreated).JSON(serverutils.CreatedResponse("Recurring service started", res))
}

func (c *recurringServiceController) List(ctx *fiber.Ctx) error {
	var req dto.ListAgreementsRequest
	if err := ctx.QueryParser(&req); err != nil {
		return apperror.Validation("parse query", "invalid query", map[string]string{"query": err.Error()})
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.service.ListAgreements(ctx.UserContext(), &req)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success list recurring services", res))
}

func (c *recurringServiceController) Show(ctx *fiber.Ctx) error {
	id, err := parseID(ctx, "id")
	if err != nil {
		return err
	}

	res, err := c.service.GetAgreement(ctx.UserContext(), id)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success show recurring service", res))
}

func (c *recurringServiceController) Pause(ctx *fiber.Ctx) error {
	id, err := parseID(ctx, "id")
	if err != nil {
		return err
	}

	res, err := c.service.PauseService(ctx.UserContext(), id)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Recurring service paused", res))
}

func (c *recurringServiceController) Resume(ctx *fiber.Ctx) error {
	id, err := parseID(ctx, "id")
	if err != nil {
		return err
	}

	res, err := c.service.ResumeService(ctx.UserContext(), id)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Recurring service resumed", res))
}

func (c *recurringServiceController) Cancel(ctx *fiber.Ctx) error {
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

	res, err := c.service.CancelService(ctx.UserContext(), id, req.Reason)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Recurring service cancelled", res))
}

func (c *recurringServiceController) Complete(ctx *fiber.Ctx) error {
	id, err := parseID(ctx, "id")
	if err != nil {
		return err
	}

	res, err := c.service.CompleteService(ctx.UserContext(), id)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Recurring service completed", res))
}

func (c *recurringServiceController) UpdateAmount(ctx *fiber.Ctx) error {
	id, err := parseID(ctx, "id")
	if err != nil {
		return err
	}

	var req dto.UpdateAmountRequest
	if err := parseBody(ctx, &req); err != nil {
		return err
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.service.UpdateAmount(ctx.UserContext(), id, req.Amount)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Amount updated", res))
}

func (c *recurringServiceController) Instances(ctx *fiber.Ctx) error {
	id, err := parseID(ctx, "id")
	if err != nil {
		return err
	}

	res, err := c.service.ListInstances(ctx.UserContext(), id)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success list instances", res))
}

func (c *recurringServiceController) CompleteCurrentInstance(ctx *fiber.Ctx) error {
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

	res, err := c.service.CompleteCurrentInstance(ctx.UserContext(), id, &req)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Instance completed", res))
}

func (c *recurringServiceController) CancelCurrentInstance(ctx *fiber.Ctx) error {
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

	res, err := c.service.CancelCurrentInstance(ctx.UserContext(), id, req.Reason)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Instance cancelled", res))
}
