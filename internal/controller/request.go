package controller

import (
	"strings"

	"rent360-scheduling-be/pkg/apperror"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

func parseID(ctx *fiber.Ctx, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(ctx.Params(name))
	if err != nil {
		return uuid.Nil, apperror.Validation("parse path", "invalid id", map[string]string{name: "must be a valid uuid"})
	}
	return id, nil
}

func parseBody(ctx *fiber.Ctx, out interface{}) error {
	if err := ctx.BodyParser(out); err != nil {
		return apperror.Validation("parse body", "invalid request body", map[string]string{"body": err.Error()})
	}
	return nil
}

// parseOptionalBody accepts an empty body for endpoints whose fields are all
// optional.
func parseOptionalBody(ctx *fiber.Ctx, out interface{}) error {
	if len(strings.TrimSpace(string(ctx.Body()))) == 0 {
		return nil
	}
	return parseBody(ctx, out)
}
