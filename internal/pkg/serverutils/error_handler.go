package serverutils

import (
	"errors"
	"net/http"

	"rent360-scheduling-be/pkg/apperror"

	"github.com/gofiber/fiber/v2"
)

const retryAfterSeconds = "2"

func StatusFor(kind apperror.Kind) int {
	switch kind {
	case apperror.KindValidation:
		return http.StatusBadRequest
	case apperror.KindInvalidState:
		return http.StatusConflict
	case apperror.KindNotFound:
		return http.StatusNotFound
	case apperror.KindTransient:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// ErrorHandlerMiddleware turns errors returned by handlers into the JSON error
// envelope.
func ErrorHandlerMiddleware() fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		err := ctx.Next()
		if err == nil {
			return nil
		}
		return WriteError(ctx, err)
	}
}

// ErrorHandler is the fiber.Config hook for errors that escape the middleware
// chain (panics recovered by middleware/recover, unknown routes).
func ErrorHandler(ctx *fiber.Ctx, err error) error {
	return WriteError(ctx, err)
}

func WriteError(ctx *fiber.Ctx, err error) error {
	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		return ctx.Status(fiberErr.Code).JSON(ErrorResponse(fiberErr.Code, fiberErr.Message))
	}

	var appErr *apperror.Error
	if !errors.As(err, &appErr) {
		appErr = apperror.Internal("", err)
	}

	status := StatusFor(appErr.Kind)
	body := ErrorResponse(status, appErr.Message)
	body.Kind = string(appErr.Kind)
	body.CurrentStatus = appErr.CurrentStatus
	body.Fields = appErr.Fields
	body.Context = appErr.Context

	if appErr.Kind == apperror.KindInternal {
		// Internal details stay in the logs.
		body.Message = "internal server error"
	}
	if appErr.Kind == apperror.KindTransient {
		ctx.Set(fiber.HeaderRetryAfter, retryAfterSeconds)
	}
	return ctx.Status(status).JSON(body)
}
