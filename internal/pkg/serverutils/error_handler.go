package serverutils

import (
	"context"
	"errors"
	"net/http"

	"finance-rag-be/pkg/rag/ragerr"

	"github.com/gofiber/fiber/v2"
)

// StatusClientClosedRequest is the nginx convention for a caller that went away.
const StatusClientClosedRequest = 499

// PartialAnswer is the body data of a 422 response.
type PartialAnswer struct {
	PartialAnswer string `json:"partial_answer"`
	Limit         int    `json:"limit"`
}

// MapError converts the pipeline error taxonomy into a status code and envelope.
func MapError(err error) (int, BaseResponse[any]) {
	var (
		validationErr *ValidationError
		parseErr      *ragerr.DocumentParseError
		upstreamErr   *ragerr.UpstreamUnavailableError
		loopErr       *ragerr.ToolLoopExceededError
		stageErr      *ragerr.StageError
		fiberErr      *fiber.Error
	)

	stage := ""
	if errors.As(err, &stageErr) {
		stage = stageErr.Stage
	}

	var status int
	resp := BaseResponse[any]{Message: err.Error(), Stage: stage}

	switch {
	case errors.As(err, &validationErr):
		status = http.StatusBadRequest
		resp.Errors = validationErr.Fields
	case errors.Is(err, ragerr.ErrInvalidRequest), errors.As(err, &parseErr):
		status = http.StatusBadRequest
	case errors.Is(err, ragerr.ErrIndexUnavailable):
		status = http.StatusConflict
	case errors.As(err, &loopErr):
		status = http.StatusUnprocessableEntity
		resp.Data = PartialAnswer{PartialAnswer: loopErr.Partial, Limit: loopErr.Limit}
	case errors.As(err, &upstreamErr):
		status = http.StatusBadGateway
		if upstreamErr.Timeout {
			status = http.StatusGatewayTimeout
		}
		resp.Retryable = true
	case errors.Is(err, context.Canceled):
		status = StatusClientClosedRequest
	case errors.Is(err, context.DeadlineExceeded):
		status = http.StatusGatewayTimeout
		resp.Retryable = true
	case errors.As(err, &fiberErr):
		status = fiberErr.Code
	default:
		status = http.StatusInternalServerError
	}

	resp.Code = status
	return status, resp
}

// ErrorHandler is installed as fiber.Config.ErrorHandler.
func ErrorHandler(ctx *fiber.Ctx, err error) error {
	status, resp := MapError(err)
	return ctx.Status(status).JSON(resp)
}

// ErrorHandlerMiddleware renders errors returned by downstream handlers so
// middlewares registered before it still see the final status.
func ErrorHandlerMiddleware() fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		err := ctx.Next()
		if err == nil {
			return nil
		}
		return ErrorHandler(ctx, err)
	}
}
