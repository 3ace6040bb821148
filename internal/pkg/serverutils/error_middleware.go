package serverutils

import (
	"errors"

	"coaching-rag-be/internal/apperr"
	"coaching-rag-be/internal/pkg/logger"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

const httpModule = "HTTP"

// ErrorHandlerMiddleware renders errors returned by handlers as JSON.
func ErrorHandlerMiddleware(log logger.ILogger) fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		err := ctx.Next()
		if err == nil {
			return nil
		}
		status, body := toErrorBody(err)
		if status >= fiber.StatusInternalServerError {
			log.Error(httpModule, "Request failed", map[string]interface{}{
				"method": ctx.Method(),
				"path":   ctx.Path(),
				"status": status,
				"error":  err.Error(),
			})
		}
		return ctx.Status(status).JSON(body)
	}
}

func toErrorBody(err error) (int, ErrorBody) {
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) {
		return fiber.StatusBadRequest, ErrorResponse(fiber.StatusBadRequest, string(apperr.CodeInvalidRequest), formatValidationErrors(validationErrs))
	}

	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		code := string(apperr.CodeInternal)
		switch fiberErr.Code {
		case fiber.StatusBadRequest, fiber.StatusUnprocessableEntity:
			code = string(apperr.CodeInvalidRequest)
		case fiber.StatusUnauthorized:
			code = "UNAUTHORIZED"
		case fiber.StatusForbidden:
			code = string(apperr.CodeForbidden)
		case fiber.StatusNotFound:
			code = string(apperr.CodeNotFound)
		}
		return fiberErr.Code, ErrorResponse(fiberErr.Code, code, fiberErr.Message)
	}

	code := apperr.CodeOf(err)
	status := apperr.HTTPStatus(code)
	message := err.Error()

	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		message = appErr.Message
	}
	if code == apperr.CodeInternal {
		message = "internal server error"
	}

	body := ErrorResponse(status, string(code), message)
	body.Retryable = appErr != nil && appErr.Retryable()
	return status, body
}
