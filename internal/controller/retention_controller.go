package controller

import (
	"errors"

	"coaching-rag-be/internal/apperr"
	"coaching-rag-be/internal/dto"
	"coaching-rag-be/internal/pkg/serverutils"
	"coaching-rag-be/internal/service"

	"github.com/gofiber/fiber/v2"
)

type IRetentionController interface {
	RegisterRoutes(r fiber.Router, operator fiber.Handler)
	Cleanup(ctx *fiber.Ctx) error
}

type retentionController struct {
	service service.IRetentionService
}

func NewRetentionController(service service.IRetentionService) IRetentionController {
	return &retentionController{service: service}
}

func (c *retentionController) RegisterRoutes(r fiber.Router, operator fiber.Handler) {
	h := r.Group("/retention/v1")
	h.Use(operator)
	h.Post("cleanup", c.Cleanup)
}

// Cleanup reads options from the query string, then lets a JSON body override them.
func (c *retentionController) Cleanup(ctx *fiber.Ctx) error {
	var req dto.CleanupRequest
	if err := ctx.QueryParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid query parameters")
	}
	if len(ctx.Body()) > 0 {
		if err := ctx.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.service.Cleanup(ctx.UserContext(), &req)
	if err != nil {
		var jobErr *apperr.RetentionJobError
		if errors.As(err, &jobErr) && res != nil {
			return ctx.Status(fiber.StatusMultiStatus).JSON(res)
		}
		return err
	}

	return ctx.JSON(res)
}
