package handlers

import (
	"receipto/internal/dto"
	"receipto/internal/service"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type AppHandler struct {
	appService *service.AppService
	logger     *zap.Logger
}

func NewAppHandler(appService *service.AppService, logger *zap.Logger) *AppHandler {
	return &AppHandler{
		appService: appService,
		logger:     logger,
	}
}

// Status godoc
// @Summary Check API status
// @Tags status
// @Produce json
// @Success 200 {object} dto.StatusResponse
// @Failure 500 {object} map[string]string
// @Router /api/status [get]
func (h *AppHandler) Status(c *fiber.Ctx) error {
	if err := h.appService.Status(c.Context()); err != nil {
		h.logger.Error("Status check failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "unhealthy",
		})
	}
	return c.JSON(dto.StatusResponse{Status: "Ok"})
}

// Stats godoc
// @Summary Retrieve API statistics
// @Description Number of registered users and stored receipts
// @Tags status
// @Produce json
// @Success 200 {object} dto.StatsResponse
// @Failure 500 {object} map[string]string
// @Router /api/stats [get]
func (h *AppHandler) Stats(c *fiber.Ctx) error {
	stats, err := h.appService.Stats(c.Context())
	if err != nil {
		h.logger.Error("Stats query failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Internal Server Error",
		})
	}
	return c.JSON(stats)
}
