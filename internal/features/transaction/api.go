package transaction

import (
	"go-pos-sync/internal/common/api"
	"go-pos-sync/internal/config"
	"go-pos-sync/internal/middleware"

	"github.com/gofiber/fiber/v2"
)

type TransactionApi struct {
	controller *TransactionController
	config     *config.Config
}

func NewTransactionApi(controller *TransactionController, config *config.Config) api.Route {
	return &TransactionApi{
		controller: controller,
		config:     config,
	}
}

// Setup registers all transaction routes
func (h *TransactionApi) Setup(app *fiber.App) {
	group := app.Group("/api/transactions", middleware.AuthMiddleware(h.config.SkipAuth))

	group.Get("/:restaurantId", h.controller.ListTransactions)
	group.Get("/:restaurantId/export", h.controller.ExportTransactions)
}
