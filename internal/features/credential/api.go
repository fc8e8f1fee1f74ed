package credential

import (
	"go-pos-sync/internal/common/api"
	"go-pos-sync/internal/config"
	"go-pos-sync/internal/middleware"

	"github.com/gofiber/fiber/v2"
)

type CredentialApi struct {
	controller *CredentialController
	config     *config.Config
}

func NewCredentialApi(controller *CredentialController, config *config.Config) api.Route {
	return &CredentialApi{
		controller: controller,
		config:     config,
	}
}

// Setup registers all credential routes
func (h *CredentialApi) Setup(app *fiber.App) {
	group := app.Group("/api/pos/credentials", middleware.AuthMiddleware(h.config.SkipAuth))

	group.Post("/", h.controller.SaveCredentials)
	group.Get("/:restaurantId/status", h.controller.GetCredentialStatus)
	group.Delete("/:restaurantId", h.controller.Disconnect)
}
