package sync

import (
	"go-pos-sync/internal/common/api"
	"go-pos-sync/internal/config"
	"go-pos-sync/internal/middleware"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
)

type SyncApi struct {
	controller *SyncController
	hub        *ProgressHub
	config     *config.Config
}

func NewSyncApi(controller *SyncController, hub *ProgressHub, config *config.Config) api.Route {
	return &SyncApi{
		controller: controller,
		hub:        hub,
		config:     config,
	}
}

// Setup registers all sync routes
func (h *SyncApi) Setup(app *fiber.App) {
	group := app.Group("/api/pos", middleware.AuthMiddleware(h.config.SkipAuth))

	group.Post("/sync", h.controller.TriggerSync)
	group.Get("/sync-status/:restaurantId", h.controller.GetSyncStatus)
	group.Get("/sync-jobs/:jobId", h.controller.GetSyncJob)
	group.Get("/sync-jobs", h.controller.ListSyncJobs)

	app.Get("/ws/sync-progress/:restaurantId", websocket.New(h.hub.HandleProgressSocket))
}
