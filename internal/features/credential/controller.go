package credential

import (
	"github.com/gofiber/fiber/v2"
)

type CredentialController struct {
	Service CredentialService
}

func NewCredentialController(service CredentialService) *CredentialController {
	return &CredentialController{
		Service: service,
	}
}

type saveCredentialsRequest struct {
	RestaurantID string `json:"restaurant_id"`
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
	LocationID   string `json:"location_id"`
}

// SaveCredentials godoc
func (ctrl *CredentialController) SaveCredentials(c *fiber.Ctx) error {
	var req saveCredentialsRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if err := ctrl.Service.SaveCredentials(c.Context(), req.RestaurantID, req.ClientID, req.ClientSecret, req.LocationID); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "POS credentials saved successfully",
	})
}

// GetCredentialStatus godoc
func (ctrl *CredentialController) GetCredentialStatus(c *fiber.Ctx) error {
	restaurantID := c.Params("restaurantId")

	cred, err := ctrl.Service.GetCredential(c.Context(), restaurantID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	if cred == nil {
		return c.JSON(fiber.Map{
			"connected": false,
		})
	}

	return c.JSON(fiber.Map{
		"connected":    cred.IsActive,
		"location_id":  cred.LocationID,
		"last_sync_at": cred.LastSyncAt,
	})
}

// Disconnect godoc
func (ctrl *CredentialController) Disconnect(c *fiber.Ctx) error {
	restaurantID := c.Params("restaurantId")

	if err := ctrl.Service.Deactivate(c.Context(), restaurantID); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.JSON(fiber.Map{
		"message": "POS connection deactivated",
	})
}
