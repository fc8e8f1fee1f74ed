package sync

import (
	"errors"

	"go-pos-sync/internal/features/syncjob"
	"go-pos-sync/pkg/utils"

	"github.com/gofiber/fiber/v2"
)

type SyncController struct {
	Service SyncService
}

func NewSyncController(service SyncService) *SyncController {
	return &SyncController{
		Service: service,
	}
}

type triggerSyncRequest struct {
	RestaurantID      string `json:"restaurant_id"`
	NotificationEmail string `json:"notification_email"`
}

// TriggerSync godoc
func (ctrl *SyncController) TriggerSync(c *fiber.Ctx) error {
	var req triggerSyncRequest
	if err := c.BodyParser(&req); err != nil && len(c.Body()) > 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if req.RestaurantID == "" {
		if claims, ok := c.Locals(utils.UserClaimsKey).(*utils.UserClaims); ok {
			req.RestaurantID = claims.RestaurantID
		}
	}
	if req.RestaurantID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "restaurant_id is required",
		})
	}

	job, window, err := ctrl.Service.EnqueueSync(c.Context(), req.RestaurantID, req.NotificationEmail)
	if err != nil {
		var inProgress *syncjob.SyncAlreadyInProgressError
		if errors.As(err, &inProgress) {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{
				"error":  err.Error(),
				"job_id": inProgress.ExistingJobID,
			})
		}
		if errors.Is(err, ErrNoCredentials) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": err.Error(),
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"message": "Sync job queued",
		"job_id":  job.JobID,
		"window":  window,
	})
}

// GetSyncStatus godoc
func (ctrl *SyncController) GetSyncStatus(c *fiber.Ctx) error {
	restaurantID := c.Params("restaurantId")

	view, err := ctrl.Service.GetStatus(c.Context(), restaurantID)
	if err != nil {
		// The polling endpoint always answers with a status shape
		return c.JSON(ProgressView{
			Status: "unknown",
			Error:  err.Error(),
		})
	}

	return c.JSON(view)
}

// GetSyncJob godoc
func (ctrl *SyncController) GetSyncJob(c *fiber.Ctx) error {
	jobID := c.Params("jobId")

	job, err := ctrl.Service.GetJob(c.Context(), jobID)
	if err != nil {
		if errors.Is(err, syncjob.ErrJobNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Sync job not found",
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.JSON(job)
}

// ListSyncJobs godoc
func (ctrl *SyncController) ListSyncJobs(c *fiber.Ctx) error {
	restaurantID := c.Query("restaurant_id")
	if restaurantID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "restaurant_id query parameter is required",
		})
	}

	jobs, err := ctrl.Service.ListJobs(c.Context(), restaurantID, int64(c.QueryInt("limit", 20)))
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.JSON(fiber.Map{
		"data": jobs,
	})
}
