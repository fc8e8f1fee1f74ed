package notification

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"go-pos-sync/internal/config"

	"go.uber.org/zap"
)

// NotificationService receives the sync completion payload, persists it, and
// delivers the completion email when the job carries a notification address.
type NotificationService interface {
	NotifySyncFinished(ctx context.Context, n *SyncNotification) error
	ListByRestaurant(ctx context.Context, restaurantID string, limit int64) ([]SyncNotification, error)
}

type NotificationServiceImpl struct {
	Repo   NotificationRepository
	Config *config.Config
	Logger *zap.Logger
}

func NewNotificationService(repo NotificationRepository, cfg *config.Config, logger *zap.Logger) NotificationService {
	return &NotificationServiceImpl{
		Repo:   repo,
		Config: cfg,
		Logger: logger,
	}
}

func (s *NotificationServiceImpl) NotifySyncFinished(ctx context.Context, n *SyncNotification) error {
	if err := s.Repo.Create(ctx, n); err != nil {
		return fmt.Errorf("failed to record sync notification: %w", err)
	}

	if n.Email == "" {
		return nil
	}

	if err := s.sendEmail(n); err != nil {
		// Email delivery is best effort; the durable record above is the
		// source of truth for downstream consumers
		s.Logger.Warn("failed to send sync completion email",
			zap.String("restaurant_id", n.RestaurantID),
			zap.String("job_id", n.JobID),
			zap.Error(err))
		return nil
	}

	return s.Repo.MarkEmailSent(ctx, n.ID)
}

func (s *NotificationServiceImpl) ListByRestaurant(ctx context.Context, restaurantID string, limit int64) ([]SyncNotification, error) {
	return s.Repo.ListByRestaurant(ctx, restaurantID, limit)
}

func (s *NotificationServiceImpl) sendEmail(n *SyncNotification) error {
	cfg := s.Config
	if cfg.SMTPHost == "" || cfg.SMTPPort == 0 {
		return fmt.Errorf("email configuration missing host or port")
	}

	auth := smtp.PlainAuth("", cfg.SMTPUser, cfg.SMTPPass, cfg.SMTPHost)
	addr := fmt.Sprintf("%s:%d", cfg.SMTPHost, cfg.SMTPPort)
	from := cfg.SMTPFrom
	if from == "" {
		from = cfg.SMTPUser
	}

	subject := "POS sync completed"
	body := fmt.Sprintf("Your POS sync finished successfully.\n\nOrders imported: %d\nOrders failed: %d\nDuration: %dms\n",
		n.OrdersImported, n.OrdersFailed, n.DurationMs)
	if !n.Success {
		subject = "POS sync failed"
		body = fmt.Sprintf("Your POS sync could not complete.\n\nReason: %s\n\nOrders imported before failure: %d\n",
			n.ErrorMessage, n.OrdersImported)
	}

	var msg strings.Builder
	msg.WriteString(fmt.Sprintf("From: %s\r\n", from))
	msg.WriteString(fmt.Sprintf("To: %s\r\n", n.Email))
	msg.WriteString(fmt.Sprintf("Subject: %s\r\n", subject))
	msg.WriteString("\r\n")
	msg.WriteString(body)

	return smtp.SendMail(addr, auth, from, []string{n.Email}, []byte(msg.String()))
}
