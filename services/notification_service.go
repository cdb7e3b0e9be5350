package services

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	awspkg "github.com/GuiSantosdev/clivus-dev-sub001/pkg/aws"

	"github.com/GuiSantosdev/clivus-dev-sub001/models"
	"github.com/GuiSantosdev/clivus-dev-sub001/sender"
)

// NotificationService composes and requests delivery of the purchase
// messages: the welcome email to the buyer (carrying the one-time
// credential) and the sale notice to the ops SNS topic. Both are
// best-effort; callers log returned errors and move on.
type NotificationService struct {
	email    sender.EmailSender
	sns      awspkg.SNSPublisher
	topicArn string
	logger   *zap.Logger
}

func NewNotificationService(email sender.EmailSender, sns awspkg.SNSPublisher, topicArn string, logger *zap.Logger) *NotificationService {
	return &NotificationService{email: email, sns: sns, topicArn: topicArn, logger: logger}
}

// SendWelcome mails the buyer their access confirmation. credential is
// included only when it was freshly generated; it never appears in logs.
func (s *NotificationService) SendWelcome(ctx context.Context, user *models.User, planName, credential string) error {
	subject := fmt.Sprintf("Your access to %s is ready", planName)
	body := buildWelcomeHTML(user.Name, planName, credential)

	if _, err := s.email.SendEmail(ctx, user.Email, subject, body); err != nil {
		return fmt.Errorf("sending welcome email: %w", err)
	}
	s.logger.Info("Welcome email sent",
		zap.String("user_id", user.ID.String()),
		zap.String("plan", planName),
		zap.Bool("credential_included", credential != ""),
	)
	return nil
}

type saleNotice struct {
	PaymentID   string `json:"payment_id"`
	UserID      string `json:"user_id"`
	PlanName    string `json:"plan_name"`
	AmountCents int64  `json:"amount_cents"`
	Currency    string `json:"currency"`
	Gateway     string `json:"gateway"`
}

// NotifySale publishes a sale notice for the operations team.
func (s *NotificationService) NotifySale(ctx context.Context, payment *models.Payment, planName string) error {
	notice := saleNotice{
		PaymentID:   payment.ID.String(),
		UserID:      payment.UserID.String(),
		PlanName:    planName,
		AmountCents: payment.AmountCents,
		Currency:    payment.Currency,
		Gateway:     string(payment.Gateway),
	}
	payload, err := json.Marshal(notice)
	if err != nil {
		return err
	}
	if err := s.sns.Publish(ctx, s.topicArn, payload); err != nil {
		return fmt.Errorf("publishing sale notice: %w", err)
	}
	s.logger.Info("Sale notice published",
		zap.String("payment_id", notice.PaymentID),
		zap.String("gateway", notice.Gateway),
	)
	return nil
}

func buildWelcomeHTML(name, planName, credential string) string {
	credentialBlock := ""
	if credential != "" {
		credentialBlock = fmt.Sprintf(
			"<p>Your access credential: <strong>%s</strong></p>"+
				"<p>Keep it safe — it will not be shown again.</p>", credential)
	}
	return fmt.Sprintf(
		"<html><body>"+
			"<h2>Welcome, %s!</h2>"+
			"<p>Your payment was confirmed and your access to <strong>%s</strong> is active.</p>"+
			"%s"+
			"</body></html>", name, planName, credentialBlock)
}
