package service

import (
	"context"
	"strings"

	"precioverdadero/internal/constants"
	"precioverdadero/internal/errors"
	"precioverdadero/internal/metrics"
	"precioverdadero/internal/validation"
	"precioverdadero/pkg/twilio"

	"github.com/sirupsen/logrus"
)

const (
	MsgTwilioNotConfigured = "Twilio no está configurado. Revisa TWILIO_ACCOUNT_SID, TWILIO_AUTH_TOKEN y TWILIO_WHATSAPP_FROM en .env"
	MsgSupportFailed       = "Error enviando mensaje de soporte"
)

// SupportService relays a help request to WhatsApp. A nil sender means the
// relay is not configured.
type SupportService struct {
	sender  twilio.Sender
	logger  *logrus.Logger
	metrics *metrics.Registry
}

func NewSupportService(sender twilio.Sender, logger *logrus.Logger) *SupportService {
	return &SupportService{sender: sender, logger: logger, metrics: metrics.GetRegistry()}
}

// Send validates the number before checking configuration so that bad
// input is always reported as such.
func (s *SupportService) Send(ctx context.Context, number, message string) (*twilio.Message, error) {
	if err := validation.ValidatePhoneNumber(number); err != nil {
		return nil, err
	}
	text := strings.TrimSpace(message)
	if text == "" {
		text = constants.DefaultSupportMessage
	}

	if s.sender == nil {
		return nil, errors.NewConfigError("twilio", "twilio credentials missing").
			WithUserMessage(MsgTwilioNotConfigured)
	}

	fields := SupportFields(ctx, number, text)
	msg, err := s.sender.SendWhatsApp(ctx, number, text)
	if err != nil {
		s.metrics.IncrementCounter(metrics.SupportMessages, map[string]string{"status": "error"}, "Support messages relayed")
		userMsg := err.Error()
		if userMsg == "" {
			userMsg = MsgSupportFailed
		}
		appErr := errors.Wrap(err, errors.ErrCodeRelay, "support relay failed").WithUserMessage(userMsg)
		errors.Entry(s.logger.WithError(err).WithFields(fields), appErr).Error("Failed to relay support message")
		return nil, appErr
	}

	s.metrics.IncrementCounter(metrics.SupportMessages, map[string]string{"status": "success"}, "Support messages relayed")
	s.logger.WithFields(fields).WithField(LogFieldMessageSID, msg.SID).Info("Support message relayed")
	return msg, nil
}
