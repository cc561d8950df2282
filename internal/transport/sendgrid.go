package transport

import (
	"context"
	"fmt"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"

	"waveline.io/courier/internal/config"
	apperrors "waveline.io/courier/internal/pkg/errors"
)

// SendGridTransport sends notification email through SendGrid.
type SendGridTransport struct {
	client *sendgrid.Client
	from   *mail.Email
}

func NewSendGridTransport(cfg config.SendGridConfig) *SendGridTransport {
	return &SendGridTransport{
		client: sendgrid.NewSendClient(cfg.APIKey),
		from:   mail.NewEmail(cfg.FromName, cfg.FromAddress),
	}
}

// SendEmail delivers one email. Provider 5xx responses are transient; 4xx
// responses are terminal and reported as plain errors.
func (t *SendGridTransport) SendEmail(ctx context.Context, toName, toAddress, subject, plainBody, htmlBody string) error {
	to := mail.NewEmail(toName, toAddress)
	message := mail.NewSingleEmail(t.from, subject, to, plainBody, htmlBody)

	resp, err := t.client.SendWithContext(ctx, message)
	if err != nil {
		return fmt.Errorf("%w: sendgrid send: %w", apperrors.ErrTransient, err)
	}
	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode >= 500:
		return fmt.Errorf("%w: sendgrid responded %d", apperrors.ErrTransient, resp.StatusCode)
	default:
		return fmt.Errorf("sendgrid rejected email with status %d: %s", resp.StatusCode, resp.Body)
	}
}
