package dispatch

import (
	"context"
	"fmt"
	"html/template"
	"strings"
	"time"

	"waveline.io/courier/internal/domain"
	"waveline.io/courier/internal/metrics"
)

// emailHTML is the shared notification email body. The snippet doubles as the
// hidden preheader that inbox clients show next to the subject.
var emailHTML = template.Must(template.New("email").Parse(`<!DOCTYPE html>
<html>
<body>
<span style="display:none;max-height:0;overflow:hidden">{{.Snippet}}</span>
<h2>{{.Heading}}</h2>
<ul>
{{- range .Lines}}
<li>{{.}}</li>
{{- end}}
</ul>
<p>Open Waveline to see what you missed.</p>
</body>
</html>
`))

type emailData struct {
	Snippet string
	Heading string
	Lines   []string
}

// EmailDispatcher renders and sends notification email for both the live
// path (one record, right away) and the digest path (a window of records).
type EmailDispatcher struct {
	sender      EmailSender
	sendTimeout time.Duration
}

func NewEmailDispatcher(sender EmailSender, sendTimeout time.Duration) *EmailDispatcher {
	return &EmailDispatcher{sender: sender, sendTimeout: sendTimeout}
}

// subject follows the original client wording.
func subject(count int) string {
	if count == 1 {
		return "1 unread notification on Waveline"
	}
	return fmt.Sprintf("%d unread notifications on Waveline", count)
}

// DispatchLive sends one email for one record to a live-frequency recipient.
// Recipients on a digest frequency are left for the digest pass.
func (d *EmailDispatcher) DispatchLive(ctx context.Context, rec *domain.NotificationRecord, s *domain.RecipientSettings, toName string, view domain.EmailViewModel) error {
	if !s.EmailEnabled() || s.EmailFrequency != domain.EmailLive {
		return nil
	}
	if err := d.send(ctx, toName, s.EmailAddress, []domain.EmailViewModel{view}); err != nil {
		metrics.SendsTotal.WithLabelValues("email", "transient_error").Inc()
		return err
	}
	metrics.SendsTotal.WithLabelValues("email", "success").Inc()
	return nil
}

// DispatchDigest sends one aggregated email covering the given view models,
// already ordered oldest first by the aggregator.
func (d *EmailDispatcher) DispatchDigest(ctx context.Context, s *domain.RecipientSettings, toName string, views []domain.EmailViewModel) error {
	if !s.EmailEnabled() || len(views) == 0 {
		return nil
	}
	if err := d.send(ctx, toName, s.EmailAddress, views); err != nil {
		metrics.SendsTotal.WithLabelValues("email", "transient_error").Inc()
		return err
	}
	metrics.SendsTotal.WithLabelValues("email", "success").Inc()
	metrics.DigestEmails.WithLabelValues(string(s.EmailFrequency)).Inc()
	return nil
}

func (d *EmailDispatcher) send(ctx context.Context, toName, toAddress string, views []domain.EmailViewModel) error {
	lines := make([]string, len(views))
	for i, v := range views {
		lines[i] = v.Summary
	}

	var html strings.Builder
	err := emailHTML.Execute(&html, emailData{
		Snippet: snippet(views),
		Heading: subject(len(views)),
		Lines:   lines,
	})
	if err != nil {
		return fmt.Errorf("render email: %w", err)
	}

	sendCtx, cancel := context.WithTimeout(ctx, d.sendTimeout)
	defer cancel()
	return d.sender.SendEmail(sendCtx, toName, toAddress,
		subject(len(views)), strings.Join(lines, "\n"), html.String())
}
