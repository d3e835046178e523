// Package email implements the outbound email collaborator used by the
// automation engine. Delivery failures are reported as errors, never panics;
// the scheduler decides what to do with them.
package email

import (
	"context"
	"fmt"

	"crm_portal_backend/platform/config"
)

// Sender delivers automation emails. Implementations must be safe for
// concurrent use; ProcessDueEmails fans out over multiple records.
type Sender interface {
	// SendSequenceStep renders and sends the email for a sequence template.
	// An error means the recipient did not get the email; the caller keeps
	// the step due for a later retry.
	SendSequenceStep(ctx context.Context, toEmail, consumerName, templateKey string) error
	// SendCustomEmail sends a one-off email with pre-rendered HTML content.
	SendCustomEmail(ctx context.Context, toEmail, subject, htmlContent string) error
}

// NoopSender is used when email delivery is disabled (development, tests).
type NoopSender struct{}

func (NoopSender) SendSequenceStep(ctx context.Context, toEmail, consumerName, templateKey string) error {
	return nil
}

func (NoopSender) SendCustomEmail(ctx context.Context, toEmail, subject, htmlContent string) error {
	return nil
}

// NewSender builds the configured Sender. With email disabled a NoopSender is
// returned so callers never need to nil-check.
func NewSender(cfg config.EmailConfig) (Sender, error) {
	if !cfg.GetEmailEnabled() {
		return NoopSender{}, nil
	}
	if cfg.GetSMTPHost() == "" {
		return nil, fmt.Errorf("smtp host is required when email is enabled")
	}

	return NewSMTPSender(
		cfg.GetSMTPHost(),
		cfg.GetSMTPPort(),
		cfg.GetSMTPUsername(),
		cfg.GetSMTPPassword(),
		cfg.GetEmailFromAddress(),
		cfg.GetEmailFromName(),
	), nil
}

// stepEmail resolves a sequence template key to its subject and rendered body.
func stepEmail(templateKey, consumerName string) (subject, html string, err error) {
	subject, ok := subjectForTemplate[templateKey]
	if !ok {
		return "", "", fmt.Errorf("unknown sequence template %q", templateKey)
	}

	heading := subject
	html, err = renderEmailTemplate(templateKey+".html", sequenceStepEmailData{
		baseEmailData: baseEmailData{
			Title:   subject,
			Heading: heading,
		},
		ConsumerName: consumerName,
	})
	if err != nil {
		return "", "", err
	}
	return subject, html, nil
}
