package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/resend/resend-go/v2"
)

type EmailService struct {
	client    *resend.Client
	fromEmail string
	isDev     bool
	appURL    string
	appName   string
}

func NewEmailService(apiKey, fromEmail, appURL, appName string, isDev bool) *EmailService {
	var client *resend.Client
	if apiKey != "" && !isDev {
		client = resend.NewClient(apiKey)
	}

	return &EmailService{
		client:    client,
		fromEmail: fromEmail,
		isDev:     isDev,
		appURL:    appURL,
		appName:   appName,
	}
}

func (s *EmailService) loopURL(loopID string) string {
	return fmt.Sprintf("%s/loops/%s", s.appURL, loopID)
}

func (s *EmailService) SendWhisperNotification(ctx context.Context, email, loopID, loopTitle, message string) error {
	subject, body := whisperEmailTemplate(loopTitle, message, s.loopURL(loopID), s.appName)
	return s.send(ctx, "whisper", email, subject, body)
}

func (s *EmailService) SendCollaboratorNotification(ctx context.Context, email, inviter, loopID, loopTitle string) error {
	subject, body := collaboratorEmailTemplate(inviter, loopTitle, s.loopURL(loopID), s.appName)
	return s.send(ctx, "collaborator", email, subject, body)
}

func (s *EmailService) send(ctx context.Context, kind, to, subject, body string) error {
	if s.isDev {
		slog.Info("email sent (dev mode)", "type", kind, "to", to, "subject", subject)
		return nil
	}

	if s.client == nil {
		return fmt.Errorf("email service not configured (missing RESEND_API_KEY)")
	}

	params := &resend.SendEmailRequest{
		From:    s.fromEmail,
		To:      []string{to},
		Subject: subject,
		Text:    body,
	}

	_, err := s.client.Emails.SendWithContext(ctx, params)
	if err != nil {
		return fmt.Errorf("failed to send %s email: %w", kind, err)
	}

	slog.Info("email sent", "type", kind, "to", to)
	return nil
}
