package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/resend/resend-go/v2"
)

// ResendEmailSender delivers account emails through the Resend API. The
// caller-supplied continuation link, when present, wins over the configured
// application URL; the raw code is always appended as a query parameter.
type ResendEmailSender struct {
	Client     *resend.Client
	From       string
	AppBaseURL string

	SignupPath      string
	ResetPath       string
	EmailChangePath string
}

func NewResendEmailSender(apiKey string, from string, appBaseURL string) *ResendEmailSender {
	sender := &ResendEmailSender{
		From:            from,
		AppBaseURL:      strings.TrimRight(appBaseURL, "/"),
		SignupPath:      "/signup/verify",
		ResetPath:       "/password/reset/verify",
		EmailChangePath: "/email/change/verify",
	}
	if strings.TrimSpace(apiKey) != "" {
		sender.Client = resend.NewClient(apiKey)
	}
	return sender
}

func (s *ResendEmailSender) SendSignupEmail(ctx context.Context, email string, code string, link string) error {
	target := s.buildURL(s.SignupPath, code, link)
	subject := "Confirm your signup"
	html := fmt.Sprintf("<p>Click to confirm your signup:</p><p><a href=\"%s\">Confirm Signup</a></p>", target)
	text := fmt.Sprintf("Confirm your signup: %s", target)
	return s.send(email, subject, html, text)
}

func (s *ResendEmailSender) SendWelcomeEmail(ctx context.Context, email string) error {
	subject := "Welcome"
	html := "<p>Your email address has been verified. Welcome aboard!</p>"
	text := "Your email address has been verified. Welcome aboard!"
	return s.send(email, subject, html, text)
}

func (s *ResendEmailSender) SendPasswordResetEmail(ctx context.Context, email string, code string, link string) error {
	target := s.buildURL(s.ResetPath, code, link)
	subject := "Reset your password"
	html := fmt.Sprintf("<p>Click to reset your password:</p><p><a href=\"%s\">Reset Password</a></p>", target)
	text := fmt.Sprintf("Reset your password: %s", target)
	return s.send(email, subject, html, text)
}

func (s *ResendEmailSender) SendEmailChangeEmail(ctx context.Context, email string, code string, link string) error {
	target := s.buildURL(s.EmailChangePath, code, link)
	subject := "Confirm your new email address"
	html := fmt.Sprintf("<p>Click to confirm your new email address:</p><p><a href=\"%s\">Confirm Email Change</a></p>", target)
	text := fmt.Sprintf("Confirm your new email address: %s", target)
	return s.send(email, subject, html, text)
}

func (s *ResendEmailSender) buildURL(path string, code string, link string) string {
	base := link
	if base == "" {
		if s.AppBaseURL == "" {
			return code
		}
		base = s.AppBaseURL + path
	}
	separator := "?"
	if strings.Contains(base, "?") {
		separator = "&"
	}
	return base + separator + "code=" + url.QueryEscape(code)
}

func (s *ResendEmailSender) send(to string, subject string, html string, text string) error {
	if s.Client == nil {
		return errors.New("email sender not configured")
	}
	_, err := s.Client.Emails.Send(&resend.SendEmailRequest{
		From:    s.From,
		To:      []string{to},
		Subject: subject,
		Html:    html,
		Text:    text,
	})
	return err
}
