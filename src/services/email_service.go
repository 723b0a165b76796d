package services

import (
	"context"
	"fmt"
	"time"

	"github.com/bpstack/home-account-showcase-sub001/src/config"
	"github.com/bpstack/home-account-showcase-sub001/src/logger"
	"github.com/mailgun/mailgun-go/v4"
)

type EmailService interface {
	SendVerificationEmail(toEmail, username, token string) error
	SendPasswordResetEmail(toEmail, username, token string) error
}

// NewEmailService picks the transactional email backend from configuration,
// falling back to the logging mock when Mailgun is not fully configured.
func NewEmailService(cfg *config.AppConfig) EmailService {
	if cfg.EmailServiceProvider == "mailgun" && cfg.MailgunDomain != "" && cfg.MailgunPrivateAPIKey != "" {
		if logger.L != nil {
			logger.L.Info("Mailgun email service initialized", "domain", cfg.MailgunDomain)
		}
		return &MailgunEmailService{
			mg:                  mailgun.NewMailgun(cfg.MailgunDomain, cfg.MailgunPrivateAPIKey),
			sender:              fmt.Sprintf("%s <%s>", cfg.SenderName, cfg.SenderEmail),
			verificationBaseURL: cfg.VerificationEmailBaseURL,
			resetBaseURL:        cfg.PasswordResetBaseURL,
			resetExpiry:         cfg.PasswordResetTokenExpiry,
		}
	}
	if logger.L != nil {
		logger.L.Info("Using mock email service", "provider", cfg.EmailServiceProvider)
	}
	return &MockEmailService{
		VerificationBaseURL: cfg.VerificationEmailBaseURL,
		ResetBaseURL:        cfg.PasswordResetBaseURL,
	}
}

type MailgunEmailService struct {
	mg                  mailgun.Mailgun
	sender              string
	verificationBaseURL string
	resetBaseURL        string
	resetExpiry         time.Duration
}

func (s *MailgunEmailService) SendVerificationEmail(toEmail, username, token string) error {
	link := fmt.Sprintf("%s?token=%s", s.verificationBaseURL, token)
	subject := "Verifica tu dirección de correo"
	body := fmt.Sprintf(`Hola %s,

Bienvenido. Verifica tu dirección de correo con el siguiente enlace:
%s

Si no has creado una cuenta con este correo, ignora este mensaje.`, username, link)

	message := s.mg.NewMessage(s.sender, subject, body, toEmail)
	message.AddTag("email-verification")

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()
	resp, id, err := s.mg.Send(ctx, message)
	if err != nil {
		logger.L.Error("Failed to send verification email via Mailgun", "error", err, "to", toEmail, "mailgunResp", resp)
		return fmt.Errorf("mailgun send failed: %w", err)
	}
	logger.L.Info("Verification email sent via Mailgun", "to", toEmail, "id", id)
	return nil
}

func (s *MailgunEmailService) SendPasswordResetEmail(toEmail, username, token string) error {
	link := fmt.Sprintf("%s?token=%s", s.resetBaseURL, token)
	subject := "Restablecer contraseña"
	body := fmt.Sprintf(`Hola %s,

Has solicitado restablecer tu contraseña. Usa el siguiente enlace:
%s

Si no has solicitado este cambio, ignora este mensaje. El enlace caduca en %s.`,
		username, link, s.resetExpiry.String())

	message := s.mg.NewMessage(s.sender, subject, body, toEmail)
	message.AddTag("password-reset")

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()
	resp, id, err := s.mg.Send(ctx, message)
	if err != nil {
		logger.L.Error("Failed to send password reset email via Mailgun", "error", err, "to", toEmail, "mailgunResp", resp)
		return fmt.Errorf("mailgun send failed: %w", err)
	}
	logger.L.Info("Password reset email sent via Mailgun", "to", toEmail, "id", id)
	return nil
}

// MockEmailService logs the links it would send. Used in development and tests.
type MockEmailService struct {
	VerificationBaseURL string
	ResetBaseURL        string
}

func (m *MockEmailService) SendVerificationEmail(toEmail, username, token string) error {
	if logger.L != nil {
		logger.L.Info("MockEmailService: would send verification email",
			"to", toEmail, "username", username,
			"link", fmt.Sprintf("%s?token=%s", m.VerificationBaseURL, token))
	}
	return nil
}

func (m *MockEmailService) SendPasswordResetEmail(toEmail, username, token string) error {
	if logger.L != nil {
		logger.L.Info("MockEmailService: would send password reset email",
			"to", toEmail, "username", username,
			"link", fmt.Sprintf("%s?token=%s", m.ResetBaseURL, token))
	}
	return nil
}
