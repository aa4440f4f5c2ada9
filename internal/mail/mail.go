// Package mail delivers transactional email for verification and recovery codes.
package mail

import (
	"fmt"
	"net"
	"net/smtp"
	"strings"

	"github.com/notionclone/notionclone/internal/config"
	log "github.com/sirupsen/logrus"
)

// Sender dispatches transactional email. Delivery is fire-and-forget:
// failures are logged by callers, never rolled back against.
type Sender interface {
	SendVerificationEmail(to, name, code string) error
	SendPasswordRecoveryEmail(to, name, code string) error
}

// NewSender builds an SMTP sender, or a log-only sender when SMTP is not configured.
func NewSender(cfg config.SMTPConfig, siteName string) Sender {
	if strings.TrimSpace(cfg.Server) == "" {
		log.Warn("mail: smtp not configured, emails will be logged only")
		return &LogSender{SiteName: siteName}
	}
	return &SMTPSender{Config: cfg, SiteName: siteName}
}

// SMTPSender sends mail over plain-auth SMTP.
type SMTPSender struct {
	Config   config.SMTPConfig
	SiteName string
}

// SendVerificationEmail sends the email-verification code.
func (s *SMTPSender) SendVerificationEmail(to, name, code string) error {
	subject := fmt.Sprintf("Verify your email - %s", s.SiteName)
	body := fmt.Sprintf(
		"Hello %s,\r\n\r\n"+
			"Thank you for registering! Please use the following code to verify your email:\r\n\r\n"+
			"%s\r\n\r\n"+
			"This code will expire in 15 minutes.\r\n\r\n"+
			"If you didn't create an account, please ignore this email.\r\n\r\n"+
			"Best regards,\r\n%s Team",
		name, code, s.SiteName,
	)
	return s.send(to, subject, body)
}

// SendPasswordRecoveryEmail sends the password-recovery code.
func (s *SMTPSender) SendPasswordRecoveryEmail(to, name, code string) error {
	subject := fmt.Sprintf("Password Recovery - %s", s.SiteName)
	body := fmt.Sprintf(
		"Hello %s,\r\n\r\n"+
			"We received a request to reset your password. Please use the following code:\r\n\r\n"+
			"%s\r\n\r\n"+
			"This code will expire in 15 minutes.\r\n\r\n"+
			"If you didn't request a password reset, please ignore this email and ensure your account is secure.\r\n\r\n"+
			"Best regards,\r\n%s Team",
		name, code, s.SiteName,
	)
	return s.send(to, subject, body)
}

// send delivers a single message over SMTP with plain auth.
func (s *SMTPSender) send(recipient, subject, body string) error {
	host, _, errSplit := net.SplitHostPort(s.Config.Server)
	if errSplit != nil {
		return fmt.Errorf("mail: invalid smtp server %q: %w", s.Config.Server, errSplit)
	}

	auth := smtp.PlainAuth("", s.Config.Username, s.Config.Password, host)
	msg := []byte(
		"From: " + s.Config.From + "\r\n" +
			"To: " + recipient + "\r\n" +
			"Subject: " + subject + "\r\n" +
			"\r\n" +
			body + "\r\n",
	)
	if errSend := smtp.SendMail(s.Config.Server, auth, s.Config.From, []string{recipient}, msg); errSend != nil {
		return fmt.Errorf("mail: send to %s: %w", recipient, errSend)
	}
	return nil
}

// LogSender logs mail instead of delivering it. Used in development and tests.
type LogSender struct {
	SiteName string

	// Sent records dispatched messages for test assertions.
	Sent []LoggedMessage
}

// LoggedMessage captures a message the LogSender would have delivered.
type LoggedMessage struct {
	To   string
	Name string
	Code string
	Kind string
}

// SendVerificationEmail logs the verification code.
func (s *LogSender) SendVerificationEmail(to, name, code string) error {
	s.Sent = append(s.Sent, LoggedMessage{To: to, Name: name, Code: code, Kind: "verification"})
	log.WithFields(log.Fields{"to": to, "kind": "verification"}).Info("mail: dispatch skipped (log-only sender)")
	return nil
}

// SendPasswordRecoveryEmail logs the recovery code.
func (s *LogSender) SendPasswordRecoveryEmail(to, name, code string) error {
	s.Sent = append(s.Sent, LoggedMessage{To: to, Name: name, Code: code, Kind: "recovery"})
	log.WithFields(log.Fields{"to": to, "kind": "recovery"}).Info("mail: dispatch skipped (log-only sender)")
	return nil
}
