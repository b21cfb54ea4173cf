// internal/service/email/service.go
package email

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"crm-service/internal/domain/notification"

	"gopkg.in/gomail.v2"
)

var ErrNoRecipients = errors.New("mail has no recipients")

// Dialer is the part of gomail.Dialer the sender uses.
type Dialer interface {
	DialAndSend(m ...*gomail.Message) error
}

// EmailSender delivers notification mail over SMTP.
type EmailSender struct {
	dialer   Dialer
	fromAddr string
	fromName string
}

// NewEmailSender creates an SMTP sender. Port 465 uses implicit TLS, other
// ports upgrade with STARTTLS when the server offers it.
func NewEmailSender(host string, port int, user, pass, fromAddr, fromName string) *EmailSender {
	return &EmailSender{
		dialer:   gomail.NewDialer(host, port, user, pass),
		fromAddr: fromAddr,
		fromName: fromName,
	}
}

// NewEmailSenderWithDialer is used when the transport is provided by the caller.
func NewEmailSenderWithDialer(d Dialer, fromAddr, fromName string) *EmailSender {
	return &EmailSender{dialer: d, fromAddr: fromAddr, fromName: fromName}
}

// DefaultFrom is the configured envelope sender.
func (e *EmailSender) DefaultFrom() string {
	return e.fromAddr
}

// Send builds a multipart message and hands it to the SMTP server.
func (e *EmailSender) Send(ctx context.Context, m notification.Mail) error {
	if len(m.To) == 0 {
		return ErrNoRecipients
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	msg := e.buildMessage(m)
	if err := e.dialer.DialAndSend(msg); err != nil {
		return fmt.Errorf("send mail failed: %w", err)
	}
	return nil
}

func (e *EmailSender) buildMessage(m notification.Mail) *gomail.Message {
	from := m.From
	if from == "" {
		from = e.fromAddr
	}

	msg := gomail.NewMessage()
	if e.fromName != "" && from == e.fromAddr {
		msg.SetAddressHeader("From", from, e.fromName)
	} else {
		msg.SetHeader("From", from)
	}
	msg.SetHeader("To", m.To...)
	msg.SetHeader("Subject", m.Subject)

	switch {
	case m.TextBody != "" && m.HTMLBody != "":
		msg.SetBody("text/plain", m.TextBody)
		msg.AddAlternative("text/html", buildHTMLTemplate(m.HTMLBody))
	case m.HTMLBody != "":
		msg.SetBody("text/html", buildHTMLTemplate(m.HTMLBody))
	default:
		msg.SetBody("text/plain", m.TextBody)
	}
	return msg
}

// buildHTMLTemplate wraps a body into the CRM mail layout.
func buildHTMLTemplate(content string) string {
	header := `
	<!DOCTYPE html>
	<html>
	<head>
		<meta charset="utf-8" />
		<title>CRM</title>
		<style>
			body { font-family: Arial, sans-serif; background-color: #f6f8fa; padding: 30px; }
			.container { max-width: 600px; margin: auto; background: #fff; border-radius: 10px; overflow: hidden; box-shadow: 0 2px 5px rgba(0,0,0,0.1); }
			.header { background: #2d5b8a; color: white; text-align: center; padding: 20px; font-size: 22px; font-weight: bold; }
			.footer { background: #f1f1f1; color: #555; text-align: center; padding: 15px; font-size: 13px; }
			.body { padding: 25px; color: #333; line-height: 1.6; }
		</style>
	</head>
	<body>
	<div class="container">
		<div class="header">Sales</div>
		<div class="body">
	`

	footer := `
		</div>
		<div class="footer">
			<p>You are receiving this message because of a request made on our website.</p>
		</div>
	</div>
	</body>
	</html>
	`

	return header + strings.TrimSpace(content) + footer
}
