package pkg

import (
	"crypto/tls"
	"fmt"
	"html"
	"regexp"

	"gopkg.in/gomail.v2"
)

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string // display sender, may equal Username
}

// SMTPMailer sends notification mail through one relay. Each Send opens its
// own connection; the relayer calls it at most once per outbox event.
type SMTPMailer struct {
	from   string
	dialer *gomail.Dialer
}

func NewSMTPMailer(cfg SMTPConfig) *SMTPMailer {
	d := gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password)
	d.TLSConfig = &tls.Config{ServerName: cfg.Host, MinVersion: tls.VersionTLS12}
	from := cfg.From
	if from == "" {
		from = cfg.Username
	}
	return &SMTPMailer{from: from, dialer: d}
}

// Send delivers htmlBody with a plain-text fallback part.
func (m *SMTPMailer) Send(to, subject, htmlBody string) error {
	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/plain", plainText(htmlBody))
	msg.AddAlternative("text/html", htmlBody)
	if err := m.dialer.DialAndSend(msg); err != nil {
		return fmt.Errorf("send mail to %s: %w", to, err)
	}
	return nil
}

var tagPattern = regexp.MustCompile(`<[^>]+>`)

func plainText(body string) string {
	return html.UnescapeString(tagPattern.ReplaceAllString(body, " "))
}

func NewRequestHTML(donorName, itemLabel, receiverName, message string) string {
	return fmt.Sprintf(`<p>Hello %s,</p><p><b>%s</b> has requested <b>%s</b>.</p><p>Message: %s</p><p>Open your dashboard to accept or reject it.</p>`,
		html.EscapeString(donorName), html.EscapeString(receiverName), html.EscapeString(itemLabel), html.EscapeString(message))
}

func RequestResolvedHTML(receiverName, itemLabel, status string) string {
	return fmt.Sprintf(`<p>Hello %s,</p><p>Your request for <b>%s</b> was <b>%s</b>.</p>`,
		html.EscapeString(receiverName), html.EscapeString(itemLabel), html.EscapeString(status))
}
