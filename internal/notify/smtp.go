package notify

import (
	"context"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
)

// SMTPConfig holds the mail server settings.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// SMTPNotifier sends plain-text mail with PLAIN auth over STARTTLS.
type SMTPNotifier struct {
	cfg      SMTPConfig
	sendMail func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
	now      func() time.Time
}

// NewSMTPNotifier constructs an SMTPNotifier.
func NewSMTPNotifier(cfg SMTPConfig) *SMTPNotifier {
	return &SMTPNotifier{cfg: cfg, sendMail: smtp.SendMail, now: time.Now}
}

// Notify sends the message; failures are logged and reported as false.
func (n *SMTPNotifier) Notify(ctx context.Context, recipient, subject, message string) bool {
	recipient = strings.TrimSpace(recipient)
	if recipient == "" {
		return false
	}
	if errCtx := ctx.Err(); errCtx != nil {
		log.WithError(errCtx).WithField("recipient", recipient).Warn("notify: context done before send")
		return false
	}

	addr := net.JoinHostPort(n.cfg.Host, strconv.Itoa(n.cfg.Port))
	auth := smtp.PlainAuth("", n.cfg.Username, n.cfg.Password, n.cfg.Host)

	done := make(chan error, 1)
	go func() {
		done <- n.sendMail(addr, auth, n.cfg.From, []string{recipient}, n.buildMessage(recipient, subject, message))
	}()

	select {
	case errSend := <-done:
		if errSend != nil {
			log.WithError(errSend).WithField("recipient", recipient).Warn("notify: send mail failed")
			return false
		}
		return true
	case <-ctx.Done():
		log.WithError(ctx.Err()).WithField("recipient", recipient).Warn("notify: send mail timed out")
		return false
	}
}

func (n *SMTPNotifier) buildMessage(recipient, subject, body string) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", n.cfg.From)
	fmt.Fprintf(&b, "To: %s\r\n", recipient)
	fmt.Fprintf(&b, "Subject: %s\r\n", sanitizeHeader(subject))
	fmt.Fprintf(&b, "Date: %s\r\n", n.now().UTC().Format(time.RFC1123Z))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=\"utf-8\"\r\n")
	b.WriteString("\r\n")
	b.WriteString(strings.ReplaceAll(body, "\n", "\r\n"))
	return []byte(b.String())
}

// sanitizeHeader strips line breaks that would inject extra headers.
func sanitizeHeader(v string) string {
	return strings.NewReplacer("\r", " ", "\n", " ").Replace(v)
}
