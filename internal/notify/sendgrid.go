package notify

import (
	"context"
	"net/http"
	"strings"

	sendgridgo "github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	log "github.com/sirupsen/logrus"
)

// sendGridEndpoint is the v3 mail send path.
const sendGridEndpoint = "/v3/mail/send"

// SendGridConfig holds the SendGrid API settings.
type SendGridConfig struct {
	APIKey     string
	BaseURL    string // Empty uses api.sendgrid.com.
	Sender     string
	SenderName string
}

// SendGridNotifier sends plain-text mail through the SendGrid v3 API.
type SendGridNotifier struct {
	cfg SendGridConfig
}

// NewSendGridNotifier constructs a SendGridNotifier.
func NewSendGridNotifier(cfg SendGridConfig) *SendGridNotifier {
	return &SendGridNotifier{cfg: cfg}
}

// newClient builds a client per send; the SendGrid client stores the request body on itself.
func (n *SendGridNotifier) newClient() *sendgridgo.Client {
	if strings.TrimSpace(n.cfg.BaseURL) == "" {
		return sendgridgo.NewSendClient(n.cfg.APIKey)
	}
	request := sendgridgo.GetRequest(n.cfg.APIKey, sendGridEndpoint, strings.TrimRight(n.cfg.BaseURL, "/"))
	request.Method = http.MethodPost
	return &sendgridgo.Client{Request: request}
}

// Notify sends the message; failures are logged and reported as false.
func (n *SendGridNotifier) Notify(ctx context.Context, recipient, subject, message string) bool {
	recipient = strings.TrimSpace(recipient)
	if recipient == "" {
		return false
	}

	from := mail.NewEmail(n.cfg.SenderName, n.cfg.Sender)
	to := mail.NewEmail(recipient, recipient)
	email := mail.NewSingleEmail(from, sanitizeHeader(subject), to, message, "")

	resp, errSend := n.newClient().SendWithContext(ctx, email)
	if errSend != nil {
		log.WithError(errSend).WithField("recipient", recipient).Warn("notify: sendgrid send failed")
		return false
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		log.WithFields(log.Fields{
			"recipient": recipient,
			"status":    resp.StatusCode,
			"response":  resp.Body,
		}).Warn("notify: sendgrid rejected message")
		return false
	}
	log.WithField("recipient", recipient).Debug("notify: mail sent")
	return true
}
