// Package notify delivers best-effort messages to clients and administrators.
package notify

import (
	"context"
	"strings"
	"sync"

	log "github.com/sirupsen/logrus"
)

// Notifier sends a message to a recipient and reports whether it was delivered.
type Notifier interface {
	Notify(ctx context.Context, recipient, subject, message string) bool
}

// LogNotifier logs messages instead of sending them.
type LogNotifier struct{}

// Notify logs the message and reports success.
func (LogNotifier) Notify(_ context.Context, recipient, subject, message string) bool {
	log.WithFields(log.Fields{
		"recipient": recipient,
		"subject":   subject,
	}).Info("notify: message not sent, mail is not configured")
	log.Debug(message)
	return strings.TrimSpace(recipient) != ""
}

// Message is a delivered notification captured by Recorder.
type Message struct {
	Recipient string
	Subject   string
	Body      string
}

// Recorder keeps every notification in memory. Fail makes every delivery report failure.
type Recorder struct {
	mu       sync.Mutex
	messages []Message
	Fail     bool
}

// Notify records the message.
func (r *Recorder) Notify(_ context.Context, recipient, subject, message string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, Message{Recipient: recipient, Subject: subject, Body: message})
	return !r.Fail
}

// Messages returns a copy of the recorded messages.
func (r *Recorder) Messages() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Message, len(r.messages))
	copy(out, r.messages)
	return out
}
