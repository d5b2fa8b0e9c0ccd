package service

import (
	"context"

	"github.com/rs/zerolog/log"
)

// Severity grades a notification.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Notifier delivers operational alerts. Dispatch is fire-and-forget: a
// delivery failure is the notifier's problem, never the caller's.
type Notifier interface {
	Notify(ctx context.Context, subject, message string, severity Severity)
}

// LogNotifier writes alerts to the structured log. It stands in for the
// external notification transport in environments that have none configured.
type LogNotifier struct{}

// NewLogNotifier creates a LogNotifier.
func NewLogNotifier() *LogNotifier {
	return &LogNotifier{}
}

func (n *LogNotifier) Notify(_ context.Context, subject, message string, severity Severity) {
	event := log.Info()
	switch severity {
	case SeverityWarning:
		event = log.Warn()
	case SeverityCritical:
		event = log.Error()
	}
	event.
		Str("subject", subject).
		Str("severity", string(severity)).
		Msg(message)
}
