package notification

import (
	"context"
	"log/slog"
)

const (
	// KindWithdrawalApproval asks a chama admin to review a withdrawal.
	KindWithdrawalApproval = "chama_withdrawal_approval"
	// KindTransactionSettled reports a completed deposit or withdrawal.
	KindTransactionSettled = "transaction_settled"
)

// Message describes a notification payload.
type Message struct {
	Kind        string
	Destination string
	Body        string
}

// Notifier delivers notifications to downstream systems (SMS, Nostr).
// Delivery is fire-and-forget: callers log failures and never block on it.
type Notifier interface {
	Send(ctx context.Context, message Message) error
}

// LoggerNotifier is a stub implementation that writes notifications to the
// structured logger.
type LoggerNotifier struct {
	logger *slog.Logger
}

// NewLoggerNotifier constructs a logging notifier stub.
func NewLoggerNotifier(logger *slog.Logger) *LoggerNotifier {
	return &LoggerNotifier{logger: logger}
}

// Send writes the message to the structured logger.
func (n *LoggerNotifier) Send(_ context.Context, message Message) error {
	if n == nil || n.logger == nil {
		return nil
	}
	n.logger.Info("notification", "kind", message.Kind, "destination", message.Destination, "body", message.Body)
	return nil
}
