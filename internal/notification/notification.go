package notification

import (
	"context"
	"log/slog"
)

const (
	// KindDeposit is emitted after a payment is credited to a depositor.
	KindDeposit = "deposit"
	// KindWithdrawal is emitted after a depositor's balance is paid out.
	KindWithdrawal = "withdrawal"
)

// Message describes a ledger event for downstream systems.
type Message struct {
	Kind      string
	Account   string
	Amount    uint64
	Balance   uint64
	Reference string
}

// Notifier delivers notifications to downstream systems.
type Notifier interface {
	Send(ctx context.Context, message Message) error
}

// LoggerNotifier writes notifications to the structured logger.
type LoggerNotifier struct {
	logger *slog.Logger
}

// NewLoggerNotifier constructs a logging notifier.
func NewLoggerNotifier(logger *slog.Logger) *LoggerNotifier {
	return &LoggerNotifier{logger: logger}
}

// Send writes the message to the structured logger.
func (n *LoggerNotifier) Send(ctx context.Context, message Message) error {
	if n == nil || n.logger == nil {
		return nil
	}
	n.logger.InfoContext(ctx, "notification",
		slog.String("kind", message.Kind),
		slog.String("account", message.Account),
		slog.Uint64("amount", message.Amount),
		slog.Uint64("balance", message.Balance),
		slog.String("reference", message.Reference),
	)
	return nil
}
