package notify

import (
	"context"

	"go.uber.org/zap"

	"github.com/JakeFAU/eventwatch/internal/harvest"
)

// Multi fans a notification out to every notifier in order.
type Multi []harvest.Notifier

// Notify calls each notifier.
func (m Multi) Notify(ctx context.Context, n harvest.Notification) {
	for _, notifier := range m {
		notifier.Notify(ctx, n)
	}
}

// LogNotifier records notifications in the log only. It is used when no
// delivery channel is enabled.
type LogNotifier struct {
	logger *zap.Logger
}

// NewLog builds a LogNotifier.
func NewLog(logger *zap.Logger) *LogNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogNotifier{logger: logger}
}

// Notify logs the subject and every event URL.
func (l *LogNotifier) Notify(_ context.Context, n harvest.Notification) {
	urls := make([]string, 0, len(n.Events))
	for _, ev := range n.Events {
		urls = append(urls, ev.URL)
	}
	l.logger.Info("notification (no delivery channel enabled)",
		zap.String("subject", n.Subject),
		zap.Strings("urls", urls),
		zap.Int("recipients", len(n.Recipients)),
	)
}
