package notify

import (
	"context"
	"encoding/json"

	"cloud.google.com/go/pubsub"
	"go.uber.org/zap"

	"github.com/JakeFAU/eventwatch/internal/harvest"
)

// Publisher is the subset of *pubsub.Topic used by PubSubNotifier.
type Publisher interface {
	Publish(ctx context.Context, msg *pubsub.Message) *pubsub.PublishResult
}

type eventMessage struct {
	Title       string `json:"title"`
	URL         string `json:"url"`
	Description string `json:"description"`
	Source      string `json:"source"`
	Subject     string `json:"subject"`
}

// PubSubNotifier publishes one message per new event.
type PubSubNotifier struct {
	topic  Publisher
	logger *zap.Logger
}

// NewPubSub builds a PubSubNotifier over topic.
func NewPubSub(topic Publisher, logger *zap.Logger) *PubSubNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PubSubNotifier{topic: topic, logger: logger}
}

// Notify publishes every event and waits for the server acknowledgements.
// Failures are logged per event.
func (p *PubSubNotifier) Notify(ctx context.Context, n harvest.Notification) {
	results := make([]*pubsub.PublishResult, 0, len(n.Events))
	urls := make([]string, 0, len(n.Events))
	for _, ev := range n.Events {
		data, err := json.Marshal(eventMessage{
			Title:       ev.Title,
			URL:         ev.URL,
			Description: ev.Description,
			Source:      ev.SourceID,
			Subject:     n.Subject,
		})
		if err != nil {
			p.logger.Error("marshal event message failed", zap.String("url", ev.URL), zap.Error(err))
			continue
		}
		results = append(results, p.topic.Publish(ctx, &pubsub.Message{
			Data:       data,
			Attributes: map[string]string{"url": ev.URL, "source": ev.SourceID},
		}))
		urls = append(urls, ev.URL)
	}

	published := 0
	for i, res := range results {
		if _, err := res.Get(ctx); err != nil {
			p.logger.Error("publish event failed", zap.String("url", urls[i]), zap.Error(err))
			continue
		}
		published++
	}
	p.logger.Info("events published", zap.Int("published", published), zap.Int("events", len(n.Events)))
}
