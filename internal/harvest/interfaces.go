package harvest

import (
	"context"
	"time"
)

// Renderer returns the HTML of a listing page, running the render profile
// when one is given.
type Renderer interface {
	Render(ctx context.Context, url string, profile *RenderProfile) (string, error)
}

// Classifier decides whether the tracked person takes part in an event.
type Classifier interface {
	Classify(title, description string) bool
}

// Notifier delivers a batch of new events. Delivery failures are handled
// inside the implementation.
type Notifier interface {
	Notify(ctx context.Context, n Notification)
}

// RecipientLoader returns the notification addresses, or none.
type RecipientLoader interface {
	Load() []string
}

// NotifiedStore persists the set of URLs that have already been notified.
type NotifiedStore interface {
	LoadNotified(ctx context.Context) (URLSet, error)
	SaveNotified(ctx context.Context, set URLSet) error
}

// SnapshotStore persists the relevant events of the latest run.
type SnapshotStore interface {
	SaveSnapshot(ctx context.Context, events []Candidate) error
}

// Reporter prints events for an operator.
type Reporter interface {
	Report(heading string, events []Candidate)
}

// Clock reports the current time.
type Clock interface {
	Now() time.Time
}
