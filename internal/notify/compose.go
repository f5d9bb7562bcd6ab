// Package notify composes and delivers new-event notifications.
package notify

import (
	"encoding/json"
	"fmt"

	"github.com/JakeFAU/eventwatch/internal/harvest"
)

// DefaultSubject returns the subject line used when none is configured.
func DefaultSubject(trackedName string) string {
	return fmt.Sprintf("New %s Event(s) Found", trackedName)
}

// Compose builds the notification for events. The body lists the events
// as indented JSON records.
func Compose(trackedName string, events []harvest.Candidate, sender, subject string, recipients []string) (harvest.Notification, error) {
	if subject == "" {
		subject = DefaultSubject(trackedName)
	}
	records := events
	if records == nil {
		records = []harvest.Candidate{}
	}
	data, err := json.MarshalIndent(records, "", "    ")
	if err != nil {
		return harvest.Notification{}, fmt.Errorf("marshal events: %w", err)
	}
	return harvest.Notification{
		Subject:    subject,
		Body:       fmt.Sprintf("The following new %s events were found:\n\n%s", trackedName, data),
		Sender:     sender,
		Recipients: append([]string(nil), recipients...),
		Events:     events,
	}, nil
}
