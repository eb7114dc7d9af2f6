package infrastructure

import (
	"strings"

	"mxiledger/domain/events"
)

// SubjectPrefix namespaces every subject this service publishes to
const SubjectPrefix = "mxi."

// EventStreamName is the JetStream stream holding the domain events
const EventStreamName = "mxi_events"

// EventSubjectMapper handles mapping between domain events and NATS subjects
type EventSubjectMapper struct{}

// NewEventSubjectMapper creates a new event subject mapper
func NewEventSubjectMapper() *EventSubjectMapper {
	return &EventSubjectMapper{}
}

// MapEventToSubject converts a domain event to its NATS subject, mxi.<event_type>
func (m *EventSubjectMapper) MapEventToSubject(event events.Event) string {
	return SubjectPrefix + string(event.Type())
}

// MapSubjectToEventType converts a NATS subject back to an event type
func (m *EventSubjectMapper) MapSubjectToEventType(subject string) events.EventType {
	return events.EventType(strings.TrimPrefix(subject, SubjectPrefix))
}

// GetAllSubjects returns all subjects that this service publishes to
func (m *EventSubjectMapper) GetAllSubjects() []string {
	types := events.AllEventTypes()
	subjects := make([]string, 0, len(types))
	for _, t := range types {
		subjects = append(subjects, SubjectPrefix+string(t))
	}
	return subjects
}
