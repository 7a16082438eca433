package secondary

import "gitlab.com/gearbroker.net/internal/domain"

// EventPublisher receives job lifecycle events. Publish is called while
// broker state is locked and must return without blocking.
type EventPublisher interface {
	Publish(event domain.JobEvent)
}
