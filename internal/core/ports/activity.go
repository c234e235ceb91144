package ports

import (
	"context"

	"github.com/muusmart/iam-service/internal/core/domain"
)

// ActivitySink accepts authentication events for asynchronous auditing.
// Publish must not block the caller.
type ActivitySink interface {
	Publish(event domain.ActivityEvent)
}

// ActivityRepository persists audit events.
type ActivityRepository interface {
	Insert(ctx context.Context, event *domain.ActivityEvent) error
}

// ActivityService processes a single dequeued event.
type ActivityService interface {
	Process(ctx context.Context, event domain.ActivityEvent) error
}
