package job

import (
	"context"

	"github.com/phrazzld/genjobs/internal/events"
)

// ExecuteHandler returns an events.EventHandler that runs the event's job
// synchronously. It returns nil when the work item is settled, so
// at-least-once transports acknowledge it, and the executor's error when the
// job should be delivered again.
func ExecuteHandler(executor JobExecutor) events.EventHandler {
	return events.EventHandlerFunc(func(ctx context.Context, event *events.JobEvent) error {
		if err := event.Validate(); err != nil {
			return err
		}
		err := executor.Execute(ctx, event.JobID)
		if Settled(err) {
			return nil
		}
		return err
	})
}
