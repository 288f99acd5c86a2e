package progress

import (
	"context"
	"log/slog"

	"github.com/p-n-ai/study-centre/internal/platform/lazy"
)

// LoadTracker logs every finished content load and records it as an event.
// Event write failures are logged and otherwise ignored.
func LoadTracker(events EventLogger, logger *slog.Logger) lazy.Tracker {
	if logger == nil {
		logger = slog.Default()
	}
	logged := lazy.LogTracker(logger)
	return lazy.TrackerFunc(func(r lazy.Result) {
		logged.Track(r)
		if events == nil {
			return
		}

		ev := Event{
			Type:  EventPageLoaded,
			Route: r.Name,
			Data: map[string]any{
				"attempts":    r.Attempts,
				"duration_ms": r.Duration.Milliseconds(),
			},
		}
		if r.Err != nil {
			ev.Type = EventLoadFailed
			ev.Data["error"] = r.Err.Error()
		}
		if err := events.LogEvent(context.Background(), ev); err != nil {
			logger.Warn("failed to record load event", "name", r.Name, "error", err)
		}
	})
}
