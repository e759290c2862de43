package branchindex

import "log/slog"

// EventType classifies a ProgressEvent.
type EventType string

const (
	EventStart        EventType = "start"
	EventDiffComputed EventType = "diff_computed"
	EventBatchWritten EventType = "batch_written"
	EventWarning      EventType = "warning"
	EventCompleted    EventType = "completed"
	EventFailed       EventType = "failed"
)

// ProgressEvent is an ephemeral stream item emitted during mutation execution.
// Events are consumed by the calling workflow (job logs, operator UI) and are
// never persisted.
type ProgressEvent struct {
	Type     EventType         `json:"type"`
	Message  string            `json:"message"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// EventSink receives progress events. Sink failures never abort the mutation;
// the executor swallows and logs them.
type EventSink interface {
	Publish(ev ProgressEvent) error
}

// SinkFunc adapts a function to the EventSink interface.
type SinkFunc func(ev ProgressEvent) error

func (f SinkFunc) Publish(ev ProgressEvent) error { return f(ev) }

// LogSink writes progress events to a structured logger. The default sink for
// worker processes with no caller-supplied consumer.
func LogSink(logger *slog.Logger) EventSink {
	return SinkFunc(func(ev ProgressEvent) error {
		attrs := []any{slog.String("type", string(ev.Type))}
		for k, v := range ev.Metadata {
			attrs = append(attrs, slog.String(k, v))
		}
		logger.Info(ev.Message, attrs...)
		return nil
	})
}
