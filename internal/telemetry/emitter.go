package telemetry

import (
	"context"

	"stepup-gateway/internal/telemetry/domain"
)

// EventEmitter emits step-up events (e.g. to OTel Logs or Kafka). Best-effort;
// callers log and ignore errors.
type EventEmitter interface {
	Emit(ctx context.Context, event *domain.StepUpEvent) error
}

// Fanout emits each event to all underlying emitters. The first error is
// returned after all emitters have been tried.
type Fanout []EventEmitter

func (f Fanout) Emit(ctx context.Context, event *domain.StepUpEvent) error {
	var firstErr error
	for _, e := range f {
		if e == nil {
			continue
		}
		if err := e.Emit(ctx, event); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
