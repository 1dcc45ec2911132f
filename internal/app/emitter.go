// Package app contains the application services that drive runs: the
// engine, the worker dispatcher, the git swarm manager, and the preview
// manager.
package app

import (
	"context"
	"encoding/json"
	"log"

	"github.com/example/ocswarm/internal/ports/secondary"
)

// Emitter appends typed events to a run's ledger log. Emission failures
// are logged and swallowed: the event stream is observability, and an
// unobservable step must not kill the step itself.
type Emitter struct {
	events secondary.EventRepository
}

// NewEmitter creates an emitter over the event repository.
func NewEmitter(events secondary.EventRepository) *Emitter {
	return &Emitter{events: events}
}

// Emit marshals payload and appends one event to the run's log.
func (e *Emitter) Emit(ctx context.Context, runID, eventType string, payload any) {
	var data []byte
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			log.Printf("ERROR: failed to marshal %s event: %v", eventType, err)
			return
		}
		data = b
	}
	if _, err := e.events.Append(ctx, runID, eventType, data); err != nil {
		log.Printf("ERROR: failed to append %s event: %v", eventType, err)
	}
}
