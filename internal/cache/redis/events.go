package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/alanyoungcy/truthbond/internal/domain"
)

const (
	// EventChannel is the pub/sub channel carrying live bond events.
	EventChannel = "truthbond:events"
	// EventStream is the durable stream for consumers that must not miss a
	// settlement (the archive worker reads it).
	EventStream = "truthbond:events:stream"
)

// EventPublisher implements domain.EventSink on top of the SignalBus: every
// event goes to the live pub/sub channel and the durable stream.
type EventPublisher struct {
	bus domain.SignalBus
}

// NewEventPublisher creates an EventPublisher over bus.
func NewEventPublisher(bus domain.SignalBus) *EventPublisher {
	return &EventPublisher{bus: bus}
}

// Emit serializes the event as JSON and publishes it. Stream append happens
// first so a durable record exists before any live consumer reacts.
func (p *EventPublisher) Emit(ctx context.Context, ev domain.Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("redis: marshal event %s: %w", ev.Type, err)
	}
	if err := p.bus.StreamAppend(ctx, EventStream, payload); err != nil {
		return err
	}
	return p.bus.Publish(ctx, EventChannel, payload)
}

// Compile-time interface check.
var _ domain.EventSink = (*EventPublisher)(nil)
