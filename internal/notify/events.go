package notify

import (
	"context"
	"fmt"

	"github.com/alanyoungcy/truthbond/internal/domain"
)

// EventSink adapts a Notifier to domain.EventSink so bond lifecycle events
// can be delivered to operators. Each event type is formatted into a short
// human-readable alert; the Notifier's event filter decides which types are
// actually forwarded.
type EventSink struct {
	notifier *Notifier
}

// NewEventSink creates an EventSink over the given Notifier.
func NewEventSink(n *Notifier) *EventSink {
	return &EventSink{notifier: n}
}

// Emit formats and forwards the event. Delivery failures are returned but the
// ledger treats notification as best effort.
func (s *EventSink) Emit(ctx context.Context, ev domain.Event) error {
	title, message := formatEvent(ev)
	return s.notifier.Notify(ctx, string(ev.Type), title, message)
}

func formatEvent(ev domain.Event) (title, message string) {
	switch ev.Type {
	case domain.EventBondCreated:
		title = fmt.Sprintf("Bond #%d created", ev.BondID)
	case domain.EventBondChallenged:
		title = fmt.Sprintf("Bond #%d challenged", ev.BondID)
	case domain.EventBondConceded:
		title = fmt.Sprintf("Bond #%d conceded", ev.BondID)
	case domain.EventBondWithdrawn:
		title = fmt.Sprintf("Bond #%d withdrawn", ev.BondID)
	case domain.EventBondRejected:
		title = fmt.Sprintf("Bond #%d rejected by judge", ev.BondID)
	case domain.EventBondTimedOut:
		title = fmt.Sprintf("Bond #%d settled by timeout", ev.BondID)
	case domain.EventRuledForPoster:
		title = fmt.Sprintf("Bond #%d: ruling for poster", ev.BondID)
	case domain.EventRuledForChallenger:
		title = fmt.Sprintf("Bond #%d: ruling for challenger", ev.BondID)
	case domain.EventChallengeRefunded:
		title = fmt.Sprintf("Bond #%d: challenge refunded", ev.BondID)
	default:
		title = string(ev.Type)
	}

	message = fmt.Sprintf("actor: %s", ev.Actor.Hex())
	for k, v := range ev.Detail {
		message += fmt.Sprintf("\n%s: %v", k, v)
	}
	return title, message
}

// Compile-time interface check.
var _ domain.EventSink = (*EventSink)(nil)
