package domain

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// EventType identifies a lifecycle or registry event.
type EventType string

const (
	EventBondCreated       EventType = "bond_created"
	EventBondChallenged    EventType = "bond_challenged"
	EventBondConceded      EventType = "bond_conceded"
	EventBondWithdrawn     EventType = "bond_withdrawn"
	EventBondTimedOut      EventType = "bond_timed_out"
	EventBondRejected      EventType = "bond_rejected"
	EventRuledForPoster    EventType = "ruled_for_poster"
	EventRuledForChallenger EventType = "ruled_for_challenger"
	EventChallengeRefunded EventType = "challenge_refunded"

	EventJudgeRegistered   EventType = "judge_registered"
	EventJudgeDeregistered EventType = "judge_deregistered"
	EventJudgeFeeUpdated   EventType = "judge_fee_updated"
)

// Event is the audit record emitted by every state-changing operation. It is
// not required for correctness but lets external consumers reconstruct bond
// state; amounts in Detail are decimal strings.
type Event struct {
	ID        string         `json:"id"`
	Type      EventType      `json:"type"`
	BondID    int64          `json:"bond_id,omitempty"`
	Actor     common.Address `json:"actor"`
	Detail    map[string]any `json:"detail,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// EventSink receives emitted events. Sinks are best-effort: a sink failure is
// logged by the emitter and never unwinds the operation that produced the
// event.
type EventSink interface {
	Emit(ctx context.Context, ev Event) error
}
