package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/alanyoungcy/truthbond/internal/domain"
)

// settlementEvents are the event types that close a bond's lifecycle and
// trigger archival.
var settlementEvents = map[domain.EventType]bool{
	domain.EventBondConceded:      true,
	domain.EventBondWithdrawn:     true,
	domain.EventBondTimedOut:      true,
	domain.EventBondRejected:      true,
	domain.EventRuledForChallenger: true,
}

// Archiver tails the durable event stream and writes a JSON snapshot of each
// settled bond to blob storage. Stream offsets make restarts safe: the
// worker resumes from the last id it processed in this run and reprocessing
// an event overwrites the same object.
type Archiver struct {
	bus     domain.SignalBus
	stream  string
	bonds   domain.BondStore
	blobs   domain.BlobWriter
	pollDur time.Duration
	logger  *slog.Logger

	lastID string
}

// NewArchiver creates an Archiver tailing the named stream. pollInterval
// defaults to 15 seconds when not positive.
func NewArchiver(
	bus domain.SignalBus,
	stream string,
	bonds domain.BondStore,
	blobs domain.BlobWriter,
	pollInterval time.Duration,
	logger *slog.Logger,
) *Archiver {
	if pollInterval <= 0 {
		pollInterval = 15 * time.Second
	}
	return &Archiver{
		bus:     bus,
		stream:  stream,
		bonds:   bonds,
		blobs:   blobs,
		pollDur: pollInterval,
		logger:  logger.With(slog.String("component", "archiver")),
		lastID:  "$",
	}
}

// Run tails the stream until the context is cancelled. Call in a goroutine.
func (a *Archiver) Run(ctx context.Context) error {
	ticker := time.NewTicker(a.pollDur)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := a.drain(ctx); err != nil {
				a.logger.ErrorContext(ctx, "drain failed", slog.String("error", err.Error()))
			}
		}
	}
}

// drain reads pending stream entries and archives any settlements among them.
func (a *Archiver) drain(ctx context.Context) error {
	msgs, err := a.bus.StreamRead(ctx, a.stream, a.lastID, 100)
	if err != nil {
		return err
	}

	for _, msg := range msgs {
		a.lastID = msg.ID

		var ev domain.Event
		if err := json.Unmarshal(msg.Payload, &ev); err != nil {
			a.logger.WarnContext(ctx, "unparseable event payload",
				slog.String("stream_id", msg.ID),
				slog.String("error", err.Error()),
			)
			continue
		}
		if !settlementEvents[ev.Type] {
			continue
		}

		if err := a.archive(ctx, ev.BondID); err != nil {
			a.logger.ErrorContext(ctx, "archive failed",
				slog.Int64("bond_id", ev.BondID),
				slog.String("error", err.Error()),
			)
		}
	}
	return nil
}

// archive uploads the bond's final state as a JSON document.
func (a *Archiver) archive(ctx context.Context, bondID int64) error {
	b, err := a.bonds.Get(ctx, bondID)
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(archiveDoc(b), "", "  ")
	if err != nil {
		return fmt.Errorf("service: marshal bond %d: %w", bondID, err)
	}

	key := fmt.Sprintf("bonds/%d.json", bondID)
	if err := a.blobs.Put(ctx, key, bytes.NewReader(data), "application/json"); err != nil {
		return err
	}

	a.logger.InfoContext(ctx, "bond archived",
		slog.Int64("bond_id", bondID),
		slog.String("key", key),
	)
	return nil
}

// archiveDoc flattens a bond into the archived JSON shape. Amounts are
// decimal strings.
func archiveDoc(b *domain.Bond) map[string]any {
	challenges := make([]map[string]any, 0, len(b.Challenges))
	for _, c := range b.Challenges {
		challenges = append(challenges, map[string]any{
			"challenger": c.Challenger.Hex(),
			"status":     string(c.Status),
			"reason":     c.Reason,
			"created_at": c.CreatedAt,
		})
	}

	doc := map[string]any{
		"id":               b.ID,
		"poster":           b.Poster.Hex(),
		"judge":            b.Judge.Hex(),
		"asset":            b.Asset.Hex(),
		"bond_amount":      b.BondAmount.String(),
		"challenge_amount": b.ChallengeAmount.String(),
		"max_judge_fee":    b.MaxJudgeFee.String(),
		"claim_text":       b.ClaimText,
		"deadline":         b.Deadline,
		"settled":          b.Settled,
		"conceded":         b.Conceded,
		"challenges":       challenges,
		"created_at":       b.CreatedAt,
	}
	if b.SettledAt != nil {
		doc["settled_at"] = *b.SettledAt
	}
	return doc
}
