package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"math/big"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/truthbond/internal/domain"
	"github.com/alanyoungcy/truthbond/internal/ledger"
)

// BondService defines the ledger methods the bond handler requires.
type BondService interface {
	CreateBond(ctx context.Context, caller common.Address, p ledger.CreateBondParams) (int64, error)
	GetBond(ctx context.Context, id int64) (*domain.Bond, error)
	ListBonds(ctx context.Context, opts domain.ListOpts) ([]*domain.Bond, error)
	Challenge(ctx context.Context, caller common.Address, bondID int64, reason string) error
	Concede(ctx context.Context, caller common.Address, bondID int64, statement string) error
	WithdrawBond(ctx context.Context, caller common.Address, bondID int64) error
	ClaimTimeout(ctx context.Context, caller common.Address, bondID int64) error
	RejectBond(ctx context.Context, caller common.Address, bondID int64) error
	RuleForPoster(ctx context.Context, caller common.Address, bondID int64, fee *big.Int) error
	RuleForChallenger(ctx context.Context, caller common.Address, bondID int64, fee *big.Int) error
}

// BondHandler serves the bond lifecycle HTTP endpoints.
type BondHandler struct {
	bonds  BondService
	events domain.EventStore
	logger *slog.Logger
}

// NewBondHandler creates a BondHandler with the given service and logger.
func NewBondHandler(bonds BondService, events domain.EventStore, logger *slog.Logger) *BondHandler {
	return &BondHandler{
		bonds:  bonds,
		events: events,
		logger: logHandler(logger, "bond"),
	}
}

// createBondRequest is the POST /api/bonds body. Amounts are decimal
// strings; durations are in seconds.
type createBondRequest struct {
	Asset             string `json:"asset"`
	BondAmount        string `json:"bond_amount"`
	ChallengeAmount   string `json:"challenge_amount"`
	MaxJudgeFee       string `json:"max_judge_fee"`
	Judge             string `json:"judge"`
	Deadline          string `json:"deadline"` // RFC 3339
	AcceptanceDelaySec int64 `json:"acceptance_delay_seconds"`
	RulingBufferSec   int64  `json:"ruling_buffer_seconds"`
	ClaimText         string `json:"claim_text"`
}

// bondResponse is the wire shape of a bond. Amounts are decimal strings so
// values above 2^53 survive JSON round-trips.
type bondResponse struct {
	ID              int64               `json:"id"`
	Poster          string              `json:"poster"`
	Judge           string              `json:"judge"`
	Asset           string              `json:"asset"`
	BondAmount      string              `json:"bond_amount"`
	ChallengeAmount string              `json:"challenge_amount"`
	MaxJudgeFee     string              `json:"max_judge_fee"`
	Deadline        time.Time           `json:"deadline"`
	AcceptanceDelay int64               `json:"acceptance_delay_seconds"`
	RulingBuffer    int64               `json:"ruling_buffer_seconds"`
	ClaimText       string              `json:"claim_text"`
	Settled         bool                `json:"settled"`
	Conceded        bool                `json:"conceded"`
	Cursor          int                 `json:"cursor"`
	RulingWindow    *time.Time          `json:"ruling_window_start,omitempty"`
	RulingDeadline  *time.Time          `json:"ruling_deadline,omitempty"`
	Challenges      []challengeResponse `json:"challenges"`
	CreatedAt       time.Time           `json:"created_at"`
	SettledAt       *time.Time          `json:"settled_at,omitempty"`
}

type challengeResponse struct {
	Challenger string    `json:"challenger"`
	Status     string    `json:"status"`
	Reason     string    `json:"reason,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

func toBondResponse(b *domain.Bond) bondResponse {
	resp := bondResponse{
		ID:              b.ID,
		Poster:          b.Poster.Hex(),
		Judge:           b.Judge.Hex(),
		Asset:           b.Asset.Hex(),
		BondAmount:      b.BondAmount.String(),
		ChallengeAmount: b.ChallengeAmount.String(),
		MaxJudgeFee:     b.MaxJudgeFee.String(),
		Deadline:        b.Deadline,
		AcceptanceDelay: int64(b.AcceptanceDelay / time.Second),
		RulingBuffer:    int64(b.RulingBuffer / time.Second),
		ClaimText:       b.ClaimText,
		Settled:         b.Settled,
		Conceded:        b.Conceded,
		Cursor:          b.Cursor,
		Challenges:      make([]challengeResponse, 0, len(b.Challenges)),
		CreatedAt:       b.CreatedAt,
		SettledAt:       b.SettledAt,
	}
	if len(b.Challenges) > 0 {
		ws := b.RulingWindowStart()
		rd := b.RulingDeadline()
		resp.RulingWindow = &ws
		resp.RulingDeadline = &rd
	}
	for _, c := range b.Challenges {
		resp.Challenges = append(resp.Challenges, challengeResponse{
			Challenger: c.Challenger.Hex(),
			Status:     string(c.Status),
			Reason:     c.Reason,
			CreatedAt:  c.CreatedAt,
		})
	}
	return resp
}

// CreateBond creates a new bond backed by the caller's funds.
// POST /api/bonds
func (h *BondHandler) CreateBond(w http.ResponseWriter, r *http.Request) {
	addr, ok := caller(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "missing or invalid X-Caller header")
		return
	}

	var req createBondRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	bondAmt, ok1 := parseAmount(req.BondAmount)
	chalAmt, ok2 := parseAmount(req.ChallengeAmount)
	maxFee, ok3 := parseAmount(req.MaxJudgeFee)
	if !ok1 || !ok2 || !ok3 {
		writeError(w, http.StatusBadRequest, "amounts must be decimal strings")
		return
	}
	if maxFee == nil {
		maxFee = new(big.Int)
	}

	deadline, err := time.Parse(time.RFC3339, req.Deadline)
	if err != nil {
		writeError(w, http.StatusBadRequest, "deadline must be RFC 3339")
		return
	}

	id, err := h.bonds.CreateBond(r.Context(), addr, ledger.CreateBondParams{
		Asset:           common.HexToAddress(req.Asset),
		BondAmount:      bondAmt,
		ChallengeAmount: chalAmt,
		MaxJudgeFee:     maxFee,
		Judge:           common.HexToAddress(req.Judge),
		Deadline:        deadline,
		AcceptanceDelay: time.Duration(req.AcceptanceDelaySec) * time.Second,
		RulingBuffer:    time.Duration(req.RulingBufferSec) * time.Second,
		ClaimText:       req.ClaimText,
	})
	if err != nil {
		h.logger.WarnContext(r.Context(), "create bond rejected",
			slog.String("poster", addr.Hex()),
			slog.String("error", err.Error()),
		)
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{"id": id})
}

// ListBonds returns a page of bonds.
// GET /api/bonds
func (h *BondHandler) ListBonds(w http.ResponseWriter, r *http.Request) {
	bonds, err := h.bonds.ListBonds(r.Context(), parseListOpts(r))
	if err != nil {
		h.logger.ErrorContext(r.Context(), "list bonds failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list bonds")
		return
	}

	out := make([]bondResponse, 0, len(bonds))
	for _, b := range bonds {
		out = append(out, toBondResponse(b))
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"bonds": out,
		"count": len(out),
	})
}

// GetBond returns a single bond.
// GET /api/bonds/{id}
func (h *BondHandler) GetBond(w http.ResponseWriter, r *http.Request) {
	id, ok := bondID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid bond id")
		return
	}

	b, err := h.bonds.GetBond(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toBondResponse(b))
}

// ListBondEvents returns the audit trail of one bond.
// GET /api/bonds/{id}/events
func (h *BondHandler) ListBondEvents(w http.ResponseWriter, r *http.Request) {
	id, ok := bondID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid bond id")
		return
	}

	events, err := h.events.ListByBond(r.Context(), id, parseListOpts(r))
	if err != nil {
		h.logger.ErrorContext(r.Context(), "list bond events failed",
			slog.Int64("bond_id", id),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list events")
		return
	}

	if events == nil {
		events = []domain.Event{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"events": events,
		"count":  len(events),
	})
}

// actionRequest is the shared body of the lifecycle action endpoints.
type actionRequest struct {
	Reason    string `json:"reason,omitempty"`
	Statement string `json:"statement,omitempty"`
	Fee       string `json:"fee,omitempty"`
	Verdict   string `json:"verdict,omitempty"`
}

// action runs one caller-scoped lifecycle operation and writes the result.
func (h *BondHandler) action(w http.ResponseWriter, r *http.Request, name string, op func(ctx context.Context, addr common.Address, id int64, req actionRequest) error) {
	addr, ok := caller(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "missing or invalid X-Caller header")
		return
	}
	id, ok := bondID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid bond id")
		return
	}

	var req actionRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	if err := op(r.Context(), addr, id, req); err != nil {
		h.logger.WarnContext(r.Context(), name+" rejected",
			slog.Int64("bond_id", id),
			slog.String("caller", addr.Hex()),
			slog.String("error", err.Error()),
		)
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Challenge appends the caller to the bond's challenge queue.
// POST /api/bonds/{id}/challenge
func (h *BondHandler) Challenge(w http.ResponseWriter, r *http.Request) {
	h.action(w, r, "challenge", func(ctx context.Context, addr common.Address, id int64, req actionRequest) error {
		return h.bonds.Challenge(ctx, addr, id, req.Reason)
	})
}

// Concede retracts the claim and refunds every pending challenger.
// POST /api/bonds/{id}/concede
func (h *BondHandler) Concede(w http.ResponseWriter, r *http.Request) {
	h.action(w, r, "concede", func(ctx context.Context, addr common.Address, id int64, req actionRequest) error {
		return h.bonds.Concede(ctx, addr, id, req.Statement)
	})
}

// Withdraw reclaims an unchallenged bond.
// POST /api/bonds/{id}/withdraw
func (h *BondHandler) Withdraw(w http.ResponseWriter, r *http.Request) {
	h.action(w, r, "withdraw", func(ctx context.Context, addr common.Address, id int64, _ actionRequest) error {
		return h.bonds.WithdrawBond(ctx, addr, id)
	})
}

// ClaimTimeout settles a bond whose judge failed to rule in time.
// POST /api/bonds/{id}/timeout
func (h *BondHandler) ClaimTimeout(w http.ResponseWriter, r *http.Request) {
	h.action(w, r, "claim timeout", func(ctx context.Context, addr common.Address, id int64, _ actionRequest) error {
		return h.bonds.ClaimTimeout(ctx, addr, id)
	})
}

// Reject lets the named judge decline the case before ruling starts.
// POST /api/bonds/{id}/reject
func (h *BondHandler) Reject(w http.ResponseWriter, r *http.Request) {
	h.action(w, r, "reject", func(ctx context.Context, addr common.Address, id int64, _ actionRequest) error {
		return h.bonds.RejectBond(ctx, addr, id)
	})
}

// Rule resolves the current challenge. The body's verdict selects the winner
// and fee is the judge's charge as a decimal string.
// POST /api/bonds/{id}/rule
func (h *BondHandler) Rule(w http.ResponseWriter, r *http.Request) {
	h.action(w, r, "rule", func(ctx context.Context, addr common.Address, id int64, req actionRequest) error {
		fee, ok := parseAmount(req.Fee)
		if !ok {
			return domain.ErrInvalidAmount
		}
		if fee == nil {
			fee = new(big.Int)
		}
		switch req.Verdict {
		case "poster":
			return h.bonds.RuleForPoster(ctx, addr, id, fee)
		case "challenger":
			return h.bonds.RuleForChallenger(ctx, addr, id, fee)
		default:
			return errInvalidVerdict
		}
	})
}

var errInvalidVerdict = &verdictError{}

type verdictError struct{}

func (*verdictError) Error() string { return `verdict must be "poster" or "challenger"` }

func (*verdictError) HTTPStatus() int { return http.StatusBadRequest }
