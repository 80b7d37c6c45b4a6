package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/truthbond/internal/registry"
)

// JudgeHandler serves the judge registry HTTP endpoints.
type JudgeHandler struct {
	registry *registry.Registry
	logger   *slog.Logger
}

// NewJudgeHandler creates a JudgeHandler with the given registry and logger.
func NewJudgeHandler(reg *registry.Registry, logger *slog.Logger) *JudgeHandler {
	return &JudgeHandler{
		registry: reg,
		logger:   logHandler(logger, "judge"),
	}
}

// Register adds the caller to the judge pool.
// POST /api/judges/register
func (h *JudgeHandler) Register(w http.ResponseWriter, r *http.Request) {
	addr, ok := caller(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "missing or invalid X-Caller header")
		return
	}

	if err := h.registry.Register(r.Context(), addr); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "registered"})
}

// Deregister removes the caller from the judge pool. Bonds already naming
// the judge are unaffected.
// POST /api/judges/deregister
func (h *JudgeHandler) Deregister(w http.ResponseWriter, r *http.Request) {
	addr, ok := caller(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "missing or invalid X-Caller header")
		return
	}

	if err := h.registry.Deregister(r.Context(), addr); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deregistered"})
}

// setFeeRequest is the PUT /api/judges/fees body.
type setFeeRequest struct {
	Asset  string `json:"asset"`
	MinFee string `json:"min_fee"` // decimal string
}

// SetMinFee updates the caller's minimum fee for one asset.
// PUT /api/judges/fees
func (h *JudgeHandler) SetMinFee(w http.ResponseWriter, r *http.Request) {
	addr, ok := caller(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "missing or invalid X-Caller header")
		return
	}

	var req setFeeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	fee, ok := parseAmount(req.MinFee)
	if !ok || fee == nil {
		writeError(w, http.StatusBadRequest, "min_fee must be a decimal string")
		return
	}

	if err := h.registry.SetMinFee(r.Context(), addr, common.HexToAddress(req.Asset), fee); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GetJudge returns registration state and per-asset minimum fees.
// GET /api/judges/{address}
func (h *JudgeHandler) GetJudge(w http.ResponseWriter, r *http.Request) {
	v := r.PathValue("address")
	if !common.IsHexAddress(v) {
		writeError(w, http.StatusBadRequest, "invalid judge address")
		return
	}
	addr := common.HexToAddress(v)

	registered, err := h.registry.IsRegistered(r.Context(), addr)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "get judge failed",
			slog.String("judge", addr.Hex()),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to load judge")
		return
	}

	fees := map[string]string{}
	if reg, err := h.registry.Get(r.Context(), addr); err == nil {
		for asset, fee := range reg.MinFees {
			fees[asset.Hex()] = fee.String()
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"judge":      addr.Hex(),
		"registered": registered,
		"min_fees":   fees,
	})
}
