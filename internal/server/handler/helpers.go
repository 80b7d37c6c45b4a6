package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"math/big"
	"net/http"
	"strconv"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/truthbond/internal/domain"
)

// callerHeader carries the acting address. The gateway in front of this
// service authenticates the principal and injects the header; the handlers
// trust it as the operation's caller identity.
const callerHeader = "X-Caller"

// writeJSON marshals v as JSON and writes it to the response with the given
// HTTP status code. If marshaling fails, it falls back to a plain-text 500.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	w.Write(data)
}

// writeError sends a JSON-formatted error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeDomainError maps a domain error to its HTTP status and sends it.
func writeDomainError(w http.ResponseWriter, err error) {
	writeError(w, statusOf(err), err.Error())
}

// statusOf maps domain sentinel errors to HTTP status codes. Unknown errors
// map to 500.
func statusOf(err error) int {
	var hs interface{ HTTPStatus() int }
	if errors.As(err, &hs) {
		return hs.HTTPStatus()
	}
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrNotPoster),
		errors.Is(err, domain.ErrNotJudge):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrInvalidAmount),
		errors.Is(err, domain.ErrFeeExceedsMax),
		errors.Is(err, domain.ErrFeeBelowMinimum),
		errors.Is(err, domain.ErrJudgeNotRegistered),
		errors.Is(err, domain.ErrZeroJudge),
		errors.Is(err, domain.ErrDeadlineNotFuture),
		errors.Is(err, domain.ErrInvalidBuffer):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrInsufficientFunds):
		return http.StatusPaymentRequired
	case errors.Is(err, domain.ErrSettled),
		errors.Is(err, domain.ErrConceded),
		errors.Is(err, domain.ErrChallengeNotPending),
		errors.Is(err, domain.ErrNoPendingChallenges),
		errors.Is(err, domain.ErrPendingChallenges),
		errors.Is(err, domain.ErrRulingStarted),
		errors.Is(err, domain.ErrPastDeadline),
		errors.Is(err, domain.ErrBeforeWindow),
		errors.Is(err, domain.ErrPastRulingDeadline),
		errors.Is(err, domain.ErrTimeoutNotReached),
		errors.Is(err, domain.ErrLockHeld):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// caller extracts the acting address from the request header. The second
// return value is false when the header is missing or not a valid address.
func caller(r *http.Request) (common.Address, bool) {
	v := r.Header.Get(callerHeader)
	if !common.IsHexAddress(v) {
		return common.Address{}, false
	}
	return common.HexToAddress(v), true
}

// bondID parses the {id} path parameter as a bond id.
func bondID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// parseAmount converts a decimal string into a big integer amount. Empty
// strings return nil so callers can distinguish "absent" from zero.
func parseAmount(s string) (*big.Int, bool) {
	if s == "" {
		return nil, true
	}
	n, ok := new(big.Int).SetString(s, 10)
	return n, ok
}

// parseListOpts extracts standard pagination parameters from the query string.
// Defaults: limit=50 (max 500), offset=0.
func parseListOpts(r *http.Request) domain.ListOpts {
	q := r.URL.Query()

	limit := 50
	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	if limit > 500 {
		limit = 500
	}

	offset := 0
	if v := q.Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			offset = n
		}
	}

	return domain.ListOpts{
		Limit:  limit,
		Offset: offset,
	}
}

// logHandler is a convenience to attach slog fields in handler code.
func logHandler(logger *slog.Logger, handler string) *slog.Logger {
	return logger.With(slog.String("handler", handler))
}
