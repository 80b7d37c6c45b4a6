package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/truthbond/internal/domain"
	"github.com/alanyoungcy/truthbond/internal/ledger"
	memstore "github.com/alanyoungcy/truthbond/internal/store/memory"
)

var (
	poster = common.HexToAddress("0x1111111111111111111111111111111111111111")
	judge  = common.HexToAddress("0x2222222222222222222222222222222222222222")
)

// fakeBondService records the last call and returns a canned error.
type fakeBondService struct {
	err error

	createParams ledger.CreateBondParams
	bond         *domain.Bond

	lastOp     string
	lastCaller common.Address
	lastBondID int64
	lastReason string
	lastFee    *big.Int
}

func (f *fakeBondService) CreateBond(_ context.Context, caller common.Address, p ledger.CreateBondParams) (int64, error) {
	f.lastOp, f.lastCaller, f.createParams = "create", caller, p
	return 42, f.err
}

func (f *fakeBondService) GetBond(_ context.Context, id int64) (*domain.Bond, error) {
	f.lastOp, f.lastBondID = "get", id
	if f.err != nil {
		return nil, f.err
	}
	return f.bond, nil
}

func (f *fakeBondService) ListBonds(_ context.Context, _ domain.ListOpts) ([]*domain.Bond, error) {
	f.lastOp = "list"
	if f.bond == nil {
		return nil, f.err
	}
	return []*domain.Bond{f.bond}, f.err
}

func (f *fakeBondService) Challenge(_ context.Context, caller common.Address, bondID int64, reason string) error {
	f.lastOp, f.lastCaller, f.lastBondID, f.lastReason = "challenge", caller, bondID, reason
	return f.err
}

func (f *fakeBondService) Concede(_ context.Context, caller common.Address, bondID int64, statement string) error {
	f.lastOp, f.lastCaller, f.lastBondID, f.lastReason = "concede", caller, bondID, statement
	return f.err
}

func (f *fakeBondService) WithdrawBond(_ context.Context, caller common.Address, bondID int64) error {
	f.lastOp, f.lastCaller, f.lastBondID = "withdraw", caller, bondID
	return f.err
}

func (f *fakeBondService) ClaimTimeout(_ context.Context, caller common.Address, bondID int64) error {
	f.lastOp, f.lastCaller, f.lastBondID = "timeout", caller, bondID
	return f.err
}

func (f *fakeBondService) RejectBond(_ context.Context, caller common.Address, bondID int64) error {
	f.lastOp, f.lastCaller, f.lastBondID = "reject", caller, bondID
	return f.err
}

func (f *fakeBondService) RuleForPoster(_ context.Context, caller common.Address, bondID int64, fee *big.Int) error {
	f.lastOp, f.lastCaller, f.lastBondID, f.lastFee = "rule_poster", caller, bondID, fee
	return f.err
}

func (f *fakeBondService) RuleForChallenger(_ context.Context, caller common.Address, bondID int64, fee *big.Int) error {
	f.lastOp, f.lastCaller, f.lastBondID, f.lastFee = "rule_challenger", caller, bondID, fee
	return f.err
}

func newTestMux(svc BondService) *http.ServeMux {
	h := NewBondHandler(svc, memstore.NewEventStore(), slog.New(slog.DiscardHandler))
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/bonds", h.CreateBond)
	mux.HandleFunc("GET /api/bonds", h.ListBonds)
	mux.HandleFunc("GET /api/bonds/{id}", h.GetBond)
	mux.HandleFunc("GET /api/bonds/{id}/events", h.ListBondEvents)
	mux.HandleFunc("POST /api/bonds/{id}/challenge", h.Challenge)
	mux.HandleFunc("POST /api/bonds/{id}/concede", h.Concede)
	mux.HandleFunc("POST /api/bonds/{id}/withdraw", h.Withdraw)
	mux.HandleFunc("POST /api/bonds/{id}/timeout", h.ClaimTimeout)
	mux.HandleFunc("POST /api/bonds/{id}/reject", h.Reject)
	mux.HandleFunc("POST /api/bonds/{id}/rule", h.Rule)
	return mux
}

func doRequest(t *testing.T, mux *http.ServeMux, method, path, callerAddr, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if callerAddr != "" {
		req.Header.Set("X-Caller", callerAddr)
	}
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func TestCreateBond(t *testing.T) {
	svc := &fakeBondService{}
	mux := newTestMux(svc)

	deadline := time.Now().Add(24 * time.Hour).UTC().Truncate(time.Second)
	body := `{
		"asset": "0x3333333333333333333333333333333333333333",
		"bond_amount": "1000000000000000000",
		"challenge_amount": "500000000000000000",
		"max_judge_fee": "100",
		"judge": "` + judge.Hex() + `",
		"deadline": "` + deadline.Format(time.RFC3339) + `",
		"acceptance_delay_seconds": 3600,
		"ruling_buffer_seconds": 86400,
		"claim_text": "the sky is blue"
	}`

	rec := doRequest(t, mux, http.MethodPost, "/api/bonds", poster.Hex(), body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp map[string]int64
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, int64(42), resp["id"])

	assert.Equal(t, poster, svc.lastCaller)
	assert.Equal(t, judge, svc.createParams.Judge)
	assert.Equal(t, "1000000000000000000", svc.createParams.BondAmount.String())
	assert.Equal(t, time.Hour, svc.createParams.AcceptanceDelay)
	assert.Equal(t, 24*time.Hour, svc.createParams.RulingBuffer)
	assert.True(t, deadline.Equal(svc.createParams.Deadline))
}

func TestCreateBondRequiresCaller(t *testing.T) {
	mux := newTestMux(&fakeBondService{})
	rec := doRequest(t, mux, http.MethodPost, "/api/bonds", "", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateBondRejectsBadAmount(t *testing.T) {
	mux := newTestMux(&fakeBondService{})
	rec := doRequest(t, mux, http.MethodPost, "/api/bonds", poster.Hex(),
		`{"bond_amount": "1.5", "challenge_amount": "1", "deadline": "2030-01-01T00:00:00Z"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestChallengePassesReason(t *testing.T) {
	svc := &fakeBondService{}
	mux := newTestMux(svc)

	rec := doRequest(t, mux, http.MethodPost, "/api/bonds/7/challenge", poster.Hex(),
		`{"reason": "source is fabricated"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, "challenge", svc.lastOp)
	assert.Equal(t, int64(7), svc.lastBondID)
	assert.Equal(t, "source is fabricated", svc.lastReason)
}

func TestActionRejectsInvalidBondID(t *testing.T) {
	mux := newTestMux(&fakeBondService{})
	for _, path := range []string{"/api/bonds/0/withdraw", "/api/bonds/abc/withdraw", "/api/bonds/-3/withdraw"} {
		rec := doRequest(t, mux, http.MethodPost, path, poster.Hex(), "")
		assert.Equal(t, http.StatusBadRequest, rec.Code, path)
	}
}

func TestRuleDispatchesVerdict(t *testing.T) {
	svc := &fakeBondService{}
	mux := newTestMux(svc)

	rec := doRequest(t, mux, http.MethodPost, "/api/bonds/5/rule", judge.Hex(),
		`{"verdict": "poster", "fee": "25"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "rule_poster", svc.lastOp)
	assert.Equal(t, "25", svc.lastFee.String())

	rec = doRequest(t, mux, http.MethodPost, "/api/bonds/5/rule", judge.Hex(),
		`{"verdict": "challenger"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "rule_challenger", svc.lastOp)
	assert.Equal(t, "0", svc.lastFee.String())
}

func TestRuleRejectsUnknownVerdict(t *testing.T) {
	mux := newTestMux(&fakeBondService{})
	rec := doRequest(t, mux, http.MethodPost, "/api/bonds/5/rule", judge.Hex(),
		`{"verdict": "split"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDomainErrorStatusMapping(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{domain.ErrNotFound, http.StatusNotFound},
		{domain.ErrNotPoster, http.StatusForbidden},
		{domain.ErrNotJudge, http.StatusForbidden},
		{domain.ErrInvalidAmount, http.StatusBadRequest},
		{domain.ErrInsufficientFunds, http.StatusPaymentRequired},
		{domain.ErrSettled, http.StatusConflict},
		{domain.ErrBeforeWindow, http.StatusConflict},
		{domain.ErrLockHeld, http.StatusConflict},
	}

	for _, tc := range cases {
		mux := newTestMux(&fakeBondService{err: tc.err})
		rec := doRequest(t, mux, http.MethodPost, "/api/bonds/9/withdraw", poster.Hex(), "")
		assert.Equal(t, tc.want, rec.Code, tc.err.Error())
	}
}

func TestGetBondSerializesAmountsAsStrings(t *testing.T) {
	now := time.Now().UTC()
	svc := &fakeBondService{
		bond: &domain.Bond{
			ID:              9,
			Poster:          poster,
			Judge:           judge,
			Asset:           common.HexToAddress("0x3333333333333333333333333333333333333333"),
			BondAmount:      big.NewInt(0).Mul(big.NewInt(1e18), big.NewInt(10)),
			ChallengeAmount: big.NewInt(5),
			MaxJudgeFee:     big.NewInt(1),
			Deadline:        now.Add(time.Hour),
			AcceptanceDelay: time.Hour,
			RulingBuffer:    24 * time.Hour,
			ClaimText:       "claim",
			CreatedAt:       now,
		},
	}
	mux := newTestMux(svc)

	rec := doRequest(t, mux, http.MethodGet, "/api/bonds/9", "", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "10000000000000000000", resp["bond_amount"])
	assert.Equal(t, float64(3600), resp["acceptance_delay_seconds"])

	// No challenges yet, so the ruling window is not reported.
	assert.NotContains(t, resp, "ruling_window_start")
}
