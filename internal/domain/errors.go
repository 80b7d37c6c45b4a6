package domain

import "errors"

// Every ledger failure is a synchronous precondition violation with no
// partial effect. Authorization and parameter errors are permanent; timing
// errors resolve as time advances (too early: wait, too late: use timeout).
var (
	// Authorization.
	ErrNotFound  = errors.New("bond not found")
	ErrNotPoster = errors.New("caller is not the poster")
	ErrNotJudge  = errors.New("caller is not the judge")

	// State.
	ErrSettled             = errors.New("bond already settled")
	ErrConceded            = errors.New("bond already conceded")
	ErrChallengeNotPending = errors.New("current challenge is not pending")
	ErrNoPendingChallenges = errors.New("no pending challenges")
	ErrPendingChallenges   = errors.New("pending challenges remain")
	ErrRulingStarted       = errors.New("a ruling has already been issued")

	// Timing.
	ErrPastDeadline       = errors.New("challenge deadline has passed")
	ErrBeforeWindow       = errors.New("before ruling window")
	ErrPastRulingDeadline = errors.New("past ruling deadline")
	ErrTimeoutNotReached  = errors.New("ruling deadline not yet passed")

	// Parameters.
	ErrInvalidAmount      = errors.New("amount must be positive")
	ErrFeeExceedsMax      = errors.New("fee exceeds maximum judge fee")
	ErrFeeBelowMinimum    = errors.New("fee below judge minimum")
	ErrJudgeNotRegistered = errors.New("judge is not registered")
	ErrZeroJudge          = errors.New("judge address must not be zero")
	ErrDeadlineNotFuture  = errors.New("deadline must be in the future")
	ErrInvalidBuffer      = errors.New("ruling buffer must be positive")

	// Infrastructure.
	ErrLockHeld          = errors.New("lock already held")
	ErrInsufficientFunds = errors.New("insufficient balance or allowance")
)
