package stepup

import "errors"

// Sentinel errors for the step-up flow; the HTTP handler maps them to responses
// with a retry affordance. None of these are swallowed.
var (
	// ErrCleanupFailed means a stale unverified factor could not be deleted.
	// This blocks all forward progress for the attempt: creating a new factor on
	// top of a failed cleanup would leak factors across repeated attempts.
	ErrCleanupFailed = errors.New("stepup: stale factor cleanup failed")
	// ErrEnrollmentFailed means the provider rejected or failed the create call.
	ErrEnrollmentFailed = errors.New("stepup: factor creation failed")
	// ErrChallengeFailed means a challenge could not be issued, e.g. the factor
	// vanished in a race with deletion elsewhere, or the provider timed out.
	ErrChallengeFailed = errors.New("stepup: challenge could not be issued")
	// ErrCodeInvalid means the provider rejected the submitted code.
	ErrCodeInvalid = errors.New("stepup: code invalid")
	// ErrChallengeExpired means the code was submitted against a superseded or
	// expired challenge.
	ErrChallengeExpired = errors.New("stepup: challenge expired")
	// ErrNoLiveChallenge means a code was submitted while no challenge is live
	// (e.g. before Begin, or after a failed verify reset the flow).
	ErrNoLiveChallenge = errors.New("stepup: no live challenge")
)
