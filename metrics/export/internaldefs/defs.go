package internaldefs

import (
	"github.com/MrEthical07/credlife"
)

// CounterDef binds an engine counter to its exported name.
type CounterDef struct {
	ID   credlife.MetricID
	Name string
	Help string
}

// HistogramDef binds an engine histogram to its exported name.
type HistogramDef struct {
	ID   credlife.MetricID
	Name string
	Help string
}

// AuditDroppedName is the counter fed by Engine.AuditDropped.
const (
	AuditDroppedName = "credlife_audit_dropped_total"
	AuditDroppedHelp = "Audit events dropped because the dispatcher buffer was full."
)

// CounterDefs lists every exported counter in MetricID order.
var CounterDefs = []CounterDef{
	{ID: credlife.MetricSessionIssued, Name: "credlife_session_issued_total", Help: "Token pairs issued."},
	{ID: credlife.MetricSessionIssueFailure, Name: "credlife_session_issue_failure_total", Help: "Failed token pair issuance."},
	{ID: credlife.MetricTokenVerified, Name: "credlife_token_verified_total", Help: "Tokens accepted by verify."},
	{ID: credlife.MetricTokenRejected, Name: "credlife_token_rejected_total", Help: "Tokens rejected by verify."},
	{ID: credlife.MetricTokenExcludedHit, Name: "credlife_token_excluded_hit_total", Help: "Verify calls that hit an exclusion entry."},
	{ID: credlife.MetricSessionRotated, Name: "credlife_session_rotated_total", Help: "Successful refresh rotations."},
	{ID: credlife.MetricSessionRotateFailure, Name: "credlife_session_rotate_failure_total", Help: "Failed refresh rotations."},
	{ID: credlife.MetricRotationRaceLost, Name: "credlife_rotation_race_lost_total", Help: "Rotations that lost the refresh slot swap."},
	{ID: credlife.MetricSessionRevoked, Name: "credlife_session_revoked_total", Help: "Revoke calls that excluded at least one token."},
	{ID: credlife.MetricRevokeSkipped, Name: "credlife_revoke_skipped_total", Help: "Revoke calls that ignored an invalid token."},
	{ID: credlife.MetricCodeCreated, Name: "credlife_code_created_total", Help: "Verification codes created."},
	{ID: credlife.MetricCodeThrottled, Name: "credlife_code_throttled_total", Help: "Code creations refused by the resend throttle."},
	{ID: credlife.MetricCodeVerified, Name: "credlife_code_verified_total", Help: "Verification codes consumed."},
	{ID: credlife.MetricCodeRejected, Name: "credlife_code_rejected_total", Help: "Verification code candidates rejected."},
	{ID: credlife.MetricCodeAttemptsExhausted, Name: "credlife_code_attempts_exhausted_total", Help: "Codes deleted after too many wrong guesses."},
	{ID: credlife.MetricStoreUnavailable, Name: "credlife_store_unavailable_total", Help: "Operations failed closed on a store error."},
	{ID: credlife.MetricLoginSuccess, Name: "credlife_login_success_total", Help: "Successful logins."},
	{ID: credlife.MetricLoginFailure, Name: "credlife_login_failure_total", Help: "Failed logins."},
	{ID: credlife.MetricLoginRateLimited, Name: "credlife_login_rate_limited_total", Help: "Logins refused by the attempt limiter."},
	{ID: credlife.MetricAccountCreated, Name: "credlife_account_created_total", Help: "Accounts registered."},
	{ID: credlife.MetricAccountDuplicate, Name: "credlife_account_duplicate_total", Help: "Registrations rejected as duplicate."},
	{ID: credlife.MetricLogout, Name: "credlife_logout_total", Help: "Logout operations."},
	{ID: credlife.MetricEmailVerified, Name: "credlife_email_verified_total", Help: "Confirmed email addresses."},
	{ID: credlife.MetricPasswordResetRequest, Name: "credlife_password_reset_request_total", Help: "Password reset requests."},
	{ID: credlife.MetricPasswordResetSuccess, Name: "credlife_password_reset_success_total", Help: "Completed password resets."},
}

// HistogramDefs lists every exported histogram.
var HistogramDefs = []HistogramDef{
	{ID: credlife.MetricVerifyLatency, Name: "credlife_verify_latency_seconds", Help: "Token verify latency."},
}

// UpperBounds are the finite bucket bounds in seconds. The last engine bucket is +Inf.
var UpperBounds = []float64{0.001, 0.002, 0.005, 0.01, 0.025, 0.05, 0.1}

// HistogramBounds are the le labels, +Inf included.
var HistogramBounds = []string{
	"0.001",
	"0.002",
	"0.005",
	"0.01",
	"0.025",
	"0.05",
	"0.1",
	"+Inf",
}

// HistogramBoundSuffix names the per-bucket gauges where labels are unavailable.
var HistogramBoundSuffix = []string{
	"0_001",
	"0_002",
	"0_005",
	"0_01",
	"0_025",
	"0_05",
	"0_1",
	"inf",
}

// NormalizeBuckets copies raw into a fixed eight-bucket array, zero padding.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets turns per-bucket counts into running totals.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
