package internaldefs

import (
	"github.com/rlvait/authgate"
)

// CounterDef binds an engine counter to its stable exported name.
type CounterDef struct {
	ID   authgate.MetricID
	Name string
	Help string
}

// HistogramDef binds an engine histogram to its stable exported name.
type HistogramDef struct {
	ID   authgate.MetricID
	Name string
	Help string
}

var CounterDefs = []CounterDef{
	{ID: authgate.MetricSignupSuccess, Name: "authgate_signup_success_total", Help: "Successful signups."},
	{ID: authgate.MetricSignupDuplicate, Name: "authgate_signup_duplicate_total", Help: "Signup attempts rejected as duplicate email."},
	{ID: authgate.MetricLoginSuccess, Name: "authgate_login_success_total", Help: "Successful login attempts."},
	{ID: authgate.MetricLoginFailure, Name: "authgate_login_failure_total", Help: "Failed login attempts."},
	{ID: authgate.MetricFederatedLoginSuccess, Name: "authgate_federated_login_success_total", Help: "Successful federated logins."},
	{ID: authgate.MetricFederatedLoginCreated, Name: "authgate_federated_login_created_total", Help: "Federated logins that created a new identity."},
	{ID: authgate.MetricFederatedLoginLinked, Name: "authgate_federated_login_linked_total", Help: "Federated logins linked to an existing identity by email."},
	{ID: authgate.MetricRefreshSuccess, Name: "authgate_refresh_success_total", Help: "Successful refresh rotations."},
	{ID: authgate.MetricRefreshFailure, Name: "authgate_refresh_failure_total", Help: "Failed refresh attempts."},
	{ID: authgate.MetricRefreshReuseDetected, Name: "authgate_refresh_reuse_detected_total", Help: "Refresh attempts with a retired but well-formed token."},
	{ID: authgate.MetricLogout, Name: "authgate_logout_total", Help: "Logout operations."},
	{ID: authgate.MetricAuthenticateSuccess, Name: "authgate_authenticate_success_total", Help: "Successful access token verifications."},
	{ID: authgate.MetricAuthenticateFailure, Name: "authgate_authenticate_failure_total", Help: "Failed access token verifications."},
	{ID: authgate.MetricProfileUpdate, Name: "authgate_profile_update_total", Help: "Profile update operations."},
	{ID: authgate.MetricPasswordChangeSuccess, Name: "authgate_password_change_success_total", Help: "Successful password changes."},
	{ID: authgate.MetricPasswordChangeInvalidOld, Name: "authgate_password_change_invalid_old_total", Help: "Password change attempts with a wrong current password."},
	{ID: authgate.MetricRoleChange, Name: "authgate_role_change_total", Help: "Role change operations."},
	{ID: authgate.MetricIdentityDeleted, Name: "authgate_identity_deleted_total", Help: "Identity delete operations."},
}

var HistogramDefs = []HistogramDef{
	{ID: authgate.MetricAuthenticateLatency, Name: "authgate_authenticate_latency_seconds", Help: "Authenticate latency histogram."},
}

var HistogramBounds = []string{
	"0.005",
	"0.01",
	"0.025",
	"0.05",
	"0.1",
	"0.25",
	"0.5",
	"+Inf",
}

var HistogramBoundSuffix = []string{
	"0_005",
	"0_01",
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"inf",
}

// NormalizeBuckets pads or truncates a raw snapshot slice to the fixed bucket
// count.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets converts per-bucket counts to the cumulative form both
// exposition formats expect.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
