package internaldefs

import (
	goWarden "github.com/MrEthical07/goWarden"
)

// CounterDef names one engine counter for exporters.
type CounterDef struct {
	ID   goWarden.MetricID
	Name string
	Help string
}

// HistogramDef names one engine latency histogram.
type HistogramDef struct {
	ID   goWarden.MetricID
	Name string
	Help string
}

var CounterDefs = []CounterDef{
	{ID: goWarden.MetricLoginSuccess, Name: "warden_login_success_total", Help: "Successful token issues."},
	{ID: goWarden.MetricLoginFailure, Name: "warden_login_failure_total", Help: "Rejected token issues."},
	{ID: goWarden.MetricLoginRateLimited, Name: "warden_login_rate_limited_total", Help: "Rate-limited token issues."},
	{ID: goWarden.MetricRefreshSuccess, Name: "warden_refresh_success_total", Help: "Successful refresh rotations."},
	{ID: goWarden.MetricRefreshFailure, Name: "warden_refresh_failure_total", Help: "Rejected refresh attempts."},
	{ID: goWarden.MetricRefreshReuseDetected, Name: "warden_refresh_reuse_detected_total", Help: "Presentations of an already rotated refresh token."},
	{ID: goWarden.MetricRefreshRateLimited, Name: "warden_refresh_rate_limited_total", Help: "Rate-limited refresh attempts."},
	{ID: goWarden.MetricLogout, Name: "warden_logout_total", Help: "Logout operations."},
	{ID: goWarden.MetricPermissionCacheHit, Name: "warden_permission_cache_hit_total", Help: "Permission lookups served from cache."},
	{ID: goWarden.MetricPermissionCacheMiss, Name: "warden_permission_cache_miss_total", Help: "Permission lookups that resolved from the role store."},
	{ID: goWarden.MetricPermissionCacheInvalidated, Name: "warden_permission_cache_invalidated_total", Help: "Permission cache invalidations."},
	{ID: goWarden.MetricPermissionCacheDiscarded, Name: "warden_permission_cache_discarded_total", Help: "Resolved permission sets discarded because an invalidation raced them."},
	{ID: goWarden.MetricAuthorizationAllowed, Name: "warden_authorization_allowed_total", Help: "Allowed permission checks."},
	{ID: goWarden.MetricAuthorizationDenied, Name: "warden_authorization_denied_total", Help: "Denied permission checks."},
	{ID: goWarden.MetricRoleAssignmentConflict, Name: "warden_role_assignment_conflict_total", Help: "Role changes refused to protect administrators."},
	{ID: goWarden.MetricAuditEntryWritten, Name: "warden_audit_entry_written_total", Help: "Audit entries committed."},
	{ID: goWarden.MetricAuditCaptureFailed, Name: "warden_audit_capture_failed_total", Help: "Entities whose audit entry could not be built."},
}

var HistogramDefs = []HistogramDef{
	{ID: goWarden.MetricValidateLatency, Name: "warden_validate_latency_seconds", Help: "Access token validation latency."},
}

// HistogramBounds are the upper bounds in seconds of every finite bucket.
// The engine keeps one extra overflow bucket.
var HistogramBounds = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5}

// NormalizeBuckets pads or truncates raw to the engine bucket count.
func NormalizeBuckets(raw []uint64) [goWarden.HistogramBucketCount]uint64 {
	var out [goWarden.HistogramBucketCount]uint64
	copy(out[:], raw)
	return out
}

// CumulativeBuckets turns per-bucket counts into running totals. The last
// element is the sample count.
func CumulativeBuckets(raw [goWarden.HistogramBucketCount]uint64) [goWarden.HistogramBucketCount]uint64 {
	var (
		out     [goWarden.HistogramBucketCount]uint64
		running uint64
	)
	for i, v := range raw {
		running += v
		out[i] = running
	}
	return out
}
