package goWarden

import "github.com/MrEthical07/goWarden/internal/metrics"

// MetricID names an engine counter.
type MetricID = metrics.MetricID

// MetricsSnapshot is a point-in-time copy of every counter and histogram.
type MetricsSnapshot = metrics.Snapshot

const (
	MetricLoginSuccess               = metrics.MetricLoginSuccess
	MetricLoginFailure               = metrics.MetricLoginFailure
	MetricLoginRateLimited           = metrics.MetricLoginRateLimited
	MetricRefreshSuccess             = metrics.MetricRefreshSuccess
	MetricRefreshFailure             = metrics.MetricRefreshFailure
	MetricRefreshReuseDetected       = metrics.MetricRefreshReuseDetected
	MetricRefreshRateLimited         = metrics.MetricRefreshRateLimited
	MetricLogout                     = metrics.MetricLogout
	MetricPermissionCacheHit         = metrics.MetricPermissionCacheHit
	MetricPermissionCacheMiss        = metrics.MetricPermissionCacheMiss
	MetricPermissionCacheInvalidated = metrics.MetricPermissionCacheInvalidated
	MetricPermissionCacheDiscarded   = metrics.MetricPermissionCacheDiscarded
	MetricAuthorizationAllowed       = metrics.MetricAuthorizationAllowed
	MetricAuthorizationDenied        = metrics.MetricAuthorizationDenied
	MetricRoleAssignmentConflict     = metrics.MetricRoleAssignmentConflict
	MetricAuditEntryWritten          = metrics.MetricAuditEntryWritten
	MetricAuditCaptureFailed         = metrics.MetricAuditCaptureFailed
	MetricValidateLatency            = metrics.MetricValidateLatency
	MetricIDCount                    = metrics.MetricIDCount
)

// HistogramBucketCount is the number of latency buckets per histogram.
const HistogramBucketCount = metrics.HistBucketCount
