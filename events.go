package goWarden

import (
	"io"

	"github.com/MrEthical07/goWarden/internal/events"
	"go.uber.org/zap"
)

// SecurityEvent is one authentication or authorization occurrence.
type SecurityEvent = events.Event

// EventSink receives security events from the dispatcher goroutine.
type EventSink = events.Sink

// Security event types.
const (
	EventLoginSuccess           = "login.success"
	EventLoginFailure           = "login.failure"
	EventRefreshSuccess         = "refresh.success"
	EventRefreshFailure         = "refresh.failure"
	EventRefreshReuse           = "refresh.reuse"
	EventLogout                 = "logout"
	EventPermissionsInvalidated = "permissions.invalidated"
	EventRolesAssigned          = "roles.assigned"
	EventAccountStatus          = "account.status"
	EventPasswordChanged        = "password.changed"
	EventPasswordChangeFailure  = "password.change_failure"
)

// NewChannelSink returns a sink that buffers events on a channel.
func NewChannelSink(buffer int) *events.ChannelSink { return events.NewChannelSink(buffer) }

// NewJSONWriterSink returns a sink that writes one JSON object per line.
func NewJSONWriterSink(w io.Writer) *events.JSONWriterSink { return events.NewJSONWriterSink(w) }

// NewZapSink returns a sink that logs events.
func NewZapSink(l *zap.Logger) *events.ZapSink { return events.NewZapSink(l) }
