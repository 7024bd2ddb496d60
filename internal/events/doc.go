// Package events dispatches security events (logins, refreshes, role
// changes) to a [Sink] off the request path.
//
// The [Dispatcher] buffers events in a channel and either drops them when
// full (counting the drop) or blocks the emitter until there is room or the
// context ends. It does not decide which events exist; the engine does.
package events
