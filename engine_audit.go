package goWarden

import (
	"context"
	"errors"

	"github.com/MrEthical07/goWarden/internal/logging"
	"github.com/MrEthical07/goWarden/trail"
)

// Recorder returns the change recorder. Callers use Begin before their
// own writes and Commit inside the same transaction.
func (e *Engine) Recorder() *trail.Recorder { return e.recorder }

// RecordChanges captures changes made by userID and appends them through
// exec, which should be the caller's open transaction. Entities that fail
// to serialize are reported in an error matching ErrAuditCapture while the
// rest are written; any other error means nothing was written and the
// transaction should be rolled back.
func (e *Engine) RecordChanges(ctx context.Context, exec trail.Execer, userID string, changes []trail.Change) ([]trail.Entry, error) {
	if e == nil || e.recorder == nil {
		return nil, ErrEngineNotReady
	}
	entries, err := e.recorder.Record(ctx, exec, userID, changes)
	switch {
	case err == nil, errors.Is(err, ErrAuditCapture):
		return entries, err
	default:
		return nil, transient("audit append", err)
	}
}

// RecentAudit returns the newest audit entries written by userID, newest
// first. limit <= 0 uses the configured default.
func (e *Engine) RecentAudit(ctx context.Context, userID string, limit int) ([]trail.Entry, error) {
	if e == nil || e.recorder == nil {
		return nil, ErrEngineNotReady
	}
	if limit <= 0 {
		limit = e.config.Trail.RecentLimit
	}
	if limit <= 0 {
		limit = trail.DefaultRecentLimit
	}
	out, err := e.recorder.Recent(ctx, userID, limit)
	if err != nil {
		e.logger(ctx).Error("audit query failed", logging.Op("recent_audit"), logging.UserID(userID), logging.Err(err))
		return nil, transient("audit query", err)
	}
	return out, nil
}
