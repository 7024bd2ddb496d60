package logging

import (
	"time"

	"go.uber.org/zap"
)

// UserID tags the subject of an operation.
func UserID(v string) zap.Field { return zap.String("user_id", v) }

// Op names the engine operation.
func Op(v string) zap.Field { return zap.String("op", v) }

// Table names the audited table.
func Table(v string) zap.Field { return zap.String("table", v) }

// Reason carries the internal failure reason hidden from callers.
func Reason(v string) zap.Field { return zap.String("reason", v) }

// ClientIP is the remote address of the request.
func ClientIP(v string) zap.Field { return zap.String("client_ip", v) }

// Permission is a permission name.
func Permission(v string) zap.Field { return zap.String("permission", v) }

// Count is a generic counter.
func Count(v int) zap.Field { return zap.Int("count", v) }

// Duration is an elapsed time.
func Duration(v time.Duration) zap.Field { return zap.Duration("duration", v) }

// Err wraps an error.
func Err(err error) zap.Field { return zap.Error(err) }
