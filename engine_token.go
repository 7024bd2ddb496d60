package goWarden

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/goWarden/internal/flows"
	"github.com/MrEthical07/goWarden/internal/logging"
	"github.com/MrEthical07/goWarden/internal/rate"
	"go.uber.org/zap"
)

// IssueToken authenticates credentials and returns a new token pair. Any
// previous refresh token of the user stops working.
//
// Every credential problem yields ErrUnauthenticated; the concrete reason
// is only logged. Backend failures yield ErrTransient.
func (e *Engine) IssueToken(ctx context.Context, creds Credentials, clientAddress string) (TokenPair, error) {
	if e == nil || e.jwt == nil {
		return TokenPair{}, ErrEngineNotReady
	}
	if clientAddress != "" {
		ctx = WithClientIP(ctx, clientAddress)
	}
	log := e.logger(ctx).With(logging.Op("issue_token"), logging.ClientIP(clientAddress))

	res := flows.RunLogin(ctx, creds.Email, creds.Password, clientAddress, e.flows.Login)
	if res.Failure == flows.LoginFailureNone {
		e.metricInc(MetricLoginSuccess)
		e.emit(ctx, EventLoginSuccess, true, res.UserID, "", nil)
		log.Debug("token issued", logging.UserID(res.UserID))
		return pairOf(res.Minted), nil
	}

	reason := res.Failure.Reason()
	fields := []zap.Field{logging.Reason(reason)}
	if res.UserID != "" {
		fields = append(fields, logging.UserID(res.UserID))
	}
	if res.Err != nil {
		fields = append(fields, logging.Err(res.Err))
	}

	switch {
	case res.Failure == flows.LoginFailureRateLimited && errors.Is(res.Err, rate.ErrRedisUnavailable):
		log.Error("login throttle unavailable", fields...)
		return TokenPair{}, transient("login throttle", res.Err)
	case res.Failure == flows.LoginFailureRateLimited:
		e.metricInc(MetricLoginRateLimited)
		e.emit(ctx, EventLoginFailure, false, res.UserID, reason, nil)
		log.Info("login throttled", fields...)
		return TokenPair{}, errors.Join(ErrUnauthenticated, ErrRateLimited)
	case res.Failure.Transient():
		e.metricInc(MetricLoginFailure)
		log.Error("login backend failure", fields...)
		return TokenPair{}, transient(reason, res.Err)
	}

	e.metricInc(MetricLoginFailure)
	e.emit(ctx, EventLoginFailure, false, res.UserID, reason, nil)
	log.Info("login rejected", fields...)
	return TokenPair{}, ErrUnauthenticated
}

// RefreshToken exchanges an expired (or live) access token and the current
// refresh token for a new pair. A refresh token works once: of two
// concurrent calls with the same token at most one succeeds.
func (e *Engine) RefreshToken(ctx context.Context, req RefreshRequest, clientAddress string) (TokenPair, error) {
	if e == nil || e.jwt == nil {
		return TokenPair{}, ErrEngineNotReady
	}
	if clientAddress != "" {
		ctx = WithClientIP(ctx, clientAddress)
	}
	log := e.logger(ctx).With(logging.Op("refresh_token"), logging.ClientIP(clientAddress))

	res := flows.RunRefresh(ctx, req.AccessToken, req.RefreshToken, e.flows.Refresh)
	if res.Failure == flows.RefreshFailureNone {
		e.metricInc(MetricRefreshSuccess)
		e.emit(ctx, EventRefreshSuccess, true, res.UserID, "", nil)
		log.Debug("token refreshed", logging.UserID(res.UserID))
		return pairOf(res.Minted), nil
	}

	reason := res.Failure.Reason()
	fields := []zap.Field{logging.Reason(reason)}
	if res.UserID != "" {
		fields = append(fields, logging.UserID(res.UserID))
	}
	if res.Err != nil {
		fields = append(fields, logging.Err(res.Err))
	}

	switch {
	case res.Failure == flows.RefreshFailureRateLimited && errors.Is(res.Err, rate.ErrRedisUnavailable):
		log.Error("refresh throttle unavailable", fields...)
		return TokenPair{}, transient("refresh throttle", res.Err)
	case res.Failure == flows.RefreshFailureRateLimited:
		e.metricInc(MetricRefreshRateLimited)
		e.emit(ctx, EventRefreshFailure, false, res.UserID, reason, nil)
		log.Info("refresh throttled", fields...)
		return TokenPair{}, errors.Join(ErrUnauthenticated, ErrRateLimited)
	case res.Failure.Transient():
		e.metricInc(MetricRefreshFailure)
		log.Error("refresh backend failure", fields...)
		return TokenPair{}, transient(reason, res.Err)
	case res.Failure == flows.RefreshFailureReuse:
		e.metricInc(MetricRefreshReuseDetected)
		e.emit(ctx, EventRefreshReuse, false, res.UserID, reason, nil)
		log.Warn("superseded refresh token presented", fields...)
		return TokenPair{}, ErrUnauthenticated
	}

	e.metricInc(MetricRefreshFailure)
	e.emit(ctx, EventRefreshFailure, false, res.UserID, reason, nil)
	log.Info("refresh rejected", fields...)
	return TokenPair{}, ErrUnauthenticated
}

// ValidateAccess verifies an access token under the configured
// ValidationMode. In strict mode it also checks that the user still exists
// and is active.
func (e *Engine) ValidateAccess(ctx context.Context, token string) (*Identity, error) {
	if e == nil || e.jwt == nil {
		return nil, ErrEngineNotReady
	}
	return e.ValidateAccessMode(ctx, token, e.config.ValidationMode)
}

// ValidateAccessMode is ValidateAccess with the mode chosen by the caller,
// so one route can insist on strict checks while the rest trust the
// signature. Unknown modes validate strictly.
func (e *Engine) ValidateAccessMode(ctx context.Context, token string, mode ValidationMode) (*Identity, error) {
	if e == nil || e.jwt == nil {
		return nil, ErrEngineNotReady
	}
	start := time.Now()
	defer func() {
		if e.metrics.LatencyEnabled() {
			e.metrics.Observe(MetricValidateLatency, time.Since(start))
		}
	}()

	deps := e.flows.Validate
	deps.Strict = mode != ModeJWTOnly
	res := flows.RunValidate(ctx, token, deps)
	switch res.Failure {
	case flows.ValidateFailureNone:
	case flows.ValidateFailureLookup:
		e.logger(ctx).Error("strict validation lookup failed", logging.Op("validate"), logging.Err(res.Err))
		return nil, transient("validate", res.Err)
	default:
		e.logger(ctx).Debug("access token rejected", logging.Op("validate"), logging.Err(res.Err))
		return nil, ErrUnauthenticated
	}

	c := res.Claims
	sub := c.Subject()
	id := &Identity{
		UserID:    sub.UserID,
		Email:     sub.Email,
		FullName:  sub.FullName,
		GivenName: sub.GivenName,
		Surname:   sub.Surname,
		IPAddress: sub.IPAddress,
		ImageURL:  sub.ImageURL,
		Phone:     sub.Phone,
		Roles:     sub.Roles,
	}
	if c.ExpiresAt != nil {
		id.ExpiresAt = c.ExpiresAt.Time
	}
	return id, nil
}

// Logout deletes the user's refresh record. The current access token stays
// valid until it expires.
func (e *Engine) Logout(ctx context.Context, userID string) error {
	if e == nil || e.refresh == nil {
		return ErrEngineNotReady
	}
	if err := e.refresh.Delete(ctx, userID); err != nil {
		e.logger(ctx).Error("logout failed", logging.Op("logout"), logging.UserID(userID), logging.Err(err))
		return transient("logout", err)
	}
	e.metricInc(MetricLogout)
	e.emit(ctx, EventLogout, true, userID, "", nil)
	return nil
}

func pairOf(m flows.Minted) TokenPair {
	return TokenPair{
		AccessToken:      m.AccessToken,
		AccessExpiresAt:  m.AccessExpiresAt,
		RefreshToken:     m.RefreshToken,
		RefreshExpiresAt: m.RefreshExpiresAt,
	}
}
