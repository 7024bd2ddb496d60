package flows

import (
	"time"

	"github.com/MrEthical07/goWarden/refresh"
)

// Principal is the flow-local view of a user.
type Principal struct {
	UserID         string
	Email          string
	PasswordHash   string
	Active         bool
	EmailConfirmed bool
}

// Minted is a freshly signed access token and the refresh record that
// will back its refresh token once stored.
type Minted struct {
	AccessToken      string
	AccessExpiresAt  time.Time
	RefreshToken     string
	RefreshExpiresAt time.Time
	Record           refresh.Record
}

// Deps groups flow dependency sets. The engine builds it once and passes
// the matching set to each run.
type Deps struct {
	Login    LoginDeps
	Refresh  RefreshDeps
	Validate ValidateDeps
}
