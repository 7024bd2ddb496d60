package goWarden

import (
	"context"
	"time"

	"github.com/MrEthical07/goWarden/permission"
)

// UserRecord is the account view the engine needs.
type UserRecord struct {
	ID             string
	Email          string
	UserName       string
	FirstName      string
	LastName       string
	PhoneNumber    string
	ImageURL       string
	PasswordHash   string
	Active         bool
	EmailConfirmed bool
}

// FullName joins first and last name.
func (u UserRecord) FullName() string {
	switch {
	case u.FirstName == "":
		return u.LastName
	case u.LastName == "":
		return u.FirstName
	}
	return u.FirstName + " " + u.LastName
}

// UserProvider is implemented by the identity store. Lookups of unknown
// users return an error wrapping ErrUserNotFound.
type UserProvider interface {
	GetUserByEmail(ctx context.Context, email string) (UserRecord, error)
	GetUserByID(ctx context.Context, userID string) (UserRecord, error)
	UpdatePasswordHash(ctx context.Context, userID, hash string) error
	SetActive(ctx context.Context, userID string, active bool) error
}

// RoleProvider is implemented by the role store. Role claims are stored as
// free-form strings and parsed into permission names by the engine.
type RoleProvider interface {
	permission.RoleSource
	// Roles lists every role name.
	Roles(ctx context.Context) ([]string, error)
	AddUserToRoles(ctx context.Context, userID string, roles []string) error
	RemoveUserFromRoles(ctx context.Context, userID string, roles []string) error
	CountUsersInRole(ctx context.Context, role string) (int, error)
}

// Credentials is the login input.
type Credentials struct {
	Email    string
	Password string
}

// RefreshRequest pairs an expired access token with its refresh token.
type RefreshRequest struct {
	AccessToken  string
	RefreshToken string
}

// TokenPair is issued on every login and refresh. It is never updated,
// only superseded.
type TokenPair struct {
	AccessToken      string    `json:"token"`
	AccessExpiresAt  time.Time `json:"tokenExpiryTime"`
	RefreshToken     string    `json:"refreshToken"`
	RefreshExpiresAt time.Time `json:"refreshTokenExpiryTime"`
}

// Identity is the verified content of an access token.
type Identity struct {
	UserID    string
	Email     string
	FullName  string
	GivenName string
	Surname   string
	IPAddress string
	ImageURL  string
	Phone     string
	Roles     []string
	ExpiresAt time.Time
}

// UserRole is one row of a role assignment form: the role and whether the
// user should hold it.
type UserRole struct {
	RoleName string `json:"roleName"`
	Selected bool   `json:"selected"`
}
