package postgres

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	goWarden "github.com/MrEthical07/goWarden"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
)

// Directory implements goWarden.UserProvider and goWarden.RoleProvider.
type Directory struct {
	db *sql.DB
}

var (
	_ goWarden.UserProvider = (*Directory)(nil)
	_ goWarden.RoleProvider = (*Directory)(nil)
)

const userColumns = `id, email, user_name, first_name, last_name, phone_number, image_url, password_hash, is_active, email_confirmed`

func scanUser(row *sql.Row) (goWarden.UserRecord, error) {
	var u goWarden.UserRecord
	err := row.Scan(&u.ID, &u.Email, &u.UserName, &u.FirstName, &u.LastName,
		&u.PhoneNumber, &u.ImageURL, &u.PasswordHash, &u.Active, &u.EmailConfirmed)
	if errors.Is(err, sql.ErrNoRows) {
		return goWarden.UserRecord{}, goWarden.ErrUserNotFound
	}
	return u, err
}

func normalize(email string) string { return strings.ToLower(strings.TrimSpace(email)) }

func (d *Directory) GetUserByEmail(ctx context.Context, email string) (goWarden.UserRecord, error) {
	return scanUser(d.db.QueryRowContext(ctx,
		`select `+userColumns+` from warden_users where normalized_email = $1`, normalize(email)))
}

func (d *Directory) GetUserByID(ctx context.Context, id string) (goWarden.UserRecord, error) {
	return scanUser(d.db.QueryRowContext(ctx,
		`select `+userColumns+` from warden_users where id = $1`, id))
}

// ErrDuplicateEmail is returned by CreateUser when the normalized email
// is already registered.
var ErrDuplicateEmail = errors.New("postgres: email already registered")

// CreateUser inserts u with roles in one transaction, generating an ID
// when u.ID is empty.
func (d *Directory) CreateUser(ctx context.Context, u goWarden.UserRecord, roles ...string) (goWarden.UserRecord, error) {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	err := d.inTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			insert into warden_users (id, email, normalized_email, user_name, first_name, last_name,
				phone_number, image_url, password_hash, is_active, email_confirmed)
			values ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
			u.ID, u.Email, normalize(u.Email), u.UserName, u.FirstName, u.LastName,
			u.PhoneNumber, u.ImageURL, u.PasswordHash, u.Active, u.EmailConfirmed)
		if isUniqueViolation(err) {
			return ErrDuplicateEmail
		}
		if err != nil {
			return err
		}
		return addRoles(ctx, tx, u.ID, roles)
	})
	if err != nil {
		return goWarden.UserRecord{}, err
	}
	return u, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23503"
}

func (d *Directory) UpdatePasswordHash(ctx context.Context, id, hash string) error {
	return d.updateOne(ctx, `update warden_users set password_hash = $2 where id = $1`, id, hash)
}

func (d *Directory) SetActive(ctx context.Context, id string, active bool) error {
	return d.updateOne(ctx, `update warden_users set is_active = $2 where id = $1`, id, active)
}

func (d *Directory) updateOne(ctx context.Context, q string, args ...any) error {
	res, err := d.db.ExecContext(ctx, q, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return goWarden.ErrUserNotFound
	}
	return nil
}

// UserRoles lists the roles of id, failing with ErrUserNotFound for
// unknown users.
func (d *Directory) UserRoles(ctx context.Context, id string) ([]string, error) {
	var exists bool
	if err := d.db.QueryRowContext(ctx,
		`select exists(select 1 from warden_users where id = $1)`, id).Scan(&exists); err != nil {
		return nil, err
	}
	if !exists {
		return nil, goWarden.ErrUserNotFound
	}
	return d.strings(ctx, `select role_name from warden_user_roles where user_id = $1 order by role_name`, id)
}

func (d *Directory) RoleClaims(ctx context.Context, role string) ([]string, error) {
	return d.strings(ctx, `select claim_value from warden_role_claims where role_name = $1 order by claim_value`, role)
}

func (d *Directory) Roles(ctx context.Context) ([]string, error) {
	return d.strings(ctx, `select name from warden_roles order by name`)
}

// RoleMembers lists the IDs of users holding role.
func (d *Directory) RoleMembers(ctx context.Context, role string) ([]string, error) {
	return d.strings(ctx, `select user_id from warden_user_roles where role_name = $1 order by user_id`, role)
}

func (d *Directory) CountUsersInRole(ctx context.Context, role string) (int, error) {
	var n int
	err := d.db.QueryRowContext(ctx,
		`select count(*) from warden_user_roles where role_name = $1`, role).Scan(&n)
	return n, err
}

// AddUserToRoles fails with ErrRoleNotFound when any role is unknown and
// with ErrUserNotFound when the user is.
func (d *Directory) AddUserToRoles(ctx context.Context, id string, roles []string) error {
	return d.inTx(ctx, func(tx *sql.Tx) error { return addRoles(ctx, tx, id, roles) })
}

func addRoles(ctx context.Context, tx *sql.Tx, id string, roles []string) error {
	for _, r := range roles {
		var known bool
		if err := tx.QueryRowContext(ctx,
			`select exists(select 1 from warden_roles where name = $1)`, r).Scan(&known); err != nil {
			return err
		}
		if !known {
			return goWarden.ErrRoleNotFound
		}
		_, err := tx.ExecContext(ctx, `
			insert into warden_user_roles (user_id, role_name) values ($1, $2)
			on conflict do nothing`, id, r)
		if isForeignKeyViolation(err) {
			return goWarden.ErrUserNotFound
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (d *Directory) RemoveUserFromRoles(ctx context.Context, id string, roles []string) error {
	return d.inTx(ctx, func(tx *sql.Tx) error {
		for _, r := range roles {
			if _, err := tx.ExecContext(ctx,
				`delete from warden_user_roles where user_id = $1 and role_name = $2`, id, r); err != nil {
				return err
			}
		}
		return nil
	})
}

// SetRoleClaims creates role when missing and replaces its claims.
// Callers must invalidate the cached permissions of every member.
func (d *Directory) SetRoleClaims(ctx context.Context, role string, claims []string) error {
	return d.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`insert into warden_roles (name) values ($1) on conflict do nothing`, role); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`delete from warden_role_claims where role_name = $1`, role); err != nil {
			return err
		}
		for _, c := range claims {
			if _, err := tx.ExecContext(ctx, `
				insert into warden_role_claims (role_name, claim_value) values ($1, $2)
				on conflict do nothing`, role, c); err != nil {
				return err
			}
		}
		return nil
	})
}

func (d *Directory) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

func (d *Directory) strings(ctx context.Context, q string, args ...any) ([]string, error) {
	rows, err := d.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}
