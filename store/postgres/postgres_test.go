package postgres

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	goWarden "github.com/MrEthical07/goWarden"
	"github.com/MrEthical07/goWarden/refresh"
	"github.com/MrEthical07/goWarden/trail"
	"github.com/jackc/pgx/v5/pgconn"
)

func newMock(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() {
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unmet expectations: %v", err)
		}
		_ = db.Close()
	})
	return New(db), mock
}

func TestOpenRequiresDSN(t *testing.T) {
	if _, err := Open(goWarden.DatabaseConfig{}); err == nil {
		t.Fatal("expected error for empty DSN")
	}
}

func TestMigrateRunsSchema(t *testing.T) {
	s, mock := newMock(t)
	mock.ExpectExec("create table if not exists warden_users").WillReturnResult(sqlmock.NewResult(0, 0))
	if err := s.Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
}

func TestWithTxRollsBackOnError(t *testing.T) {
	s, mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectRollback()

	boom := errors.New("boom")
	err := s.WithTx(context.Background(), func(*sql.Tx) error { return boom })
	if !errors.Is(err, boom) {
		t.Fatalf("expected fn error, got %v", err)
	}
}

func TestGetUserByEmailNormalizes(t *testing.T) {
	s, mock := newMock(t)
	cols := []string{"id", "email", "user_name", "first_name", "last_name", "phone_number", "image_url", "password_hash", "is_active", "email_confirmed"}
	mock.ExpectQuery("from warden_users where normalized_email").
		WithArgs("ada@example.com").
		WillReturnRows(sqlmock.NewRows(cols).AddRow("u1", "Ada@Example.com", "ada", "Ada", "Lovelace", "", "", "hash", true, true))

	u, err := s.Directory().GetUserByEmail(context.Background(), "  Ada@Example.COM ")
	if err != nil {
		t.Fatalf("GetUserByEmail: %v", err)
	}
	if u.ID != "u1" || !u.Active || u.FullName() != "Ada Lovelace" {
		t.Fatalf("unexpected user: %+v", u)
	}
}

func TestGetUserByIDNotFound(t *testing.T) {
	s, mock := newMock(t)
	mock.ExpectQuery("from warden_users where id").WithArgs("ghost").WillReturnError(sql.ErrNoRows)

	if _, err := s.Directory().GetUserByID(context.Background(), "ghost"); !errors.Is(err, goWarden.ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}

func TestUserRolesUnknownUser(t *testing.T) {
	s, mock := newMock(t)
	mock.ExpectQuery("select exists").WithArgs("ghost").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

	if _, err := s.Directory().UserRoles(context.Background(), "ghost"); !errors.Is(err, goWarden.ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}

func TestUserRolesLists(t *testing.T) {
	s, mock := newMock(t)
	mock.ExpectQuery("select exists").WithArgs("u1").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectQuery("select role_name from warden_user_roles").WithArgs("u1").
		WillReturnRows(sqlmock.NewRows([]string{"role_name"}).AddRow("Admin").AddRow("Basic"))

	roles, err := s.Directory().UserRoles(context.Background(), "u1")
	if err != nil {
		t.Fatalf("UserRoles: %v", err)
	}
	if len(roles) != 2 || roles[0] != "Admin" || roles[1] != "Basic" {
		t.Fatalf("unexpected roles: %v", roles)
	}
}

func TestSetActiveMissingUser(t *testing.T) {
	s, mock := newMock(t)
	mock.ExpectExec("update warden_users set is_active").WithArgs("ghost", false).
		WillReturnResult(sqlmock.NewResult(0, 0))

	if err := s.Directory().SetActive(context.Background(), "ghost", false); !errors.Is(err, goWarden.ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}

func TestCreateUserWithRoles(t *testing.T) {
	s, mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectExec("insert into warden_users").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectQuery("select exists\\(select 1 from warden_roles").WithArgs("Basic").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectExec("insert into warden_user_roles").WithArgs(sqlmock.AnyArg(), "Basic").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	u, err := s.Directory().CreateUser(context.Background(), goWarden.UserRecord{Email: "a@example.com", PasswordHash: "h", Active: true}, "Basic")
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if u.ID == "" {
		t.Fatal("expected generated ID")
	}
}

func TestCreateUserDuplicateEmail(t *testing.T) {
	s, mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectExec("insert into warden_users").WillReturnError(&pgconn.PgError{Code: "23505"})
	mock.ExpectRollback()

	_, err := s.Directory().CreateUser(context.Background(), goWarden.UserRecord{ID: "u1", Email: "a@example.com"})
	if !errors.Is(err, ErrDuplicateEmail) {
		t.Fatalf("expected ErrDuplicateEmail, got %v", err)
	}
}

func TestAddUserToUnknownRole(t *testing.T) {
	s, mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectQuery("select exists\\(select 1 from warden_roles").WithArgs("Nope").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectRollback()

	err := s.Directory().AddUserToRoles(context.Background(), "u1", []string{"Nope"})
	if !errors.Is(err, goWarden.ErrRoleNotFound) {
		t.Fatalf("expected ErrRoleNotFound, got %v", err)
	}
}

func TestSetRoleClaimsReplaces(t *testing.T) {
	s, mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectExec("insert into warden_roles").WithArgs("Auditor").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("delete from warden_role_claims").WithArgs("Auditor").WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectExec("insert into warden_role_claims").WithArgs("Auditor", "Permissions.Users.View").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	if err := s.Directory().SetRoleClaims(context.Background(), "Auditor", []string{"Permissions.Users.View"}); err != nil {
		t.Fatalf("SetRoleClaims: %v", err)
	}
}

func testRecord(owner string, now time.Time, b byte) refresh.Record {
	rec := refresh.Record{OwnerID: owner, IssuedAt: now, ExpiresAt: now.Add(time.Hour)}
	rec.TokenHash[0] = b
	return rec
}

func TestRefreshRotateSuccess(t *testing.T) {
	s, mock := newMock(t)
	now := time.Now()
	next := testRecord("u1", now, 2)
	var presented [32]byte
	presented[0] = 1

	mock.ExpectExec("update warden_refresh_tokens").
		WithArgs("u1", presented[:], next.TokenHash[:], sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := s.RefreshStore(refresh.Options{}).Rotate(context.Background(), presented, next, now); err != nil {
		t.Fatalf("Rotate: %v", err)
	}
}

func TestRefreshRotateClassifiesFailure(t *testing.T) {
	now := time.Now()
	cols := []string{"token_hash", "issued_at", "expires_at"}
	stored := make([]byte, 32)
	stored[0] = 9

	cases := []struct {
		name    string
		opts    refresh.Options
		rows    func(mock sqlmock.Sqlmock)
		wantErr error
	}{
		{
			name: "missing",
			rows: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery("select token_hash").WillReturnError(sql.ErrNoRows)
			},
			wantErr: refresh.ErrNotFound,
		},
		{
			name: "expired",
			rows: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery("select token_hash").
					WillReturnRows(sqlmock.NewRows(cols).AddRow(stored, now.Add(-2*time.Hour), now.Add(-time.Hour)))
				mock.ExpectExec(regexp.QuoteMeta("where owner_id = $1 and token_hash = $2 and expires_at <= $3")).
					WithArgs("u1", stored, now.UTC()).
					WillReturnResult(sqlmock.NewResult(0, 1))
			},
			wantErr: refresh.ErrExpired,
		},
		{
			// A login replaced the expired row before the delete ran; the
			// predicate leaves the new row alone.
			name: "expired row replaced by login",
			rows: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery("select token_hash").
					WillReturnRows(sqlmock.NewRows(cols).AddRow(stored, now.Add(-2*time.Hour), now.Add(-time.Hour)))
				mock.ExpectExec(regexp.QuoteMeta("where owner_id = $1 and token_hash = $2 and expires_at <= $3")).
					WithArgs("u1", stored, now.UTC()).
					WillReturnResult(sqlmock.NewResult(0, 0))
			},
			wantErr: refresh.ErrExpired,
		},
		{
			name: "stale token",
			rows: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery("select token_hash").
					WillReturnRows(sqlmock.NewRows(cols).AddRow(stored, now, now.Add(time.Hour)))
			},
			wantErr: refresh.ErrMismatch,
		},
		{
			name: "stale token revokes",
			opts: refresh.Options{RevokeOnReuse: true},
			rows: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery("select token_hash").
					WillReturnRows(sqlmock.NewRows(cols).AddRow(stored, now, now.Add(time.Hour)))
				mock.ExpectExec(regexp.QuoteMeta("where owner_id = $1 and token_hash = $2")).
					WithArgs("u1", stored).
					WillReturnResult(sqlmock.NewResult(0, 1))
			},
			wantErr: refresh.ErrMismatch,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s, mock := newMock(t)
			mock.ExpectExec("update warden_refresh_tokens").WillReturnResult(sqlmock.NewResult(0, 0))
			tc.rows(mock)

			err := s.RefreshStore(tc.opts).Rotate(context.Background(), [32]byte{1}, testRecord("u1", now, 2), now)
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("expected %v, got %v", tc.wantErr, err)
			}
		})
	}
}

func TestRefreshBackendFailureIsUnavailable(t *testing.T) {
	s, mock := newMock(t)
	mock.ExpectExec("insert into warden_refresh_tokens").WillReturnError(errors.New("connection reset"))

	err := s.RefreshStore(refresh.Options{}).Replace(context.Background(), testRecord("u1", time.Now(), 1))
	if !errors.Is(err, refresh.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestTrailAppendWritesNulls(t *testing.T) {
	s, mock := newMock(t)
	at := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	e := trail.Entry{
		ID:         "01HZX",
		OwnerID:    "u1",
		Table:      "Orders",
		Operation:  trail.OperationCreate,
		PrimaryKey: trail.Document(`{"Id":1}`),
		NewValues:  trail.Document(`{"Total":5}`),
		Timestamp:  at,
	}
	mock.ExpectExec("insert into warden_audit_trails").
		WithArgs("01HZX", "u1", "Orders", "Create", `{"Id":1}`, nil, `{"Total":5}`, nil, at).
		WillReturnResult(sqlmock.NewResult(1, 1))

	if err := s.TrailStore().Append(context.Background(), nil, []trail.Entry{e}); err != nil {
		t.Fatalf("Append: %v", err)
	}
}

func TestTrailAppendUsesCallerTransaction(t *testing.T) {
	s, mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectExec("insert into orders").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("insert into warden_audit_trails").WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	err := s.WithTx(context.Background(), func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(context.Background(), "insert into orders (id) values (1)"); err != nil {
			return err
		}
		return s.TrailStore().Append(context.Background(), tx, []trail.Entry{{ID: "x", OwnerID: "u1", Operation: trail.OperationCreate}})
	})
	if err == nil {
		t.Fatal("expected append failure to abort the transaction")
	}
}

func TestTrailRecentOrdersNewestFirst(t *testing.T) {
	s, mock := newMock(t)
	now := time.Now().UTC()
	cols := []string{"id", "user_id", "table_name", "operation_type", "primary_key", "old_values", "new_values", "affected_columns", "date_time"}
	mock.ExpectQuery("from warden_audit_trails").WithArgs("u1", trail.DefaultRecentLimit).
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow("b", "u1", "Orders", "Update", `{"Id":1}`, `{"Total":5}`, `{"Total":6}`, `["Total"]`, now).
			AddRow("a", "u1", "Orders", "Create", `{"Id":1}`, nil, `{"Total":5}`, nil, now.Add(-time.Minute)))

	got, err := s.TrailStore().Recent(context.Background(), "u1", 0)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(got) != 2 || got[0].ID != "b" {
		t.Fatalf("unexpected entries: %+v", got)
	}
	if got[1].OldValues != nil || got[1].ChangedColumns != nil {
		t.Fatal("NULL columns should decode to nil documents")
	}
	if got[0].Operation != trail.OperationUpdate {
		t.Fatalf("unexpected operation %q", got[0].Operation)
	}
}
