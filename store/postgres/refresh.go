package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/goWarden/refresh"
)

// RefreshStore keeps one refresh record per owner in
// warden_refresh_tokens. Rotate is a single conditional UPDATE, so row
// locking decides concurrent presentations of the same token.
type RefreshStore struct {
	db   *sql.DB
	opts refresh.Options
}

var _ refresh.Store = (*RefreshStore)(nil)

func (s *Store) RefreshStore(opts refresh.Options) *RefreshStore {
	return &RefreshStore{db: s.db, opts: opts}
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", refresh.ErrUnavailable, op, err)
}

func (r *RefreshStore) Replace(ctx context.Context, rec refresh.Record) error {
	_, err := r.db.ExecContext(ctx, `
		insert into warden_refresh_tokens (owner_id, token_hash, issued_at, expires_at)
		values ($1, $2, $3, $4)
		on conflict (owner_id) do update
		set token_hash = excluded.token_hash, issued_at = excluded.issued_at, expires_at = excluded.expires_at`,
		rec.OwnerID, rec.TokenHash[:], rec.IssuedAt.UTC(), rec.ExpiresAt.UTC())
	if err != nil {
		return unavailable("replace", err)
	}
	return nil
}

func (r *RefreshStore) Rotate(ctx context.Context, presented [32]byte, next refresh.Record, now time.Time) error {
	res, err := r.db.ExecContext(ctx, `
		update warden_refresh_tokens
		set token_hash = $3, issued_at = $4, expires_at = $5
		where owner_id = $1 and token_hash = $2 and expires_at > $6`,
		next.OwnerID, presented[:], next.TokenHash[:], next.IssuedAt.UTC(), next.ExpiresAt.UTC(), now.UTC())
	if err != nil {
		return unavailable("rotate", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return unavailable("rotate", err)
	}
	if n == 1 {
		return nil
	}

	// Nothing matched: work out why. A login may replace the row at any
	// point from here on, so deletes only remove the row that was read.
	cur, err := r.Get(ctx, next.OwnerID)
	if err != nil {
		return err
	}
	if cur.Expired(now) {
		if err := r.deleteIf(ctx, "delete expired", `
			delete from warden_refresh_tokens
			where owner_id = $1 and token_hash = $2 and expires_at <= $3`,
			next.OwnerID, cur.TokenHash[:], now.UTC()); err != nil {
			return err
		}
		return refresh.ErrExpired
	}
	if r.opts.RevokeOnReuse {
		if err := r.deleteIf(ctx, "revoke", `
			delete from warden_refresh_tokens
			where owner_id = $1 and token_hash = $2`,
			next.OwnerID, cur.TokenHash[:]); err != nil {
			return err
		}
	}
	return refresh.ErrMismatch
}

func (r *RefreshStore) deleteIf(ctx context.Context, op, query string, args ...any) error {
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return unavailable(op, err)
	}
	return nil
}

func (r *RefreshStore) Get(ctx context.Context, ownerID string) (refresh.Record, error) {
	var (
		rec  = refresh.Record{OwnerID: ownerID}
		hash []byte
	)
	err := r.db.QueryRowContext(ctx, `
		select token_hash, issued_at, expires_at from warden_refresh_tokens where owner_id = $1`,
		ownerID).Scan(&hash, &rec.IssuedAt, &rec.ExpiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return refresh.Record{}, refresh.ErrNotFound
	}
	if err != nil {
		return refresh.Record{}, unavailable("get", err)
	}
	if len(hash) != len(rec.TokenHash) {
		return refresh.Record{}, unavailable("get", fmt.Errorf("token hash has %d bytes", len(hash)))
	}
	copy(rec.TokenHash[:], hash)
	return rec, nil
}

func (r *RefreshStore) Delete(ctx context.Context, ownerID string) error {
	if _, err := r.db.ExecContext(ctx,
		`delete from warden_refresh_tokens where owner_id = $1`, ownerID); err != nil {
		return unavailable("delete", err)
	}
	return nil
}
