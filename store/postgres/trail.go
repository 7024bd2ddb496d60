package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/MrEthical07/goWarden/trail"
)

// TrailStore writes audit entries to warden_audit_trails.
type TrailStore struct {
	db *sql.DB
}

var _ trail.Store = (*TrailStore)(nil)

// nullable maps a nil Document to NULL.
func nullable(d trail.Document) sql.NullString {
	if d == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: string(d), Valid: true}
}

func document(s sql.NullString) trail.Document {
	if !s.Valid {
		return nil
	}
	return trail.Document(s.String)
}

// Append inserts entries through exec, falling back to the pool when
// exec is nil.
func (t *TrailStore) Append(ctx context.Context, exec trail.Execer, entries []trail.Entry) error {
	if exec == nil {
		exec = t.db
	}
	for _, e := range entries {
		_, err := exec.ExecContext(ctx, `
			insert into warden_audit_trails (id, user_id, table_name, operation_type, primary_key,
				old_values, new_values, affected_columns, date_time)
			values ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			e.ID, e.OwnerID, e.Table, string(e.Operation), nullable(e.PrimaryKey),
			nullable(e.OldValues), nullable(e.NewValues), nullable(e.ChangedColumns), e.Timestamp.UTC())
		if err != nil {
			return fmt.Errorf("insert %s: %w", e.ID, err)
		}
	}
	return nil
}

// Recent returns up to limit entries for ownerID, newest first. IDs sort
// by creation time, so they break timestamp ties.
func (t *TrailStore) Recent(ctx context.Context, ownerID string, limit int) ([]trail.Entry, error) {
	if limit <= 0 {
		limit = trail.DefaultRecentLimit
	}
	rows, err := t.db.QueryContext(ctx, `
		select id, user_id, table_name, operation_type, primary_key, old_values, new_values,
			affected_columns, date_time
		from warden_audit_trails
		where user_id = $1
		order by date_time desc, id desc
		limit $2`, ownerID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []trail.Entry
	for rows.Next() {
		var (
			e                  trail.Entry
			op                 string
			pk, oldV, newV, cc sql.NullString
		)
		if err := rows.Scan(&e.ID, &e.OwnerID, &e.Table, &op, &pk, &oldV, &newV, &cc, &e.Timestamp); err != nil {
			return nil, err
		}
		e.Operation = trail.Operation(op)
		e.PrimaryKey, e.OldValues, e.NewValues, e.ChangedColumns = document(pk), document(oldV), document(newV), document(cc)
		out = append(out, e)
	}
	return out, rows.Err()
}
