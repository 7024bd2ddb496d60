package trail

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"github.com/MrEthical07/goWarden/internal/logging"
)

var (
	// ErrCaptureFailed marks per-entity capture failures. The enclosing
	// business transaction is not affected by it.
	ErrCaptureFailed = errors.New("trail: audit capture failed")
	// ErrUnresolvedKey is reported for a created entity whose generated key
	// was never supplied.
	ErrUnresolvedKey = errors.New("trail: generated key not resolved")
	// ErrNotDeferred is returned by ResolveKey for a column that is not a
	// deferred key of that change.
	ErrNotDeferred = errors.New("trail: column is not a deferred key")
	// ErrBatchClosed is returned when a batch is committed twice.
	ErrBatchClosed = errors.New("trail: batch already committed")
)

// Failure describes one entity that could not be captured.
type Failure struct {
	Index int
	Table string
	Err   error
}

// CaptureError collects the failures of one commit.
type CaptureError struct {
	Failures []Failure
}

func (e *CaptureError) Error() string {
	tables := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		tables = append(tables, f.Table)
	}
	return fmt.Sprintf("%s for %d entities (%s)", ErrCaptureFailed, len(e.Failures), strings.Join(tables, ", "))
}

func (e *CaptureError) Is(target error) bool { return target == ErrCaptureFailed }

func (e *CaptureError) Unwrap() []error {
	out := make([]error, 0, len(e.Failures))
	for _, f := range e.Failures {
		out = append(out, f.Err)
	}
	return out
}

// Clock supplies timestamps.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to Clock.
type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time { return f() }

// Option configures a Recorder.
type Option func(*Recorder)

func WithSerializer(s Serializer) Option { return func(r *Recorder) { r.serializer = s } }

func WithClock(c Clock) Option { return func(r *Recorder) { r.clock = c } }

func WithLogger(l *zap.Logger) Option { return func(r *Recorder) { r.log = logging.OrNop(l) } }

// WithObserver is called after every commit with the written and failed
// entity counts.
func WithObserver(fn func(written, failed int)) Option {
	return func(r *Recorder) { r.observe = fn }
}

// Recorder is the only writer of audit entries.
type Recorder struct {
	store      Store
	serializer Serializer
	clock      Clock
	log        *zap.Logger
	observe    func(written, failed int)

	idMu    sync.Mutex
	entropy io.Reader
}

// NewRecorder builds a recorder writing to store.
func NewRecorder(store Store, opts ...Option) *Recorder {
	r := &Recorder{
		store:      store,
		serializer: JSONSerializer{},
		clock:      ClockFunc(time.Now),
		log:        zap.NewNop(),
		entropy:    ulid.Monotonic(rand.New(rand.NewSource(time.Now().UnixNano())), 0),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Store returns the backing store.
func (r *Recorder) Store() Store { return r.store }

// Recent lists the newest entries of ownerID.
func (r *Recorder) Recent(ctx context.Context, ownerID string, limit int) ([]Entry, error) {
	return r.store.Recent(ctx, ownerID, limit)
}

// Record diffs and writes changes in one step. Use Begin when the changes
// include generated keys.
func (r *Recorder) Record(ctx context.Context, exec Execer, ownerID string, changes []Change) ([]Entry, error) {
	return r.Begin(ownerID, changes).Commit(ctx, exec)
}

func (r *Recorder) newID(at time.Time) string {
	r.idMu.Lock()
	defer r.idMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(at), r.entropy).String()
}

// Batch is the pending trail of one unit of work.
type Batch struct {
	rec     *Recorder
	ownerID string
	at      time.Time

	mu       sync.Mutex
	changes  []Change
	snaps    []*Snapshot
	resolved map[int]map[string]any
	closed   bool
}

// Begin diffs changes. The snapshot is taken now, before the business
// write, so later edits to Original or Current do not alter it except for
// deferred key columns.
func (r *Recorder) Begin(ownerID string, changes []Change) *Batch {
	b := &Batch{
		rec:      r,
		ownerID:  ownerID,
		at:       r.clock.Now().UTC(),
		changes:  changes,
		snaps:    make([]*Snapshot, len(changes)),
		resolved: map[int]map[string]any{},
	}
	for i, c := range changes {
		if s, ok := Diff(c); ok {
			b.snaps[i] = &s
		}
	}
	return b
}

// Len reports how many entities will produce an entry.
func (b *Batch) Len() int {
	n := 0
	for _, s := range b.snaps {
		if s != nil {
			n++
		}
	}
	return n
}

// Deferred reports whether any generated key is still missing.
func (b *Batch) Deferred() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, s := range b.snaps {
		if s != nil && len(b.missingKeys(i)) > 0 {
			return true
		}
	}
	return false
}

// ResolveKey supplies the database-assigned value of a deferred key column
// for the change at index.
func (b *Batch) ResolveKey(index int, column string, value any) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrBatchClosed
	}
	if index < 0 || index >= len(b.snaps) || b.snaps[index] == nil || !slices.Contains(b.snaps[index].Deferred, column) {
		return fmt.Errorf("%w: %d/%s", ErrNotDeferred, index, column)
	}
	if b.resolved[index] == nil {
		b.resolved[index] = map[string]any{}
	}
	b.resolved[index][column] = value
	return nil
}

// missingKeys patches deferred keys from ResolveKey values or from the
// change's Current map and returns those still absent. Caller holds mu.
func (b *Batch) missingKeys(i int) []string {
	s := b.snaps[i]
	var missing []string
	for _, col := range s.Deferred {
		if v, ok := b.resolved[i][col]; ok && !isZero(v) {
			continue
		}
		if v, ok := b.changes[i].Current[col]; ok && !isZero(v) {
			continue
		}
		missing = append(missing, col)
	}
	return missing
}

// Commit serializes every captured entity and appends the entries through
// exec. Entities that fail are skipped, logged and returned in a
// *CaptureError alongside the entries that were written. A store error is
// returned as is and means nothing was written.
func (b *Batch) Commit(ctx context.Context, exec Execer) ([]Entry, error) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil, ErrBatchClosed
	}
	b.closed = true

	var (
		entries  []Entry
		failures []Failure
	)
	for i, s := range b.snaps {
		if s == nil {
			continue
		}
		if missing := b.missingKeys(i); len(missing) > 0 {
			failures = append(failures, Failure{Index: i, Table: s.Table, Err: fmt.Errorf("%w: %s", ErrUnresolvedKey, strings.Join(missing, ","))})
			continue
		}
		keys := make(map[string]any, len(s.Keys)+len(s.Deferred))
		for k, v := range s.Keys {
			keys[k] = v
		}
		for _, col := range s.Deferred {
			if v, ok := b.resolved[i][col]; ok && !isZero(v) {
				keys[col] = v
			} else {
				keys[col] = b.changes[i].Current[col]
			}
		}
		e, err := b.entry(s, keys)
		if err != nil {
			failures = append(failures, Failure{Index: i, Table: s.Table, Err: err})
			continue
		}
		entries = append(entries, e)
	}
	b.mu.Unlock()

	log := logging.From(ctx, b.rec.log)
	for _, f := range failures {
		log.Warn("audit capture failed", logging.Table(f.Table), logging.UserID(b.ownerID), logging.Err(f.Err))
	}

	if len(entries) > 0 {
		if err := b.rec.store.Append(ctx, exec, entries); err != nil {
			log.Error("audit append failed", logging.UserID(b.ownerID), logging.Count(len(entries)), logging.Err(err))
			if b.rec.observe != nil {
				b.rec.observe(0, len(entries)+len(failures))
			}
			return nil, fmt.Errorf("trail: append: %w", err)
		}
	}
	if b.rec.observe != nil {
		b.rec.observe(len(entries), len(failures))
	}
	if len(failures) > 0 {
		return entries, &CaptureError{Failures: failures}
	}
	return entries, nil
}

func (b *Batch) entry(s *Snapshot, keys map[string]any) (Entry, error) {
	ser := b.rec.serializer
	pk, err := ser.Serialize(keys)
	if err != nil {
		return Entry{}, fmt.Errorf("primary key: %w", err)
	}
	e := Entry{
		ID:         b.rec.newID(b.at),
		OwnerID:    b.ownerID,
		Table:      s.Table,
		Operation:  s.Operation,
		PrimaryKey: pk,
		Timestamp:  b.at,
	}
	if len(s.Old) > 0 {
		if e.OldValues, err = ser.Serialize(s.Old); err != nil {
			return Entry{}, fmt.Errorf("old values: %w", err)
		}
	}
	if len(s.New) > 0 {
		if e.NewValues, err = ser.Serialize(s.New); err != nil {
			return Entry{}, fmt.Errorf("new values: %w", err)
		}
	}
	if len(s.Changed) > 0 {
		if e.ChangedColumns, err = ser.Serialize(s.Changed); err != nil {
			return Entry{}, fmt.Errorf("changed columns: %w", err)
		}
	}
	return e, nil
}
