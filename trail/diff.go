package trail

import (
	"bytes"
	"reflect"
	"slices"
	"time"
)

// Change is the tracked state of one entity handed over by the unit of work.
// Original holds the values loaded from the store, Current the values about
// to be written. Keys names the primary-key columns; GeneratedKeys is the
// subset the database assigns on insert.
type Change struct {
	Table         string
	State         State
	Keys          []string
	GeneratedKeys []string
	Original      map[string]any
	Current       map[string]any
}

// Snapshot is the diff of one Change.
type Snapshot struct {
	Table     string
	Operation Operation
	Keys      map[string]any
	Old       map[string]any
	New       map[string]any
	// Changed lists the differing columns of an update, sorted.
	Changed []string
	// Deferred lists generated key columns with no value yet.
	Deferred []string
}

// Diff computes the snapshot of c. It reports false when c carries no
// effective change. Key columns appear only in Keys.
func Diff(c Change) (Snapshot, bool) {
	s := Snapshot{Table: c.Table}
	switch c.State {
	case StateAdded:
		s.Operation = OperationCreate
	case StateModified:
		s.Operation = OperationUpdate
	case StateDeleted:
		s.Operation = OperationDelete
	default:
		return Snapshot{}, false
	}

	isKey := make(map[string]bool, len(c.Keys))
	for _, k := range c.Keys {
		isKey[k] = true
	}

	source := c.Current
	if c.State == StateDeleted {
		source = c.Original
		if source == nil {
			source = c.Current
		}
	}
	s.Keys = make(map[string]any, len(c.Keys))
	for _, k := range c.Keys {
		v, ok := source[k]
		if c.State == StateAdded && slices.Contains(c.GeneratedKeys, k) && (!ok || isZero(v)) {
			s.Deferred = append(s.Deferred, k)
			continue
		}
		s.Keys[k] = v
	}

	switch c.State {
	case StateAdded:
		s.New = withoutKeys(c.Current, isKey)
	case StateDeleted:
		s.Old = withoutKeys(source, isKey)
	case StateModified:
		for _, col := range columns(c.Original, c.Current) {
			if isKey[col] {
				continue
			}
			before, after := c.Original[col], c.Current[col]
			if sameValue(before, after) {
				continue
			}
			if s.Old == nil {
				s.Old = map[string]any{}
				s.New = map[string]any{}
			}
			s.Old[col] = before
			s.New[col] = after
			s.Changed = append(s.Changed, col)
		}
		if len(s.Changed) == 0 {
			return Snapshot{}, false
		}
	}
	return s, true
}

func withoutKeys(values map[string]any, isKey map[string]bool) map[string]any {
	var out map[string]any
	for k, v := range values {
		if isKey[k] {
			continue
		}
		if out == nil {
			out = make(map[string]any, len(values))
		}
		out[k] = v
	}
	return out
}

// columns returns the sorted union of both key sets.
func columns(a, b map[string]any) []string {
	out := make([]string, 0, len(a)+len(b))
	for k := range a {
		out = append(out, k)
	}
	for k := range b {
		if _, ok := a[k]; !ok {
			out = append(out, k)
		}
	}
	slices.Sort(out)
	return out
}

func sameValue(a, b any) bool {
	switch av := a.(type) {
	case time.Time:
		bv, ok := b.(time.Time)
		return ok && av.Equal(bv)
	case []byte:
		bv, ok := b.([]byte)
		return ok && bytes.Equal(av, bv)
	}
	if eq, ok := sameNumber(a, b); ok {
		return eq
	}
	return reflect.DeepEqual(a, b)
}

// sameNumber compares two numeric values by value regardless of their Go
// types, so an int64 read from a driver equals the int an entity was set
// to. ok is false unless both are numbers.
func sameNumber(a, b any) (eq, ok bool) {
	av, bv := reflect.ValueOf(a), reflect.ValueOf(b)
	ak, bk := numberKind(av), numberKind(bv)
	if ak == notNumber || bk == notNumber {
		return false, false
	}
	switch {
	case ak == floatNumber || bk == floatNumber:
		return asFloat(av) == asFloat(bv), true
	case ak == signedNumber && bk == signedNumber:
		return av.Int() == bv.Int(), true
	case ak == unsignedNumber && bk == unsignedNumber:
		return av.Uint() == bv.Uint(), true
	case ak == signedNumber:
		return av.Int() >= 0 && uint64(av.Int()) == bv.Uint(), true
	default:
		return bv.Int() >= 0 && uint64(bv.Int()) == av.Uint(), true
	}
}

const (
	notNumber = iota
	signedNumber
	unsignedNumber
	floatNumber
)

func numberKind(v reflect.Value) int {
	if !v.IsValid() {
		return notNumber
	}
	switch v.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return signedNumber
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return unsignedNumber
	case reflect.Float32, reflect.Float64:
		return floatNumber
	}
	return notNumber
}

func asFloat(v reflect.Value) float64 {
	switch numberKind(v) {
	case signedNumber:
		return float64(v.Int())
	case unsignedNumber:
		return float64(v.Uint())
	}
	return v.Float()
}

func isZero(v any) bool {
	if v == nil {
		return true
	}
	return reflect.ValueOf(v).IsZero()
}
