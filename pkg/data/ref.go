package data

import (
	"context"
	"encoding/json"
	"slices"
)

// Ref is a link to a single record in another table. It starts as a raw
// record ID and holds the record pointer once resolved.
type Ref[T any] struct {
	id     string
	target *T
}

// NewRef creates an unresolved reference to id.
func NewRef[T any](id string) Ref[T] {
	return Ref[T]{id: id}
}

// ResolvedRef creates a reference that already points at v.
func ResolvedRef[T any](id string, v *T) Ref[T] {
	return Ref[T]{id: id, target: v}
}

// ID returns the raw record ID.
func (r Ref[T]) ID() string {
	return r.id
}

// IsZero is true when the reference field was absent.
func (r Ref[T]) IsZero() bool {
	return r.id == ""
}

// Resolved is true once the target record is attached.
func (r Ref[T]) Resolved() bool {
	return r.target != nil
}

// Get returns the resolved record. ok is false if Resolve was never called
// successfully.
func (r Ref[T]) Get() (v *T, ok bool) {
	return r.target, r.target != nil
}

// Resolve attaches the target record, loading its table through l on first
// use. Resolving an already resolved reference returns the same record.
// An absent reference resolves to nil without error.
func (r *Ref[T]) Resolve(ctx context.Context, l *Loader) (*T, error) {
	if r.target != nil {
		return r.target, nil
	}
	if r.id == "" {
		return nil, nil
	}

	v, err := l.resolve(ctx, tableOf[T](), r.id)
	if err != nil {
		return nil, err
	}

	t, ok := v.(*T)
	if !ok {
		return nil, &DanglingReferenceError{Table: tableOf[T](), ID: r.id}
	}
	r.target = t
	return t, nil
}

func (r Ref[T]) MarshalJSON() ([]byte, error) {
	if r.id == "" {
		return []byte("null"), nil
	}
	return json.Marshal(r.id)
}

// RefList is an ordered multi-record link.
type RefList[T any] struct {
	ids     []string
	targets []*T
}

// NewRefList creates an unresolved reference list in the given order.
func NewRefList[T any](ids ...string) RefList[T] {
	return RefList[T]{ids: slices.Clone(ids)}
}

// ResolvedRefList creates a list whose targets are already attached. ids and
// targets must be the same length.
func ResolvedRefList[T any](ids []string, targets []*T) RefList[T] {
	if len(ids) != len(targets) {
		return NewRefList[T](ids...)
	}
	return RefList[T]{ids: slices.Clone(ids), targets: slices.Clone(targets)}
}

// IDs returns a copy of the raw record IDs.
func (l RefList[T]) IDs() []string {
	return slices.Clone(l.ids)
}

// Len returns the number of linked records.
func (l RefList[T]) Len() int {
	return len(l.ids)
}

// Resolved is true once all targets are attached.
func (l RefList[T]) Resolved() bool {
	return len(l.ids) == 0 || l.targets != nil
}

// Get returns the resolved records in link order.
func (l RefList[T]) Get() ([]*T, bool) {
	if !l.Resolved() {
		return nil, false
	}
	return l.targets, true
}

// Resolve attaches all target records in the order of the raw IDs.
func (l *RefList[T]) Resolve(ctx context.Context, ld *Loader) ([]*T, error) {
	if l.Resolved() {
		return l.targets, nil
	}

	list := make([]*T, 0, len(l.ids))
	for _, id := range l.ids {
		r := NewRef[T](id)
		v, err := r.Resolve(ctx, ld)
		if err != nil {
			return nil, err
		}
		list = append(list, v)
	}
	l.targets = list
	return list, nil
}

func (l RefList[T]) MarshalJSON() ([]byte, error) {
	if l.ids == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(l.ids)
}
