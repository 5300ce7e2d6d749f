package registry

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/agnivade/levenshtein"
)

// ErrNotFound is returned when an operation name cannot be resolved.
var ErrNotFound = errors.New("operation not found")

// Func is an operation on a target of type T. It receives the raw keyword arguments.
type Func[T any] func(ctx context.Context, target T, args map[string]any) (any, error)

// Entry is a registered operation.
type Entry[T any] struct {
	Name string
	Doc  string
	Fn   Func[T]
}

// Registry maps operation names, including dotted accessor paths such as "plot.bar",
// to their implementations.
type Registry[T any] struct {
	mu  sync.RWMutex
	ops map[string]Entry[T]
}

// New creates an empty registry.
func New[T any]() *Registry[T] {
	return &Registry[T]{ops: make(map[string]Entry[T])}
}

// Register adds an operation. An existing operation with the same name is overwritten.
func (r *Registry[T]) Register(name, doc string, fn Func[T]) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ops[name] = Entry[T]{Name: name, Doc: doc, Fn: fn}
}

// Alias registers alias as another name for an existing operation.
func (r *Registry[T]) Alias(alias, name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.ops[name]; ok {
		e.Name = alias
		r.ops[alias] = e
	}
}

// Resolve walks a possibly dotted name and returns the operation it designates.
func (r *Registry[T]) Resolve(name string) (Entry[T], error) {
	segments := strings.Split(name, ".")
	for _, s := range segments {
		if strings.TrimSpace(s) == "" {
			return Entry[T]{}, fmt.Errorf("%w: %q is not a valid operation path", ErrNotFound, name)
		}
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	if e, ok := r.ops[name]; ok {
		return e, nil
	}

	if len(segments) > 1 {
		accessor := strings.Join(segments[:len(segments)-1], ".")
		if members := r.membersLocked(accessor); len(members) > 0 {
			return Entry[T]{}, fmt.Errorf("%w: %s has no operation %q (available: %s)",
				ErrNotFound, accessor, segments[len(segments)-1], strings.Join(members, ", "))
		}
	}
	if members := r.membersLocked(name); len(members) > 0 {
		return Entry[T]{}, fmt.Errorf("%w: %s is an accessor, call one of its operations: %s",
			ErrNotFound, name, strings.Join(prefixed(name, members), ", "))
	}

	if hints := r.suggestLocked(name, 3); len(hints) > 0 {
		return Entry[T]{}, fmt.Errorf("%w: %q (did you mean %s?)", ErrNotFound, name, strings.Join(hints, ", "))
	}
	return Entry[T]{}, fmt.Errorf("%w: %q", ErrNotFound, name)
}

// Execute resolves name and invokes it on target.
func (r *Registry[T]) Execute(ctx context.Context, name string, target T, args map[string]any) (any, error) {
	e, err := r.Resolve(name)
	if err != nil {
		return nil, err
	}
	if args == nil {
		args = map[string]any{}
	}
	return e.Fn(ctx, target, args)
}

// Names returns all registered names in sorted order.
func (r *Registry[T]) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.ops))
	for n := range r.ops {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Entries returns all registered operations sorted by name.
func (r *Registry[T]) Entries() []Entry[T] {
	names := r.Names()
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Entry[T], 0, len(names))
	for _, n := range names {
		out = append(out, r.ops[n])
	}
	return out
}

// membersLocked lists the member names registered under accessor.
func (r *Registry[T]) membersLocked(accessor string) []string {
	prefix := accessor + "."
	var members []string
	for n := range r.ops {
		if rest, ok := strings.CutPrefix(n, prefix); ok && !strings.Contains(rest, ".") {
			members = append(members, rest)
		}
	}
	sort.Strings(members)
	return members
}

// suggestLocked returns up to max registered names close to name.
func (r *Registry[T]) suggestLocked(name string, max int) []string {
	type scored struct {
		name string
		dist int
	}
	limit := len(name)/2 + 1
	if limit > 4 {
		limit = 4
	}
	var candidates []scored
	for n := range r.ops {
		d := levenshtein.ComputeDistance(strings.ToLower(name), strings.ToLower(n))
		if d <= limit {
			candidates = append(candidates, scored{n, d})
		}
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].dist != candidates[j].dist {
			return candidates[i].dist < candidates[j].dist
		}
		return candidates[i].name < candidates[j].name
	})
	out := make([]string, 0, max)
	for i := 0; i < len(candidates) && i < max; i++ {
		out = append(out, candidates[i].name)
	}
	return out
}

func prefixed(accessor string, members []string) []string {
	out := make([]string, len(members))
	for i, m := range members {
		out[i] = accessor + "." + m
	}
	return out
}
