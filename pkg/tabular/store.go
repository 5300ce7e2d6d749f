package tabular

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrEmptyStack is returned when popping or reading the top of an empty stack.
	ErrEmptyStack = errors.New("stack is empty")

	// ErrIndexOutOfRange is returned when a stack index is outside [0, length).
	ErrIndexOutOfRange = errors.New("stack index out of range")

	// ErrEmptyRegister is returned when the series register is read while unset.
	ErrEmptyRegister = errors.New("series register is empty")
)

// InPlace is returned by an operation that rewrote its target instead of producing a value.
// Exactly one of the fields is set.
type InPlace struct {
	Table  *Table
	Series *Series
}

// Store holds the stack of tables (index 0 at the bottom) and the single series register.
// It is not safe for concurrent use; a session has exactly one writer.
type Store struct {
	stack    []*Table
	register *Series
}

// NewStore returns a store seeded with the given tables, bottom first.
func NewStore(tables ...*Table) *Store {
	s := &Store{}
	for _, t := range tables {
		s.Push(t)
	}
	return s
}

// Len returns the stack depth.
func (s *Store) Len() int { return len(s.stack) }

// Push appends a table on top of the stack.
func (s *Store) Push(t *Table) {
	s.stack = append(s.stack, t)
}

// Pop removes and returns the top table.
func (s *Store) Pop() (*Table, error) {
	if len(s.stack) == 0 {
		return nil, ErrEmptyStack
	}
	top := s.stack[len(s.stack)-1]
	s.stack[len(s.stack)-1] = nil
	s.stack = s.stack[:len(s.stack)-1]
	return top, nil
}

// Top returns the top table without removing it.
func (s *Store) Top() (*Table, error) {
	if len(s.stack) == 0 {
		return nil, ErrEmptyStack
	}
	return s.stack[len(s.stack)-1], nil
}

// Get returns the table at index.
func (s *Store) Get(index int) (*Table, error) {
	if err := s.check(index); err != nil {
		return nil, err
	}
	return s.stack[index], nil
}

// Replace overwrites the table at index.
func (s *Store) Replace(index int, t *Table) error {
	if err := s.check(index); err != nil {
		return err
	}
	s.stack[index] = t
	return nil
}

func (s *Store) check(index int) error {
	if index < 0 || index >= len(s.stack) {
		return fmt.Errorf("%w: index %d, stack length %d", ErrIndexOutOfRange, index, len(s.stack))
	}
	return nil
}

// Tables returns the stack, bottom first. The slice is a copy; the tables are shared.
func (s *Store) Tables() []*Table {
	out := make([]*Table, len(s.stack))
	copy(out, s.stack)
	return out
}

// SetRegister overwrites the register. Prior content is discarded.
func (s *Store) SetRegister(series *Series) {
	s.register = series
}

// Register returns the register content.
func (s *Store) Register() (*Series, error) {
	if s.register == nil {
		return nil, ErrEmptyRegister
	}
	return s.register, nil
}

// HasRegister reports whether the register is set.
func (s *Store) HasRegister() bool { return s.register != nil }

// ClearRegister empties the register.
func (s *Store) ClearRegister() { s.register = nil }

// Clone returns a deep copy of the stack and register.
func (s *Store) Clone() *Store {
	out := &Store{stack: make([]*Table, len(s.stack))}
	for i, t := range s.stack {
		out.stack[i] = t.Copy()
	}
	if s.register != nil {
		out.register = s.register.Copy()
	}
	return out
}

// Overview describes the stack, top first, and the register, previewing n rows of each.
func (s *Store) Overview(n int) string {
	var b strings.Builder
	b.WriteString("<stack>\n")
	for i := len(s.stack) - 1; i >= 0; i-- {
		fmt.Fprintf(&b, "<stack element %d>\n%s\n</stack element %d>\n", i, s.stack[i].Preview(n), i)
	}
	b.WriteString("</stack>\n<series register>\n")
	if s.register == nil {
		b.WriteString("None")
	} else {
		b.WriteString(s.register.Preview(n))
	}
	b.WriteString("\n</series register>")
	return b.String()
}

type storeJSON struct {
	Stack    []*Table `json:"stack"`
	Register *Series  `json:"register,omitempty"`
}

// MarshalJSON encodes the stack and register.
func (s *Store) MarshalJSON() ([]byte, error) {
	stack := s.stack
	if stack == nil {
		stack = []*Table{}
	}
	return json.Marshal(storeJSON{Stack: stack, Register: s.register})
}

// UnmarshalJSON restores the stack and register.
func (s *Store) UnmarshalJSON(data []byte) error {
	var raw storeJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	s.stack = raw.Stack
	s.register = raw.Register
	return nil
}
