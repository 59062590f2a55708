// Package statemachine holds the transition tables and time-window checks used by
// the order and payment aggregates.
package statemachine

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidTransition is returned when a status change is not in the table.
var ErrInvalidTransition = errors.New("invalid state transition")

// Machine is an immutable table of allowed status changes.
type Machine[S comparable] struct {
	name  string
	edges map[S]map[S]struct{}
}

// New starts an empty table. name prefixes error messages.
func New[S comparable](name string) *Machine[S] {
	return &Machine[S]{name: name, edges: map[S]map[S]struct{}{}}
}

// Allow registers from -> to for every target. It returns m for chaining.
func (m *Machine[S]) Allow(from S, to ...S) *Machine[S] {
	targets, ok := m.edges[from]
	if !ok {
		targets = map[S]struct{}{}
		m.edges[from] = targets
	}
	for _, t := range to {
		targets[t] = struct{}{}
	}
	return m
}

// Can reports whether from -> to is allowed.
func (m *Machine[S]) Can(from, to S) bool {
	_, ok := m.edges[from][to]
	return ok
}

// Check returns an error wrapping ErrInvalidTransition when from -> to is not allowed.
func (m *Machine[S]) Check(from, to S) error {
	if m.Can(from, to) {
		return nil
	}
	return fmt.Errorf("%w: %s %v -> %v", ErrInvalidTransition, m.name, from, to)
}

// Terminal reports whether s has no outgoing transitions.
func (m *Machine[S]) Terminal(s S) bool {
	return len(m.edges[s]) == 0
}

// WithinWindow reports whether now is no later than start+window. The bound is inclusive.
func WithinWindow(start, now time.Time, window time.Duration) bool {
	return !now.After(start.Add(window))
}
