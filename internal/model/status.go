package model

import (
	"errors"
	"fmt"
)

// Status describes where a document is in its signing lifecycle. As in the
// rest of the model a named string type keeps stray values out of the API.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusSent      Status = "sent"
)

var (
	ErrInvalidStatus     = errors.New("invalid status")
	ErrInvalidTransition = errors.New("invalid status transition")
)

var transitions = map[Status][]Status{
	StatusDraft:     {StatusPending, StatusCompleted, StatusSent},
	StatusPending:   {StatusDraft, StatusCompleted, StatusSent},
	StatusSent:      {StatusPending, StatusCompleted},
	StatusCompleted: {StatusSent},
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	_, ok := transitions[s]
	return ok
}

// ParseStatus converts s into a Status.
func ParseStatus(s string) (Status, error) {
	v := Status(s)
	if !v.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidStatus, s)
	}
	return v, nil
}

// CanTransition reports whether a document may move from one status to another.
// Rewriting the current status is always allowed.
func CanTransition(from, to Status) bool {
	if !from.Valid() || !to.Valid() {
		return false
	}
	if from == to {
		return true
	}
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// CheckTransition returns ErrInvalidTransition when CanTransition is false.
func CheckTransition(from, to Status) error {
	if !to.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, to)
	}
	if !CanTransition(from, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	return nil
}

// Badge is the label the dashboard shows for s.
func (s Status) Badge() string {
	switch s {
	case StatusPending, StatusSent, StatusCompleted:
		return "Pending Signature"
	default:
		return "Draft"
	}
}
