package leave

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrUnknownCategory   = errors.New("unknown leave category")
	ErrAlreadyActive     = errors.New("member already has an active leave")
	ErrCapacityExhausted = errors.New("leave category capacity exhausted")
	ErrNotAuthorized     = errors.New("only the leave holder can complete it")
	ErrNoActiveRequest   = errors.New("no active leave")
	ErrClosed            = errors.New("leave engine is closed")

	// ErrLookup and ErrDelivery never leave the escalation notifier.
	ErrLookup   = errors.New("overseer lookup failed")
	ErrDelivery = errors.New("escalation delivery failed")
)

// CapacityError is returned by Admit when a bounded category is full.
// It matches ErrCapacityExhausted with errors.Is.
type CapacityError struct {
	Category string
	Capacity int
	Holders  []string // member IDs in admission order
}

func (e *CapacityError) Error() string {
	return fmt.Sprintf("%s: %s (%d/%d held by %s)",
		ErrCapacityExhausted, e.Category, len(e.Holders), e.Capacity, strings.Join(e.Holders, ", "))
}

func (e *CapacityError) Unwrap() error { return ErrCapacityExhausted }

// DeliveryError reports a failed escalation to one overseer.
type DeliveryError struct {
	OverseerID string
	Err        error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("deliver to %s: %v", e.OverseerID, e.Err)
}

func (e *DeliveryError) Unwrap() []error { return []error{ErrDelivery, e.Err} }
