package tasks

import (
	"errors"
	"fmt"
	"strings"
)

type Kind string

const (
	KindHaulToCell Kind = "HAUL_TO_CELL"
	KindDoBill     Kind = "DO_BILL"
)

// Outcome is the terminal result a haul task reports to its invoker.
type Outcome string

const (
	OutcomeOngoing       Outcome = ""
	OutcomeComplete      Outcome = "COMPLETE"
	OutcomeIncompletable Outcome = "INCOMPLETABLE"
	OutcomeAborted       Outcome = "ABORTED"
	OutcomeErrored       Outcome = "ERRORED"
)

func (o Outcome) Terminal() bool { return o != OutcomeOngoing }

// Reason codes attached to terminal outcomes.
const (
	ReasonNone               = ""
	ReasonReservationFailed  = "E_RESERVATION"
	ReasonInvalidTarget      = "E_INVALID_TARGET"
	ReasonStorageUnavailable = "E_NO_STORAGE"
	ReasonUnavailableCount   = "E_UNAVAILABLE_COUNT"
	ReasonWorkbenchGone      = "E_WORKBENCH"
	ReasonHeldLost           = "E_HELD_LOST"
	ReasonInvariant          = "E_INVARIANT"
	ReasonUnreachable        = "E_UNREACHABLE"
	ReasonCancelled          = "E_CANCELLED"
)

var (
	ErrReservationRejected = errors.New("reservation rejected")
	ErrInvalidTarget       = errors.New("invalid target")
	ErrStorageUnavailable  = errors.New("storage unavailable")
	ErrUnavailableCount    = errors.New("requested count unavailable")
	ErrWorkbenchUnusable   = errors.New("workbench unusable")
	ErrHeldLost            = errors.New("held item lost")
	ErrUnreachable         = errors.New("unreachable")
	ErrAborted             = errors.New("aborted")
	ErrInternal            = errors.New("internal invariant violated")
)

var reasonErrs = map[string]error{
	ReasonReservationFailed:  ErrReservationRejected,
	ReasonInvalidTarget:      ErrInvalidTarget,
	ReasonStorageUnavailable: ErrStorageUnavailable,
	ReasonUnavailableCount:   ErrUnavailableCount,
	ReasonWorkbenchGone:      ErrWorkbenchUnusable,
	ReasonHeldLost:           ErrHeldLost,
	ReasonUnreachable:        ErrUnreachable,
	ReasonCancelled:          ErrAborted,
	ReasonInvariant:          ErrInternal,
}

// OutcomeError maps a terminal outcome to an error for callers that want
// errors.Is checks. COMPLETE and ongoing tasks map to nil.
func OutcomeError(o Outcome, reason string) error {
	switch o {
	case OutcomeOngoing, OutcomeComplete:
		return nil
	}
	base := reasonErrs[reason]
	if base == nil {
		if o == OutcomeAborted {
			base = ErrAborted
		} else {
			return fmt.Errorf("task %s: %s", strings.ToLower(string(o)), reason)
		}
	}
	if reason == "" {
		return fmt.Errorf("task %s: %w", strings.ToLower(string(o)), base)
	}
	return fmt.Errorf("task %s (%s): %w", strings.ToLower(string(o)), reason, base)
}
