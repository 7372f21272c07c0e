package store

import (
	"errors"
	"fmt"
)

var (
	ErrTicketNotFound  = errors.New("ticket not found")
	ErrStepNotFound    = errors.New("service step not found")
	ErrDeskNotFound    = errors.New("desk not found")
	ErrRoomNotFound    = errors.New("room not found")
	ErrServiceNotFound = errors.New("service not found")
	// ErrAlreadyInProgress means a concurrent caller took the entity between
	// the station busy check and the conditional write.
	ErrAlreadyInProgress = errors.New("entity already taken by a concurrent call")
	ErrStationMismatch   = errors.New("entity assigned to a different station")
	ErrNotServable       = errors.New("room cannot serve this step's service")
	ErrUnidentified      = errors.New("ticket has no customer linked")
	// ErrNotEligible means the step is pending but an earlier step in the
	// ticket's pipeline is still incomplete.
	ErrNotEligible = errors.New("step is not the ticket's next eligible step")
)

// StationBusyError is returned when a desk or room already has a different
// occupant in called or in-progress state. It names the occupant so the
// caller can surface an actionable conflict.
type StationBusyError struct {
	StationID    string
	OccupantID   string
	OccupantCode string
}

func (e *StationBusyError) Error() string {
	return fmt.Sprintf("station %s busy with %s", e.StationID, e.OccupantCode)
}

// InvalidTransitionError carries the expected and actual states when a
// conditional status write matched no rows.
type InvalidTransitionError struct {
	Entity   string
	Action   string
	Expected string
	Actual   string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("cannot %s: %s is %s, requires %s", e.Action, e.Entity, e.Actual, e.Expected)
}
