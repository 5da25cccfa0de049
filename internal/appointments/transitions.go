package appointments

import (
	"github.com/vetly/vetly/internal/apperr"
	"github.com/vetly/vetly/internal/db"
)

// transitionRule marks an edge of the appointment state machine.
type transitionRule struct {
	staffOnly bool
}

// transitions is the complete edge set. Any (from, to) pair missing here
// is rejected.
var transitions = map[db.AppointmentStatus]map[db.AppointmentStatus]transitionRule{
	db.AppointmentPending: {
		db.AppointmentConfirmed: {},
		db.AppointmentCancelled: {},
		db.AppointmentNoShow:    {staffOnly: true},
	},
	db.AppointmentConfirmed: {
		db.AppointmentCheckedIn: {staffOnly: true},
		db.AppointmentCancelled: {},
		db.AppointmentNoShow:    {staffOnly: true},
	},
	db.AppointmentCheckedIn: {
		db.AppointmentInProgress: {staffOnly: true},
		db.AppointmentCompleted:  {staffOnly: true},
	},
	db.AppointmentInProgress: {
		db.AppointmentCompleted: {staffOnly: true},
	},
}

// validateTransition rejects edges missing from the table and, for
// staff-only edges, callers without the staff flag. The two failures are
// distinct errors so callers can tell a wrong edge from a missing
// privilege.
func validateTransition(from, to db.AppointmentStatus, isStaff bool) error {
	rule, ok := transitions[from][to]
	if !ok {
		return apperr.BusinessRule("transición de estado no permitida: %s -> %s", from, to)
	}
	if rule.staffOnly && !isStaff {
		return apperr.BusinessRule("solo el personal puede realizar esta acción")
	}
	return nil
}
