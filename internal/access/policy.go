// Package access holds the cross-cutting ownership predicate shared by
// status updates, messaging and settlement checkout.
package access

import (
	"github.com/google/uuid"

	"github.com/example/fixlite/internal/intervention/domain"
)

// CanAccessIntervention reports whether the caller may act on the
// intervention: admins always, otherwise the owning user or the assigned
// technician. Role-gated operations (create, claim, admin actions) use a
// strict role check instead of this predicate.
func CanAccessIntervention(callerID uuid.UUID, role domain.Role, iv domain.Intervention) bool {
	if role == domain.RoleAdmin {
		return true
	}
	if callerID == iv.UserID {
		return true
	}
	return iv.TechnicianID != nil && *iv.TechnicianID == callerID
}
