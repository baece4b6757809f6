package authz

import (
	"time"

	"glowspa/api/internal/models"
)

// PermissionContext carries the per-request metadata the engine narrows on.
// All fields except Timestamp are optional; absent fields skip their check.
// Never persisted.
type PermissionContext struct {
	Timestamp  time.Time
	LocationID string
	Device     models.DeviceClass

	// ResourceID and OwnerStaffID scope the check to one record (a specific
	// appointment or patient chart) and name the staff member it belongs to.
	ResourceID   string
	OwnerStaffID string
}

// Decision is the outcome of a permission check. Reason and Suggestion are
// for audit logs and admin tooling; user-facing responses stay generic.
type Decision struct {
	Allowed     bool
	MatchedRole string
	Reason      Reason
	Suggestion  string
}

type Reason string

const (
	ReasonInsufficientPermissions Reason = "insufficient_permissions"
	ReasonNoAccessAtLocation      Reason = "no_access_at_location"
	ReasonLocationRestricted      Reason = "location_restricted"
	ReasonDeviceRestricted        Reason = "device_restricted"
	ReasonTimeRestricted          Reason = "time_restricted"
	ReasonOwnershipRequired       Reason = "ownership_required"
)

func allow(role string) Decision {
	return Decision{Allowed: true, MatchedRole: role}
}

func deny(reason Reason, suggestion string) Decision {
	return Decision{Reason: reason, Suggestion: suggestion}
}
