package authz

import (
	"time"

	"glowspa/api/internal/config"
	"glowspa/api/internal/models"
)

// Engine evaluates (user, resource, action, context) tuples against the
// role registry. It holds no mutable state and performs no I/O; every call
// is a pure function of the registry, the user's assignments and the
// request context.
type Engine struct {
	registry *Registry
	hours    config.HoursConfig
}

func NewEngine(registry *Registry, hours config.HoursConfig) *Engine {
	return &Engine{registry: registry, hours: hours}
}

// Resource categories with extra contextual rules.
var (
	financialCategories = map[string]struct{}{
		"financial": {},
		"billing":   {},
		"invoice":   {},
	}

	// Denied on mobile devices outright.
	mobileRestrictedCategories = map[string]struct{}{
		"financial": {},
		"billing":   {},
		"invoice":   {},
		"reports":   {},
	}

	// Scoped to an individual record with an assigned staff member.
	ownedCategories = map[string]struct{}{
		"appointment": {},
		"patient":     {},
		"treatment":   {},
	}

	mutatingActions = map[string]struct{}{
		"create":  {},
		"update":  {},
		"delete":  {},
		"process": {},
		"refund":  {},
		"manage":  {},
	}
)

// CheckPermission selects the assignments applicable at the context
// location, runs the base role check over them, then narrows contextually
// in fixed order: time, device, ownership. The first failure wins; later
// categories are not evaluated.
func (e *Engine) CheckPermission(userID string, assignments []models.RoleAssignment, resource, action string, pctx PermissionContext) Decision {
	if len(assignments) == 0 {
		return deny(ReasonInsufficientPermissions, "no roles assigned; contact your practice administrator")
	}

	// Locations each held role covers. Empty string marks a global grant.
	roleLocations := make(map[string][]string)
	for _, a := range assignments {
		roleLocations[a.Role] = append(roleLocations[a.Role], a.LocationID)
	}

	// The context location, when present, selects the applicable
	// assignments: only roles assigned there (or globally) are candidates
	// for the base grant.
	candidates := make([]string, 0, len(roleLocations))
	for role, locations := range roleLocations {
		if pctx.LocationID == "" {
			candidates = append(candidates, role)
			continue
		}
		for _, loc := range locations {
			if loc == "" || loc == pctx.LocationID {
				candidates = append(candidates, role)
				break
			}
		}
	}
	if len(candidates) == 0 {
		return deny(ReasonNoAccessAtLocation, "you hold no role at this location")
	}

	// Base grant: hierarchy-ordered, first match recorded for the audit
	// trail. Inherited permissions count via the registry closure.
	var matched string
	for _, role := range e.registry.sortByLevel(candidates) {
		if e.registry.Grants(role, resource, action) {
			matched = role
			break
		}
	}
	if matched == "" {
		// A role held at another location that would grant this makes it a
		// location problem, not a permission one.
		if pctx.LocationID != "" {
			for role := range roleLocations {
				if e.registry.Grants(role, resource, action) {
					return deny(ReasonLocationRestricted, "switch to a location where you hold this role")
				}
			}
		}
		return deny(ReasonInsufficientPermissions, "your role does not permit this; contact your manager")
	}

	matchedDef, _ := e.registry.Role(matched)
	ts := pctx.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}

	// Time.
	if _, financial := financialCategories[resource]; financial {
		if _, mutating := mutatingActions[action]; mutating && !within(ts, e.hours.BusinessOpen, e.hours.BusinessClose) {
			return deny(ReasonTimeRestricted, "financial changes are limited to business hours")
		}
	}
	if matchedDef.TimeRestricted && !within(ts, e.hours.ServiceOpen, e.hours.ServiceClose) {
		return deny(ReasonTimeRestricted, "this account can only be used during service hours")
	}

	// Device.
	if pctx.Device == models.DeviceMobile {
		if _, restricted := mobileRestrictedCategories[resource]; restricted {
			return deny(ReasonDeviceRestricted, "use a desktop workstation for this")
		}
	}

	// Ownership: record-scoped resources belong to their assigned staff
	// member; manager-level roles bypass.
	if _, owned := ownedCategories[resource]; owned && pctx.ResourceID != "" && pctx.OwnerStaffID != "" {
		if pctx.OwnerStaffID != userID && e.maxLevel(candidates) < ManagerLevel {
			return deny(ReasonOwnershipRequired, "this record is assigned to another staff member; contact your manager")
		}
	}

	return allow(matched)
}

func (e *Engine) maxLevel(roles []string) int {
	max := 0
	for _, role := range roles {
		if def, ok := e.registry.Role(role); ok && def.Level > max {
			max = def.Level
		}
	}
	return max
}

// within reports whether the timestamp's hour falls inside [open, close).
// A close before open is an overnight window wrapping past midnight.
func within(ts time.Time, open, close int) bool {
	hour := ts.Hour()
	if open <= close {
		return hour >= open && hour < close
	}
	return hour >= open || hour < close
}
