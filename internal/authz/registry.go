package authz

import (
	"fmt"
	"regexp"
	"sort"
)

// RoleDefinition is one row of the static role table. Permissions use the
// "resource:action" grammar, or "*" for a full grant. Inherits lists
// subordinate roles whose permissions fold in transitively. UX fields ride
// along for clients; they are not part of the access-control contract.
type RoleDefinition struct {
	Name        string
	Level       int
	Permissions []string
	Inherits    []string

	// UX defaults.
	DisplayName    string
	LandingPage    string
	TimeRestricted bool
}

var permissionGrammar = regexp.MustCompile(`^([a-z_]+:[a-z_]+|\*)$`)

// Registry is the validated, immutable role table. Built once at startup;
// safe for concurrent reads.
type Registry struct {
	roles   map[string]RoleDefinition
	closure map[string]map[string]struct{} // role -> effective permission set
	ordered []string                       // role names by level, descending
}

// NewRegistry validates the role table and precomputes inheritance
// closures. Validation failures are configuration errors: the process must
// not start with a bad table.
func NewRegistry(defs []RoleDefinition) (*Registry, error) {
	roles := make(map[string]RoleDefinition, len(defs))
	for _, def := range defs {
		if def.Name == "" {
			return nil, fmt.Errorf("authz: role with empty name")
		}
		if _, dup := roles[def.Name]; dup {
			return nil, fmt.Errorf("authz: duplicate role %q", def.Name)
		}
		for _, perm := range def.Permissions {
			if !permissionGrammar.MatchString(perm) {
				return nil, fmt.Errorf("authz: role %q: invalid permission %q", def.Name, perm)
			}
		}
		roles[def.Name] = def
	}

	for _, def := range defs {
		for _, inherited := range def.Inherits {
			if _, ok := roles[inherited]; !ok {
				return nil, fmt.Errorf("authz: role %q inherits unknown role %q", def.Name, inherited)
			}
		}
	}

	if cycle := findCycle(roles); cycle != "" {
		return nil, fmt.Errorf("authz: inheritance cycle through role %q", cycle)
	}

	closure := make(map[string]map[string]struct{}, len(roles))
	for name := range roles {
		set := make(map[string]struct{})
		collectPermissions(roles, name, set, make(map[string]struct{}))
		closure[name] = set
	}

	ordered := make([]string, 0, len(roles))
	for name := range roles {
		ordered = append(ordered, name)
	}
	sort.Slice(ordered, func(i, j int) bool {
		if roles[ordered[i]].Level != roles[ordered[j]].Level {
			return roles[ordered[i]].Level > roles[ordered[j]].Level
		}
		return ordered[i] < ordered[j]
	})

	return &Registry{roles: roles, closure: closure, ordered: ordered}, nil
}

func findCycle(roles map[string]RoleDefinition) string {
	const (
		visiting = 1
		done     = 2
	)
	state := make(map[string]int, len(roles))

	var visit func(name string) bool
	visit = func(name string) bool {
		switch state[name] {
		case visiting:
			return true
		case done:
			return false
		}
		state[name] = visiting
		for _, inherited := range roles[name].Inherits {
			if visit(inherited) {
				return true
			}
		}
		state[name] = done
		return false
	}

	names := make([]string, 0, len(roles))
	for name := range roles {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if visit(name) {
			return name
		}
	}
	return ""
}

func collectPermissions(roles map[string]RoleDefinition, name string, into, seen map[string]struct{}) {
	if _, ok := seen[name]; ok {
		return
	}
	seen[name] = struct{}{}
	def := roles[name]
	for _, perm := range def.Permissions {
		into[perm] = struct{}{}
	}
	for _, inherited := range def.Inherits {
		collectPermissions(roles, inherited, into, seen)
	}
}

// Role returns the definition for a role name.
func (r *Registry) Role(name string) (RoleDefinition, bool) {
	def, ok := r.roles[name]
	return def, ok
}

// EffectivePermissions returns the transitive permission closure of a role.
func (r *Registry) EffectivePermissions(name string) map[string]struct{} {
	return r.closure[name]
}

// Grants reports whether a role (or anything it inherits) grants
// resource:action.
func (r *Registry) Grants(name, resource, action string) bool {
	set, ok := r.closure[name]
	if !ok {
		return false
	}
	if _, ok := set["*"]; ok {
		return true
	}
	_, ok = set[resource+":"+action]
	return ok
}

// sortByLevel orders role names by hierarchy level descending. Unknown
// names are dropped.
func (r *Registry) sortByLevel(names []string) []string {
	out := make([]string, 0, len(names))
	for _, name := range names {
		if _, ok := r.roles[name]; ok {
			out = append(out, name)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if r.roles[out[i]].Level != r.roles[out[j]].Level {
			return r.roles[out[i]].Level > r.roles[out[j]].Level
		}
		return out[i] < out[j]
	})
	return out
}
