package substruct

import (
	"strings"

	"github.com/turtacn/molmatch/pkg/errors"
)

// Role is the reaction role of a graph element.  A single element carries
// exactly one role; a combination of roles is used as an enable mask.
type Role uint8

const (
	RoleReactant Role = 1 << iota
	RoleAgent
	RoleProduct
	RoleNone

	// RoleAll enables every role.
	RoleAll = RoleReactant | RoleAgent | RoleProduct | RoleNone
)

var roleNames = []struct {
	role Role
	name string
}{
	{RoleReactant, "reactant"},
	{RoleAgent, "agent"},
	{RoleProduct, "product"},
	{RoleNone, "none"},
}

// String renders a single role by name and a mask as names joined by "|".
func (r Role) String() string {
	if r == 0 {
		return "empty"
	}
	var parts []string
	for _, rn := range roleNames {
		if r&rn.role != 0 {
			parts = append(parts, rn.name)
		}
	}
	if r&^RoleAll != 0 {
		parts = append(parts, "invalid")
	}
	return strings.Join(parts, "|")
}

// Has reports whether r shares at least one bit with other.
func (r Role) Has(other Role) bool {
	return r&other != 0
}

// IsSingle reports whether r names exactly one known role.
func (r Role) IsSingle() bool {
	return r != 0 && r&^RoleAll == 0 && r&(r-1) == 0
}

// ParseRole converts a role name (case-insensitive) to a Role.  "" and "all"
// are not single roles and are rejected.
func ParseRole(s string) (Role, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for _, rn := range roleNames {
		if rn.name == name {
			return rn.role, nil
		}
	}
	return 0, errors.InvalidParam("unknown role").WithDetailf("role=%q", s)
}

// ValidateRoleMask rejects an empty mask and any bit outside RoleAll.
func ValidateRoleMask(mask Role) error {
	if mask == 0 {
		return errors.InvalidParam("role mask must enable at least one role")
	}
	if mask&^RoleAll != 0 {
		return errors.InvalidParam("role mask contains unknown bits").WithDetailf("mask=%#x", uint8(mask))
	}
	return nil
}
