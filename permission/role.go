package permission

import "strings"

// Role is a user role. Only the constants below are meaningful; any other
// value is treated as the lowest possible level.
type Role string

const (
	// RoleContributor can submit feedback and take part in discussions.
	RoleContributor Role = "contributor"
	// RoleModerator can manage feedback and moderate content.
	RoleModerator Role = "moderator"
	// RoleAdmin has full access to the system, including role management.
	RoleAdmin Role = "admin"
)

// LevelNone is the level of any role outside the closed set.
const LevelNone = 0

var levels = map[Role]int{
	RoleContributor: 1,
	RoleModerator:   2,
	RoleAdmin:       3,
}

// Roles returns every known role ordered from lowest to highest level.
func Roles() []Role {
	return []Role{RoleContributor, RoleModerator, RoleAdmin}
}

// Level returns the rank of r, or LevelNone when r is unknown.
func Level(r Role) int {
	if lvl, ok := levels[r]; ok {
		return lvl
	}
	return LevelNone
}

// Valid reports whether r belongs to the closed role set.
func (r Role) Valid() bool {
	return Level(r) != LevelNone
}

// String implements fmt.Stringer.
func (r Role) String() string {
	return string(r)
}

// Parse maps user input onto a known role. Matching is case-insensitive and
// ignores surrounding whitespace.
func Parse(s string) (Role, bool) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	if !r.Valid() {
		return "", false
	}
	return r, true
}

// Allows reports whether a caller holding have satisfies required, that is
// Level(have) >= Level(required).
//
// A caller with an unknown role is always denied. An unknown requirement
// ranks at LevelNone, below every known role, so it is met by any known
// caller; guards reject unknown requirements when they are built.
func Allows(have, required Role) bool {
	haveLevel := Level(have)
	if haveLevel == LevelNone {
		return false
	}
	return haveLevel >= Level(required)
}

// CanModerate reports whether r is moderator or above.
func CanModerate(r Role) bool {
	return Allows(r, RoleModerator)
}

// CanAdmin reports whether r is admin.
func CanAdmin(r Role) bool {
	return Allows(r, RoleAdmin)
}
