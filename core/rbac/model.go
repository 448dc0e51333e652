package rbac

import (
	"sort"
	"strings"
)

type Permission = string

// Wildcard grants every permission check.
const Wildcard Permission = "ADMIN"

var permissions = []Permission{
	Wildcard,
	"USERS_VIEW", "USERS_MANAGE",
	"ROLES_VIEW", "ROLES_MANAGE",
	"SESSIONS_VIEW", "SESSIONS_TERMINATE",
	"ACTIVITIES_VIEW",
	"STATIONS_VIEW", "STATIONS_MANAGE",
	"GAME_SESSIONS_VIEW", "GAME_SESSIONS_MANAGE",
}

var knownPermissionSet = buildPermissionSet()

func buildPermissionSet() map[Permission]struct{} {
	out := make(map[Permission]struct{}, len(permissions))
	for _, p := range permissions {
		out[p] = struct{}{}
	}
	return out
}

func AllPermissions() []Permission {
	out := make([]Permission, len(permissions))
	copy(out, permissions)
	return out
}

func IsKnownPermission(p Permission) bool {
	_, ok := knownPermissionSet[p]
	return ok
}

// NormalizePermissionNames splits the input into known and unknown
// names, upper-cased and deduplicated.
func NormalizePermissionNames(in []string) (valid []string, invalid []string) {
	validSet := map[string]struct{}{}
	invalidSet := map[string]struct{}{}
	for _, raw := range in {
		p := strings.ToUpper(strings.TrimSpace(raw))
		if p == "" {
			continue
		}
		if IsKnownPermission(p) {
			validSet[p] = struct{}{}
		} else {
			invalidSet[p] = struct{}{}
		}
	}
	valid = make([]string, 0, len(validSet))
	for p := range validSet {
		valid = append(valid, p)
	}
	invalid = make([]string, 0, len(invalidSet))
	for p := range invalidSet {
		invalid = append(invalid, p)
	}
	sort.Strings(valid)
	sort.Strings(invalid)
	return valid, invalid
}
