package rbac

import "sync"

// Policy maps role names to permission sets. It is replaced wholesale
// when roles change in the database.
type Policy struct {
	mu        sync.RWMutex
	rolePerms map[string]map[Permission]struct{}
}

type Role struct {
	Name        string
	Permissions []Permission
}

func NewPolicy(roles []Role) *Policy {
	p := &Policy{rolePerms: map[string]map[Permission]struct{}{}}
	p.Replace(roles)
	return p
}

// Allowed reports whether any of the roles carries perm. A role
// holding the wildcard passes every check.
func (p *Policy) Allowed(userRoles []string, perm Permission) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	for _, r := range userRoles {
		perms, ok := p.rolePerms[r]
		if !ok {
			continue
		}
		if _, ok := perms[Wildcard]; ok {
			return true
		}
		if _, ok := perms[perm]; ok {
			return true
		}
	}
	return false
}

// PermissionsForRoles returns the union of permissions for the provided roles.
func (p *Policy) PermissionsForRoles(roles []string) []Permission {
	p.mu.RLock()
	defer p.mu.RUnlock()
	set := map[Permission]struct{}{}
	for _, r := range roles {
		if perms, ok := p.rolePerms[r]; ok {
			for perm := range perms {
				set[perm] = struct{}{}
			}
		}
	}
	out := make([]Permission, 0, len(set))
	for perm := range set {
		out = append(out, perm)
	}
	return out
}

func (p *Policy) Replace(roles []Role) {
	p.mu.Lock()
	defer p.mu.Unlock()
	rp := make(map[string]map[Permission]struct{})
	for _, r := range roles {
		m := make(map[Permission]struct{})
		for _, perm := range r.Permissions {
			m[perm] = struct{}{}
		}
		rp[r.Name] = m
	}
	p.rolePerms = rp
}
