package rbac

import "time"

// Role priorities form a closed domain where a lower value means a higher
// privilege tier. PriorityOwner bypasses all permission checks.
const (
	PriorityOwner = 0
	PriorityMin   = 0
	PriorityMax   = 3
)

// Effect values annotate a (role, permission) pair.
const (
	EffectAllow = "allow"
	EffectDeny  = "deny"
)

// ValidPriority reports whether p falls inside the documented priority domain.
func ValidPriority(p int) bool {
	return p >= PriorityMin && p <= PriorityMax
}

// Role represents a privilege grouping with a hierarchy rank.
type Role struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Priority  int       `json:"priority"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Permission represents an atomic capability. Its priority gates who may
// grant or revoke it.
type Permission struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Priority  int       `json:"priority"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// RolePermission ties a permission to a role with an allow or deny effect.
// At most one row exists per (role, permission) pair.
type RolePermission struct {
	RoleID       int64     `json:"role_id"`
	PermissionID int64     `json:"permission_id"`
	Permission   string    `json:"permission"`
	Priority     int       `json:"priority"`
	Effect       string    `json:"effect"`
	CreatedAt    time.Time `json:"created_at"`
}

// Grants is the aggregate of a user's explicitly allowed and denied
// permission names. The same name may appear in both sets; precedence is
// applied at check time, not here.
type Grants struct {
	Allowed map[string]struct{}
	Denied  map[string]struct{}
	IsOwner bool
}

// PermitsAll reports whether every required permission passes the check-time
// rule: deny wins, otherwise an explicit allow is required. The first failing
// permission name is returned.
func (g Grants) PermitsAll(required []string) (string, bool) {
	if g.IsOwner {
		return "", true
	}
	for _, name := range required {
		if _, denied := g.Denied[name]; denied {
			return name, false
		}
		if _, allowed := g.Allowed[name]; !allowed {
			return name, false
		}
	}
	return "", true
}

// PermitsAny reports whether at least one candidate is allowed and not denied.
// A deny on one candidate does not block success through another.
func (g Grants) PermitsAny(candidates []string) bool {
	if g.IsOwner {
		return true
	}
	for _, name := range candidates {
		if _, denied := g.Denied[name]; denied {
			continue
		}
		if _, allowed := g.Allowed[name]; allowed {
			return true
		}
	}
	return false
}
