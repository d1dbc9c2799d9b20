package roles

import "time"

// BaseRoleName is the default role ordinary users land in. It cannot be
// deleted and members cannot be removed from it.
const BaseRoleName = "User"

// Member is the projection of a user holding a role.
type Member struct {
	ID         int64     `json:"id"`
	ExternalID string    `json:"external_id"`
	Username   string    `json:"username"`
	Avatar     string    `json:"avatar"`
	AssignedAt time.Time `json:"assigned_at"`
}
