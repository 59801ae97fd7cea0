package entity

import "time"

// Role is the access level an access code resolves to.
// Precedence on code collision: RoleAdmin > RoleReseller > RoleEndUser.
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleReseller Role = "reseller"
	RoleEndUser  Role = "end_user"
)

// Admin is a panel administrator identified by an access code.
type Admin struct {
	Code     string    `json:"code" bson:"code"`
	Name     string    `json:"name" bson:"name"`
	Active   bool      `json:"active" bson:"active"`
	LastUsed time.Time `json:"last_used" bson:"last_used"`
}

// Reseller issues links into a single assigned group, paying one credit
// per issuance.
type Reseller struct {
	Code    string `json:"code" bson:"code"`
	Name    string `json:"name" bson:"name"`
	Credits int64  `json:"credits" bson:"credits"`
	GroupId int64  `json:"group_id" bson:"group_id"`
	Active  bool   `json:"active" bson:"active"`
}

// Identity is the resolved variant of an access code. Exactly one of the
// role-specific fields is meaningful, selected by Role:
// admins carry Name only, resellers carry GroupId and Credits,
// end-users carry the id of their single link.
type Identity struct {
	Role    Role   `json:"role"`
	Code    string `json:"code"`
	Name    string `json:"name,omitempty"`
	GroupId int64  `json:"group_id,omitempty"`
	Credits int64  `json:"credits,omitempty"`
	LinkId  int64  `json:"link_id,omitempty"`
}

func (i *Identity) IsAdmin() bool {
	return i.Role == RoleAdmin
}

// CanIssue reports whether the identity may issue a link into the group.
// Admins issue anywhere; resellers only into their assigned group.
func (i *Identity) CanIssue(groupId int64) bool {
	switch i.Role {
	case RoleAdmin:
		return true
	case RoleReseller:
		return i.GroupId == groupId
	default:
		return false
	}
}

// CanModerate reports whether the identity may revoke, ban, unban,
// regenerate or delete links.
func (i *Identity) CanModerate() bool {
	return i.Role == RoleAdmin
}

func (i *Identity) CanManageCredits() bool {
	return i.Role == RoleAdmin
}
