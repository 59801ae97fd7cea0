package entity

import "time"

// LinkStatus is the closed lifecycle enum of an invite link.
// Only StatusActive is joinable; StatusUsed can still move to
// StatusClosedByProvider or be revoked/banned; the rest are terminal
// until an admin regenerates.
type LinkStatus string

const (
	StatusActive           LinkStatus = "active"
	StatusUsed             LinkStatus = "used"
	StatusExpired          LinkStatus = "expired"
	StatusRevoked          LinkStatus = "revoked"
	StatusBanned           LinkStatus = "banned"
	StatusClosedByProvider LinkStatus = "closed_by_provider"
)

// LinkTrigger names the events that drive status transitions.
type LinkTrigger string

const (
	TriggerJoin       LinkTrigger = "join"
	TriggerLeave      LinkTrigger = "leave"
	TriggerExpire     LinkTrigger = "expire"
	TriggerRevoke     LinkTrigger = "revoke"
	TriggerBan        LinkTrigger = "ban"
	TriggerUnban      LinkTrigger = "unban"
	TriggerRegenerate LinkTrigger = "regenerate"
)

// transitions is the full state machine. A (status, trigger) pair absent
// from the table is rejected; there are no implicit transitions.
var transitions = map[LinkStatus]map[LinkTrigger]LinkStatus{
	StatusActive: {
		TriggerJoin:   StatusUsed,
		TriggerExpire: StatusExpired,
		TriggerRevoke: StatusRevoked,
		TriggerBan:    StatusBanned,
	},
	StatusUsed: {
		TriggerLeave:  StatusClosedByProvider,
		TriggerRevoke: StatusRevoked,
		TriggerBan:    StatusBanned,
	},
	StatusRevoked: {
		TriggerRegenerate: StatusActive,
	},
	StatusBanned: {
		TriggerUnban:      StatusRevoked,
		TriggerRegenerate: StatusActive,
	},
	StatusClosedByProvider: {
		TriggerRegenerate: StatusActive,
	},
}

// NextStatus returns the target status for a trigger applied to the given
// status, or false when the pair is not defined.
func NextStatus(from LinkStatus, trigger LinkTrigger) (LinkStatus, bool) {
	targets, ok := transitions[from]
	if !ok {
		return "", false
	}
	to, ok := targets[trigger]
	return to, ok
}

// InviteLink is one granted access slot: a single-use provider link bound
// to an access code.
type InviteLink struct {
	Id         int64      `json:"id" bson:"id"`
	GroupId    int64      `json:"group_id" bson:"group_id"`
	GroupTitle string     `json:"group_title" bson:"group_title"`
	InviteURL  string     `json:"invite_url" bson:"invite_url"`
	AccessCode string     `json:"access_code" bson:"access_code"`
	Status     LinkStatus `json:"status" bson:"status"`
	CreatedAt  time.Time  `json:"created_at" bson:"created_at"`
	UsedAt     time.Time  `json:"used_at,omitempty" bson:"used_at,omitempty"`
	ExpiresAt  time.Time  `json:"expires_at" bson:"expires_at"`
	CreatedBy  string     `json:"created_by" bson:"created_by"`
	Price      int64      `json:"price,omitempty" bson:"price,omitempty"`
	Email      string     `json:"email,omitempty" bson:"email,omitempty"`
	ExternalId string     `json:"external_id,omitempty" bson:"external_id,omitempty"`
	Note       string     `json:"note,omitempty" bson:"note,omitempty"`
	Receipt    string     `json:"receipt,omitempty" bson:"receipt,omitempty"`
}

func (l *InviteLink) IsBanned() bool {
	return l.Status == StatusBanned
}

// Joinable reports whether the provider link can still admit a member.
func (l *InviteLink) Joinable() bool {
	return l.Status == StatusActive
}

// Group is one managed messaging space the service issues links into.
type Group struct {
	Id    int64  `json:"id" yaml:"id"`
	Title string `json:"title" yaml:"title"`
}
