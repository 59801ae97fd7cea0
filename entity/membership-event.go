package entity

// MemberStatus mirrors the provider's chat member statuses.
type MemberStatus string

const (
	MemberStatusCreator       MemberStatus = "creator"
	MemberStatusAdministrator MemberStatus = "administrator"
	MemberStatusMember        MemberStatus = "member"
	MemberStatusRestricted    MemberStatus = "restricted"
	MemberStatusLeft          MemberStatus = "left"
	MemberStatusKicked        MemberStatus = "kicked"
)

// MembershipEvent is one asynchronous membership change delivered by the
// provider webhook. InviteURL is set only when the provider attached the
// invite link the member used to join.
type MembershipEvent struct {
	GroupId    int64        `json:"group_id"`
	GroupTitle string       `json:"group_title"`
	MemberId   int64        `json:"member_id"`
	Username   string       `json:"username"`
	FirstName  string       `json:"first_name"`
	OldStatus  MemberStatus `json:"old_status"`
	NewStatus  MemberStatus `json:"new_status"`
	InviteURL  string       `json:"invite_url,omitempty"`
}

func (s MemberStatus) isIn() bool {
	switch s {
	case MemberStatusCreator, MemberStatusAdministrator, MemberStatusMember, MemberStatusRestricted:
		return true
	}
	return false
}

func (s MemberStatus) isOut() bool {
	return s == MemberStatusLeft || s == MemberStatusKicked
}

// BecameActive reports a join: the member is now a plain member and the
// event carries the invite link used.
func (e *MembershipEvent) BecameActive() bool {
	return e.NewStatus == MemberStatusMember && e.InviteURL != ""
}

// BecameInactive reports a leave, kick or provider-side ban of a member
// that was previously inside the group.
func (e *MembershipEvent) BecameInactive() bool {
	return e.OldStatus.isIn() && e.NewStatus.isOut()
}
