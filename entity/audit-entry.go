package entity

import "time"

// Audit action names recorded by the core. The reconciler and tests match
// on these, so they are constants rather than free strings.
const (
	ActionIssueLink         = "issue_link"
	ActionMemberJoined      = "member_joined"
	ActionMemberLeft        = "member_left"
	ActionAutoRevokeOnLeave = "auto_revoke_on_leave"
	ActionRevokeTelegram    = "revoke_telegram"
	ActionBanLink           = "ban_link"
	ActionUnbanLink         = "unban_link"
	ActionRegenerateLink    = "regenerate_link"
	ActionDeleteLink        = "delete_link"
	ActionPermanentDelete   = "permanent_delete_link"
	ActionAddCredits        = "add_credits"
)

// AuditEntry is one append-only record of a state transition or
// administrative action. Entries are never mutated or deleted.
type AuditEntry struct {
	Action     string                 `json:"action" bson:"action"`
	EntityType string                 `json:"entity_type" bson:"entity_type"`
	EntityId   string                 `json:"entity_id" bson:"entity_id"`
	Details    map[string]interface{} `json:"details,omitempty" bson:"details,omitempty"`
	ActorCode  string                 `json:"actor_code" bson:"actor_code"`
	Timestamp  time.Time              `json:"timestamp" bson:"timestamp"`
}
