package entity

import "testing"

func TestBecameActive(t *testing.T) {
	cases := []struct {
		name  string
		event MembershipEvent
		want  bool
	}{
		{"join via link", MembershipEvent{OldStatus: MemberStatusLeft, NewStatus: MemberStatusMember, InviteURL: "https://t.me/+abc"}, true},
		{"join without link", MembershipEvent{OldStatus: MemberStatusLeft, NewStatus: MemberStatusMember}, false},
		{"promoted to admin", MembershipEvent{OldStatus: MemberStatusMember, NewStatus: MemberStatusAdministrator, InviteURL: "https://t.me/+abc"}, false},
	}
	for _, tc := range cases {
		if got := tc.event.BecameActive(); got != tc.want {
			t.Errorf("%s: got %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestBecameInactive(t *testing.T) {
	cases := []struct {
		name  string
		event MembershipEvent
		want  bool
	}{
		{"member left", MembershipEvent{OldStatus: MemberStatusMember, NewStatus: MemberStatusLeft}, true},
		{"member kicked", MembershipEvent{OldStatus: MemberStatusMember, NewStatus: MemberStatusKicked}, true},
		{"restricted left", MembershipEvent{OldStatus: MemberStatusRestricted, NewStatus: MemberStatusLeft}, true},
		{"admin kicked", MembershipEvent{OldStatus: MemberStatusAdministrator, NewStatus: MemberStatusKicked}, true},
		{"never was in", MembershipEvent{OldStatus: MemberStatusLeft, NewStatus: MemberStatusKicked}, false},
		{"join", MembershipEvent{OldStatus: MemberStatusLeft, NewStatus: MemberStatusMember}, false},
	}
	for _, tc := range cases {
		if got := tc.event.BecameInactive(); got != tc.want {
			t.Errorf("%s: got %v, want %v", tc.name, got, tc.want)
		}
	}
}
