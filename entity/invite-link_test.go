package entity

import "testing"

var allStatuses = []LinkStatus{
	StatusActive, StatusUsed, StatusExpired, StatusRevoked, StatusBanned, StatusClosedByProvider,
}

var allTriggers = []LinkTrigger{
	TriggerJoin, TriggerLeave, TriggerExpire, TriggerRevoke, TriggerBan, TriggerUnban, TriggerRegenerate,
}

func TestNextStatusDefinedTransitions(t *testing.T) {
	cases := []struct {
		from    LinkStatus
		trigger LinkTrigger
		to      LinkStatus
	}{
		{StatusActive, TriggerJoin, StatusUsed},
		{StatusActive, TriggerExpire, StatusExpired},
		{StatusActive, TriggerRevoke, StatusRevoked},
		{StatusActive, TriggerBan, StatusBanned},
		{StatusUsed, TriggerLeave, StatusClosedByProvider},
		{StatusUsed, TriggerRevoke, StatusRevoked},
		{StatusUsed, TriggerBan, StatusBanned},
		{StatusRevoked, TriggerRegenerate, StatusActive},
		{StatusBanned, TriggerUnban, StatusRevoked},
		{StatusBanned, TriggerRegenerate, StatusActive},
		{StatusClosedByProvider, TriggerRegenerate, StatusActive},
	}

	for _, tc := range cases {
		got, ok := NextStatus(tc.from, tc.trigger)
		if !ok {
			t.Errorf("%s + %s: expected transition, got none", tc.from, tc.trigger)
			continue
		}
		if got != tc.to {
			t.Errorf("%s + %s: expected %s, got %s", tc.from, tc.trigger, tc.to, got)
		}
	}
}

// TestNextStatusClosure verifies that exactly the defined pairs are
// accepted: any other (status, trigger) combination is rejected rather
// than silently mapped somewhere.
func TestNextStatusClosure(t *testing.T) {
	defined := map[LinkStatus]map[LinkTrigger]bool{
		StatusActive:           {TriggerJoin: true, TriggerExpire: true, TriggerRevoke: true, TriggerBan: true},
		StatusUsed:             {TriggerLeave: true, TriggerRevoke: true, TriggerBan: true},
		StatusRevoked:          {TriggerRegenerate: true},
		StatusBanned:           {TriggerUnban: true, TriggerRegenerate: true},
		StatusClosedByProvider: {TriggerRegenerate: true},
	}

	for _, from := range allStatuses {
		for _, trigger := range allTriggers {
			_, ok := NextStatus(from, trigger)
			if ok != defined[from][trigger] {
				t.Errorf("%s + %s: accepted=%v, want %v", from, trigger, ok, defined[from][trigger])
			}
		}
	}
}

func TestUnbanDoesNotReactivate(t *testing.T) {
	got, ok := NextStatus(StatusBanned, TriggerUnban)
	if !ok || got != StatusRevoked {
		t.Fatalf("banned + unban: expected revoked, got %s (ok=%v)", got, ok)
	}
}

func TestJoinable(t *testing.T) {
	for _, status := range allStatuses {
		link := InviteLink{Status: status}
		if link.Joinable() != (status == StatusActive) {
			t.Errorf("status %s: unexpected joinable=%v", status, link.Joinable())
		}
	}
}
