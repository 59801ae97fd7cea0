package reconcile

import (
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"groupgate/entity"
)

type memStore struct {
	mu    sync.Mutex
	links map[int64]*entity.InviteLink
}

func newMemStore(links ...*entity.InviteLink) *memStore {
	m := &memStore{links: map[int64]*entity.InviteLink{}}
	for _, l := range links {
		m.links[l.Id] = l
	}
	return m
}

func (m *memStore) GetJoinableLinkByURL(url string) (*entity.InviteLink, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, l := range m.links {
		if l.InviteURL == url && (l.Status == entity.StatusActive || l.Status == entity.StatusUsed) {
			copied := *l
			return &copied, nil
		}
	}
	return nil, nil
}

func (m *memStore) GetLinkByURL(url string) (*entity.InviteLink, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, l := range m.links {
		if l.InviteURL == url {
			copied := *l
			return &copied, nil
		}
	}
	return nil, nil
}

func (m *memStore) MostRecentUsedLink(groupId int64, since time.Time) (*entity.InviteLink, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var best *entity.InviteLink
	for _, l := range m.links {
		if l.GroupId != groupId || l.Status != entity.StatusUsed || l.UsedAt.Before(since) {
			continue
		}
		if best == nil || l.UsedAt.After(best.UsedAt) {
			best = l
		}
	}
	if best == nil {
		return nil, nil
	}
	copied := *best
	return &copied, nil
}

func (m *memStore) MarkLinkUsed(id int64, usedAt time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.links[id]
	if !ok || l.Status != entity.StatusActive {
		return false, nil
	}
	l.Status = entity.StatusUsed
	l.UsedAt = usedAt
	return true, nil
}

func (m *memStore) TransitionLink(id int64, from []entity.LinkStatus, to entity.LinkStatus) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.links[id]
	if !ok {
		return false, nil
	}
	for _, status := range from {
		if l.Status == status {
			l.Status = to
			return true, nil
		}
	}
	return false, nil
}

func (m *memStore) status(id int64) entity.LinkStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.links[id].Status
}

type fakeGateway struct {
	mu      sync.Mutex
	revoked []string
}

func (f *fakeGateway) RevokeInviteLink(groupId int64, url string) entity.RemoteResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.revoked = append(f.revoked, url)
	return entity.RemoteResult{Outcome: entity.RemoteOk}
}

type memRecorder struct {
	mu      sync.Mutex
	entries []entity.AuditEntry
}

func (m *memRecorder) Record(action, entityType, entityId string, details map[string]interface{}, actorCode string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, entity.AuditEntry{
		Action:     action,
		EntityType: entityType,
		EntityId:   entityId,
		Details:    details,
		ActorCode:  actorCode,
	})
}

func (m *memRecorder) count(action string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, e := range m.entries {
		if e.Action == action {
			n++
		}
	}
	return n
}

func newTestReconciler(store *memStore, window time.Duration) (*Reconciler, *fakeGateway, *memRecorder) {
	gw := &fakeGateway{}
	rec := &memRecorder{}
	return New(store, gw, rec, window, slog.New(slog.NewTextHandler(io.Discard, nil))), gw, rec
}

const testURL = "https://t.me/+abc"

func activeLink() *entity.InviteLink {
	return &entity.InviteLink{
		Id:         1,
		GroupId:    100,
		GroupTitle: "G1",
		InviteURL:  testURL,
		AccessCode: "ABC12345",
		Status:     entity.StatusActive,
	}
}

func joinEvent() *entity.MembershipEvent {
	return &entity.MembershipEvent{
		GroupId:   100,
		MemberId:  7,
		Username:  "u1",
		OldStatus: entity.MemberStatusLeft,
		NewStatus: entity.MemberStatusMember,
		InviteURL: testURL,
	}
}

func leaveEvent() *entity.MembershipEvent {
	return &entity.MembershipEvent{
		GroupId:   100,
		MemberId:  7,
		Username:  "u1",
		OldStatus: entity.MemberStatusMember,
		NewStatus: entity.MemberStatusLeft,
		InviteURL: testURL,
	}
}

// Scenario: member joins via a known link, then leaves. The link runs
// active → used → closed_by_provider with one audit entry per step and
// one gateway revoke.
func TestJoinThenLeave(t *testing.T) {
	store := newMemStore(activeLink())
	r, gw, rec := newTestReconciler(store, time.Hour)

	r.HandleEvent(joinEvent())
	if got := store.status(1); got != entity.StatusUsed {
		t.Fatalf("expected used after join, got %s", got)
	}
	if rec.count(entity.ActionMemberJoined) != 1 {
		t.Errorf("expected 1 member_joined entry, got %d", rec.count(entity.ActionMemberJoined))
	}

	r.HandleEvent(leaveEvent())
	if got := store.status(1); got != entity.StatusClosedByProvider {
		t.Fatalf("expected closed_by_provider after leave, got %s", got)
	}
	if rec.count(entity.ActionAutoRevokeOnLeave) != 1 {
		t.Errorf("expected 1 auto_revoke_on_leave entry, got %d", rec.count(entity.ActionAutoRevokeOnLeave))
	}
	if len(gw.revoked) != 1 || gw.revoked[0] != testURL {
		t.Errorf("expected one gateway revoke of %s, got %v", testURL, gw.revoked)
	}
}

// Redelivering the same leave event must be a no-op: no second audit
// entry, no second gateway call.
func TestLeaveRedeliveryIdempotent(t *testing.T) {
	store := newMemStore(activeLink())
	r, gw, rec := newTestReconciler(store, time.Hour)

	r.HandleEvent(joinEvent())
	r.HandleEvent(leaveEvent())
	r.HandleEvent(leaveEvent())

	if rec.count(entity.ActionAutoRevokeOnLeave) != 1 {
		t.Errorf("expected exactly 1 auto_revoke_on_leave entry, got %d", rec.count(entity.ActionAutoRevokeOnLeave))
	}
	if len(gw.revoked) != 1 {
		t.Errorf("expected exactly 1 gateway revoke, got %d", len(gw.revoked))
	}
}

func TestJoinRedeliveryIdempotent(t *testing.T) {
	store := newMemStore(activeLink())
	r, _, rec := newTestReconciler(store, time.Hour)

	r.HandleEvent(joinEvent())
	r.HandleEvent(joinEvent())

	if rec.count(entity.ActionMemberJoined) != 1 {
		t.Errorf("expected exactly 1 member_joined entry, got %d", rec.count(entity.ActionMemberJoined))
	}
}

// A leave without an invite link reference falls back to the most
// recently used link in the group within the recency window.
func TestLeaveFallbackMatch(t *testing.T) {
	link := activeLink()
	link.Status = entity.StatusUsed
	link.UsedAt = time.Now().UTC().Add(-10 * time.Minute)
	store := newMemStore(link)
	r, gw, rec := newTestReconciler(store, time.Hour)

	ev := leaveEvent()
	ev.InviteURL = ""
	r.HandleEvent(ev)

	if got := store.status(1); got != entity.StatusClosedByProvider {
		t.Fatalf("expected closed_by_provider via fallback, got %s", got)
	}
	if rec.count(entity.ActionAutoRevokeOnLeave) != 1 {
		t.Errorf("expected auto_revoke_on_leave entry, got %d", rec.count(entity.ActionAutoRevokeOnLeave))
	}
	if len(gw.revoked) != 1 {
		t.Errorf("expected gateway revoke, got %d", len(gw.revoked))
	}
}

func TestLeaveFallbackOutsideWindow(t *testing.T) {
	link := activeLink()
	link.Status = entity.StatusUsed
	link.UsedAt = time.Now().UTC().Add(-2 * time.Hour)
	store := newMemStore(link)
	r, gw, rec := newTestReconciler(store, time.Hour)

	ev := leaveEvent()
	ev.InviteURL = ""
	r.HandleEvent(ev)

	if got := store.status(1); got != entity.StatusUsed {
		t.Fatalf("stale link must not be attributed, got %s", got)
	}
	if rec.count(entity.ActionMemberLeft) != 1 {
		t.Errorf("expected unattributed member_left entry, got %d", rec.count(entity.ActionMemberLeft))
	}
	if len(gw.revoked) != 0 {
		t.Errorf("expected no gateway call, got %d", len(gw.revoked))
	}
}

func TestLeaveUnknownGroupLogged(t *testing.T) {
	store := newMemStore()
	r, _, rec := newTestReconciler(store, time.Hour)

	ev := leaveEvent()
	ev.InviteURL = ""
	ev.GroupId = 555
	r.HandleEvent(ev)

	if rec.count(entity.ActionMemberLeft) != 1 {
		t.Errorf("expected member_left entry for unmatched leave, got %d", rec.count(entity.ActionMemberLeft))
	}
	if repeat, _ := rec.entries[0].Details["may_repeat"].(bool); !repeat {
		t.Error("unattributed entry must be flagged as repeatable under redelivery")
	}
}

func TestJoinUnknownLinkIgnored(t *testing.T) {
	store := newMemStore()
	r, _, rec := newTestReconciler(store, time.Hour)

	r.HandleEvent(joinEvent())

	if len(rec.entries) != 0 {
		t.Errorf("expected no audit entries for unknown link join, got %d", len(rec.entries))
	}
}

func TestNonMembershipChangesIgnored(t *testing.T) {
	store := newMemStore(activeLink())
	r, gw, rec := newTestReconciler(store, time.Hour)

	// promotion inside the group, not a join or leave
	r.HandleEvent(&entity.MembershipEvent{
		GroupId:   100,
		MemberId:  7,
		OldStatus: entity.MemberStatusMember,
		NewStatus: entity.MemberStatusAdministrator,
	})

	if len(rec.entries) != 0 || len(gw.revoked) != 0 {
		t.Error("promotion events must not touch the ledger")
	}
}
