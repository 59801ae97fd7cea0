package telegram

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	tgbotapi "github.com/PaulSonOfLars/gotgbot/v2"

	"groupgate/entity"
)

type captureCore struct {
	events []*entity.MembershipEvent
}

func (c *captureCore) MembershipEvent(event *entity.MembershipEvent) {
	c.events = append(c.events, event)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func chatMemberUpdate(t *testing.T) []byte {
	t.Helper()
	payload := map[string]interface{}{
		"update_id": 42,
		"chat_member": map[string]interface{}{
			"chat": map[string]interface{}{"id": -100123, "title": "G1", "type": "supergroup"},
			"from": map[string]interface{}{"id": 1, "is_bot": false, "first_name": "admin"},
			"date": 1700000000,
			"old_chat_member": map[string]interface{}{
				"status": "left",
				"user":   map[string]interface{}{"id": 7, "is_bot": false, "first_name": "U", "username": "u1"},
			},
			"new_chat_member": map[string]interface{}{
				"status": "member",
				"user":   map[string]interface{}{"id": 7, "is_bot": false, "first_name": "U", "username": "u1"},
			},
			"invite_link": map[string]interface{}{
				"invite_link": "https://t.me/+abc",
				"creator":     map[string]interface{}{"id": 1, "is_bot": true, "first_name": "bot"},
			},
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal update: %v", err)
	}
	return body
}

func TestEventMapsMembershipChange(t *testing.T) {
	core := &captureCore{}
	handler := Event(testLogger(), "s3cret", core)

	req := httptest.NewRequest(http.MethodPost, "/webhook/telegram", bytes.NewReader(chatMemberUpdate(t)))
	req.Header.Set("X-Telegram-Bot-Api-Secret-Token", "s3cret")
	rec := httptest.NewRecorder()
	handler(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if len(core.events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(core.events))
	}
	ev := core.events[0]
	if ev.GroupId != -100123 || ev.MemberId != 7 {
		t.Errorf("unexpected event identifiers: %+v", ev)
	}
	if ev.OldStatus != entity.MemberStatusLeft || ev.NewStatus != entity.MemberStatusMember {
		t.Errorf("unexpected statuses: %s -> %s", ev.OldStatus, ev.NewStatus)
	}
	if ev.InviteURL != "https://t.me/+abc" {
		t.Errorf("unexpected invite url: %q", ev.InviteURL)
	}
	if !ev.BecameActive() {
		t.Error("expected event classified as a join")
	}
}

func TestEventRejectsBadSecret(t *testing.T) {
	core := &captureCore{}
	handler := Event(testLogger(), "s3cret", core)

	req := httptest.NewRequest(http.MethodPost, "/webhook/telegram", bytes.NewReader(chatMemberUpdate(t)))
	req.Header.Set("X-Telegram-Bot-Api-Secret-Token", "wrong")
	rec := httptest.NewRecorder()
	handler(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	if len(core.events) != 0 {
		t.Error("event must not reach the core on a bad secret")
	}
}

func TestEventIgnoresNonMembershipUpdate(t *testing.T) {
	core := &captureCore{}
	handler := Event(testLogger(), "", core)

	body, _ := json.Marshal(map[string]interface{}{"update_id": 43})
	req := httptest.NewRequest(http.MethodPost, "/webhook/telegram", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	handler(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if len(core.events) != 0 {
		t.Errorf("expected no events, got %d", len(core.events))
	}
}

func TestMapEventWithoutInviteLink(t *testing.T) {
	upd := &tgbotapi.ChatMemberUpdated{
		Chat:          tgbotapi.Chat{Id: -100123, Title: "G1"},
		OldChatMember: tgbotapi.ChatMemberMember{User: tgbotapi.User{Id: 7, Username: "u1", FirstName: "U"}},
		NewChatMember: tgbotapi.ChatMemberLeft{User: tgbotapi.User{Id: 7, Username: "u1", FirstName: "U"}},
	}

	ev := mapEvent(upd)
	if ev.GroupId != -100123 || ev.MemberId != 7 {
		t.Errorf("unexpected event identifiers: %+v", ev)
	}
	if ev.InviteURL != "" {
		t.Errorf("expected empty invite url, got %q", ev.InviteURL)
	}
	if !ev.BecameInactive() {
		t.Error("expected event classified as a leave")
	}
}
