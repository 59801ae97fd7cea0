package telegram

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	tgbotapi "github.com/PaulSonOfLars/gotgbot/v2"

	"groupgate/entity"
)

type Core interface {
	MembershipEvent(event *entity.MembershipEvent)
}

// Event handles the provider webhook. It must answer fast: the update is
// validated, mapped onto a membership event and handed to the core; the
// provider retries on non-2xx, so only malformed input is rejected.
func Event(logger *slog.Logger, secret string, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log := logger.With(
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
		)

		if secret != "" && r.Header.Get("X-Telegram-Bot-Api-Secret-Token") != secret {
			log.Error("invalid webhook secret token")
			http.Error(w, "secret", http.StatusUnauthorized)
			return
		}

		payload, err := io.ReadAll(r.Body)
		if err != nil {
			log.With(
				slog.Any("error", err),
			).Error("read request body")
			http.Error(w, "read", http.StatusBadRequest)
			return
		}

		var upd tgbotapi.Update
		if err = json.Unmarshal(payload, &upd); err != nil {
			log.With(
				slog.Any("error", err),
			).Error("unmarshal update")
			http.Error(w, "json", http.StatusBadRequest)
			return
		}

		if upd.ChatMember == nil {
			// not a membership change; acknowledge and move on
			w.WriteHeader(http.StatusOK)
			return
		}

		event := mapEvent(upd.ChatMember)
		log = log.With(
			slog.Int64("update_id", upd.UpdateId),
			slog.Int64("group_id", event.GroupId),
			slog.Int64("member_id", event.MemberId),
		)

		handler.MembershipEvent(event)

		w.WriteHeader(http.StatusOK)
	}
}

func mapEvent(upd *tgbotapi.ChatMemberUpdated) *entity.MembershipEvent {
	oldMember := upd.OldChatMember.MergeChatMember()
	newMember := upd.NewChatMember.MergeChatMember()

	event := &entity.MembershipEvent{
		GroupId:    upd.Chat.Id,
		GroupTitle: upd.Chat.Title,
		MemberId:   newMember.User.Id,
		Username:   newMember.User.Username,
		FirstName:  newMember.User.FirstName,
		OldStatus:  entity.MemberStatus(oldMember.Status),
		NewStatus:  entity.MemberStatus(newMember.Status),
	}
	if upd.InviteLink != nil {
		event.InviteURL = upd.InviteLink.InviteLink
	}
	return event
}
