// Package reconcile consumes asynchronous membership events from the
// provider and drives invite link status transitions: a join via a known
// link marks it used, a leave closes it and revokes the provider link.
// Event delivery is at-least-once, so every write is a status-guarded
// compare-and-swap; a redelivered event finds zero affected rows and
// becomes a no-op with no duplicate audit entry or gateway call.
package reconcile

import (
	"fmt"
	"log/slog"
	"time"

	"groupgate/entity"
	"groupgate/lib/sl"
)

const entityLink = "invite_link"

// actorSystem marks audit entries written on behalf of the provider
// rather than an interactive caller.
const actorSystem = "system"

type Database interface {
	GetJoinableLinkByURL(url string) (*entity.InviteLink, error)
	GetLinkByURL(url string) (*entity.InviteLink, error)
	MostRecentUsedLink(groupId int64, since time.Time) (*entity.InviteLink, error)
	MarkLinkUsed(id int64, usedAt time.Time) (bool, error)
	TransitionLink(id int64, from []entity.LinkStatus, to entity.LinkStatus) (bool, error)
}

type Gateway interface {
	RevokeInviteLink(groupId int64, url string) entity.RemoteResult
}

type Recorder interface {
	Record(action, entityType, entityId string, details map[string]interface{}, actorCode string)
}

type Reconciler struct {
	db           Database
	gw           Gateway
	rec          Recorder
	recentWindow time.Duration
	log          *slog.Logger
}

func New(db Database, gw Gateway, rec Recorder, recentWindow time.Duration, log *slog.Logger) *Reconciler {
	if recentWindow == 0 {
		recentWindow = time.Hour
	}
	return &Reconciler{
		db:           db,
		gw:           gw,
		rec:          rec,
		recentWindow: recentWindow,
		log:          log.With(sl.Module("reconcile")),
	}
}

// HandleEvent processes one membership change. Idempotent under
// redelivery; events that match no stored link are still audited so they
// are never silently dropped.
func (r *Reconciler) HandleEvent(event *entity.MembershipEvent) {
	log := r.log.With(
		slog.Int64("group_id", event.GroupId),
		slog.Int64("member_id", event.MemberId),
		slog.String("old_status", string(event.OldStatus)),
		slog.String("new_status", string(event.NewStatus)),
	)

	switch {
	case event.BecameActive():
		r.memberJoined(event, log)
	case event.BecameInactive():
		r.memberLeft(event, log)
	default:
		log.Debug("membership change ignored")
	}
}

func (r *Reconciler) memberJoined(event *entity.MembershipEvent, log *slog.Logger) {
	link, err := r.db.GetJoinableLinkByURL(event.InviteURL)
	if err != nil {
		log.Error("lookup link by url", sl.Err(err))
		return
	}
	if link == nil {
		log.Debug("join via unknown invite link")
		return
	}
	if link.Status == entity.StatusUsed {
		// redelivered join, already reconciled
		return
	}

	changed, err := r.db.MarkLinkUsed(link.Id, time.Now().UTC())
	if err != nil {
		log.Error("mark link used", sl.Err(err))
		return
	}
	if !changed {
		return
	}

	r.rec.Record(entity.ActionMemberJoined, entityLink, fmt.Sprint(link.Id), map[string]interface{}{
		"access_code": link.AccessCode,
		"member_id":   event.MemberId,
		"username":    event.Username,
		"first_name":  event.FirstName,
		"group_id":    event.GroupId,
		"group_title": event.GroupTitle,
	}, actorSystem)
	log.Info("member joined via link",
		slog.Int64("link_id", link.Id),
		slog.String("access_code", link.AccessCode),
	)
}

func (r *Reconciler) memberLeft(event *entity.MembershipEvent, log *slog.Logger) {
	link, err := r.matchDeparture(event)
	if err != nil {
		log.Error("match departed member", sl.Err(err))
		return
	}
	if link != nil && link.Status == entity.StatusClosedByProvider {
		// redelivery of an already reconciled leave
		return
	}
	if link == nil {
		// no attribution; record against the group so the event is kept.
		// Without a link there is nothing to deduplicate on, so this
		// entry repeats when the provider redelivers.
		r.rec.Record(entity.ActionMemberLeft, "group", fmt.Sprint(event.GroupId), map[string]interface{}{
			"member_id":   event.MemberId,
			"username":    event.Username,
			"group_title": event.GroupTitle,
			"may_repeat":  true,
		}, actorSystem)
		log.Info("member left without link attribution")
		return
	}

	changed, err := r.db.TransitionLink(
		link.Id,
		[]entity.LinkStatus{entity.StatusUsed, entity.StatusActive},
		entity.StatusClosedByProvider,
	)
	if err != nil {
		log.Error("close link", sl.Err(err))
		return
	}
	if !changed {
		// redelivery of an already reconciled leave
		return
	}

	remote := r.gw.RevokeInviteLink(link.GroupId, link.InviteURL)
	r.rec.Record(entity.ActionAutoRevokeOnLeave, entityLink, fmt.Sprint(link.Id), map[string]interface{}{
		"access_code": link.AccessCode,
		"member_id":   event.MemberId,
		"username":    event.Username,
		"remote":      remote,
	}, actorSystem)
	log.Info("link closed after member left",
		slog.Int64("link_id", link.Id),
		slog.String("access_code", link.AccessCode),
		slog.String("remote", string(remote.Outcome)),
	)
}

// matchDeparture finds the link responsible for a departed member. The
// invite URL on the event is authoritative; without one the most recently
// used link in the group within the recency window is assumed
// responsible. The fallback is a documented approximation: it can
// mis-attribute under concurrent joins into the same group.
func (r *Reconciler) matchDeparture(event *entity.MembershipEvent) (*entity.InviteLink, error) {
	if event.InviteURL != "" {
		return r.db.GetLinkByURL(event.InviteURL)
	}
	return r.mostRecentUsedLink(event.GroupId)
}

func (r *Reconciler) mostRecentUsedLink(groupId int64) (*entity.InviteLink, error) {
	since := time.Now().UTC().Add(-r.recentWindow)
	return r.db.MostRecentUsedLink(groupId, since)
}
