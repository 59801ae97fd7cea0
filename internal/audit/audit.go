// Package audit is the append-only record of state transitions and
// administrative actions. It is observability, not a hard dependency:
// a failed write is logged and the primary operation proceeds.
package audit

import (
	"log/slog"
	"time"

	"groupgate/entity"
	"groupgate/lib/sl"
)

type Store interface {
	SaveAuditEntry(entry *entity.AuditEntry) error
	RecentAuditEntries(entityType, entityId string, limit int64) ([]*entity.AuditEntry, error)
}

type Audit struct {
	store Store
	log   *slog.Logger
}

func New(store Store, log *slog.Logger) *Audit {
	return &Audit{
		store: store,
		log:   log.With(sl.Module("audit")),
	}
}

// Record appends one entry. Never returns an error and never blocks the
// caller on sink failures.
func (a *Audit) Record(action, entityType, entityId string, details map[string]interface{}, actorCode string) {
	entry := &entity.AuditEntry{
		Action:     action,
		EntityType: entityType,
		EntityId:   entityId,
		Details:    details,
		ActorCode:  actorCode,
		Timestamp:  time.Now().UTC(),
	}
	if a.store == nil {
		a.log.Debug("audit sink disabled", slog.String("action", action))
		return
	}
	if err := a.store.SaveAuditEntry(entry); err != nil {
		a.log.Warn("audit write failed",
			slog.String("action", action),
			slog.String("entity_id", entityId),
			sl.Err(err),
		)
	}
}

// Recent reads back the latest entries for one entity, newest first. With
// the sink disabled the trail is simply empty.
func (a *Audit) Recent(entityType, entityId string, limit int64) ([]*entity.AuditEntry, error) {
	if a.store == nil {
		return []*entity.AuditEntry{}, nil
	}
	return a.store.RecentAuditEntries(entityType, entityId, limit)
}
