// Package core implements the interactive action surface: issuing,
// revoking, banning, unbanning, regenerating and deleting invite links,
// plus credit top-ups. Authorization is a pattern match over the resolved
// identity's role; every state change is a status-guarded update against
// the ledger and every action is recorded in the audit log.
package core

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"groupgate/entity"
	"groupgate/internal/gateway"
	"groupgate/lib/sl"
)

const accessCodeLength = 8

const (
	entityLink     = "invite_link"
	entityReseller = "reseller"
)

type Database interface {
	GetReseller(code string) (*entity.Reseller, error)
	TryDebitCredit(code string) (bool, error)
	RefundCredit(code string) error
	AddCredits(code string, amount int64) (bool, error)
	InsertLink(link *entity.InviteLink) (int64, error)
	GetLink(id int64) (*entity.InviteLink, error)
	GetActiveLinkByAccessCode(code string) (*entity.InviteLink, error)
	TransitionLink(id int64, from []entity.LinkStatus, to entity.LinkStatus) (bool, error)
	RefreshLink(id int64, url string, expiresAt time.Time) (bool, error)
	DeleteLink(id int64) error
	InsertRevenue(link *entity.InviteLink, actorCode string) error
	PurgeRevenueByCode(code string) error
}

type Gateway interface {
	CreateInviteLink(groupId int64, label string) (*gateway.Link, error)
	RevokeInviteLink(groupId int64, url string) entity.RemoteResult
}

type Recorder interface {
	Record(action, entityType, entityId string, details map[string]interface{}, actorCode string)
	Recent(entityType, entityId string, limit int64) ([]*entity.AuditEntry, error)
}

type Reconciler interface {
	HandleEvent(event *entity.MembershipEvent)
}

type Core struct {
	db     Database
	gw     Gateway
	rec    Recorder
	recon  Reconciler
	groups []entity.Group
	log    *slog.Logger
}

func New(db Database, gw Gateway, rec Recorder, recon Reconciler, groups []entity.Group, log *slog.Logger) *Core {
	if db == nil {
		panic("core: database is nil")
	}
	return &Core{
		db:     db,
		gw:     gw,
		rec:    rec,
		recon:  recon,
		groups: groups,
		log:    log.With(sl.Module("core")),
	}
}

// NewAccessCode generates an opaque uppercase code for a fresh link.
func NewAccessCode() string {
	raw := strings.ReplaceAll(uuid.New().String(), "-", "")
	return strings.ToUpper(raw[:accessCodeLength])
}

func (c *Core) groupById(id int64) (entity.Group, bool) {
	for _, group := range c.groups {
		if group.Id == id {
			return group, true
		}
	}
	return entity.Group{}, false
}

// Issue creates a new invite link. Resellers pay one credit up front; the
// debit is refunded when the provider refuses to create the link. An
// explicit access code supersedes any prior active link for that code so
// at most one joinable link exists per code.
func (c *Core) Issue(actor *entity.Identity, req *entity.IssueRequest) (*entity.InviteLink, error) {
	if !actor.CanIssue(req.GroupId) {
		return nil, entity.E(entity.KindInsufficientScope, "not allowed to issue links for this group")
	}
	group, ok := c.groupById(req.GroupId)
	if !ok {
		return nil, entity.Ef(entity.KindValidation, "unknown group %d", req.GroupId)
	}

	code := strings.ToUpper(strings.TrimSpace(req.AccessCode))
	explicit := code != ""
	if !explicit {
		code = NewAccessCode()
	}

	debited := false
	if actor.Role == entity.RoleReseller {
		ok, err := c.db.TryDebitCredit(actor.Code)
		if err != nil {
			return nil, fmt.Errorf("debit credit: %w", err)
		}
		if !ok {
			return nil, entity.E(entity.KindInsufficientCredit, "insufficient credit")
		}
		debited = true
	}

	// retire a prior link only after the debit; a failed payment must
	// leave existing access untouched
	if explicit {
		if err := c.supersede(actor, code); err != nil {
			c.refund(actor, debited)
			return nil, err
		}
	}

	created, err := c.gw.CreateInviteLink(group.Id, code)
	if err != nil {
		c.refund(actor, debited)
		return nil, fmt.Errorf("create invite link: %w", err)
	}

	link := &entity.InviteLink{
		GroupId:    group.Id,
		GroupTitle: group.Title,
		InviteURL:  created.URL,
		AccessCode: code,
		Status:     entity.StatusActive,
		CreatedAt:  time.Now().UTC(),
		ExpiresAt:  created.ExpiresAt,
		CreatedBy:  actor.Code,
		Price:      req.Price,
		Email:      req.Email,
		ExternalId: req.ExternalId,
		Note:       req.Note,
		Receipt:    req.Receipt,
	}
	link.Id, err = c.db.InsertLink(link)
	if err != nil {
		return nil, fmt.Errorf("store invite link: %w", err)
	}

	if link.Price > 0 {
		if err = c.db.InsertRevenue(link, actor.Code); err != nil {
			c.log.Warn("record revenue", sl.Err(err))
		}
	}

	c.rec.Record(entity.ActionIssueLink, entityLink, fmt.Sprint(link.Id), map[string]interface{}{
		"access_code": code,
		"group_id":    group.Id,
		"group_title": group.Title,
		"price":       req.Price,
	}, actor.Code)

	c.log.Info("link issued",
		slog.Int64("link_id", link.Id),
		slog.Int64("group_id", group.Id),
		slog.String("access_code", code),
	)
	return link, nil
}

func (c *Core) refund(actor *entity.Identity, debited bool) {
	if !debited {
		return
	}
	if err := c.db.RefundCredit(actor.Code); err != nil {
		c.log.Error("refund after failed issuance", sl.Err(err))
	}
}

// supersede retires a still-active link bound to the same access code
// before a replacement is issued.
func (c *Core) supersede(actor *entity.Identity, code string) error {
	prior, err := c.db.GetActiveLinkByAccessCode(code)
	if err != nil {
		return err
	}
	if prior == nil {
		return nil
	}
	changed, err := c.db.TransitionLink(prior.Id, []entity.LinkStatus{entity.StatusActive}, entity.StatusRevoked)
	if err != nil {
		return err
	}
	if !changed {
		return nil
	}
	remote := c.gw.RevokeInviteLink(prior.GroupId, prior.InviteURL)
	c.rec.Record(entity.ActionRevokeTelegram, entityLink, fmt.Sprint(prior.Id), map[string]interface{}{
		"access_code": code,
		"superseded":  true,
		"remote":      remote,
	}, actor.Code)
	return nil
}

// Revoke moves a link to revoked and best-effort invalidates it on the
// provider side. The ledger transition commits even when the provider
// call fails; the remote outcome lands in the audit detail.
func (c *Core) Revoke(actor *entity.Identity, linkId int64) (*entity.InviteLink, error) {
	link, err := c.moderated(actor, linkId)
	if err != nil {
		return nil, err
	}
	next, err := c.transition(link, entity.TriggerRevoke)
	if err != nil {
		return nil, err
	}

	remote := c.gw.RevokeInviteLink(link.GroupId, link.InviteURL)
	c.rec.Record(entity.ActionRevokeTelegram, entityLink, fmt.Sprint(link.Id), map[string]interface{}{
		"access_code": link.AccessCode,
		"remote":      remote,
	}, actor.Code)

	link.Status = next
	return link, nil
}

// Ban moves a link to banned, revokes it remotely best-effort and purges
// revenue records tied to the access code.
func (c *Core) Ban(actor *entity.Identity, linkId int64) (*entity.InviteLink, error) {
	link, err := c.moderated(actor, linkId)
	if err != nil {
		return nil, err
	}
	next, err := c.transition(link, entity.TriggerBan)
	if err != nil {
		return nil, err
	}

	remote := c.gw.RevokeInviteLink(link.GroupId, link.InviteURL)
	if err = c.db.PurgeRevenueByCode(link.AccessCode); err != nil {
		c.log.Warn("purge revenue", sl.Err(err))
	}
	c.rec.Record(entity.ActionBanLink, entityLink, fmt.Sprint(link.Id), map[string]interface{}{
		"access_code": link.AccessCode,
		"remote":      remote,
	}, actor.Code)

	link.Status = next
	return link, nil
}

// Unban returns a banned link to revoked, not active: re-enabling access
// requires an explicit regenerate.
func (c *Core) Unban(actor *entity.Identity, linkId int64) (*entity.InviteLink, error) {
	link, err := c.moderated(actor, linkId)
	if err != nil {
		return nil, err
	}
	next, err := c.transition(link, entity.TriggerUnban)
	if err != nil {
		return nil, err
	}

	c.rec.Record(entity.ActionUnbanLink, entityLink, fmt.Sprint(link.Id), map[string]interface{}{
		"access_code": link.AccessCode,
	}, actor.Code)

	link.Status = next
	return link, nil
}

// Regenerate creates a fresh provider link for the same access code and
// re-activates the record with a refreshed expiry. The old provider link
// is revoked best-effort.
func (c *Core) Regenerate(actor *entity.Identity, linkId int64) (*entity.InviteLink, error) {
	link, err := c.moderated(actor, linkId)
	if err != nil {
		return nil, err
	}
	if _, ok := entity.NextStatus(link.Status, entity.TriggerRegenerate); !ok {
		return nil, entity.Ef(entity.KindConflict, "cannot regenerate link in status %s", link.Status)
	}

	oldURL := link.InviteURL
	remote := c.gw.RevokeInviteLink(link.GroupId, oldURL)

	created, err := c.gw.CreateInviteLink(link.GroupId, link.AccessCode)
	if err != nil {
		return nil, fmt.Errorf("create invite link: %w", err)
	}

	changed, err := c.db.RefreshLink(link.Id, created.URL, created.ExpiresAt)
	if err != nil {
		return nil, err
	}
	if !changed {
		// lost the race; do not leave a joinable orphan on the provider
		c.gw.RevokeInviteLink(link.GroupId, created.URL)
		return nil, entity.E(entity.KindConflict, "link state changed concurrently")
	}

	c.rec.Record(entity.ActionRegenerateLink, entityLink, fmt.Sprint(link.Id), map[string]interface{}{
		"access_code": link.AccessCode,
		"old_remote":  remote,
	}, actor.Code)

	link.Status = entity.StatusActive
	link.InviteURL = created.URL
	link.ExpiresAt = created.ExpiresAt
	link.UsedAt = time.Time{}
	return link, nil
}

// Delete removes a link record. Panel-only delete is pure bookkeeping;
// permanent delete also revokes the provider link and purges revenue.
func (c *Core) Delete(actor *entity.Identity, linkId int64, permanent bool) error {
	link, err := c.moderated(actor, linkId)
	if err != nil {
		return err
	}

	action := entity.ActionDeleteLink
	details := map[string]interface{}{
		"access_code": link.AccessCode,
	}
	if permanent {
		action = entity.ActionPermanentDelete
		details["remote"] = c.gw.RevokeInviteLink(link.GroupId, link.InviteURL)
		if err = c.db.PurgeRevenueByCode(link.AccessCode); err != nil {
			c.log.Warn("purge revenue", sl.Err(err))
		}
	}

	if err = c.db.DeleteLink(link.Id); err != nil {
		return fmt.Errorf("delete link: %w", err)
	}
	c.rec.Record(action, entityLink, fmt.Sprint(link.Id), details, actor.Code)
	return nil
}

// AddCredits is the admin-only unconditional top-up of a reseller balance.
func (c *Core) AddCredits(actor *entity.Identity, resellerCode string, amount int64) (*entity.Reseller, error) {
	if !actor.CanManageCredits() {
		return nil, entity.E(entity.KindInsufficientScope, "not allowed to manage credits")
	}
	if amount <= 0 {
		return nil, entity.E(entity.KindValidation, "credit amount must be positive")
	}
	resellerCode = strings.ToUpper(strings.TrimSpace(resellerCode))

	ok, err := c.db.AddCredits(resellerCode, amount)
	if err != nil {
		return nil, fmt.Errorf("add credits: %w", err)
	}
	if !ok {
		return nil, entity.E(entity.KindNotFound, "reseller not found")
	}

	c.rec.Record(entity.ActionAddCredits, entityReseller, resellerCode, map[string]interface{}{
		"amount": amount,
	}, actor.Code)

	return c.db.GetReseller(resellerCode)
}

const historyLimit = 50

// LinkHistory returns the recent audit trail of one link, newest first.
func (c *Core) LinkHistory(actor *entity.Identity, linkId int64) ([]*entity.AuditEntry, error) {
	link, err := c.moderated(actor, linkId)
	if err != nil {
		return nil, err
	}
	return c.rec.Recent(entityLink, fmt.Sprint(link.Id), historyLimit)
}

// OwnLink returns the single link behind an end-user identity.
func (c *Core) OwnLink(actor *entity.Identity) (*entity.InviteLink, error) {
	if actor.Role != entity.RoleEndUser || actor.LinkId == 0 {
		return nil, entity.E(entity.KindInsufficientScope, "no link bound to this identity")
	}
	link, err := c.db.GetLink(actor.LinkId)
	if err != nil {
		return nil, err
	}
	if link == nil {
		return nil, entity.E(entity.KindNotFound, "link not found")
	}
	return link, nil
}

// Groups lists the managed groups visible to the actor: all for admins,
// the assigned one for resellers.
func (c *Core) Groups(actor *entity.Identity) ([]entity.Group, error) {
	switch actor.Role {
	case entity.RoleAdmin:
		return c.groups, nil
	case entity.RoleReseller:
		if group, ok := c.groupById(actor.GroupId); ok {
			return []entity.Group{group}, nil
		}
		return []entity.Group{}, nil
	default:
		return nil, entity.E(entity.KindInsufficientScope, "not allowed to list groups")
	}
}

// MembershipEvent forwards one provider webhook event to the reconciler.
func (c *Core) MembershipEvent(event *entity.MembershipEvent) {
	if c.recon == nil {
		c.log.Error("reconciler not connected")
		return
	}
	c.recon.HandleEvent(event)
}

// moderated loads a link for an admin-only transition.
func (c *Core) moderated(actor *entity.Identity, linkId int64) (*entity.InviteLink, error) {
	if !actor.CanModerate() {
		return nil, entity.E(entity.KindInsufficientScope, "admin access required")
	}
	link, err := c.db.GetLink(linkId)
	if err != nil {
		return nil, err
	}
	if link == nil {
		return nil, entity.E(entity.KindNotFound, "link not found")
	}
	return link, nil
}

// transition applies one state-machine trigger as a compare-and-swap on
// the stored status. A concurrent writer surfacing as zero affected rows
// is reported as a conflict, never overwritten.
func (c *Core) transition(link *entity.InviteLink, trigger entity.LinkTrigger) (entity.LinkStatus, error) {
	next, ok := entity.NextStatus(link.Status, trigger)
	if !ok {
		return "", entity.Ef(entity.KindConflict, "cannot %s link in status %s", trigger, link.Status)
	}
	changed, err := c.db.TransitionLink(link.Id, []entity.LinkStatus{link.Status}, next)
	if err != nil {
		return "", err
	}
	if !changed {
		return "", entity.E(entity.KindConflict, "link state changed concurrently")
	}
	return next, nil
}
