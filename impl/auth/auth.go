// Package auth resolves opaque access codes to identities. A code that
// collides across namespaces resolves to the most privileged match:
// admin, then reseller, then end-user link. Provisioning avoids
// collisions, but precedence is enforced here rather than assumed from
// the storage layer.
package auth

import (
	"fmt"
	"log/slog"
	"strings"

	"groupgate/entity"
	"groupgate/lib/sl"
)

type Database interface {
	GetAdmin(code string) (*entity.Admin, error)
	TouchAdmin(code string) error
	GetReseller(code string) (*entity.Reseller, error)
	GetLinkByAccessCode(code string) (*entity.InviteLink, error)
}

type Auth struct {
	db  Database
	log *slog.Logger
}

func New(db Database, log *slog.Logger) *Auth {
	return &Auth{
		db:  db,
		log: log.With(sl.Module("auth")),
	}
}

// Normalize maps a raw code to its canonical form: trimmed, uppercase.
func Normalize(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Resolve maps an access code to an identity, or an unauthorized/banned
// error. No side effects beyond refreshing the admin last-used stamp.
func (a *Auth) Resolve(code string) (*entity.Identity, error) {
	if a.db == nil {
		return nil, fmt.Errorf("database not connected")
	}
	code = Normalize(code)
	if code == "" {
		return nil, entity.E(entity.KindValidation, "empty access code")
	}

	admin, err := a.db.GetAdmin(code)
	if err != nil {
		return nil, err
	}
	if admin != nil && admin.Active {
		if err = a.db.TouchAdmin(code); err != nil {
			a.log.Warn("refresh admin last used", sl.Err(err))
		}
		return &entity.Identity{
			Role: entity.RoleAdmin,
			Code: admin.Code,
			Name: admin.Name,
		}, nil
	}

	reseller, err := a.db.GetReseller(code)
	if err != nil {
		return nil, err
	}
	if reseller != nil {
		if !reseller.Active {
			// deliberately distinct from "not found"
			return nil, entity.E(entity.KindBanned, "account inactive")
		}
		return &entity.Identity{
			Role:    entity.RoleReseller,
			Code:    reseller.Code,
			Name:    reseller.Name,
			GroupId: reseller.GroupId,
			Credits: reseller.Credits,
		}, nil
	}

	link, err := a.db.GetLinkByAccessCode(code)
	if err != nil {
		return nil, err
	}
	if link != nil {
		if link.IsBanned() {
			return nil, entity.E(entity.KindBanned, "access code is banned")
		}
		return &entity.Identity{
			Role:    entity.RoleEndUser,
			Code:    link.AccessCode,
			GroupId: link.GroupId,
			LinkId:  link.Id,
		}, nil
	}

	return nil, entity.E(entity.KindUnauthorized, "access code not recognized")
}
