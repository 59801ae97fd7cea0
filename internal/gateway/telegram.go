// Package gateway is the thin synchronous client to Telegram's invite
// link management API. It is treated as an unreliable remote dependency:
// every call carries a bounded timeout and revoke failures degrade to a
// warning outcome instead of an error, since the local ledger, not the
// provider, is authoritative for who is permitted access.
package gateway

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	tgbotapi "github.com/PaulSonOfLars/gotgbot/v2"

	"groupgate/entity"
	"groupgate/lib/sl"
)

const requestTimeout = 10 * time.Second

type Config struct {
	TTL         time.Duration
	MemberLimit int64
	AdminChatId int64
}

// Link is a freshly created provider invite link.
type Link struct {
	URL       string
	ExpiresAt time.Time
}

type Telegram struct {
	api  *tgbotapi.Bot
	conf Config
	log  *slog.Logger
}

func New(botToken string, conf Config, log *slog.Logger) (*Telegram, error) {
	api, err := tgbotapi.NewBot(botToken, nil)
	if err != nil {
		return nil, fmt.Errorf("creating api instance: %v", err)
	}
	if conf.MemberLimit == 0 {
		conf.MemberLimit = 1
	}
	if conf.TTL == 0 {
		conf.TTL = 24 * time.Hour
	}
	return &Telegram{
		api:  api,
		conf: conf,
		log:  log.With(sl.Module("gateway")),
	}, nil
}

// CreateInviteLink requests a single-use invite link for the group,
// labelled with the access code so the provider side stays traceable.
func (g *Telegram) CreateInviteLink(groupId int64, label string) (*Link, error) {
	expiresAt := time.Now().UTC().Add(g.conf.TTL)
	created, err := g.api.CreateChatInviteLink(groupId, &tgbotapi.CreateChatInviteLinkOpts{
		Name:        label,
		MemberLimit: g.conf.MemberLimit,
		ExpireDate:  expiresAt.Unix(),
		RequestOpts: &tgbotapi.RequestOpts{Timeout: requestTimeout},
	})
	if err != nil {
		g.log.Error("create invite link",
			slog.Int64("group_id", groupId),
			sl.Err(err),
		)
		return nil, fmt.Errorf("create invite link: %w", err)
	}
	g.log.Debug("invite link created",
		slog.Int64("group_id", groupId),
		slog.String("label", label),
	)
	return &Link{URL: created.InviteLink, ExpiresAt: expiresAt}, nil
}

// RevokeInviteLink invalidates the link on the provider side. Best
// effort: a provider rejection (already revoked, already expired, link
// unknown) is a warning, a transport failure leaves the remote state
// unknown. Neither blocks the caller's ledger transition.
func (g *Telegram) RevokeInviteLink(groupId int64, url string) entity.RemoteResult {
	if url == "" {
		return entity.RemoteResult{Outcome: entity.RemoteWarning, Detail: "no invite url on record"}
	}
	_, err := g.api.RevokeChatInviteLink(groupId, url, &tgbotapi.RevokeChatInviteLinkOpts{
		RequestOpts: &tgbotapi.RequestOpts{Timeout: requestTimeout},
	})
	if err == nil {
		return entity.RemoteResult{Outcome: entity.RemoteOk}
	}

	var tgErr *tgbotapi.TelegramError
	if errors.As(err, &tgErr) {
		// the provider answered; the link is most likely gone already
		g.log.Warn("revoke rejected by provider",
			slog.Int64("group_id", groupId),
			sl.Err(err),
		)
		return entity.RemoteResult{Outcome: entity.RemoteWarning, Detail: tgErr.Description}
	}

	g.log.Warn("revoke not delivered",
		slog.Int64("group_id", groupId),
		sl.Err(err),
	)
	return entity.RemoteResult{Outcome: entity.RemoteUnknown, Detail: err.Error()}
}

// Notify sends a plain text message to the admin chat. Implements the
// logger soft-notification channel; failures are logged and dropped.
func (g *Telegram) Notify(text string) {
	if g.conf.AdminChatId == 0 {
		return
	}
	_, err := g.api.SendMessage(g.conf.AdminChatId, text, &tgbotapi.SendMessageOpts{
		RequestOpts: &tgbotapi.RequestOpts{Timeout: requestTimeout},
	})
	if err != nil {
		g.log.Debug("admin notification not sent", sl.Err(err))
	}
}
