package link

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"groupgate/entity"
	"groupgate/lib/api/cont"
	"groupgate/lib/api/response"
	"groupgate/lib/sl"
)

type Core interface {
	Issue(actor *entity.Identity, req *entity.IssueRequest) (*entity.InviteLink, error)
	Revoke(actor *entity.Identity, linkId int64) (*entity.InviteLink, error)
	Ban(actor *entity.Identity, linkId int64) (*entity.InviteLink, error)
	Unban(actor *entity.Identity, linkId int64) (*entity.InviteLink, error)
	Regenerate(actor *entity.Identity, linkId int64) (*entity.InviteLink, error)
	Delete(actor *entity.Identity, linkId int64, permanent bool) error
	LinkHistory(actor *entity.Identity, linkId int64) ([]*entity.AuditEntry, error)
	OwnLink(actor *entity.Identity) (*entity.InviteLink, error)
	Groups(actor *entity.Identity) ([]entity.Group, error)
}

func Issue(log *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := requestLogger(log, r)

		var req entity.IssueRequest
		if err := render.Bind(r, &req); err != nil {
			logger.Error("bind request", sl.Err(err))
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.Error(fmt.Sprintf("Invalid request: %v", err)))
			return
		}
		logger = logger.With(slog.Int64("group_id", req.GroupId))

		actor := cont.GetIdentity(r.Context())
		result, err := handler.Issue(actor, &req)
		if err != nil {
			logger.Error("issue link", sl.Err(err))
			response.Fail(w, r, err)
			return
		}
		logger.Debug("link issued", slog.Int64("link_id", result.Id))

		render.JSON(w, r, response.Ok(result))
	}
}

// transition wraps the single-link admin actions sharing one shape:
// path id in, updated link out.
func transition(log *slog.Logger, name string, apply func(actor *entity.Identity, linkId int64) (*entity.InviteLink, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := requestLogger(log, r)

		linkId, err := pathId(r)
		if err != nil {
			logger.Error("parse link id", sl.Err(err))
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.Error("Invalid link id"))
			return
		}
		logger = logger.With(slog.Int64("link_id", linkId))

		actor := cont.GetIdentity(r.Context())
		result, err := apply(actor, linkId)
		if err != nil {
			logger.Error(name, sl.Err(err))
			response.Fail(w, r, err)
			return
		}
		logger.Debug(name, slog.String("status", string(result.Status)))

		render.JSON(w, r, response.Ok(result))
	}
}

func Revoke(log *slog.Logger, handler Core) http.HandlerFunc {
	return transition(log, "revoke link", handler.Revoke)
}

func Ban(log *slog.Logger, handler Core) http.HandlerFunc {
	return transition(log, "ban link", handler.Ban)
}

func Unban(log *slog.Logger, handler Core) http.HandlerFunc {
	return transition(log, "unban link", handler.Unban)
}

func Regenerate(log *slog.Logger, handler Core) http.HandlerFunc {
	return transition(log, "regenerate link", handler.Regenerate)
}

func Delete(log *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := requestLogger(log, r)

		linkId, err := pathId(r)
		if err != nil {
			logger.Error("parse link id", sl.Err(err))
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.Error("Invalid link id"))
			return
		}

		var req entity.DeleteRequest
		if r.ContentLength > 0 {
			if err = render.Bind(r, &req); err != nil {
				logger.Error("bind request", sl.Err(err))
				render.Status(r, http.StatusBadRequest)
				render.JSON(w, r, response.Error(fmt.Sprintf("Invalid request: %v", err)))
				return
			}
		}
		logger = logger.With(
			slog.Int64("link_id", linkId),
			slog.Bool("permanent", req.Permanent),
		)

		actor := cont.GetIdentity(r.Context())
		if err = handler.Delete(actor, linkId, req.Permanent); err != nil {
			logger.Error("delete link", sl.Err(err))
			response.Fail(w, r, err)
			return
		}
		logger.Debug("link deleted")

		render.JSON(w, r, response.Ok(nil))
	}
}

// History returns the audit trail of one link.
func History(log *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := requestLogger(log, r)

		linkId, err := pathId(r)
		if err != nil {
			logger.Error("parse link id", sl.Err(err))
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.Error("Invalid link id"))
			return
		}

		actor := cont.GetIdentity(r.Context())
		result, err := handler.LinkHistory(actor, linkId)
		if err != nil {
			logger.Error("link history", sl.Err(err))
			response.Fail(w, r, err)
			return
		}

		render.JSON(w, r, response.Ok(result))
	}
}

// Own returns the link bound to the calling end-user's access code.
func Own(log *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := requestLogger(log, r)

		actor := cont.GetIdentity(r.Context())
		result, err := handler.OwnLink(actor)
		if err != nil {
			logger.Error("own link", sl.Err(err))
			response.Fail(w, r, err)
			return
		}

		render.JSON(w, r, response.Ok(result))
	}
}

func Groups(log *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := requestLogger(log, r)

		actor := cont.GetIdentity(r.Context())
		result, err := handler.Groups(actor)
		if err != nil {
			logger.Error("list groups", sl.Err(err))
			response.Fail(w, r, err)
			return
		}

		render.JSON(w, r, response.Ok(result))
	}
}

func requestLogger(log *slog.Logger, r *http.Request) *slog.Logger {
	return log.With(
		sl.Module("http.handlers.link"),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)
}

func pathId(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}
