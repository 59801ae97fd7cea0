package credit

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"groupgate/entity"
	"groupgate/lib/api/cont"
	"groupgate/lib/api/response"
	"groupgate/lib/sl"
)

type Core interface {
	AddCredits(actor *entity.Identity, resellerCode string, amount int64) (*entity.Reseller, error)
}

// Add tops up a reseller balance. Admin only; authorization is decided
// in the core, not here.
func Add(log *slog.Logger, handler Core) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := log.With(
			sl.Module("http.handlers.credit"),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		var req entity.CreditRequest
		if err := render.Bind(r, &req); err != nil {
			logger.Error("bind request", sl.Err(err))
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.Error(fmt.Sprintf("Invalid request: %v", err)))
			return
		}
		logger = logger.With(
			slog.String("reseller", req.ResellerCode),
			slog.Int64("amount", req.Amount),
		)

		actor := cont.GetIdentity(r.Context())
		reseller, err := handler.AddCredits(actor, req.ResellerCode, req.Amount)
		if err != nil {
			logger.Error("add credits", sl.Err(err))
			response.Fail(w, r, err)
			return
		}
		logger.Debug("credits added", slog.Int64("balance", reseller.Credits))

		render.JSON(w, r, response.Ok(reseller))
	}
}
