package response

import (
	"net/http"

	"groupgate/entity"
	"groupgate/lib/clock"

	"github.com/go-chi/render"
)

type Response struct {
	Data          interface{} `json:"data,omitempty"`
	Success       bool        `json:"success" validate:"required"`
	StatusMessage string      `json:"status_message"`
	Timestamp     string      `json:"timestamp"`
}

func Ok(data interface{}) Response {
	return Response{
		Data:          data,
		Success:       true,
		StatusMessage: "Success",
		Timestamp:     clock.Now(),
	}
}

func Error(message string) Response {
	return Response{
		Success:       false,
		StatusMessage: message,
		Timestamp:     clock.Now(),
	}
}

// Fail renders a core error with the transport status matching its kind.
// Untagged errors are reported as a generic server error without leaking
// internal detail.
func Fail(w http.ResponseWriter, r *http.Request, err error) {
	kind := entity.KindOf(err)
	render.Status(r, statusOf(kind))
	if kind == entity.KindInternal {
		render.JSON(w, r, Error("Internal server error"))
		return
	}
	render.JSON(w, r, Error(err.Error()))
}

func statusOf(kind entity.ErrorKind) int {
	switch kind {
	case entity.KindUnauthorized:
		return http.StatusUnauthorized
	case entity.KindBanned, entity.KindInsufficientScope:
		return http.StatusForbidden
	case entity.KindValidation:
		return http.StatusBadRequest
	case entity.KindNotFound:
		return http.StatusNotFound
	case entity.KindConflict, entity.KindInsufficientCredit:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
