package authenticate

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"groupgate/lib/api/cont"
	"groupgate/lib/api/response"
	"groupgate/lib/sl"

	"groupgate/entity"
)

// Resolver maps a bearer access code to an identity.
type Resolver interface {
	Resolve(code string) (*entity.Identity, error)
}

func New(log *slog.Logger, resolver Resolver) func(next http.Handler) http.Handler {
	mod := sl.Module("middleware.authenticate")
	log.With(mod).Info("authenticate middleware initialized")

	return func(next http.Handler) http.Handler {

		fn := func(w http.ResponseWriter, r *http.Request) {
			id := middleware.GetReqID(r.Context())
			remote := r.RemoteAddr
			// if the request is coming from a proxy, use the X-Forwarded-For header
			xRemote := r.Header.Get("X-Forwarded-For")
			if xRemote != "" {
				remote = xRemote
			}
			logger := log.With(
				mod,
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.String("remote_addr", remote),
				slog.String("request_id", id),
			)
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			t1 := time.Now()
			defer func() {
				logger.With(
					slog.Int("status", ww.Status()),
					slog.Int("size", ww.BytesWritten()),
					slog.Float64("duration", time.Since(t1).Seconds()),
				).Info("incoming request")
			}()

			code := ""
			header := r.Header.Get("Authorization")
			if len(header) == 0 {
				logger = logger.With(sl.Err(fmt.Errorf("authorization header not found")))
				authFailed(ww, r, "Authorization header not found")
				return
			}
			if strings.Contains(header, "Bearer") {
				if parts := strings.Split(header, " "); len(parts) > 1 {
					code = parts[1]
				}
			}
			if len(code) == 0 {
				logger = logger.With(sl.Err(fmt.Errorf("access code not found")))
				authFailed(ww, r, "Access code not found")
				return
			}
			logger = logger.With(sl.Secret("access_code", code))

			if resolver == nil {
				authFailed(ww, r, "Unauthorized: authentication not enabled")
				return
			}

			identity, err := resolver.Resolve(code)
			if err != nil {
				logger = logger.With(sl.Err(err))
				response.Fail(ww, r, err)
				return
			}
			logger = logger.With(
				slog.String("role", string(identity.Role)),
			)
			ctx := cont.PutIdentity(r.Context(), identity)

			ww.Header().Set("X-Request-ID", id)
			next.ServeHTTP(ww, r.WithContext(ctx))
		}

		return http.HandlerFunc(fn)
	}
}

func authFailed(w http.ResponseWriter, r *http.Request, message string) {
	render.Status(r, http.StatusUnauthorized)
	render.JSON(w, r, response.Error(message))
}
