package api

import (
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"groupgate/internal/config"
	"groupgate/internal/http-server/handlers/credit"
	"groupgate/internal/http-server/handlers/errors"
	"groupgate/internal/http-server/handlers/link"
	"groupgate/internal/http-server/handlers/telegram"
	"groupgate/internal/http-server/middleware/authenticate"
	"groupgate/internal/http-server/middleware/timeout"
	"groupgate/lib/sl"
)

type Server struct {
	conf       *config.Config
	httpServer *http.Server
	log        *slog.Logger
}

type Handler interface {
	link.Core
	credit.Core
	telegram.Core
}

func New(conf *config.Config, log *slog.Logger, resolver authenticate.Resolver, handler Handler) error {

	server := Server{
		conf: conf,
		log:  log.With(sl.Module("api.server")),
	}

	router := chi.NewRouter()
	router.Use(timeout.Timeout(5))
	router.Use(middleware.RequestID)
	router.Use(middleware.Recoverer)
	router.Use(render.SetContentType(render.ContentTypeJSON))

	router.NotFound(errors.NotFound(log))
	router.MethodNotAllowed(errors.NotAllowed(log))

	router.Route("/v1", func(rootApi chi.Router) {
		rootApi.Use(authenticate.New(log, resolver))
		rootApi.Get("/groups", link.Groups(log, handler))
		rootApi.Get("/link", link.Own(log, handler))
		rootApi.Route("/links", func(links chi.Router) {
			links.Post("/", link.Issue(log, handler))
			links.Post("/{id}/revoke", link.Revoke(log, handler))
			links.Post("/{id}/ban", link.Ban(log, handler))
			links.Post("/{id}/unban", link.Unban(log, handler))
			links.Post("/{id}/regenerate", link.Regenerate(log, handler))
			links.Delete("/{id}", link.Delete(log, handler))
			links.Get("/{id}/audit", link.History(log, handler))
		})
		rootApi.Post("/credits", credit.Add(log, handler))
	})
	router.Route("/webhook", func(rootWH chi.Router) {
		rootWH.Post("/telegram", telegram.Event(log, conf.Telegram.WebhookSecret, handler))
	})

	httpLog := slog.NewLogLogger(log.Handler(), slog.LevelError)
	server.httpServer = &http.Server{
		Handler:      router,
		ErrorLog:     httpLog,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverAddress := fmt.Sprintf("%s:%s", conf.Listen.BindIp, conf.Listen.Port)
	listener, err := net.Listen("tcp", serverAddress)
	if err != nil {
		return err
	}

	server.log.Info("starting api server", slog.String("address", serverAddress))

	return server.httpServer.Serve(listener)
}
