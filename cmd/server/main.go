package main

import (
	"flag"
	"log"
	"log/slog"
	"path/filepath"
	"time"

	"groupgate/impl/auth"
	"groupgate/impl/core"
	"groupgate/impl/reconcile"
	"groupgate/internal/audit"
	"groupgate/internal/config"
	"groupgate/internal/database"
	"groupgate/internal/gateway"
	"groupgate/internal/http-server/api"
	"groupgate/lib/logger"
	"groupgate/lib/sl"
)

const logFileName = "groupgate.log"

func main() {
	configPath := flag.String("conf", "config.yml", "path to config file")
	logPath := flag.String("log", "/var/log/", "path to log file directory")
	flag.Parse()

	conf := config.MustLoad(*configPath)
	lg := logger.SetupLogger(conf.Env, filepath.Join(*logPath, logFileName))
	lg.Info("starting groupgate", slog.String("config", *configPath), slog.String("env", conf.Env))

	db, err := database.NewSQLClient(conf)
	if err != nil {
		log.Fatal("connecting to database: ", err)
	}
	defer db.Close()
	if err = db.EnsureAdmin(auth.Normalize(conf.AdminCode), conf.AdminName); err != nil {
		log.Fatal("seeding admin: ", err)
	}

	gw, err := gateway.New(conf.Telegram.BotToken, gateway.Config{
		TTL:         time.Duration(conf.Invite.TTLHours) * time.Hour,
		MemberLimit: conf.Invite.MemberLimit,
		AdminChatId: conf.Telegram.AdminChatId,
	}, lg)
	if err != nil {
		log.Fatal("connecting to telegram: ", err)
	}

	if conf.Telegram.AdminChatId != 0 {
		lg = slog.New(logger.NewTelegramHandler(lg.Handler(), gw, slog.LevelWarn))
	}

	var auditStore audit.Store
	if mongo := database.NewMongoClient(conf); mongo != nil {
		auditStore = mongo
	} else {
		lg.Warn("mongo disabled, audit entries will be dropped")
	}
	auditLog := audit.New(auditStore, lg)

	recentWindow := time.Duration(conf.Reconciler.RecentWindowMinutes) * time.Minute
	reconciler := reconcile.New(db, gw, auditLog, recentWindow, lg)

	resolver := auth.New(db, lg)
	handler := core.New(db, gw, auditLog, reconciler, conf.Groups, lg)

	go expireLoop(db, lg)

	if err = api.New(conf, lg, resolver, handler); err != nil {
		lg.Error("api server stopped", sl.Err(err))
	}
}

// expireLoop sweeps active links past their expiry into the expired
// status so stale rows do not linger as joinable.
func expireLoop(db *database.MySql, lg *slog.Logger) {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()
	for range ticker.C {
		expired, err := db.ExpireOverdueLinks()
		if err != nil {
			lg.Warn("expiring links", sl.Err(err))
			continue
		}
		if expired > 0 {
			lg.Info("links expired", slog.Int64("count", expired))
		}
	}
}
