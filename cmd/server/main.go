package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/educlass/portal/internal/config"
	"github.com/educlass/portal/internal/db"
	"github.com/educlass/portal/internal/events"
	"github.com/educlass/portal/internal/handlers"
	"github.com/educlass/portal/internal/identity"
	"github.com/educlass/portal/internal/kv"
	"github.com/educlass/portal/internal/metrics"
	"github.com/educlass/portal/internal/models"
	"github.com/educlass/portal/internal/notify"
	"github.com/educlass/portal/internal/roster"
	"github.com/educlass/portal/internal/services"
	"github.com/educlass/portal/internal/session"
	"github.com/educlass/portal/internal/web"
	"github.com/educlass/portal/internal/ws"
)

func main() {
	cfg := config.Load()
	log := newLogger(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	conn, err := db.Open(cfg.DBDriver, cfg.DBDSN, log)
	if err != nil {
		log.WithError(err).Fatal("db init")
	}
	var closers []func() error
	if sqlDB, err := conn.DB(); err == nil {
		closers = append(closers, sqlDB.Close)
	}

	backing, closeKV := rosterBackend(ctx, cfg, conn, log)
	if closeKV != nil {
		closers = append(closers, closeKV)
	}
	rosterStore := roster.NewStore(backing, log.WithField("component", "roster"))
	log.WithField("students", len(rosterStore.Load(ctx))).Info("roster loaded")

	bus := events.NewBus()
	gateway := identity.New(conn, bus, log.WithField("component", "identity"), identity.Options{
		Secret: cfg.JWTSecret,
		Issuer: cfg.JWTIssuer,
		TTL:    cfg.SessionTTL,
	})
	if err := gateway.SeedAdmin(ctx, cfg.AdminEmail, cfg.AdminPassword); err != nil {
		log.WithError(err).Fatal("seed admin")
	}
	gateway.StartSessionSweeper(ctx, cfg.SessionSweepInterval)

	hub := ws.NewHub()
	go hub.Run(ctx)

	sessions := session.NewManager(gateway, rosterStore, log.WithField("component", "session"))
	sessions.OnIdentityChange = func(sid string, id *models.SessionIdentity) {
		msg := ws.Message{Type: "identity", SignedIn: id != nil}
		if id != nil {
			msg.Email = id.Email
		}
		hub.Notify(sid, msg)
	}
	unsubscribe := gateway.OnIdentityChange(sessions.HandleIdentityChange)
	defer unsubscribe()
	sessions.StartSweeper(ctx, cfg.SessionSweepInterval, cfg.SessionTTL)

	metrics.RegisterGauges(
		func() float64 { return float64(sessions.Len()) },
		func() float64 { return float64(rosterStore.Len()) },
	)

	deps := &handlers.Deps{
		Sessions: sessions,
		Registrar: &services.Registrar{
			Gateway:         gateway,
			Roster:          rosterStore,
			Mailer:          newMailer(cfg, log),
			Log:             log.WithField("component", "registration"),
			GatewayTimeout:  cfg.GatewayTimeout,
			DispatchTimeout: cfg.DispatchTimeout,
		},
		Auth: &services.Authenticator{
			Gateway:        gateway,
			Roster:         rosterStore,
			AdminEmails:    cfg.AdminEmails,
			Log:            log.WithField("component", "login"),
			GatewayTimeout: cfg.GatewayTimeout,
		},
		Roster:       rosterStore,
		Hub:          hub,
		Loc:          cfg.Location(),
		CookieSecure: cfg.CookieSecure,
		TokenTTL:     cfg.SessionTTL,
		Log:          log,
	}

	httpServer := &http.Server{
		Addr:              cfg.Addr,
		Handler:           web.Router(deps),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Infof("EduClass portal listening on %s", cfg.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("http server error")
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var result *multierror.Error
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		result = multierror.Append(result, err)
	}
	for _, c := range closers {
		if err := c(); err != nil {
			result = multierror.Append(result, err)
		}
	}
	if err := result.ErrorOrNil(); err != nil {
		log.WithError(err).Error("shutdown")
	}
}

func newLogger(level string) *logrus.Logger {
	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if lvl, err := logrus.ParseLevel(level); err == nil {
		log.SetLevel(lvl)
	}
	return log
}

func rosterBackend(ctx context.Context, cfg config.Config, conn *gorm.DB, log logrus.FieldLogger) (kv.Store, func() error) {
	switch cfg.RosterBackend {
	case "redis":
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.WithError(err).Warn("redis unreachable; roster will start empty")
		}
		return kv.NewRedis(rdb, "educlass:"), rdb.Close
	case "memory":
		return kv.NewMemory(), nil
	default:
		return kv.NewSQL(conn), nil
	}
}

func newMailer(cfg config.Config, log logrus.FieldLogger) notify.Dispatcher {
	switch cfg.MailDriver {
	case "emailjs":
		return notify.NewEmailJS(cfg.EmailJSURL, cfg.EmailJSServiceID, cfg.EmailJSTemplateID, cfg.EmailJSPublicKey)
	case "smtp":
		return notify.NewSMTP(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPassword, cfg.SMTPFrom)
	default:
		return notify.LogDispatcher{Log: log.WithField("component", "mail")}
	}
}
