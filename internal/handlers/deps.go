package handlers

import (
	"time"

	"github.com/sirupsen/logrus"

	"github.com/educlass/portal/internal/roster"
	"github.com/educlass/portal/internal/services"
	"github.com/educlass/portal/internal/session"
	"github.com/educlass/portal/internal/ws"
)

// Deps is what the handlers need from the rest of the app.
type Deps struct {
	Sessions     *session.Manager
	Registrar    *services.Registrar
	Auth         *services.Authenticator
	Roster       *roster.Store
	Hub          *ws.Hub
	Loc          *time.Location
	CookieSecure bool
	TokenTTL     time.Duration
	Log          logrus.FieldLogger
}
