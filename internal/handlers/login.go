package handlers

import (
	"errors"
	"net/http"

	"github.com/educlass/portal/internal/metrics"
	"github.com/educlass/portal/internal/models"
	"github.com/educlass/portal/internal/services"
	"github.com/educlass/portal/internal/session"
)

var loginRoles = map[session.Page]models.Role{
	session.PageStudentLogin: models.RoleStudent,
	session.PageAdminLogin:   models.RoleAdmin,
}

// POST /login
func LoginSubmit(d *Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c := controllerFrom(r)
		_ = r.ParseForm()

		role, ok := loginRoles[c.Page()]
		if !ok || (r.FormValue("role") != "" && r.FormValue("role") != string(role)) {
			goHome(w, r)
			return
		}
		if err := c.BeginSubmit(); err != nil {
			goHome(w, r)
			return
		}
		defer c.EndSubmit()

		identifier := r.FormValue("identifier")
		res, err := d.Auth.Login(r.Context(), identifier, r.FormValue("password"), role)
		if err != nil {
			var le *services.LoginError
			if !errors.As(err, &le) {
				le = &services.LoginError{Kind: services.Other, Message: services.MsgLoginFailed, Toast: services.MsgLoginToast}
			}
			metrics.Logins.WithLabelValues(string(role), le.Kind.String()).Inc()
			c.SetFormErrors(nil, map[string]string{"identifier": identifier})
			c.SetLoginError(le.Message)
			c.Notify(le.Toast, session.SeverityError)
			_ = c.Fire(session.LoginFailed)
			goHome(w, r)
			return
		}

		metrics.Logins.WithLabelValues(string(role), "ok").Inc()
		if old := d.Sessions.SignIn(sidFrom(r), c, res.Identity, res.Session.Token); old != "" {
			revokeReplaced(r, d, old)
		}
		setCookie(w, tokenCookie, res.Session.Token, d.TokenTTL, d.CookieSecure)
		_ = c.Fire(session.LoginSucceeded)
		c.Notify(res.Message, session.SeveritySuccess)
		goHome(w, r)
	}
}

// POST /logout
func Logout(d *Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c := controllerFrom(r)
		if !session.Allowed(c.Page(), session.SignOut) {
			goHome(w, r)
			return
		}
		if err := d.Auth.SignOut(r.Context(), c.Token()); err != nil {
			d.Log.WithError(err).Warn("sign-out failed")
			c.Notify(services.MsgLogoutFailed, session.SeverityError)
			goHome(w, r)
			return
		}
		clearCookie(w, tokenCookie)
		_ = c.Fire(session.SignOut)
		c.Notify(services.MsgLoggedOut, session.SeveritySuccess)
		goHome(w, r)
	}
}

// revokeReplaced ends the gateway session a new sign-in displaced, so its
// later expiry cannot sign the browser out.
func revokeReplaced(r *http.Request, d *Deps, token string) {
	if err := d.Auth.SignOut(r.Context(), token); err != nil {
		d.Log.WithError(err).Warn("revoking replaced session failed")
	}
}
