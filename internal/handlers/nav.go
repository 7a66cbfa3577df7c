package handlers

import (
	"errors"
	"net/http"

	"github.com/educlass/portal/internal/session"
)

var navEvents = map[string]session.Event{
	"register":     session.ChooseRegister,
	"studentLogin": session.ChooseStudentLogin,
	"adminLogin":   session.ChooseAdminLogin,
	"home":         session.BackHome,
}

// POST /nav
func Nav(d *Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		c := controllerFrom(r)
		ev, ok := navEvents[r.FormValue("action")]
		if !ok {
			http.Error(w, "unknown action", http.StatusBadRequest)
			return
		}

		leavingSuccess := ev == session.BackHome && c.Page() == session.PageSuccess
		token := c.Token()

		if err := c.Fire(ev); err != nil {
			if errors.Is(err, session.ErrInvalidTransition) {
				d.Log.WithField("sid", sidFrom(r)).Debug(err.Error())
			}
			goHome(w, r)
			return
		}

		if leavingSuccess && token != "" {
			if err := d.Auth.SignOut(r.Context(), token); err != nil {
				d.Log.WithError(err).Warn("sign-out after registration failed")
			}
			clearCookie(w, tokenCookie)
		}
		goHome(w, r)
	}
}
