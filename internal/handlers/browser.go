package handlers

import (
	"context"
	"net/http"

	"github.com/educlass/portal/internal/session"
)

type ctxKey int

const (
	controllerKey ctxKey = iota
	sidKey
)

// Browser attaches the browser's controller to the request, creating one
// (and restoring a persisted sign-in) the first time a browser is seen.
func Browser(d *Deps) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sid := readCookie(r, sidCookie)
			c, ok := d.Sessions.Get(sid)
			if !ok {
				token := readCookie(r, tokenCookie)
				sid, c = d.Sessions.Create(r.Context(), token)
				setCookie(w, sidCookie, sid, 0, d.CookieSecure)
				if token != "" && !c.LoggedIn() {
					clearCookie(w, tokenCookie)
				}
			}
			ctx := context.WithValue(r.Context(), controllerKey, c)
			ctx = context.WithValue(ctx, sidKey, sid)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func controllerFrom(r *http.Request) *session.Controller {
	c, _ := r.Context().Value(controllerKey).(*session.Controller)
	return c
}

func sidFrom(r *http.Request) string {
	s, _ := r.Context().Value(sidKey).(string)
	return s
}

// goHome ends a POST with a redirect back to the single page.
func goHome(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, "/", http.StatusSeeOther)
}
