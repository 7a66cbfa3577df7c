package handlers

import (
	"net/http"

	"github.com/educlass/portal/internal/models"
	"github.com/educlass/portal/internal/session"
)

// RequireAdmin only lets through browsers sitting on the admin dashboard
// with an admin identity.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c := controllerFrom(r)
		id := c.Identity()
		if c.Page() != session.PageAdminDashboard || id == nil || id.Role != models.RoleAdmin {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}
