package handlers

import (
	"html/template"
	"net/http"
	"strings"

	"github.com/educlass/portal/internal/models"
	"github.com/educlass/portal/internal/session"
)

type pageVM struct {
	Title    string
	Page     session.Page
	Role     models.Role
	LoggedIn bool
	Identity *models.SessionIdentity
	Flash    *Flash

	FormErrors map[string]string
	FormValues map[string]string
	LoginError string

	Courses []string
	Levels  []string
	Genders []string

	Admin *adminVM
}

type adminVM struct {
	Q        string
	Course   string
	Students []models.StudentRecord
	Total    int
}

var pageTitles = map[session.Page]string{
	session.PageHome:             "EduClass Portal",
	session.PageRegister:         "Student Registration",
	session.PageSuccess:          "Registration Complete",
	session.PageStudentLogin:     "Student Login",
	session.PageStudentDashboard: "Student Dashboard",
	session.PageAdminLogin:       "Admin Login",
	session.PageAdminDashboard:   "Admin Dashboard",
}

// Home renders whatever page the browser's controller is on.
func Home(t *template.Template, d *Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c := controllerFrom(r)
		v := c.Snapshot()

		vm := pageVM{
			Title:      pageTitles[v.Page],
			Page:       v.Page,
			Role:       v.Role,
			LoggedIn:   v.LoggedIn,
			Identity:   v.Identity,
			Flash:      MakeFlash(v.Notification),
			FormErrors: v.FormErrors,
			FormValues: v.FormValues,
			LoginError: v.LoginError,
			Courses:    models.Courses,
			Levels:     models.Levels,
			Genders:    models.Genders,
		}
		if v.Page == session.PageAdminDashboard {
			q := strings.TrimSpace(r.URL.Query().Get("q"))
			course := r.URL.Query().Get("course")
			vm.Admin = &adminVM{
				Q:        q,
				Course:   course,
				Students: d.Roster.Query(q, course),
				Total:    d.Roster.Len(),
			}
		}

		if err := t.ExecuteTemplate(w, string(v.Page)+".tmpl", vm); err != nil {
			d.Log.WithError(err).WithField("page", v.Page).Error("render failed")
			http.Error(w, "render error", http.StatusInternalServerError)
			return
		}
	}
}

func Health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok"))
}
