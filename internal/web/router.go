package web

import (
	"embed"
	"html/template"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/educlass/portal/internal/handlers"
)

//go:embed templates
var templateFS embed.FS

func Router(d *handlers.Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	tmpl := mustParseTemplates(d.Loc)

	r.Get("/healthz", handlers.Health)
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(br chi.Router) {
		br.Use(handlers.Browser(d))

		br.Get("/", handlers.Home(tmpl, d))
		br.Post("/nav", handlers.Nav(d))
		br.Post("/register", handlers.RegisterSubmit(d))
		br.Post("/login", handlers.LoginSubmit(d))
		br.Post("/logout", handlers.Logout(d))

		// Student id card
		br.Get("/qr/{studentId}.png", handlers.QR(d))

		// Identity-change push
		br.Get("/ws", handlers.Socket(d))

		br.Route("/admin", func(ar chi.Router) {
			ar.Use(handlers.RequireAdmin)
			ar.Get("/students.csv", handlers.AdminRosterCSV(d))
		})
	})

	return r
}

func mustParseTemplates(loc *time.Location) *template.Template {
	if loc == nil {
		loc = time.UTC
	}

	funcs := template.FuncMap{
		"year":    func() string { return time.Now().In(loc).Format("2006") },
		"fmtDate": func(t time.Time) string { return t.In(loc).Format("1/2/2006") },
		"fmtLong": func(t time.Time) string { return t.In(loc).Format("02 January 2006") },
		"orNA": func(s string) string {
			if s == "" {
				return "N/A"
			}
			return s
		},
		"selected": func(a, b string) bool { return a == b },
	}

	p := template.New("").Funcs(funcs)
	p = template.Must(p.ParseFS(templateFS, "templates/layouts/*.tmpl"))
	p = template.Must(p.ParseFS(templateFS, "templates/pages/*.tmpl"))
	return p
}
