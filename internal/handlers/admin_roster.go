package handlers

import (
	"net/http"
	"strings"

	"github.com/educlass/portal/internal/metrics"
	"github.com/educlass/portal/internal/roster"
	"github.com/educlass/portal/internal/services"
	"github.com/educlass/portal/internal/session"
)

// GET /admin/students.csv?q=&course=
func AdminRosterCSV(d *Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := strings.TrimSpace(r.URL.Query().Get("q"))
		course := r.URL.Query().Get("course")
		rows := d.Roster.Query(q, course)

		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		w.Header().Set("Content-Disposition", "attachment; filename="+roster.ExportFilename)
		if err := roster.WriteCSV(w, rows, d.Loc); err != nil {
			d.Log.WithError(err).Error("csv export failed")
			return
		}
		metrics.CSVExports.Inc()
		controllerFrom(r).Notify(services.MsgCSVExported, session.SeveritySuccess)
	}
}
