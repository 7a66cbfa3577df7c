package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	qrcode "github.com/skip2/go-qrcode"

	"github.com/educlass/portal/internal/models"
)

// GET /qr/{studentId}.png renders the signed-in student's id card code.
// Admins may render any student's code.
func QR(d *Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		studentID := chi.URLParam(r, "studentId")
		if studentID == "" {
			http.NotFound(w, r)
			return
		}
		id := controllerFrom(r).Identity()
		if id == nil {
			http.NotFound(w, r)
			return
		}
		own := id.Student != nil && id.Student.StudentID == studentID
		if !own && id.Role != models.RoleAdmin {
			http.NotFound(w, r)
			return
		}
		if _, ok := d.Roster.FindByStudentID(studentID); !ok {
			http.NotFound(w, r)
			return
		}

		png, err := qrcode.Encode(studentID, qrcode.Medium, 256)
		if err != nil {
			http.Error(w, "failed to generate qr", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(png)
	}
}
