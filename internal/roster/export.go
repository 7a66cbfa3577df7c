package roster

import (
	"encoding/csv"
	"io"
	"time"

	"github.com/educlass/portal/internal/models"
)

const ExportFilename = "students.csv"

var exportHeader = []string{
	"Student ID", "Name", "Email", "Phone", "Course", "Level", "Gender", "Date of Birth", "Registration Date",
}

// WriteCSV writes the header and one row per record. Registration dates are
// rendered as M/D/YYYY in loc.
func WriteCSV(w io.Writer, records []models.StudentRecord, loc *time.Location) error {
	if loc == nil {
		loc = time.UTC
	}
	cw := csv.NewWriter(w)
	if err := cw.Write(exportHeader); err != nil {
		return err
	}
	for _, r := range records {
		if err := cw.Write([]string{
			r.StudentID,
			r.FullName,
			r.Email,
			r.Phone,
			r.Course,
			r.Level,
			r.Gender,
			r.DateOfBirth,
			r.RegistrationDate.In(loc).Format("1/2/2006"),
		}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
