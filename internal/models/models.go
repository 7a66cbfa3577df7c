package models

import "time"

// StudentRecord is one entry of the roster. The JSON names are the
// persisted snapshot format.
type StudentRecord struct {
	StudentID        string    `json:"studentId"`
	FullName         string    `json:"fullName"`
	Email            string    `json:"email"`
	Phone            string    `json:"phone"`
	Course           string    `json:"course"`
	Level            string    `json:"level"`
	Gender           string    `json:"gender"`
	DateOfBirth      string    `json:"dateOfBirth"`
	UID              string    `json:"uid"`
	RegistrationDate time.Time `json:"registrationDate"`
}

type Role string

const (
	RoleUnset   Role = ""
	RoleStudent Role = "student"
	RoleAdmin   Role = "admin"
)

// SessionIdentity is the signed-in principal as the application sees it.
// Student is nil for admins and for students whose roster record is missing.
type SessionIdentity struct {
	UID     string
	Email   string
	Role    Role
	TokenID string
	Student *StudentRecord
}

var Courses = []string{
	"Mathematics",
	"Science",
	"English",
	"History",
	"Computer Science",
	"Art & Design",
	"Physical Education",
	"Music",
}

var Levels = []string{"Beginner", "Intermediate", "Advanced"}

var Genders = []string{"Male", "Female", "Other"}

func IsCourse(s string) bool { return contains(Courses, s) }
func IsLevel(s string) bool  { return contains(Levels, s) }
func IsGender(s string) bool { return contains(Genders, s) }

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
