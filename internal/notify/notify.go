// Package notify sends the registration confirmation message.
package notify

import (
	"context"

	"github.com/sirupsen/logrus"
)

// Confirmation is the field map handed to the mail template.
type Confirmation struct {
	Email     string
	Name      string
	StudentID string
	Course    string
	Level     string
}

type Dispatcher interface {
	Send(ctx context.Context, c Confirmation) error
}

// DispatchError wraps any failure to hand a confirmation to the provider.
type DispatchError struct {
	Provider string
	Err      error
}

func (e *DispatchError) Error() string { return e.Provider + " dispatch: " + e.Err.Error() }
func (e *DispatchError) Unwrap() error { return e.Err }

// LogDispatcher only logs. It is the default when no mail provider is
// configured.
type LogDispatcher struct {
	Log logrus.FieldLogger
}

func (d LogDispatcher) Send(_ context.Context, c Confirmation) error {
	d.Log.WithFields(logrus.Fields{
		"to":         c.Email,
		"student_id": c.StudentID,
		"course":     c.Course,
		"level":      c.Level,
	}).Info("confirmation email (log only)")
	return nil
}
