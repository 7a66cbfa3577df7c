package handlers

import (
	"errors"
	"net/http"

	"github.com/educlass/portal/internal/metrics"
	"github.com/educlass/portal/internal/roster"
	"github.com/educlass/portal/internal/services"
	"github.com/educlass/portal/internal/session"
)

// POST /register
func RegisterSubmit(d *Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c := controllerFrom(r)
		if !session.Allowed(c.Page(), session.RegistrationSucceeded) {
			goHome(w, r)
			return
		}
		if err := c.BeginSubmit(); err != nil {
			goHome(w, r)
			return
		}
		defer c.EndSubmit()

		_ = r.ParseForm()
		in := services.RegistrationInput{
			FullName:        r.FormValue("fullName"),
			Email:           r.FormValue("email"),
			Phone:           r.FormValue("phone"),
			Course:          r.FormValue("course"),
			Level:           r.FormValue("level"),
			Gender:          r.FormValue("gender"),
			DateOfBirth:     r.FormValue("dateOfBirth"),
			Password:        r.FormValue("password"),
			ConfirmPassword: r.FormValue("confirmPassword"),
		}

		res, err := d.Registrar.Register(r.Context(), in)
		if err != nil {
			registrationFailed(d, c, in, err)
			goHome(w, r)
			return
		}

		metrics.Registrations.WithLabelValues("ok").Inc()
		if !res.EmailSent {
			metrics.ConfirmationsFailed.Inc()
		}
		if old := d.Sessions.SignIn(sidFrom(r), c, res.Identity(), res.Session.Token); old != "" {
			revokeReplaced(r, d, old)
		}
		setCookie(w, tokenCookie, res.Session.Token, d.TokenTTL, d.CookieSecure)
		_ = c.Fire(session.RegistrationSucceeded)
		c.Notify(res.Message, session.SeveritySuccess)
		goHome(w, r)
	}
}

func registrationFailed(d *Deps, c *session.Controller, in services.RegistrationInput, err error) {
	values := map[string]string{
		"fullName":    in.FullName,
		"email":       in.Email,
		"phone":       in.Phone,
		"course":      in.Course,
		"level":       in.Level,
		"gender":      in.Gender,
		"dateOfBirth": in.DateOfBirth,
	}

	var (
		ve *services.ValidationError
		ae *services.AccountCreationError
		se *roster.StorageError
	)
	switch {
	case errors.As(err, &ve):
		metrics.Registrations.WithLabelValues("invalid").Inc()
		c.SetFormErrors(ve.Fields, values)
		c.Notify(services.MsgFixForm, session.SeverityError)
	case errors.As(err, &ae):
		metrics.Registrations.WithLabelValues("rejected").Inc()
		c.SetFormErrors(nil, values)
		c.Notify(ae.Message, session.SeverityError)
	case errors.As(err, &se):
		metrics.Registrations.WithLabelValues("storage_error").Inc()
		c.SetFormErrors(nil, values)
		c.Notify(services.MsgRosterUnavailable, session.SeverityError)
	default:
		metrics.Registrations.WithLabelValues("error").Inc()
		d.Log.WithError(err).Error("registration failed")
		c.SetFormErrors(nil, values)
		c.Notify(services.MsgRegistrationFailed, session.SeverityError)
	}
	_ = c.Fire(session.RegistrationFailed)
}
