package services

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/educlass/portal/internal/identity"
	"github.com/educlass/portal/internal/models"
	"github.com/educlass/portal/internal/notify"
	"github.com/educlass/portal/internal/roster"
)

// AccountCreationError is a gateway refusal to create the account.
type AccountCreationError struct {
	Code    string
	Message string
}

func (e *AccountCreationError) Error() string { return "account creation: " + e.Message }

type Registrar struct {
	Gateway         IdentityGateway
	Roster          *roster.Store
	Mailer          notify.Dispatcher
	Log             logrus.FieldLogger
	Now             func() time.Time
	GatewayTimeout  time.Duration
	DispatchTimeout time.Duration
}

type RegistrationResult struct {
	Session   identity.Session
	Record    models.StudentRecord
	EmailSent bool
	Message   string
}

// Identity is the signed-in identity the new student ends up with.
func (r RegistrationResult) Identity() models.SessionIdentity {
	rec := r.Record
	return models.SessionIdentity{
		UID:     r.Session.Principal.UID,
		Email:   r.Session.Principal.Email,
		Role:    r.Session.Principal.Role,
		TokenID: r.Session.TokenID,
		Student: &rec,
	}
}

// Register validates in, creates the account, appends the roster record and
// sends the confirmation. The returned error is one of *ValidationError,
// *AccountCreationError or *roster.StorageError. A failed confirmation never
// fails the registration.
func (r *Registrar) Register(ctx context.Context, in RegistrationInput) (RegistrationResult, error) {
	in = in.Normalized()
	if err := ValidateRegistration(in); err != nil {
		return RegistrationResult{}, err
	}

	sess, err := r.createAccount(ctx, in)
	if err != nil {
		return RegistrationResult{}, err
	}
	log := r.Log.WithField("uid", sess.Principal.UID)

	now := r.now()
	rec, err := r.Roster.AppendNew(ctx, now, func(studentID string) models.StudentRecord {
		return models.StudentRecord{
			StudentID:        studentID,
			FullName:         in.FullName,
			Email:            in.Email,
			Phone:            in.Phone,
			Course:           in.Course,
			Level:            in.Level,
			Gender:           in.Gender,
			DateOfBirth:      in.DateOfBirth,
			UID:              sess.Principal.UID,
			RegistrationDate: now.UTC(),
		}
	})
	if err != nil {
		log.WithError(err).Error("roster append failed, removing account")
		r.compensate(ctx, sess)
		return RegistrationResult{}, err
	}

	res := RegistrationResult{Session: sess, Record: rec, EmailSent: true, Message: MsgRegistered}
	if err := r.dispatch(ctx, rec); err != nil {
		log.WithError(err).WithField("student_id", rec.StudentID).Warn("confirmation email not sent")
		res.EmailSent = false
		res.Message = MsgRegisteredNoEmail
	}
	log.WithField("student_id", rec.StudentID).Info("student registered")
	return res, nil
}

func (r *Registrar) createAccount(ctx context.Context, in RegistrationInput) (identity.Session, error) {
	cctx, cancel := withTimeout(ctx, r.GatewayTimeout)
	defer cancel()

	sess, err := r.Gateway.CreateAccount(cctx, in.Email, in.Password)
	if err == nil {
		return sess, nil
	}
	var gerr *identity.Error
	if !errors.As(err, &gerr) {
		r.Log.WithError(err).Error("create account failed")
		return identity.Session{}, &AccountCreationError{Code: identity.CodeInternal, Message: MsgRegistrationFailed}
	}
	switch gerr.Code {
	case identity.CodeEmailInUse:
		return identity.Session{}, &AccountCreationError{Code: gerr.Code, Message: MsgEmailInUse}
	case identity.CodeWeakPassword:
		return identity.Session{}, &AccountCreationError{Code: gerr.Code, Message: MsgWeakPassword}
	default:
		msg := gerr.Message
		if msg == "" {
			msg = MsgRegistrationFailed
		}
		return identity.Session{}, &AccountCreationError{Code: gerr.Code, Message: msg}
	}
}

// compensate removes the account created for a registration whose roster
// record could not be stored. It runs detached from the request context.
func (r *Registrar) compensate(ctx context.Context, sess identity.Session) {
	cctx, cancel := withTimeout(context.WithoutCancel(ctx), r.GatewayTimeout)
	defer cancel()
	if err := r.Gateway.DeleteAccount(cctx, sess.Principal.UID); err != nil {
		r.Log.WithError(err).WithField("uid", sess.Principal.UID).Error("compensating account delete failed")
	}
}

func (r *Registrar) dispatch(ctx context.Context, rec models.StudentRecord) error {
	if r.Mailer == nil {
		return nil
	}
	dctx, cancel := withTimeout(ctx, r.DispatchTimeout)
	defer cancel()
	return r.Mailer.Send(dctx, notify.Confirmation{
		Email:     rec.Email,
		Name:      rec.FullName,
		StudentID: rec.StudentID,
		Course:    rec.Course,
		Level:     rec.Level,
	})
}

func (r *Registrar) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now()
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
