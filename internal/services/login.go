package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/educlass/portal/internal/identity"
	"github.com/educlass/portal/internal/models"
	"github.com/educlass/portal/internal/roster"
)

type LoginFailure int

const (
	AccountNotFound LoginFailure = iota + 1
	WrongCredential
	MalformedIdentifier
	NotAuthorized
	Other
)

func (f LoginFailure) String() string {
	switch f {
	case AccountNotFound:
		return "account_not_found"
	case WrongCredential:
		return "wrong_credential"
	case MalformedIdentifier:
		return "malformed_identifier"
	case NotAuthorized:
		return "not_authorized"
	default:
		return "other"
	}
}

// LoginError carries the inline message for the login form and the text of
// the accompanying notification.
type LoginError struct {
	Kind    LoginFailure
	Message string
	Toast   string
}

func (e *LoginError) Error() string { return "login " + e.Kind.String() + ": " + e.Message }

type Authenticator struct {
	Gateway        IdentityGateway
	Roster         *roster.Store
	AdminEmails    []string
	Log            logrus.FieldLogger
	GatewayTimeout time.Duration
}

type LoginResult struct {
	Session  identity.Session
	Identity models.SessionIdentity
	Message  string
}

// Login signs a student or an admin in. Students may use their student id
// in place of the email.
func (a *Authenticator) Login(ctx context.Context, identifier, password string, role models.Role) (LoginResult, error) {
	switch role {
	case models.RoleStudent:
		return a.loginStudent(ctx, identifier, password)
	case models.RoleAdmin:
		return a.loginAdmin(ctx, identifier, password)
	default:
		return LoginResult{}, &LoginError{Kind: Other, Message: MsgLoginFailed, Toast: MsgLoginToast}
	}
}

func (a *Authenticator) loginStudent(ctx context.Context, identifier, password string) (LoginResult, error) {
	email := identifier
	if rec, ok := a.Roster.FindByStudentID(identifier); ok {
		email = rec.Email
	}

	sess, err := a.verify(ctx, email, password)
	if err != nil {
		return LoginResult{}, err
	}

	id := identityOf(sess)
	if rec, ok := a.Roster.FindByEmail(sess.Principal.Email); ok {
		id.Student = &rec
	}
	a.Log.WithField("uid", id.UID).Info("student signed in")
	return LoginResult{Session: sess, Identity: id, Message: MsgStudentLogin}, nil
}

func (a *Authenticator) loginAdmin(ctx context.Context, identifier, password string) (LoginResult, error) {
	sess, err := a.verify(ctx, identifier, password)
	if err != nil {
		return LoginResult{}, err
	}
	if !a.isAdmin(sess.Principal) {
		a.Log.WithField("uid", sess.Principal.UID).Warn("admin login refused")
		if err := a.SignOut(ctx, sess.Token); err != nil {
			a.Log.WithError(err).Warn("revoking refused admin session failed")
		}
		return LoginResult{}, &LoginError{Kind: NotAuthorized, Message: MsgNotAdmin, Toast: MsgNotAdmin}
	}
	id := identityOf(sess)
	id.Role = models.RoleAdmin
	a.Log.WithField("uid", id.UID).Info("admin signed in")
	return LoginResult{Session: sess, Identity: id, Message: MsgAdminLogin}, nil
}

func (a *Authenticator) isAdmin(p models.Principal) bool {
	if p.Role == models.RoleAdmin {
		return true
	}
	for _, e := range a.AdminEmails {
		if strings.EqualFold(e, p.Email) {
			return true
		}
	}
	return false
}

func (a *Authenticator) verify(ctx context.Context, email, password string) (identity.Session, error) {
	cctx, cancel := withTimeout(ctx, a.GatewayTimeout)
	defer cancel()

	sess, err := a.Gateway.VerifyCredentials(cctx, email, password)
	if err == nil {
		return sess, nil
	}
	var gerr *identity.Error
	if !errors.As(err, &gerr) {
		a.Log.WithError(err).Error("verify credentials failed")
		return identity.Session{}, &LoginError{Kind: Other, Message: MsgLoginFailed, Toast: MsgLoginToast}
	}
	toast := gerr.Message
	if toast == "" {
		toast = MsgLoginToast
	}
	switch gerr.Code {
	case identity.CodeUserNotFound:
		return identity.Session{}, &LoginError{Kind: AccountNotFound, Message: MsgAccountMissing, Toast: toast}
	case identity.CodeWrongPassword:
		return identity.Session{}, &LoginError{Kind: WrongCredential, Message: MsgWrongPassword, Toast: toast}
	case identity.CodeInvalidEmail:
		return identity.Session{}, &LoginError{Kind: MalformedIdentifier, Message: MsgBadIdentifier, Toast: toast}
	default:
		msg := gerr.Message
		if msg == "" {
			msg = MsgLoginFailed
		}
		return identity.Session{}, &LoginError{Kind: Other, Message: msg, Toast: toast}
	}
}

// SignOut ends the gateway session behind token.
func (a *Authenticator) SignOut(ctx context.Context, token string) error {
	cctx, cancel := withTimeout(ctx, a.GatewayTimeout)
	defer cancel()
	return a.Gateway.SignOut(cctx, token)
}

func identityOf(sess identity.Session) models.SessionIdentity {
	return models.SessionIdentity{
		UID:     sess.Principal.UID,
		Email:   sess.Principal.Email,
		Role:    sess.Principal.Role,
		TokenID: sess.TokenID,
	}
}

// IdentityFromPrincipal builds the session identity for a restored or pushed
// principal, merging the roster record for students.
func IdentityFromPrincipal(p models.Principal, tokenID string, r *roster.Store) models.SessionIdentity {
	id := models.SessionIdentity{UID: p.UID, Email: p.Email, Role: p.Role, TokenID: tokenID}
	if p.Role != models.RoleAdmin && r != nil {
		if rec, ok := r.FindByEmail(p.Email); ok {
			id.Student = &rec
		}
	}
	return id
}
