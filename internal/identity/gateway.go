// Package identity is the local identity gateway: accounts with bcrypt
// password hashes, signed session tokens backed by a revocable session
// table, and an identity-change feed.
package identity

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/educlass/portal/internal/events"
	"github.com/educlass/portal/internal/models"
)

const minPasswordLen = 6

type Options struct {
	Secret     string
	Issuer     string
	TTL        time.Duration
	BcryptCost int
	Now        func() time.Time
}

// Session is a signed-in principal plus the token that persists it.
type Session struct {
	Principal models.Principal
	Token     string
	TokenID   string
	ExpiresAt time.Time
}

type Gateway struct {
	db   *gorm.DB
	bus  *events.Bus
	log  logrus.FieldLogger
	opts Options
}

func New(db *gorm.DB, bus *events.Bus, log logrus.FieldLogger, opts Options) *Gateway {
	if opts.TTL <= 0 {
		opts.TTL = 7 * 24 * time.Hour
	}
	if opts.BcryptCost == 0 {
		opts.BcryptCost = bcrypt.DefaultCost
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Gateway{db: db, bus: bus, log: log, opts: opts}
}

// OnIdentityChange subscribes cb to session starts and ends.
func (g *Gateway) OnIdentityChange(cb func(events.IdentityChange)) (unsubscribe func()) {
	return g.bus.Subscribe(cb)
}

// CreateAccount registers a student account and signs it in.
func (g *Gateway) CreateAccount(ctx context.Context, email, password string) (Session, error) {
	return g.createAccount(ctx, email, password, models.RoleStudent)
}

func (g *Gateway) createAccount(ctx context.Context, email, password string, role models.Role) (Session, error) {
	e, ok := NormEmail(email)
	if !ok {
		return Session{}, newError(CodeInvalidEmail, "The email address is badly formatted.")
	}
	if len(password) < minPasswordLen {
		return Session{}, newError(CodeWeakPassword, "Password should be at least 6 characters.")
	}

	tx := g.db.WithContext(ctx)
	var n int64
	if err := tx.Model(&models.Account{}).Where("email = ?", e).Count(&n).Error; err != nil {
		return Session{}, g.internal(err, "count accounts")
	}
	if n > 0 {
		return Session{}, newError(CodeEmailInUse, "The email address is already in use by another account.")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), g.opts.BcryptCost)
	if err != nil {
		return Session{}, g.internal(err, "hash password")
	}
	acc := models.Account{
		UID:          uuid.NewString(),
		Email:        e,
		PasswordHash: string(hash),
		Role:         string(role),
	}
	if err := tx.Create(&acc).Error; err != nil {
		return Session{}, g.internal(err, "create account")
	}
	return g.startSession(ctx, acc)
}

// VerifyCredentials signs in an existing account. Only blank identifiers or
// ones containing whitespace are rejected as malformed; anything else is
// looked up as an email.
func (g *Gateway) VerifyCredentials(ctx context.Context, email, password string) (Session, error) {
	e := strings.ToLower(strings.TrimSpace(email))
	if e == "" || strings.ContainsAny(e, " \t\r\n") {
		return Session{}, newError(CodeInvalidEmail, "The email address is badly formatted.")
	}

	var acc models.Account
	err := g.db.WithContext(ctx).Where("email = ?", e).First(&acc).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Session{}, newError(CodeUserNotFound, "There is no user record corresponding to this identifier.")
	}
	if err != nil {
		return Session{}, g.internal(err, "load account")
	}
	if bcrypt.CompareHashAndPassword([]byte(acc.PasswordHash), []byte(password)) != nil {
		return Session{}, newError(CodeWrongPassword, "The password is invalid.")
	}
	return g.startSession(ctx, acc)
}

func (g *Gateway) startSession(ctx context.Context, acc models.Account) (Session, error) {
	now := g.opts.Now()
	sess := Session{
		Principal: principalOf(acc),
		TokenID:   uuid.NewString(),
		ExpiresAt: now.Add(g.opts.TTL),
	}
	tok, err := newSessionToken(g.opts.Secret, g.opts.Issuer, acc.UID, sess.TokenID, now, g.opts.TTL, Claims{
		Email: acc.Email,
		Role:  acc.Role,
	})
	if err != nil {
		return Session{}, g.internal(err, "sign token")
	}
	sess.Token = tok

	row := models.IdentitySession{TokenID: sess.TokenID, UID: acc.UID, ExpiresAt: sess.ExpiresAt}
	if err := g.db.WithContext(ctx).Create(&row).Error; err != nil {
		return Session{}, g.internal(err, "record session")
	}

	p := sess.Principal
	g.bus.Publish(events.IdentityChange{TokenID: sess.TokenID, Principal: &p})
	return sess, nil
}

// Restore resolves a persisted session token to its principal. The token must
// verify, its session must be live and its account must still exist.
func (g *Gateway) Restore(ctx context.Context, token string) (Session, error) {
	if token == "" {
		return Session{}, newError(CodeInvalidToken, "No session.")
	}
	claims, err := parseSessionToken(g.opts.Secret, g.opts.Issuer, token)
	if err != nil {
		return Session{}, newError(CodeInvalidToken, "Session is invalid or expired.")
	}

	tx := g.db.WithContext(ctx)
	var row models.IdentitySession
	err = tx.Where("token_id = ? AND revoked_at IS NULL AND expires_at > ?", claims.ID, g.opts.Now()).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Session{}, newError(CodeInvalidToken, "Session is invalid or expired.")
	}
	if err != nil {
		return Session{}, g.internal(err, "load session")
	}

	var acc models.Account
	err = tx.Where("uid = ?", row.UID).First(&acc).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Session{}, newError(CodeUserNotFound, "There is no user record corresponding to this identifier.")
	}
	if err != nil {
		return Session{}, g.internal(err, "load account")
	}

	return Session{
		Principal: principalOf(acc),
		Token:     token,
		TokenID:   row.TokenID,
		ExpiresAt: row.ExpiresAt,
	}, nil
}

// SignOut revokes the session behind token. Unknown or already revoked
// tokens are not an error.
func (g *Gateway) SignOut(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	claims, err := parseSessionToken(g.opts.Secret, g.opts.Issuer, token)
	if err != nil {
		return nil
	}
	now := g.opts.Now()
	res := g.db.WithContext(ctx).Model(&models.IdentitySession{}).
		Where("token_id = ? AND revoked_at IS NULL", claims.ID).
		Update("revoked_at", now)
	if res.Error != nil {
		return g.internal(res.Error, "revoke session")
	}
	if res.RowsAffected > 0 {
		g.bus.Publish(events.IdentityChange{TokenID: claims.ID})
	}
	return nil
}

// DeleteAccount removes the account and revokes its live sessions.
func (g *Gateway) DeleteAccount(ctx context.Context, uid string) error {
	var tokenIDs []string
	err := g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.IdentitySession{}).
			Where("uid = ? AND revoked_at IS NULL", uid).
			Pluck("token_id", &tokenIDs).Error; err != nil {
			return err
		}
		if err := tx.Where("uid = ?", uid).Delete(&models.IdentitySession{}).Error; err != nil {
			return err
		}
		return tx.Where("uid = ?", uid).Delete(&models.Account{}).Error
	})
	if err != nil {
		return g.internal(err, "delete account")
	}
	for _, id := range tokenIDs {
		g.bus.Publish(events.IdentityChange{TokenID: id})
	}
	return nil
}

// SeedAdmin makes sure an admin account exists for email.
func (g *Gateway) SeedAdmin(ctx context.Context, email, password string) error {
	e, ok := NormEmail(email)
	if !ok || password == "" {
		return nil
	}
	var acc models.Account
	err := g.db.WithContext(ctx).Where("email = ?", e).First(&acc).Error
	if err == nil {
		if acc.Role != string(models.RoleAdmin) {
			return g.db.WithContext(ctx).Model(&acc).Update("role", string(models.RoleAdmin)).Error
		}
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return errors.Wrap(err, "seed admin")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), g.opts.BcryptCost)
	if err != nil {
		return errors.Wrap(err, "seed admin")
	}
	acc = models.Account{
		UID:          uuid.NewString(),
		Email:        e,
		PasswordHash: string(hash),
		Role:         string(models.RoleAdmin),
	}
	if err := g.db.WithContext(ctx).Create(&acc).Error; err != nil {
		return errors.Wrap(err, "seed admin")
	}
	g.log.WithField("email", e).Info("admin account seeded")
	return nil
}

func (g *Gateway) internal(err error, op string) *Error {
	g.log.WithError(err).WithField("op", op).Error("identity gateway failure")
	return newError(CodeInternal, "Something went wrong. Please try again.")
}

func principalOf(acc models.Account) models.Principal {
	return models.Principal{UID: acc.UID, Email: acc.Email, Role: models.Role(acc.Role)}
}
