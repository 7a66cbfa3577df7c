package services

import (
	"context"

	"github.com/educlass/portal/internal/identity"
)

// IdentityGateway is the part of the identity gateway the workflows use.
type IdentityGateway interface {
	CreateAccount(ctx context.Context, email, password string) (identity.Session, error)
	VerifyCredentials(ctx context.Context, email, password string) (identity.Session, error)
	SignOut(ctx context.Context, token string) error
	DeleteAccount(ctx context.Context, uid string) error
}
