package accounts

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/pharmadata/pharmadata-backend/pkg/auth"
	"github.com/pharmadata/pharmadata-backend/pkg/db"
	"github.com/pharmadata/pharmadata-backend/pkg/db/models"
	"github.com/pharmadata/pharmadata-backend/pkg/enums"
	pkgerrors "github.com/pharmadata/pharmadata-backend/pkg/errors"
)

type accountsRepository interface {
	Create(ctx context.Context, account *models.Account) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Account, error)
	Update(ctx context.Context, account *models.Account) error
}

// Service exposes account provisioning and profile reads.
type Service interface {
	EnsureFromIdentity(ctx context.Context, claims *auth.IdentityClaims) (*models.Account, error)
	Get(ctx context.Context, accountID uuid.UUID) (*models.Account, error)
	UpdateDisplayName(ctx context.Context, accountID uuid.UUID, displayName string) (*models.Account, error)
}

type service struct {
	repo accountsRepository
}

// NewService wires account dependencies.
func NewService(repo accountsRepository) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "accounts repository required")
	}
	return &service{repo: repo}, nil
}

// EnsureFromIdentity upserts the local account row for an authenticated
// identity. The identity provider owns email and verification state; this
// row adds the marketplace-side pointers.
func (s *service) EnsureFromIdentity(ctx context.Context, claims *auth.IdentityClaims) (*models.Account, error) {
	if claims == nil || claims.AccountID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthenticated, "identity missing")
	}
	email := strings.ToLower(strings.TrimSpace(claims.Email))
	if email == "" {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidArgument, "email is required")
	}

	existing, err := s.repo.FindByID(ctx, claims.AccountID)
	if err == nil {
		changed := false
		if existing.Email != email {
			existing.Email = email
			changed = true
		}
		if existing.EmailVerified != claims.EmailVerified {
			existing.EmailVerified = claims.EmailVerified
			changed = true
		}
		if changed {
			if err := s.repo.Update(ctx, existing); err != nil {
				return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update account")
			}
		}
		return existing, nil
	}
	if !db.IsNotFound(err) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup account")
	}

	role := claims.Role
	if !role.IsValid() {
		role = enums.AccountRoleUser
	}
	account := &models.Account{
		ID:            claims.AccountID,
		Email:         email,
		EmailVerified: claims.EmailVerified,
		Role:          role,
	}
	if err := s.repo.Create(ctx, account); err != nil {
		if db.IsUniqueViolation(err) {
			// lost a provisioning race, the row exists now
			existing, findErr := s.repo.FindByID(ctx, claims.AccountID)
			if findErr != nil {
				return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, findErr, "reload account")
			}
			return existing, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create account")
	}
	return account, nil
}

func (s *service) Get(ctx context.Context, accountID uuid.UUID) (*models.Account, error) {
	if accountID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidArgument, "account id required")
	}
	account, err := s.repo.FindByID(ctx, accountID)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "account not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup account")
	}
	return account, nil
}

func (s *service) UpdateDisplayName(ctx context.Context, accountID uuid.UUID, displayName string) (*models.Account, error) {
	if accountID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidArgument, "account id required")
	}
	trimmed := strings.TrimSpace(displayName)
	if trimmed == "" {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidArgument, "display name is required")
	}
	if len(trimmed) > 120 {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidArgument, "display name too long")
	}

	account, err := s.repo.FindByID(ctx, accountID)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "account not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup account")
	}

	account.DisplayName = &trimmed
	if err := s.repo.Update(ctx, account); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update account")
	}
	return account, nil
}
