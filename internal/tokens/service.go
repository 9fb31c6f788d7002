package tokens

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/pharmadata/pharmadata-backend/pkg/db"
	"github.com/pharmadata/pharmadata-backend/pkg/db/models"
	pkgerrors "github.com/pharmadata/pharmadata-backend/pkg/errors"
)

const tokenByteLength = 32

type tokensRepository interface {
	CreateWithTx(tx *gorm.DB, token *models.AccessToken) error
	FindByValue(ctx context.Context, value string) (*models.AccessToken, error)
	FindActiveByAccount(ctx context.Context, accountID uuid.UUID) (*models.AccessToken, error)
	RevokeWithTx(tx *gorm.DB, tokenID uuid.UUID, now time.Time) (bool, error)
	TouchLastUsed(ctx context.Context, tokenID uuid.UUID, now time.Time) error
	ListByAccount(ctx context.Context, accountID uuid.UUID) ([]models.AccessToken, error)
}

type accountsRepository interface {
	SetCurrentTokenWithTx(tx *gorm.DB, accountID uuid.UUID, tokenID *uuid.UUID) error
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service issues, revokes, and validates public API access tokens.
type Service interface {
	Issue(ctx context.Context, accountID uuid.UUID) (*models.AccessToken, error)
	Revoke(ctx context.Context, accountID uuid.UUID) error
	Validate(ctx context.Context, value string) (*models.AccessToken, error)
	History(ctx context.Context, accountID uuid.UUID) ([]models.AccessToken, error)
}

type service struct {
	repo     tokensRepository
	accounts accountsRepository
	txRunner txRunner
	now      func() time.Time
}

// NewService wires token dependencies.
func NewService(repo tokensRepository, accounts accountsRepository, runner txRunner) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "tokens repository required")
	}
	if accounts == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "accounts repository required")
	}
	if runner == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "transaction runner required")
	}
	return &service{
		repo:     repo,
		accounts: accounts,
		txRunner: runner,
		now:      func() time.Time { return time.Now().UTC() },
	}, nil
}

// Issue returns the account's active token, creating one on first call.
// Calling it again without a revocation in between returns the same token.
func (s *service) Issue(ctx context.Context, accountID uuid.UUID) (*models.AccessToken, error) {
	if accountID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidArgument, "account id required")
	}

	existing, err := s.repo.FindActiveByAccount(ctx, accountID)
	if err == nil {
		return existing, nil
	}
	if !db.IsNotFound(err) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup active token")
	}

	value, err := generateTokenValue()
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generate token")
	}

	token := &models.AccessToken{
		ID:        uuid.New(),
		AccountID: accountID,
		Token:     value,
	}
	txErr := s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.CreateWithTx(tx, token); err != nil {
			return err
		}
		return s.accounts.SetCurrentTokenWithTx(tx, accountID, &token.ID)
	})
	if txErr != nil {
		if db.IsUniqueViolation(txErr) {
			// lost the issue race, the other request's token wins
			active, findErr := s.repo.FindActiveByAccount(ctx, accountID)
			if findErr != nil {
				return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, findErr, "reload active token")
			}
			return active, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, txErr, "persist token")
	}
	return token, nil
}

// Revoke retires the account's active token and clears the account pointer.
// Revoking when no active token exists answers NotFound.
func (s *service) Revoke(ctx context.Context, accountID uuid.UUID) error {
	if accountID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeInvalidArgument, "account id required")
	}

	active, err := s.repo.FindActiveByAccount(ctx, accountID)
	if err != nil {
		if db.IsNotFound(err) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "no active token")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup active token")
	}

	now := s.now()
	return s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		revoked, err := s.repo.RevokeWithTx(tx, active.ID, now)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "revoke token")
		}
		if !revoked {
			return pkgerrors.New(pkgerrors.CodeNotFound, "no active token")
		}
		return s.accounts.SetCurrentTokenWithTx(tx, accountID, nil)
	})
}

// Validate resolves a bearer value to its token row. Unknown and revoked
// values both answer Unauthenticated so callers cannot tell them apart.
func (s *service) Validate(ctx context.Context, value string) (*models.AccessToken, error) {
	if value == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthenticated, "token required")
	}

	token, err := s.repo.FindByValue(ctx, value)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeUnauthenticated, "invalid token")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup token")
	}
	if token.Revoked {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthenticated, "invalid token")
	}

	if err := s.repo.TouchLastUsed(ctx, token.ID, s.now()); err != nil {
		// last_used_at is informational, a failed touch never blocks the call
		return token, nil
	}
	return token, nil
}

func (s *service) History(ctx context.Context, accountID uuid.UUID) ([]models.AccessToken, error) {
	if accountID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidArgument, "account id required")
	}
	rows, err := s.repo.ListByAccount(ctx, accountID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list tokens")
	}
	return rows, nil
}

func generateTokenValue() (string, error) {
	buf := make([]byte, tokenByteLength)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("read random bytes: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
