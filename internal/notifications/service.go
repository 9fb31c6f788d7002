package notifications

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/pharmadata/pharmadata-backend/pkg/db/models"
	"github.com/pharmadata/pharmadata-backend/pkg/enums"
	pkgerrors "github.com/pharmadata/pharmadata-backend/pkg/errors"
)

// maxListSize caps how many notifications one listing returns.
const maxListSize = 50

type notificationsRepository interface {
	Create(ctx context.Context, notification *models.Notification) error
	List(ctx context.Context, accountID uuid.UUID, limit int, unreadOnly bool) ([]models.Notification, error)
	MarkRead(ctx context.Context, accountID, notificationID uuid.UUID, now time.Time) (updated, found bool, err error)
	MarkAllRead(ctx context.Context, accountID uuid.UUID, now time.Time) (int64, error)
	Delete(ctx context.Context, accountID, notificationID uuid.UUID) (bool, error)
}

// Service defines notification operations. Notify is the producer side used
// by billing, support and report flows; the rest serves the account's inbox.
type Service interface {
	Notify(ctx context.Context, accountID uuid.UUID, kind enums.NotificationType, title, message string) error
	List(ctx context.Context, accountID uuid.UUID, limit int, unreadOnly bool) ([]models.Notification, error)
	MarkRead(ctx context.Context, accountID, notificationID uuid.UUID) error
	MarkAllRead(ctx context.Context, accountID uuid.UUID) (int64, error)
	Delete(ctx context.Context, accountID, notificationID uuid.UUID) error
}

type service struct {
	repo notificationsRepository
}

// NewService wires notifications dependencies.
func NewService(repo notificationsRepository) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "notifications repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) Notify(ctx context.Context, accountID uuid.UUID, kind enums.NotificationType, title, message string) error {
	if accountID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeInvalidArgument, "account id required")
	}
	if !kind.IsValid() {
		return pkgerrors.New(pkgerrors.CodeInvalidArgument, "unknown notification type")
	}
	title = strings.TrimSpace(title)
	if title == "" {
		return pkgerrors.New(pkgerrors.CodeInvalidArgument, "title required")
	}
	notification := &models.Notification{
		ID:        uuid.New(),
		AccountID: accountID,
		Type:      kind,
		Title:     title,
		Message:   strings.TrimSpace(message),
	}
	if err := s.repo.Create(ctx, notification); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create notification")
	}
	return nil
}

func (s *service) List(ctx context.Context, accountID uuid.UUID, limit int, unreadOnly bool) ([]models.Notification, error) {
	if accountID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidArgument, "account id required")
	}
	if limit <= 0 || limit > maxListSize {
		limit = maxListSize
	}
	rows, err := s.repo.List(ctx, accountID, limit, unreadOnly)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list notifications")
	}
	return rows, nil
}

func (s *service) MarkRead(ctx context.Context, accountID, notificationID uuid.UUID) error {
	if accountID == uuid.Nil || notificationID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeInvalidArgument, "account id and notification id required")
	}
	_, found, err := s.repo.MarkRead(ctx, accountID, notificationID, time.Now().UTC())
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark notification read")
	}
	if !found {
		return pkgerrors.New(pkgerrors.CodeNotFound, "notification not found")
	}
	return nil
}

func (s *service) MarkAllRead(ctx context.Context, accountID uuid.UUID) (int64, error) {
	if accountID == uuid.Nil {
		return 0, pkgerrors.New(pkgerrors.CodeInvalidArgument, "account id required")
	}
	count, err := s.repo.MarkAllRead(ctx, accountID, time.Now().UTC())
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark notifications read")
	}
	return count, nil
}

func (s *service) Delete(ctx context.Context, accountID, notificationID uuid.UUID) error {
	if accountID == uuid.Nil || notificationID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeInvalidArgument, "account id and notification id required")
	}
	deleted, err := s.repo.Delete(ctx, accountID, notificationID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete notification")
	}
	if !deleted {
		return pkgerrors.New(pkgerrors.CodeNotFound, "notification not found")
	}
	return nil
}
