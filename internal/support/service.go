package support

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/pharmadata/pharmadata-backend/internal/repo"
	"github.com/pharmadata/pharmadata-backend/pkg/config"
	"github.com/pharmadata/pharmadata-backend/pkg/db"
	"github.com/pharmadata/pharmadata-backend/pkg/db/models"
	"github.com/pharmadata/pharmadata-backend/pkg/enums"
	pkgerrors "github.com/pharmadata/pharmadata-backend/pkg/errors"
	"github.com/pharmadata/pharmadata-backend/pkg/logger"
	"github.com/pharmadata/pharmadata-backend/pkg/mailer"
	"github.com/pharmadata/pharmadata-backend/pkg/pagination"
)

const (
	maxSubjectLength = 200
	maxBodyLength    = 10000
)

type ticketsRepository interface {
	Create(ctx context.Context, ticket *models.SupportTicket) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.SupportTicket, error)
	MarkEmailSent(ctx context.Context, id uuid.UUID) error
	UpdateStatus(ctx context.Context, id uuid.UUID, status enums.SupportTicketStatus) (bool, error)
	ListByAccount(ctx context.Context, accountID uuid.UUID, params pagination.Params) (repo.Page[models.SupportTicket], error)
}

type notifier interface {
	Notify(ctx context.Context, accountID uuid.UUID, kind enums.NotificationType, title, message string) error
}

// ServiceParams groups dependencies for the support service.
type ServiceParams struct {
	TicketsRepo ticketsRepository
	Mailer      mailer.Mailer
	Notifier    notifier
	Config      config.SMTPConfig
	Logger      *logger.Logger
}

// Service files support tickets. The row commits before any email goes
// out; a failed send is logged and leaves the ticket with email_sent false.
type Service struct {
	tickets  ticketsRepository
	mailer   mailer.Mailer
	notifier notifier
	cfg      config.SMTPConfig
	logg     *logger.Logger
}

func NewService(params ServiceParams) (*Service, error) {
	if params.TicketsRepo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "tickets repository required")
	}
	if params.Mailer == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "mailer required")
	}
	if params.Notifier == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "notifier required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "logger required")
	}
	return &Service{
		tickets:  params.TicketsRepo,
		mailer:   params.Mailer,
		notifier: params.Notifier,
		cfg:      params.Config,
		logg:     params.Logger,
	}, nil
}

// CreateInput carries a new ticket submission.
type CreateInput struct {
	Email   string
	Subject string
	Body    string
}

// CreateTicket persists the ticket, then best-effort emails the support
// inbox and drops an acknowledgment notification.
func (s *Service) CreateTicket(ctx context.Context, accountID uuid.UUID, input CreateInput) (*models.SupportTicket, error) {
	if accountID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidArgument, "account id is required")
	}
	email := strings.ToLower(strings.TrimSpace(input.Email))
	subject := strings.TrimSpace(input.Subject)
	body := strings.TrimSpace(input.Body)
	switch {
	case email == "" || !strings.Contains(email, "@"):
		return nil, pkgerrors.New(pkgerrors.CodeInvalidArgument, "a valid reply email is required")
	case subject == "":
		return nil, pkgerrors.New(pkgerrors.CodeInvalidArgument, "subject is required")
	case len(subject) > maxSubjectLength:
		return nil, pkgerrors.New(pkgerrors.CodeInvalidArgument, "subject is too long")
	case body == "":
		return nil, pkgerrors.New(pkgerrors.CodeInvalidArgument, "body is required")
	case len(body) > maxBodyLength:
		return nil, pkgerrors.New(pkgerrors.CodeInvalidArgument, "body is too long")
	}

	ticket := &models.SupportTicket{
		ID:        uuid.New(),
		AccountID: accountID,
		Email:     email,
		Subject:   subject,
		Body:      body,
		Status:    enums.SupportTicketStatusOpen,
	}
	if err := s.tickets.Create(ctx, ticket); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create support ticket")
	}

	ctx = s.logg.WithField(ctx, "ticket_id", ticket.ID.String())
	if s.cfg.Enabled() && s.cfg.SupportInbox != "" {
		mailBody := fmt.Sprintf("Ticket %s from %s\n\n%s", ticket.ID, email, body)
		if err := s.mailer.Send(ctx, s.cfg.SupportInbox, "[support] "+subject, mailBody); err != nil {
			s.logg.Error(ctx, "support email failed", err)
		} else {
			if err := s.tickets.MarkEmailSent(ctx, ticket.ID); err != nil {
				s.logg.Warn(ctx, "mark email sent failed")
			} else {
				ticket.EmailSent = true
			}
		}
	}

	if err := s.notifier.Notify(ctx, accountID, enums.NotificationTypeSupport,
		"Support request received",
		"We received your request and will get back to you at "+email+"."); err != nil {
		s.logg.Warn(ctx, "support acknowledgment notification failed")
	}
	return ticket, nil
}

// ListTickets returns one page of the caller's tickets.
func (s *Service) ListTickets(ctx context.Context, accountID uuid.UUID, params pagination.Params) ([]models.SupportTicket, pagination.Envelope, error) {
	if accountID == uuid.Nil {
		return nil, pagination.Envelope{}, pkgerrors.New(pkgerrors.CodeInvalidArgument, "account id is required")
	}
	page, err := s.tickets.ListByAccount(ctx, accountID, params)
	if err != nil {
		return nil, pagination.Envelope{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list support tickets")
	}
	return page.Items, page.Envelope, nil
}

// GetTicket loads one of the caller's tickets.
func (s *Service) GetTicket(ctx context.Context, accountID, ticketID uuid.UUID) (*models.SupportTicket, error) {
	ticket, err := s.tickets.FindByID(ctx, ticketID)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "ticket not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load ticket")
	}
	if ticket.AccountID != accountID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "ticket not found")
	}
	return ticket, nil
}

// UpdateStatus moves a ticket through its lifecycle. Admin only, enforced
// by the route layer.
func (s *Service) UpdateStatus(ctx context.Context, ticketID uuid.UUID, status enums.SupportTicketStatus) error {
	if !status.IsValid() {
		return pkgerrors.New(pkgerrors.CodeInvalidArgument, "invalid ticket status")
	}
	updated, err := s.tickets.UpdateStatus(ctx, ticketID, status)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update ticket status")
	}
	if !updated {
		return pkgerrors.New(pkgerrors.CodeNotFound, "ticket not found")
	}
	return nil
}
