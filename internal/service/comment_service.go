package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/workspace-tracker/internal/domain"
	"github.com/spec-kit/workspace-tracker/internal/persistence"
	"github.com/spec-kit/workspace-tracker/internal/repository"
	apperrors "github.com/spec-kit/workspace-tracker/pkg/util/errorutil"
)

const maxCommentLength = 5000

// CommentService manages ticket comments. Replies nest one level deep.
type CommentService struct {
	tx       persistence.Transactor
	authz    *Authorizer
	tickets  repository.TicketRepository
	comments repository.CommentRepository
	logger   *zap.Logger
}

// CommentDependencies bundles repositories for the comment service.
type CommentDependencies struct {
	Transactor  persistence.Transactor
	Authorizer  *Authorizer
	TicketRepo  repository.TicketRepository
	CommentRepo repository.CommentRepository
	Logger      *zap.Logger
}

// NewCommentService constructs the service.
func NewCommentService(deps CommentDependencies) *CommentService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CommentService{
		tx:       deps.Transactor,
		authz:    deps.Authorizer,
		tickets:  deps.TicketRepo,
		comments: deps.CommentRepo,
		logger:   logger,
	}
}

// CreateComment adds a comment to a ticket. A reply must target a top-level
// comment on the same ticket.
func (s *CommentService) CreateComment(ctx context.Context, identity domain.Identity, workspaceID, ticketID, message string, parentID *string) (*domain.Comment, error) {
	if err := s.authz.Require(ctx, identity, workspaceID, domain.EntityComment, domain.OperationCreate); err != nil {
		return nil, err
	}
	message, err := validateMessage(message)
	if err != nil {
		return nil, err
	}
	parentID = optionalID(parentID)

	comment := &domain.Comment{TicketID: ticketID, UserID: identity.UserID, Message: message, ParentID: parentID}
	err = s.tx.WithinTx(ctx, persistence.TxOptions{}, func(ctx context.Context) error {
		if _, err := s.tickets.GetByID(ctx, workspaceID, ticketID); err != nil {
			return notFoundOr(err, "ticket", map[string]any{"ticketId": ticketID})
		}
		if parentID != nil {
			parent, err := s.comments.GetByID(ctx, workspaceID, *parentID)
			if err != nil {
				return notFoundOr(err, "parent comment", map[string]any{"parentId": *parentID})
			}
			if parent.TicketID != ticketID {
				return apperrors.NewValidationError("parent comment belongs to another ticket", nil)
			}
			if parent.ParentID != nil {
				return apperrors.NewValidationError("replies cannot be nested", nil)
			}
		}
		if err := s.comments.Create(ctx, comment); err != nil {
			return notFoundOr(err, "ticket", map[string]any{"ticketId": ticketID})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return comment, nil
}

// UpdateComment edits the message of a comment the caller wrote.
func (s *CommentService) UpdateComment(ctx context.Context, identity domain.Identity, workspaceID, commentID, message string) (*domain.Comment, error) {
	if err := s.authz.Require(ctx, identity, workspaceID, domain.EntityComment, domain.OperationUpdate); err != nil {
		return nil, err
	}
	message, err := validateMessage(message)
	if err != nil {
		return nil, err
	}

	var comment *domain.Comment
	err = s.tx.WithinTx(ctx, persistence.TxOptions{}, func(ctx context.Context) error {
		current, err := s.ownedComment(ctx, identity, workspaceID, commentID)
		if err != nil {
			return err
		}
		current.Message = message
		if err := s.comments.Update(ctx, current); err != nil {
			return notFoundOr(err, "comment", map[string]any{"commentId": commentID})
		}
		comment = current
		return nil
	})
	if err != nil {
		return nil, err
	}
	return comment, nil
}

// DeleteComment removes a comment the caller wrote, along with its replies.
func (s *CommentService) DeleteComment(ctx context.Context, identity domain.Identity, workspaceID, commentID string) error {
	if err := s.authz.Require(ctx, identity, workspaceID, domain.EntityComment, domain.OperationDelete); err != nil {
		return err
	}
	return s.tx.WithinTx(ctx, persistence.TxOptions{}, func(ctx context.Context) error {
		if _, err := s.ownedComment(ctx, identity, workspaceID, commentID); err != nil {
			return err
		}
		if err := s.comments.Delete(ctx, commentID); err != nil {
			return notFoundOr(err, "comment", map[string]any{"commentId": commentID})
		}
		return nil
	})
}

// ListComments returns the ticket's top-level comments oldest first, each
// carrying its replies.
func (s *CommentService) ListComments(ctx context.Context, identity domain.Identity, workspaceID, ticketID string) ([]domain.Comment, error) {
	if err := s.authz.Require(ctx, identity, workspaceID, domain.EntityComment, domain.OperationRead); err != nil {
		return nil, err
	}
	if _, err := s.tickets.GetByID(ctx, workspaceID, ticketID); err != nil {
		return nil, notFoundOr(err, "ticket", map[string]any{"ticketId": ticketID})
	}
	flat, err := s.comments.ListByTicket(ctx, ticketID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return BuildCommentTree(flat), nil
}

func (s *CommentService) ownedComment(ctx context.Context, identity domain.Identity, workspaceID, commentID string) (*domain.Comment, error) {
	comment, err := s.comments.GetByID(ctx, workspaceID, commentID)
	if err != nil {
		return nil, notFoundOr(err, "comment", map[string]any{"commentId": commentID})
	}
	if comment.UserID != identity.UserID && !identity.SuperAdmin {
		return nil, apperrors.NewForbidden("only the author can change this comment")
	}
	return comment, nil
}

// BuildCommentTree groups replies under their parents. Input must be sorted
// by creation time; that order is kept at both levels. Replies whose parent
// is missing are dropped.
func BuildCommentTree(flat []domain.Comment) []domain.Comment {
	index := make(map[string]int, len(flat))
	roots := make([]domain.Comment, 0, len(flat))
	for _, c := range flat {
		if c.ParentID == nil {
			c.Replies = []domain.Comment{}
			index[c.ID] = len(roots)
			roots = append(roots, c)
		}
	}
	for _, c := range flat {
		if c.ParentID == nil {
			continue
		}
		if i, ok := index[*c.ParentID]; ok {
			roots[i].Replies = append(roots[i].Replies, c)
		}
	}
	return roots
}

func validateMessage(raw string) (string, error) {
	message := strings.TrimSpace(raw)
	if message == "" {
		return "", apperrors.NewValidationError("message is required", nil)
	}
	if len(message) > maxCommentLength {
		return "", apperrors.NewValidationError("message too long", map[string]any{"max": maxCommentLength})
	}
	return message, nil
}
