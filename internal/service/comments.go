package service

import (
	"context"
	"time"

	"precioverdadero/internal/constants"
	"precioverdadero/internal/errors"
	"precioverdadero/internal/events"
	"precioverdadero/internal/metrics"
	"precioverdadero/internal/models"
	"precioverdadero/internal/privacy"
	"precioverdadero/internal/validation"

	"github.com/sirupsen/logrus"
)

// Messages returned by the comment endpoints.
const (
	MsgAllFieldsRequired = "Todos los campos son requeridos"
	MsgCommentSaved      = "Comentario guardado exitosamente"
	MsgCommentSaveFailed = "Error al guardar el comentario"
	MsgCommentsFailed    = "Error al obtener comentarios"
)

type CommentStore interface {
	SaveComment(ctx context.Context, in models.CommentInput, idempotencyKey string) (*models.Comment, bool, error)
	ListComments(ctx context.Context, limit int) ([]models.Comment, error)
}

type CommentService struct {
	store     CommentStore
	publisher events.Publisher
	logger    *logrus.Logger
	metrics   *metrics.Registry
}

func NewCommentService(store CommentStore, publisher events.Publisher, logger *logrus.Logger) *CommentService {
	if publisher == nil {
		publisher = events.Nop{}
	}
	return &CommentService{
		store:     store,
		publisher: publisher,
		logger:    logger,
		metrics:   metrics.GetRegistry(),
	}
}

// List returns the newest comments first.
func (s *CommentService) List(ctx context.Context) ([]models.Comment, error) {
	comments, err := s.store.ListComments(ctx, constants.DefaultCommentListLimit)
	if err != nil {
		appErr := errors.NewDatabaseError("list_comments", err).WithUserMessage(MsgCommentsFailed)
		errors.Entry(s.logger.WithError(err), appErr).Error("Failed to list comments")
		return nil, appErr
	}
	return comments, nil
}

// Create validates and stores a comment. A repeated idempotency key returns
// the comment stored the first time and publishes nothing.
func (s *CommentService) Create(ctx context.Context, in models.CommentInput, idempotencyKey string) (*models.Comment, error) {
	if err := validation.ValidateComment(in, MsgAllFieldsRequired); err != nil {
		s.logger.WithFields(logrus.Fields{
			LogFieldOperation: "create_comment",
			LogFieldReason:    validation.Reason(err),
		}).Debug("Rejected comment")
		return nil, err
	}

	comment, duplicate, err := s.store.SaveComment(ctx, in, idempotencyKey)
	if err != nil {
		appErr := errors.NewDatabaseError("save_comment", err).WithUserMessage(MsgCommentSaveFailed)
		errors.Entry(s.logger.WithError(err), appErr).Error("Failed to save comment")
		return nil, appErr
	}

	fields := CommentFields(ctx, in)
	fields[LogFieldCommentID] = comment.ID
	if idempotencyKey != "" {
		fields[LogFieldIdempotencyKey] = privacy.MaskKey(idempotencyKey)
	}

	if duplicate {
		s.metrics.IncrementCounter(metrics.CommentsDuplicated, nil, "Submissions answered from an earlier idempotency key")
		s.logger.WithFields(fields).Info("Duplicate comment submission")
		return comment, nil
	}

	s.metrics.IncrementCounter(metrics.CommentsCreated, nil, "Comments stored")
	s.logger.WithFields(fields).Info("Comment saved")

	ev := models.StreamEvent{Type: models.EventCommentCreated, Comment: comment, At: time.Now().UTC()}
	if err := s.publisher.Publish(ctx, ev); err != nil {
		s.logger.WithError(err).WithFields(fields).Warn("Failed to publish comment event")
	}
	return comment, nil
}
