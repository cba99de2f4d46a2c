package service

import (
	"context"

	"precioverdadero/internal/errors"
	"precioverdadero/internal/models"
	"precioverdadero/internal/validation"

	"github.com/sirupsen/logrus"
)

const (
	MsgKnowledgeAdded     = "Conocimiento agregado exitosamente"
	MsgKnowledgeAddFailed = "Error al agregar conocimiento"
	MsgKnowledgeFailed    = "Error al obtener conocimiento"
)

type KnowledgeStore interface {
	AddKnowledge(ctx context.Context, title, content, category string) (*models.KnowledgeEntry, error)
	ListKnowledge(ctx context.Context) ([]models.KnowledgeEntry, error)
}

type KnowledgeService struct {
	store  KnowledgeStore
	logger *logrus.Logger
}

func NewKnowledgeService(store KnowledgeStore, logger *logrus.Logger) *KnowledgeService {
	return &KnowledgeService{store: store, logger: logger}
}

func (s *KnowledgeService) Add(ctx context.Context, title, content, category string) (*models.KnowledgeEntry, error) {
	category, err := validation.ValidateKnowledge(title, content, category)
	if err != nil {
		return nil, err
	}

	entry, err := s.store.AddKnowledge(ctx, title, content, category)
	if err != nil {
		appErr := errors.NewDatabaseError("add_knowledge", err).WithUserMessage(MsgKnowledgeAddFailed)
		errors.Entry(s.logger.WithError(err), appErr).Error("Failed to add knowledge entry")
		return nil, appErr
	}

	s.logger.WithFields(logrus.Fields{
		LogFieldKnowledgeID: entry.ID,
		LogFieldCategory:    entry.Category,
	}).Info("Knowledge entry added")
	return entry, nil
}

func (s *KnowledgeService) List(ctx context.Context) ([]models.KnowledgeEntry, error) {
	entries, err := s.store.ListKnowledge(ctx)
	if err != nil {
		appErr := errors.NewDatabaseError("list_knowledge", err).WithUserMessage(MsgKnowledgeFailed)
		errors.Entry(s.logger.WithError(err), appErr).Error("Failed to list knowledge")
		return nil, appErr
	}
	return entries, nil
}
