package service

import (
	"context"
	stderrors "errors"
	"testing"

	"precioverdadero/internal/errors"
	"precioverdadero/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestKnowledgeService_AddDefaultsCategory(t *testing.T) {
	store := &mockKnowledgeStore{}
	svc := NewKnowledgeService(store, testLogger())
	entry := &models.KnowledgeEntry{ID: 5, Title: "Horario", Content: "9 a 18", Category: models.CategoryGeneral}
	store.On("AddKnowledge", mock.Anything, "Horario", "9 a 18", models.CategoryGeneral).Return(entry, nil).Once()

	got, err := svc.Add(context.Background(), "Horario", "9 a 18", "")
	require.NoError(t, err)
	assert.Equal(t, entry, got)
	store.AssertExpectations(t)
}

func TestKnowledgeService_AddValidation(t *testing.T) {
	store := &mockKnowledgeStore{}
	svc := NewKnowledgeService(store, testLogger())

	_, err := svc.Add(context.Background(), "", "contenido", "")
	require.Error(t, err)
	assert.Equal(t, "Título y contenido son requeridos", errors.GetUserMessage(err))

	_, err = svc.Add(context.Background(), "t", "c", "otra")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrCodeValidationFailed))

	store.AssertNotCalled(t, "AddKnowledge", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestKnowledgeService_StoreFailures(t *testing.T) {
	store := &mockKnowledgeStore{}
	svc := NewKnowledgeService(store, testLogger())
	store.On("AddKnowledge", mock.Anything, "t", "c", models.CategoryUserManual).Return(nil, stderrors.New("locked"))
	store.On("ListKnowledge", mock.Anything).Return(nil, stderrors.New("locked"))

	_, err := svc.Add(context.Background(), "t", "c", models.CategoryUserManual)
	assert.True(t, errors.Is(err, errors.ErrCodeDatabaseQuery))

	_, err = svc.List(context.Background())
	assert.Equal(t, MsgKnowledgeFailed, errors.GetUserMessage(err))
}
