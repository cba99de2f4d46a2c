package service

import (
	"context"

	"precioverdadero/internal/models"
	"precioverdadero/pkg/twilio"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/mock"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.FatalLevel)
	return logger
}

type mockCommentStore struct {
	mock.Mock
}

func (m *mockCommentStore) SaveComment(ctx context.Context, in models.CommentInput, key string) (*models.Comment, bool, error) {
	args := m.Called(ctx, in, key)
	c, _ := args.Get(0).(*models.Comment)
	return c, args.Bool(1), args.Error(2)
}

func (m *mockCommentStore) ListComments(ctx context.Context, limit int) ([]models.Comment, error) {
	args := m.Called(ctx, limit)
	c, _ := args.Get(0).([]models.Comment)
	return c, args.Error(1)
}

type mockKnowledgeStore struct {
	mock.Mock
}

func (m *mockKnowledgeStore) AddKnowledge(ctx context.Context, title, content, category string) (*models.KnowledgeEntry, error) {
	args := m.Called(ctx, title, content, category)
	e, _ := args.Get(0).(*models.KnowledgeEntry)
	return e, args.Error(1)
}

func (m *mockKnowledgeStore) ListKnowledge(ctx context.Context) ([]models.KnowledgeEntry, error) {
	args := m.Called(ctx)
	e, _ := args.Get(0).([]models.KnowledgeEntry)
	return e, args.Error(1)
}

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) Publish(ctx context.Context, ev models.StreamEvent) error {
	return m.Called(ctx, ev).Error(0)
}

func (m *mockPublisher) Close() error {
	return m.Called().Error(0)
}

type mockSender struct {
	mock.Mock
}

func (m *mockSender) SendWhatsApp(ctx context.Context, to, body string) (*twilio.Message, error) {
	args := m.Called(ctx, to, body)
	msg, _ := args.Get(0).(*twilio.Message)
	return msg, args.Error(1)
}

type mockCleaner struct {
	mock.Mock
}

func (m *mockCleaner) CleanupOldRecords(ctx context.Context, retentionDays int) (int64, error) {
	args := m.Called(ctx, retentionDays)
	return args.Get(0).(int64), args.Error(1)
}
