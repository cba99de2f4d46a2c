package assistant

import (
	"context"
	stderrors "errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"precioverdadero/internal/errors"
	"precioverdadero/internal/models"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockLLM struct {
	mock.Mock
}

func (m *mockLLM) Generate(ctx context.Context, prompt string) (string, error) {
	args := m.Called(ctx, prompt)
	return args.String(0), args.Error(1)
}

type mockStore struct {
	mock.Mock
}

func (m *mockStore) ListKnowledge(ctx context.Context) ([]models.KnowledgeEntry, error) {
	args := m.Called(ctx)
	entries, _ := args.Get(0).([]models.KnowledgeEntry)
	return entries, args.Error(1)
}

func (m *mockStore) SaveChatExchange(ctx context.Context, userMessage, aiResponse string) error {
	return m.Called(ctx, userMessage, aiResponse).Error(0)
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetLevel(logrus.FatalLevel)
	return l
}

var knowledge = []models.KnowledgeEntry{
	{Title: "Horario", Content: "9 a 18", Category: models.CategoryGeneral},
	{Title: "Bienvenida", Content: "Somos Precio Verdadero", Category: models.CategoryCompanyManual},
}

func TestBuildPrompt(t *testing.T) {
	prompt := BuildPrompt(BasePrompt, "Manual de prueba", knowledge, "¿Cuál es el horario?")

	assert.True(t, strings.HasPrefix(prompt, BasePrompt))
	assert.Contains(t, prompt, "=== MANUAL DE ENTRENAMIENTO ===\nManual de prueba\n")
	assert.Contains(t, prompt, "=== CONOCIMIENTO ADICIONAL DE LA BASE DE DATOS ===")
	assert.Contains(t, prompt, "[GENERAL] Horario:\n9 a 18\n\n")
	assert.Contains(t, prompt, "[MANUAL_EMPRESA] Bienvenida:\nSomos Precio Verdadero")
	assert.True(t, strings.HasSuffix(prompt, "=== PREGUNTA DEL USUARIO ===\n¿Cuál es el horario?\n\n=== RESPUESTA ===\nResponde de manera útil y profesional:"))

	training := strings.Index(prompt, "MANUAL DE ENTRENAMIENTO")
	db := strings.Index(prompt, "CONOCIMIENTO ADICIONAL")
	question := strings.Index(prompt, "PREGUNTA DEL USUARIO")
	assert.Less(t, training, db)
	assert.Less(t, db, question)
}

func TestBuildPrompt_OmitsEmptySections(t *testing.T) {
	prompt := BuildPrompt(BasePrompt, "", nil, "Hola")
	assert.NotContains(t, prompt, "MANUAL DE ENTRENAMIENTO")
	assert.NotContains(t, prompt, "CONOCIMIENTO ADICIONAL")
	assert.Empty(t, KnowledgeContext(nil))
}

func TestFriendlyMessage(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{stderrors.New("Error 401: API key not valid"), MsgAuth},
		{stderrors.New("Error 429, Status: RESOURCE_EXHAUSTED"), MsgQuota},
		{&BlockedError{Reason: "SAFETY"}, "El contenido fue bloqueado por: SAFETY"},
		{ErrEmptyResponse, MsgEmptyAnswer},
		{stderrors.New("boom"), "Error al comunicarse con Gemini API: boom"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FriendlyMessage(tt.err))
	}
	assert.Empty(t, FriendlyMessage(nil))
}

func TestAsk_Success(t *testing.T) {
	llm := &mockLLM{}
	store := &mockStore{}
	store.On("ListKnowledge", mock.Anything).Return(knowledge, nil)
	llm.On("Generate", mock.Anything, mock.MatchedBy(func(p string) bool {
		return strings.Contains(p, "[GENERAL] Horario") && strings.Contains(p, "¿Horario?")
	})).Return("De 9 a 18.", nil)
	store.On("SaveChatExchange", mock.Anything, "¿Horario?", "De 9 a 18.").Return(nil)

	a := New(llm, store, store, nil, time.Second, quietLogger())
	answer, err := a.Ask(context.Background(), "¿Horario?")

	require.NoError(t, err)
	assert.Equal(t, "De 9 a 18.", answer)
	llm.AssertExpectations(t)
	store.AssertExpectations(t)
}

func TestAsk_EmptyMessage(t *testing.T) {
	a := New(&mockLLM{}, &mockStore{}, nil, nil, 0, quietLogger())
	_, err := a.Ask(context.Background(), "   ")
	assert.True(t, errors.Is(err, errors.ErrCodeValidationFailed))
	assert.Equal(t, MsgEmptyMessage, errors.GetUserMessage(err))
}

func TestAsk_LLMErrorIsFriendly(t *testing.T) {
	llm := &mockLLM{}
	store := &mockStore{}
	store.On("ListKnowledge", mock.Anything).Return(nil, nil)
	llm.On("Generate", mock.Anything, mock.Anything).Return("", stderrors.New("googleapi: Error 429: quota exceeded"))

	a := New(llm, store, store, nil, time.Second, quietLogger())
	_, err := a.Ask(context.Background(), "Hola")

	assert.True(t, errors.Is(err, errors.ErrCodeAssistant))
	assert.Equal(t, MsgQuota, errors.GetUserMessage(err))
	store.AssertNotCalled(t, "SaveChatExchange", mock.Anything, mock.Anything, mock.Anything)
}

func TestAsk_HistoryFailureIsNotFatal(t *testing.T) {
	llm := &mockLLM{}
	store := &mockStore{}
	store.On("ListKnowledge", mock.Anything).Return(nil, stderrors.New("db down"))
	llm.On("Generate", mock.Anything, mock.Anything).Return("Hola", nil)
	store.On("SaveChatExchange", mock.Anything, mock.Anything, mock.Anything).Return(stderrors.New("db down"))

	a := New(llm, store, store, nil, time.Second, quietLogger())
	answer, err := a.Ask(context.Background(), "Hola")
	require.NoError(t, err)
	assert.Equal(t, "Hola", answer)
}

func TestAsk_NotConfigured(t *testing.T) {
	a := New(nil, &mockStore{}, nil, nil, 0, quietLogger())
	_, err := a.Ask(context.Background(), "Hola")
	assert.Equal(t, MsgNotConfigured, errors.GetUserMessage(err))
}

func TestTrainingPrompt_ReloadAndWatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prompt-entrenamiento.txt")
	require.NoError(t, os.WriteFile(path, []byte("versión 1"), 0600))

	tp := NewTrainingPrompt(path, quietLogger())
	n, err := tp.Reload()
	require.NoError(t, err)
	assert.Equal(t, len("versión 1"), n)
	assert.Equal(t, "versión 1", tp.Text())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- tp.Watch(ctx) }()

	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(path, []byte("versión 2"), 0600))
	assert.Eventually(t, func() bool { return tp.Text() == "versión 2" }, 3*time.Second, 20*time.Millisecond)

	cancel()
	assert.NoError(t, <-done)
}

func TestTrainingPrompt_MissingFileKeepsPrevious(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prompt.txt")
	require.NoError(t, os.WriteFile(path, []byte("manual"), 0600))
	tp := NewTrainingPrompt(path, quietLogger())
	_, err := tp.Reload()
	require.NoError(t, err)

	require.NoError(t, os.Remove(path))
	_, err = tp.Reload()
	assert.Error(t, err)
	assert.Equal(t, "manual", tp.Text())

	_, err = NewTrainingPrompt("", quietLogger()).Reload()
	assert.Error(t, err)
}
