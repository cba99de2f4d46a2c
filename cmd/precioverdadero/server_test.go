package main

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"precioverdadero/internal/errors"
	"precioverdadero/internal/metrics"
	"precioverdadero/internal/models"
	"precioverdadero/internal/service"
	"precioverdadero/pkg/commentapi"
	"precioverdadero/pkg/twilio"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockComments struct{ mock.Mock }

func (m *mockComments) List(ctx context.Context) ([]models.Comment, error) {
	args := m.Called(ctx)
	c, _ := args.Get(0).([]models.Comment)
	return c, args.Error(1)
}

func (m *mockComments) Create(ctx context.Context, in models.CommentInput, key string) (*models.Comment, error) {
	args := m.Called(ctx, in, key)
	c, _ := args.Get(0).(*models.Comment)
	return c, args.Error(1)
}

type mockKnowledge struct{ mock.Mock }

func (m *mockKnowledge) Add(ctx context.Context, title, content, category string) (*models.KnowledgeEntry, error) {
	args := m.Called(ctx, title, content, category)
	e, _ := args.Get(0).(*models.KnowledgeEntry)
	return e, args.Error(1)
}

func (m *mockKnowledge) List(ctx context.Context) ([]models.KnowledgeEntry, error) {
	args := m.Called(ctx)
	e, _ := args.Get(0).([]models.KnowledgeEntry)
	return e, args.Error(1)
}

type mockAssistant struct{ mock.Mock }

func (m *mockAssistant) Ask(ctx context.Context, message string) (string, error) {
	args := m.Called(ctx, message)
	return args.String(0), args.Error(1)
}

func (m *mockAssistant) ReloadTraining() (int, error) {
	args := m.Called()
	return args.Int(0), args.Error(1)
}

type mockSupport struct{ mock.Mock }

func (m *mockSupport) Send(ctx context.Context, number, message string) (*twilio.Message, error) {
	args := m.Called(ctx, number, message)
	msg, _ := args.Get(0).(*twilio.Message)
	return msg, args.Error(1)
}

type fakePinger struct{ err error }

func (p fakePinger) Ping(context.Context) error { return p.err }

type harness struct {
	comments  *mockComments
	knowledge *mockKnowledge
	assistant *mockAssistant
	support   *mockSupport
	server    *Server
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	logger := logrus.New()
	logger.SetLevel(logrus.FatalLevel)

	h := &harness{
		comments:  &mockComments{},
		knowledge: &mockKnowledge{},
		assistant: &mockAssistant{},
		support:   &mockSupport{},
	}
	h.server = NewServer(models.ServerConfig{MaxBodyBytes: 1 << 16}, Dependencies{
		Comments:  h.comments,
		Knowledge: h.knowledge,
		Assistant: h.assistant,
		Support:   h.support,
		DB:        fakePinger{},
		Location:  time.UTC,
	}, logger)
	return h
}

func (h *harness) do(method, path, body string, headers ...string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	h.server.router.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func TestServer_Health(t *testing.T) {
	h := newHarness(t)
	w := h.do(http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "healthy", decodeBody(t, w)["status"])

	h.server.deps.DB = fakePinger{err: stderrors.New("gone")}
	w = h.do(http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestServer_ListComments(t *testing.T) {
	h := newHarness(t)
	h.comments.On("List", mock.Anything).Return([]models.Comment{{ID: 2, Name: "Ana"}}, nil).Once()

	w := h.do(http.MethodGet, "/api/comments", "")
	require.Equal(t, http.StatusOK, w.Code)
	var resp models.CommentsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	require.Len(t, resp.Comments, 1)
	assert.Equal(t, "Ana", resp.Comments[0].Name)
}

func TestServer_ListCommentsEmptyIsArray(t *testing.T) {
	h := newHarness(t)
	h.comments.On("List", mock.Anything).Return(nil, nil).Once()

	w := h.do(http.MethodGet, "/api/comments", "")
	assert.Contains(t, w.Body.String(), `"comments":[]`)
}

func TestServer_ListCommentsFailure(t *testing.T) {
	h := newHarness(t)
	h.comments.On("List", mock.Anything).
		Return(nil, errors.NewDatabaseError("list_comments", stderrors.New("x")).WithUserMessage(service.MsgCommentsFailed))

	w := h.do(http.MethodGet, "/api/comments", "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, service.MsgCommentsFailed, body["message"])
}

func TestServer_CreateComment(t *testing.T) {
	h := newHarness(t)
	in := models.CommentInput{Name: "Ana", Email: "ana@example.com", Text: "Hola"}
	h.comments.On("Create", mock.Anything, in, "pc_1").Return(&models.Comment{ID: 1}, nil).Once()

	w := h.do(http.MethodPost, "/api/comments", `{"name":"Ana","email":"ana@example.com","text":"Hola"}`,
		commentapi.IdempotencyHeader, "pc_1")
	assert.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "Comentario guardado exitosamente", body["message"])
	h.comments.AssertExpectations(t)
}

func TestServer_CreateCommentValidationIsHTTP200(t *testing.T) {
	h := newHarness(t)
	h.comments.On("Create", mock.Anything, mock.Anything, "").
		Return(nil, errors.NewValidationError("name", service.MsgAllFieldsRequired))

	w := h.do(http.MethodPost, "/api/comments", `{"email":"ana@example.com","text":"Hola"}`)
	assert.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "Todos los campos son requeridos", body["message"])
}

func TestServer_CreateCommentStoreFailure(t *testing.T) {
	h := newHarness(t)
	h.comments.On("Create", mock.Anything, mock.Anything, "").
		Return(nil, errors.NewDatabaseError("save_comment", stderrors.New("x")).WithUserMessage(service.MsgCommentSaveFailed))

	w := h.do(http.MethodPost, "/api/comments", `{"name":"Ana","email":"ana@example.com","text":"Hola"}`)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "Error al guardar el comentario", decodeBody(t, w)["message"])
}

func TestServer_CreateCommentMalformedJSON(t *testing.T) {
	h := newHarness(t)
	w := h.do(http.MethodPost, "/api/comments", `{"name":`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	h.comments.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything)
}

func TestServer_Chat(t *testing.T) {
	h := newHarness(t)
	h.assistant.On("Ask", mock.Anything, "¿Cómo comparo precios?").Return("Usa el buscador.", nil).Once()

	w := h.do(http.MethodPost, "/api/chat", `{"message":"¿Cómo comparo precios?"}`)
	assert.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "Usa el buscador.", body["response"])
}

func TestServer_ChatErrors(t *testing.T) {
	h := newHarness(t)
	h.assistant.On("Ask", mock.Anything, "").
		Return("", errors.NewValidationError("message", "El mensaje no puede estar vacío"))
	h.assistant.On("Ask", mock.Anything, "hola").
		Return("", errors.New(errors.ErrCodeAssistant, "failed").WithUserMessage("Error al procesar la solicitud con la IA"))

	w := h.do(http.MethodPost, "/api/chat", `{"message":""}`)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "El mensaje no puede estar vacío", decodeBody(t, w)["message"])

	w = h.do(http.MethodPost, "/api/chat", `{"message":"hola"}`)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "Error al procesar la solicitud con la IA", body["message"])
}

func TestServer_Knowledge(t *testing.T) {
	h := newHarness(t)
	h.knowledge.On("List", mock.Anything).Return([]models.KnowledgeEntry{{ID: 1, Title: "Horario"}}, nil)
	h.knowledge.On("Add", mock.Anything, "Envíos", "Gratis", "").Return(&models.KnowledgeEntry{ID: 2}, nil)
	h.knowledge.On("Add", mock.Anything, "", "x", "").
		Return(nil, errors.NewValidationError("title", "Título y contenido son requeridos"))

	w := h.do(http.MethodGet, "/api/knowledge", "")
	assert.Equal(t, http.StatusOK, w.Code)
	var list models.KnowledgeResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	assert.True(t, list.Success)
	assert.Len(t, list.Knowledge, 1)

	w = h.do(http.MethodPost, "/api/knowledge", `{"title":"Envíos","content":"Gratis"}`)
	assert.Equal(t, "Conocimiento agregado exitosamente", decodeBody(t, w)["message"])

	w = h.do(http.MethodPost, "/api/knowledge", `{"content":"x"}`)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Título y contenido son requeridos", decodeBody(t, w)["message"])
}

func TestServer_ReloadPrompt(t *testing.T) {
	h := newHarness(t)
	h.assistant.On("ReloadTraining").Return(1234, nil).Once()
	h.assistant.On("ReloadTraining").Return(0, stderrors.New("missing")).Once()

	w := h.do(http.MethodPost, "/api/reload-prompt", "")
	body := decodeBody(t, w)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "Prompt de entrenamiento recargado exitosamente", body["message"])
	assert.Equal(t, float64(1234), body["length"])

	w = h.do(http.MethodPost, "/api/reload-prompt", "")
	body = decodeBody(t, w)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "No se pudo cargar el prompt de entrenamiento", body["message"])
}

func TestServer_SupportSession(t *testing.T) {
	h := newHarness(t)
	h.support.On("Send", mock.Anything, "+5491122334455", "").Return(&twilio.Message{SID: "SM9", Status: "queued"}, nil).Once()

	w := h.do(http.MethodPost, "/api/support-session", `{"number":"+5491122334455"}`)
	assert.Equal(t, http.StatusOK, w.Code)
	var resp models.SupportResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, "twilio", resp.Provider)
	require.NotNil(t, resp.Result)
	assert.Equal(t, "SM9", resp.Result.SID)
}

func TestServer_SupportSessionErrors(t *testing.T) {
	h := newHarness(t)
	h.support.On("Send", mock.Anything, "123", "").
		Return(nil, errors.NewValidationError("number", "Número inválido"))
	h.support.On("Send", mock.Anything, "+5491122334455", "").
		Return(nil, errors.NewConfigError("twilio", "missing").WithUserMessage(service.MsgTwilioNotConfigured))

	w := h.do(http.MethodPost, "/api/support-session", `{"number":"123"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = h.do(http.MethodPost, "/api/support-session", `{"number":"+5491122334455"}`)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, service.MsgTwilioNotConfigured, decodeBody(t, w)["message"])
}

func TestServer_BoardPageEscapesHTML(t *testing.T) {
	h := newHarness(t)
	h.comments.On("List", mock.Anything).Return([]models.Comment{{
		ID: 1, Name: "<b>Ana</b>", Email: "ana@example.com", Text: "<script>alert(1)</script>",
		CreatedAt: time.Date(2026, 10, 17, 14, 5, 0, 0, time.UTC),
	}}, nil)

	w := h.do(http.MethodGet, "/", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/html")
	assert.NotContains(t, w.Body.String(), "<script>")
	assert.Contains(t, w.Body.String(), "&lt;script&gt;")
	assert.Contains(t, w.Body.String(), "17 de octubre de 2026, 14:05")
}

func TestServer_Preflight(t *testing.T) {
	h := newHarness(t)
	w := h.do(http.MethodOptions, "/api/comments", "", "Origin", "http://shop.test", "Access-Control-Request-Method", "POST")
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestServer_Metrics(t *testing.T) {
	h := newHarness(t)
	reg := metrics.NewRegistry()
	h.server.metrics = reg
	reg.IncrementCounter(metrics.CommentsCreated, nil, "")
	reg.IncrementCounter(metrics.CommentsCreated, nil, "")
	reg.IncrementCounter(metrics.CommentsDuplicated, nil, "")
	reg.SetGauge(metrics.StreamClients, 3, nil, "")
	reg.IncrementCounter(metrics.SupportMessages, map[string]string{"status": "error"}, "")
	h.assistant.On("Ask", mock.Anything, "hola").Return("Hola", nil).Once()
	h.do(http.MethodPost, "/api/chat", `{"message":"hola"}`)

	w := h.do(http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	body := decodeBody(t, w)
	assert.Contains(t, body, "counters")
	assert.Equal(t, map[string]interface{}{
		"comments_created":    2.0,
		"comments_duplicated": 1.0,
		"stream_clients":      3.0,
		"chat_answered":       1.0,
		"chat_failed":         0.0,
		"support_sent":        0.0,
		"support_failed":      1.0,
	}, body["board"])
}
