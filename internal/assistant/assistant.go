package assistant

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"precioverdadero/internal/errors"
	"precioverdadero/internal/models"
	"precioverdadero/internal/tracing"
	"precioverdadero/pkg/circuitbreaker"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
)

const (
	MsgEmptyMessage  = "El mensaje no puede estar vacío"
	MsgGeneric       = "Error al procesar la solicitud con la IA"
	MsgAuth          = "Error de autenticación: La API key puede ser inválida o no tener permisos suficientes. Verifica tu API key en Google AI Studio (https://aistudio.google.com/app/apikey)."
	MsgEmptyAnswer   = "La respuesta de Gemini no contiene texto. Puede ser un problema de contenido filtrado o de configuración."
	MsgUnavailable   = "El asistente no está disponible en este momento. Intenta de nuevo en unos minutos."
	MsgNotConfigured = "El asistente no está configurado (falta GEMINI_API_KEY)"
)

const MsgQuota = "⚠️ Se ha excedido la cuota de la API de Gemini.\n\n" +
	"Posibles causas:\n" +
	"• La API key es nueva y necesita activación\n" +
	"• Se alcanzó el límite de solicitudes por minuto\n" +
	"• El proyecto de Google Cloud no tiene cuota habilitada\n\n" +
	"Solución: Ve a https://aistudio.google.com/app/apikey y verifica el estado de tu API key. Espera unos minutos antes de intentar de nuevo."

var ErrEmptyResponse = stderrors.New("response contains no text")

// BlockedError means the model refused the prompt.
type BlockedError struct {
	Reason string
}

func (e *BlockedError) Error() string {
	return "content blocked: " + e.Reason
}

// FriendlyMessage turns an LLM failure into the message shown to users.
func FriendlyMessage(err error) string {
	var blocked *BlockedError
	switch {
	case err == nil:
		return ""
	case stderrors.As(err, &blocked):
		return "El contenido fue bloqueado por: " + blocked.Reason
	case stderrors.Is(err, ErrEmptyResponse):
		return MsgEmptyAnswer
	case circuitbreaker.IsCircuitBreakerError(err):
		return MsgUnavailable
	}

	msg := err.Error()
	switch {
	case strings.TrimSpace(msg) == "":
		return MsgGeneric
	case strings.Contains(msg, "API key") || strings.Contains(msg, "authentication") || strings.Contains(msg, "401"):
		return MsgAuth
	case strings.Contains(msg, "quota") || strings.Contains(msg, "429") || strings.Contains(msg, "RESOURCE_EXHAUSTED"):
		return MsgQuota
	default:
		return "Error al comunicarse con Gemini API: " + msg
	}
}

// KnowledgeSource lists the entries the assistant may cite.
type KnowledgeSource interface {
	ListKnowledge(ctx context.Context) ([]models.KnowledgeEntry, error)
}

// History records answered questions.
type History interface {
	SaveChatExchange(ctx context.Context, userMessage, aiResponse string) error
}

type Assistant struct {
	llm       LLM
	knowledge KnowledgeSource
	history   History
	training  *TrainingPrompt
	breaker   *circuitbreaker.CircuitBreaker
	timeout   time.Duration
	logger    *logrus.Logger
}

func New(llm LLM, knowledge KnowledgeSource, history History, training *TrainingPrompt,
	timeout time.Duration, logger *logrus.Logger) *Assistant {
	return &Assistant{
		llm:       llm,
		knowledge: knowledge,
		history:   history,
		training:  training,
		breaker:   circuitbreaker.NewWithLogger("gemini", 5, 30*time.Second, logger),
		timeout:   timeout,
		logger:    logger,
	}
}

// Ask answers one question. Errors are AppErrors carrying a Spanish user
// message.
func (a *Assistant) Ask(ctx context.Context, message string) (string, error) {
	if strings.TrimSpace(message) == "" {
		return "", errors.NewValidationError("message", MsgEmptyMessage)
	}
	if a.llm == nil {
		return "", errors.New(errors.ErrCodeAssistant, "assistant not configured").WithUserMessage(MsgNotConfigured)
	}

	ctx, span := tracing.StartSpan(ctx, "assistant.ask")
	defer span.End()

	entries, err := a.knowledge.ListKnowledge(ctx)
	if err != nil {
		a.logger.WithError(err).Warn("Failed to load knowledge, answering without it")
		entries = nil
	}

	var training string
	if a.training != nil {
		training = a.training.Text()
		if training == "" {
			if _, err := a.training.Reload(); err == nil {
				training = a.training.Text()
			}
		}
	}

	prompt := BuildPrompt(BasePrompt, training, entries, message)
	tracing.AddSpanAttributes(ctx,
		attribute.Int("prompt_length", len(prompt)),
		attribute.Int("knowledge_entries", len(entries)))

	var answer string
	start := time.Now()
	err = a.breaker.Execute(ctx, func(ctx context.Context) error {
		callCtx, cancel := ctx, context.CancelFunc(func() {})
		if a.timeout > 0 {
			callCtx, cancel = context.WithTimeout(ctx, a.timeout)
		}
		defer cancel()
		var gerr error
		answer, gerr = a.llm.Generate(callCtx, prompt)
		return gerr
	})
	if err != nil {
		tracing.RecordError(ctx, err)
		a.logger.WithError(err).WithField("duration_ms", time.Since(start).Milliseconds()).Error("Assistant request failed")
		return "", errors.Wrap(err, errors.ErrCodeAssistant, "assistant request failed").
			WithUserMessage(FriendlyMessage(err))
	}

	a.logger.WithFields(logrus.Fields{
		"duration_ms":     time.Since(start).Milliseconds(),
		"response_length": len(answer),
	}).Info("Assistant answered")

	if a.history != nil {
		if err := a.history.SaveChatExchange(ctx, message, answer); err != nil {
			a.logger.WithError(err).Warn("Failed to save chat exchange")
		}
	}
	return answer, nil
}

// ReloadTraining re-reads the training manual.
func (a *Assistant) ReloadTraining() (int, error) {
	if a.training == nil {
		return 0, fmt.Errorf("no training prompt configured")
	}
	return a.training.Reload()
}
