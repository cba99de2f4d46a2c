package assistant

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	"precioverdadero/internal/config"
	"precioverdadero/internal/models"

	"github.com/sirupsen/logrus"
)

// BasePrompt frames every conversation.
const BasePrompt = `Eres un asistente virtual amigable y profesional para la empresa "Precio Verdadero". 
Tu objetivo es ayudar a los usuarios a encontrar precios justos y transparentes.

INSTRUCCIONES:
- Sé cortés, profesional y útil
- Responde en español
- Si no sabes algo, admítelo honestamente
- Proporciona información basada en el conocimiento de la empresa cuando sea relevante
- Mantén las respuestas concisas pero informativas

CONTEXTO DE LA EMPRESA:
Precio Verdadero es una plataforma dedicada a proporcionar transparencia en los precios, 
ayudando a los usuarios a encontrar el precio real de productos y servicios sin sorpresas.

`

// KnowledgeContext renders knowledge entries for the prompt. It returns ""
// for an empty list.
func KnowledgeContext(entries []models.KnowledgeEntry) string {
	if len(entries) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("\n\nINFORMACIÓN DE LA EMPRESA Y MANUALES:\n")
	b.WriteString("==========================================\n\n")
	for _, e := range entries {
		fmt.Fprintf(&b, "[%s] %s:\n%s\n\n", strings.ToUpper(e.Category), e.Title, e.Content)
	}
	return b.String()
}

// BuildPrompt assembles base prompt, training manual, knowledge and the
// user's question. Empty sections are left out.
func BuildPrompt(base, training string, knowledge []models.KnowledgeEntry, question string) string {
	var b strings.Builder
	b.WriteString(base)
	if training != "" {
		b.WriteString("\n\n=== MANUAL DE ENTRENAMIENTO ===\n")
		b.WriteString(training)
		b.WriteString("\n")
	}
	if kc := KnowledgeContext(knowledge); kc != "" {
		b.WriteString("\n\n=== CONOCIMIENTO ADICIONAL DE LA BASE DE DATOS ===\n")
		b.WriteString(kc)
	}
	b.WriteString("\n\n=== PREGUNTA DEL USUARIO ===\n")
	b.WriteString(question)
	b.WriteString("\n\n=== RESPUESTA ===\nResponde de manera útil y profesional:")
	return b.String()
}

// TrainingPrompt holds the contents of the training manual file.
type TrainingPrompt struct {
	path   string
	logger *logrus.Logger

	mu   sync.RWMutex
	text string
}

func NewTrainingPrompt(path string, logger *logrus.Logger) *TrainingPrompt {
	return &TrainingPrompt{path: path, logger: logger}
}

// Reload reads the file again. On failure the previous text is kept.
func (p *TrainingPrompt) Reload() (int, error) {
	if p.path == "" {
		return 0, fmt.Errorf("no training prompt file configured")
	}
	data, err := os.ReadFile(p.path)
	if err != nil {
		return 0, fmt.Errorf("failed to read training prompt: %w", err)
	}
	text := string(data)
	if strings.TrimSpace(text) == "" {
		return 0, fmt.Errorf("training prompt %s is empty", p.path)
	}

	p.mu.Lock()
	p.text = text
	p.mu.Unlock()

	p.logger.WithFields(logrus.Fields{
		"path":   p.path,
		"length": len(text),
	}).Info("Training prompt loaded")
	return len(text), nil
}

func (p *TrainingPrompt) Text() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.text
}

// Watch reloads the prompt whenever the file changes, until ctx is done.
func (p *TrainingPrompt) Watch(ctx context.Context) error {
	if p.path == "" {
		<-ctx.Done()
		return nil
	}
	return config.NewFileWatcher(p.path, p.logger, func() {
		if _, err := p.Reload(); err != nil {
			p.logger.WithError(err).Warn("Training prompt reload failed, keeping previous version")
		}
	}).Run(ctx)
}
