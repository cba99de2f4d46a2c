package models

import "time"

const (
	CategoryUserManual    = "manual_usuario"
	CategoryCompanyManual = "manual_empresa"
	CategoryGeneral       = "general"
)

// KnowledgeCategories lists the accepted categories in display order.
var KnowledgeCategories = []string{CategoryUserManual, CategoryCompanyManual, CategoryGeneral}

// KnowledgeEntry is a fact the assistant may cite.
type KnowledgeEntry struct {
	ID        int64     `json:"id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	Category  string    `json:"category"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ChatExchange is one question and the assistant's answer.
type ChatExchange struct {
	ID          int64     `json:"id"`
	UserMessage string    `json:"user_message"`
	AIResponse  string    `json:"ai_response"`
	CreatedAt   time.Time `json:"created_at"`
}

type ChatRequest struct {
	Message string `json:"message"`
}

type ChatResponse struct {
	Success  bool   `json:"success"`
	Message  string `json:"message,omitempty"`
	Response string `json:"response,omitempty"`
}

type SupportRequest struct {
	Number  string `json:"number"`
	Message string `json:"message"`
}

type SupportResponse struct {
	Success  bool           `json:"success"`
	Message  string         `json:"message,omitempty"`
	Provider string         `json:"provider,omitempty"`
	Result   *SupportResult `json:"result,omitempty"`
}

type SupportResult struct {
	SID    string `json:"sid"`
	Status string `json:"status,omitempty"`
}

type KnowledgeInput struct {
	Title    string `json:"title"`
	Content  string `json:"content"`
	Category string `json:"category"`
}

type KnowledgeResponse struct {
	Success   bool             `json:"success"`
	Message   string           `json:"message,omitempty"`
	Knowledge []KnowledgeEntry `json:"knowledge"`
}

// ReloadResponse answers a training prompt reload.
type ReloadResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Length  int    `json:"length,omitempty"`
}
