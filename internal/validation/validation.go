package validation

import (
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"unicode/utf8"

	"precioverdadero/internal/errors"
	"precioverdadero/internal/models"
)

// Column limits of the comments and ai_knowledge tables.
const (
	MaxNameLength    = 255
	MaxEmailLength   = 255
	MaxTitleLength   = 255
	MaxCommentLength = 10000
	MaxMessageLength = 4000
)

// Field names carried in the "field" context of validation errors.
const (
	FieldName   = "name"
	FieldEmail  = "email"
	FieldText   = "text"
	FieldNumber = "number"
)

// ReasonMissing and ReasonMalformed are carried in the "reason" context.
const (
	ReasonMissing   = "missing"
	ReasonMalformed = "malformed"
	ReasonTooLong   = "too_long"
)

var (
	emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	e164Pattern  = regexp.MustCompile(`^\+\d{8,15}$`)
)

// IsBlank reports whether s holds nothing but whitespace.
func IsBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}

// IsEmail applies the loose address check the comment form uses.
func IsEmail(s string) bool {
	return emailPattern.MatchString(s)
}

// Reason returns the reason a validation error was raised, or "".
func Reason(err error) string {
	appErr, ok := errors.As(err)
	if !ok || appErr.Code != errors.ErrCodeValidationFailed {
		return ""
	}
	reason, _ := appErr.Context["reason"].(string)
	return reason
}

func failure(field, reason, message string) *errors.AppError {
	return errors.NewValidationError(field, message).WithContext("reason", reason)
}

// ValidateComment checks a comment before any I/O is attempted. Fields are
// not modified; blank detection ignores surrounding whitespace.
func ValidateComment(in models.CommentInput, missingMessage string) error {
	for _, f := range []struct{ name, value string }{
		{FieldName, in.Name},
		{FieldEmail, in.Email},
		{FieldText, in.Text},
	} {
		if IsBlank(f.value) {
			return failure(f.name, ReasonMissing, missingMessage)
		}
	}

	if !IsEmail(strings.TrimSpace(in.Email)) {
		return failure(FieldEmail, ReasonMalformed, "Email inválido")
	}

	if err := ValidateStringLength(in.Name, FieldName, 1, MaxNameLength); err != nil {
		return err
	}
	if err := ValidateStringLength(in.Email, FieldEmail, 1, MaxEmailLength); err != nil {
		return err
	}
	return ValidateStringLength(in.Text, FieldText, 1, MaxCommentLength)
}

// ValidatePhoneNumber requires E.164 form, for example +5491122334455.
func ValidatePhoneNumber(number string) error {
	if IsBlank(number) {
		return failure(FieldNumber, ReasonMissing,
			"Se requiere el campo `number` en formato E.164 (ej. +54911xxxxxxx).")
	}
	if !e164Pattern.MatchString(number) {
		return failure(FieldNumber, ReasonMalformed,
			"Número inválido. Debe estar en formato E.164, por ejemplo: +54911xxxxxxx")
	}
	return nil
}

// ValidateKnowledge checks a knowledge entry and returns its effective category.
func ValidateKnowledge(title, content, category string) (string, error) {
	if IsBlank(title) || IsBlank(content) {
		return "", failure("title", ReasonMissing, "Título y contenido son requeridos")
	}
	if err := ValidateStringLength(title, "title", 1, MaxTitleLength); err != nil {
		return "", err
	}
	if category == "" {
		return models.CategoryGeneral, nil
	}
	for _, c := range models.KnowledgeCategories {
		if c == category {
			return category, nil
		}
	}
	return "", failure("category", ReasonMalformed,
		fmt.Sprintf("Categoría inválida. Usa una de: %s", strings.Join(models.KnowledgeCategories, ", ")))
}

// ValidateHTTPRequestSize validates incoming HTTP request size
func ValidateHTTPRequestSize(r *http.Request, maxSizeBytes int64) error {
	if r.ContentLength > maxSizeBytes {
		return errors.New(errors.ErrCodeInvalidInput,
			fmt.Sprintf("request too large: %d bytes (max %d bytes)", r.ContentLength, maxSizeBytes)).
			WithUserMessage("La solicitud es demasiado grande")
	}
	return nil
}

// ValidateStringLength counts runes, not bytes.
func ValidateStringLength(value, fieldName string, minLength, maxLength int) error {
	n := utf8.RuneCountInString(value)
	if n < minLength {
		return failure(fieldName, ReasonMissing,
			fmt.Sprintf("%s demasiado corto (mínimo %d caracteres)", fieldName, minLength))
	}
	if n > maxLength {
		return failure(fieldName, ReasonTooLong,
			fmt.Sprintf("%s demasiado largo (máximo %d caracteres)", fieldName, maxLength))
	}
	return nil
}

// ValidateRetentionDays validates data retention period
func ValidateRetentionDays(days int) error {
	if days < 1 {
		return errors.New(errors.ErrCodeInvalidInput, "retention days must be at least 1")
	}
	if days > 3650 {
		return errors.New(errors.ErrCodeInvalidInput, "retention days too large (max 3650)")
	}
	return nil
}
