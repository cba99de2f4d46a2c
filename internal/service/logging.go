package service

import (
	"context"

	"precioverdadero/internal/models"
	"precioverdadero/internal/privacy"

	"github.com/sirupsen/logrus"
)

type verboseKey struct{}

// WithVerbose marks ctx so that personal data is logged unmasked.
func WithVerbose(ctx context.Context, verbose bool) context.Context {
	return context.WithValue(ctx, verboseKey{}, verbose)
}

func IsVerboseLogging(ctx context.Context) bool {
	v, _ := ctx.Value(verboseKey{}).(bool)
	return v
}

// SanitizeContent hides free text entirely.
func SanitizeContent(content string) string {
	if content == "" {
		return ""
	}
	return "[hidden]"
}

// CommentFields returns log fields for a comment, masked unless ctx is verbose.
func CommentFields(ctx context.Context, in models.CommentInput) logrus.Fields {
	if IsVerboseLogging(ctx) {
		return logrus.Fields{
			LogFieldAuthor: in.Name,
			LogFieldEmail:  in.Email,
			"text":         in.Text,
		}
	}
	return logrus.Fields{
		LogFieldAuthor: privacy.MaskName(in.Name),
		LogFieldEmail:  privacy.MaskEmail(in.Email),
		"text":         SanitizeContent(in.Text),
	}
}

// SupportFields returns log fields for a support relay request.
func SupportFields(ctx context.Context, number, message string) logrus.Fields {
	if IsVerboseLogging(ctx) {
		return logrus.Fields{LogFieldNumber: number, "message": message}
	}
	return logrus.Fields{
		LogFieldNumber: privacy.MaskPhoneNumber(number),
		"message":      SanitizeContent(message),
	}
}
