package middleware

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"precioverdadero/internal/httputil"
	"precioverdadero/internal/privacy"
	"precioverdadero/internal/service"
	"precioverdadero/internal/tracing"

	"github.com/sirupsen/logrus"
)

// DetailedLoggingConfig controls what gets logged
type DetailedLoggingConfig struct {
	LogRequestHeaders bool
	LogRequestBody    bool
	MaxBodySize       int
	TrustProxy        bool
	SensitiveHeaders  []string
	SkipEndpoints     []string
}

func DefaultDetailedLoggingConfig() DetailedLoggingConfig {
	return DetailedLoggingConfig{
		LogRequestHeaders: true,
		LogRequestBody:    true,
		MaxBodySize:       4096,
		SensitiveHeaders: []string{
			"authorization", "cookie", "idempotency-key",
		},
		SkipEndpoints: []string{
			"/metrics", "/health", "/api/stream",
		},
	}
}

// DetailedLogging logs request headers and JSON bodies at debug level.
// Personal fields in the body are masked.
func DetailedLogging(logger *logrus.Logger, config DetailedLoggingConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			for _, skip := range config.SkipEndpoints {
				if strings.HasPrefix(r.URL.Path, skip) {
					next.ServeHTTP(w, r)
					return
				}
			}
			if logger.IsLevelEnabled(logrus.DebugLevel) {
				logRequestDetails(logger, r, config)
			}
			next.ServeHTTP(w, r)
		})
	}
}

func logRequestDetails(logger *logrus.Logger, r *http.Request, config DetailedLoggingConfig) {
	info := tracing.GetRequestInfo(r.Context())
	fields := logrus.Fields{
		service.LogFieldRequestID: info.RequestID,
		service.LogFieldMethod:    r.Method,
		service.LogFieldURL:       r.URL.String(),
		service.LogFieldRemoteIP:  httputil.ClientIP(r, config.TrustProxy),
		service.LogFieldUserAgent: r.UserAgent(),
		"content_length":          r.ContentLength,
	}

	if config.LogRequestHeaders {
		headers := make(map[string]string, len(r.Header))
		for name, values := range r.Header {
			if isSensitiveHeader(name, config.SensitiveHeaders) {
				headers[name] = "***MASKED***"
			} else {
				headers[name] = strings.Join(values, ", ")
			}
		}
		fields["request_headers"] = headers
	}

	if config.LogRequestBody && isJSON(r) && r.Body != nil &&
		r.ContentLength > 0 && r.ContentLength <= int64(config.MaxBodySize) {
		body, err := io.ReadAll(r.Body)
		r.Body = io.NopCloser(bytes.NewReader(body))
		if err == nil {
			fields["request_body"] = maskBody(body)
		}
	}

	logger.WithFields(fields).Debug("Detailed request logging")
}

// maskBody masks known personal fields of a JSON object body. Anything
// else is summarised by size only.
func maskBody(body []byte) interface{} {
	var obj map[string]interface{}
	if err := json.Unmarshal(body, &obj); err != nil {
		return fmt.Sprintf("***UNPARSED*** (size: %d bytes)", len(body))
	}
	masked := privacy.MaskSensitiveFields(obj)
	for _, k := range []string{"text", "message", "content"} {
		if s, ok := masked[k].(string); ok {
			masked[k] = service.SanitizeContent(s)
		}
	}
	return masked
}

func isSensitiveHeader(headerName string, sensitiveHeaders []string) bool {
	for _, sensitive := range sensitiveHeaders {
		if strings.EqualFold(sensitive, headerName) {
			return true
		}
	}
	return false
}

func isJSON(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Content-Type"), "application/json")
}
