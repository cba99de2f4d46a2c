package privacy

import (
	"strings"
	"unicode/utf8"

	"precioverdadero/internal/constants"
)

// MaskPhoneNumber masks a phone number showing only the last 4 digits
// Example: "+1234567890" -> "+******7890"
func MaskPhoneNumber(phone string) string {
	if phone == "" {
		return ""
	}

	phone = strings.TrimPrefix(phone, "whatsapp:")
	if strings.HasPrefix(phone, "+") {
		if len(phone) <= 5 {
			return "+" + strings.Repeat("*", len(phone)-1)
		}
		return "+" + strings.Repeat("*", len(phone)-5) + phone[len(phone)-4:]
	}
	return maskString(phone, 4)
}

// MaskEmail keeps the first characters of the local part and the domain.
// Example: "maria.lopez@correo.com" -> "ma*********@correo.com"
func MaskEmail(email string) string {
	if email == "" {
		return ""
	}
	at := strings.LastIndex(email, "@")
	if at <= 0 {
		return maskString(email, 0)
	}
	local, domain := email[:at], email[at:]
	keep := constants.DefaultEmailMaskLength
	n := utf8.RuneCountInString(local)
	if n <= keep {
		return strings.Repeat("*", n) + domain
	}
	runes := []rune(local)
	return string(runes[:keep]) + strings.Repeat("*", n-keep) + domain
}

// MaskName keeps the initial of each word.
// Example: "María López" -> "M**** L****"
func MaskName(name string) string {
	words := strings.Fields(name)
	for i, w := range words {
		r, size := utf8.DecodeRuneInString(w)
		words[i] = string(r) + strings.Repeat("*", utf8.RuneCountInString(w[size:]))
	}
	return strings.Join(words, " ")
}

// MaskKey shortens opaque identifiers such as idempotency keys.
func MaskKey(key string) string {
	if key == "" {
		return ""
	}
	return maskString(key, 8)
}

// maskString masks a string showing only the last n characters
func maskString(s string, keepLast int) string {
	n := utf8.RuneCountInString(s)
	if n <= keepLast {
		return strings.Repeat("*", n)
	}
	runes := []rune(s)
	return strings.Repeat("*", n-keepLast) + string(runes[n-keepLast:])
}

// MaskSensitiveFields applies appropriate masking to common logging fields
func MaskSensitiveFields(fields map[string]interface{}) map[string]interface{} {
	if fields == nil {
		return nil
	}

	masked := make(map[string]interface{}, len(fields))
	for k, v := range fields {
		s, ok := v.(string)
		if !ok {
			masked[k] = v
			continue
		}
		switch k {
		case "phone", "number", "from", "to":
			masked[k] = MaskPhoneNumber(s)
		case "email":
			masked[k] = MaskEmail(s)
		case "name", "author":
			masked[k] = MaskName(s)
		case "idempotency_key":
			masked[k] = MaskKey(s)
		default:
			masked[k] = v
		}
	}

	return masked
}
