package privacy

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMaskPhoneNumber(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"+5491122334455", "+*********4455"},
		{"whatsapp:+14155238886", "+*******8886"},
		{"1234567890", "******7890"},
		{"", ""},
		{"+123", "+***"},
		{"+12345", "+*2345"},
		{"1234", "****"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, MaskPhoneNumber(tt.input), tt.input)
	}
}

func TestMaskEmail(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"maria.lopez@correo.com", "ma*********@correo.com"},
		{"a@b.com", "*@b.com"},
		{"ñu@b.com", "**@b.com"},
		{"ñandú@b.com", "ña***@b.com"},
		{"no-at-sign", "**********"},
		{"", ""},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, MaskEmail(tt.input), tt.input)
	}
}

func TestMaskName(t *testing.T) {
	assert.Equal(t, "M**** L****", MaskName("María López"))
	assert.Equal(t, "A**", MaskName("  Ana "))
	assert.Equal(t, "", MaskName(""))
}

func TestMaskKey(t *testing.T) {
	assert.Equal(t, "", MaskKey(""))
	assert.Equal(t, "****", MaskKey("abcd"))
	assert.Equal(t, "****5678abcd", MaskKey("1234" + "5678abcd"))
}

func TestMaskSensitiveFields(t *testing.T) {
	assert.Nil(t, MaskSensitiveFields(nil))

	masked := MaskSensitiveFields(map[string]interface{}{
		"email":           "ana@b.com",
		"name":            "Ana",
		"number":          "+5491122334455",
		"idempotency_key": "0192c1d4-aaaa-bbbb",
		"status":          200,
		"path":            "/api/comments",
	})

	assert.Equal(t, "an*@b.com", masked["email"])
	assert.Equal(t, "A**", masked["name"])
	assert.Equal(t, "+*********4455", masked["number"])
	assert.Equal(t, "**********aaa-bbbb", masked["idempotency_key"])
	assert.Equal(t, 200, masked["status"])
	assert.Equal(t, "/api/comments", masked["path"])
}
