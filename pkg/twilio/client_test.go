package twilio

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"precioverdadero/pkg/circuitbreaker"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetLevel(logrus.FatalLevel)
	return l
}

func newTestClient(url string) *Client {
	return NewClient(Config{
		AccountSID:   "AC123",
		AuthToken:    "secret",
		WhatsAppFrom: "+14155238886",
		BaseURL:      url,
		Timeout:      2 * time.Second,
	}, quietLogger())
}

func TestSendWhatsApp(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/2010-04-01/Accounts/AC123/Messages.json", r.URL.Path)
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "AC123", user)
		assert.Equal(t, "secret", pass)

		require.NoError(t, r.ParseForm())
		assert.Equal(t, "whatsapp:+14155238886", r.PostForm.Get("From"))
		assert.Equal(t, "whatsapp:+5491122334455", r.PostForm.Get("To"))
		assert.Equal(t, "Necesito ayuda", r.PostForm.Get("Body"))

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"sid":"SM42","status":"queued","to":"whatsapp:+5491122334455"}`))
	}))
	defer server.Close()

	msg, err := newTestClient(server.URL).SendWhatsApp(context.Background(), "+5491122334455", "Necesito ayuda")
	require.NoError(t, err)
	assert.Equal(t, "SM42", msg.SID)
	assert.Equal(t, "queued", msg.Status)
}

func TestSendWhatsApp_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"code":21211,"message":"The 'To' number is not a valid phone number.","status":400}`))
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).SendWhatsApp(context.Background(), "+5491122334455", "x")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 400, apiErr.StatusCode)
	assert.Equal(t, 21211, apiErr.Code)
	assert.Contains(t, err.Error(), "Twilio API error: 400")
}

func TestSendWhatsApp_ClientErrorsDoNotOpenBreaker(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"message":"bad"}`))
	}))
	defer server.Close()

	c := newTestClient(server.URL)
	for i := 0; i < 8; i++ {
		_, err := c.SendWhatsApp(context.Background(), "+5491122334455", "x")
		assert.False(t, circuitbreaker.IsCircuitBreakerError(err))
	}
	assert.Equal(t, int32(8), atomic.LoadInt32(&calls))
}

func TestSendWhatsApp_ServerErrorsOpenBreaker(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	c := newTestClient(server.URL)
	var last error
	for i := 0; i < 6; i++ {
		_, last = c.SendWhatsApp(context.Background(), "+5491122334455", "x")
	}
	assert.True(t, circuitbreaker.IsCircuitBreakerError(last))
	assert.Equal(t, int32(5), atomic.LoadInt32(&calls))
}
