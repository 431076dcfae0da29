package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/regwatch/internal/model"
)

func TestSlack_PostsText(t *testing.T) {
	var payload map[string]string
	var contentType string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		contentType = r.Header.Get("Content-Type")
		_ = json.NewDecoder(r.Body).Decode(&payload)
		_, _ = w.Write([]byte("ok"))
	}))
	defer server.Close()

	s := NewSlack(server.URL, Formatter{})
	require.NoError(t, s.ChangeDetected(context.Background(), testChangeAlert()))

	assert.Equal(t, "application/json", contentType)
	assert.Contains(t, payload["text"], "Change ID: c-123")
	assert.Equal(t, "slack", s.Name())
}

func TestSlack_ErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "invalid_token", http.StatusForbidden)
	}))
	defer server.Close()

	err := NewSlack(server.URL, Formatter{}).ScraperError(context.Background(), model.ErrorAlert{Message: "HTTP 500"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HTTP 403")
}

func TestSlack_Unreachable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	err := NewSlack(url, Formatter{}).ScraperError(context.Background(), model.ErrorAlert{Message: "x"})
	assert.Error(t, err)
}
