package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeepSeekProvider_RequestsJSONAndReturnsContent(t *testing.T) {
	var got DeepSeekRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"{\"facility_name\":\"Oak Manor\"}"}}]}`))
	}))
	defer srv.Close()

	p := &DeepSeekProvider{BaseURL: srv.URL}
	out, err := p.GenerateResponse(context.Background(), "user prompt", "system prompt", map[string]interface{}{"api_key": "test-key"})
	require.NoError(t, err)

	assert.Equal(t, `{"facility_name":"Oak Manor"}`, out)
	assert.Equal(t, "json_object", got.ResponseFormat.Type)
	assert.Equal(t, "deepseek-chat", got.Model)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "system", got.Messages[0].Role)
	assert.Equal(t, "user prompt", got.Messages[1].Content)
}

func TestDeepSeekProvider_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`rate limited`))
	}))
	defer srv.Close()

	p := &DeepSeekProvider{BaseURL: srv.URL}
	_, err := p.GenerateResponse(context.Background(), "p", "s", map[string]interface{}{"api_key": "k"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status=429")
}

func TestNewProvider(t *testing.T) {
	p, err := NewProvider("deepseek", "")
	require.NoError(t, err)
	assert.Equal(t, "deepseek/deepseek-chat", p.Name())

	p, err = NewProvider("", "gemini-2.0-flash")
	require.NoError(t, err)
	assert.Equal(t, "gemini/gemini-2.0-flash", p.Name())

	_, err = NewProvider("openai", "")
	assert.Error(t, err)
}
