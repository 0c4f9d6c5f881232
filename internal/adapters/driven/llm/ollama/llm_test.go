package ollama

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/lorekeeper/internal/core/domain"
	"github.com/custodia-labs/lorekeeper/internal/core/ports/driven"
)

func newTestService(t *testing.T, handler http.HandlerFunc) *LLMService {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewLLMService(LLMConfig{BaseURL: srv.URL, Model: "llama3.2"})
}

func TestGenerate(t *testing.T) {
	svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/generate", r.URL.Path)

		var req generateRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.False(t, req.Stream)
		assert.Equal(t, "say hi", req.Prompt)
		if assert.NotNil(t, req.Options) {
			assert.Equal(t, 10, req.Options.NumPredict)
		}
		_ = json.NewEncoder(w).Encode(generateResponse{Response: "hi", Done: true})
	})

	out, err := svc.Generate(context.Background(), "say hi", driven.GenerateOptions{MaxTokens: 10})
	require.NoError(t, err)
	assert.Equal(t, "hi", out)
}

func TestChat_JSONFormat(t *testing.T) {
	svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)

		var req chatRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "json", req.Format)
		assert.Nil(t, req.Options)
		_ = json.NewEncoder(w).Encode(chatResponse{Message: chatMessage{Role: "assistant", Content: `{"session":1}`}, Done: true})
	})

	out, err := svc.Chat(context.Background(), []driven.ChatMessage{{Role: "user", Content: "q"}}, driven.ChatOptions{JSON: true})
	require.NoError(t, err)
	assert.Equal(t, `{"session":1}`, out)
}

func TestChat_ModelMissing(t *testing.T) {
	svc := newTestService(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"model not found"}`))
	})

	_, err := svc.Chat(context.Background(), []driven.ChatMessage{{Role: "user", Content: "q"}}, driven.ChatOptions{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrLLMUnavailable))
}

func TestPing(t *testing.T) {
	svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/tags", r.URL.Path)
	})
	assert.NoError(t, svc.Ping(context.Background()))
	assert.Equal(t, "llama3.2", svc.ModelName())
}
