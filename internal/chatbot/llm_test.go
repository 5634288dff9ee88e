package chatbot

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenAIClientComplete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		var req completionRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "test-model", req.Model)
		assert.Len(t, req.Messages, 2)

		w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"  Hello there.  "}}]}`))
	}))
	defer srv.Close()

	client := NewOpenAIClient(srv.URL+"/", "sk-test", "test-model", time.Second)

	answer, err := client.Complete(context.Background(), []Turn{{Role: "system", Content: "s"}, {Role: "user", Content: "hi"}})
	require.NoError(t, err)
	assert.Equal(t, "Hello there.", answer)
}

func TestOpenAIClientErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":{"message":"rate limited"}}`))
	}))
	defer srv.Close()

	_, err := NewOpenAIClient(srv.URL, "", "m", time.Second).Complete(context.Background(), nil)
	assert.ErrorContains(t, err, "rate limited")

	empty := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices":[]}`))
	}))
	defer empty.Close()

	_, err = NewOpenAIClient(empty.URL, "", "m", time.Second).Complete(context.Background(), nil)
	assert.ErrorContains(t, err, "empty")
}
