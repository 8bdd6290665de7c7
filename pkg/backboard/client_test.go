package backboard

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewClient(server.URL, "test-key", slog.Default())
}

func TestCreateAssistantSendsJSON(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/assistants", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "test-key", r.Header.Get("X-API-Key"))

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "CivicSim Agent", body["name"])
		assert.Equal(t, "You respond with valid JSON only.", body["system_prompt"])

		_ = json.NewEncoder(w).Encode(map[string]string{"assistant_id": "asst-1"})
	})

	id, err := client.CreateAssistant(context.Background(), "CivicSim Agent", "You respond with valid JSON only.")
	require.NoError(t, err)
	assert.Equal(t, "asst-1", id)
}

func TestCreateAssistantAcceptsPlainID(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"id": "asst-2"})
	})

	id, err := client.CreateAssistant(context.Background(), "n", "p")
	require.NoError(t, err)
	assert.Equal(t, "asst-2", id)
}

func TestCreateThreadSendsEmptyJSONBody(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/assistants/asst-1/threads", r.URL.Path)

		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Empty(t, body, "thread creation must post an explicit empty JSON object")

		_ = json.NewEncoder(w).Encode(map[string]string{"thread_id": "thr-1"})
	})

	id, err := client.CreateThread(context.Background(), "asst-1")
	require.NoError(t, err)
	assert.Equal(t, "thr-1", id)
}

func TestSendMessageUsesFormEncoding(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/threads/thr-1/messages", r.URL.Path)
		assert.Equal(t, "application/x-www-form-urlencoded", r.Header.Get("Content-Type"))

		require.NoError(t, r.ParseForm())
		assert.Equal(t, "hello agents", r.PostForm.Get("content"))
		assert.Equal(t, "false", r.PostForm.Get("stream"))
		assert.Equal(t, "Auto", r.PostForm.Get("memory"))
		assert.Equal(t, "gemini-2.5-flash", r.PostForm.Get("model"))
		assert.Equal(t, "google", r.PostForm.Get("provider"))

		_ = json.NewEncoder(w).Encode(map[string]string{"content": "a reply"})
	})

	reply, err := client.SendMessage(context.Background(), "thr-1", "hello agents", "", "")
	require.NoError(t, err)
	assert.Equal(t, "a reply", reply)
}

func TestSendMessageFallsBackToTextField(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"text": "alt reply"})
	})

	reply, err := client.SendMessage(context.Background(), "thr-1", "hi", "", "")
	require.NoError(t, err)
	assert.Equal(t, "alt reply", reply)
}

func TestSendMessageEmptyContentNeverHitsUpstream(t *testing.T) {
	called := false
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		called = true
	})

	_, err := client.SendMessage(context.Background(), "thr-1", "   ", "", "")
	require.ErrorIs(t, err, ErrEmptyContent)
	assert.False(t, called)
}

func TestNon2xxSurfacesStatusError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("upstream exploded"))
	})

	_, err := client.SendMessage(context.Background(), "thr-1", "hi", "", "")
	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusBadGateway, statusErr.Status)
	assert.Contains(t, statusErr.Body, "upstream exploded")
}

func TestMissingReplyContentIsAnError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	})

	_, err := client.SendMessage(context.Background(), "thr-1", "hi", "", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing content")
}
