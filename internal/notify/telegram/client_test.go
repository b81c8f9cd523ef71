package telegram_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slok/deadliner/internal/notify/telegram"
)

func TestClientGetUpdates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/bottest-token/getUpdates", r.URL.Path)
		assert.Equal(t, "5", r.URL.Query().Get("offset"))
		assert.Equal(t, "20", r.URL.Query().Get("timeout"))

		_, _ = w.Write([]byte(`{"ok": true, "result": [
			{"update_id": 10, "message": {"message_id": 1, "text": "/start", "from": {"id": 100, "username": "alice"}, "chat": {"id": 100, "type": "private"}}}
		]}`))
	}))
	defer srv.Close()

	client, err := telegram.NewClient(telegram.ClientConfig{Token: "test-token", BaseURL: srv.URL})
	require.NoError(t, err)

	updates, err := client.GetUpdates(context.Background(), 5, 20*time.Second)
	require.NoError(t, err)

	require.Len(t, updates, 1)
	assert.Equal(t, 10, updates[0].UpdateID)
	require.NotNil(t, updates[0].Message)
	assert.Equal(t, "/start", updates[0].Message.Text)
	assert.Equal(t, int64(100), updates[0].Message.From.ID)
}

func TestClientSendMessage(t *testing.T) {
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/bottest-token/sendMessage", r.URL.Path)
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &gotBody)

		_, _ = w.Write([]byte(`{"ok": true, "result": {"message_id": 1}}`))
	}))
	defer srv.Close()

	client, err := telegram.NewClient(telegram.ClientConfig{Token: "test-token", BaseURL: srv.URL})
	require.NoError(t, err)

	err = client.SendMessage(context.Background(), 42, "hello")
	require.NoError(t, err)

	assert.Equal(t, float64(42), gotBody["chat_id"])
	assert.Equal(t, "hello", gotBody["text"])
}

func TestClientSendMessageAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"ok": false, "description": "chat not found"}`))
	}))
	defer srv.Close()

	client, err := telegram.NewClient(telegram.ClientConfig{Token: "test-token", BaseURL: srv.URL})
	require.NoError(t, err)

	err = client.SendMessage(context.Background(), 42, "hello")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chat not found")
}

func TestClientHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	client, err := telegram.NewClient(telegram.ClientConfig{Token: "test-token", BaseURL: srv.URL})
	require.NoError(t, err)

	_, err = client.GetUpdates(context.Background(), 0, time.Second)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "telegram http status")
}

func TestNewClientRequiresToken(t *testing.T) {
	_, err := telegram.NewClient(telegram.ClientConfig{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "token is required")
}
