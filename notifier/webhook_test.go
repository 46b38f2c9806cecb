package notifier

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

func TestNewWebhookDisabled(t *testing.T) {
	assert.Nil(t, NewWebhook(""))
}

func TestSendPostsJSON(t *testing.T) {
	got := make(chan WebhookMessage, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		var msg WebhookMessage
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&msg))
		got <- msg
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	wh := NewWebhook(srv.URL)
	require.NoError(t, wh.Send(context.Background(), "service 'x' not found", "warning"))

	msg := <-got
	assert.Equal(t, "[edgegate] service 'x' not found", msg.Text)
	assert.Equal(t, "warning", msg.Severity)
}

func TestSendReportsBadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	err := NewWebhook(srv.URL).Send(context.Background(), "boom", "error")
	assert.ErrorContains(t, err, "500")
}

func TestAlertIsAsync(t *testing.T) {
	hit := make(chan struct{}, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hit <- struct{}{}
	}))
	defer srv.Close()

	NewWebhook(srv.URL).Alert("hello", "info")

	select {
	case <-hit:
	case <-time.After(2 * time.Second):
		t.Fatal("webhook was never called")
	}
}
