package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhisek/checkin/internal/domain"
)

func fastRetry() RetryConfig {
	return RetryConfig{Attempts: 3, InitialWait: time.Millisecond}
}

func TestWebhookSender_Post(t *testing.T) {
	var got Message
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	s := NewWebhookSender(WebhookConfig{URL: server.URL, Token: "secret"}, fastRetry())
	defer s.Close()

	err := s.Send(context.Background(), Message{ID: "n1", GuardianID: "g1", Type: domain.NotifyChildLocked, Title: "Device Locked"})
	require.NoError(t, err)
	assert.Equal(t, "n1", got.ID)
	assert.Equal(t, domain.NotifyChildLocked, got.Type)
}

func TestWebhookSender_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	s := NewWebhookSender(WebhookConfig{URL: server.URL}, fastRetry())
	defer s.Close()

	require.NoError(t, s.Send(context.Background(), Message{ID: "n1"}))
	assert.Equal(t, int32(3), calls.Load())
}

func TestWebhookSender_ClientErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	s := NewWebhookSender(WebhookConfig{URL: server.URL}, fastRetry())
	defer s.Close()

	err := s.Send(context.Background(), Message{ID: "n1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "400")
	assert.Equal(t, int32(1), calls.Load())
}
