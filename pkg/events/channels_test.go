package events

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vladzaharia/dangerprep-sub010/pkg/errdefs"
)

// TestWebhookChannelSend tests payload shape and success handling
func TestWebhookChannelSend(t *testing.T) {
	var got Event
	var contentType, authHeader string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		contentType = r.Header.Get("Content-Type")
		authHeader = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	ch, err := NewWebhookChannel("hooks", WebhookConfig{
		URL:     server.URL,
		Headers: map[string]string{"Authorization": "Bearer token"},
	})
	require.NoError(t, err)

	event := &Event{
		ID:      "e-42",
		Type:    EventOperationFailed,
		Level:   LevelError,
		Source:  "executor",
		Message: "operation failed",
	}
	require.NoError(t, ch.Send(context.Background(), event))

	assert.Equal(t, "application/json", contentType)
	assert.Equal(t, "Bearer token", authHeader)
	assert.Equal(t, "e-42", got.ID)
	assert.Equal(t, EventOperationFailed, got.Type)
	assert.Equal(t, "operation failed", got.Message)
}

// TestWebhookChannelStatusClassification tests error classes per response code
func TestWebhookChannelStatusClassification(t *testing.T) {
	var status atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(int(status.Load()))
	}))
	defer server.Close()

	ch, err := NewWebhookChannel("hooks", WebhookConfig{URL: server.URL})
	require.NoError(t, err)

	event := &Event{ID: "e-1", Type: EventNotification, Level: LevelInfo}

	status.Store(http.StatusBadGateway)
	err = ch.Send(context.Background(), event)
	require.Error(t, err)
	assert.True(t, errdefs.IsTransient(err))

	status.Store(http.StatusNotFound)
	err = ch.Send(context.Background(), event)
	require.Error(t, err)
	assert.True(t, errdefs.IsPrecondition(err))
}

// TestWebhookChannelMinLevel tests severity suppression
func TestWebhookChannelMinLevel(t *testing.T) {
	var requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	ch, err := NewWebhookChannel("hooks", WebhookConfig{URL: server.URL, MinLevel: LevelError})
	require.NoError(t, err)

	require.NoError(t, ch.Send(context.Background(), &Event{ID: "low", Level: LevelInfo}))
	assert.Equal(t, int32(0), requests.Load())

	require.NoError(t, ch.Send(context.Background(), &Event{ID: "high", Level: LevelCritical}))
	assert.Equal(t, int32(1), requests.Load())
}
