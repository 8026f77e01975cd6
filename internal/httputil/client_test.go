package httputil

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

	"github.com/R3E-Network/mode_orchestrator/internal/facade"
	"github.com/R3E-Network/mode_orchestrator/internal/httpapi"
	"github.com/R3E-Network/mode_orchestrator/internal/middleware"
	"github.com/R3E-Network/mode_orchestrator/internal/mode"
)

func TestNewClient_Defaults(t *testing.T) {
	c := NewClient(ClientConfig{BaseURL: "localhost:8080/"})

	assert.Equal(t, "http://localhost:8080", c.baseURL)
	assert.Equal(t, 30*time.Second, c.httpClient.Timeout)
	assert.Equal(t, 2, c.maxRetries)
}

func TestClient_View(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/mode", r.URL.Path)
		assert.Equal(t, "Bearer abc", r.Header.Get("Authorization"))
		_ = json.NewEncoder(w).Encode(facade.NewView(mode.ModeGame, mode.StateIdle))
	}))
	defer server.Close()

	c := NewClient(ClientConfig{BaseURL: server.URL, Token: "abc"})
	v, err := c.View(context.Background())
	require.NoError(t, err)
	assert.True(t, v.IsGameMode)
}

func TestClient_Switch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req httpapi.SwitchRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "game", req.Mode)
		require.NotNil(t, req.AnimationMS)
		assert.Equal(t, int64(0), *req.AnimationMS)

		_ = json.NewEncoder(w).Encode(facade.NewView(mode.ModeGame, mode.StateCompleted))
	}))
	defer server.Close()

	zero := int64(0)
	c := NewClient(ClientConfig{BaseURL: server.URL})
	v, err := c.Switch(context.Background(), httpapi.SwitchRequest{Mode: "game", AnimationMS: &zero})
	require.NoError(t, err)
	assert.Equal(t, mode.StateCompleted, v.TransitionState)
}

func TestClient_Toggle(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/mode/toggle", r.URL.Path)
		_ = json.NewEncoder(w).Encode(facade.NewView(mode.ModeStandard, mode.StateCompleted))
	}))
	defer server.Close()

	c := NewClient(ClientConfig{BaseURL: server.URL})
	v, err := c.Toggle(context.Background(), httpapi.SwitchRequest{Mode: "ignored"})
	require.NoError(t, err)
	assert.True(t, v.IsStandardMode)
}

func TestClient_Conflict(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteError(w, http.StatusConflict, "transition_in_progress", "busy")
	}))
	defer server.Close()

	c := NewClient(ClientConfig{BaseURL: server.URL})
	_, err := c.Switch(context.Background(), httpapi.SwitchRequest{Mode: "game"})
	require.Error(t, err)
	assert.True(t, IsConflict(err))
	assert.Contains(t, err.Error(), "transition_in_progress")
}

func TestClient_RetriesRateLimited(t *testing.T) {
	var attempts int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&attempts, 1) == 1 {
			middleware.WriteError(w, http.StatusTooManyRequests, "rate_limited", "slow down")
			return
		}
		_ = json.NewEncoder(w).Encode(httpapi.TransitionResponse{State: mode.StateIdle})
	}))
	defer server.Close()

	c := NewClient(ClientConfig{BaseURL: server.URL, RetryDelay: time.Millisecond})
	resp, err := c.Transition(context.Background())
	require.NoError(t, err)
	assert.Equal(t, mode.StateIdle, resp.State)
	assert.Equal(t, int32(2), atomic.LoadInt32(&attempts))
}

func TestDecodeResponse_PlainTextError(t *testing.T) {
	rec := httptest.NewRecorder()
	http.Error(rec, "gateway exploded", http.StatusInternalServerError)

	err := DecodeResponse(rec.Result(), nil)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusInternalServerError, apiErr.Status)
	assert.Equal(t, "gateway exploded", apiErr.Message)
}
