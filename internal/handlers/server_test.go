// internal/handlers/server_test.go
package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jason-s-yu/avalon/internal/auth"
	"github.com/jason-s-yu/avalon/internal/stats"
)

func TestCreateSessionHandler(t *testing.T) {
	srv := NewSessionServer(logrus.New(), stats.Recorder{})

	req := httptest.NewRequest("POST", "/session/create", nil)
	w := httptest.NewRecorder()
	srv.CreateSessionHandler(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var resp map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))

	id, err := uuid.Parse(resp["session_id"])
	require.NoError(t, err)

	s, ok := srv.Store.Get(id)
	require.True(t, ok)
	s.Close()
}

func TestCreateSessionHandlerMethod(t *testing.T) {
	srv := NewSessionServer(logrus.New(), stats.Recorder{})

	req := httptest.NewRequest("GET", "/session/create", nil)
	w := httptest.NewRecorder()
	srv.CreateSessionHandler(w, req)
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestSessionWSHandlerRejectsBadPath(t *testing.T) {
	srv := NewSessionServer(logrus.New(), stats.Recorder{})

	req := httptest.NewRequest("GET", "/session/ws/not-a-uuid", nil)
	w := httptest.NewRecorder()
	srv.SessionWSHandler(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSessionWSHandlerUnknownSession(t *testing.T) {
	srv := NewSessionServer(logrus.New(), stats.Recorder{})

	req := httptest.NewRequest("GET", "/session/ws/"+uuid.NewString(), nil)
	w := httptest.NewRecorder()
	srv.SessionWSHandler(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAuthenticateRequestSources(t *testing.T) {
	auth.Init() // ephemeral keys, no DB needed
	token, err := auth.CreateJWT("alice")
	require.NoError(t, err)

	req := httptest.NewRequest("GET", "/session/ws/x", nil)
	req.Header.Set("Cookie", "auth_token="+token)
	username, err := authenticateRequest(req)
	require.NoError(t, err)
	assert.Equal(t, "alice", username)

	req = httptest.NewRequest("GET", "/session/ws/x", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	username, err = authenticateRequest(req)
	require.NoError(t, err)
	assert.Equal(t, "alice", username)

	req = httptest.NewRequest("GET", "/session/ws/x?token="+token, nil)
	username, err = authenticateRequest(req)
	require.NoError(t, err)
	assert.Equal(t, "alice", username)

	req = httptest.NewRequest("GET", "/session/ws/x", nil)
	_, err = authenticateRequest(req)
	assert.Error(t, err)
}

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("AVALON_ENV", "dev")
	t.Setenv("MIN_PLAYERS", "")
	cfg := configFromEnv()
	assert.Equal(t, 1, cfg.MinPlayers)
	assert.True(t, cfg.AllowRoleOverride)

	t.Setenv("AVALON_ENV", "")
	t.Setenv("MIN_PLAYERS", "7")
	cfg = configFromEnv()
	assert.Equal(t, 7, cfg.MinPlayers)
	assert.False(t, cfg.AllowRoleOverride)
}
