package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"ptcoach/pt-manager/internal/domain"
	"ptcoach/pt-manager/internal/guard"
)

func doRequest(ts *testServer, method, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestSessionGate(t *testing.T) {
	ts := newTestServer()
	coachID, clientID := primitive.NewObjectID(), primitive.NewObjectID()
	ts.auth.admin("admin", coachID)
	ts.auth.client("client", clientID, false)
	ts.auth.client("first", clientID, true)
	ts.auth.tokens["spoofed"] = stubSession{
		session: &guard.Session{ID: "sid-spoofed", IdentityID: clientID.Hex(), Marker: domain.RoleAdmin, State: guard.StateUnauthenticated},
		forced:  true,
	}
	ts.auth.tokens["loading"] = stubSession{
		session: &guard.Session{ID: "sid-loading", IdentityID: coachID.Hex(), Marker: domain.RoleAdmin},
		err:     errors.New("mongo down"),
	}
	ts.auth.tokens["deleted"] = stubSession{
		session: &guard.Session{ID: "sid-deleted", IdentityID: coachID.Hex(), Marker: domain.RoleAdmin, State: guard.StateUnauthenticated},
	}

	tests := []struct {
		name     string
		path     string
		token    string
		code     int
		redirect string
	}{
		{"no token", "/api/v1/admin/dashboard/feed", "", http.StatusUnauthorized, guard.RouteLogin},
		{"unknown token", "/api/v1/admin/dashboard/feed", "bogus", http.StatusUnauthorized, guard.RouteLogin},
		{"admin reaches admin partition", "/api/v1/admin/dashboard/feed", "admin", http.StatusOK, ""},
		{"client kept out of admin partition", "/api/v1/admin/dashboard/feed", "client", http.StatusForbidden, guard.RouteClientDashboard},
		{"first access client sent to password change", "/api/v1/admin/dashboard/feed", "first", http.StatusForbidden, guard.RouteFirstAccess},
		{"admin kept out of client partition", "/api/v1/client/dashboard", "admin", http.StatusForbidden, guard.RouteAdminDashboard},
		{"role mismatch signs out", "/api/v1/admin/dashboard/feed", "spoofed", http.StatusUnauthorized, guard.RouteLogin},
		{"deleted identity", "/api/v1/me", "deleted", http.StatusUnauthorized, guard.RouteLogin},
		{"lookup failure stays loading", "/api/v1/me", "loading", http.StatusServiceUnavailable, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doRequest(ts, http.MethodGet, tt.path, tt.token)
			require.Equal(t, tt.code, w.Code, w.Body.String())
			if tt.redirect != "" {
				assert.Equal(t, tt.redirect, decodeBody(t, w)["redirect"])
			}
		})
	}
}

func TestSessionGate_LoadingState(t *testing.T) {
	ts := newTestServer()
	ts.auth.tokens["loading"] = stubSession{
		session: &guard.Session{ID: "sid-loading", IdentityID: primitive.NewObjectID().Hex(), Marker: domain.RoleAdmin},
		err:     errors.New("mongo down"),
	}

	w := doRequest(ts, http.MethodGet, "/api/v1/me", "loading")

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, string(guard.StateLoading), decodeBody(t, w)["state"])
	assert.Equal(t, "1", w.Header().Get("Retry-After"))
}

func TestAuthMiddleware_QueryToken(t *testing.T) {
	ts := newTestServer()
	ts.auth.admin("admin", primitive.NewObjectID())

	w := doRequest(ts, http.MethodGet, "/api/v1/me?access_token=admin", "")

	require.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, string(guard.StateAdmin), body["state"])
	assert.Equal(t, guard.RouteAdminDashboard, body["redirect"])
}

func TestAuthMiddleware_MalformedHeader(t *testing.T) {
	ts := newTestServer()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/me", nil)
	req.Header.Set("Authorization", "Token abc")
	w := httptest.NewRecorder()

	ts.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestNoRoute(t *testing.T) {
	ts := newTestServer()
	w := doRequest(ts, http.MethodGet, "/nowhere", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Route not found", decodeBody(t, w)["error"])
}

func TestAccessLogger_MasksQueryToken(t *testing.T) {
	var logs bytes.Buffer
	router := gin.New()
	router.Use(AccessLogger(&logs))
	router.GET("/api/v1/client/chats/:threadId/stream", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/api/v1/client/chats/x/stream?access_token=SECRET.JWT.VALUE&since=1", nil)
	router.ServeHTTP(httptest.NewRecorder(), req)

	assert.NotContains(t, logs.String(), "SECRET.JWT.VALUE")
	assert.Contains(t, logs.String(), "access_token=REDACTED")
	assert.Contains(t, logs.String(), "since=1")
}

func TestRedactToken(t *testing.T) {
	assert.Equal(t, "/ping", redactToken("/ping"))
	assert.Equal(t, "/a?b=1", redactToken("/a?b=1"))
	assert.Equal(t, "/a?access_token=REDACTED", redactToken("/a?access_token=abc"))
}
