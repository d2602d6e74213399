package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/visa-assistant/client/internal/config"
	"github.com/zhouzirui/visa-assistant/client/internal/middleware"
	chatService "github.com/zhouzirui/visa-assistant/client/internal/service/chat"
	promptService "github.com/zhouzirui/visa-assistant/client/internal/service/prompt"
	"github.com/zhouzirui/visa-assistant/client/pkg/assistantapi"
)

type nopBackend struct{}

func (nopBackend) GenerateReply(context.Context, assistantapi.GenerateReplyRequest) (*assistantapi.GenerateReplyResponse, error) {
	return &assistantapi.GenerateReplyResponse{AIReply: "ok"}, nil
}

func (nopBackend) GetPrompt(context.Context) (*assistantapi.GetPromptResponse, error) {
	return &assistantapi.GetPromptResponse{Prompt: "p"}, nil
}

func (nopBackend) UpdatePrompt(_ context.Context, req assistantapi.UpdatePromptRequest) (*assistantapi.UpdatePromptResponse, error) {
	return &assistantapi.UpdatePromptResponse{Prompt: req.Prompt}, nil
}

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	cfg := &config.Config{
		Backend: config.BackendConfig{BaseURL: "http://backend.test"},
		CORS:    config.CORSConfig{AllowedOrigins: []string{"http://localhost:3000"}},
	}
	router, err := NewRouter(cfg, chatService.NewService(nopBackend{}, nil), promptService.NewService(nopBackend{}, nil), nil)
	require.NoError(t, err)
	return router
}

func TestHealthz(t *testing.T) {
	resp := httptest.NewRecorder()
	newTestRouter(t).ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, resp.Code)
	assert.JSONEq(t, `{"status":"ok"}`, resp.Body.String())
	assert.Empty(t, resp.Result().Cookies())
}

func TestPagesIssueSessionCookie(t *testing.T) {
	router := newTestRouter(t)

	for _, path := range []string{"/", "/admin"} {
		resp := httptest.NewRecorder()
		router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, path, nil))

		require.Equal(t, http.StatusOK, resp.Code, path)
		cookies := resp.Result().Cookies()
		require.Len(t, cookies, 1, path)
		assert.Equal(t, middleware.SessionCookie, cookies[0].Name)
	}
}

func TestAPIRoutesMounted(t *testing.T) {
	router := newTestRouter(t)

	chatResp := httptest.NewRecorder()
	router.ServeHTTP(chatResp, httptest.NewRequest(http.MethodGet, "/api/chat/", nil))
	assert.Equal(t, http.StatusOK, chatResp.Code)

	adminResp := httptest.NewRecorder()
	router.ServeHTTP(adminResp, httptest.NewRequest(http.MethodGet, "/api/admin/prompt/", nil))
	assert.Equal(t, http.StatusOK, adminResp.Code)
}

func TestCORSPreflight(t *testing.T) {
	req := httptest.NewRequest(http.MethodOptions, "/api/chat/messages", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)

	resp := httptest.NewRecorder()
	newTestRouter(t).ServeHTTP(resp, req)

	assert.Equal(t, "http://localhost:3000", resp.Header().Get("Access-Control-Allow-Origin"))
}
