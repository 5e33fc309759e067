package chat

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/medrag/backend/internal/middleware"
	chatservice "github.com/zhouzirui/medrag/backend/internal/service/chat"
	"github.com/zhouzirui/medrag/backend/internal/service/qa"
	"github.com/zhouzirui/medrag/backend/internal/web"
)

type stubGateway func(query string) (*qa.Response, error)

func (g stubGateway) Answer(_ context.Context, query string) (*qa.Response, error) {
	return g(query)
}

type stubFactory struct {
	gateway qa.Gateway
	err     error
}

func (f *stubFactory) Gateway(context.Context) (qa.Gateway, error) {
	return f.gateway, f.err
}

func fixedSession(id string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(middleware.WithSessionID(r.Context(), id)))
		})
	}
}

func setupRouter(t *testing.T, factory qa.Factory) *chi.Mux {
	t.Helper()

	renderer, err := web.NewRenderer()
	require.NoError(t, err)

	orchestrator := chatservice.NewOrchestrator(chatservice.NewService(), factory, nil)
	handler := New(orchestrator, renderer, "medical-rag-chatbot")

	r := chi.NewRouter()
	r.Use(fixedSession("session-1"))
	handler.RegisterRoutes(r)
	return r
}

func submit(r http.Handler, prompt string) *httptest.ResponseRecorder {
	form := url.Values{"prompt": {prompt}}
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	return resp
}

func get(r http.Handler, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	return resp
}

func TestIndexRendersEmptyTranscript(t *testing.T) {
	r := setupRouter(t, &stubFactory{})

	resp := get(r, "/")

	require.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, resp.Body.String(), "Ask a medical question to get started.")
}

func TestSubmitDiabetesThenClear(t *testing.T) {
	gateway := stubGateway(func(string) (*qa.Response, error) {
		return &qa.Response{Result: "Diabetes is a metabolic disorder..."}, nil
	})
	r := setupRouter(t, &stubFactory{gateway: gateway})

	resp := submit(r, "What is diabetes?")
	require.Equal(t, http.StatusSeeOther, resp.Code)
	assert.Equal(t, "/", resp.Header().Get("Location"))

	page := get(r, "/").Body.String()
	assert.Contains(t, page, "What is diabetes?")
	assert.Contains(t, page, "Diabetes is a metabolic disorder...")

	resp = get(r, "/clear")
	require.Equal(t, http.StatusSeeOther, resp.Code)
	assert.Equal(t, "/", resp.Header().Get("Location"))

	page = get(r, "/").Body.String()
	assert.NotContains(t, page, "What is diabetes?")
	assert.Contains(t, page, "Ask a medical question to get started.")
}

func TestSubmitEmptyPromptRedirects(t *testing.T) {
	r := setupRouter(t, &stubFactory{err: errors.New("must not be called")})

	resp := submit(r, "")

	require.Equal(t, http.StatusSeeOther, resp.Code)
	assert.Contains(t, get(r, "/").Body.String(), "Ask a medical question to get started.")
}

func TestSubmitMissingFieldRedirects(t *testing.T) {
	r := setupRouter(t, &stubFactory{err: errors.New("must not be called")})

	req := httptest.NewRequest(http.MethodPost, "/", nil)
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	assert.Equal(t, http.StatusSeeOther, resp.Code)
}

func TestSubmitChainUnavailableRendersBanner(t *testing.T) {
	r := setupRouter(t, &stubFactory{err: fmt.Errorf("%w: vector index is empty", qa.ErrChainUnavailable)})

	resp := submit(r, "What is diabetes?")

	require.Equal(t, http.StatusOK, resp.Code)
	assert.Empty(t, resp.Header().Get("Location"))
	body := resp.Body.String()
	assert.Contains(t, body, "Error: Unable to initialize QA chain. Vector store may be missing.")
	assert.Contains(t, body, "What is diabetes?")
}

func TestSubmitInvocationFailureRendersBanner(t *testing.T) {
	gateway := stubGateway(func(string) (*qa.Response, error) {
		return nil, errors.New("model timeout")
	})
	r := setupRouter(t, &stubFactory{gateway: gateway})

	resp := submit(r, "What is diabetes?")

	require.Equal(t, http.StatusOK, resp.Code)
	body := resp.Body.String()
	assert.Contains(t, body, "Error : model timeout")
	assert.Contains(t, body, "What is diabetes?")

	// The banner is not sticky: the next plain render shows the kept user turn only.
	page := get(r, "/").Body.String()
	assert.NotContains(t, page, "model timeout")
	assert.Contains(t, page, "What is diabetes?")
}

func TestSubmitNoResultShowsFallback(t *testing.T) {
	gateway := stubGateway(func(string) (*qa.Response, error) {
		return &qa.Response{}, nil
	})
	r := setupRouter(t, &stubFactory{gateway: gateway})

	require.Equal(t, http.StatusSeeOther, submit(r, "question").Code)
	assert.Contains(t, get(r, "/").Body.String(), qa.NoResponse)
}

func TestMissingSessionIsServerError(t *testing.T) {
	renderer, err := web.NewRenderer()
	require.NoError(t, err)
	handler := New(chatservice.NewOrchestrator(chatservice.NewService(), &stubFactory{}, nil), renderer, "svc")

	r := chi.NewRouter()
	handler.RegisterRoutes(r)

	assert.Equal(t, http.StatusInternalServerError, get(r, "/").Code)
	assert.Equal(t, http.StatusInternalServerError, get(r, "/clear").Code)
}
