package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	authdelivery "certhub-backend/internal/auth/delivery"
	certdelivery "certhub-backend/internal/certificate/delivery"
	"certhub-backend/pkg/config"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePinger struct {
	urls []string
	err  error
}

func (f *fakePinger) Ping(ctx context.Context, baseURL string) error {
	f.urls = append(f.urls, baseURL)
	return f.err
}

type fakeTester struct {
	err error
}

func (f *fakeTester) TestConnection(ctx context.Context) error { return f.err }
func (f *fakeTester) Name() string                             { return "gemini+ollama" }

func newTestHandler(pinger *fakePinger, tester ConnectionTester) (*Handler, *RuntimeConfig) {
	gin.SetMode(gin.TestMode)
	runtime := NewRuntimeConfig("auto", "http://localhost:11434", "llama3")
	return &Handler{
		config:          &config.Config{FrontendURL: "http://localhost:3000"},
		authHandler:     authdelivery.NewAuthHandler(nil, "http://localhost:3000"),
		certHandler:     certdelivery.NewCertificateHandler(nil, nil),
		settingsHandler: NewSettingsHandler(runtime, pinger, tester),
	}, runtime
}

func do(t *testing.T, r http.Handler, method, path, body string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var out map[string]interface{}
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	}
	return w, out
}

func TestSettings_GetAndUpdate(t *testing.T) {
	h, runtime := newTestHandler(&fakePinger{}, &fakeTester{})
	r := h.Engine()

	w, body := do(t, r, http.MethodGet, "/api/settings/ai", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "http://localhost:11434", body["ollama_base_url"])
	assert.Equal(t, true, body["enrichment_enabled"])
	assert.Equal(t, "gemini+ollama", body["active_provider"])

	w, body = do(t, r, http.MethodPut, "/api/settings/ai", `{"ollama_base_url":"http://gpu-box:11434/","ollama_model":"qwen2"}`)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "http://gpu-box:11434", body["ollama_base_url"])
	assert.Equal(t, "http://gpu-box:11434", runtime.OllamaBaseURL())
	assert.Equal(t, "qwen2", runtime.OllamaModel())

	w, _ = do(t, r, http.MethodPut, "/api/settings/ai", `{"ollama_base_url":"http://other:11434"}`)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "qwen2", runtime.OllamaModel(), "an empty model keeps the current one")
}

func TestSettings_UpdateRejectsBadURL(t *testing.T) {
	h, runtime := newTestHandler(&fakePinger{}, nil)
	r := h.Engine()

	for _, body := range []string{`{}`, `{"ollama_base_url":"localhost:11434"}`, `{"ollama_base_url":"ftp://x"}`} {
		w, resp := do(t, r, http.MethodPut, "/api/settings/ai", body)
		assert.Equal(t, http.StatusBadRequest, w.Code, body)
		assert.Equal(t, "INVALID_REQUEST", resp["error"])
	}
	assert.Equal(t, "http://localhost:11434", runtime.OllamaBaseURL())
}

func TestSettings_Test(t *testing.T) {
	pinger := &fakePinger{}
	tester := &fakeTester{}
	h, _ := newTestHandler(pinger, tester)
	r := h.Engine()

	w, body := do(t, r, http.MethodPost, "/api/settings/ai/test", `{"ollama_base_url":"http://gpu-box:11434"}`)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, body["connected"])
	assert.Equal(t, []string{"http://gpu-box:11434"}, pinger.urls)

	pinger.err = errors.New("connection refused")
	w, body = do(t, r, http.MethodPost, "/api/settings/ai/test", `{"ollama_base_url":"http://gpu-box:11434"}`)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, false, body["connected"])

	w, body = do(t, r, http.MethodPost, "/api/settings/ai/test", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "gemini+ollama", body["provider"])

	tester.err = errors.New("quota")
	w, _ = do(t, r, http.MethodPost, "/api/settings/ai/test", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestSettings_TestWithoutEnricher(t *testing.T) {
	h, _ := newTestHandler(&fakePinger{}, nil)

	w, body := do(t, h.Engine(), http.MethodPost, "/api/settings/ai/test", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "ENRICHMENT_UNAVAILABLE", body["error"])
}

func TestRoutes_HealthCORSAndWatch(t *testing.T) {
	h, _ := newTestHandler(&fakePinger{}, nil)
	r := h.Engine()

	w, body := do(t, r, http.MethodGet, "/api/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "http://localhost:3000", w.Header().Get("Access-Control-Allow-Origin"))

	req := httptest.NewRequest(http.MethodOptions, "/api/gmail/sync", nil)
	req.Header.Set("Origin", "https://certs.example.com")
	pre := httptest.NewRecorder()
	r.ServeHTTP(pre, req)
	assert.Equal(t, http.StatusNoContent, pre.Code)
	assert.Equal(t, "https://certs.example.com", pre.Header().Get("Access-Control-Allow-Origin"))

	w, body = do(t, r, http.MethodPost, "/api/gmail/watch", `{"email":"learner@example.com"}`)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "PUSH_UNAVAILABLE", body["error"])

	w, body = do(t, r, http.MethodGet, "/api/gmail/certificates", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "EMAIL_REQUIRED", body["error"])
}
