package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"certhub-backend/pkg/apperr"

	"github.com/gin-gonic/gin"
)

// RuntimeConfig holds the enrichment settings that can change without a
// restart. The Ollama provider reads them through the getters on every call.
type RuntimeConfig struct {
	mu            sync.RWMutex
	provider      string
	ollamaBaseURL string
	ollamaModel   string
}

func NewRuntimeConfig(provider, ollamaBaseURL, ollamaModel string) *RuntimeConfig {
	return &RuntimeConfig{
		provider:      provider,
		ollamaBaseURL: ollamaBaseURL,
		ollamaModel:   ollamaModel,
	}
}

func (r *RuntimeConfig) OllamaBaseURL() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.ollamaBaseURL
}

func (r *RuntimeConfig) OllamaModel() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.ollamaModel
}

func (r *RuntimeConfig) updateOllama(baseURL, model string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ollamaBaseURL = baseURL
	if model != "" {
		r.ollamaModel = model
	}
}

func (r *RuntimeConfig) snapshot() gin.H {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return gin.H{
		"provider":        r.provider,
		"ollama_base_url": r.ollamaBaseURL,
		"ollama_model":    r.ollamaModel,
	}
}

// OllamaPinger checks that an Ollama server answers.
type OllamaPinger interface {
	Ping(ctx context.Context, baseURL string) error
}

// ConnectionTester is the configured enrichment provider.
type ConnectionTester interface {
	TestConnection(ctx context.Context) error
	Name() string
}

type SettingsHandler struct {
	runtime  *RuntimeConfig
	pinger   OllamaPinger
	enricher ConnectionTester
}

// NewSettingsHandler accepts a nil enricher when enrichment is disabled.
func NewSettingsHandler(runtime *RuntimeConfig, pinger OllamaPinger, enricher ConnectionTester) *SettingsHandler {
	return &SettingsHandler{runtime: runtime, pinger: pinger, enricher: enricher}
}

type UpdateAISettingsRequest struct {
	OllamaBaseURL string `json:"ollama_base_url" binding:"required"`
	OllamaModel   string `json:"ollama_model,omitempty"`
}

// GET /api/settings/ai
func (h *SettingsHandler) Get(c *gin.Context) {
	resp := h.runtime.snapshot()
	resp["success"] = true
	resp["enrichment_enabled"] = h.enricher != nil
	if h.enricher != nil {
		resp["active_provider"] = h.enricher.Name()
	}
	c.JSON(http.StatusOK, resp)
}

// PUT /api/settings/ai
func (h *SettingsHandler) Update(c *gin.Context) {
	var req UpdateAISettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperr.Respond(c, fmt.Errorf("%w: %v", apperr.ErrInvalidRequest, err), "INVALID_REQUEST")
		return
	}
	baseURL, err := normalizeBaseURL(req.OllamaBaseURL)
	if err != nil {
		apperr.Respond(c, fmt.Errorf("%w: %v", apperr.ErrInvalidRequest, err), "INVALID_REQUEST")
		return
	}

	h.runtime.updateOllama(baseURL, strings.TrimSpace(req.OllamaModel))

	resp := h.runtime.snapshot()
	resp["success"] = true
	resp["message"] = "AI settings updated successfully"
	c.JSON(http.StatusOK, resp)
}

// Test checks the Ollama server named in the body, or the active enrichment
// provider when the body names none.
// POST /api/settings/ai/test
func (h *SettingsHandler) Test(c *gin.Context) {
	var req struct {
		OllamaBaseURL string `json:"ollama_base_url"`
	}
	_ = c.ShouldBindJSON(&req)

	if req.OllamaBaseURL != "" {
		baseURL, err := normalizeBaseURL(req.OllamaBaseURL)
		if err != nil {
			apperr.Respond(c, fmt.Errorf("%w: %v", apperr.ErrInvalidRequest, err), "INVALID_REQUEST")
			return
		}
		if err := h.pinger.Ping(c.Request.Context(), baseURL); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"success": false, "connected": false, "provider": "ollama", "details": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "connected": true, "provider": "ollama", "ollama_base_url": baseURL})
		return
	}

	if h.enricher == nil {
		apperr.Respond(c, apperr.ErrEnrichmentUnavailable, "AI_TEST_ERROR")
		return
	}
	if err := h.enricher.TestConnection(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"success": false, "connected": false, "provider": h.enricher.Name(), "details": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "connected": true, "provider": h.enricher.Name()})
}

func normalizeBaseURL(raw string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", err
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", fmt.Errorf("ollama_base_url must be an http(s) URL, got %q", raw)
	}
	return strings.TrimRight(u.String(), "/"), nil
}
