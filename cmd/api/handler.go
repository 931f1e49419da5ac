package api

import (
	"context"
	"log"
	"net/http"

	authdelivery "certhub-backend/internal/auth/delivery"
	authusecase "certhub-backend/internal/auth/usecase"
	certdelivery "certhub-backend/internal/certificate/delivery"
	certusecase "certhub-backend/internal/certificate/usecase"
	"certhub-backend/internal/notification"
	"certhub-backend/pkg/ai"
	"certhub-backend/pkg/chroma"
	"certhub-backend/pkg/config"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	config          *config.Config
	authHandler     *authdelivery.AuthHandler
	certHandler     *certdelivery.CertificateHandler
	settingsHandler *SettingsHandler
	watchRegistrar  *notification.WatchRegistrar
}

// NewHandler attaches the optional enrichment provider and the semantic index
// to the certificate usecases, then builds the HTTP handlers. watchRegistrar
// may be nil when Gmail push is not configured.
func NewHandler(cfg *config.Config, authUc authusecase.AuthUsecase, syncUc certusecase.SyncUsecase, certUc certusecase.CertificateUsecase, watchRegistrar *notification.WatchRegistrar) *Handler {
	runtime := NewRuntimeConfig(cfg.AIProvider, cfg.OllamaBaseURL, cfg.OllamaModel)

	var tester ConnectionTester
	enricher, err := ai.NewEnricher(ai.Config{
		Provider:         ai.ProviderType(cfg.AIProvider),
		GeminiAPIKey:     cfg.GeminiApiKey,
		GeminiModel:      cfg.GeminiModel,
		GetOllamaBaseURL: runtime.OllamaBaseURL,
		GetOllamaModel:   runtime.OllamaModel,
		Timeout:          cfg.AITimeout,
	})
	switch {
	case err != nil:
		log.Printf("[AI] Enrichment disabled: %v", err)
	case enricher == nil:
		log.Println("[AI] Enrichment disabled by AI_PROVIDER=none")
	default:
		syncUc.SetEnricher(enricher)
		tester = enricher
		log.Printf("[AI] Enrichment provider: %s", enricher.Name())
	}

	if cfg.ChromaAPIKey != "" {
		client, err := chroma.NewClient(context.Background(), cfg)
		if err != nil {
			log.Printf("[Chroma] Semantic search unavailable: %v", err)
		} else {
			index := certusecase.NewVectorIndex(client)
			syncUc.SetIndexer(index)
			certUc.SetIndexer(index)
		}
	} else {
		log.Println("[Chroma] CHROMA_API_KEY not set, semantic search unavailable")
	}

	pinger := ai.NewOllamaServiceWithGetters(runtime.OllamaBaseURL, runtime.OllamaModel)

	return &Handler{
		config:          cfg,
		authHandler:     authdelivery.NewAuthHandler(authUc, cfg.FrontendURL),
		certHandler:     certdelivery.NewCertificateHandler(syncUc, certUc),
		settingsHandler: NewSettingsHandler(runtime, pinger, tester),
		watchRegistrar:  watchRegistrar,
	}
}

// Engine builds the gin engine with CORS and every route.
func (h *Handler) Engine() *gin.Engine {
	r := gin.Default()
	r.Use(corsMiddleware(h.config.FrontendURL))
	SetupRoutes(r, h)
	return r
}

func (h *Handler) Start(addr string) error {
	gin.SetMode(gin.ReleaseMode)
	return h.Engine().Run(addr)
}

// corsMiddleware echoes the caller's origin so the frontend can send
// credentials; requests without an Origin get the configured frontend.
func corsMiddleware(frontendURL string) gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin == "" {
			origin = frontendURL
		}
		c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept, Accept-Encoding, Authorization, Origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
