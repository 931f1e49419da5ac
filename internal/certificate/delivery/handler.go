package delivery

import (
	"fmt"
	"net/http"
	"strconv"

	authdelivery "certhub-backend/internal/auth/delivery"
	certdto "certhub-backend/internal/certificate/dto"
	"certhub-backend/internal/certificate/usecase"
	"certhub-backend/pkg/apperr"

	"github.com/gin-gonic/gin"
)

// CertificateHandler serves the /api/gmail certificate routes. Every route
// expects authdelivery.RequireEmail in front of it.
type CertificateHandler struct {
	syncUsecase        usecase.SyncUsecase
	certificateUsecase usecase.CertificateUsecase
}

func NewCertificateHandler(syncUsecase usecase.SyncUsecase, certificateUsecase usecase.CertificateUsecase) *CertificateHandler {
	return &CertificateHandler{
		syncUsecase:        syncUsecase,
		certificateUsecase: certificateUsecase,
	}
}

// Sync scans the mailbox and stores new certificates.
// POST /api/gmail/sync {email}
func (h *CertificateHandler) Sync(c *gin.Context) {
	resp, err := h.syncUsecase.Sync(c.Request.Context(), authdelivery.Email(c))
	if err != nil {
		apperr.Respond(c, err, "SYNC_ERROR")
		return
	}
	c.JSON(http.StatusOK, resp)
}

// GET /api/gmail/certificates?email=&platform=&skill=&q=
func (h *CertificateHandler) GetCertificates(c *gin.Context) {
	var filter certdto.CertificateFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		apperr.Respond(c, fmt.Errorf("%w: %v", apperr.ErrInvalidRequest, err), "INVALID_REQUEST")
		return
	}

	resp, err := h.certificateUsecase.GetCertificates(authdelivery.Email(c), filter)
	if err != nil {
		apperr.Respond(c, err, "FETCH_ERROR")
		return
	}
	c.JSON(http.StatusOK, resp)
}

// GET /api/gmail/stats?email=
func (h *CertificateHandler) GetStats(c *gin.Context) {
	resp, err := h.certificateUsecase.GetStats(authdelivery.Email(c))
	if err != nil {
		apperr.Respond(c, err, "STATS_ERROR")
		return
	}
	c.JSON(http.StatusOK, resp)
}

// SemanticSearch finds certificates by meaning rather than spelling.
// GET /api/gmail/search?email=&q=&limit=
func (h *CertificateHandler) SemanticSearch(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))

	resp, err := h.certificateUsecase.SemanticSearch(c.Request.Context(), authdelivery.Email(c), c.Query("q"), limit)
	if err != nil {
		apperr.Respond(c, err, "SEARCH_ERROR")
		return
	}
	c.JSON(http.StatusOK, resp)
}
