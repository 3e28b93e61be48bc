package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/cardlens/backend/internal/domain"
)

// PriceResolver is the usecase surface the HTTP layer depends on.
type PriceResolver interface {
	ResolvePrice(ctx context.Context, query domain.CardQuery) (*domain.PriceResult, error)
	EstimateValue(result *domain.PriceResult, grade float64) *float64
}

// Handler holds dependencies for HTTP handlers
type Handler struct {
	prices PriceResolver
}

// NewHandler creates a new HTTP handler
func NewHandler(prices PriceResolver) *Handler {
	return &Handler{prices: prices}
}

// HealthCheck returns the health status of the API
func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "cardlens-backend",
		"version": "1.0.0",
	})
}

// resolveRequest is the body accepted by the resolve and estimate endpoints.
// Fields mirror what upstream extraction produces; everything but the card
// name is optional.
type resolveRequest struct {
	Domain         string  `json:"domain"`
	Name           string  `json:"name" binding:"required"`
	Set            string  `json:"set"`
	Number         string  `json:"number"`
	Year           string  `json:"year"`
	Variant        string  `json:"variant"`
	IsFoil         bool    `json:"isFoil"`
	IsFirstEdition bool    `json:"isFirstEdition"`
	IsReverseHolo  bool    `json:"isReverseHolo"`
	Grade          float64 `json:"grade"`
}

func (r resolveRequest) toQuery() domain.CardQuery {
	return domain.CardQuery{
		Domain:         r.Domain,
		Name:           r.Name,
		Set:            r.Set,
		Number:         r.Number,
		Year:           r.Year,
		Variant:        r.Variant,
		IsFoil:         r.IsFoil,
		IsFirstEdition: r.IsFirstEdition,
		IsReverseHolo:  r.IsReverseHolo,
	}
}

// ResolvePrice matches a card query against the pricing catalog and returns
// the priced match, or a null result when nothing qualifies.
func (h *Handler) ResolvePrice(c *gin.Context) {
	var req resolveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "invalid request: " + err.Error(),
		})
		return
	}

	result, err := h.prices.ResolvePrice(c.Request.Context(), req.toQuery())
	if err != nil {
		status, message := statusForError(err)
		c.JSON(status, gin.H{"error": message})
		return
	}

	if result == nil {
		c.JSON(http.StatusOK, gin.H{
			"result":     nil,
			"confidence": string(domain.ConfidenceNone),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"result":     result,
		"confidence": string(result.Confidence),
	})
}

// EstimateValue resolves a card and applies a grade-based value estimate.
func (h *Handler) EstimateValue(c *gin.Context) {
	var req resolveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "invalid request: " + err.Error(),
		})
		return
	}

	result, err := h.prices.ResolvePrice(c.Request.Context(), req.toQuery())
	if err != nil {
		status, message := statusForError(err)
		c.JSON(status, gin.H{"error": message})
		return
	}

	if result == nil {
		c.JSON(http.StatusOK, gin.H{
			"result":          nil,
			"confidence":      string(domain.ConfidenceNone),
			"estimated_value": nil,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"result":          result,
		"confidence":      string(result.Confidence),
		"estimated_value": h.prices.EstimateValue(result, req.Grade),
	})
}

// statusForError maps usecase and catalog errors onto HTTP statuses.
func statusForError(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrUnknownDomain):
		return http.StatusBadRequest, "unknown card domain"
	case errors.Is(err, domain.ErrInvalidQuery):
		return http.StatusBadRequest, "card name is required"
	}

	var catErr *domain.CatalogError
	if errors.As(err, &catErr) {
		switch {
		case catErr.Blocked || catErr.Status == http.StatusTooManyRequests:
			return http.StatusTooManyRequests, "pricing catalog is throttling requests, try again later"
		case catErr.Timeout:
			return http.StatusGatewayTimeout, "pricing catalog timed out"
		case catErr.Retryable:
			return http.StatusServiceUnavailable, "pricing catalog is temporarily unavailable"
		}
	}

	return http.StatusInternalServerError, "failed to resolve card price"
}
