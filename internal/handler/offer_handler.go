package handler

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/simtrek/esim_api/internal/service"
	"github.com/simtrek/esim_api/internal/utils"
)

// OfferHandler exposes the materialized best-offer catalogue to the
// storefront.
type OfferHandler struct {
	offerService *service.OfferService
}

// NewOfferHandler constructs an OfferHandler.
func NewOfferHandler(offerService *service.OfferService) *OfferHandler {
	return &OfferHandler{offerService: offerService}
}

// ListOffers handles GET /v1/offers?country=US&page=1&limit=50
func (h *OfferHandler) ListOffers(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if page < 1 {
		page = 1
	}
	country := c.Query("country")

	offers, total, err := h.offerService.List(country, limit, (page-1)*limit)
	if err != nil {
		utils.Error(c, 500, "INTERNAL_ERROR", "Failed to retrieve offers")
		return
	}

	utils.SuccessWithPagination(c, 200, "Offers retrieved", offers, page, limit, total)
}

// GetOffer handles GET /v1/offers/:sku
func (h *OfferHandler) GetOffer(c *gin.Context) {
	offer, err := h.offerService.GetBySKU(c.Param("sku"))
	if err != nil {
		switch {
		case errors.Is(err, utils.ErrInvalidSKU):
			utils.Error(c, 400, "INVALID_SKU", "Malformed SKU")
		case errors.Is(err, utils.ErrOfferNotFound):
			utils.Error(c, 404, "OFFER_NOT_FOUND", "No offer for this SKU")
		default:
			utils.Error(c, 500, "INTERNAL_ERROR", "Failed to retrieve offer")
		}
		return
	}

	utils.Success(c, 200, "Offer retrieved", offer)
}

// QuoteOffer handles GET /v1/offers/:sku/quote — the real-time checkout
// price, computed from margin rules without the batch discount/guard steps.
func (h *OfferHandler) QuoteOffer(c *gin.Context) {
	quote, err := h.offerService.Quote(c.Request.Context(), c.Param("sku"))
	if err != nil {
		switch {
		case errors.Is(err, utils.ErrInvalidSKU):
			utils.Error(c, 400, "INVALID_SKU", "Malformed SKU")
		case errors.Is(err, utils.ErrOfferNotFound):
			utils.Error(c, 404, "OFFER_NOT_FOUND", "No offer for this SKU")
		default:
			utils.Error(c, 500, "INTERNAL_ERROR", "Failed to compute quote")
		}
		return
	}

	utils.Success(c, 200, "Quote computed", quote)
}
