package handler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/simtrek/esim_api/internal/models"
	"github.com/simtrek/esim_api/internal/repository"
	"github.com/simtrek/esim_api/internal/service"
	"github.com/simtrek/esim_api/internal/utils"
)

// fulfillLockTTL bounds the single-flight lock in case a fulfillment call
// dies without releasing it.
const fulfillLockTTL = 5 * time.Minute

// orderLocker is the single-flight lock surface, satisfied by
// cache.RedisClient.
type orderLocker interface {
	AcquireLock(ctx context.Context, key string, ttl time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, key string) error
}

// FulfillmentHandler is the entry point for the checkout/webhook layer: one
// call per paid order, returning activation credentials or a structured
// failure.
type FulfillmentHandler struct {
	fulfillmentService *service.FulfillmentService
	offerService       *service.OfferService
	orderRepo          *repository.OrderRepository
	locks              orderLocker
}

// NewFulfillmentHandler constructs a FulfillmentHandler.
func NewFulfillmentHandler(fulfillmentService *service.FulfillmentService, offerService *service.OfferService, orderRepo *repository.OrderRepository, locks orderLocker) *FulfillmentHandler {
	return &FulfillmentHandler{
		fulfillmentService: fulfillmentService,
		offerService:       offerService,
		orderRepo:          orderRepo,
		locks:              locks,
	}
}

// FulfillRequest is what the payment layer sends after a successful charge.
type FulfillRequest struct {
	OrderReference string `json:"orderReference" binding:"required"`
	SKU            string `json:"sku" binding:"required"`
	Quantity       int    `json:"quantity"`
	CustomerEmail  string `json:"customerEmail" binding:"required,email"`
}

// Fulfill handles POST /v1/fulfillments. Calls for the same order reference
// are single-flight: a concurrent duplicate is rejected rather than risking
// a double charge against the provider account, and a replay of an already
// fulfilled order returns the stored credentials.
func (h *FulfillmentHandler) Fulfill(c *gin.Context) {
	var req FulfillRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.Error(c, 400, "INVALID_REQUEST", "Invalid request body")
		return
	}
	if req.Quantity <= 0 {
		req.Quantity = 1
	}

	ctx := c.Request.Context()
	lockKey := fmt.Sprintf("lock:fulfill:order:%s", req.OrderReference)
	acquired, err := h.locks.AcquireLock(ctx, lockKey, fulfillLockTTL)
	if err != nil {
		utils.Error(c, 500, "INTERNAL_ERROR", "Failed to acquire fulfillment lock")
		return
	}
	if !acquired {
		utils.Error(c, 409, "FULFILLMENT_IN_FLIGHT", "Fulfillment for this order is already running")
		return
	}
	defer func() {
		// The release must survive a client disconnect or the lock lingers
		// for the full TTL and blocks the webhook retry.
		if err := h.locks.ReleaseLock(context.WithoutCancel(ctx), lockKey); err != nil {
			log.Warn().Err(err).Str("order_ref", req.OrderReference).Msg("Failed to release fulfillment lock")
		}
	}()

	order, item, err := h.resolveOrder(&req)
	if err != nil {
		switch {
		case errors.Is(err, utils.ErrInvalidSKU):
			utils.Error(c, 400, "INVALID_SKU", "Malformed SKU")
		case errors.Is(err, utils.ErrOfferNotFound):
			utils.Error(c, 404, "OFFER_NOT_FOUND", "No offer for this SKU")
		default:
			utils.Error(c, 500, "INTERNAL_ERROR", "Failed to resolve order")
		}
		return
	}

	// Replay of an already fulfilled order is answered from storage.
	if item.Status == models.OrderStatusFulfilled {
		utils.Success(c, 200, "Order already fulfilled", fulfilledItemResponse(item))
		return
	}

	result, err := h.fulfillmentService.Fulfill(ctx, service.FulfillmentRequest{
		OrderItemID:         item.ID,
		OrderID:             order.ID,
		SKU:                 item.SKU,
		Quantity:            item.Quantity,
		ClientRef:           req.OrderReference,
		PreferredProviderID: item.PricedProviderID,
	})
	if err != nil {
		switch {
		case errors.Is(err, utils.ErrNoProviderAvailable):
			utils.Error(c, 404, "NO_PROVIDER_AVAILABLE", "No active provider carries this product")
		case errors.Is(err, utils.ErrFulfillmentExhausted):
			utils.Error(c, 502, "FULFILLMENT_EXHAUSTED", result.Error)
		default:
			utils.Error(c, 500, "INTERNAL_ERROR", "Fulfillment failed")
		}
		return
	}

	utils.Success(c, 200, "Order fulfilled", result)
}

// resolveOrder finds or creates the order row for a fulfillment request.
func (h *FulfillmentHandler) resolveOrder(req *FulfillRequest) (*models.Order, *models.OrderItem, error) {
	order, err := h.orderRepo.GetByReference(req.OrderReference)
	if err != nil {
		return nil, nil, err
	}
	if order != nil {
		items, err := h.orderRepo.GetItems(order.ID)
		if err != nil {
			return nil, nil, err
		}
		if len(items) == 0 {
			return nil, nil, fmt.Errorf("order %s has no items", req.OrderReference)
		}
		return order, &items[0], nil
	}

	offer, err := h.offerService.GetBySKU(req.SKU)
	if err != nil {
		return nil, nil, err
	}

	order = &models.Order{
		Reference:     req.OrderReference,
		CustomerEmail: req.CustomerEmail,
		Status:        models.OrderStatusPaid,
	}
	providerID := offer.ProviderID
	items := []models.OrderItem{{
		SKU:              req.SKU,
		Quantity:         req.Quantity,
		SellPrice:        offer.SellPrice,
		Currency:         offer.Currency,
		PricedProviderID: &providerID,
		Status:           models.OrderStatusPaid,
	}}
	if err := h.orderRepo.Create(order, items); err != nil {
		return nil, nil, err
	}
	return order, &items[0], nil
}

// GetOrder handles GET /v1/fulfillments/:reference for support lookups.
func (h *FulfillmentHandler) GetOrder(c *gin.Context) {
	order, err := h.orderRepo.GetByReference(c.Param("reference"))
	if err != nil {
		utils.Error(c, 500, "INTERNAL_ERROR", "Failed to retrieve order")
		return
	}
	if order == nil {
		utils.Error(c, 404, "ORDER_NOT_FOUND", "Order not found")
		return
	}
	items, err := h.orderRepo.GetItems(order.ID)
	if err != nil {
		utils.Error(c, 500, "INTERNAL_ERROR", "Failed to retrieve order items")
		return
	}

	utils.Success(c, 200, "Order retrieved", gin.H{
		"order": order,
		"items": items,
	})
}

func fulfilledItemResponse(item *models.OrderItem) *service.FulfillmentResult {
	result := &service.FulfillmentResult{
		Success:  true,
		Attempts: item.Attempts,
	}
	if item.FulfilledProviderID != nil {
		result.ProviderID = *item.FulfilledProviderID
	}
	if item.ICCID != nil {
		result.ICCID = *item.ICCID
	}
	if item.MatchingID != nil {
		result.MatchingID = *item.MatchingID
	}
	if item.SMDPAddress != nil {
		result.SMDPAddress = *item.SMDPAddress
	}
	if item.QRPayload != nil {
		result.QRPayload = *item.QRPayload
	}
	return result
}
