package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/gxtnewfolder/cafe-pos-system-sub000/internal/core/domain"
	"github.com/gxtnewfolder/cafe-pos-system-sub000/internal/core/service"
	"github.com/gxtnewfolder/cafe-pos-system-sub000/internal/port"
	"github.com/gxtnewfolder/cafe-pos-system-sub000/pkg/logger"
)

const idempotencyHeader = "Idempotency-Key"

type HTTPHandler struct {
	orderService    *service.OrderService
	catalogService  *service.CatalogService
	settingsService *service.SettingsService
	log             logger.Logger
}

func NewHTTPHandler(orderService *service.OrderService, catalogService *service.CatalogService, settingsService *service.SettingsService, log logger.Logger) *HTTPHandler {
	return &HTTPHandler{
		orderService:    orderService,
		catalogService:  catalogService,
		settingsService: settingsService,
		log:             log,
	}
}

func (h *HTTPHandler) PlaceOrder(c *gin.Context) {
	var req PlaceOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, PlaceOrderResponse{Error: "invalid request body"})
		return
	}
	if req.IdempotencyKey == "" {
		req.IdempotencyKey = strings.TrimSpace(c.GetHeader(idempotencyHeader))
	}
	if err := validateRequest(req); err != nil {
		c.JSON(http.StatusBadRequest, PlaceOrderResponse{Error: err.Error()})
		return
	}

	result, err := h.orderService.PlaceOrder(c.Request.Context(), req.toCommand())
	if err != nil {
		status, message := h.classify(c, err)
		c.JSON(status, PlaceOrderResponse{Error: message})
		return
	}

	c.JSON(http.StatusCreated, newPlaceOrderResponse(result))
}

func (h *HTTPHandler) GetOrder(c *gin.Context) {
	order, err := h.orderService.GetOrder(c.Request.Context(), c.Param("id"))
	if err != nil {
		status, message := h.classify(c, err)
		c.JSON(status, gin.H{"error": message})
		return
	}
	c.JSON(http.StatusOK, newOrderResponse(order))
}

func (h *HTTPHandler) GetProduct(c *gin.Context) {
	product, err := h.catalogService.GetProduct(c.Request.Context(), c.Param("id"))
	if err != nil {
		status, message := h.classify(c, err)
		c.JSON(status, gin.H{"error": message})
		return
	}
	c.JSON(http.StatusOK, newProductResponse(product))
}

func (h *HTTPHandler) SetStock(c *gin.Context) {
	var req SetStockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if err := validateRequest(req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	product, err := h.catalogService.SetStock(c.Request.Context(), c.Param("id"), *req.Stock, *req.Version)
	if err != nil {
		status, message := h.classify(c, err)
		c.JSON(status, gin.H{"error": message})
		return
	}
	c.JSON(http.StatusOK, newProductResponse(product))
}

func (h *HTTPHandler) GetSettings(c *gin.Context) {
	settings, err := h.settingsService.Get(c.Request.Context())
	if err != nil {
		status, message := h.classify(c, err)
		c.JSON(status, gin.H{"error": message})
		return
	}
	c.JSON(http.StatusOK, settings)
}

func (h *HTTPHandler) UpdateSettings(c *gin.Context) {
	var req domain.StoreSettings
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	settings, err := h.settingsService.Update(c.Request.Context(), req)
	if err != nil {
		status, message := h.classify(c, err)
		c.JSON(status, gin.H{"error": message})
		return
	}
	c.JSON(http.StatusOK, settings)
}

func (h *HTTPHandler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// classify maps a service error to a status code and a message safe to show the client.
// Checkout reports unknown products as a 400 like any other cart problem.
func (h *HTTPHandler) classify(c *gin.Context, err error) (int, string) {
	switch {
	case errors.Is(err, service.ErrNotFound) && c.Request.Method != http.MethodPost:
		return http.StatusNotFound, err.Error()
	case errors.Is(err, service.ErrDuplicateRequest):
		return http.StatusConflict, "duplicate request in progress"
	case errors.Is(err, port.ErrOptimisticLock):
		return http.StatusConflict, "product was modified, reload and retry"
	case errors.Is(err, port.ErrLockConflict):
		h.log.WithContext(c.Request.Context()).Warn("transaction lock conflict", logger.String("path", c.FullPath()), logger.Error(err))
		return http.StatusConflict, "checkout conflicted with a concurrent sale, retry"
	case service.IsBusinessError(err):
		return http.StatusBadRequest, err.Error()
	}

	h.log.WithContext(c.Request.Context()).Error("request failed",
		logger.String("method", c.Request.Method),
		logger.String("path", c.FullPath()),
		logger.Error(err),
	)
	return http.StatusInternalServerError, "internal error"
}
