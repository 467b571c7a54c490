package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	validatorv10 "github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"

	"github.com/imrishuroy/go-storefront/internal/apperr"
	"github.com/imrishuroy/go-storefront/internal/auth"
	"github.com/imrishuroy/go-storefront/internal/events"
	"github.com/imrishuroy/go-storefront/internal/idempotency"
	"github.com/imrishuroy/go-storefront/internal/metrics"
	"github.com/imrishuroy/go-storefront/internal/orders"
	"github.com/imrishuroy/go-storefront/internal/validation"
)

// HeaderIdempotencyKey is the optional retry key of POST /orders.
const HeaderIdempotencyKey = "Idempotency-Key"

// OrdersHandler serves order placement and history.
type OrdersHandler struct {
	coordinator *orders.Coordinator
	history     *orders.History
	guard       *idempotency.Guard // nil disables Idempotency-Key support
	emitter     *events.Emitter
	metrics     metrics.Recorder
	validate    *validatorv10.Validate
	log         logrus.FieldLogger
}

type createOrderResponse struct {
	OrderID string `json:"orderId"`
}

// Create handles POST /orders.
func (h *OrdersHandler) Create(c *gin.Context) {
	ctx := c.Request.Context()
	id, _ := auth.FromContext(c)

	// Bind + validate request
	var req validation.CreateOrderRequest
	if err := validation.BindAndValidate(c, &req, h.validate); err != nil {
		// BindAndValidate already wrote a 400
		h.metrics.OrderRejected(ctx, metrics.ReasonValidation)
		return
	}

	key := ""
	if h.guard != nil && c.GetHeader(HeaderIdempotencyKey) != "" {
		key = idempotency.ScopedKey(id.UserID, c.GetHeader(HeaderIdempotencyKey))
		d, err := h.guard.Claim(ctx, key)
		switch {
		case err != nil:
			// bookkeeping is best effort; place the order unprotected
			h.log.WithError(err).WithField("idempotency_key", key).Warn("idempotency unavailable")
			key = ""
		case !d.Claimed:
			h.replay(c, d.Existing)
			return
		}
	}

	in := req.Input(id.UserID)
	order, err := h.coordinator.PlaceOrder(ctx, in)
	if err != nil {
		if key != "" {
			h.guard.Fail(ctx, key, err.Error())
		}
		h.metrics.OrderRejected(ctx, rejectReason(err))
		writeError(c, h.log, err)
		return
	}

	body, _ := json.Marshal(createOrderResponse{OrderID: order.OrderID})
	if key != "" {
		h.guard.Done(ctx, key, order.OrderID, string(body), http.StatusCreated)
	}
	h.metrics.OrderPlaced(ctx, order)
	_ = h.emitter.Emit(ctx, events.NewOrderPlaced(order, in.Lines))

	c.Header("Location", fmt.Sprintf("/orders/%s", order.OrderID))
	c.Data(http.StatusCreated, "application/json; charset=utf-8", body)
}

// replay answers a retried request from its idempotency record.
func (h *OrdersHandler) replay(c *gin.Context, rec *idempotency.Record) {
	switch rec.Status {
	case idempotency.StatusDone:
		if rec.ResponseBody != "" && json.Valid([]byte(rec.ResponseBody)) {
			c.Data(rec.ResponseStatus, "application/json; charset=utf-8", []byte(rec.ResponseBody))
			return
		}
		// if no response body stored, return 200 with the order id
		c.JSON(http.StatusOK, createOrderResponse{OrderID: rec.OrderID})
	case idempotency.StatusInProgress:
		c.JSON(http.StatusAccepted, gin.H{"message": "request already in progress"})
	default:
		c.JSON(http.StatusConflict, gin.H{"error": "idempotency_conflict", "status": rec.Status})
	}
}

func rejectReason(err error) string {
	if apperr.IsValidation(err) {
		return metrics.ReasonValidation
	}
	if _, ok := apperr.InsufficientStock(err); ok {
		return metrics.ReasonInsufficientStock
	}
	return metrics.ReasonError
}

// Mine handles GET /orders/my.
func (h *OrdersHandler) Mine(c *gin.Context) {
	id, _ := auth.FromContext(c)
	views, err := h.history.Orders(c.Request.Context(), orders.UserScope(id.UserID))
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, views)
}

// All handles GET /orders/all. Admin only.
func (h *OrdersHandler) All(c *gin.Context) {
	views, err := h.history.Orders(c.Request.Context(), orders.AllScope())
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, views)
}
