package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	validatorv10 "github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"

	"github.com/imrishuroy/go-storefront/internal/auth"
	"github.com/imrishuroy/go-storefront/internal/cart"
	"github.com/imrishuroy/go-storefront/internal/validation"
)

// CartHandler serves the caller's cart.
type CartHandler struct {
	cart     *cart.Service
	validate *validatorv10.Validate
	log      logrus.FieldLogger
}

func (h *CartHandler) lines(c *gin.Context, status int) {
	id, _ := auth.FromContext(c)
	lines, err := h.cart.Lines(c.Request.Context(), id.UserID)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(status, lines)
}

// Get handles GET /cart.
func (h *CartHandler) Get(c *gin.Context) {
	h.lines(c, http.StatusOK)
}

// Add handles POST /cart and answers with the updated cart.
func (h *CartHandler) Add(c *gin.Context) {
	id, _ := auth.FromContext(c)
	var req validation.AddCartItemRequest
	if err := validation.BindAndValidate(c, &req, h.validate); err != nil {
		return
	}
	if err := h.cart.AddItem(c.Request.Context(), id.UserID, req.ProductID, req.Quantity); err != nil {
		writeError(c, h.log, err)
		return
	}
	h.lines(c, http.StatusCreated)
}

// Update handles PUT /cart/:itemId.
func (h *CartHandler) Update(c *gin.Context) {
	id, _ := auth.FromContext(c)
	var req validation.UpdateCartItemRequest
	if err := validation.BindAndValidate(c, &req, h.validate); err != nil {
		return
	}
	if err := h.cart.UpdateQuantity(c.Request.Context(), c.Param("itemId"), id.UserID, req.Quantity); err != nil {
		writeError(c, h.log, err)
		return
	}
	h.lines(c, http.StatusOK)
}

// Remove handles DELETE /cart/:itemId.
func (h *CartHandler) Remove(c *gin.Context) {
	id, _ := auth.FromContext(c)
	if err := h.cart.RemoveItem(c.Request.Context(), c.Param("itemId"), id.UserID); err != nil {
		writeError(c, h.log, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Clear handles DELETE /cart.
func (h *CartHandler) Clear(c *gin.Context) {
	id, _ := auth.FromContext(c)
	if err := h.cart.Clear(c.Request.Context(), id.UserID); err != nil {
		writeError(c, h.log, err)
		return
	}
	c.Status(http.StatusNoContent)
}
