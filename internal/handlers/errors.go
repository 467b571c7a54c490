package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/imrishuroy/go-storefront/internal/apperr"
)

// writeError maps the error taxonomy onto a status and a body. Details of
// unclassified failures are logged, never returned.
func writeError(c *gin.Context, log logrus.FieldLogger, err error) {
	var ve *apperr.ValidationError
	if errors.As(err, &ve) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "validation_failed", "msg": ve.Error()})
		return
	}
	if apperr.IsNotFound(err) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found", "msg": err.Error()})
		return
	}
	if se, ok := apperr.InsufficientStock(err); ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "insufficient_stock", "msg": se.Error()})
		return
	}
	log.WithError(err).WithField("path", c.FullPath()).Error("request failed")
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
}
