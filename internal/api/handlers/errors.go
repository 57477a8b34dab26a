package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/your-org/photostack/internal/errs"
)

// writeError maps service errors onto HTTP statuses: bad input is the
// caller's fault, a missing record is 404, anything else is internal.
func writeError(c *gin.Context, err error) {
	switch {
	case errs.IsValidation(err):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, errs.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "image not found"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
