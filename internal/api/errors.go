package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"reconciliation-dashboard/pkg/errors"
	"reconciliation-dashboard/pkg/logger"
)

// statusFor maps an error category to an HTTP status
func statusFor(category errors.ErrorCategory) int {
	switch category {
	case errors.CategoryValidation:
		return http.StatusBadRequest
	case errors.CategoryNotFound:
		return http.StatusNotFound
	case errors.CategoryParse, errors.CategoryFile:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// writeError renders err as {"error": ...}. Unclassified errors are
// logged and reported without their internals.
func writeError(c *gin.Context, err error) {
	re, ok := errors.AsReconcilerError(err)
	if !ok {
		logger.WithComponent("api").WithError(err).Error("Unhandled error")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	status := statusFor(re.Category)
	body := gin.H{"error": re.Message, "code": re.Code}

	switch {
	case re.Category == errors.CategoryNotFound:
		body["error"] = "Transaction not found"
	case status == http.StatusInternalServerError:
		logger.WithComponent("api").WithError(err).Error("Request failed")
	case re.Cause != nil:
		body["details"] = re.Cause.Error()
	}
	if re.Suggestion != "" {
		body["suggestion"] = re.Suggestion
	}

	c.JSON(status, body)
}
