package handler

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/travelblog/internal/media"
	"github.com/travelblog/internal/service"
	"github.com/travelblog/internal/store"
)

func respondError(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"success": false, "message": message})
}

// bindBody decodes JSON or form bodies according to the request content type.
func bindBody(c *gin.Context, dst interface{}, message string) bool {
	if err := c.ShouldBind(dst); err != nil {
		respondError(c, http.StatusBadRequest, message)
		return false
	}
	return true
}

func idParam(c *gin.Context) string {
	return strings.TrimSpace(c.Param("id"))
}

// respondServiceError 将服务层错误映射为统一的 HTTP 响应。
func (a *API) respondServiceError(c *gin.Context, err error, fallback string) {
	var validation *service.ValidationError
	var conflict *service.ConflictError
	var duplicate *store.DuplicateError

	switch {
	case errors.As(err, &validation):
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"message": "Validation failed.",
			"errors":  validation.Fields,
		})
	case errors.Is(err, service.ErrInvalidID):
		respondError(c, http.StatusBadRequest, "Invalid id format.")
	case errors.Is(err, service.ErrAlreadySubscribed):
		respondError(c, http.StatusBadRequest, "This email is already subscribed to our newsletter.")
	case errors.Is(err, media.ErrImageTooLarge), errors.Is(err, media.ErrUnsupportedImage):
		respondError(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrPostNotFound):
		respondError(c, http.StatusNotFound, "Post not found.")
	case errors.Is(err, service.ErrSubmissionNotFound):
		respondError(c, http.StatusNotFound, "Submission not found.")
	case errors.Is(err, service.ErrSubscriberNotFound):
		respondError(c, http.StatusNotFound, "Subscriber not found.")
	case errors.Is(err, store.ErrNotFound):
		respondError(c, http.StatusNotFound, "Resource not found.")
	case errors.As(err, &conflict):
		c.JSON(http.StatusConflict, gin.H{"success": false, "message": conflict.Message, "field": conflict.Field})
	case errors.As(err, &duplicate):
		c.JSON(http.StatusConflict, gin.H{"success": false, "message": "Duplicate entry.", "field": duplicate.Field})
	case errors.Is(err, context.DeadlineExceeded):
		respondError(c, http.StatusGatewayTimeout, "The request timed out.")
	case errors.Is(err, store.ErrUnavailable):
		respondError(c, http.StatusServiceUnavailable, "The database is currently unavailable.")
	default:
		log.Printf("[ERROR] %s %s: %v", c.Request.Method, c.FullPath(), err)
		body := gin.H{"success": false, "message": fallback}
		if a.development {
			body["error"] = err.Error()
		}
		c.JSON(http.StatusInternalServerError, body)
	}
}
