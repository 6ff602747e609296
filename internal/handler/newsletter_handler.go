package handler

import (
	"bytes"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/travelblog/internal/db"
	"github.com/travelblog/internal/service"
)

type subscribeRequest struct {
	Email  string `json:"email" form:"email"`
	Name   string `json:"name" form:"name"`
	Source string `json:"source" form:"source"`
}

type unsubscribeRequest struct {
	Email string `json:"email" form:"email"`
}

func subscriberSummary(subscriber *db.Subscriber) gin.H {
	return gin.H{
		"email":             subscriber.Email,
		"name":              subscriber.Name,
		"subscribedAt":      subscriber.SubscribedAt,
		"source":            subscriber.Source,
		"subscriptionCount": subscriber.SubscriptionCount,
	}
}

// Subscribe 订阅或重新激活邮件通讯。
func (a *API) Subscribe(c *gin.Context) {
	var payload subscribeRequest
	if !bindBody(c, &payload, "Email is required.") {
		return
	}

	result, err := a.newsletter.Subscribe(c.Request.Context(), service.SubscribeInput{
		Email:  payload.Email,
		Name:   payload.Name,
		Source: payload.Source,
	})
	if err != nil {
		a.respondServiceError(c, err, "Failed to subscribe. Please try again later.")
		return
	}

	message := "Successfully subscribed to our newsletter!"
	status := http.StatusCreated
	if result.Reactivated {
		message = "Welcome back! Your subscription has been reactivated."
		status = http.StatusOK
	}
	c.JSON(status, gin.H{
		"success":    true,
		"message":    message,
		"subscriber": subscriberSummary(result.Subscriber),
	})
}

func (a *API) Unsubscribe(c *gin.Context) {
	var payload unsubscribeRequest
	if !bindBody(c, &payload, "Email is required.") {
		return
	}

	if _, err := a.newsletter.Unsubscribe(c.Request.Context(), payload.Email); err != nil {
		a.respondServiceError(c, err, "Failed to unsubscribe.")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Successfully unsubscribed from our newsletter."})
}

// ListSubscribers 分页返回活跃订阅者。
func (a *API) ListSubscribers(c *gin.Context) {
	result, err := a.newsletter.List(c.Request.Context(), service.SubscriberListParams{
		Search: c.Query("search"),
		Page:   c.Query("page"),
		Limit:  c.Query("limit"),
	})
	if err != nil {
		a.respondServiceError(c, err, "Failed to fetch subscribers.")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":     true,
		"subscribers": result.Subscribers,
		"pagination": gin.H{
			"currentPage":      result.Page,
			"totalPages":       result.TotalPages,
			"totalSubscribers": result.Total,
			"hasNext":          result.HasNext,
			"hasPrev":          result.HasPrev,
		},
	})
}

func (a *API) SubscriberStats(c *gin.Context) {
	stats, err := a.newsletter.Stats(c.Request.Context())
	if err != nil {
		a.respondServiceError(c, err, "Failed to fetch newsletter statistics.")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "stats": stats})
}

// ExportSubscribers 以 CSV 附件导出活跃订阅者。
func (a *API) ExportSubscribers(c *gin.Context) {
	var buf bytes.Buffer
	if err := a.newsletter.WriteCSV(c.Request.Context(), &buf); err != nil {
		a.respondServiceError(c, err, "Failed to export subscribers.")
		return
	}

	filename := service.ExportFilename(a.now())
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, "text/csv; charset=utf-8", buf.Bytes())
}
