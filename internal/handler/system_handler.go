package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

const serviceName = "Travel Tour Blog Server"

// endpoints 列出对外公开的接口，用于欢迎页与 404 响应。
var endpoints = gin.H{
	"GET /":                                         "API documentation",
	"GET /health":                                   "Health check",
	"GET /ws":                                       "Realtime notifications (WebSocket)",
	"GET /api/user/blog/posts":                      "List published posts",
	"GET /api/user/blog/posts/:id":                  "Get a published post",
	"GET /api/user/blog/categories":                 "List categories",
	"GET /api/admin/blog/posts":                     "List all posts",
	"POST /api/admin/blog/posts":                    "Create a post",
	"GET /api/admin/blog/posts/:id":                 "Get any post",
	"PUT /api/admin/blog/posts/:id":                 "Update a post",
	"DELETE /api/admin/blog/posts/:id":              "Delete a post",
	"POST /api/admin/uploads":                       "Upload a featured image",
	"POST /api/contact/submit":                      "Submit the contact form",
	"GET /api/submissions/admin":                    "List submissions",
	"GET /api/submissions/admin/unread-count":       "Admin unread count",
	"GET /api/submissions/user/:email":              "List a user's submissions",
	"GET /api/submissions/user/:email/unread-count": "User unread count",
	"POST /api/submissions/:id/reply":               "Reply to a submission",
	"PUT /api/submissions/:id/read-admin":           "Mark read by admin",
	"PUT /api/submissions/:id/read-user":            "Mark read by user",
	"PUT /api/submissions/:id/status":               "Update submission status",
	"DELETE /api/submissions/:id":                   "Delete a submission",
	"POST /api/newsletter/subscribe":                "Subscribe to the newsletter",
	"POST /api/newsletter/unsubscribe":              "Unsubscribe",
	"GET /api/newsletter/subscribers":               "List subscribers",
	"GET /api/newsletter/stats":                     "Subscriber statistics",
	"GET /api/newsletter/export":                    "Export subscribers as CSV",
}

// HealthCheck 提供部署平台与监控系统使用的健康检查端点。
func (a *API) HealthCheck(c *gin.Context) {
	body := gin.H{
		"success": true,
		"status":  "OK",
		"service": serviceName,
		"time":    a.now().UTC(),
		"environment": gin.H{
			"store":      a.integrations.StoreDriver,
			"media":      a.integrations.MediaDriver,
			"hasCMS":     a.integrations.CMS,
			"hasNewsAPI": a.integrations.NewsAPI,
			"hasMail":    a.integrations.Mail,
			"clientUrl":  a.integrations.ClientURL,
			"port":       a.integrations.Port,
		},
	}
	if a.ingest != nil {
		if stats, ok := a.ingest.LastRun(); ok {
			body["ingestion"] = stats
		}
	}

	if err := a.store.Ping(c.Request.Context()); err != nil {
		body["success"] = false
		body["status"] = "error"
		body["database"] = "down"
		body["message"] = "database unreachable"
		c.JSON(http.StatusServiceUnavailable, body)
		return
	}

	body["database"] = "up"
	c.JSON(http.StatusOK, body)
}

// Welcome 返回 API 简介与可用接口列表。
func (a *API) Welcome(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"message":       "Welcome to Travel Tour Blog API",
		"version":       "1.0.0",
		"endpoints":     endpoints,
		"documentation": "All blog routes are prefixed with /api",
	})
}

// NotFound 处理未匹配的路由，返回可用接口列表。
func (a *API) NotFound(c *gin.Context) {
	c.JSON(http.StatusNotFound, gin.H{
		"success":            false,
		"message":            "The requested endpoint " + c.Request.URL.Path + " does not exist",
		"availableEndpoints": endpoints,
	})
}
