package router

import (
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/travelblog/internal/handler"
	"github.com/travelblog/internal/realtime"
)

// Options 路由层自身的配置
type Options struct {
	ClientURL     string
	UploadDir     string
	UploadURLPath string
}

// SetupRouter 配置 Gin 引擎和路由
func SetupRouter(api *handler.API, hub *realtime.Hub, opts Options) *gin.Engine {
	r := gin.New()
	r.Use(gin.Logger(), gin.CustomRecovery(recoverJSON))
	r.Use(corsMiddleware(opts.ClientURL))

	// 本地存储时直接提供上传文件
	if opts.UploadDir != "" && opts.UploadURLPath != "" {
		r.Static(opts.UploadURLPath, opts.UploadDir)
	}

	r.GET("/", api.Welcome)
	r.GET("/health", api.HealthCheck)
	if hub != nil {
		r.GET("/ws", gin.WrapF(hub.ServeWS))
	}

	apiGroup := r.Group("/api")
	{
		// 后台文章接口，认证留给后续中间件
		admin := apiGroup.Group("/admin")
		{
			admin.GET("/blog/posts", api.ListAdminPosts)
			admin.POST("/blog/posts", api.CreatePost)
			admin.GET("/blog/posts/:id", api.GetAdminPost)
			admin.PUT("/blog/posts/:id", api.UpdatePost)
			admin.DELETE("/blog/posts/:id", api.DeletePost)
			admin.POST("/uploads", api.UploadImage)
		}

		user := apiGroup.Group("/user")
		{
			user.GET("/blog/posts", api.ListPublishedPosts)
			user.GET("/blog/posts/:id", api.GetPublishedPost)
			user.GET("/blog/categories", api.ListCategories)
		}

		apiGroup.POST("/contact/submit", api.SubmitContact)

		submissions := apiGroup.Group("/submissions")
		{
			submissions.GET("/admin", api.ListAdminSubmissions)
			submissions.GET("/admin/unread-count", api.AdminUnreadCount)
			submissions.GET("/user/:email", api.ListUserSubmissions)
			submissions.GET("/user/:email/unread-count", api.UserUnreadCount)
			submissions.POST("/:id/reply", api.ReplyToSubmission)
			submissions.PUT("/:id/read-admin", api.MarkReadByAdmin)
			submissions.PUT("/:id/read-user", api.MarkReadByUser)
			submissions.PUT("/:id/status", api.UpdateSubmissionStatus)
			submissions.DELETE("/:id", api.DeleteSubmission)
		}

		newsletter := apiGroup.Group("/newsletter")
		{
			newsletter.POST("/subscribe", api.Subscribe)
			newsletter.POST("/unsubscribe", api.Unsubscribe)
			newsletter.GET("/subscribers", api.ListSubscribers)
			newsletter.GET("/stats", api.SubscriberStats)
			newsletter.GET("/export", api.ExportSubscribers)
		}
	}

	r.NoRoute(api.NotFound)
	return r
}

func corsMiddleware(clientURL string) gin.HandlerFunc {
	config := cors.Config{
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowHeaders: []string{"Origin", "Content-Type", "Authorization"},
		MaxAge:       12 * time.Hour,
	}
	origin := strings.TrimRight(strings.TrimSpace(clientURL), "/")
	if origin == "" {
		config.AllowAllOrigins = true
	} else {
		config.AllowOrigins = []string{origin}
		config.AllowCredentials = true
	}
	return cors.New(config)
}

func recoverJSON(c *gin.Context, recovered any) {
	log.Printf("[ERROR] panic serving %s %s: %v", c.Request.Method, c.Request.URL.Path, recovered)
	c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
		"success": false,
		"message": "Internal server error",
	})
}
