package handler

import (
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/travelblog/internal/service"
)

func listParams(c *gin.Context) service.ListParams {
	return service.ListParams{
		Search:      c.Query("search"),
		Category:    c.Query("category"),
		Page:        c.Query("page"),
		Limit:       c.Query("limit"),
		IsPublished: c.Query("isPublished"),
		Fields:      c.Query("fields"),
	}
}

// ListAdminPosts 返回全部文章，仅在传入 page/limit 时分页。
func (a *API) ListAdminPosts(c *gin.Context) {
	query := service.BuildPostQuery(listParams(c))
	paginate := c.Query("page") != "" || c.Query("limit") != ""
	withCount := strings.EqualFold(c.Query("withCount"), "true")

	result, err := a.posts.ListAdmin(c.Request.Context(), query, paginate, withCount)
	if err != nil {
		a.respondServiceError(c, err, "Failed to retrieve admin blog posts.")
		return
	}

	body := gin.H{
		"success": true,
		"posts":   result.Posts,
		"count":   len(result.Posts),
	}
	if result.Counted {
		body["totalPosts"] = result.Total
	}
	if result.Paginated {
		body["currentPage"] = result.Page
		body["totalPages"] = result.TotalPages
		body["hasNext"] = result.HasNext
		body["hasPrev"] = result.HasPrev
	}
	c.JSON(http.StatusOK, body)
}

// GetAdminPost 按 ID 返回文章，不区分发布状态。
func (a *API) GetAdminPost(c *gin.Context) {
	post, err := a.posts.Get(c.Request.Context(), idParam(c))
	if err != nil {
		a.respondServiceError(c, err, "Failed to retrieve post for admin.")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "post": post})
}

// CreatePost 创建新文章，可同时上传封面图。
func (a *API) CreatePost(c *gin.Context) {
	req, err := parsePostRequest(c)
	if err != nil {
		respondError(c, http.StatusBadRequest, "Invalid request body.")
		return
	}

	input := req.toInput()
	if err := a.posts.Validate(input); err != nil {
		a.respondServiceError(c, err, "Server error during post creation.")
		return
	}

	if req.Image != nil {
		url, ok := a.storeImage(c, req.Image)
		if !ok {
			return
		}
		input.ImageURL = url
	}

	post, err := a.posts.Create(c.Request.Context(), input)
	if err != nil {
		a.respondServiceError(c, err, "Server error during post creation.")
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"message": "Post created successfully!",
		"post":    post,
	})
}

// UpdatePost 更新文章，未提供的字段保持不变。
func (a *API) UpdatePost(c *gin.Context) {
	req, err := parsePostRequest(c)
	if err != nil {
		respondError(c, http.StatusBadRequest, "Invalid request body.")
		return
	}

	prepared, err := a.posts.PrepareUpdate(c.Request.Context(), idParam(c), req.toPatch())
	if err != nil {
		a.respondServiceError(c, err, "Server error during post update.")
		return
	}

	// 文章存在且校验通过后才保存图片
	if req.Image != nil {
		url, ok := a.storeImage(c, req.Image)
		if !ok {
			return
		}
		prepared.ImageURL = url
	}

	post, err := a.posts.Save(c.Request.Context(), prepared)
	if err != nil {
		a.respondServiceError(c, err, "Server error during post update.")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Post updated successfully!",
		"post":    post,
	})
}

// DeletePost 删除文章，已上传的图片保留。
func (a *API) DeletePost(c *gin.Context) {
	if err := a.posts.Delete(c.Request.Context(), idParam(c)); err != nil {
		a.respondServiceError(c, err, "Server error during post deletion.")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Post deleted successfully."})
}

// ListPublishedPosts 公开文章列表，不返回正文。
func (a *API) ListPublishedPosts(c *gin.Context) {
	params := listParams(c)
	params.IsPublished = ""
	params.Fields = ""

	result, err := a.posts.ListPublished(c.Request.Context(), service.BuildPostQuery(params))
	if err != nil {
		a.respondServiceError(c, err, "Failed to retrieve published blog posts.")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":     true,
		"posts":       result.Posts,
		"totalPosts":  result.Total,
		"currentPage": result.Page,
		"totalPages":  result.TotalPages,
		"hasNext":     result.HasNext,
		"hasPrev":     result.HasPrev,
	})
}

// GetPublishedPost 返回已发布文章并累计浏览量。
func (a *API) GetPublishedPost(c *gin.Context) {
	post, err := a.posts.GetPublished(c.Request.Context(), idParam(c))
	if err != nil {
		a.respondServiceError(c, err, "Failed to retrieve public blog post.")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "post": post})
}

// ListCategories returns the categories that have published posts.
func (a *API) ListCategories(c *gin.Context) {
	categories, err := a.posts.Categories(c.Request.Context())
	if err != nil {
		a.respondServiceError(c, err, "Failed to retrieve categories.")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "categories": categories})
}

func (a *API) storeImage(c *gin.Context, file *multipart.FileHeader) (string, bool) {
	if a.media == nil {
		respondError(c, http.StatusServiceUnavailable, "Image uploads are not configured.")
		return "", false
	}
	url, err := a.media.SaveUpload(c.Request.Context(), file)
	if err != nil {
		a.respondServiceError(c, err, "Failed to upload image.")
		return "", false
	}
	return url, true
}
