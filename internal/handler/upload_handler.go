package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// UploadImage 处理独立的封面图上传请求
func (a *API) UploadImage(c *gin.Context) {
	// 获取上传的文件
	file, err := c.FormFile("image")
	if err != nil {
		respondError(c, http.StatusBadRequest, "No image file was uploaded.")
		return
	}

	url, ok := a.storeImage(c, file)
	if !ok {
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Image uploaded successfully.",
		"url":     url,
	})
}
