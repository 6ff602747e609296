package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/travelblog/internal/service"
)

const featuredImageField = "featuredImage"

// postRequest is a create/update body after normalisation. Nil means the
// client did not send the field.
type postRequest struct {
	Title           *string
	Category        *string
	Summary         *string
	Content         *string
	ImageURL        *string
	CurrentImageURL *string
	Author          *string
	IsPublished     *bool
	Tags            *[]string
	Image           *multipart.FileHeader
}

type postJSONBody struct {
	Title           *string         `json:"title"`
	Category        *string         `json:"category"`
	Summary         *string         `json:"summary"`
	Content         *string         `json:"content"`
	ImageURL        *string         `json:"imageUrl"`
	CurrentImageURL *string         `json:"currentImageUrl"`
	Author          *string         `json:"author"`
	IsPublished     json.RawMessage `json:"isPublished"`
	Tags            json.RawMessage `json:"tags"`
}

// parsePostRequest accepts multipart forms, urlencoded forms and JSON.
func parsePostRequest(c *gin.Context) (postRequest, error) {
	switch c.ContentType() {
	case "multipart/form-data", "application/x-www-form-urlencoded":
		return parsePostForm(c)
	default:
		return parsePostJSON(c)
	}
}

func parsePostForm(c *gin.Context) (postRequest, error) {
	var req postRequest
	req.Title = formValue(c, "title")
	req.Category = formValue(c, "category")
	req.Summary = formValue(c, "summary")
	req.Content = formValue(c, "content")
	req.ImageURL = formValue(c, "imageUrl")
	req.CurrentImageURL = formValue(c, "currentImageUrl")
	req.Author = formValue(c, "author")

	if raw := formValue(c, "isPublished"); raw != nil {
		value := truthy(*raw)
		req.IsPublished = &value
	}

	if values, ok := c.GetPostFormArray("tags"); ok {
		tags := values
		if len(values) == 1 {
			tags = splitList(values[0])
		}
		req.Tags = &tags
	}

	if c.ContentType() == "multipart/form-data" {
		file, err := c.FormFile(featuredImageField)
		switch {
		case err == nil:
			req.Image = file
		case errors.Is(err, http.ErrMissingFile):
		default:
			return req, fmt.Errorf("invalid image upload: %w", err)
		}
	}
	return req, nil
}

func parsePostJSON(c *gin.Context) (postRequest, error) {
	var body postJSONBody
	if err := c.ShouldBindJSON(&body); err != nil {
		return postRequest{}, err
	}

	req := postRequest{
		Title:           body.Title,
		Category:        body.Category,
		Summary:         body.Summary,
		Content:         body.Content,
		ImageURL:        body.ImageURL,
		CurrentImageURL: body.CurrentImageURL,
		Author:          body.Author,
	}
	if present(body.IsPublished) {
		value, err := flexBool(body.IsPublished)
		if err != nil {
			return req, err
		}
		req.IsPublished = &value
	}
	if present(body.Tags) {
		tags, err := flexStrings(body.Tags)
		if err != nil {
			return req, err
		}
		req.Tags = &tags
	}
	return req, nil
}

func (r postRequest) toInput() service.PostInput {
	input := service.PostInput{
		Title:    deref(r.Title),
		Category: deref(r.Category),
		Summary:  deref(r.Summary),
		Content:  deref(r.Content),
		ImageURL: deref(r.ImageURL),
		Author:   deref(r.Author),
	}
	if r.CurrentImageURL != nil && input.ImageURL == "" {
		input.ImageURL = *r.CurrentImageURL
	}
	if r.IsPublished != nil {
		input.IsPublished = *r.IsPublished
	}
	if r.Tags != nil {
		input.Tags = *r.Tags
	}
	return input
}

// toPatch prefers currentImageUrl over imageUrl when no file was uploaded.
func (r postRequest) toPatch() service.PostPatch {
	patch := service.PostPatch{
		Title:       r.Title,
		Category:    r.Category,
		Summary:     r.Summary,
		Content:     r.Content,
		IsPublished: r.IsPublished,
		Tags:        r.Tags,
	}
	switch {
	case r.CurrentImageURL != nil:
		patch.ImageURL = r.CurrentImageURL
	case r.ImageURL != nil:
		patch.ImageURL = r.ImageURL
	}
	return patch
}

func formValue(c *gin.Context, key string) *string {
	value, ok := c.GetPostForm(key)
	if !ok {
		return nil
	}
	return &value
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func present(raw json.RawMessage) bool {
	trimmed := strings.TrimSpace(string(raw))
	return trimmed != "" && trimmed != "null"
}

// truthy 兼容表单复选框与字符串形式的布尔值。
func truthy(raw string) bool {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "true", "1", "on", "yes":
		return true
	}
	return false
}

func flexBool(raw json.RawMessage) (bool, error) {
	var b bool
	if err := json.Unmarshal(raw, &b); err == nil {
		return b, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return truthy(s), nil
	}
	var n float64
	if err := json.Unmarshal(raw, &n); err == nil {
		return n == 1, nil
	}
	return false, errors.New("isPublished must be a boolean")
}

// flexStrings accepts ["a","b"] or "a, b".
func flexStrings(raw json.RawMessage) ([]string, error) {
	var list []string
	if err := json.Unmarshal(raw, &list); err == nil {
		return list, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return splitList(s), nil
	}
	return nil, errors.New("expected a list of strings or a comma separated string")
}

// splitList splits a comma separated value and drops blanks.
func splitList(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
