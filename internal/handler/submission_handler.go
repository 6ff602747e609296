package handler

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/travelblog/internal/service"
)

type submissionJSONBody struct {
	FirstName   string          `json:"firstName"`
	LastName    string          `json:"lastName"`
	Email       string          `json:"email"`
	Phone       string          `json:"phone"`
	Address     string          `json:"address"`
	Interests   json.RawMessage `json:"interests"`
	Experience  string          `json:"experience"`
	Message     string          `json:"message"`
	HearAboutUs string          `json:"hearAboutUs"`
	UserID      string          `json:"userId"`
}

type replyRequest struct {
	AdminReply string `json:"adminReply" form:"adminReply"`
	AdminID    string `json:"adminId" form:"adminId"`
}

type statusRequest struct {
	Status string `json:"status" form:"status"`
}

func parseSubmissionInput(c *gin.Context) (service.SubmissionInput, error) {
	switch c.ContentType() {
	case "multipart/form-data", "application/x-www-form-urlencoded":
		input := service.SubmissionInput{
			FirstName:   c.PostForm("firstName"),
			LastName:    c.PostForm("lastName"),
			Email:       c.PostForm("email"),
			Phone:       c.PostForm("phone"),
			Address:     c.PostForm("address"),
			Experience:  c.PostForm("experience"),
			Message:     c.PostForm("message"),
			HearAboutUs: c.PostForm("hearAboutUs"),
			UserID:      c.PostForm("userId"),
		}
		if values, ok := c.GetPostFormArray("interests"); ok {
			input.Interests = values
			if len(values) == 1 {
				input.Interests = splitList(values[0])
			}
		}
		return input, nil
	}

	var body submissionJSONBody
	if err := c.ShouldBindJSON(&body); err != nil {
		return service.SubmissionInput{}, err
	}
	input := service.SubmissionInput{
		FirstName:   body.FirstName,
		LastName:    body.LastName,
		Email:       body.Email,
		Phone:       body.Phone,
		Address:     body.Address,
		Experience:  body.Experience,
		Message:     body.Message,
		HearAboutUs: body.HearAboutUs,
		UserID:      body.UserID,
	}
	if present(body.Interests) {
		interests, err := flexStrings(body.Interests)
		if err != nil {
			return input, err
		}
		input.Interests = interests
	}
	return input, nil
}

// SubmitContact 保存投稿表单，实时通知与邮件在后台发送。
func (a *API) SubmitContact(c *gin.Context) {
	input, err := parseSubmissionInput(c)
	if err != nil {
		respondError(c, http.StatusBadRequest, "Invalid request body.")
		return
	}

	submission, err := a.submissions.Submit(c.Request.Context(), input)
	if err != nil {
		a.respondServiceError(c, err, "Failed to submit the form. Please try again later.")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":      true,
		"message":      "Thank you for your submission! We will get back to you soon.",
		"submissionId": submission.ID,
	})
}

// ListAdminSubmissions 返回最新的投稿及管理员未读数。
func (a *API) ListAdminSubmissions(c *gin.Context) {
	submissions, unread, err := a.submissions.ListForAdmin(c.Request.Context())
	if err != nil {
		a.respondServiceError(c, err, "Failed to fetch submissions.")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":     true,
		"submissions": submissions,
		"unreadCount": unread,
	})
}

// ListUserSubmissions 返回指定邮箱的投稿及未读回复数。
func (a *API) ListUserSubmissions(c *gin.Context) {
	submissions, unread, err := a.submissions.ListForUser(c.Request.Context(), c.Param("email"))
	if err != nil {
		a.respondServiceError(c, err, "Failed to fetch submissions.")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":     true,
		"submissions": submissions,
		"unreadCount": unread,
	})
}

func (a *API) AdminUnreadCount(c *gin.Context) {
	count, err := a.submissions.UnreadForAdmin(c.Request.Context())
	if err != nil {
		a.respondServiceError(c, err, "Failed to fetch unread count.")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "unreadCount": count})
}

func (a *API) UserUnreadCount(c *gin.Context) {
	count, err := a.submissions.UnreadForUser(c.Request.Context(), c.Param("email"))
	if err != nil {
		a.respondServiceError(c, err, "Failed to fetch unread count.")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "unreadCount": count})
}

// ReplyToSubmission 记录管理员回复并通知投稿人所在房间。
func (a *API) ReplyToSubmission(c *gin.Context) {
	var payload replyRequest
	if !bindBody(c, &payload, "Reply message is required.") {
		return
	}

	submission, err := a.submissions.Reply(c.Request.Context(), idParam(c), payload.AdminReply, payload.AdminID)
	if err != nil {
		a.respondServiceError(c, err, "Failed to send reply.")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Reply sent successfully.",
		"submission": gin.H{
			"id":           submission.ID,
			"status":       submission.Status,
			"adminReply":   submission.AdminReply,
			"isReadByUser": submission.IsReadByUser,
		},
	})
}

func (a *API) MarkReadByAdmin(c *gin.Context) {
	submission, err := a.submissions.MarkReadByAdmin(c.Request.Context(), idParam(c))
	if err != nil {
		a.respondServiceError(c, err, "Failed to mark submission as read.")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "submission": submission})
}

func (a *API) MarkReadByUser(c *gin.Context) {
	submission, err := a.submissions.MarkReadByUser(c.Request.Context(), idParam(c))
	if err != nil {
		a.respondServiceError(c, err, "Failed to mark reply as read.")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "submission": submission})
}

// UpdateSubmissionStatus 修改投稿状态（viewed/closed）。
func (a *API) UpdateSubmissionStatus(c *gin.Context) {
	var payload statusRequest
	if !bindBody(c, &payload, "Status is required.") {
		return
	}

	submission, err := a.submissions.UpdateStatus(c.Request.Context(), idParam(c), payload.Status)
	if err != nil {
		a.respondServiceError(c, err, "Failed to update submission status.")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "submission": submission})
}

func (a *API) DeleteSubmission(c *gin.Context) {
	if err := a.submissions.Delete(c.Request.Context(), idParam(c)); err != nil {
		a.respondServiceError(c, err, "Failed to delete submission.")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Submission deleted successfully."})
}
