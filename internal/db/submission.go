package db

import (
	"time"

	"gorm.io/gorm"
)

// SubmissionStatus 投稿的处理状态
type SubmissionStatus string

const (
	StatusNew     SubmissionStatus = "new"
	StatusViewed  SubmissionStatus = "viewed"
	StatusReplied SubmissionStatus = "replied"
	StatusClosed  SubmissionStatus = "closed"
)

// AdminReply 保存管理员的回复内容
type AdminReply struct {
	Message   string     `gorm:"type:text" json:"message,omitempty" bson:"message,omitempty"`
	RepliedAt *time.Time `json:"repliedAt,omitempty" bson:"repliedAt,omitempty"`
	AdminID   string     `gorm:"size:64" json:"adminId,omitempty" bson:"adminId,omitempty"`
}

// NotificationCount is advisory; unread counts are always computed by query.
type NotificationCount struct {
	Admin int `json:"admin" bson:"admin"`
	User  int `json:"user" bson:"user"`
}

// Submission 投稿表单记录
type Submission struct {
	ID                string            `gorm:"primaryKey;size:36" json:"id" bson:"_id"`
	FirstName         string            `gorm:"size:100;not null" json:"firstName" bson:"firstName"`
	LastName          string            `gorm:"size:100;not null" json:"lastName" bson:"lastName"`
	Email             string            `gorm:"size:254;not null;index:idx_submissions_email_created,priority:1" json:"email" bson:"email"`
	Phone             string            `gorm:"size:50" json:"phone" bson:"phone"`
	Address           string            `gorm:"size:255" json:"address" bson:"address"`
	Interests         []string          `gorm:"serializer:json" json:"interests" bson:"interests"`
	Experience        string            `gorm:"type:text" json:"experience" bson:"experience"`
	Message           string            `gorm:"type:text" json:"message" bson:"message"`
	HearAboutUs       string            `gorm:"size:255" json:"hearAboutUs" bson:"hearAboutUs"`
	UserID            string            `gorm:"size:64" json:"userId,omitempty" bson:"userId,omitempty"`
	Status            SubmissionStatus  `gorm:"size:16;index" json:"status" bson:"status"`
	AdminReply        AdminReply        `gorm:"embedded;embeddedPrefix:admin_reply_" json:"adminReply" bson:"adminReply"`
	IsReadByAdmin     bool              `gorm:"index" json:"isReadByAdmin" bson:"isReadByAdmin"`
	IsReadByUser      bool              `gorm:"index" json:"isReadByUser" bson:"isReadByUser"`
	NotificationCount NotificationCount `gorm:"embedded;embeddedPrefix:notification_count_" json:"notificationCount" bson:"notificationCount"`
	CreatedAt         time.Time         `gorm:"index;index:idx_submissions_email_created,priority:2" json:"createdAt" bson:"createdAt"`
	UpdatedAt         time.Time         `json:"updatedAt" bson:"updatedAt"`
}

func (s *Submission) BeforeCreate(*gorm.DB) error {
	if s.ID == "" {
		s.ID = NewID()
	}
	return nil
}

// FullName joins the submitter's first and last name.
func (s Submission) FullName() string {
	if s.LastName == "" {
		return s.FirstName
	}
	return s.FirstName + " " + s.LastName
}
