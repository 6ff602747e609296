package db

import (
	"time"

	"gorm.io/gorm"
)

// 订阅来源
const (
	SourceBlog    = "blog"
	SourceWebsite = "website"
	SourceManual  = "manual"
)

// Sources lists every accepted subscription source.
var Sources = []string{SourceBlog, SourceWebsite, SourceManual}

// Subscriber 邮件通讯订阅，以规范化后的邮箱为唯一键。
type Subscriber struct {
	ID                string     `gorm:"primaryKey;size:36" json:"id" bson:"_id"`
	Name              string     `gorm:"size:100;not null" json:"name" bson:"name"`
	Email             string     `gorm:"size:254;not null;uniqueIndex" json:"email" bson:"email"`
	SubscribedAt      time.Time  `gorm:"index" json:"subscribedAt" bson:"subscribedAt"`
	Source            string     `gorm:"size:16" json:"source" bson:"source"`
	IsActive          bool       `gorm:"index" json:"isActive" bson:"isActive"`
	LastNotified      *time.Time `json:"lastNotified" bson:"lastNotified,omitempty"`
	SubscriptionCount int        `json:"subscriptionCount" bson:"subscriptionCount"`
	CreatedAt         time.Time  `json:"createdAt" bson:"createdAt"`
	UpdatedAt         time.Time  `json:"updatedAt" bson:"updatedAt"`
}

// TableName keeps the table aligned with the mongo collection name.
func (Subscriber) TableName() string {
	return "newsletters"
}

func (s *Subscriber) BeforeCreate(*gorm.DB) error {
	if s.ID == "" {
		s.ID = NewID()
	}
	return nil
}

// IsValidSource 判断 source 是否为允许的来源。
func IsValidSource(source string) bool {
	for _, s := range Sources {
		if s == source {
			return true
		}
	}
	return false
}
