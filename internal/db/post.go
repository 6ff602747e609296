package db

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// 文章分类
const (
	CategoryTravels = "Travels"
	CategoryTours   = "Tours"
	CategoryHotels  = "Hotels"
	CategoryTourism = "Tourism"
)

// Categories lists every accepted post category in display order.
var Categories = []string{CategoryTravels, CategoryTours, CategoryHotels, CategoryTourism}

// DefaultAuthor is stored when a post is created without an author.
const DefaultAuthor = "Admin"

// Post 定义了博客文章模型
type Post struct {
	ID          string    `gorm:"primaryKey;size:36" json:"id" bson:"_id"`
	Title       string    `gorm:"size:200;not null;uniqueIndex" json:"title" bson:"title"`
	Category    string    `gorm:"size:32;not null;index" json:"category" bson:"category"`
	Summary     string    `gorm:"size:500" json:"summary" bson:"summary"`
	Content     string    `gorm:"type:text;not null" json:"content,omitempty" bson:"content"`
	ImageURL    string    `gorm:"size:512" json:"imageUrl" bson:"imageUrl"`
	IsPublished bool      `gorm:"index:idx_posts_published_created,priority:1" json:"isPublished" bson:"isPublished"`
	Tags        []string  `gorm:"serializer:json" json:"tags" bson:"tags"`
	Views       int64     `json:"views" bson:"views"`
	Author      string    `gorm:"size:100" json:"author" bson:"author"`
	CreatedAt   time.Time `gorm:"index:idx_posts_published_created,priority:2" json:"createdAt" bson:"createdAt"`
	UpdatedAt   time.Time `gorm:"index" json:"updatedAt" bson:"updatedAt"`
}

// BeforeCreate 在未指定 ID 时生成 UUID。
func (p *Post) BeforeCreate(*gorm.DB) error {
	if p.ID == "" {
		p.ID = NewID()
	}
	return nil
}

// IsValidCategory reports whether category is one of Categories.
func IsValidCategory(category string) bool {
	for _, c := range Categories {
		if c == category {
			return true
		}
	}
	return false
}

// NewID 生成新的文档 ID。
func NewID() string {
	return uuid.NewString()
}
