package model

import (
	"time"

	"github.com/google/uuid"
)

// Announcement 公告模型
type Announcement struct {
	ID        string    `json:"id" gorm:"primaryKey;size:36"`
	Title     string    `json:"title" gorm:"size:200;not null"`
	Content   string    `json:"content" gorm:"type:text"`
	Type      string    `json:"type" gorm:"size:20;default:'info'"` // info, update, warning
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
	CreatedBy *int64    `json:"createdBy"`
	IsActive  bool      `json:"isActive" gorm:"index"`
	Priority  int       `json:"priority" gorm:"default:0"`
}

// TableName 指定表名
func (Announcement) TableName() string {
	return "announcements"
}

// AnnouncementRequest 创建/更新公告请求
type AnnouncementRequest struct {
	Title    string `json:"title"`
	Content  string `json:"content"`
	Type     string `json:"type"`
	Priority int    `json:"priority"`
	IsActive *bool  `json:"isActive"`
}

// Apply 将请求内容写入公告
func (r *AnnouncementRequest) Apply(a *Announcement) {
	a.Title = r.Title
	a.Content = r.Content
	a.Type = r.Type
	if a.Type == "" {
		a.Type = "info"
	}
	a.Priority = r.Priority
	if r.IsActive != nil {
		a.IsActive = *r.IsActive
	}
}

// NewAnnouncement 创建新公告
func NewAnnouncement(req AnnouncementRequest, userID int64) *Announcement {
	a := &Announcement{
		ID:        uuid.New().String(),
		CreatedBy: &userID,
		IsActive:  true,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	req.Apply(a)
	return a
}
