package model

import (
	"time"

	"github.com/google/uuid"
)

// Popup 弹窗通知，可选生效时间窗口
type Popup struct {
	ID        string     `json:"id" gorm:"primaryKey;size:36"`
	Title     string     `json:"title" gorm:"size:200;not null"`
	Content   string     `json:"content" gorm:"type:text"`
	ImageURL  string     `json:"imageUrl" gorm:"size:500"`
	LinkURL   string     `json:"linkUrl" gorm:"size:500"`
	Active    bool       `json:"active" gorm:"index"`
	StartAt   *time.Time `json:"startAt,omitempty"`
	EndAt     *time.Time `json:"endAt,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

func (Popup) TableName() string {
	return "popups"
}

// Visible reports whether the popup is active and now falls inside its window.
// A missing bound is open.
func (p *Popup) Visible(now time.Time) bool {
	if !p.Active {
		return false
	}
	if p.StartAt != nil && now.Before(*p.StartAt) {
		return false
	}
	if p.EndAt != nil && !now.Before(*p.EndAt) {
		return false
	}
	return true
}

// PopupRequest 创建/更新弹窗请求
type PopupRequest struct {
	Title    string     `json:"title"`
	Content  string     `json:"content"`
	ImageURL string     `json:"imageUrl"`
	LinkURL  string     `json:"linkUrl"`
	Active   *bool      `json:"active"`
	StartAt  *time.Time `json:"startAt"`
	EndAt    *time.Time `json:"endAt"`
}

// Validate 校验时间窗口
func (r *PopupRequest) Validate() string {
	if r.Title == "" {
		return "弹窗标题不能为空"
	}
	if r.StartAt != nil && r.EndAt != nil && !r.EndAt.After(*r.StartAt) {
		return "结束时间必须晚于开始时间"
	}
	return ""
}

func (r *PopupRequest) Apply(p *Popup) {
	p.Title = r.Title
	p.Content = r.Content
	p.ImageURL = r.ImageURL
	p.LinkURL = r.LinkURL
	p.StartAt = r.StartAt
	p.EndAt = r.EndAt
	if r.Active != nil {
		p.Active = *r.Active
	}
}

func NewPopup(req PopupRequest) *Popup {
	p := &Popup{ID: uuid.New().String(), Active: true}
	req.Apply(p)
	return p
}
