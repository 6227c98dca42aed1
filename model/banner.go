package model

import (
	"time"

	"github.com/google/uuid"
)

// Banner 首页轮播图
type Banner struct {
	ID        string    `json:"id" gorm:"primaryKey;size:36"`
	Title     string    `json:"title" gorm:"size:200"`
	ImageURL  string    `json:"imageUrl" gorm:"size:500;not null"`
	LinkURL   string    `json:"linkUrl" gorm:"size:500"`
	Position  int       `json:"position" gorm:"default:0;index"`
	Active    bool      `json:"active" gorm:"index"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (Banner) TableName() string {
	return "banners"
}

// BannerRequest 创建/更新轮播图请求
type BannerRequest struct {
	Title    string `json:"title"`
	ImageURL string `json:"imageUrl"`
	LinkURL  string `json:"linkUrl"`
	Position int    `json:"position"`
	Active   *bool  `json:"active"`
}

func (r *BannerRequest) Apply(b *Banner) {
	b.Title = r.Title
	b.ImageURL = r.ImageURL
	b.LinkURL = r.LinkURL
	b.Position = r.Position
	if r.Active != nil {
		b.Active = *r.Active
	}
}

// NewBanner 创建轮播图，默认启用
func NewBanner(req BannerRequest) *Banner {
	b := &Banner{ID: uuid.New().String(), Active: true}
	req.Apply(b)
	return b
}
