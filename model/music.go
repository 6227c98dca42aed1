package model

import (
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"blogmusic/core/dedup"
	"blogmusic/core/playback"
	"blogmusic/core/resolver"
	"blogmusic/core/search"

	"gorm.io/gorm"
)

// 与列宽一致
const (
	MaxTitleLen     = 200
	MaxSourceURLLen = 1000
)

// MusicStatus 投稿审核状态
type MusicStatus string

const (
	MusicPending  MusicStatus = "pending"
	MusicApproved MusicStatus = "approved"
	MusicRejected MusicStatus = "rejected"
)

// IsValid reports whether s is a known status.
func (s MusicStatus) IsValid() bool {
	switch s {
	case MusicPending, MusicApproved, MusicRejected:
		return true
	}
	return false
}

// Music 曲库条目，只有 approved 的条目对外可见
type Music struct {
	ID          int64             `json:"id" gorm:"primaryKey;autoIncrement"`
	Title       string            `json:"title" gorm:"size:200;not null"`
	Artist      string            `json:"artist" gorm:"size:200;not null"`
	Genre       string            `json:"genre" gorm:"size:50;index"`
	CoverURL    string            `json:"coverUrl" gorm:"size:500"`
	SourceURL   string            `json:"sourceUrl" gorm:"size:1000;not null"`
	Platform    resolver.Platform `json:"platform" gorm:"size:20;default:'direct'"`
	Status      MusicStatus       `json:"status" gorm:"size:20;default:'pending';index"`
	Downloads   int64             `json:"downloads" gorm:"default:0"`
	SubmittedBy *int64            `json:"submittedBy,omitempty" gorm:"index"`
	ReviewNote  string            `json:"reviewNote,omitempty" gorm:"size:500"`
	ReviewedAt  *time.Time        `json:"reviewedAt,omitempty"`
	CreatedAt   time.Time         `json:"createdAt"`
	UpdatedAt   time.Time         `json:"updatedAt"`

	// 派生字段，保存时自动计算
	SearchText string `json:"-" gorm:"size:600;index"`
	DedupKey   string `json:"-" gorm:"size:64;uniqueIndex"`
}

// TableName 指定表名
func (Music) TableName() string {
	return "music"
}

// BeforeSave keeps the derived columns in sync with the editable ones.
func (m *Music) BeforeSave(tx *gorm.DB) error {
	if !m.Platform.IsValid() {
		m.Platform = resolver.IdentifyPlatform(m.SourceURL)
	}
	if m.Status == "" {
		m.Status = MusicPending
	}
	m.SearchText = search.Key(m.Title, m.Artist, m.Genre)
	m.DedupKey = dedup.Key(m.SourceURL, m.Platform)
	return nil
}

// TrackRef converts the entry into what the player loads.
func (m *Music) TrackRef() playback.TrackRef {
	return playback.TrackRef{
		ID:        strconv.FormatInt(m.ID, 10),
		Title:     m.Title,
		Artist:    m.Artist,
		CoverURL:  m.CoverURL,
		SourceURL: m.SourceURL,
		Platform:  m.Platform,
	}
}

// SubmitMusicRequest 投稿请求
type SubmitMusicRequest struct {
	Title     string `json:"title"`
	Artist    string `json:"artist"`
	Genre     string `json:"genre"`
	SourceURL string `json:"sourceUrl"`
	Platform  string `json:"platform"`
	CoverURL  string `json:"coverUrl"`
}

// Validate returns a user-facing message for the first problem found, or "".
func (r *SubmitMusicRequest) Validate() string {
	switch {
	case strings.TrimSpace(r.Title) == "":
		return "歌曲标题不能为空"
	case strings.TrimSpace(r.Artist) == "":
		return "歌手不能为空"
	case strings.TrimSpace(r.SourceURL) == "":
		return "音频链接不能为空"
	}
	return checkFields(r.Title, r.Artist, r.SourceURL)
}

// Validate checks an entry after an edit has been applied.
func (m *Music) Validate() string {
	if strings.TrimSpace(m.Title) == "" || strings.TrimSpace(m.Artist) == "" || strings.TrimSpace(m.SourceURL) == "" {
		return "标题、歌手和音频链接不能为空"
	}
	return checkFields(m.Title, m.Artist, m.SourceURL)
}

func checkFields(title, artist, sourceURL string) string {
	src := strings.TrimSpace(sourceURL)
	switch {
	case !strings.HasPrefix(src, "http://") && !strings.HasPrefix(src, "https://"):
		return "音频链接必须以 http:// 或 https:// 开头"
	case utf8.RuneCountInString(src) > MaxSourceURLLen:
		return "音频链接过长"
	case utf8.RuneCountInString(strings.TrimSpace(title)) > MaxTitleLen:
		return "歌曲标题过长"
	case utf8.RuneCountInString(strings.TrimSpace(artist)) > MaxTitleLen:
		return "歌手名过长"
	}
	return ""
}

// NewMusic builds a pending entry. An empty platform is detected from the link.
func NewMusic(req SubmitMusicRequest, userID *int64) *Music {
	src := strings.TrimSpace(req.SourceURL)
	platform := resolver.IdentifyPlatform(src)
	if strings.TrimSpace(req.Platform) != "" {
		platform = resolver.ParsePlatform(req.Platform)
	}
	return &Music{
		Title:       strings.TrimSpace(req.Title),
		Artist:      strings.TrimSpace(req.Artist),
		Genre:       strings.TrimSpace(req.Genre),
		CoverURL:    strings.TrimSpace(req.CoverURL),
		SourceURL:   src,
		Platform:    platform,
		Status:      MusicPending,
		SubmittedBy: userID,
	}
}

// UpdateMusicRequest 管理员编辑请求，空字段保持不变
type UpdateMusicRequest struct {
	Title     *string `json:"title"`
	Artist    *string `json:"artist"`
	Genre     *string `json:"genre"`
	SourceURL *string `json:"sourceUrl"`
	Platform  *string `json:"platform"`
	CoverURL  *string `json:"coverUrl"`
}

// Apply copies the set fields onto m.
func (r *UpdateMusicRequest) Apply(m *Music) {
	if r.Title != nil {
		m.Title = strings.TrimSpace(*r.Title)
	}
	if r.Artist != nil {
		m.Artist = strings.TrimSpace(*r.Artist)
	}
	if r.Genre != nil {
		m.Genre = strings.TrimSpace(*r.Genre)
	}
	if r.CoverURL != nil {
		m.CoverURL = strings.TrimSpace(*r.CoverURL)
	}
	if r.SourceURL != nil {
		m.SourceURL = strings.TrimSpace(*r.SourceURL)
		m.Platform = resolver.IdentifyPlatform(m.SourceURL)
	}
	if r.Platform != nil {
		m.Platform = resolver.ParsePlatform(*r.Platform)
	}
}

// ReviewRequest 审核请求
type ReviewRequest struct {
	Note string `json:"note"`
}

// MusicQuery 曲库查询条件
type MusicQuery struct {
	Status MusicStatus
	Query  string
	Genre  string
	Page   int
	Limit  int
}

const (
	DefaultPageLimit = 12
	MaxPageLimit     = 50
)

// Normalize clamps paging to sane values.
func (q *MusicQuery) Normalize() {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.Limit <= 0 {
		q.Limit = DefaultPageLimit
	}
	if q.Limit > MaxPageLimit {
		q.Limit = MaxPageLimit
	}
}

// Offset 计算偏移量
func (q *MusicQuery) Offset() int {
	return (q.Page - 1) * q.Limit
}

// MusicPage 分页结果
type MusicPage struct {
	Items      []*Music `json:"items"`
	Total      int64    `json:"total"`
	Page       int      `json:"page"`
	Limit      int      `json:"limit"`
	TotalPages int      `json:"totalPages"`
}

// NewMusicPage fills in the derived page count.
func NewMusicPage(items []*Music, total int64, q MusicQuery) MusicPage {
	pages := 0
	if q.Limit > 0 {
		pages = int((total + int64(q.Limit) - 1) / int64(q.Limit))
	}
	if items == nil {
		items = []*Music{}
	}
	return MusicPage{Items: items, Total: total, Page: q.Page, Limit: q.Limit, TotalPages: pages}
}
