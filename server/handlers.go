package server

import (
	"context"
	"time"

	"blogmusic/cache"
	"blogmusic/config"
	"blogmusic/core/auth"
	"blogmusic/core/dedup"
	"blogmusic/core/playback"
	"blogmusic/core/resolver"
	"blogmusic/repository"
	"blogmusic/storage"
)

// SourceResolver resolves a source link to playable URLs. *cache.SourceCache satisfies it.
type SourceResolver interface {
	Resolve(ctx context.Context, sourceURL string, platform resolver.Platform) resolver.ResolvedSource
	Invalidate(ctx context.Context, sourceURL string, platform resolver.Platform) error
}

var _ SourceResolver = (*cache.SourceCache)(nil)

// Deps 处理器依赖
type Deps struct {
	Config        *config.Config
	Music         repository.MusicRepository
	Users         repository.UserRepository
	Banners       repository.BannerRepository
	Announcements repository.AnnouncementRepository
	Popups        repository.PopupRepository
	Sources       SourceResolver
	Dedup         *dedup.Store
	Uploader      storage.Uploader // nil 时封面上传不可用
	Tokens        *auth.TokenManager
	Players       *playback.Registry
	Metrics       *Metrics
	Now           func() time.Time
}

// APIHandler 处理所有API请求
type APIHandler struct {
	cfg          *config.Config
	musicRepo    repository.MusicRepository
	userRepo     repository.UserRepository
	bannerRepo   repository.BannerRepository
	announceRepo repository.AnnouncementRepository
	popupRepo    repository.PopupRepository
	sources      SourceResolver
	dedup        *dedup.Store
	uploader     storage.Uploader
	tokens       *auth.TokenManager
	players      *playback.Registry
	metrics      *Metrics
	now          func() time.Time
}

// NewAPIHandler 创建新的API处理器
func NewAPIHandler(d Deps) *APIHandler {
	now := d.Now
	if now == nil {
		now = time.Now
	}
	return &APIHandler{
		cfg:          d.Config,
		musicRepo:    d.Music,
		userRepo:     d.Users,
		bannerRepo:   d.Banners,
		announceRepo: d.Announcements,
		popupRepo:    d.Popups,
		sources:      d.Sources,
		dedup:        d.Dedup,
		uploader:     d.Uploader,
		tokens:       d.Tokens,
		players:      d.Players,
		metrics:      d.Metrics,
		now:          now,
	}
}
