package server

import (
	"errors"
	"net/http"

	"blogmusic/core/dedup"
	"blogmusic/logger"
	"blogmusic/model"

	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

// AdminListMusicHandler lists entries of any status; ?status= narrows it.
func (h *APIHandler) AdminListMusicHandler(w http.ResponseWriter, r *http.Request) {
	status := model.MusicStatus(r.URL.Query().Get("status"))
	if status != "" && !status.IsValid() {
		respondError(w, http.StatusBadRequest, "无效的审核状态")
		return
	}
	h.listMusic(w, r, model.MusicQuery{
		Status: status,
		Query:  r.URL.Query().Get("q"),
		Genre:  r.URL.Query().Get("genre"),
		Page:   queryInt(r, "page", 1),
		Limit:  queryInt(r, "limit", model.DefaultPageLimit),
	})
}

// ApproveMusicHandler 审核通过
func (h *APIHandler) ApproveMusicHandler(w http.ResponseWriter, r *http.Request) {
	h.review(w, r, model.MusicApproved)
}

// RejectMusicHandler 审核拒绝
func (h *APIHandler) RejectMusicHandler(w http.ResponseWriter, r *http.Request) {
	h.review(w, r, model.MusicRejected)
}

func (h *APIHandler) review(w http.ResponseWriter, r *http.Request, status model.MusicStatus) {
	id, ok := pathID(r, "id")
	if !ok {
		respondError(w, http.StatusBadRequest, "无效的歌曲ID")
		return
	}
	var req model.ReviewRequest
	if r.ContentLength > 0 {
		if err := decodeJSON(r, &req); err != nil {
			respondError(w, http.StatusBadRequest, "请求格式错误")
			return
		}
	}

	if err := h.musicRepo.SetStatus(r.Context(), id, status, req.Note); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			respondError(w, http.StatusNotFound, "歌曲不存在")
			return
		}
		logger.Error("审核失败", logger.ErrorField(err), logger.Int64("musicId", id))
		respondError(w, http.StatusInternalServerError, "审核失败")
		return
	}

	m, err := h.musicRepo.GetByID(r.Context(), id)
	if err != nil || m == nil {
		logger.Error("审核后读取歌曲失败", logger.ErrorField(err), logger.Int64("musicId", id))
		respondError(w, http.StatusInternalServerError, "审核失败")
		return
	}

	logger.Info("歌曲审核完成",
		logger.Int64("musicId", id),
		logger.String("status", string(status)),
		logger.String("reviewer", usernameFromContext(r.Context())))
	respondSuccess(w, http.StatusOK, m)
}

// UpdateMusicHandler 编辑歌曲信息
func (h *APIHandler) UpdateMusicHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		respondError(w, http.StatusBadRequest, "无效的歌曲ID")
		return
	}
	var req model.UpdateMusicRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "请求格式错误")
		return
	}

	m, err := h.musicRepo.GetByID(r.Context(), id)
	if err != nil {
		logger.Error("获取歌曲失败", logger.ErrorField(err), logger.Int64("musicId", id))
		respondError(w, http.StatusInternalServerError, "更新失败")
		return
	}
	if m == nil {
		respondError(w, http.StatusNotFound, "歌曲不存在")
		return
	}

	oldURL, oldPlatform := m.SourceURL, m.Platform
	req.Apply(m)
	if msg := m.Validate(); msg != "" {
		respondError(w, http.StatusBadRequest, msg)
		return
	}

	if err := h.musicRepo.Update(r.Context(), m); err != nil {
		logger.Error("更新歌曲失败", logger.ErrorField(err), logger.Int64("musicId", id))
		respondError(w, http.StatusInternalServerError, "更新失败")
		return
	}

	if oldURL != m.SourceURL || oldPlatform != m.Platform {
		h.dedup.Forget(dedup.Key(oldURL, oldPlatform))
		h.dedup.Add(dedup.Key(m.SourceURL, m.Platform))
		if err := h.sources.Invalidate(r.Context(), oldURL, oldPlatform); err != nil {
			logger.Warn("清理解析缓存失败", logger.ErrorField(err))
		}
	}

	logger.Info("歌曲信息已更新", logger.Int64("musicId", id))
	respondSuccess(w, http.StatusOK, m)
}

// DeleteMusicHandler 删除歌曲，之后同一链接可以重新投稿
func (h *APIHandler) DeleteMusicHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		respondError(w, http.StatusBadRequest, "无效的歌曲ID")
		return
	}
	m, err := h.musicRepo.GetByID(r.Context(), id)
	if err != nil {
		logger.Error("获取歌曲失败", logger.ErrorField(err), logger.Int64("musicId", id))
		respondError(w, http.StatusInternalServerError, "删除失败")
		return
	}
	if m == nil {
		respondError(w, http.StatusNotFound, "歌曲不存在")
		return
	}
	if err := h.musicRepo.Delete(r.Context(), id); err != nil {
		logger.Error("删除歌曲失败", logger.ErrorField(err), logger.Int64("musicId", id))
		respondError(w, http.StatusInternalServerError, "删除失败")
		return
	}

	h.dedup.Forget(dedup.Key(m.SourceURL, m.Platform))
	if err := h.sources.Invalidate(r.Context(), m.SourceURL, m.Platform); err != nil {
		logger.Warn("清理解析缓存失败", logger.ErrorField(err))
	}

	logger.Info("歌曲已删除", logger.Int64("musicId", id), logger.String("title", m.Title))
	respondSuccess(w, http.StatusOK, nil)
}

// StatsHandler 管理后台统计，各项并发查询
func (h *APIHandler) StatsHandler(w http.ResponseWriter, r *http.Request) {
	var (
		stats    model.Stats
		byStatus map[model.MusicStatus]int64
	)
	now := h.now()

	g, ctx := errgroup.WithContext(r.Context())
	g.Go(func() (err error) {
		byStatus, err = h.musicRepo.CountByStatus(ctx)
		return err
	})
	g.Go(func() (err error) {
		stats.Downloads, err = h.musicRepo.SumDownloads(ctx)
		return err
	})
	g.Go(func() (err error) {
		stats.Users, err = h.userRepo.Count(ctx)
		return err
	})
	g.Go(func() (err error) {
		stats.Banners, err = h.bannerRepo.Count(ctx)
		return err
	})
	g.Go(func() (err error) {
		stats.Announcements, err = h.announceRepo.Count(ctx)
		return err
	})
	g.Go(func() (err error) {
		stats.ActivePopups, err = h.popupRepo.CountVisible(ctx, now)
		return err
	})
	if err := g.Wait(); err != nil {
		logger.Error("获取统计数据失败", logger.ErrorField(err))
		respondError(w, http.StatusInternalServerError, "获取统计数据失败")
		return
	}

	stats.MusicPending = byStatus[model.MusicPending]
	stats.MusicApproved = byStatus[model.MusicApproved]
	stats.MusicRejected = byStatus[model.MusicRejected]
	stats.MusicTotal = stats.MusicPending + stats.MusicApproved + stats.MusicRejected
	respondSuccess(w, http.StatusOK, stats)
}
