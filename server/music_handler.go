package server

import (
	"errors"
	"net/http"
	"strings"

	"blogmusic/core/dedup"
	"blogmusic/logger"
	"blogmusic/model"
	"blogmusic/repository"
	"blogmusic/storage"
)

const maxCoverSize = 5 << 20 // 5MB

// ListMusicHandler 获取已上架歌曲列表，支持搜索和分页
func (h *APIHandler) ListMusicHandler(w http.ResponseWriter, r *http.Request) {
	q := model.MusicQuery{
		Status: model.MusicApproved,
		Query:  r.URL.Query().Get("q"),
		Genre:  r.URL.Query().Get("genre"),
		Page:   queryInt(r, "page", 1),
		Limit:  queryInt(r, "limit", model.DefaultPageLimit),
	}
	h.listMusic(w, r, q)
}

func (h *APIHandler) listMusic(w http.ResponseWriter, r *http.Request, q model.MusicQuery) {
	q.Normalize()
	items, total, err := h.musicRepo.List(r.Context(), q)
	if err != nil {
		logger.Error("获取歌曲列表失败", logger.ErrorField(err), logger.String("query", q.Query))
		respondError(w, http.StatusInternalServerError, "获取歌曲列表失败")
		return
	}
	respondSuccess(w, http.StatusOK, model.NewMusicPage(items, total, q))
}

// GetMusicHandler 获取单曲详情
func (h *APIHandler) GetMusicHandler(w http.ResponseWriter, r *http.Request) {
	m, ok := h.approvedMusic(w, r)
	if !ok {
		return
	}
	respondSuccess(w, http.StatusOK, m)
}

// GetMusicSourceHandler returns the resolved playback URLs for a track.
func (h *APIHandler) GetMusicSourceHandler(w http.ResponseWriter, r *http.Request) {
	m, ok := h.approvedMusic(w, r)
	if !ok {
		return
	}
	src := h.sources.Resolve(r.Context(), m.SourceURL, m.Platform)
	h.metrics.RecordResolution(src.Platform)
	respondSuccess(w, http.StatusOK, src)
}

// DownloadMusicHandler 下载计数并重定向到可播放地址
func (h *APIHandler) DownloadMusicHandler(w http.ResponseWriter, r *http.Request) {
	m, ok := h.approvedMusic(w, r)
	if !ok {
		return
	}
	if err := h.musicRepo.IncrementDownloads(r.Context(), m.ID); err != nil {
		// 计数失败不影响下载
		logger.Warn("下载计数失败", logger.ErrorField(err), logger.Int64("musicId", m.ID))
	}
	src := h.sources.Resolve(r.Context(), m.SourceURL, m.Platform)
	h.metrics.RecordResolution(src.Platform)
	h.metrics.DownloadsTotal.Inc()

	logger.Info("歌曲下载",
		logger.Int64("musicId", m.ID),
		logger.String("platform", src.Platform.String()))
	http.Redirect(w, r, src.PrimaryURL, http.StatusFound)
}

// approvedMusic loads the {id} route track; unknown or unreleased tracks answer 404.
func (h *APIHandler) approvedMusic(w http.ResponseWriter, r *http.Request) (*model.Music, bool) {
	id, ok := pathID(r, "id")
	if !ok {
		respondError(w, http.StatusBadRequest, "无效的歌曲ID")
		return nil, false
	}
	m, err := h.musicRepo.GetApprovedByID(r.Context(), id)
	if err != nil {
		logger.Error("获取歌曲失败", logger.ErrorField(err), logger.Int64("musicId", id))
		respondError(w, http.StatusInternalServerError, "获取歌曲失败")
		return nil, false
	}
	if m == nil {
		respondError(w, http.StatusNotFound, "歌曲不存在")
		return nil, false
	}
	return m, true
}

// SubmitMusicHandler 投稿。登录与否均可，重复链接返回 409
func (h *APIHandler) SubmitMusicHandler(w http.ResponseWriter, r *http.Request) {
	var req model.SubmitMusicRequest
	if err := decodeJSON(r, &req); err != nil {
		logger.Warn("解析投稿请求失败", logger.ErrorField(err))
		h.metrics.RecordSubmission("invalid")
		respondError(w, http.StatusBadRequest, "请求格式错误")
		return
	}
	if msg := req.Validate(); msg != "" {
		h.metrics.RecordSubmission("invalid")
		respondError(w, http.StatusBadRequest, msg)
		return
	}

	m := model.NewMusic(req, h.optionalUser(r))
	key := dedup.Key(m.SourceURL, m.Platform)
	if h.dedup.Seen(key) {
		logger.Info("重复投稿", logger.String("sourceUrl", m.SourceURL))
		h.metrics.RecordSubmission("duplicate")
		respondError(w, http.StatusConflict, "该音频链接已被投稿")
		return
	}

	if err := h.musicRepo.Create(r.Context(), m); err != nil {
		if errors.Is(err, repository.ErrDuplicateSubmission) {
			h.dedup.Add(key)
			h.metrics.RecordSubmission("duplicate")
			respondError(w, http.StatusConflict, "该音频链接已被投稿")
			return
		}
		logger.Error("保存投稿失败", logger.ErrorField(err))
		respondError(w, http.StatusInternalServerError, "投稿失败")
		return
	}
	h.dedup.Add(key)
	h.metrics.RecordSubmission("accepted")

	logger.Info("收到新投稿",
		logger.Int64("musicId", m.ID),
		logger.String("title", m.Title),
		logger.String("platform", m.Platform.String()))
	respondSuccess(w, http.StatusCreated, m)
}

// UploadCoverHandler 上传封面图片到对象存储
func (h *APIHandler) UploadCoverHandler(w http.ResponseWriter, r *http.Request) {
	if h.uploader == nil {
		respondError(w, http.StatusServiceUnavailable, "文件存储不可用")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxCoverSize+1<<20)
	if err := r.ParseMultipartForm(maxCoverSize); err != nil {
		logger.Warn("解析上传表单失败", logger.ErrorField(err))
		respondError(w, http.StatusBadRequest, "文件过大或表单格式错误")
		return
	}
	file, header, err := r.FormFile("cover")
	if err != nil {
		respondError(w, http.StatusBadRequest, "缺少封面文件")
		return
	}
	defer file.Close()

	contentType := strings.ToLower(header.Header.Get("Content-Type"))
	if !storage.AllowedImageType(contentType) {
		respondError(w, http.StatusBadRequest, "仅支持 JPG、PNG、WEBP、GIF 图片")
		return
	}
	if header.Size > maxCoverSize {
		respondError(w, http.StatusBadRequest, "封面图片不能超过5MB")
		return
	}

	objectName := storage.CoverObjectName(header.Filename, h.now())
	url, err := h.uploader.Upload(r.Context(), objectName, file, header.Size, contentType)
	if err != nil {
		logger.Error("上传封面失败", logger.ErrorField(err), logger.String("object", objectName))
		respondError(w, http.StatusBadGateway, "上传封面失败")
		return
	}

	logger.Info("封面上传成功", logger.String("object", objectName), logger.Int64("size", header.Size))
	respondSuccess(w, http.StatusCreated, map[string]string{"url": url})
}
