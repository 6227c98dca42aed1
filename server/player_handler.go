package server

import (
	"errors"
	"net/http"
	"strings"

	"blogmusic/core/playback"
	"blogmusic/logger"

	"github.com/gorilla/mux"
)

type playRequest struct {
	MusicID int64              `json:"musicId"`
	Track   *playback.TrackRef `json:"track"`
}

type seekRequest struct {
	Seconds float64 `json:"seconds"`
}

type volumeRequest struct {
	Volume float64 `json:"volume"`
}

// mediaReport is what the browser's media element tells us about the loaded track.
type mediaReport struct {
	TrackID string  `json:"trackId"`
	Seconds float64 `json:"seconds"`
}

type sessionCreated struct {
	SessionID string           `json:"sessionId"`
	Session   playback.Session `json:"session"`
}

// CreatePlayerSessionHandler 创建播放会话
func (h *APIHandler) CreatePlayerSessionHandler(w http.ResponseWriter, r *http.Request) {
	id, c := h.players.Create()
	respondSuccess(w, http.StatusCreated, sessionCreated{SessionID: id, Session: c.Snapshot()})
}

// DeletePlayerSessionHandler 关闭播放会话
func (h *APIHandler) DeletePlayerSessionHandler(w http.ResponseWriter, r *http.Request) {
	if !h.players.Remove(mux.Vars(r)["sid"]) {
		respondError(w, http.StatusNotFound, "播放会话不存在")
		return
	}
	respondSuccess(w, http.StatusOK, nil)
}

// GetPlayerHandler 获取播放状态快照
func (h *APIHandler) GetPlayerHandler(w http.ResponseWriter, r *http.Request) {
	c, ok := h.session(w, r)
	if !ok {
		return
	}
	respondSuccess(w, http.StatusOK, c.Snapshot())
}

// PlayHandler starts a track from the catalog ({musicId}) or an explicit TrackRef.
func (h *APIHandler) PlayHandler(w http.ResponseWriter, r *http.Request) {
	c, ok := h.session(w, r)
	if !ok {
		return
	}
	var req playRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "请求格式错误")
		return
	}

	var track playback.TrackRef
	switch {
	case req.MusicID > 0:
		m, err := h.musicRepo.GetApprovedByID(r.Context(), req.MusicID)
		if err != nil {
			logger.Error("获取歌曲失败", logger.ErrorField(err), logger.Int64("musicId", req.MusicID))
			respondError(w, http.StatusInternalServerError, "获取歌曲失败")
			return
		}
		if m == nil {
			respondError(w, http.StatusNotFound, "歌曲不存在")
			return
		}
		track = m.TrackRef()
	case req.Track != nil:
		track = *req.Track
		if strings.TrimSpace(track.ID) == "" {
			respondError(w, http.StatusBadRequest, "缺少歌曲ID")
			return
		}
	default:
		respondError(w, http.StatusBadRequest, "请指定 musicId 或 track")
		return
	}

	if err := c.Request(track); err != nil {
		respondPlayerError(w, err)
		return
	}
	respondSuccess(w, http.StatusAccepted, c.Snapshot())
}

func (h *APIHandler) PauseHandler(w http.ResponseWriter, r *http.Request) {
	h.playerAction(w, r, (*playback.Coordinator).Pause)
}

func (h *APIHandler) ResumeHandler(w http.ResponseWriter, r *http.Request) {
	h.playerAction(w, r, (*playback.Coordinator).Resume)
}

func (h *APIHandler) SeekHandler(w http.ResponseWriter, r *http.Request) {
	var req seekRequest
	h.playerBody(w, r, &req, func(c *playback.Coordinator) error {
		_, err := c.Seek(req.Seconds)
		return err
	})
}

func (h *APIHandler) VolumeHandler(w http.ResponseWriter, r *http.Request) {
	var req volumeRequest
	h.playerBody(w, r, &req, func(c *playback.Coordinator) error {
		c.SetVolume(req.Volume)
		return nil
	})
}

func (h *APIHandler) MuteHandler(w http.ResponseWriter, r *http.Request) {
	h.playerAction(w, r, func(c *playback.Coordinator) error {
		c.ToggleMute()
		return nil
	})
}

func (h *APIHandler) RepeatHandler(w http.ResponseWriter, r *http.Request) {
	h.playerAction(w, r, func(c *playback.Coordinator) error {
		c.ToggleRepeat()
		return nil
	})
}

func (h *APIHandler) ShuffleHandler(w http.ResponseWriter, r *http.Request) {
	h.playerAction(w, r, func(c *playback.Coordinator) error {
		c.ToggleShuffle()
		return nil
	})
}

// EndedHandler 媒体播放结束上报
func (h *APIHandler) EndedHandler(w http.ResponseWriter, r *http.Request) {
	var req mediaReport
	h.playerBody(w, r, &req, func(c *playback.Coordinator) error {
		return c.MediaEnded(req.TrackID)
	})
}

// ProgressHandler 播放进度上报
func (h *APIHandler) ProgressHandler(w http.ResponseWriter, r *http.Request) {
	var req mediaReport
	h.playerBody(w, r, &req, func(c *playback.Coordinator) error {
		return c.UpdatePosition(req.TrackID, req.Seconds)
	})
}

// DurationHandler 媒体元数据（时长）上报
func (h *APIHandler) DurationHandler(w http.ResponseWriter, r *http.Request) {
	var req mediaReport
	h.playerBody(w, r, &req, func(c *playback.Coordinator) error {
		return c.SetDuration(req.TrackID, req.Seconds)
	})
}

// session resolves {sid}; unknown or expired sessions answer 404.
func (h *APIHandler) session(w http.ResponseWriter, r *http.Request) (*playback.Coordinator, bool) {
	c, ok := h.players.Get(mux.Vars(r)["sid"])
	if !ok {
		respondError(w, http.StatusNotFound, "播放会话不存在或已过期")
		return nil, false
	}
	return c, true
}

func (h *APIHandler) playerAction(w http.ResponseWriter, r *http.Request, fn func(*playback.Coordinator) error) {
	c, ok := h.session(w, r)
	if !ok {
		return
	}
	if err := fn(c); err != nil {
		respondPlayerError(w, err)
		return
	}
	respondSuccess(w, http.StatusOK, c.Snapshot())
}

func (h *APIHandler) playerBody(w http.ResponseWriter, r *http.Request, body interface{}, fn func(*playback.Coordinator) error) {
	c, ok := h.session(w, r)
	if !ok {
		return
	}
	if err := decodeJSON(r, body); err != nil {
		respondError(w, http.StatusBadRequest, "请求格式错误")
		return
	}
	if err := fn(c); err != nil {
		respondPlayerError(w, err)
		return
	}
	respondSuccess(w, http.StatusOK, c.Snapshot())
}

func respondPlayerError(w http.ResponseWriter, err error) {
	status := http.StatusConflict
	switch {
	case errors.Is(err, playback.ErrSessionClosed):
		status = http.StatusGone
	case errors.Is(err, playback.ErrNoTrack),
		errors.Is(err, playback.ErrNotPlaying),
		errors.Is(err, playback.ErrNotPaused),
		errors.Is(err, playback.ErrStaleTrack):
	default:
		logger.Error("播放操作失败", logger.ErrorField(err))
		status = http.StatusInternalServerError
	}
	respondError(w, status, playerErrorMessage(err))
}
