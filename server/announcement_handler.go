package server

import (
	"errors"
	"net/http"
	"strings"

	"blogmusic/logger"
	"blogmusic/model"
	"blogmusic/repository"

	"github.com/gorilla/mux"
	"gorm.io/gorm"
)

type AnnouncementHandler struct {
	announcementRepo repository.AnnouncementRepository
}

func NewAnnouncementHandler(announcementRepo repository.AnnouncementRepository) *AnnouncementHandler {
	return &AnnouncementHandler{announcementRepo: announcementRepo}
}

// GetAnnouncements 获取生效中的公告，按优先级降序
func (h *AnnouncementHandler) GetAnnouncements(w http.ResponseWriter, r *http.Request) {
	list, err := h.announcementRepo.ListActive(r.Context())
	if err != nil {
		logger.Error("获取公告列表失败", logger.ErrorField(err))
		respondError(w, http.StatusInternalServerError, "获取公告列表失败")
		return
	}
	if list == nil {
		list = []*model.Announcement{}
	}
	respondSuccess(w, http.StatusOK, list)
}

// GetAllAnnouncements 管理员查看全部公告
func (h *AnnouncementHandler) GetAllAnnouncements(w http.ResponseWriter, r *http.Request) {
	list, err := h.announcementRepo.ListAll(r.Context())
	if err != nil {
		logger.Error("获取全部公告失败", logger.ErrorField(err))
		respondError(w, http.StatusInternalServerError, "获取公告列表失败")
		return
	}
	if list == nil {
		list = []*model.Announcement{}
	}
	respondSuccess(w, http.StatusOK, list)
}

// CreateAnnouncement 创建公告
func (h *AnnouncementHandler) CreateAnnouncement(w http.ResponseWriter, r *http.Request) {
	userID, err := GetUserIDFromContext(r.Context())
	if err != nil {
		respondError(w, http.StatusUnauthorized, "未授权访问")
		return
	}

	var req model.AnnouncementRequest
	if err := decodeJSON(r, &req); err != nil {
		logger.Warn("解析公告请求失败", logger.ErrorField(err))
		respondError(w, http.StatusBadRequest, "请求格式错误")
		return
	}
	if strings.TrimSpace(req.Title) == "" || strings.TrimSpace(req.Content) == "" {
		respondError(w, http.StatusBadRequest, "标题和内容不能为空")
		return
	}

	a := model.NewAnnouncement(req, userID)
	if err := h.announcementRepo.Create(r.Context(), a); err != nil {
		logger.Error("创建公告失败", logger.ErrorField(err))
		respondError(w, http.StatusInternalServerError, "创建公告失败")
		return
	}

	logger.Info("公告创建成功",
		logger.String("announcementId", a.ID),
		logger.String("title", a.Title),
		logger.Int64("createdBy", userID))
	respondSuccess(w, http.StatusCreated, a)
}

// UpdateAnnouncement 更新公告
func (h *AnnouncementHandler) UpdateAnnouncement(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	var req model.AnnouncementRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "请求格式错误")
		return
	}
	if strings.TrimSpace(req.Title) == "" || strings.TrimSpace(req.Content) == "" {
		respondError(w, http.StatusBadRequest, "标题和内容不能为空")
		return
	}

	a, err := h.announcementRepo.GetByID(r.Context(), id)
	if err != nil {
		logger.Error("获取公告失败", logger.ErrorField(err), logger.String("announcementId", id))
		respondError(w, http.StatusInternalServerError, "更新公告失败")
		return
	}
	if a == nil {
		respondError(w, http.StatusNotFound, "公告不存在")
		return
	}

	req.Apply(a)
	if err := h.announcementRepo.Update(r.Context(), a); err != nil {
		logger.Error("更新公告失败", logger.ErrorField(err), logger.String("announcementId", id))
		respondError(w, http.StatusInternalServerError, "更新公告失败")
		return
	}
	respondSuccess(w, http.StatusOK, a)
}

// DeleteAnnouncement 删除公告
func (h *AnnouncementHandler) DeleteAnnouncement(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := h.announcementRepo.Delete(r.Context(), id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			respondError(w, http.StatusNotFound, "公告不存在")
			return
		}
		logger.Error("删除公告失败", logger.ErrorField(err), logger.String("announcementId", id))
		respondError(w, http.StatusInternalServerError, "删除公告失败")
		return
	}
	logger.Info("公告删除成功", logger.String("announcementId", id))
	respondSuccess(w, http.StatusOK, nil)
}

// RegisterAnnouncementRoutes 注册公告相关路由
func RegisterAnnouncementRoutes(router *mux.Router, handler *AnnouncementHandler, adminMiddleware func(http.HandlerFunc) http.HandlerFunc) {
	router.HandleFunc("/api/announcements", handler.GetAnnouncements).Methods("GET")

	router.HandleFunc("/api/admin/announcements", adminMiddleware(handler.GetAllAnnouncements)).Methods("GET")
	router.HandleFunc("/api/admin/announcements", adminMiddleware(handler.CreateAnnouncement)).Methods("POST")
	router.HandleFunc("/api/admin/announcements/{id}", adminMiddleware(handler.UpdateAnnouncement)).Methods("PUT")
	router.HandleFunc("/api/admin/announcements/{id}", adminMiddleware(handler.DeleteAnnouncement)).Methods("DELETE")
}
