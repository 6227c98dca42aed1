package server

import (
	"errors"
	"net/http"
	"strings"

	"blogmusic/logger"
	"blogmusic/model"

	"github.com/gorilla/mux"
	"gorm.io/gorm"
)

// GetBannersHandler 前台轮播图，仅启用项
func (h *APIHandler) GetBannersHandler(w http.ResponseWriter, r *http.Request) {
	h.listBanners(w, r, true)
}

// AdminGetBannersHandler 后台轮播图，包含停用项
func (h *APIHandler) AdminGetBannersHandler(w http.ResponseWriter, r *http.Request) {
	h.listBanners(w, r, false)
}

func (h *APIHandler) listBanners(w http.ResponseWriter, r *http.Request, activeOnly bool) {
	list, err := h.bannerRepo.List(r.Context(), activeOnly)
	if err != nil {
		logger.Error("获取轮播图失败", logger.ErrorField(err))
		respondError(w, http.StatusInternalServerError, "获取轮播图失败")
		return
	}
	if list == nil {
		list = []*model.Banner{}
	}
	respondSuccess(w, http.StatusOK, list)
}

func (h *APIHandler) CreateBannerHandler(w http.ResponseWriter, r *http.Request) {
	var req model.BannerRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "请求格式错误")
		return
	}
	if strings.TrimSpace(req.ImageURL) == "" {
		respondError(w, http.StatusBadRequest, "图片地址不能为空")
		return
	}

	b := model.NewBanner(req)
	if err := h.bannerRepo.Create(r.Context(), b); err != nil {
		logger.Error("创建轮播图失败", logger.ErrorField(err))
		respondError(w, http.StatusInternalServerError, "创建轮播图失败")
		return
	}
	logger.Info("轮播图创建成功", logger.String("bannerId", b.ID))
	respondSuccess(w, http.StatusCreated, b)
}

func (h *APIHandler) UpdateBannerHandler(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	var req model.BannerRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "请求格式错误")
		return
	}
	if strings.TrimSpace(req.ImageURL) == "" {
		respondError(w, http.StatusBadRequest, "图片地址不能为空")
		return
	}

	b, err := h.bannerRepo.GetByID(r.Context(), id)
	if err != nil {
		logger.Error("获取轮播图失败", logger.ErrorField(err), logger.String("bannerId", id))
		respondError(w, http.StatusInternalServerError, "更新轮播图失败")
		return
	}
	if b == nil {
		respondError(w, http.StatusNotFound, "轮播图不存在")
		return
	}
	req.Apply(b)
	if err := h.bannerRepo.Update(r.Context(), b); err != nil {
		logger.Error("更新轮播图失败", logger.ErrorField(err), logger.String("bannerId", id))
		respondError(w, http.StatusInternalServerError, "更新轮播图失败")
		return
	}
	respondSuccess(w, http.StatusOK, b)
}

func (h *APIHandler) DeleteBannerHandler(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := h.bannerRepo.Delete(r.Context(), id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			respondError(w, http.StatusNotFound, "轮播图不存在")
			return
		}
		logger.Error("删除轮播图失败", logger.ErrorField(err), logger.String("bannerId", id))
		respondError(w, http.StatusInternalServerError, "删除轮播图失败")
		return
	}
	respondSuccess(w, http.StatusOK, nil)
}

// GetActivePopupsHandler 返回当前时间窗口内的弹窗
func (h *APIHandler) GetActivePopupsHandler(w http.ResponseWriter, r *http.Request) {
	list, err := h.popupRepo.ListVisible(r.Context(), h.now())
	if err != nil {
		logger.Error("获取弹窗失败", logger.ErrorField(err))
		respondError(w, http.StatusInternalServerError, "获取弹窗失败")
		return
	}
	if list == nil {
		list = []*model.Popup{}
	}
	respondSuccess(w, http.StatusOK, list)
}

func (h *APIHandler) AdminGetPopupsHandler(w http.ResponseWriter, r *http.Request) {
	list, err := h.popupRepo.ListAll(r.Context())
	if err != nil {
		logger.Error("获取弹窗列表失败", logger.ErrorField(err))
		respondError(w, http.StatusInternalServerError, "获取弹窗失败")
		return
	}
	if list == nil {
		list = []*model.Popup{}
	}
	respondSuccess(w, http.StatusOK, list)
}

func (h *APIHandler) CreatePopupHandler(w http.ResponseWriter, r *http.Request) {
	var req model.PopupRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "请求格式错误")
		return
	}
	if msg := req.Validate(); msg != "" {
		respondError(w, http.StatusBadRequest, msg)
		return
	}

	p := model.NewPopup(req)
	if err := h.popupRepo.Create(r.Context(), p); err != nil {
		logger.Error("创建弹窗失败", logger.ErrorField(err))
		respondError(w, http.StatusInternalServerError, "创建弹窗失败")
		return
	}
	logger.Info("弹窗创建成功", logger.String("popupId", p.ID))
	respondSuccess(w, http.StatusCreated, p)
}

func (h *APIHandler) UpdatePopupHandler(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	var req model.PopupRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "请求格式错误")
		return
	}
	if msg := req.Validate(); msg != "" {
		respondError(w, http.StatusBadRequest, msg)
		return
	}

	p, err := h.popupRepo.GetByID(r.Context(), id)
	if err != nil {
		logger.Error("获取弹窗失败", logger.ErrorField(err), logger.String("popupId", id))
		respondError(w, http.StatusInternalServerError, "更新弹窗失败")
		return
	}
	if p == nil {
		respondError(w, http.StatusNotFound, "弹窗不存在")
		return
	}
	req.Apply(p)
	if err := h.popupRepo.Update(r.Context(), p); err != nil {
		logger.Error("更新弹窗失败", logger.ErrorField(err), logger.String("popupId", id))
		respondError(w, http.StatusInternalServerError, "更新弹窗失败")
		return
	}
	respondSuccess(w, http.StatusOK, p)
}

func (h *APIHandler) DeletePopupHandler(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := h.popupRepo.Delete(r.Context(), id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			respondError(w, http.StatusNotFound, "弹窗不存在")
			return
		}
		logger.Error("删除弹窗失败", logger.ErrorField(err), logger.String("popupId", id))
		respondError(w, http.StatusInternalServerError, "删除弹窗失败")
		return
	}
	respondSuccess(w, http.StatusOK, nil)
}
