package server

import (
	"errors"
	"net/http"
	"strings"

	"blogmusic/core/auth"
	"blogmusic/logger"
	"blogmusic/model"
	"blogmusic/repository"
)

type authResponse struct {
	Token string      `json:"token"`
	User  *model.User `json:"user"`
}

// LoginHandler handles user login requests
func (h *APIHandler) LoginHandler(w http.ResponseWriter, r *http.Request) {
	var req model.LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		logger.Warn("[Login] 解析请求体失败", logger.ErrorField(err))
		respondError(w, http.StatusBadRequest, "请求格式错误")
		return
	}
	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" || req.Password == "" {
		respondError(w, http.StatusBadRequest, "用户名和密码不能为空")
		return
	}

	// 支持用户名或邮箱登录
	var (
		user *model.User
		err  error
	)
	if strings.Contains(req.Username, "@") {
		user, err = h.userRepo.GetByEmail(r.Context(), req.Username)
	} else {
		user, err = h.userRepo.GetByUsername(r.Context(), req.Username)
	}
	if err != nil {
		logger.Error("[Login] 查询用户失败", logger.ErrorField(err))
		respondError(w, http.StatusInternalServerError, "服务器内部错误")
		return
	}
	if user == nil || !auth.CheckPasswordHash(req.Password, user.PasswordHash) {
		logger.Warn("[Login] 用户名或密码错误", logger.String("username", req.Username))
		respondError(w, http.StatusUnauthorized, "用户名或密码错误")
		return
	}

	token, err := h.tokens.GenerateToken(user.ID, user.Username, user.Role)
	if err != nil {
		logger.Error("[Login] 生成Token失败", logger.ErrorField(err))
		respondError(w, http.StatusInternalServerError, "服务器内部错误")
		return
	}

	logger.Info("[Login] 登录成功", logger.String("username", user.Username))
	respondSuccess(w, http.StatusOK, authResponse{Token: token, User: user})
}

// RegisterHandler handles user registration requests
func (h *APIHandler) RegisterHandler(w http.ResponseWriter, r *http.Request) {
	var req model.RegisterRequest
	if err := decodeJSON(r, &req); err != nil {
		logger.Warn("[Register] 解析请求体失败", logger.ErrorField(err))
		respondError(w, http.StatusBadRequest, "请求格式错误")
		return
	}
	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.TrimSpace(req.Email)

	switch {
	case req.Username == "" || req.Email == "" || req.Password == "":
		respondError(w, http.StatusBadRequest, "用户名、邮箱和密码不能为空")
		return
	case strings.Contains(req.Username, "@"):
		respondError(w, http.StatusBadRequest, "用户名不能包含 @")
		return
	case !strings.Contains(req.Email, "@"):
		respondError(w, http.StatusBadRequest, "邮箱格式不正确")
		return
	}
	if err := auth.ValidatePassword(req.Password); err != nil {
		msg := "密码长度至少为6位"
		if errors.Is(err, auth.ErrPasswordTooLong) {
			msg = "密码过长"
		}
		respondError(w, http.StatusBadRequest, msg)
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		logger.Error("[Register] 密码加密失败", logger.ErrorField(err))
		respondError(w, http.StatusInternalServerError, "服务器内部错误")
		return
	}

	user := &model.User{
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: hash,
		Role:         model.RoleUser,
	}
	if err := h.userRepo.Create(r.Context(), user); err != nil {
		if errors.Is(err, repository.ErrDuplicateUser) {
			respondError(w, http.StatusConflict, "用户名或邮箱已存在")
			return
		}
		logger.Error("[Register] 创建用户失败", logger.ErrorField(err))
		respondError(w, http.StatusInternalServerError, "服务器内部错误")
		return
	}

	token, err := h.tokens.GenerateToken(user.ID, user.Username, user.Role)
	if err != nil {
		logger.Error("[Register] 生成Token失败", logger.ErrorField(err))
		respondError(w, http.StatusInternalServerError, "服务器内部错误")
		return
	}

	logger.Info("[Register] 注册成功",
		logger.String("username", user.Username),
		logger.Int64("userId", user.ID))
	respondSuccess(w, http.StatusCreated, authResponse{Token: token, User: user})
}

// MeHandler returns the logged-in user.
func (h *APIHandler) MeHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := GetUserIDFromContext(r.Context())
	if err != nil {
		respondError(w, http.StatusUnauthorized, "未登录或登录已过期")
		return
	}
	user, err := h.userRepo.GetByID(r.Context(), userID)
	if err != nil {
		logger.Error("[Me] 查询用户失败", logger.ErrorField(err), logger.Int64("userId", userID))
		respondError(w, http.StatusInternalServerError, "服务器内部错误")
		return
	}
	if user == nil {
		respondError(w, http.StatusNotFound, "用户不存在")
		return
	}
	respondSuccess(w, http.StatusOK, user)
}
