package handler

import (
	"net/http"

	"notesync/internal/middleware"
	"notesync/internal/service"
	"notesync/pkg/response"

	"go.uber.org/zap"
)

type UserHandler struct {
	userService *service.UserService
	logger      *zap.Logger
}

func NewUserHandler(userService *service.UserService, logger *zap.Logger) *UserHandler {
	return &UserHandler{
		userService: userService,
		logger:      logger,
	}
}

func (h *UserHandler) GetMe(w http.ResponseWriter, r *http.Request) {
	user, err := h.userService.GetByID(r.Context(), middleware.GetUserID(r))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	response.Success(w, user)
}

type updateMeRequest struct {
	Username string `json:"username" validate:"required,min=3,max=30,alphanum"`
}

func (h *UserHandler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	var req updateMeRequest
	if err := decode(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	user, err := h.userService.UpdateUsername(r.Context(), middleware.GetUserID(r), req.Username)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	response.Success(w, user)
}
