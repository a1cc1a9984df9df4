package handler

import (
	"net/http"

	"notesync/internal/domain"
	"notesync/internal/middleware"
	"notesync/internal/service"
	"notesync/pkg/response"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

type DeviceHandler struct {
	service *service.DeviceService
	logger  *zap.Logger
}

func NewDeviceHandler(service *service.DeviceService, logger *zap.Logger) *DeviceHandler {
	return &DeviceHandler{
		service: service,
		logger:  logger,
	}
}

func (h *DeviceHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req domain.RegisterDeviceRequest
	if err := decode(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	device, err := h.service.Register(r.Context(), middleware.GetUserID(r), &req)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	response.Created(w, device)
}

func (h *DeviceHandler) List(w http.ResponseWriter, r *http.Request) {
	devices, err := h.service.List(r.Context(), middleware.GetUserID(r))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	response.Success(w, devices)
}

func (h *DeviceHandler) Revoke(w http.ResponseWriter, r *http.Request) {
	deviceID := mux.Vars(r)["id"]

	if err := h.service.Revoke(r.Context(), middleware.GetUserID(r), deviceID); err != nil {
		writeError(w, h.logger, err)
		return
	}

	response.Success(w, map[string]string{"message": "Device revoked successfully"})
}
