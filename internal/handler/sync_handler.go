package handler

import (
	"fmt"
	"net/http"
	"strconv"

	"notesync/internal/domain"
	"notesync/internal/middleware"
	"notesync/internal/service"
	"notesync/pkg/response"

	"go.uber.org/zap"
)

type SyncHandler struct {
	syncService   *service.SyncService
	deviceService *service.DeviceService
	logger        *zap.Logger
}

func NewSyncHandler(syncService *service.SyncService, deviceService *service.DeviceService, logger *zap.Logger) *SyncHandler {
	return &SyncHandler{
		syncService:   syncService,
		deviceService: deviceService,
		logger:        logger,
	}
}

func (h *SyncHandler) Push(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r)

	var req domain.PushRequest
	if err := decode(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	if err := h.deviceService.Authorize(r.Context(), userID, req.DeviceID); err != nil {
		writeError(w, h.logger, err)
		return
	}

	res, err := h.syncService.Push(r.Context(), userID, &req)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	h.logger.Debug("push applied",
		zap.String("user_id", userID),
		zap.String("device_id", req.DeviceID),
		zap.Int("acked", len(res.Acked)),
		zap.Int("conflicts", len(res.Conflicts)),
	)
	response.Success(w, res)
}

func (h *SyncHandler) Pull(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r)
	query := r.URL.Query()

	limit := 0
	if raw := query.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, h.logger, domain.NewValidationError("limit", fmt.Sprintf("invalid limit %q", raw)))
			return
		}
		limit = n
	}

	deviceID := query.Get("device_id")
	if deviceID != "" {
		if err := h.deviceService.Authorize(r.Context(), userID, deviceID); err != nil {
			writeError(w, h.logger, err)
			return
		}
	}

	res, err := h.syncService.Pull(r.Context(), userID, deviceID, domain.SyncCursor(query.Get("cursor")), limit)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	response.Success(w, res)
}
