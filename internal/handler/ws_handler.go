package handler

import (
	"net/http"
	"strings"

	"notesync/internal/service"
	"notesync/internal/websocket"

	"github.com/google/uuid"
	ws "github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// WebSocketHandler upgrades authenticated devices to the hint channel. The
// channel carries only note_changed hints; clients pull the data over HTTP.
type WebSocketHandler struct {
	manager     *websocket.Manager
	authService *service.AuthService
	devices     *service.DeviceService
	upgrader    ws.Upgrader
	logger      *zap.Logger
}

func NewWebSocketHandler(manager *websocket.Manager, authService *service.AuthService, devices *service.DeviceService, readBuf, writeBuf int, logger *zap.Logger) *WebSocketHandler {
	return &WebSocketHandler{
		manager:     manager,
		authService: authService,
		devices:     devices,
		upgrader: ws.Upgrader{
			ReadBufferSize:  readBuf,
			WriteBufferSize: writeBuf,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		logger: logger,
	}
}

func (h *WebSocketHandler) HandleConnection(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		token = strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	}

	if token == "" {
		http.Error(w, "missing authorization token", http.StatusUnauthorized)
		return
	}

	claims, err := h.authService.ValidateToken(token)
	if err != nil {
		h.logger.Debug("websocket token rejected", zap.Error(err))
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}

	userID := claims.UserID
	deviceID := r.URL.Query().Get("device_id")
	if deviceID == "" {
		http.Error(w, "missing device_id", http.StatusBadRequest)
		return
	}

	if err := h.devices.Authorize(r.Context(), userID, deviceID); err != nil {
		h.logger.Debug("websocket device rejected", zap.String("device_id", deviceID), zap.Error(err))
		http.Error(w, "device not allowed", http.StatusForbidden)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("failed to upgrade connection", zap.Error(err))
		return
	}

	client := websocket.NewClient(uuid.New().String(), userID, deviceID, conn, h.manager)
	if !h.manager.Add(client) {
		conn.Close()
		return
	}

	h.logger.Debug("websocket connected",
		zap.String("user_id", userID),
		zap.String("device_id", deviceID),
		zap.String("client_id", client.ID),
	)

	go client.WritePump()
	go client.ReadPump()
}
