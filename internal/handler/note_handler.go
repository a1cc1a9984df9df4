package handler

import (
	"net/http"

	"notesync/internal/middleware"
	"notesync/internal/service"
	"notesync/pkg/response"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// NoteHandler serves the read-only notes API. Notes change only through sync.
type NoteHandler struct {
	service *service.NoteService
	logger  *zap.Logger
}

func NewNoteHandler(service *service.NoteService, logger *zap.Logger) *NoteHandler {
	return &NoteHandler{
		service: service,
		logger:  logger,
	}
}

func (h *NoteHandler) List(w http.ResponseWriter, r *http.Request) {
	notes, err := h.service.List(r.Context(), middleware.GetUserID(r), r.URL.Query().Get("q"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	response.Success(w, notes)
}

func (h *NoteHandler) Get(w http.ResponseWriter, r *http.Request) {
	note, err := h.service.Get(r.Context(), middleware.GetUserID(r), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	response.Success(w, note)
}
