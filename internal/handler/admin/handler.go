package admin

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/zhouzirui/visa-assistant/client/internal/middleware"
	promptService "github.com/zhouzirui/visa-assistant/client/internal/service/prompt"
	"github.com/zhouzirui/visa-assistant/client/pkg/utils"
)

// maxImportSize bounds uploaded prompt files.
const maxImportSize = 1 << 20

// Handler exposes the prompt admin view over HTTP.
type Handler struct {
	promptSvc *promptService.Service
	logger    *zap.SugaredLogger
}

// New creates the prompt admin handler.
func New(promptSvc *promptService.Service, logger *zap.SugaredLogger) *Handler {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Handler{promptSvc: promptSvc, logger: logger}
}

// RegisterRoutes mounts the admin endpoints under /admin/prompt.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/admin/prompt", func(r chi.Router) {
		r.Get("/", h.handleState)
		r.Post("/load", h.handleLoad)
		r.Put("/draft", h.handleDraft)
		r.Post("/save", h.handleSave)
		r.Post("/reset", h.handleReset)
		r.Post("/preview", h.handlePreview)
		r.Get("/export", h.handleExport)
		r.Post("/import", h.handleImport)
	})
}

func (h *Handler) editor(w http.ResponseWriter, r *http.Request) (*promptService.Editor, bool) {
	editor, err := h.promptSvc.Editor(middleware.SessionID(r.Context()))
	if err != nil {
		utils.RespondError(w, http.StatusUnauthorized, err.Error())
		return nil, false
	}
	return editor, true
}

func (h *Handler) handleState(w http.ResponseWriter, r *http.Request) {
	editor, ok := h.editor(w, r)
	if !ok {
		return
	}
	utils.RespondJSON(w, http.StatusOK, editor.Snapshot())
}

// handleLoad fetches the prompt. A backend failure is part of the view state,
// so the snapshot is returned with 200 and its error field set.
func (h *Handler) handleLoad(w http.ResponseWriter, r *http.Request) {
	editor, ok := h.editor(w, r)
	if !ok {
		return
	}
	if err := editor.Load(context.WithoutCancel(r.Context())); errors.Is(err, promptService.ErrBusy) {
		utils.RespondError(w, http.StatusConflict, err.Error())
		return
	}
	utils.RespondJSON(w, http.StatusOK, editor.Snapshot())
}

func (h *Handler) handleDraft(w http.ResponseWriter, r *http.Request) {
	editor, ok := h.editor(w, r)
	if !ok {
		return
	}

	var payload struct {
		Draft *string `json:"draft"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil || payload.Draft == nil {
		utils.RespondError(w, http.StatusBadRequest, "draft is required")
		return
	}

	if err := editor.SetDraft(*payload.Draft); err != nil {
		utils.RespondError(w, http.StatusConflict, err.Error())
		return
	}
	utils.RespondJSON(w, http.StatusOK, editor.Snapshot())
}

func (h *Handler) handleSave(w http.ResponseWriter, r *http.Request) {
	editor, ok := h.editor(w, r)
	if !ok {
		return
	}

	err := editor.Save(context.WithoutCancel(r.Context()))
	switch {
	case errors.Is(err, promptService.ErrBusy), errors.Is(err, promptService.ErrNothingToSave):
		utils.RespondError(w, http.StatusConflict, err.Error())
		return
	case err != nil:
		h.logger.Debugw("save rejected by backend", "error", err)
	}
	utils.RespondJSON(w, http.StatusOK, editor.Snapshot())
}

func (h *Handler) handleReset(w http.ResponseWriter, r *http.Request) {
	editor, ok := h.editor(w, r)
	if !ok {
		return
	}
	editor.Reset()
	utils.RespondJSON(w, http.StatusOK, editor.Snapshot())
}

func (h *Handler) handlePreview(w http.ResponseWriter, r *http.Request) {
	editor, ok := h.editor(w, r)
	if !ok {
		return
	}
	editor.TogglePreview()
	utils.RespondJSON(w, http.StatusOK, editor.Snapshot())
}

func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request) {
	editor, ok := h.editor(w, r)
	if !ok {
		return
	}
	export := editor.Export()
	utils.RespondAttachment(w, export.Filename, export.ContentType, export.Body)
}

func (h *Handler) handleImport(w http.ResponseWriter, r *http.Request) {
	editor, ok := h.editor(w, r)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxImportSize)
	file, _, err := r.FormFile("file")
	if err != nil {
		utils.RespondError(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()

	if err := editor.Import(file); errors.Is(err, promptService.ErrNotEditable) {
		utils.RespondError(w, http.StatusConflict, err.Error())
		return
	}
	utils.RespondJSON(w, http.StatusOK, editor.Snapshot())
}
