package chat

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/zhouzirui/visa-assistant/client/internal/middleware"
	"github.com/zhouzirui/visa-assistant/client/internal/model/chat"
	chatService "github.com/zhouzirui/visa-assistant/client/internal/service/chat"
	"github.com/zhouzirui/visa-assistant/client/pkg/utils"
)

// Handler exposes the chat view over HTTP and websocket.
type Handler struct {
	chatSvc  *chatService.Service
	logger   *zap.SugaredLogger
	upgrader websocket.Upgrader
}

// New creates the chat handler.
func New(chatSvc *chatService.Service, logger *zap.SugaredLogger) *Handler {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Handler{
		chatSvc: chatSvc,
		logger:  logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// RegisterRoutes mounts the chat endpoints under /chat.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/chat", func(r chi.Router) {
		r.Get("/", h.handleState)
		r.Put("/input", h.handleSetInput)
		r.Post("/messages", h.handleSend)
		r.Post("/retry", h.handleRetry)
		r.Post("/clear", h.handleClear)
		r.Put("/messages/{index}/feedback", h.handleFeedback)
		r.Get("/messages/{index}/copy", h.handleCopy)
		r.Get("/ws", h.handleWebSocket)
	})
}

type inputPayload struct {
	Message *string `json:"message"`
}

type feedbackPayload struct {
	Feedback string `json:"feedback"`
}

func (h *Handler) conversation(w http.ResponseWriter, r *http.Request) (*chatService.Conversation, bool) {
	conv, err := h.chatSvc.Conversation(r.Context(), middleware.SessionID(r.Context()))
	if err != nil {
		utils.RespondError(w, http.StatusUnauthorized, err.Error())
		return nil, false
	}
	return conv, true
}

func (h *Handler) handleState(w http.ResponseWriter, r *http.Request) {
	conv, ok := h.conversation(w, r)
	if !ok {
		return
	}
	utils.RespondJSON(w, http.StatusOK, conv.Snapshot())
}

func (h *Handler) handleSetInput(w http.ResponseWriter, r *http.Request) {
	conv, ok := h.conversation(w, r)
	if !ok {
		return
	}

	var payload inputPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil || payload.Message == nil {
		utils.RespondError(w, http.StatusBadRequest, "message is required")
		return
	}

	conv.SetInput(*payload.Message)
	utils.RespondJSON(w, http.StatusOK, conv.Snapshot())
}

// handleSend appends the client turn and answers immediately; the consultant
// turn is delivered through GET /chat or the websocket once it arrives.
func (h *Handler) handleSend(w http.ResponseWriter, r *http.Request) {
	conv, ok := h.conversation(w, r)
	if !ok {
		return
	}

	var payload inputPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil && !errors.Is(err, io.EOF) {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if payload.Message != nil {
		conv.SetInput(*payload.Message)
	}

	exchange, err := conv.Start()
	if err != nil {
		utils.RespondError(w, statusFor(err), err.Error())
		return
	}
	snapshot := conv.Snapshot()

	// The browser may go away; the reply still lands in the conversation.
	go exchange.Complete(context.WithoutCancel(r.Context()))

	utils.RespondJSON(w, http.StatusAccepted, snapshot)
}

func (h *Handler) handleRetry(w http.ResponseWriter, r *http.Request) {
	conv, ok := h.conversation(w, r)
	if !ok {
		return
	}
	if err := conv.Retry(); err != nil {
		utils.RespondError(w, statusFor(err), err.Error())
		return
	}
	utils.RespondJSON(w, http.StatusOK, conv.Snapshot())
}

func (h *Handler) handleClear(w http.ResponseWriter, r *http.Request) {
	conv, ok := h.conversation(w, r)
	if !ok {
		return
	}
	conv.Clear()
	utils.RespondJSON(w, http.StatusOK, conv.Snapshot())
}

func (h *Handler) handleFeedback(w http.ResponseWriter, r *http.Request) {
	conv, ok := h.conversation(w, r)
	if !ok {
		return
	}

	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid message index")
		return
	}

	var payload feedbackPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	value, ok := chat.ParseFeedback(payload.Feedback)
	if !ok {
		utils.RespondError(w, http.StatusBadRequest, "feedback must be up, down or none")
		return
	}

	if _, err := conv.Rate(index, value); err != nil {
		utils.RespondError(w, statusFor(err), err.Error())
		return
	}
	utils.RespondJSON(w, http.StatusOK, conv.Snapshot())
}

func (h *Handler) handleCopy(w http.ResponseWriter, r *http.Request) {
	conv, ok := h.conversation(w, r)
	if !ok {
		return
	}

	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid message index")
		return
	}

	text, err := conv.Copy(index)
	if err != nil {
		utils.RespondError(w, statusFor(err), err.Error())
		return
	}
	utils.RespondText(w, http.StatusOK, text)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, chatService.ErrEmptyInput), errors.Is(err, chatService.ErrInvalidFeedbackTarget):
		return http.StatusBadRequest
	case errors.Is(err, chatService.ErrMessageNotFound):
		return http.StatusNotFound
	case errors.Is(err, chatService.ErrBusy):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
