package whatsapp

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"agendabot/internal/chatbot"
)

const (
	emptyInboundReply  = "Desculpe, não recebi nenhuma mensagem. Tente novamente."
	internalErrorReply = "Desculpe, ocorreu um erro interno. Tente novamente mais tarde."
)

// Handler bridges Twilio webhooks and the dialogue service. Webhook-origin
// failures never surface raw errors to the end user; they degrade to a fixed
// apology inside a valid TwiML envelope.
type Handler struct {
	svc    chatbot.Service
	client *Client
	log    *slog.Logger
}

func NewHandler(svc chatbot.Service, client *Client, log *slog.Logger) *Handler {
	return &Handler{svc: svc, client: client, log: log}
}

func (h *Handler) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.replyTwiML(w, internalErrorReply)
		return
	}

	msg := ParseWebhook(r.PostForm)
	if strings.TrimSpace(msg.Body) == "" {
		h.replyTwiML(w, emptyInboundReply)
		return
	}

	result, err := h.svc.HandleMessage(r.Context(), msg.UserID(), msg.Body)
	if err != nil {
		h.log.Error("whatsapp webhook", slog.String("from", msg.From), slog.Any("error", err))
		h.replyTwiML(w, internalErrorReply)
		return
	}

	h.replyTwiML(w, result.Reply)
}

type sendRequest struct {
	To      string `json:"to"`
	Message string `json:"message"`
}

// HandleSend pushes a message out directly, outside any conversation turn.
// Delivery failure is reported to this caller only.
func (h *Handler) HandleSend(w http.ResponseWriter, r *http.Request) {
	var req sendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.To == "" || req.Message == "" {
		respondJSON(w, http.StatusBadRequest, map[string]string{"error": "to and message are required"})
		return
	}

	sid, err := h.client.SendMessage(req.To, req.Message)
	if err != nil {
		h.log.Error("whatsapp send", slog.String("to", req.To), slog.Any("error", err))
		respondJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to send message"})
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"message_sid": sid})
}

func (h *Handler) replyTwiML(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/xml")
	_, _ = w.Write(ReplyTwiML(message))
}

func respondJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func RegisterRoutes(r chi.Router, h *Handler) {
	r.Post("/webhook/whatsapp", h.HandleWebhook)
	r.Post("/whatsapp/send", h.HandleSend)
}
