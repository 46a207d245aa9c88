package chatbot

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
)

type Handler struct {
	svc          Service
	appointments AppointmentStore
	history      HistoryStore
	log          *slog.Logger
}

func NewHandler(svc Service, appointments AppointmentStore, history HistoryStore, log *slog.Logger) *Handler {
	return &Handler{svc: svc, appointments: appointments, history: history, log: log}
}

type messageRequest struct {
	UserID  string `json:"user_id"`
	Message string `json:"message"`
}

type messageResponse struct {
	Reply  string `json:"reply"`
	UserID string `json:"user_id"`
	State  State  `json:"state"`
}

func (h *Handler) HandleMessage(w http.ResponseWriter, r *http.Request) {
	var req messageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid request body")
		return
	}
	if req.UserID == "" {
		req.UserID = "default"
	}

	result, err := h.svc.HandleMessage(r.Context(), req.UserID, req.Message)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, messageResponse{
		Reply:  result.Reply,
		UserID: req.UserID,
		State:  result.State,
	})
}

func (h *Handler) ListAppointments(w http.ResponseWriter, r *http.Request) {
	var (
		appointments []Appointment
		err          error
	)
	if userID := r.URL.Query().Get("user_id"); userID != "" {
		appointments, err = h.appointments.ListByUser(r.Context(), userID)
	} else {
		appointments, err = h.appointments.ListAll(r.Context())
	}
	if err != nil {
		h.log.Error("list appointments", slog.Any("error", err))
		respondError(w, http.StatusInternalServerError, "STORE_FAILURE", "failed to list appointments")
		return
	}
	respondJSON(w, http.StatusOK, appointments)
}

func (h *Handler) GetConversation(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	conv, err := h.svc.GetStatus(r.Context(), userID)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, conv)
}

func (h *Handler) GetHistory(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	entries, err := h.history.ListByUser(r.Context(), userID)
	if err != nil {
		h.log.Error("list history", slog.String("user_id", userID), slog.Any("error", err))
		respondError(w, http.StatusInternalServerError, "STORE_FAILURE", "failed to load history")
		return
	}
	respondJSON(w, http.StatusOK, entries)
}

func (h *Handler) ResetConversation(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	if err := h.svc.ResetConversation(r.Context(), userID); err != nil {
		h.respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"message": "Conversa reiniciada com sucesso!"})
}

func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.appointments.Stats(r.Context())
	if err != nil {
		h.log.Error("load stats", slog.Any("error", err))
		respondError(w, http.StatusInternalServerError, "STORE_FAILURE", "failed to load statistics")
		return
	}
	respondJSON(w, http.StatusOK, stats)
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) respondServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrEmptyInput):
		respondError(w, http.StatusBadRequest, "EMPTY_INPUT", "message must not be empty")
	case errors.Is(err, ErrUnreachableState):
		h.log.Error("unreachable conversation state", slog.Any("error", err))
		respondError(w, http.StatusInternalServerError, "UNREACHABLE_STATE", "internal error")
	default:
		h.log.Error("handle message", slog.Any("error", err))
		respondError(w, http.StatusInternalServerError, "STORE_FAILURE", "internal error")
	}
}

type errorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

func respondJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func respondError(w http.ResponseWriter, status int, kind, message string) {
	respondJSON(w, status, errorResponse{Error: message, Kind: kind})
}

func RegisterRoutes(r chi.Router, h *Handler) {
	r.Post("/message", h.HandleMessage)
	r.Get("/appointments", h.ListAppointments)
	r.Get("/conversations/{userID}", h.GetConversation)
	r.Get("/conversations/{userID}/history", h.GetHistory)
	r.Post("/conversations/{userID}/reset", h.ResetConversation)
	r.Get("/stats", h.GetStats)
	r.Get("/health", h.Health)
}
