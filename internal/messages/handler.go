package messages

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/civitas-platform/civitas/internal/platform/httpx"
	"github.com/civitas-platform/civitas/internal/shared"
)

// Handler manages messaging endpoints. Every route requires a logged-in
// principal; access within a thread is participant membership.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountRoutes registers messaging routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.listThreads)
	r.Post("/", h.createThread)
	r.Get("/{id}", h.getThread)
	r.Get("/{id}/messages", h.listMessages)
	r.Post("/{id}/messages", h.post)
	r.Get("/{id}/participants", h.listParticipants)
	r.Post("/{id}/participants", h.addParticipant)
}

type threadView struct {
	ID        string    `json:"id"`
	Subject   string    `json:"subject"`
	CreatedBy string    `json:"created_by"`
	UpdatedAt time.Time `json:"updated_at"`
}

type messageView struct {
	ID        string    `json:"id"`
	SenderID  string    `json:"sender_id"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}

type threadRequest struct {
	Subject      string   `json:"subject" validate:"required,max=300"`
	Participants []string `json:"participants" validate:"required,min=1,dive,required"`
	Body         string   `json:"body" validate:"required"`
}

type messageRequest struct {
	Body string `json:"body" validate:"required"`
}

type participantRequest struct {
	UserID string `json:"user_id" validate:"required"`
}

func threadToView(t Thread) threadView {
	return threadView{ID: t.ID, Subject: t.Subject, CreatedBy: t.CreatedBy, UpdatedAt: t.UpdatedAt}
}

func (h *Handler) principal(w http.ResponseWriter, r *http.Request) (string, bool) {
	sub := shared.SubjectFromContext(r.Context())
	if !sub.Authenticated {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return "", false
	}
	return sub.UserID, true
}

func (h *Handler) listThreads(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.principal(w, r)
	if !ok {
		return
	}
	page, perPage := shared.PageFromRequest(r)
	list, total, err := h.service.ListThreads(r.Context(), userID, perPage, (page-1)*perPage)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	views := make([]threadView, 0, len(list))
	for _, t := range list {
		views = append(views, threadToView(t))
	}
	p := shared.NewPagination(page, perPage, total)
	httpx.JSON(w, http.StatusOK, httpx.ListEnvelope{Items: views, Page: p.Page, Total: p.Total, Pages: p.TotalPages})
}

func (h *Handler) createThread(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.principal(w, r)
	if !ok {
		return
	}
	var req threadRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	thread, err := h.service.CreateThread(r.Context(), CreateThreadInput{
		Subject:      req.Subject,
		CreatedBy:    userID,
		Participants: req.Participants,
		Body:         req.Body,
	})
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, threadToView(*thread))
}

func (h *Handler) getThread(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.principal(w, r)
	if !ok {
		return
	}
	thread, err := h.service.GetThread(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, threadToView(*thread))
}

func (h *Handler) listMessages(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.principal(w, r)
	if !ok {
		return
	}
	page, perPage := shared.PageFromRequest(r)
	list, err := h.service.ListMessages(r.Context(), userID, chi.URLParam(r, "id"), perPage, (page-1)*perPage)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	views := make([]messageView, 0, len(list))
	for _, m := range list {
		views = append(views, messageView{ID: m.ID, SenderID: m.SenderID, Body: m.Body, CreatedAt: m.CreatedAt})
	}
	httpx.JSON(w, http.StatusOK, httpx.ListEnvelope{Items: views})
}

func (h *Handler) post(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.principal(w, r)
	if !ok {
		return
	}
	var req messageRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	message, err := h.service.Post(r.Context(), userID, chi.URLParam(r, "id"), req.Body)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, messageView{ID: message.ID, SenderID: message.SenderID, Body: message.Body, CreatedAt: message.CreatedAt})
}

func (h *Handler) listParticipants(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.principal(w, r)
	if !ok {
		return
	}
	list, err := h.service.ListParticipants(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, httpx.ListEnvelope{Items: list})
}

func (h *Handler) addParticipant(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.principal(w, r)
	if !ok {
		return
	}
	var req participantRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	if err := h.service.AddParticipant(r.Context(), userID, chi.URLParam(r, "id"), req.UserID); err != nil {
		h.respondServiceError(w, err)
		return
	}
	httpx.NoContent(w)
}

func (h *Handler) respondServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, shared.ErrNotFound):
		httpx.RespondError(w, httpx.ErrNotFound)
	case errors.Is(err, ErrSubjectRequired), errors.Is(err, ErrBodyRequired), errors.Is(err, ErrParticipantsRequired):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	default:
		h.logger.Error("messages request failed", slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}
