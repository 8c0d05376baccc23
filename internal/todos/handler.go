package todos

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/civitas-platform/civitas/internal/authz"
	"github.com/civitas-platform/civitas/internal/platform/httpx"
	"github.com/civitas-platform/civitas/internal/shared"
)

// Handler manages todo endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	guard     *shared.Guard
	validator *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, guard *shared.Guard) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, guard: guard, validator: validator.New()}
}

// MountRoutes registers todo routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.listTodos)
	r.Post("/", h.createTodo)
	r.Get("/{id}", h.getTodo)
	r.Patch("/{id}", h.updateTodo)
	r.Delete("/{id}", h.deleteTodo)

	r.Get("/{id}/assignments", h.listAssignments)
	r.Post("/{id}/assignments", h.assign)
	r.Delete("/{id}/assignments/{assignmentID}", h.unassign)
}

type todoView struct {
	ID          string     `json:"id"`
	GroupID     string     `json:"group_id"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Status      string     `json:"status"`
	Visibility  string     `json:"visibility"`
	OwnerID     string     `json:"owner_id"`
	DueAt       *time.Time `json:"due_at,omitempty"`
}

type assignmentView struct {
	ID         string `json:"id"`
	UserID     string `json:"user_id"`
	AssignedBy string `json:"assigned_by"`
}

type todoRequest struct {
	GroupID     string    `json:"group_id" validate:"required"`
	Title       string    `json:"title" validate:"required,max=300"`
	Description string    `json:"description" validate:"max=5000"`
	Visibility  string    `json:"visibility" validate:"omitempty,oneof=public authenticated private"`
	DueAt       time.Time `json:"due_at"`
}

type todoUpdateRequest struct {
	Title       string    `json:"title" validate:"required,max=300"`
	Description string    `json:"description" validate:"max=5000"`
	Status      string    `json:"status" validate:"required,oneof=open done"`
	Visibility  string    `json:"visibility" validate:"omitempty,oneof=public authenticated private"`
	DueAt       time.Time `json:"due_at"`
}

type assignRequest struct {
	UserID string `json:"user_id" validate:"required"`
}

func todoToView(t Todo) todoView {
	visibility := string(t.Visibility)
	if visibility == "" {
		visibility = string(authz.VisibilityPublic)
	}
	view := todoView{ID: t.ID, GroupID: t.GroupID, Title: t.Title, Description: t.Description, Status: string(t.Status), Visibility: visibility, OwnerID: t.OwnerID}
	if !t.DueAt.IsZero() {
		due := t.DueAt
		view.DueAt = &due
	}
	return view
}

func (h *Handler) object(t *Todo) authz.Object {
	return authz.Object{
		Resource:   authz.ResourceTodos,
		ID:         t.ID,
		OwnerID:    t.OwnerID,
		Visibility: t.Visibility,
		GroupID:    t.GroupID,
	}
}

func (h *Handler) listTodos(w http.ResponseWriter, r *http.Request) {
	sub := shared.SubjectFromContext(r.Context())
	page, perPage := shared.PageFromRequest(r)
	groupID := r.URL.Query().Get("group_id")
	list, total, err := h.service.ListTodos(r.Context(), groupID, perPage, (page-1)*perPage)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	views := make([]todoView, 0, len(list))
	for i := range list {
		if h.guard.CanView(sub, h.object(&list[i])) {
			views = append(views, todoToView(list[i]))
		}
	}
	p := shared.NewPagination(page, perPage, total)
	httpx.JSON(w, http.StatusOK, httpx.ListEnvelope{Items: views, Page: p.Page, Total: p.Total, Pages: p.TotalPages})
}

func (h *Handler) createTodo(w http.ResponseWriter, r *http.Request) {
	sub := shared.SubjectFromContext(r.Context())
	if !sub.Authenticated {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	var req todoRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	if !authz.IsGroupMember(sub.Memberships, req.GroupID) &&
		!authz.HasGroupPermission(sub.Memberships, req.GroupID, authz.ResourceTodos, authz.ActionCreate) {
		httpx.RespondError(w, httpx.ErrForbidden)
		return
	}
	todo, err := h.service.CreateTodo(r.Context(), CreateTodoInput{
		GroupID:     req.GroupID,
		Title:       req.Title,
		Description: req.Description,
		Visibility:  authz.Visibility(req.Visibility),
		OwnerID:     sub.UserID,
		DueAt:       req.DueAt,
	})
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, todoToView(*todo))
}

func (h *Handler) getTodo(w http.ResponseWriter, r *http.Request) {
	todo, ok := h.viewable(w, r)
	if !ok {
		return
	}
	httpx.JSON(w, http.StatusOK, todoToView(*todo))
}

func (h *Handler) updateTodo(w http.ResponseWriter, r *http.Request) {
	todo, ok := h.authorize(w, r, authz.ActionUpdate)
	if !ok {
		return
	}
	var req todoUpdateRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	sub := shared.SubjectFromContext(r.Context())
	updated, err := h.service.UpdateTodo(r.Context(), sub.UserID, todo.ID, UpdateTodoInput{
		Title:       req.Title,
		Description: req.Description,
		Status:      TodoStatus(req.Status),
		Visibility:  authz.Visibility(req.Visibility),
		DueAt:       req.DueAt,
	})
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, todoToView(*updated))
}

func (h *Handler) deleteTodo(w http.ResponseWriter, r *http.Request) {
	todo, ok := h.authorize(w, r, authz.ActionDelete)
	if !ok {
		return
	}
	sub := shared.SubjectFromContext(r.Context())
	if err := h.service.DeleteTodo(r.Context(), sub.UserID, todo.ID); err != nil {
		h.respondServiceError(w, err)
		return
	}
	httpx.NoContent(w)
}

func (h *Handler) listAssignments(w http.ResponseWriter, r *http.Request) {
	todo, ok := h.viewable(w, r)
	if !ok {
		return
	}
	list, err := h.service.ListAssignments(r.Context(), todo.ID)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	views := make([]assignmentView, 0, len(list))
	for _, a := range list {
		views = append(views, assignmentView{ID: a.ID, UserID: a.UserID, AssignedBy: a.AssignedBy})
	}
	httpx.JSON(w, http.StatusOK, httpx.ListEnvelope{Items: views})
}

func (h *Handler) assign(w http.ResponseWriter, r *http.Request) {
	todo, ok := h.authorize(w, r, authz.ActionUpdate)
	if !ok {
		return
	}
	var req assignRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	sub := shared.SubjectFromContext(r.Context())
	a, err := h.service.Assign(r.Context(), sub.UserID, todo.ID, req.UserID)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, assignmentView{ID: a.ID, UserID: a.UserID, AssignedBy: a.AssignedBy})
}

func (h *Handler) unassign(w http.ResponseWriter, r *http.Request) {
	todo, ok := h.authorize(w, r, authz.ActionUpdate)
	if !ok {
		return
	}
	sub := shared.SubjectFromContext(r.Context())
	if err := h.service.Unassign(r.Context(), sub.UserID, todo.ID, chi.URLParam(r, "assignmentID")); err != nil {
		h.respondServiceError(w, err)
		return
	}
	httpx.NoContent(w)
}

func (h *Handler) viewable(w http.ResponseWriter, r *http.Request) (*Todo, bool) {
	todo, err := h.service.GetTodo(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.respondServiceError(w, err)
		return nil, false
	}
	sub := shared.SubjectFromContext(r.Context())
	if !h.guard.CanView(sub, h.object(todo)) {
		httpx.RespondError(w, httpx.ErrNotFound)
		return nil, false
	}
	return todo, true
}

func (h *Handler) authorize(w http.ResponseWriter, r *http.Request, action authz.Action) (*Todo, bool) {
	todo, err := h.service.GetTodo(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.respondServiceError(w, err)
		return nil, false
	}
	sub := shared.SubjectFromContext(r.Context())
	if !h.guard.Can(sub, h.object(todo), action) {
		httpx.RespondError(w, httpx.ErrForbidden)
		return nil, false
	}
	return todo, true
}

func (h *Handler) respondServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, shared.ErrNotFound):
		httpx.RespondError(w, httpx.ErrNotFound)
	case errors.Is(err, ErrAssignmentExists):
		httpx.Problem(w, http.StatusConflict, "Duplicate", err.Error())
	case errors.Is(err, ErrTitleRequired), errors.Is(err, ErrBadStatus), errors.Is(err, ErrBadVisibility):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	default:
		h.logger.Error("todos request failed", slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}
