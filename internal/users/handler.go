package users

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/civitas-platform/civitas/internal/authz"
	"github.com/civitas-platform/civitas/internal/platform/httpx"
	"github.com/civitas-platform/civitas/internal/shared"
)

// Handler manages user management endpoints.
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

// MountRoutes registers user routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.listUsers)
	r.Get("/{id}", h.getUser)
	r.Patch("/{id}", h.updateProfile)
	r.Delete("/{id}", h.deactivate)
}

type userView struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	Name     string `json:"name"`
	Bio      string `json:"bio,omitempty"`
	IsActive bool   `json:"is_active"`
}

type updateProfileRequest struct {
	Name string `json:"name" validate:"required,max=120"`
	Bio  string `json:"bio" validate:"max=2000"`
}

func toView(u User) userView {
	return userView{ID: u.ID, Email: u.Email, Name: u.Name, Bio: u.Bio, IsActive: u.IsActive}
}

func (h *Handler) listUsers(w http.ResponseWriter, r *http.Request) {
	sub := shared.SubjectFromContext(r.Context())
	if !sub.Authenticated {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	page, perPage := shared.PageFromRequest(r)
	list, total, err := h.service.ListUsers(r.Context(), perPage, (page-1)*perPage)
	if err != nil {
		h.logger.Error("list users", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	views := make([]userView, 0, len(list))
	for _, u := range list {
		views = append(views, toView(u))
	}
	p := shared.NewPagination(page, perPage, total)
	httpx.JSON(w, http.StatusOK, httpx.ListEnvelope{Items: views, Page: p.Page, Total: p.Total, Pages: p.TotalPages})
}

func (h *Handler) getUser(w http.ResponseWriter, r *http.Request) {
	sub := shared.SubjectFromContext(r.Context())
	if !sub.Authenticated {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	user, err := h.service.GetUser(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httpx.RespondError(w, mapErr(err))
		return
	}
	httpx.JSON(w, http.StatusOK, toView(*user))
}

func (h *Handler) updateProfile(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	sub := shared.SubjectFromContext(r.Context())
	obj := authz.Object{Resource: authz.ResourceUsers, ID: id, OwnerID: id}
	if !h.guard.Can(sub, obj, authz.ActionUpdate) {
		httpx.RespondError(w, httpx.ErrForbidden)
		return
	}
	var req updateProfileRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	user, err := h.service.UpdateProfile(r.Context(), id, UpdateProfileInput{Name: req.Name, Bio: req.Bio})
	if err != nil {
		httpx.RespondError(w, mapErr(err))
		return
	}
	httpx.JSON(w, http.StatusOK, toView(*user))
}

func (h *Handler) deactivate(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	sub := shared.SubjectFromContext(r.Context())
	obj := authz.Object{Resource: authz.ResourceUsers, ID: id, OwnerID: id}
	if !h.guard.Can(sub, obj, authz.ActionDelete) {
		httpx.RespondError(w, httpx.ErrForbidden)
		return
	}
	if err := h.service.Deactivate(r.Context(), id); err != nil {
		httpx.RespondError(w, mapErr(err))
		return
	}
	httpx.NoContent(w)
}

func mapErr(err error) error {
	if errors.Is(err, shared.ErrNotFound) {
		return httpx.ErrNotFound
	}
	return err
}
