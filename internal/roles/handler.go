package roles

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

// Handler manages role administration endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	guard     *shared.Guard
	grants    authz.GrantLoader
	validator *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, guard *shared.Guard, grants authz.GrantLoader) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, guard: guard, grants: grants, validator: validator.New()}
}

// MountRoutes registers role routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.listRoles)
	r.Post("/", h.createRole)
	r.Get("/{id}", h.getRole)
	r.Patch("/{id}", h.updateRole)
	r.Delete("/{id}", h.deleteRole)
	r.Get("/{id}/rights", h.listRights)
	r.Post("/{id}/rights", h.addRight)
	r.Delete("/{id}/rights/{rightID}", h.deleteRight)
}

type roleView struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Scope       string `json:"scope"`
	GroupID     string `json:"group_id,omitempty"`
	EventID     string `json:"event_id,omitempty"`
	AmendmentID string `json:"amendment_id,omitempty"`
	BlogID      string `json:"blog_id,omitempty"`
}

type rightView struct {
	ID       string `json:"id"`
	Resource string `json:"resource"`
	Action   string `json:"action"`
}

type createRoleRequest struct {
	Name        string `json:"name" validate:"required,max=120"`
	Description string `json:"description" validate:"max=2000"`
	GroupID     string `json:"group_id"`
	EventID     string `json:"event_id"`
	AmendmentID string `json:"amendment_id"`
	BlogID      string `json:"blog_id"`
}

type updateRoleRequest struct {
	Name        string `json:"name" validate:"required,max=120"`
	Description string `json:"description" validate:"max=2000"`
}

type createRightRequest struct {
	Resource string `json:"resource" validate:"required"`
	Action   string `json:"action" validate:"required"`
}

func roleToView(role Role) roleView {
	return roleView{
		ID:          role.ID,
		Name:        role.Name,
		Description: role.Description,
		Scope:       string(role.Scope),
		GroupID:     role.GroupID,
		EventID:     role.EventID,
		AmendmentID: role.AmendmentID,
		BlogID:      role.BlogID,
	}
}

// roleObject builds the evaluation object for a role's owning scope, loading
// the amendment or blog grant graph when the role lives there.
func (h *Handler) roleObject(r *http.Request, role *Role) (authz.Object, error) {
	obj := authz.Object{Resource: authz.ResourceRoles, GroupID: role.GroupID, EventID: role.EventID}
	if role.AmendmentID != "" {
		amendment, err := h.grants.AmendmentGrants(r.Context(), role.AmendmentID)
		if err != nil {
			return authz.Object{}, err
		}
		obj.Amendment = amendment
	}
	if role.BlogID != "" {
		blog, err := h.grants.BlogGrants(r.Context(), role.BlogID)
		if err != nil {
			return authz.Object{}, err
		}
		obj.Blog = blog
	}
	return obj, nil
}

func (h *Handler) listRoles(w http.ResponseWriter, r *http.Request) {
	sub := shared.SubjectFromContext(r.Context())
	if !sub.Authenticated {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	q := r.URL.Query()
	scope := authz.Scope(q.Get("scope"))
	scopeID := q.Get("scope_id")
	list, err := h.service.ListRoles(r.Context(), scope, scopeID)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	views := make([]roleView, 0, len(list))
	for _, role := range list {
		views = append(views, roleToView(role))
	}
	httpx.JSON(w, http.StatusOK, httpx.ListEnvelope{Items: views})
}

func (h *Handler) createRole(w http.ResponseWriter, r *http.Request) {
	var req createRoleRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	candidate := Role{GroupID: req.GroupID, EventID: req.EventID, AmendmentID: req.AmendmentID, BlogID: req.BlogID}
	obj, err := h.roleObject(r, &candidate)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	sub := shared.SubjectFromContext(r.Context())
	if !h.guard.Can(sub, obj, authz.ActionManage) {
		httpx.RespondError(w, httpx.ErrForbidden)
		return
	}
	role, err := h.service.CreateRole(r.Context(), CreateRoleInput{
		Name:        req.Name,
		Description: req.Description,
		GroupID:     req.GroupID,
		EventID:     req.EventID,
		AmendmentID: req.AmendmentID,
		BlogID:      req.BlogID,
	})
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, roleToView(*role))
}

func (h *Handler) getRole(w http.ResponseWriter, r *http.Request) {
	sub := shared.SubjectFromContext(r.Context())
	if !sub.Authenticated {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	role, err := h.service.GetRole(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, roleToView(*role))
}

func (h *Handler) updateRole(w http.ResponseWriter, r *http.Request) {
	role, ok := h.authorizeManage(w, r)
	if !ok {
		return
	}
	var req updateRoleRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	updated, err := h.service.UpdateRole(r.Context(), role.ID, req.Name, req.Description)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, roleToView(*updated))
}

func (h *Handler) deleteRole(w http.ResponseWriter, r *http.Request) {
	role, ok := h.authorizeManage(w, r)
	if !ok {
		return
	}
	if err := h.service.DeleteRole(r.Context(), role.ID); err != nil {
		h.respondServiceError(w, err)
		return
	}
	httpx.NoContent(w)
}

func (h *Handler) listRights(w http.ResponseWriter, r *http.Request) {
	sub := shared.SubjectFromContext(r.Context())
	if !sub.Authenticated {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	rights, err := h.service.ListActionRights(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	views := make([]rightView, 0, len(rights))
	for _, right := range rights {
		views = append(views, rightView{ID: right.ID, Resource: string(right.Resource), Action: string(right.Action)})
	}
	httpx.JSON(w, http.StatusOK, httpx.ListEnvelope{Items: views})
}

func (h *Handler) addRight(w http.ResponseWriter, r *http.Request) {
	role, ok := h.authorizeManage(w, r)
	if !ok {
		return
	}
	var req createRightRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	right, err := h.service.AddActionRight(r.Context(), role.ID, CreateRightInput{
		Resource: authz.Resource(req.Resource),
		Action:   authz.Action(req.Action),
	})
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, rightView{ID: right.ID, Resource: string(right.Resource), Action: string(right.Action)})
}

func (h *Handler) deleteRight(w http.ResponseWriter, r *http.Request) {
	role, ok := h.authorizeManage(w, r)
	if !ok {
		return
	}
	if err := h.service.DeleteActionRight(r.Context(), role.ID, chi.URLParam(r, "rightID")); err != nil {
		h.respondServiceError(w, err)
		return
	}
	httpx.NoContent(w)
}

// authorizeManage loads the role and requires a manage grant in its scope.
func (h *Handler) authorizeManage(w http.ResponseWriter, r *http.Request) (*Role, bool) {
	role, err := h.service.GetRole(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.respondServiceError(w, err)
		return nil, false
	}
	obj, err := h.roleObject(r, role)
	if err != nil {
		httpx.RespondError(w, err)
		return nil, false
	}
	sub := shared.SubjectFromContext(r.Context())
	if !h.guard.Can(sub, obj, authz.ActionManage) {
		httpx.RespondError(w, httpx.ErrForbidden)
		return nil, false
	}
	return role, true
}

func (h *Handler) respondServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, shared.ErrNotFound):
		httpx.RespondError(w, httpx.ErrNotFound)
	case errors.Is(err, ErrNameTaken):
		httpx.Problem(w, http.StatusConflict, "Duplicate", "a role with this name already exists in the scope")
	case errors.Is(err, ErrNameRequired), errors.Is(err, ErrScopeRequired), errors.Is(err, ErrBadCatalog):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	default:
		h.logger.Error("roles request failed", slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}
