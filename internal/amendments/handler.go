package amendments

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/civitas-platform/civitas/internal/authz"
	"github.com/civitas-platform/civitas/internal/platform/httpx"
	"github.com/civitas-platform/civitas/internal/shared"
)

// Handler manages amendment endpoints.
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

// MountRoutes registers amendment routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.listAmendments)
	r.Post("/", h.createAmendment)
	r.Get("/{id}", h.getAmendment)
	r.Patch("/{id}", h.updateAmendment)
	r.Delete("/{id}", h.deleteAmendment)

	r.Get("/{id}/versions", h.listVersions)
	r.Post("/{id}/versions", h.addVersion)
	r.Get("/{id}/versions/{number}", h.getVersion)

	r.Get("/{id}/collaborators", h.listCollaborators)
	r.Post("/{id}/collaborators", h.addCollaborator)
	r.Delete("/{id}/collaborators/{collaboratorID}", h.removeCollaborator)
}

type amendmentView struct {
	ID         string    `json:"id"`
	GroupID    string    `json:"group_id"`
	Title      string    `json:"title"`
	Body       string    `json:"body"`
	Visibility string    `json:"visibility"`
	OwnerID    string    `json:"owner_id"`
	UpdatedAt  time.Time `json:"updated_at"`
}

type versionView struct {
	Number    int       `json:"number"`
	Body      string    `json:"body"`
	AuthorID  string    `json:"author_id"`
	Note      string    `json:"note,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type collaboratorView struct {
	ID       string `json:"id"`
	UserID   string `json:"user_id"`
	RoleName string `json:"role_name"`
}

type amendmentRequest struct {
	GroupID    string `json:"group_id" validate:"required"`
	Title      string `json:"title" validate:"required,max=300"`
	Body       string `json:"body" validate:"required"`
	Visibility string `json:"visibility" validate:"omitempty,oneof=public authenticated private"`
}

type amendmentUpdateRequest struct {
	Title      string `json:"title" validate:"required,max=300"`
	Visibility string `json:"visibility" validate:"omitempty,oneof=public authenticated private"`
}

type versionRequest struct {
	Body string `json:"body" validate:"required"`
	Note string `json:"note" validate:"max=1000"`
}

type collaboratorRequest struct {
	UserID   string `json:"user_id" validate:"required"`
	RoleName string `json:"role_name" validate:"required,max=200"`
}

func amendmentToView(a Amendment) amendmentView {
	visibility := string(a.Visibility)
	if visibility == "" {
		visibility = string(authz.VisibilityPublic)
	}
	return amendmentView{ID: a.ID, GroupID: a.GroupID, Title: a.Title, Body: a.Body, Visibility: visibility, OwnerID: a.OwnerID, UpdatedAt: a.UpdatedAt}
}

// object builds the evaluation object with the amendment's collaborator graph
// attached, so named-role grants can resolve.
func (h *Handler) object(r *http.Request, a *Amendment) authz.Object {
	obj := authz.Object{
		Resource:   authz.ResourceAmendments,
		ID:         a.ID,
		OwnerID:    a.OwnerID,
		Visibility: a.Visibility,
		GroupID:    a.GroupID,
	}
	graph, err := h.grants.AmendmentGrants(r.Context(), a.ID)
	if err != nil {
		// Evaluation without the graph simply finds no amendment grants.
		h.logger.Warn("amendment grant load", slog.Any("error", err))
		return obj
	}
	obj.Amendment = graph
	return obj
}

func (h *Handler) listAmendments(w http.ResponseWriter, r *http.Request) {
	sub := shared.SubjectFromContext(r.Context())
	page, perPage := shared.PageFromRequest(r)
	groupID := r.URL.Query().Get("group_id")
	list, total, err := h.service.ListAmendments(r.Context(), groupID, perPage, (page-1)*perPage)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	views := make([]amendmentView, 0, len(list))
	for i := range list {
		if h.guard.CanView(sub, h.object(r, &list[i])) {
			views = append(views, amendmentToView(list[i]))
		}
	}
	p := shared.NewPagination(page, perPage, total)
	httpx.JSON(w, http.StatusOK, httpx.ListEnvelope{Items: views, Page: p.Page, Total: p.Total, Pages: p.TotalPages})
}

func (h *Handler) createAmendment(w http.ResponseWriter, r *http.Request) {
	sub := shared.SubjectFromContext(r.Context())
	if !sub.Authenticated {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	var req amendmentRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	if !authz.IsGroupMember(sub.Memberships, req.GroupID) &&
		!authz.HasGroupPermission(sub.Memberships, req.GroupID, authz.ResourceAmendments, authz.ActionCreate) {
		httpx.RespondError(w, httpx.ErrForbidden)
		return
	}
	amendment, err := h.service.CreateAmendment(r.Context(), CreateAmendmentInput{
		GroupID:    req.GroupID,
		Title:      req.Title,
		Body:       req.Body,
		Visibility: authz.Visibility(req.Visibility),
		OwnerID:    sub.UserID,
	})
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, amendmentToView(*amendment))
}

func (h *Handler) getAmendment(w http.ResponseWriter, r *http.Request) {
	amendment, ok := h.viewable(w, r)
	if !ok {
		return
	}
	httpx.JSON(w, http.StatusOK, amendmentToView(*amendment))
}

func (h *Handler) updateAmendment(w http.ResponseWriter, r *http.Request) {
	amendment, ok := h.authorize(w, r, authz.ActionUpdate)
	if !ok {
		return
	}
	var req amendmentUpdateRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	sub := shared.SubjectFromContext(r.Context())
	updated, err := h.service.UpdateAmendment(r.Context(), sub.UserID, amendment.ID, UpdateAmendmentInput{
		Title:      req.Title,
		Visibility: authz.Visibility(req.Visibility),
	})
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, amendmentToView(*updated))
}

func (h *Handler) deleteAmendment(w http.ResponseWriter, r *http.Request) {
	amendment, ok := h.authorize(w, r, authz.ActionDelete)
	if !ok {
		return
	}
	sub := shared.SubjectFromContext(r.Context())
	if err := h.service.DeleteAmendment(r.Context(), sub.UserID, amendment.ID); err != nil {
		h.respondServiceError(w, err)
		return
	}
	httpx.NoContent(w)
}

func (h *Handler) listVersions(w http.ResponseWriter, r *http.Request) {
	amendment, ok := h.viewable(w, r)
	if !ok {
		return
	}
	list, err := h.service.ListVersions(r.Context(), amendment.ID)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	views := make([]versionView, 0, len(list))
	for _, v := range list {
		views = append(views, versionView{Number: v.Number, Body: v.Body, AuthorID: v.AuthorID, Note: v.Note, CreatedAt: v.CreatedAt})
	}
	httpx.JSON(w, http.StatusOK, httpx.ListEnvelope{Items: views})
}

// addVersion is the editing operation: it needs an edit grant, not just
// metadata update rights.
func (h *Handler) addVersion(w http.ResponseWriter, r *http.Request) {
	amendment, ok := h.authorize(w, r, authz.ActionEdit)
	if !ok {
		return
	}
	var req versionRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	sub := shared.SubjectFromContext(r.Context())
	version, err := h.service.AddVersion(r.Context(), sub.UserID, amendment.ID, req.Body, req.Note)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, versionView{Number: version.Number, Body: version.Body, AuthorID: version.AuthorID, Note: version.Note, CreatedAt: version.CreatedAt})
}

func (h *Handler) getVersion(w http.ResponseWriter, r *http.Request) {
	amendment, ok := h.viewable(w, r)
	if !ok {
		return
	}
	number, err := strconv.Atoi(chi.URLParam(r, "number"))
	if err != nil || number < 1 {
		httpx.RespondError(w, httpx.ErrNotFound)
		return
	}
	version, err := h.service.GetVersion(r.Context(), amendment.ID, number)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, versionView{Number: version.Number, Body: version.Body, AuthorID: version.AuthorID, Note: version.Note, CreatedAt: version.CreatedAt})
}

func (h *Handler) listCollaborators(w http.ResponseWriter, r *http.Request) {
	amendment, ok := h.viewable(w, r)
	if !ok {
		return
	}
	list, err := h.service.ListCollaborators(r.Context(), amendment.ID)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	views := make([]collaboratorView, 0, len(list))
	for _, c := range list {
		views = append(views, collaboratorView{ID: c.ID, UserID: c.UserID, RoleName: c.RoleName})
	}
	httpx.JSON(w, http.StatusOK, httpx.ListEnvelope{Items: views})
}

func (h *Handler) addCollaborator(w http.ResponseWriter, r *http.Request) {
	amendment, ok := h.authorize(w, r, authz.ActionManage)
	if !ok {
		return
	}
	var req collaboratorRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	sub := shared.SubjectFromContext(r.Context())
	c, err := h.service.AddCollaborator(r.Context(), sub.UserID, amendment.ID, req.UserID, req.RoleName)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, collaboratorView{ID: c.ID, UserID: c.UserID, RoleName: c.RoleName})
}

func (h *Handler) removeCollaborator(w http.ResponseWriter, r *http.Request) {
	amendment, ok := h.authorize(w, r, authz.ActionManage)
	if !ok {
		return
	}
	sub := shared.SubjectFromContext(r.Context())
	if err := h.service.RemoveCollaborator(r.Context(), sub.UserID, amendment.ID, chi.URLParam(r, "collaboratorID")); err != nil {
		h.respondServiceError(w, err)
		return
	}
	httpx.NoContent(w)
}

func (h *Handler) viewable(w http.ResponseWriter, r *http.Request) (*Amendment, bool) {
	amendment, err := h.service.GetAmendment(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.respondServiceError(w, err)
		return nil, false
	}
	sub := shared.SubjectFromContext(r.Context())
	if !h.guard.CanView(sub, h.object(r, amendment)) {
		httpx.RespondError(w, httpx.ErrNotFound)
		return nil, false
	}
	return amendment, true
}

func (h *Handler) authorize(w http.ResponseWriter, r *http.Request, action authz.Action) (*Amendment, bool) {
	amendment, err := h.service.GetAmendment(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.respondServiceError(w, err)
		return nil, false
	}
	sub := shared.SubjectFromContext(r.Context())
	if !h.guard.Can(sub, h.object(r, amendment), action) {
		httpx.RespondError(w, httpx.ErrForbidden)
		return nil, false
	}
	return amendment, true
}

func (h *Handler) respondServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, shared.ErrNotFound):
		httpx.RespondError(w, httpx.ErrNotFound)
	case errors.Is(err, ErrCollaboratorExists):
		httpx.Problem(w, http.StatusConflict, "Duplicate", err.Error())
	case errors.Is(err, ErrTitleRequired), errors.Is(err, ErrBodyRequired),
		errors.Is(err, ErrBadVisibility), errors.Is(err, ErrRoleNameRequired):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	default:
		h.logger.Error("amendments request failed", slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}
