package groups

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

// Handler manages group endpoints.
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

// MountRoutes registers group routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.listGroups)
	r.Post("/", h.createGroup)
	r.Get("/{id}", h.getGroup)
	r.Patch("/{id}", h.updateGroup)
	r.Delete("/{id}", h.deleteGroup)

	r.Get("/{id}/memberships", h.listMemberships)
	r.Post("/{id}/invitations", h.invite)
	r.Post("/{id}/join", h.requestJoin)
	r.Post("/{id}/memberships/{membershipID}/accept", h.acceptMembership)
	r.Delete("/{id}/memberships/{membershipID}", h.removeMembership)

	r.Get("/{id}/relationships", h.listRelationships)
	r.Post("/{id}/relationships", h.requestRelationship)
	r.Post("/{id}/relationships/{relationshipID}/approve", h.approveRelationship)
	r.Post("/{id}/relationships/{relationshipID}/decline", h.declineRelationship)
}

type groupView struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Visibility  string `json:"visibility"`
	OwnerID     string `json:"owner_id"`
}

type membershipView struct {
	ID      string `json:"id"`
	GroupID string `json:"group_id"`
	UserID  string `json:"user_id"`
	Status  string `json:"status"`
}

type relationshipView struct {
	ID            string `json:"id"`
	ParentGroupID string `json:"parent_group_id"`
	ChildGroupID  string `json:"child_group_id"`
	Status        string `json:"status"`
	RequestedBy   string `json:"requested_by"`
}

type groupRequest struct {
	Name        string `json:"name" validate:"required,max=200"`
	Description string `json:"description" validate:"max=5000"`
	Visibility  string `json:"visibility" validate:"omitempty,oneof=public authenticated private"`
}

type inviteRequest struct {
	UserID string `json:"user_id" validate:"required"`
}

type relationshipRequest struct {
	ChildGroupID string `json:"child_group_id" validate:"required"`
}

func groupToView(g Group) groupView {
	visibility := string(g.Visibility)
	if visibility == "" {
		visibility = string(authz.VisibilityPublic)
	}
	return groupView{ID: g.ID, Name: g.Name, Description: g.Description, Visibility: visibility, OwnerID: g.OwnerID}
}

func membershipToView(m Membership) membershipView {
	return membershipView{ID: m.ID, GroupID: m.GroupID, UserID: m.UserID, Status: string(m.Status)}
}

func relationshipToView(rel Relationship) relationshipView {
	return relationshipView{
		ID:            rel.ID,
		ParentGroupID: rel.ParentGroupID,
		ChildGroupID:  rel.ChildGroupID,
		Status:        string(rel.Status),
		RequestedBy:   rel.RequestedBy,
	}
}

func (h *Handler) object(g *Group) authz.Object {
	return authz.Object{
		Resource:   authz.ResourceGroups,
		ID:         g.ID,
		OwnerID:    g.OwnerID,
		Visibility: g.Visibility,
		GroupID:    g.ID,
	}
}

func (h *Handler) listGroups(w http.ResponseWriter, r *http.Request) {
	sub := shared.SubjectFromContext(r.Context())
	page, perPage := shared.PageFromRequest(r)
	list, total, err := h.service.ListGroups(r.Context(), perPage, (page-1)*perPage)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	views := make([]groupView, 0, len(list))
	for i := range list {
		if h.guard.CanView(sub, h.object(&list[i])) {
			views = append(views, groupToView(list[i]))
		}
	}
	p := shared.NewPagination(page, perPage, total)
	httpx.JSON(w, http.StatusOK, httpx.ListEnvelope{Items: views, Page: p.Page, Total: p.Total, Pages: p.TotalPages})
}

func (h *Handler) createGroup(w http.ResponseWriter, r *http.Request) {
	sub := shared.SubjectFromContext(r.Context())
	if !sub.Authenticated {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	var req groupRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	group, err := h.service.CreateGroup(r.Context(), CreateGroupInput{
		Name:        req.Name,
		Description: req.Description,
		Visibility:  authz.Visibility(req.Visibility),
		OwnerID:     sub.UserID,
	})
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, groupToView(*group))
}

func (h *Handler) getGroup(w http.ResponseWriter, r *http.Request) {
	group, err := h.service.GetGroup(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	sub := shared.SubjectFromContext(r.Context())
	if !h.guard.CanView(sub, h.object(group)) {
		httpx.RespondError(w, httpx.ErrNotFound)
		return
	}
	httpx.JSON(w, http.StatusOK, groupToView(*group))
}

func (h *Handler) updateGroup(w http.ResponseWriter, r *http.Request) {
	group, ok := h.authorize(w, r, authz.ActionUpdate)
	if !ok {
		return
	}
	var req groupRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	sub := shared.SubjectFromContext(r.Context())
	updated, err := h.service.UpdateGroup(r.Context(), sub.UserID, group.ID, UpdateGroupInput{
		Name:        req.Name,
		Description: req.Description,
		Visibility:  authz.Visibility(req.Visibility),
	})
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, groupToView(*updated))
}

func (h *Handler) deleteGroup(w http.ResponseWriter, r *http.Request) {
	group, ok := h.authorize(w, r, authz.ActionDelete)
	if !ok {
		return
	}
	sub := shared.SubjectFromContext(r.Context())
	if err := h.service.DeleteGroup(r.Context(), sub.UserID, group.ID); err != nil {
		h.respondServiceError(w, err)
		return
	}
	httpx.NoContent(w)
}

func (h *Handler) listMemberships(w http.ResponseWriter, r *http.Request) {
	group, err := h.service.GetGroup(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	sub := shared.SubjectFromContext(r.Context())
	if !authz.HasGroupMembership(sub.Memberships, group.ID) && !h.canManageMembers(sub, group.ID) {
		httpx.RespondError(w, httpx.ErrForbidden)
		return
	}
	list, err := h.service.ListMemberships(r.Context(), group.ID)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	views := make([]membershipView, 0, len(list))
	for _, m := range list {
		views = append(views, membershipToView(m))
	}
	httpx.JSON(w, http.StatusOK, httpx.ListEnvelope{Items: views})
}

func (h *Handler) invite(w http.ResponseWriter, r *http.Request) {
	group, err := h.service.GetGroup(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	sub := shared.SubjectFromContext(r.Context())
	if !h.canManageMembers(sub, group.ID) && sub.UserID != group.OwnerID {
		httpx.RespondError(w, httpx.ErrForbidden)
		return
	}
	var req inviteRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	m, err := h.service.Invite(r.Context(), sub.UserID, group.ID, req.UserID)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, membershipToView(*m))
}

func (h *Handler) requestJoin(w http.ResponseWriter, r *http.Request) {
	group, err := h.service.GetGroup(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	sub := shared.SubjectFromContext(r.Context())
	if !sub.Authenticated {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	if !h.guard.CanView(sub, h.object(group)) {
		httpx.RespondError(w, httpx.ErrNotFound)
		return
	}
	m, err := h.service.RequestJoin(r.Context(), group.ID, sub.UserID)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, membershipToView(*m))
}

func (h *Handler) acceptMembership(w http.ResponseWriter, r *http.Request) {
	groupID := chi.URLParam(r, "id")
	membershipID := chi.URLParam(r, "membershipID")
	sub := shared.SubjectFromContext(r.Context())
	if !sub.Authenticated {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	m, err := h.service.GetMembership(r.Context(), membershipID)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	if m.GroupID != groupID {
		httpx.RespondError(w, httpx.ErrNotFound)
		return
	}
	var updated *Membership
	switch m.Status {
	case authz.MembershipInvited:
		updated, err = h.service.AcceptInvite(r.Context(), sub.UserID, membershipID)
	case authz.MembershipRequested:
		if !h.canManageMembers(sub, groupID) {
			httpx.RespondError(w, httpx.ErrForbidden)
			return
		}
		updated, err = h.service.ApproveRequest(r.Context(), sub.UserID, membershipID)
	default:
		h.respondServiceError(w, ErrBadTransition)
		return
	}
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, membershipToView(*updated))
}

func (h *Handler) removeMembership(w http.ResponseWriter, r *http.Request) {
	groupID := chi.URLParam(r, "id")
	membershipID := chi.URLParam(r, "membershipID")
	sub := shared.SubjectFromContext(r.Context())
	if !sub.Authenticated {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	m, err := h.service.GetMembership(r.Context(), membershipID)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	if m.GroupID != groupID {
		httpx.RespondError(w, httpx.ErrNotFound)
		return
	}
	if m.UserID != sub.UserID && !h.canManageMembers(sub, groupID) {
		httpx.RespondError(w, httpx.ErrForbidden)
		return
	}
	if err := h.service.RemoveMembership(r.Context(), sub.UserID, membershipID); err != nil {
		h.respondServiceError(w, err)
		return
	}
	httpx.NoContent(w)
}

func (h *Handler) listRelationships(w http.ResponseWriter, r *http.Request) {
	groupID := chi.URLParam(r, "id")
	sub := shared.SubjectFromContext(r.Context())
	if !sub.Authenticated {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	list, err := h.service.ListRelationships(r.Context(), groupID)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	views := make([]relationshipView, 0, len(list))
	for _, rel := range list {
		views = append(views, relationshipToView(rel))
	}
	httpx.JSON(w, http.StatusOK, httpx.ListEnvelope{Items: views})
}

// requestRelationship files a request to make {id} the parent of the supplied
// child group. Either side may file; only the parent side resolves.
func (h *Handler) requestRelationship(w http.ResponseWriter, r *http.Request) {
	parentID := chi.URLParam(r, "id")
	sub := shared.SubjectFromContext(r.Context())
	if !sub.Authenticated {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	var req relationshipRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	rel, err := h.service.RequestRelationship(r.Context(), sub.UserID, parentID, req.ChildGroupID)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, relationshipToView(*rel))
}

func (h *Handler) approveRelationship(w http.ResponseWriter, r *http.Request) {
	h.resolveRelationship(w, r, true)
}

func (h *Handler) declineRelationship(w http.ResponseWriter, r *http.Request) {
	h.resolveRelationship(w, r, false)
}

func (h *Handler) resolveRelationship(w http.ResponseWriter, r *http.Request, approve bool) {
	relationshipID := chi.URLParam(r, "relationshipID")
	sub := shared.SubjectFromContext(r.Context())
	rel, err := h.service.GetRelationship(r.Context(), relationshipID)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	// Resolution always requires the grant on the PARENT group, no matter
	// which side filed the request.
	if !h.guard.Resolver().CanManageGroupRelationship(sub, rel.ParentGroupID) {
		httpx.RespondError(w, httpx.ErrForbidden)
		return
	}
	updated, err := h.service.ResolveRelationship(r.Context(), sub.UserID, relationshipID, approve)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, relationshipToView(*updated))
}

func (h *Handler) authorize(w http.ResponseWriter, r *http.Request, action authz.Action) (*Group, bool) {
	group, err := h.service.GetGroup(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.respondServiceError(w, err)
		return nil, false
	}
	sub := shared.SubjectFromContext(r.Context())
	if !h.guard.Can(sub, h.object(group), action) {
		httpx.RespondError(w, httpx.ErrForbidden)
		return nil, false
	}
	return group, true
}

func (h *Handler) canManageMembers(sub authz.Subject, groupID string) bool {
	return authz.HasGroupPermission(sub.Memberships, groupID, authz.ResourceMemberships, authz.ActionManageMembers)
}

func (h *Handler) respondServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, shared.ErrNotFound):
		httpx.RespondError(w, httpx.ErrNotFound)
	case errors.Is(err, ErrMembershipExists), errors.Is(err, ErrRelationshipExists):
		httpx.Problem(w, http.StatusConflict, "Duplicate", err.Error())
	case errors.Is(err, ErrBadTransition), errors.Is(err, ErrRequestNotPending):
		httpx.Problem(w, http.StatusConflict, "Conflict", err.Error())
	case errors.Is(err, ErrNameRequired), errors.Is(err, ErrBadVisibility), errors.Is(err, ErrSelfRelationship):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.Is(err, ErrNotYourInvite):
		httpx.RespondError(w, httpx.ErrForbidden)
	default:
		h.logger.Error("groups request failed", slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}
