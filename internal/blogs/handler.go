package blogs

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

// Handler manages blog endpoints.
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

// MountRoutes registers blog routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.listBlogs)
	r.Post("/", h.createBlog)
	r.Get("/{id}", h.getBlog)
	r.Patch("/{id}", h.updateBlog)
	r.Delete("/{id}", h.deleteBlog)

	r.Get("/{id}/posts", h.listPosts)
	r.Post("/{id}/posts", h.createPost)
	r.Get("/{id}/posts/{postID}", h.getPost)
	r.Patch("/{id}/posts/{postID}", h.updatePost)
	r.Post("/{id}/posts/{postID}/publish", h.publishPost)
	r.Delete("/{id}/posts/{postID}", h.deletePost)

	r.Get("/{id}/collaborators", h.listCollaborators)
	r.Post("/{id}/collaborators", h.addCollaborator)
	r.Delete("/{id}/collaborators/{collaboratorID}", h.removeCollaborator)
}

type blogView struct {
	ID          string `json:"id"`
	GroupID     string `json:"group_id,omitempty"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Visibility  string `json:"visibility"`
	OwnerID     string `json:"owner_id"`
}

type postView struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Body        string     `json:"body"`
	AuthorID    string     `json:"author_id"`
	PublishedAt *time.Time `json:"published_at,omitempty"`
}

type collaboratorView struct {
	ID       string `json:"id"`
	UserID   string `json:"user_id"`
	RoleName string `json:"role_name"`
}

type blogRequest struct {
	GroupID     string `json:"group_id"`
	Title       string `json:"title" validate:"required,max=300"`
	Description string `json:"description" validate:"max=5000"`
	Visibility  string `json:"visibility" validate:"omitempty,oneof=public authenticated private"`
}

type postRequest struct {
	Title string `json:"title" validate:"required,max=300"`
	Body  string `json:"body" validate:"required"`
}

type collaboratorRequest struct {
	UserID   string `json:"user_id" validate:"required"`
	RoleName string `json:"role_name" validate:"required,max=200"`
}

func blogToView(b Blog) blogView {
	visibility := string(b.Visibility)
	if visibility == "" {
		visibility = string(authz.VisibilityPublic)
	}
	return blogView{ID: b.ID, GroupID: b.GroupID, Title: b.Title, Description: b.Description, Visibility: visibility, OwnerID: b.OwnerID}
}

func postToView(p Post) postView {
	view := postView{ID: p.ID, Title: p.Title, Body: p.Body, AuthorID: p.AuthorID}
	if !p.PublishedAt.IsZero() {
		published := p.PublishedAt
		view.PublishedAt = &published
	}
	return view
}

// object builds the evaluation object with the blog's collaborator graph
// attached.
func (h *Handler) object(r *http.Request, b *Blog) authz.Object {
	obj := authz.Object{
		Resource:   authz.ResourceBlogs,
		ID:         b.ID,
		OwnerID:    b.OwnerID,
		Visibility: b.Visibility,
		GroupID:    b.GroupID,
	}
	graph, err := h.grants.BlogGrants(r.Context(), b.ID)
	if err != nil {
		h.logger.Warn("blog grant load", slog.Any("error", err))
		return obj
	}
	obj.Blog = graph
	return obj
}

func (h *Handler) listBlogs(w http.ResponseWriter, r *http.Request) {
	sub := shared.SubjectFromContext(r.Context())
	page, perPage := shared.PageFromRequest(r)
	list, total, err := h.service.ListBlogs(r.Context(), perPage, (page-1)*perPage)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	views := make([]blogView, 0, len(list))
	for i := range list {
		if h.guard.CanView(sub, h.object(r, &list[i])) {
			views = append(views, blogToView(list[i]))
		}
	}
	p := shared.NewPagination(page, perPage, total)
	httpx.JSON(w, http.StatusOK, httpx.ListEnvelope{Items: views, Page: p.Page, Total: p.Total, Pages: p.TotalPages})
}

func (h *Handler) createBlog(w http.ResponseWriter, r *http.Request) {
	sub := shared.SubjectFromContext(r.Context())
	if !sub.Authenticated {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	var req blogRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	// A group blog needs group standing; a personal blog does not.
	if req.GroupID != "" && !authz.IsGroupMember(sub.Memberships, req.GroupID) &&
		!authz.HasGroupPermission(sub.Memberships, req.GroupID, authz.ResourceBlogs, authz.ActionCreate) {
		httpx.RespondError(w, httpx.ErrForbidden)
		return
	}
	blog, err := h.service.CreateBlog(r.Context(), CreateBlogInput{
		GroupID:     req.GroupID,
		Title:       req.Title,
		Description: req.Description,
		Visibility:  authz.Visibility(req.Visibility),
		OwnerID:     sub.UserID,
	})
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, blogToView(*blog))
}

func (h *Handler) getBlog(w http.ResponseWriter, r *http.Request) {
	blog, ok := h.viewable(w, r)
	if !ok {
		return
	}
	httpx.JSON(w, http.StatusOK, blogToView(*blog))
}

func (h *Handler) updateBlog(w http.ResponseWriter, r *http.Request) {
	blog, ok := h.authorize(w, r, authz.ActionUpdate)
	if !ok {
		return
	}
	var req blogRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	sub := shared.SubjectFromContext(r.Context())
	updated, err := h.service.UpdateBlog(r.Context(), sub.UserID, blog.ID, UpdateBlogInput{
		Title:       req.Title,
		Description: req.Description,
		Visibility:  authz.Visibility(req.Visibility),
	})
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, blogToView(*updated))
}

func (h *Handler) deleteBlog(w http.ResponseWriter, r *http.Request) {
	blog, ok := h.authorize(w, r, authz.ActionDelete)
	if !ok {
		return
	}
	sub := shared.SubjectFromContext(r.Context())
	if err := h.service.DeleteBlog(r.Context(), sub.UserID, blog.ID); err != nil {
		h.respondServiceError(w, err)
		return
	}
	httpx.NoContent(w)
}

func (h *Handler) listPosts(w http.ResponseWriter, r *http.Request) {
	blog, ok := h.viewable(w, r)
	if !ok {
		return
	}
	sub := shared.SubjectFromContext(r.Context())
	// Drafts are only visible to users who may edit the blog.
	publishedOnly := !h.guard.Resolver().Can(sub, h.object(r, blog), authz.ActionEdit)
	list, err := h.service.ListPosts(r.Context(), blog.ID, publishedOnly)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	views := make([]postView, 0, len(list))
	for _, p := range list {
		views = append(views, postToView(p))
	}
	httpx.JSON(w, http.StatusOK, httpx.ListEnvelope{Items: views})
}

func (h *Handler) createPost(w http.ResponseWriter, r *http.Request) {
	blog, ok := h.authorize(w, r, authz.ActionEdit)
	if !ok {
		return
	}
	var req postRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	sub := shared.SubjectFromContext(r.Context())
	post, err := h.service.CreatePost(r.Context(), sub.UserID, blog.ID, PostInput{Title: req.Title, Body: req.Body})
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, postToView(*post))
}

func (h *Handler) getPost(w http.ResponseWriter, r *http.Request) {
	blog, post, ok := h.post(w, r)
	if !ok {
		return
	}
	sub := shared.SubjectFromContext(r.Context())
	if post.PublishedAt.IsZero() && !h.guard.Can(sub, h.object(r, blog), authz.ActionEdit) {
		httpx.RespondError(w, httpx.ErrNotFound)
		return
	}
	httpx.JSON(w, http.StatusOK, postToView(*post))
}

func (h *Handler) updatePost(w http.ResponseWriter, r *http.Request) {
	blog, post, ok := h.post(w, r)
	if !ok {
		return
	}
	sub := shared.SubjectFromContext(r.Context())
	if !h.guard.Can(sub, h.object(r, blog), authz.ActionEdit) {
		httpx.RespondError(w, httpx.ErrForbidden)
		return
	}
	var req postRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	updated, err := h.service.UpdatePost(r.Context(), sub.UserID, post.ID, PostInput{Title: req.Title, Body: req.Body})
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, postToView(*updated))
}

func (h *Handler) publishPost(w http.ResponseWriter, r *http.Request) {
	blog, post, ok := h.post(w, r)
	if !ok {
		return
	}
	sub := shared.SubjectFromContext(r.Context())
	if !h.guard.Can(sub, h.object(r, blog), authz.ActionManage) {
		httpx.RespondError(w, httpx.ErrForbidden)
		return
	}
	updated, err := h.service.PublishPost(r.Context(), sub.UserID, post.ID)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, postToView(*updated))
}

func (h *Handler) deletePost(w http.ResponseWriter, r *http.Request) {
	blog, post, ok := h.post(w, r)
	if !ok {
		return
	}
	sub := shared.SubjectFromContext(r.Context())
	// Authors may delete their own drafts; otherwise manage is required.
	ownDraft := post.AuthorID == sub.UserID && post.PublishedAt.IsZero()
	if !ownDraft && !h.guard.Can(sub, h.object(r, blog), authz.ActionManage) {
		httpx.RespondError(w, httpx.ErrForbidden)
		return
	}
	if err := h.service.DeletePost(r.Context(), sub.UserID, post.ID); err != nil {
		h.respondServiceError(w, err)
		return
	}
	httpx.NoContent(w)
}

func (h *Handler) listCollaborators(w http.ResponseWriter, r *http.Request) {
	blog, ok := h.viewable(w, r)
	if !ok {
		return
	}
	list, err := h.service.ListCollaborators(r.Context(), blog.ID)
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
	blog, ok := h.authorize(w, r, authz.ActionManage)
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
	c, err := h.service.AddCollaborator(r.Context(), sub.UserID, blog.ID, req.UserID, req.RoleName)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, collaboratorView{ID: c.ID, UserID: c.UserID, RoleName: c.RoleName})
}

func (h *Handler) removeCollaborator(w http.ResponseWriter, r *http.Request) {
	blog, ok := h.authorize(w, r, authz.ActionManage)
	if !ok {
		return
	}
	sub := shared.SubjectFromContext(r.Context())
	if err := h.service.RemoveCollaborator(r.Context(), sub.UserID, blog.ID, chi.URLParam(r, "collaboratorID")); err != nil {
		h.respondServiceError(w, err)
		return
	}
	httpx.NoContent(w)
}

func (h *Handler) viewable(w http.ResponseWriter, r *http.Request) (*Blog, bool) {
	blog, err := h.service.GetBlog(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.respondServiceError(w, err)
		return nil, false
	}
	sub := shared.SubjectFromContext(r.Context())
	if !h.guard.CanView(sub, h.object(r, blog)) {
		httpx.RespondError(w, httpx.ErrNotFound)
		return nil, false
	}
	return blog, true
}

func (h *Handler) authorize(w http.ResponseWriter, r *http.Request, action authz.Action) (*Blog, bool) {
	blog, err := h.service.GetBlog(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.respondServiceError(w, err)
		return nil, false
	}
	sub := shared.SubjectFromContext(r.Context())
	if !h.guard.Can(sub, h.object(r, blog), action) {
		httpx.RespondError(w, httpx.ErrForbidden)
		return nil, false
	}
	return blog, true
}

func (h *Handler) post(w http.ResponseWriter, r *http.Request) (*Blog, *Post, bool) {
	blog, ok := h.viewable(w, r)
	if !ok {
		return nil, nil, false
	}
	post, err := h.service.GetPost(r.Context(), chi.URLParam(r, "postID"))
	if err != nil {
		h.respondServiceError(w, err)
		return nil, nil, false
	}
	if post.BlogID != blog.ID {
		httpx.RespondError(w, httpx.ErrNotFound)
		return nil, nil, false
	}
	return blog, post, true
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
		h.logger.Error("blogs request failed", slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}
