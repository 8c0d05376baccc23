package audit

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/civitas-platform/civitas/internal/authz"
	"github.com/civitas-platform/civitas/internal/platform/httpx"
	"github.com/civitas-platform/civitas/internal/shared"
)

// Handler serves the audit timeline. Access requires an auditLogs read grant
// in at least one of the caller's groups.
type Handler struct {
	logger  *slog.Logger
	service *Service
	guard   *shared.Guard
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, guard *shared.Guard) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, guard: guard}
}

// MountRoutes registers audit routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.timeline)
	r.Get("/export.csv", h.exportCSV)
}

type timelineRowView struct {
	At       time.Time      `json:"at"`
	Actor    string         `json:"actor,omitempty"`
	Action   string         `json:"action"`
	Entity   string         `json:"entity"`
	EntityID string         `json:"entity_id"`
	Meta     map[string]any `json:"meta,omitempty"`
}

func (h *Handler) authorize(w http.ResponseWriter, r *http.Request) (authz.Subject, bool) {
	sub := shared.SubjectFromContext(r.Context())
	if !sub.Authenticated {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return sub, false
	}
	for _, m := range sub.Memberships {
		if m.Group == nil {
			continue
		}
		obj := authz.Object{Resource: authz.ResourceAuditLogs, GroupID: m.Group.ID}
		if h.guard.Resolver().Can(sub, obj, authz.ActionRead) {
			return sub, true
		}
	}
	httpx.RespondError(w, httpx.ErrForbidden)
	return sub, false
}

func (h *Handler) parseFilters(r *http.Request) TimelineFilters {
	q := r.URL.Query()
	filters := TimelineFilters{
		Actor:  q.Get("actor"),
		Entity: q.Get("entity"),
		Action: q.Get("action"),
	}
	if v := q.Get("from"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			filters.From = t
		}
	}
	if v := q.Get("to"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			filters.To = t
		}
	}
	if v := q.Get("page"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			filters.Page = n
		}
	}
	if v := q.Get("page_size"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			filters.PageSize = n
		}
	}
	return filters
}

func (h *Handler) timeline(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.authorize(w, r); !ok {
		return
	}
	result, err := h.service.Timeline(r.Context(), h.parseFilters(r))
	if err != nil {
		h.logger.Error("audit timeline", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	views := make([]timelineRowView, 0, len(result.Rows))
	for _, row := range result.Rows {
		views = append(views, timelineRowView(row))
	}
	httpx.JSON(w, http.StatusOK, httpx.ListEnvelope{Items: views, Page: result.Paging.Page})
}

func (h *Handler) exportCSV(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.authorize(w, r); !ok {
		return
	}
	rows, err := h.service.Export(r.Context(), h.parseFilters(r))
	if err != nil {
		h.logger.Error("audit export", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	data, err := WriteCSV(rows)
	if err != nil {
		h.logger.Error("audit export encode", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="audit-timeline.csv"`)
	_, _ = w.Write(data)
}
