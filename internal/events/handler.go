package events

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

// Handler manages event endpoints.
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

// MountRoutes registers event routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.listEvents)
	r.Post("/", h.createEvent)
	r.Get("/{id}", h.getEvent)
	r.Patch("/{id}", h.updateEvent)
	r.Delete("/{id}", h.deleteEvent)

	r.Get("/{id}/participations", h.roster)
	r.Post("/{id}/participations", h.addParticipant)
	r.Patch("/{id}/participations/{participationID}", h.setParticipantStatus)
	r.Delete("/{id}/participations/{participationID}", h.removeParticipant)

	r.Get("/{id}/agenda", h.listAgenda)
	r.Post("/{id}/agenda", h.addAgendaItem)
	r.Patch("/{id}/agenda/{itemID}", h.updateAgendaItem)
	r.Delete("/{id}/agenda/{itemID}", h.removeAgendaItem)

	r.Get("/{id}/speakers", h.listSpeakers)
	r.Post("/{id}/speakers", h.addSpeaker)
	r.Delete("/{id}/speakers/{speakerID}", h.removeSpeaker)

	r.Get("/{id}/elections", h.listElections)
	r.Post("/{id}/elections", h.createElection)
	r.Get("/{id}/elections/{electionID}", h.getElection)
	r.Post("/{id}/elections/{electionID}/open", h.openElection)
	r.Post("/{id}/elections/{electionID}/close", h.closeElection)
	r.Post("/{id}/elections/{electionID}/votes", h.castVote)
	r.Get("/{id}/elections/{electionID}/tally", h.tally)
}

type eventView struct {
	ID          string    `json:"id"`
	GroupID     string    `json:"group_id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Location    string    `json:"location,omitempty"`
	Visibility  string    `json:"visibility"`
	OwnerID     string    `json:"owner_id"`
	StartsAt    time.Time `json:"starts_at"`
	EndsAt      time.Time `json:"ends_at"`
}

type participationView struct {
	ID      string `json:"id"`
	EventID string `json:"event_id"`
	UserID  string `json:"user_id"`
	Status  string `json:"status"`
	RoleID  string `json:"role_id,omitempty"`
}

type agendaItemView struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Position    int       `json:"position"`
	StartsAt    time.Time `json:"starts_at"`
	EndsAt      time.Time `json:"ends_at"`
}

type speakerView struct {
	ID           string `json:"id"`
	AgendaItemID string `json:"agenda_item_id,omitempty"`
	UserID       string `json:"user_id,omitempty"`
	Name         string `json:"name"`
	Bio          string `json:"bio,omitempty"`
}

type electionView struct {
	ID       string    `json:"id"`
	EventID  string    `json:"event_id"`
	Question string    `json:"question"`
	State    string    `json:"state"`
	OpensAt  time.Time `json:"opens_at"`
	ClosesAt time.Time `json:"closes_at"`
}

type optionView struct {
	ID       string `json:"id"`
	Label    string `json:"label"`
	Position int    `json:"position"`
}

type tallyView struct {
	OptionID string `json:"option_id"`
	Label    string `json:"label"`
	Count    int    `json:"count"`
}

type eventRequest struct {
	GroupID     string    `json:"group_id" validate:"required"`
	Name        string    `json:"name" validate:"required,max=200"`
	Description string    `json:"description" validate:"max=5000"`
	Location    string    `json:"location" validate:"max=500"`
	Visibility  string    `json:"visibility" validate:"omitempty,oneof=public authenticated private"`
	StartsAt    time.Time `json:"starts_at"`
	EndsAt      time.Time `json:"ends_at"`
}

type participantRequest struct {
	UserID string `json:"user_id" validate:"required"`
	Status string `json:"status" validate:"omitempty,oneof=admin participant"`
	RoleID string `json:"role_id"`
}

type participantStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=admin participant"`
}

type agendaItemRequest struct {
	Title       string    `json:"title" validate:"required,max=300"`
	Description string    `json:"description" validate:"max=5000"`
	Position    int       `json:"position" validate:"gte=0"`
	StartsAt    time.Time `json:"starts_at"`
	EndsAt      time.Time `json:"ends_at"`
}

type speakerRequest struct {
	AgendaItemID string `json:"agenda_item_id"`
	UserID       string `json:"user_id"`
	Name         string `json:"name" validate:"required,max=200"`
	Bio          string `json:"bio" validate:"max=5000"`
}

type electionRequest struct {
	Question string    `json:"question" validate:"required,max=500"`
	Options  []string  `json:"options" validate:"required,min=2,dive,required,max=300"`
	OpensAt  time.Time `json:"opens_at"`
	ClosesAt time.Time `json:"closes_at"`
}

type voteRequest struct {
	OptionID string `json:"option_id" validate:"required"`
}

func eventToView(e Event) eventView {
	visibility := string(e.Visibility)
	if visibility == "" {
		visibility = string(authz.VisibilityPublic)
	}
	return eventView{
		ID:          e.ID,
		GroupID:     e.GroupID,
		Name:        e.Name,
		Description: e.Description,
		Location:    e.Location,
		Visibility:  visibility,
		OwnerID:     e.OwnerID,
		StartsAt:    e.StartsAt,
		EndsAt:      e.EndsAt,
	}
}

func participationToView(p Participation) participationView {
	return participationView{ID: p.ID, EventID: p.EventID, UserID: p.UserID, Status: string(p.Status), RoleID: p.RoleID}
}

func electionToView(e Election) electionView {
	return electionView{ID: e.ID, EventID: e.EventID, Question: e.Question, State: string(e.State), OpensAt: e.OpensAt, ClosesAt: e.ClosesAt}
}

func (h *Handler) object(e *Event) authz.Object {
	return authz.Object{
		Resource:   authz.ResourceEvents,
		ID:         e.ID,
		OwnerID:    e.OwnerID,
		Visibility: e.Visibility,
		GroupID:    e.GroupID,
		EventID:    e.ID,
	}
}

func (h *Handler) listEvents(w http.ResponseWriter, r *http.Request) {
	sub := shared.SubjectFromContext(r.Context())
	page, perPage := shared.PageFromRequest(r)
	groupID := r.URL.Query().Get("group_id")
	list, total, err := h.service.ListEvents(r.Context(), groupID, perPage, (page-1)*perPage)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	views := make([]eventView, 0, len(list))
	for i := range list {
		if h.guard.CanView(sub, h.object(&list[i])) {
			views = append(views, eventToView(list[i]))
		}
	}
	p := shared.NewPagination(page, perPage, total)
	httpx.JSON(w, http.StatusOK, httpx.ListEnvelope{Items: views, Page: p.Page, Total: p.Total, Pages: p.TotalPages})
}

func (h *Handler) createEvent(w http.ResponseWriter, r *http.Request) {
	sub := shared.SubjectFromContext(r.Context())
	if !sub.Authenticated {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	var req eventRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	// Creating an event inside a group needs a create grant there unless the
	// actor simply belongs to the group.
	if !authz.IsGroupMember(sub.Memberships, req.GroupID) &&
		!authz.HasGroupPermission(sub.Memberships, req.GroupID, authz.ResourceEvents, authz.ActionCreate) {
		httpx.RespondError(w, httpx.ErrForbidden)
		return
	}
	event, err := h.service.CreateEvent(r.Context(), CreateEventInput{
		GroupID:     req.GroupID,
		Name:        req.Name,
		Description: req.Description,
		Location:    req.Location,
		Visibility:  authz.Visibility(req.Visibility),
		OwnerID:     sub.UserID,
		StartsAt:    req.StartsAt,
		EndsAt:      req.EndsAt,
	})
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, eventToView(*event))
}

func (h *Handler) getEvent(w http.ResponseWriter, r *http.Request) {
	event, ok := h.viewable(w, r)
	if !ok {
		return
	}
	httpx.JSON(w, http.StatusOK, eventToView(*event))
}

func (h *Handler) updateEvent(w http.ResponseWriter, r *http.Request) {
	event, ok := h.authorize(w, r, authz.ActionUpdate)
	if !ok {
		return
	}
	var req eventRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	req.GroupID = event.GroupID
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	sub := shared.SubjectFromContext(r.Context())
	updated, err := h.service.UpdateEvent(r.Context(), sub.UserID, event.ID, UpdateEventInput{
		Name:        req.Name,
		Description: req.Description,
		Location:    req.Location,
		Visibility:  authz.Visibility(req.Visibility),
		StartsAt:    req.StartsAt,
		EndsAt:      req.EndsAt,
	})
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, eventToView(*updated))
}

func (h *Handler) deleteEvent(w http.ResponseWriter, r *http.Request) {
	event, ok := h.authorize(w, r, authz.ActionDelete)
	if !ok {
		return
	}
	sub := shared.SubjectFromContext(r.Context())
	if err := h.service.DeleteEvent(r.Context(), sub.UserID, event.ID); err != nil {
		h.respondServiceError(w, err)
		return
	}
	httpx.NoContent(w)
}

func (h *Handler) roster(w http.ResponseWriter, r *http.Request) {
	event, ok := h.viewable(w, r)
	if !ok {
		return
	}
	list, err := h.service.Roster(r.Context(), event.ID)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	views := make([]participationView, 0, len(list))
	for _, p := range list {
		views = append(views, participationToView(p))
	}
	httpx.JSON(w, http.StatusOK, httpx.ListEnvelope{Items: views})
}

func (h *Handler) addParticipant(w http.ResponseWriter, r *http.Request) {
	event, ok := h.rosterAdmin(w, r)
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
	sub := shared.SubjectFromContext(r.Context())
	p, err := h.service.AddParticipant(r.Context(), sub.UserID, event.ID, req.UserID, authz.ParticipantStatus(req.Status), req.RoleID)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, participationToView(*p))
}

func (h *Handler) setParticipantStatus(w http.ResponseWriter, r *http.Request) {
	event, ok := h.rosterAdmin(w, r)
	if !ok {
		return
	}
	var req participantStatusRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	participationID := chi.URLParam(r, "participationID")
	existing, err := h.service.GetParticipation(r.Context(), participationID)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	if existing.EventID != event.ID {
		httpx.RespondError(w, httpx.ErrNotFound)
		return
	}
	sub := shared.SubjectFromContext(r.Context())
	p, err := h.service.SetParticipantStatus(r.Context(), sub.UserID, participationID, authz.ParticipantStatus(req.Status))
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, participationToView(*p))
}

func (h *Handler) removeParticipant(w http.ResponseWriter, r *http.Request) {
	event, err := h.service.GetEvent(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	participationID := chi.URLParam(r, "participationID")
	existing, err := h.service.GetParticipation(r.Context(), participationID)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	if existing.EventID != event.ID {
		httpx.RespondError(w, httpx.ErrNotFound)
		return
	}
	sub := shared.SubjectFromContext(r.Context())
	// Leaving is always allowed; removing others requires roster admin.
	if existing.UserID != sub.UserID && !h.isRosterAdmin(r, sub, event) {
		httpx.RespondError(w, httpx.ErrForbidden)
		return
	}
	if err := h.service.RemoveParticipant(r.Context(), sub.UserID, participationID); err != nil {
		h.respondServiceError(w, err)
		return
	}
	httpx.NoContent(w)
}

func (h *Handler) listAgenda(w http.ResponseWriter, r *http.Request) {
	event, ok := h.viewable(w, r)
	if !ok {
		return
	}
	list, err := h.service.ListAgenda(r.Context(), event.ID)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	views := make([]agendaItemView, 0, len(list))
	for _, item := range list {
		views = append(views, agendaItemView{ID: item.ID, Title: item.Title, Description: item.Description, Position: item.Position, StartsAt: item.StartsAt, EndsAt: item.EndsAt})
	}
	httpx.JSON(w, http.StatusOK, httpx.ListEnvelope{Items: views})
}

func (h *Handler) addAgendaItem(w http.ResponseWriter, r *http.Request) {
	event, ok := h.authorize(w, r, authz.ActionUpdate)
	if !ok {
		return
	}
	var req agendaItemRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	sub := shared.SubjectFromContext(r.Context())
	item, err := h.service.AddAgendaItem(r.Context(), sub.UserID, event.ID, AgendaItemInput{
		Title:       req.Title,
		Description: req.Description,
		Position:    req.Position,
		StartsAt:    req.StartsAt,
		EndsAt:      req.EndsAt,
	})
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, agendaItemView{ID: item.ID, Title: item.Title, Description: item.Description, Position: item.Position, StartsAt: item.StartsAt, EndsAt: item.EndsAt})
}

func (h *Handler) updateAgendaItem(w http.ResponseWriter, r *http.Request) {
	_, ok := h.authorize(w, r, authz.ActionUpdate)
	if !ok {
		return
	}
	var req agendaItemRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	sub := shared.SubjectFromContext(r.Context())
	item, err := h.service.UpdateAgendaItem(r.Context(), sub.UserID, chi.URLParam(r, "itemID"), AgendaItemInput{
		Title:       req.Title,
		Description: req.Description,
		Position:    req.Position,
		StartsAt:    req.StartsAt,
		EndsAt:      req.EndsAt,
	})
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, agendaItemView{ID: item.ID, Title: item.Title, Description: item.Description, Position: item.Position, StartsAt: item.StartsAt, EndsAt: item.EndsAt})
}

func (h *Handler) removeAgendaItem(w http.ResponseWriter, r *http.Request) {
	_, ok := h.authorize(w, r, authz.ActionUpdate)
	if !ok {
		return
	}
	sub := shared.SubjectFromContext(r.Context())
	if err := h.service.RemoveAgendaItem(r.Context(), sub.UserID, chi.URLParam(r, "itemID")); err != nil {
		h.respondServiceError(w, err)
		return
	}
	httpx.NoContent(w)
}

func (h *Handler) listSpeakers(w http.ResponseWriter, r *http.Request) {
	event, ok := h.viewable(w, r)
	if !ok {
		return
	}
	list, err := h.service.ListSpeakers(r.Context(), event.ID)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	views := make([]speakerView, 0, len(list))
	for _, s := range list {
		views = append(views, speakerView{ID: s.ID, AgendaItemID: s.AgendaItemID, UserID: s.UserID, Name: s.Name, Bio: s.Bio})
	}
	httpx.JSON(w, http.StatusOK, httpx.ListEnvelope{Items: views})
}

func (h *Handler) addSpeaker(w http.ResponseWriter, r *http.Request) {
	event, err := h.service.GetEvent(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	sub := shared.SubjectFromContext(r.Context())
	obj := h.object(event)
	obj.Resource = authz.ResourceSpeakers
	if !h.guard.Can(sub, obj, authz.ActionManageSpeakers) {
		httpx.RespondError(w, httpx.ErrForbidden)
		return
	}
	var req speakerRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	speaker, err := h.service.AddSpeaker(r.Context(), sub.UserID, event.ID, SpeakerInput{
		AgendaItemID: req.AgendaItemID,
		UserID:       req.UserID,
		Name:         req.Name,
		Bio:          req.Bio,
	})
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, speakerView{ID: speaker.ID, AgendaItemID: speaker.AgendaItemID, UserID: speaker.UserID, Name: speaker.Name, Bio: speaker.Bio})
}

func (h *Handler) removeSpeaker(w http.ResponseWriter, r *http.Request) {
	event, err := h.service.GetEvent(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	sub := shared.SubjectFromContext(r.Context())
	obj := h.object(event)
	obj.Resource = authz.ResourceSpeakers
	if !h.guard.Can(sub, obj, authz.ActionManageSpeakers) {
		httpx.RespondError(w, httpx.ErrForbidden)
		return
	}
	if err := h.service.RemoveSpeaker(r.Context(), sub.UserID, chi.URLParam(r, "speakerID")); err != nil {
		h.respondServiceError(w, err)
		return
	}
	httpx.NoContent(w)
}

func (h *Handler) listElections(w http.ResponseWriter, r *http.Request) {
	event, ok := h.viewable(w, r)
	if !ok {
		return
	}
	list, err := h.service.ListElections(r.Context(), event.ID)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	views := make([]electionView, 0, len(list))
	for _, e := range list {
		views = append(views, electionToView(e))
	}
	httpx.JSON(w, http.StatusOK, httpx.ListEnvelope{Items: views})
}

func (h *Handler) createElection(w http.ResponseWriter, r *http.Request) {
	event, ok := h.electionAdmin(w, r)
	if !ok {
		return
	}
	var req electionRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	sub := shared.SubjectFromContext(r.Context())
	election, err := h.service.CreateElection(r.Context(), sub.UserID, event.ID, event.GroupID, CreateElectionInput{
		Question: req.Question,
		Options:  req.Options,
		OpensAt:  req.OpensAt,
		ClosesAt: req.ClosesAt,
	})
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, electionToView(*election))
}

func (h *Handler) getElection(w http.ResponseWriter, r *http.Request) {
	_, election, ok := h.election(w, r)
	if !ok {
		return
	}
	options, err := h.service.ListElectionOptions(r.Context(), election.ID)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	optionViews := make([]optionView, 0, len(options))
	for _, o := range options {
		optionViews = append(optionViews, optionView{ID: o.ID, Label: o.Label, Position: o.Position})
	}
	httpx.JSON(w, http.StatusOK, struct {
		electionView
		Options []optionView `json:"options"`
	}{electionToView(*election), optionViews})
}

func (h *Handler) openElection(w http.ResponseWriter, r *http.Request) {
	h.transitionElection(w, r, func(ctx *http.Request, actorID, electionID string) (*Election, []TallyRow, error) {
		e, err := h.service.OpenElection(ctx.Context(), actorID, electionID)
		return e, nil, err
	})
}

func (h *Handler) closeElection(w http.ResponseWriter, r *http.Request) {
	h.transitionElection(w, r, func(ctx *http.Request, actorID, electionID string) (*Election, []TallyRow, error) {
		return h.service.CloseElection(ctx.Context(), actorID, electionID)
	})
}

func (h *Handler) transitionElection(w http.ResponseWriter, r *http.Request, fn func(*http.Request, string, string) (*Election, []TallyRow, error)) {
	event, ok := h.electionAdmin(w, r)
	if !ok {
		return
	}
	election, err := h.service.GetElection(r.Context(), chi.URLParam(r, "electionID"))
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	if election.EventID != event.ID {
		httpx.RespondError(w, httpx.ErrNotFound)
		return
	}
	sub := shared.SubjectFromContext(r.Context())
	updated, tally, err := fn(r, sub.UserID, election.ID)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	if tally != nil {
		views := make([]tallyView, 0, len(tally))
		for _, t := range tally {
			views = append(views, tallyView{OptionID: t.OptionID, Label: t.Label, Count: t.Count})
		}
		httpx.JSON(w, http.StatusOK, struct {
			electionView
			Tally []tallyView `json:"tally"`
		}{electionToView(*updated), views})
		return
	}
	httpx.JSON(w, http.StatusOK, electionToView(*updated))
}

func (h *Handler) castVote(w http.ResponseWriter, r *http.Request) {
	event, election, ok := h.election(w, r)
	if !ok {
		return
	}
	sub := shared.SubjectFromContext(r.Context())
	if !sub.Authenticated {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	if !h.guard.Resolver().CanCastElectionVote(sub, event.GroupID, election.State) {
		httpx.RespondError(w, httpx.ErrForbidden)
		return
	}
	var req voteRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	vote, err := h.service.CastVote(r.Context(), election, req.OptionID, sub.UserID)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, struct {
		ID       string `json:"id"`
		OptionID string `json:"option_id"`
	}{vote.ID, vote.OptionID})
}

// tally is only exposed once the election finished; admins may peek earlier.
func (h *Handler) tally(w http.ResponseWriter, r *http.Request) {
	event, election, ok := h.election(w, r)
	if !ok {
		return
	}
	sub := shared.SubjectFromContext(r.Context())
	if election.State != authz.ElectionFinished && !h.isElectionAdmin(r, sub, event) {
		httpx.RespondError(w, httpx.ErrForbidden)
		return
	}
	tally, err := h.service.Tally(r.Context(), election.ID)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	views := make([]tallyView, 0, len(tally))
	for _, t := range tally {
		views = append(views, tallyView{OptionID: t.OptionID, Label: t.Label, Count: t.Count})
	}
	httpx.JSON(w, http.StatusOK, httpx.ListEnvelope{Items: views})
}

func (h *Handler) viewable(w http.ResponseWriter, r *http.Request) (*Event, bool) {
	event, err := h.service.GetEvent(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.respondServiceError(w, err)
		return nil, false
	}
	sub := shared.SubjectFromContext(r.Context())
	if !h.guard.CanView(sub, h.object(event)) {
		httpx.RespondError(w, httpx.ErrNotFound)
		return nil, false
	}
	return event, true
}

func (h *Handler) authorize(w http.ResponseWriter, r *http.Request, action authz.Action) (*Event, bool) {
	event, err := h.service.GetEvent(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.respondServiceError(w, err)
		return nil, false
	}
	sub := shared.SubjectFromContext(r.Context())
	if !h.guard.Can(sub, h.object(event), action) {
		httpx.RespondError(w, httpx.ErrForbidden)
		return nil, false
	}
	return event, true
}

func (h *Handler) rosterAdmin(w http.ResponseWriter, r *http.Request) (*Event, bool) {
	event, err := h.service.GetEvent(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.respondServiceError(w, err)
		return nil, false
	}
	sub := shared.SubjectFromContext(r.Context())
	if !h.isRosterAdmin(r, sub, event) {
		httpx.RespondError(w, httpx.ErrForbidden)
		return nil, false
	}
	return event, true
}

func (h *Handler) isRosterAdmin(r *http.Request, sub authz.Subject, event *Event) bool {
	roster, err := h.service.RosterEntries(r.Context(), event.ID)
	if err != nil {
		h.logger.Error("roster load", slog.Any("error", err))
		return false
	}
	return h.guard.Resolver().CanManageEventParticipants(sub, event.ID, event.GroupID, roster)
}

func (h *Handler) electionAdmin(w http.ResponseWriter, r *http.Request) (*Event, bool) {
	event, err := h.service.GetEvent(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.respondServiceError(w, err)
		return nil, false
	}
	sub := shared.SubjectFromContext(r.Context())
	if !h.isElectionAdmin(r, sub, event) {
		httpx.RespondError(w, httpx.ErrForbidden)
		return nil, false
	}
	return event, true
}

func (h *Handler) isElectionAdmin(r *http.Request, sub authz.Subject, event *Event) bool {
	obj := h.object(event)
	obj.Resource = authz.ResourceElections
	return h.guard.Can(sub, obj, authz.ActionManageVotes)
}

func (h *Handler) election(w http.ResponseWriter, r *http.Request) (*Event, *Election, bool) {
	event, ok := h.viewable(w, r)
	if !ok {
		return nil, nil, false
	}
	election, err := h.service.GetElection(r.Context(), chi.URLParam(r, "electionID"))
	if err != nil {
		h.respondServiceError(w, err)
		return nil, nil, false
	}
	if election.EventID != event.ID {
		httpx.RespondError(w, httpx.ErrNotFound)
		return nil, nil, false
	}
	return event, election, true
}

func (h *Handler) respondServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, shared.ErrNotFound):
		httpx.RespondError(w, httpx.ErrNotFound)
	case errors.Is(err, ErrParticipationExists):
		httpx.Problem(w, http.StatusConflict, "Duplicate", err.Error())
	case errors.Is(err, ErrElectionNotDraft), errors.Is(err, ErrElectionNotOpen), errors.Is(err, ErrElectionBusy):
		httpx.Problem(w, http.StatusConflict, "Conflict", err.Error())
	case errors.Is(err, ErrNameRequired), errors.Is(err, ErrBadVisibility), errors.Is(err, ErrBadTimeRange),
		errors.Is(err, ErrQuestionRequired), errors.Is(err, ErrOptionsRequired), errors.Is(err, ErrUnknownOption):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	default:
		h.logger.Error("events request failed", slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}
