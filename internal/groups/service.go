package groups

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/civitas-platform/civitas/internal/authz"
	"github.com/civitas-platform/civitas/internal/shared"
)

// Lifecycle errors surfaced to handlers.
var (
	ErrNameRequired      = errors.New("groups: name required")
	ErrBadVisibility     = errors.New("groups: unknown visibility")
	ErrBadTransition     = errors.New("groups: membership state does not allow this action")
	ErrNotYourInvite     = errors.New("groups: invitation belongs to another user")
	ErrSelfRelationship  = errors.New("groups: a group cannot be its own parent")
	ErrRequestNotPending = errors.New("groups: request already resolved")
)

// RepositoryPort defines data access methods for groups.
type RepositoryPort interface {
	CreateGroup(ctx context.Context, input CreateGroupInput) (*Group, error)
	GetGroup(ctx context.Context, id string) (*Group, error)
	ListGroups(ctx context.Context, limit, offset int) ([]Group, int, error)
	UpdateGroup(ctx context.Context, id string, input UpdateGroupInput) (*Group, error)
	DeleteGroup(ctx context.Context, id string) error

	CreateMembership(ctx context.Context, groupID, userID string, status authz.MembershipStatus) (*Membership, error)
	GetMembership(ctx context.Context, id string) (*Membership, error)
	ListMemberships(ctx context.Context, groupID string) ([]Membership, error)
	UpdateMembershipStatus(ctx context.Context, id string, status authz.MembershipStatus) (*Membership, error)
	DeleteMembership(ctx context.Context, id string) error

	CreateRelationship(ctx context.Context, parentID, childID, requestedBy string) (*Relationship, error)
	GetRelationship(ctx context.Context, id string) (*Relationship, error)
	ListRelationships(ctx context.Context, groupID string) ([]Relationship, error)
	UpdateRelationshipStatus(ctx context.Context, id string, status RelationshipStatus) (*Relationship, error)
}

// Service handles group business logic.
type Service struct {
	repo      RepositoryPort
	audit     *shared.AuditLogger
	approvals *shared.ApprovalRecorder
	logger    *slog.Logger
}

// NewService builds Service instance.
func NewService(repo RepositoryPort, audit *shared.AuditLogger, approvals *shared.ApprovalRecorder, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, audit: audit, approvals: approvals, logger: logger}
}

// CreateGroup validates and stores a group. The creator becomes owner and an
// active member in one step.
func (s *Service) CreateGroup(ctx context.Context, input CreateGroupInput) (*Group, error) {
	input.Name = strings.TrimSpace(input.Name)
	if input.Name == "" {
		return nil, ErrNameRequired
	}
	if !validVisibility(input.Visibility) {
		return nil, ErrBadVisibility
	}
	group, err := s.repo.CreateGroup(ctx, input)
	if err != nil {
		return nil, err
	}
	if _, err := s.repo.CreateMembership(ctx, group.ID, input.OwnerID, authz.MembershipActive); err != nil && !errors.Is(err, ErrMembershipExists) {
		return nil, err
	}
	s.recordAudit(ctx, input.OwnerID, "group.create", group.ID, nil)
	return group, nil
}

// GetGroup fetches one group.
func (s *Service) GetGroup(ctx context.Context, id string) (*Group, error) {
	return s.repo.GetGroup(ctx, id)
}

// ListGroups returns a page of groups.
func (s *Service) ListGroups(ctx context.Context, limit, offset int) ([]Group, int, error) {
	return s.repo.ListGroups(ctx, limit, offset)
}

// UpdateGroup applies editable fields.
func (s *Service) UpdateGroup(ctx context.Context, actorID, id string, input UpdateGroupInput) (*Group, error) {
	input.Name = strings.TrimSpace(input.Name)
	if input.Name == "" {
		return nil, ErrNameRequired
	}
	if !validVisibility(input.Visibility) {
		return nil, ErrBadVisibility
	}
	group, err := s.repo.UpdateGroup(ctx, id, input)
	if err != nil {
		return nil, err
	}
	s.recordAudit(ctx, actorID, "group.update", id, nil)
	return group, nil
}

// DeleteGroup removes a group.
func (s *Service) DeleteGroup(ctx context.Context, actorID, id string) error {
	if err := s.repo.DeleteGroup(ctx, id); err != nil {
		return err
	}
	s.recordAudit(ctx, actorID, "group.delete", id, nil)
	return nil
}

// Invite creates an invited membership for the target user.
func (s *Service) Invite(ctx context.Context, actorID, groupID, userID string) (*Membership, error) {
	m, err := s.repo.CreateMembership(ctx, groupID, userID, authz.MembershipInvited)
	if err != nil {
		return nil, err
	}
	s.recordAudit(ctx, actorID, "membership.invite", m.ID, map[string]any{"group_id": groupID, "user_id": userID})
	return m, nil
}

// RequestJoin creates a requested membership for the acting user.
func (s *Service) RequestJoin(ctx context.Context, groupID, userID string) (*Membership, error) {
	m, err := s.repo.CreateMembership(ctx, groupID, userID, authz.MembershipRequested)
	if err != nil {
		return nil, err
	}
	s.recordApproval(ctx, "membership", m.ID, userID, shared.ApprovalSubmit, "")
	return m, nil
}

// AcceptInvite lets the invited user activate their own membership.
func (s *Service) AcceptInvite(ctx context.Context, actorID, membershipID string) (*Membership, error) {
	m, err := s.repo.GetMembership(ctx, membershipID)
	if err != nil {
		return nil, err
	}
	if m.UserID != actorID {
		return nil, ErrNotYourInvite
	}
	if m.Status != authz.MembershipInvited {
		return nil, ErrBadTransition
	}
	updated, err := s.repo.UpdateMembershipStatus(ctx, membershipID, authz.MembershipActive)
	if err != nil {
		return nil, err
	}
	s.recordApproval(ctx, "membership", membershipID, actorID, shared.ApprovalApprove, "invite accepted")
	return updated, nil
}

// ApproveRequest lets a roster admin activate a requested membership.
func (s *Service) ApproveRequest(ctx context.Context, actorID, membershipID string) (*Membership, error) {
	m, err := s.repo.GetMembership(ctx, membershipID)
	if err != nil {
		return nil, err
	}
	if m.Status != authz.MembershipRequested {
		return nil, ErrBadTransition
	}
	updated, err := s.repo.UpdateMembershipStatus(ctx, membershipID, authz.MembershipActive)
	if err != nil {
		return nil, err
	}
	s.recordApproval(ctx, "membership", membershipID, actorID, shared.ApprovalApprove, "")
	return updated, nil
}

// RemoveMembership declines, kicks or leaves depending on who calls it.
func (s *Service) RemoveMembership(ctx context.Context, actorID, membershipID string) error {
	if err := s.repo.DeleteMembership(ctx, membershipID); err != nil {
		return err
	}
	s.recordApproval(ctx, "membership", membershipID, actorID, shared.ApprovalReject, "membership removed")
	return nil
}

// GetMembership fetches one membership.
func (s *Service) GetMembership(ctx context.Context, id string) (*Membership, error) {
	return s.repo.GetMembership(ctx, id)
}

// ListMemberships lists a group's membership rows.
func (s *Service) ListMemberships(ctx context.Context, groupID string) ([]Membership, error) {
	return s.repo.ListMemberships(ctx, groupID)
}

// RequestRelationship files a pending parent/child link request.
func (s *Service) RequestRelationship(ctx context.Context, actorID, parentID, childID string) (*Relationship, error) {
	if parentID == childID {
		return nil, ErrSelfRelationship
	}
	if _, err := s.repo.GetGroup(ctx, parentID); err != nil {
		return nil, err
	}
	if _, err := s.repo.GetGroup(ctx, childID); err != nil {
		return nil, err
	}
	rel, err := s.repo.CreateRelationship(ctx, parentID, childID, actorID)
	if err != nil {
		return nil, err
	}
	s.recordApproval(ctx, "group_relationship", rel.ID, actorID, shared.ApprovalSubmit, "")
	return rel, nil
}

// GetRelationship fetches one relationship.
func (s *Service) GetRelationship(ctx context.Context, id string) (*Relationship, error) {
	return s.repo.GetRelationship(ctx, id)
}

// ListRelationships lists relationships touching a group.
func (s *Service) ListRelationships(ctx context.Context, groupID string) ([]Relationship, error) {
	return s.repo.ListRelationships(ctx, groupID)
}

// ResolveRelationship approves or declines a pending request.
func (s *Service) ResolveRelationship(ctx context.Context, actorID, id string, approve bool) (*Relationship, error) {
	rel, err := s.repo.GetRelationship(ctx, id)
	if err != nil {
		return nil, err
	}
	if rel.Status != RelationshipPending {
		return nil, ErrRequestNotPending
	}
	status := RelationshipDeclined
	action := shared.ApprovalReject
	if approve {
		status = RelationshipApproved
		action = shared.ApprovalApprove
	}
	updated, err := s.repo.UpdateRelationshipStatus(ctx, id, status)
	if err != nil {
		return nil, err
	}
	s.recordApproval(ctx, "group_relationship", id, actorID, action, "")
	return updated, nil
}

func (s *Service) recordAudit(ctx context.Context, actorID, action, entityID string, meta map[string]any) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, shared.AuditLog{ActorID: actorID, Action: action, Entity: "groups", EntityID: entityID, Meta: meta}); err != nil {
		s.logger.Warn("audit record", slog.Any("error", err))
	}
}

func (s *Service) recordApproval(ctx context.Context, module, refID, actorID string, action shared.ApprovalAction, note string) {
	if s.approvals == nil {
		return
	}
	if err := s.approvals.Record(ctx, shared.ApprovalLog{Module: module, RefID: refID, ActorID: actorID, Action: action, Note: note}); err != nil {
		s.logger.Warn("approval record", slog.Any("error", err))
	}
}

func validVisibility(v authz.Visibility) bool {
	switch v {
	case "", authz.VisibilityPublic, authz.VisibilityAuthenticated, authz.VisibilityPrivate:
		return true
	}
	return false
}
