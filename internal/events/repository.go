package events

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/civitas-platform/civitas/internal/authz"
	"github.com/civitas-platform/civitas/internal/shared"
)

// ErrParticipationExists indicates the user is already on the roster.
var ErrParticipationExists = errors.New("events: participation already exists")

// ErrAlreadyVoted indicates the voter already cast a ballot in this election.
var ErrAlreadyVoted = errors.New("events: vote already cast")

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

var _ RepositoryPort = (*Repository)(nil)

const eventColumns = `id, group_id, name, description, COALESCE(location, ''), COALESCE(visibility, ''), owner_id, starts_at, ends_at, created_at, updated_at`

// CreateEvent inserts an event.
func (r *Repository) CreateEvent(ctx context.Context, input CreateEventInput) (*Event, error) {
	row := r.pool.QueryRow(ctx,
		`INSERT INTO events (group_id, name, description, location, visibility, owner_id, starts_at, ends_at, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW(), NOW()) RETURNING `+eventColumns,
		input.GroupID, input.Name, input.Description, input.Location, string(input.Visibility), input.OwnerID, input.StartsAt, input.EndsAt)
	return scanEvent(row)
}

// GetEvent fetches one event.
func (r *Repository) GetEvent(ctx context.Context, id string) (*Event, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+eventColumns+` FROM events WHERE id = $1`, id)
	event, err := scanEvent(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return event, nil
}

// ListEvents returns a page of events plus the total count. When groupID is
// set the page is restricted to that group.
func (r *Repository) ListEvents(ctx context.Context, groupID string, limit, offset int) ([]Event, int, error) {
	filter := pgtype.Text{String: groupID, Valid: groupID != ""}
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM events WHERE ($1::text IS NULL OR group_id = $1)`, filter).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.pool.Query(ctx,
		`SELECT `+eventColumns+` FROM events WHERE ($1::text IS NULL OR group_id = $1) ORDER BY starts_at, id LIMIT $2 OFFSET $3`,
		filter, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var list []Event
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, 0, err
		}
		list = append(list, *event)
	}
	return list, total, rows.Err()
}

// UpdateEvent applies editable fields.
func (r *Repository) UpdateEvent(ctx context.Context, id string, input UpdateEventInput) (*Event, error) {
	row := r.pool.QueryRow(ctx,
		`UPDATE events SET name = $2, description = $3, location = $4, visibility = $5, starts_at = $6, ends_at = $7, updated_at = NOW()
		 WHERE id = $1 RETURNING `+eventColumns,
		id, input.Name, input.Description, input.Location, string(input.Visibility), input.StartsAt, input.EndsAt)
	event, err := scanEvent(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return event, nil
}

// DeleteEvent removes an event; roster, agenda and elections cascade.
func (r *Repository) DeleteEvent(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM events WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

const participationColumns = `id, event_id, user_id, COALESCE(status, 'participant'), COALESCE(role_id::text, ''), created_at, updated_at`

// CreateParticipation puts a user on the roster. A unique (event_id, user_id)
// index keeps one entry per pair.
func (r *Repository) CreateParticipation(ctx context.Context, eventID, userID string, status authz.ParticipantStatus, roleID string) (*Participation, error) {
	role := pgtype.Text{String: roleID, Valid: roleID != ""}
	row := r.pool.QueryRow(ctx,
		`INSERT INTO participations (event_id, user_id, status, role_id, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, NOW(), NOW()) RETURNING `+participationColumns,
		eventID, userID, string(status), role)
	p, err := scanParticipation(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, ErrParticipationExists
		}
		return nil, err
	}
	return p, nil
}

// GetParticipation fetches one roster entry.
func (r *Repository) GetParticipation(ctx context.Context, id string) (*Participation, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+participationColumns+` FROM participations WHERE id = $1`, id)
	p, err := scanParticipation(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return p, nil
}

// ListParticipations lists an event's roster.
func (r *Repository) ListParticipations(ctx context.Context, eventID string) ([]Participation, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+participationColumns+` FROM participations WHERE event_id = $1 ORDER BY created_at, id`, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []Participation
	for rows.Next() {
		p, err := scanParticipation(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *p)
	}
	return list, rows.Err()
}

// UpdateParticipationStatus flips a roster entry between admin and regular.
func (r *Repository) UpdateParticipationStatus(ctx context.Context, id string, status authz.ParticipantStatus) (*Participation, error) {
	row := r.pool.QueryRow(ctx,
		`UPDATE participations SET status = $2, updated_at = NOW() WHERE id = $1 RETURNING `+participationColumns,
		id, string(status))
	p, err := scanParticipation(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return p, nil
}

// DeleteParticipation removes a roster entry.
func (r *Repository) DeleteParticipation(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM participations WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

const agendaColumns = `id, event_id, title, description, position, starts_at, ends_at, created_at, updated_at`

// CreateAgendaItem appends a programme slot.
func (r *Repository) CreateAgendaItem(ctx context.Context, eventID string, input AgendaItemInput) (*AgendaItem, error) {
	row := r.pool.QueryRow(ctx,
		`INSERT INTO agenda_items (event_id, title, description, position, starts_at, ends_at, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW()) RETURNING `+agendaColumns,
		eventID, input.Title, input.Description, input.Position, input.StartsAt, input.EndsAt)
	return scanAgendaItem(row)
}

// ListAgendaItems lists an event's programme in position order.
func (r *Repository) ListAgendaItems(ctx context.Context, eventID string) ([]AgendaItem, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+agendaColumns+` FROM agenda_items WHERE event_id = $1 ORDER BY position, id`, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []AgendaItem
	for rows.Next() {
		item, err := scanAgendaItem(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *item)
	}
	return list, rows.Err()
}

// UpdateAgendaItem applies editable fields.
func (r *Repository) UpdateAgendaItem(ctx context.Context, id string, input AgendaItemInput) (*AgendaItem, error) {
	row := r.pool.QueryRow(ctx,
		`UPDATE agenda_items SET title = $2, description = $3, position = $4, starts_at = $5, ends_at = $6, updated_at = NOW()
		 WHERE id = $1 RETURNING `+agendaColumns,
		id, input.Title, input.Description, input.Position, input.StartsAt, input.EndsAt)
	item, err := scanAgendaItem(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return item, nil
}

// DeleteAgendaItem removes a programme slot.
func (r *Repository) DeleteAgendaItem(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM agenda_items WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

const speakerColumns = `id, event_id, COALESCE(agenda_item_id::text, ''), COALESCE(user_id::text, ''), name, COALESCE(bio, ''), created_at`

// CreateSpeaker adds a speaker to an event or one of its agenda items.
func (r *Repository) CreateSpeaker(ctx context.Context, eventID string, input SpeakerInput) (*Speaker, error) {
	agendaItem := pgtype.Text{String: input.AgendaItemID, Valid: input.AgendaItemID != ""}
	user := pgtype.Text{String: input.UserID, Valid: input.UserID != ""}
	row := r.pool.QueryRow(ctx,
		`INSERT INTO speakers (event_id, agenda_item_id, user_id, name, bio, created_at)
		 VALUES ($1, $2, $3, $4, $5, NOW()) RETURNING `+speakerColumns,
		eventID, agendaItem, user, input.Name, input.Bio)
	return scanSpeaker(row)
}

// ListSpeakers lists an event's speakers.
func (r *Repository) ListSpeakers(ctx context.Context, eventID string) ([]Speaker, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+speakerColumns+` FROM speakers WHERE event_id = $1 ORDER BY created_at, id`, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []Speaker
	for rows.Next() {
		s, err := scanSpeaker(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *s)
	}
	return list, rows.Err()
}

// DeleteSpeaker removes a speaker.
func (r *Repository) DeleteSpeaker(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM speakers WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

const electionColumns = `id, event_id, group_id, question, state, opens_at, closes_at, created_at, updated_at`

// CreateElection inserts an election and its options in one transaction.
func (r *Repository) CreateElection(ctx context.Context, eventID, groupID string, input CreateElectionInput) (*Election, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx,
		`INSERT INTO elections (event_id, group_id, question, state, opens_at, closes_at, created_at, updated_at)
		 VALUES ($1, $2, $3, 'draft', $4, $5, NOW(), NOW()) RETURNING `+electionColumns,
		eventID, groupID, input.Question, input.OpensAt, input.ClosesAt)
	election, err := scanElection(row)
	if err != nil {
		return nil, err
	}
	for i, label := range input.Options {
		if _, err := tx.Exec(ctx,
			`INSERT INTO election_options (election_id, label, position) VALUES ($1, $2, $3)`,
			election.ID, label, i); err != nil {
			return nil, err
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return election, nil
}

// GetElection fetches one election.
func (r *Repository) GetElection(ctx context.Context, id string) (*Election, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+electionColumns+` FROM elections WHERE id = $1`, id)
	election, err := scanElection(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return election, nil
}

// ListElections lists an event's elections.
func (r *Repository) ListElections(ctx context.Context, eventID string) ([]Election, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+electionColumns+` FROM elections WHERE event_id = $1 ORDER BY created_at, id`, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []Election
	for rows.Next() {
		e, err := scanElection(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *e)
	}
	return list, rows.Err()
}

// UpdateElectionState moves an election through its workflow.
func (r *Repository) UpdateElectionState(ctx context.Context, id string, state authz.ElectionState) (*Election, error) {
	row := r.pool.QueryRow(ctx,
		`UPDATE elections SET state = $2, updated_at = NOW() WHERE id = $1 RETURNING `+electionColumns,
		id, string(state))
	election, err := scanElection(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return election, nil
}

// ListElectionOptions lists an election's options in position order.
func (r *Repository) ListElectionOptions(ctx context.Context, electionID string) ([]ElectionOption, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, election_id, label, position FROM election_options WHERE election_id = $1 ORDER BY position, id`,
		electionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []ElectionOption
	for rows.Next() {
		var o ElectionOption
		if err := rows.Scan(&o.ID, &o.ElectionID, &o.Label, &o.Position); err != nil {
			return nil, err
		}
		list = append(list, o)
	}
	return list, rows.Err()
}

// CreateVote records a ballot. A unique (election_id, voter_id) index makes
// repeated casts surface as ErrAlreadyVoted.
func (r *Repository) CreateVote(ctx context.Context, electionID, optionID, voterID string) (*Vote, error) {
	row := r.pool.QueryRow(ctx,
		`INSERT INTO election_votes (election_id, option_id, voter_id, created_at)
		 VALUES ($1, $2, $3, NOW()) RETURNING id, election_id, option_id, voter_id, created_at`,
		electionID, optionID, voterID)
	var v Vote
	if err := row.Scan(&v.ID, &v.ElectionID, &v.OptionID, &v.VoterID, &v.CreatedAt); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, ErrAlreadyVoted
		}
		return nil, err
	}
	return &v, nil
}

// GetVote returns the voter's ballot in an election, if any.
func (r *Repository) GetVote(ctx context.Context, electionID, voterID string) (*Vote, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT id, election_id, option_id, voter_id, created_at FROM election_votes WHERE election_id = $1 AND voter_id = $2`,
		electionID, voterID)
	var v Vote
	if err := row.Scan(&v.ID, &v.ElectionID, &v.OptionID, &v.VoterID, &v.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &v, nil
}

// Tally counts votes per option.
func (r *Repository) Tally(ctx context.Context, electionID string) ([]TallyRow, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT o.id, o.label, COUNT(v.id)
		 FROM election_options o
		 LEFT JOIN election_votes v ON v.option_id = o.id
		 WHERE o.election_id = $1
		 GROUP BY o.id, o.label, o.position
		 ORDER BY o.position, o.id`,
		electionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []TallyRow
	for rows.Next() {
		var t TallyRow
		if err := rows.Scan(&t.OptionID, &t.Label, &t.Count); err != nil {
			return nil, err
		}
		list = append(list, t)
	}
	return list, rows.Err()
}

func scanEvent(row pgx.Row) (*Event, error) {
	var e Event
	var visibility string
	if err := row.Scan(&e.ID, &e.GroupID, &e.Name, &e.Description, &e.Location, &visibility, &e.OwnerID, &e.StartsAt, &e.EndsAt, &e.CreatedAt, &e.UpdatedAt); err != nil {
		return nil, err
	}
	e.Visibility = authz.Visibility(visibility)
	return &e, nil
}

func scanParticipation(row pgx.Row) (*Participation, error) {
	var p Participation
	var status string
	if err := row.Scan(&p.ID, &p.EventID, &p.UserID, &status, &p.RoleID, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	p.Status = authz.ParticipantStatus(status)
	return &p, nil
}

func scanAgendaItem(row pgx.Row) (*AgendaItem, error) {
	var a AgendaItem
	if err := row.Scan(&a.ID, &a.EventID, &a.Title, &a.Description, &a.Position, &a.StartsAt, &a.EndsAt, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return nil, err
	}
	return &a, nil
}

func scanSpeaker(row pgx.Row) (*Speaker, error) {
	var s Speaker
	if err := row.Scan(&s.ID, &s.EventID, &s.AgendaItemID, &s.UserID, &s.Name, &s.Bio, &s.CreatedAt); err != nil {
		return nil, err
	}
	return &s, nil
}

func scanElection(row pgx.Row) (*Election, error) {
	var e Election
	var state string
	if err := row.Scan(&e.ID, &e.EventID, &e.GroupID, &e.Question, &state, &e.OpensAt, &e.ClosesAt, &e.CreatedAt, &e.UpdatedAt); err != nil {
		return nil, err
	}
	e.State = authz.ElectionState(state)
	return &e, nil
}
