package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/AdamBeresnev/clanhub/internal/apperr"
	"github.com/AdamBeresnev/clanhub/internal/bracket"
	"github.com/AdamBeresnev/clanhub/internal/jobs"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
)

type TournamentRepository interface {
	CreateTournament(ctx context.Context, t *bracket.Tournament) error
	GetTournament(ctx context.Context, id uuid.UUID) (*bracket.Tournament, error)
	ListTournaments(ctx context.Context, state bracket.TournamentState) ([]bracket.Tournament, error)
	LockTournament(ctx context.Context, id uuid.UUID) error
	TransitionTournament(ctx context.Context, id uuid.UUID, from []bracket.TournamentState, to bracket.TournamentState, now time.Time) error
	StartTournament(ctx context.Context, id uuid.UUID, from []bracket.TournamentState, roundsTotal int, now time.Time) error
	AdvanceRound(ctx context.Context, id uuid.UUID, round int, now time.Time) error
	FinishTournament(ctx context.Context, id uuid.UUID, winnerID *uuid.UUID, now time.Time) error
}

type TeamRepository interface {
	CreateTeam(ctx context.Context, team *bracket.Team) error
	GetTeam(ctx context.Context, id uuid.UUID) (*bracket.Team, error)
	ListTeams(ctx context.Context, tournamentID uuid.UUID) ([]bracket.Team, error)
	CountTeams(ctx context.Context, tournamentID uuid.UUID) (int, error)
	AddMember(ctx context.Context, member *bracket.TeamMember, maxMembers int) error
	RemoveMember(ctx context.Context, teamID uuid.UUID, userID string) error
	ListMembers(ctx context.Context, teamID uuid.UUID) ([]bracket.TeamMember, error)
	CreditResult(ctx context.Context, winnerID, loserID uuid.UUID, eliminateLoser bool) error
}

type MatchRepository interface {
	CreateMatches(ctx context.Context, matches []bracket.Match) error
	GetMatch(ctx context.Context, id uuid.UUID) (*bracket.Match, error)
	GetMatchAt(ctx context.Context, tournamentID uuid.UUID, round, position int) (*bracket.Match, error)
	ListMatches(ctx context.Context, tournamentID uuid.UUID) ([]bracket.Match, error)
	CountOpenMatches(ctx context.Context, tournamentID uuid.UUID, round int) (int, error)
	ReportMatch(ctx context.Context, id uuid.UUID, scoreA, scoreB int, reporter string, now time.Time) error
	VerifyMatch(ctx context.Context, id uuid.UUID, from []bracket.MatchState, winnerID, loserID uuid.UUID, verifier string, now time.Time) error
	ForfeitMatch(ctx context.Context, id uuid.UUID, from []bracket.MatchState, winnerID, loserID uuid.UUID, verifier string, now time.Time) error
	VerifyBye(ctx context.Context, id uuid.UUID, winnerID uuid.UUID, now time.Time) error
	SetMatchState(ctx context.Context, id uuid.UUID, from, to bracket.MatchState, now time.Time) error
	PlaceTeam(ctx context.Context, id uuid.UUID, slot bracket.Slot, teamID uuid.UUID, now time.Time) error
}

type DisputeRepository interface {
	CreateDispute(ctx context.Context, d *bracket.Dispute) error
	GetDispute(ctx context.Context, id uuid.UUID) (*bracket.Dispute, error)
	ListDisputes(ctx context.Context, matchID uuid.UUID) ([]bracket.Dispute, error)
	TransitionDispute(ctx context.Context, id uuid.UUID, from []bracket.DisputeStatus, to bracket.DisputeStatus, resolution *Resolution) error
}

// Resolution is recorded when a dispute reaches a terminal status.
type Resolution struct {
	ResolvedBy string
	Response   *string
	ResolvedAt time.Time
}

type JobRepository interface {
	jobs.Store
	ListJobs(ctx context.Context, tournamentID uuid.UUID) ([]jobs.Job, error)
}

type Repository interface {
	TournamentRepository
	TeamRepository
	MatchRepository
	DisputeRepository
	JobRepository

	// InTx runs fn against a transactional view of the repository. Calls made inside fn commit or roll back
	// together; nested calls reuse the outer transaction.
	InTx(ctx context.Context, fn func(Repository) error) error
}

// SQLStore implements Repository on top of sqlx. Queries are written with ? placeholders and rebound for the driver.
type SQLStore struct {
	db  *sqlx.DB
	ext sqlx.ExtContext
	tx  *sqlx.Tx
}

func New(db *sqlx.DB) *SQLStore {
	return &SQLStore{db: db, ext: db}
}

func (s *SQLStore) InTx(ctx context.Context, fn func(Repository) error) error {
	if s.tx != nil {
		return fn(s)
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(&SQLStore{db: s.db, ext: tx, tx: tx}); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *SQLStore) get(ctx context.Context, dest any, query string, args ...any) error {
	return sqlx.GetContext(ctx, s.ext, dest, s.ext.Rebind(query), args...)
}

func (s *SQLStore) sel(ctx context.Context, dest any, query string, args ...any) error {
	return sqlx.SelectContext(ctx, s.ext, dest, s.ext.Rebind(query), args...)
}

func (s *SQLStore) exec(ctx context.Context, query string, args ...any) (int64, error) {
	query, args, err := sqlx.In(query, args...)
	if err != nil {
		return 0, err
	}
	res, err := s.ext.ExecContext(ctx, s.ext.Rebind(query), args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// casFailed explains why a conditional update touched no row: the row is gone or its state moved on.
func (s *SQLStore) casFailed(ctx context.Context, table, column, what string, id uuid.UUID) error {
	var current string
	err := s.get(ctx, &current, fmt.Sprintf("SELECT %s FROM %s WHERE id = ?", column, table), id)
	if err != nil {
		return translate(err, what)
	}
	return fmt.Errorf("%w: %s is %s", apperr.ErrInvalidState, what, current)
}

// translate maps driver errors onto apperr kinds.
func translate(err error, what string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %s not found", apperr.ErrNotFound, what)
	}
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: %s already exists", apperr.ErrConflict, what)
	}
	return err
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique || sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return false
}
