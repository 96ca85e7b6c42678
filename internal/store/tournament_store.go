package store

import (
	"context"
	"fmt"
	"time"

	"github.com/AdamBeresnev/clanhub/internal/apperr"
	"github.com/AdamBeresnev/clanhub/internal/bracket"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

func (s *SQLStore) CreateTournament(ctx context.Context, t *bracket.Tournament) error {
	_, err := sqlx.NamedExecContext(ctx, s.ext, `INSERT INTO tournaments (id, organizer_id, name, format, team_capacity, team_size, state, rounds_total, current_round, winner_team_id, created_at, updated_at)
		VALUES (:id, :organizer_id, :name, :format, :team_capacity, :team_size, :state, :rounds_total, :current_round, :winner_team_id, :created_at, :updated_at)`, t)
	return translate(err, "tournament")
}

func (s *SQLStore) GetTournament(ctx context.Context, id uuid.UUID) (*bracket.Tournament, error) {
	var t bracket.Tournament
	if err := s.get(ctx, &t, "SELECT * FROM tournaments WHERE id = ?", id); err != nil {
		return nil, translate(err, "tournament")
	}
	return &t, nil
}

// ListTournaments returns the newest tournaments first. An empty state lists all of them.
func (s *SQLStore) ListTournaments(ctx context.Context, state bracket.TournamentState) ([]bracket.Tournament, error) {
	tournaments := []bracket.Tournament{}
	var err error
	if state == "" {
		err = s.sel(ctx, &tournaments, "SELECT * FROM tournaments ORDER BY created_at DESC")
	} else {
		err = s.sel(ctx, &tournaments, "SELECT * FROM tournaments WHERE state = ? ORDER BY created_at DESC", state)
	}
	return tournaments, err
}

// LockTournament takes the row lock on a tournament for the rest of the transaction.
// Concurrent registrations for the same tournament queue behind it.
func (s *SQLStore) LockTournament(ctx context.Context, id uuid.UUID) error {
	n, err := s.exec(ctx, "UPDATE tournaments SET updated_at = updated_at WHERE id = ?", id)
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: tournament not found", apperr.ErrNotFound)
	}
	return nil
}

func (s *SQLStore) TransitionTournament(ctx context.Context, id uuid.UUID, from []bracket.TournamentState, to bracket.TournamentState, now time.Time) error {
	n, err := s.exec(ctx, "UPDATE tournaments SET state = ?, updated_at = ? WHERE id = ? AND state IN (?)", to, now, id, from)
	if err != nil {
		return err
	}
	if n == 0 {
		return s.casFailed(ctx, "tournaments", "state", "tournament", id)
	}
	return nil
}

func (s *SQLStore) StartTournament(ctx context.Context, id uuid.UUID, from []bracket.TournamentState, roundsTotal int, now time.Time) error {
	n, err := s.exec(ctx, "UPDATE tournaments SET state = ?, rounds_total = ?, current_round = 1, updated_at = ? WHERE id = ? AND state IN (?)",
		bracket.TournamentOngoing, roundsTotal, now, id, from)
	if err != nil {
		return err
	}
	if n == 0 {
		return s.casFailed(ctx, "tournaments", "state", "tournament", id)
	}
	return nil
}

// AdvanceRound moves current_round forward. It never moves backwards, so a stale caller is a no-op.
func (s *SQLStore) AdvanceRound(ctx context.Context, id uuid.UUID, round int, now time.Time) error {
	_, err := s.exec(ctx, "UPDATE tournaments SET current_round = ?, updated_at = ? WHERE id = ? AND current_round < ?", round, now, id, round)
	return err
}

func (s *SQLStore) FinishTournament(ctx context.Context, id uuid.UUID, winnerID *uuid.UUID, now time.Time) error {
	n, err := s.exec(ctx, "UPDATE tournaments SET state = ?, winner_team_id = ?, updated_at = ? WHERE id = ? AND state = ?",
		bracket.TournamentFinished, winnerID, now, id, bracket.TournamentOngoing)
	if err != nil {
		return err
	}
	if n == 0 {
		return s.casFailed(ctx, "tournaments", "state", "tournament", id)
	}
	return nil
}
