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

// Keeps a batch insert under SQLite's bound parameter limit.
const matchInsertBatch = 50

func (s *SQLStore) CreateMatches(ctx context.Context, matches []bracket.Match) error {
	for start := 0; start < len(matches); start += matchInsertBatch {
		end := min(start+matchInsertBatch, len(matches))
		_, err := sqlx.NamedExecContext(ctx, s.ext, `INSERT INTO matches (id, tournament_id, round, position, team_a_id, team_b_id, winner_id, loser_id, score_a, score_b, state, reported_by, verified_by, is_bye, created_at, updated_at)
			VALUES (:id, :tournament_id, :round, :position, :team_a_id, :team_b_id, :winner_id, :loser_id, :score_a, :score_b, :state, :reported_by, :verified_by, :is_bye, :created_at, :updated_at)`, matches[start:end])
		if err != nil {
			return translate(err, "match")
		}
	}
	return nil
}

func (s *SQLStore) GetMatch(ctx context.Context, id uuid.UUID) (*bracket.Match, error) {
	var m bracket.Match
	if err := s.get(ctx, &m, "SELECT * FROM matches WHERE id = ?", id); err != nil {
		return nil, translate(err, "match")
	}
	return &m, nil
}

func (s *SQLStore) GetMatchAt(ctx context.Context, tournamentID uuid.UUID, round, position int) (*bracket.Match, error) {
	var m bracket.Match
	err := s.get(ctx, &m, "SELECT * FROM matches WHERE tournament_id = ? AND round = ? AND position = ?", tournamentID, round, position)
	if err != nil {
		return nil, translate(err, "match")
	}
	return &m, nil
}

func (s *SQLStore) ListMatches(ctx context.Context, tournamentID uuid.UUID) ([]bracket.Match, error) {
	matches := []bracket.Match{}
	err := s.sel(ctx, &matches, "SELECT * FROM matches WHERE tournament_id = ? ORDER BY round ASC, position ASC", tournamentID)
	return matches, err
}

// CountOpenMatches counts matches of a round that are not verified yet. A zero round counts the whole tournament.
func (s *SQLStore) CountOpenMatches(ctx context.Context, tournamentID uuid.UUID, round int) (int, error) {
	var count int
	var err error
	if round == 0 {
		err = s.get(ctx, &count, "SELECT COUNT(*) FROM matches WHERE tournament_id = ? AND state <> ?", tournamentID, bracket.MatchVerified)
	} else {
		err = s.get(ctx, &count, "SELECT COUNT(*) FROM matches WHERE tournament_id = ? AND round = ? AND state <> ?", tournamentID, round, bracket.MatchVerified)
	}
	return count, err
}

func (s *SQLStore) ReportMatch(ctx context.Context, id uuid.UUID, scoreA, scoreB int, reporter string, now time.Time) error {
	n, err := s.exec(ctx, "UPDATE matches SET score_a = ?, score_b = ?, reported_by = ?, state = ?, updated_at = ? WHERE id = ? AND state = ?",
		scoreA, scoreB, reporter, bracket.MatchReported, now, id, bracket.MatchPending)
	if err != nil {
		return err
	}
	if n == 0 {
		return s.casFailed(ctx, "matches", "state", "match", id)
	}
	return nil
}

func (s *SQLStore) VerifyMatch(ctx context.Context, id uuid.UUID, from []bracket.MatchState, winnerID, loserID uuid.UUID, verifier string, now time.Time) error {
	n, err := s.exec(ctx, "UPDATE matches SET winner_id = ?, loser_id = ?, verified_by = ?, state = ?, updated_at = ? WHERE id = ? AND state IN (?)",
		winnerID, loserID, verifier, bracket.MatchVerified, now, id, from)
	if err != nil {
		return err
	}
	if n == 0 {
		return s.casFailed(ctx, "matches", "state", "match", id)
	}
	return nil
}

// ForfeitMatch settles a match for winnerID and drops any reported score.
func (s *SQLStore) ForfeitMatch(ctx context.Context, id uuid.UUID, from []bracket.MatchState, winnerID, loserID uuid.UUID, verifier string, now time.Time) error {
	n, err := s.exec(ctx, `UPDATE matches SET winner_id = ?, loser_id = ?, score_a = NULL, score_b = NULL, verified_by = ?, state = ?, updated_at = ?
		WHERE id = ? AND state IN (?)`,
		winnerID, loserID, verifier, bracket.MatchVerified, now, id, from)
	if err != nil {
		return err
	}
	if n == 0 {
		return s.casFailed(ctx, "matches", "state", "match", id)
	}
	return nil
}

// VerifyBye settles a bye in favour of its single team. There is no loser and nobody to credit.
func (s *SQLStore) VerifyBye(ctx context.Context, id uuid.UUID, winnerID uuid.UUID, now time.Time) error {
	n, err := s.exec(ctx, "UPDATE matches SET winner_id = ?, state = ?, updated_at = ? WHERE id = ? AND state = ? AND is_bye = TRUE",
		winnerID, bracket.MatchVerified, now, id, bracket.MatchPending)
	if err != nil {
		return err
	}
	if n == 0 {
		return s.casFailed(ctx, "matches", "state", "match", id)
	}
	return nil
}

func (s *SQLStore) SetMatchState(ctx context.Context, id uuid.UUID, from, to bracket.MatchState, now time.Time) error {
	n, err := s.exec(ctx, "UPDATE matches SET state = ?, updated_at = ? WHERE id = ? AND state = ?", to, now, id, from)
	if err != nil {
		return err
	}
	if n == 0 {
		return s.casFailed(ctx, "matches", "state", "match", id)
	}
	return nil
}

// PlaceTeam fills an empty slot of a pending match.
func (s *SQLStore) PlaceTeam(ctx context.Context, id uuid.UUID, slot bracket.Slot, teamID uuid.UUID, now time.Time) error {
	column := "team_a_id"
	if slot == bracket.SlotB {
		column = "team_b_id"
	}

	n, err := s.exec(ctx, fmt.Sprintf("UPDATE matches SET %s = ?, updated_at = ? WHERE id = ? AND %s IS NULL AND state = ?", column, column),
		teamID, now, id, bracket.MatchPending)
	if err != nil {
		return err
	}
	if n == 0 {
		if _, err := s.GetMatch(ctx, id); err != nil {
			return err
		}
		return fmt.Errorf("%w: slot %s of match %s is already taken", apperr.ErrConflict, slot, id)
	}
	return nil
}
