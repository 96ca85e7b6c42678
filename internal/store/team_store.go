package store

import (
	"context"
	"fmt"

	"github.com/AdamBeresnev/clanhub/internal/apperr"
	"github.com/AdamBeresnev/clanhub/internal/bracket"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

func (s *SQLStore) CreateTeam(ctx context.Context, team *bracket.Team) error {
	_, err := sqlx.NamedExecContext(ctx, s.ext, `INSERT INTO teams (id, tournament_id, name, captain_id, member_count, wins, losses, points, eliminated, seed, created_at)
		VALUES (:id, :tournament_id, :name, :captain_id, :member_count, :wins, :losses, :points, :eliminated, :seed, :created_at)`, team)
	return translate(err, "team")
}

func (s *SQLStore) GetTeam(ctx context.Context, id uuid.UUID) (*bracket.Team, error) {
	var team bracket.Team
	if err := s.get(ctx, &team, "SELECT * FROM teams WHERE id = ?", id); err != nil {
		return nil, translate(err, "team")
	}
	return &team, nil
}

// ListTeams returns teams in seeding order: seeded teams by seed, then unseeded teams by registration.
func (s *SQLStore) ListTeams(ctx context.Context, tournamentID uuid.UUID) ([]bracket.Team, error) {
	teams := []bracket.Team{}
	err := s.sel(ctx, &teams, "SELECT * FROM teams WHERE tournament_id = ? ORDER BY seed IS NULL, seed, created_at, id", tournamentID)
	return teams, err
}

func (s *SQLStore) CountTeams(ctx context.Context, tournamentID uuid.UUID) (int, error) {
	var count int
	err := s.get(ctx, &count, "SELECT COUNT(*) FROM teams WHERE tournament_id = ?", tournamentID)
	return count, err
}

// AddMember bumps the team's member_count while it is below maxMembers and inserts the membership. Run it inside InTx.
func (s *SQLStore) AddMember(ctx context.Context, member *bracket.TeamMember, maxMembers int) error {
	n, err := s.exec(ctx, "UPDATE teams SET member_count = member_count + 1 WHERE id = ? AND member_count < ?", member.TeamID, maxMembers)
	if err != nil {
		return err
	}
	if n == 0 {
		if _, err := s.GetTeam(ctx, member.TeamID); err != nil {
			return err
		}
		return fmt.Errorf("%w: team is full (%d members)", apperr.ErrConflict, maxMembers)
	}

	_, err = sqlx.NamedExecContext(ctx, s.ext, `INSERT INTO team_members (team_id, tournament_id, user_id, joined_at)
		VALUES (:team_id, :tournament_id, :user_id, :joined_at)`, member)
	return translate(err, "membership")
}

// RemoveMember deletes the membership and decrements member_count. Run it inside InTx.
func (s *SQLStore) RemoveMember(ctx context.Context, teamID uuid.UUID, userID string) error {
	n, err := s.exec(ctx, "DELETE FROM team_members WHERE team_id = ? AND user_id = ?", teamID, userID)
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: membership not found", apperr.ErrNotFound)
	}
	_, err = s.exec(ctx, "UPDATE teams SET member_count = member_count - 1 WHERE id = ?", teamID)
	return err
}

func (s *SQLStore) ListMembers(ctx context.Context, teamID uuid.UUID) ([]bracket.TeamMember, error) {
	members := []bracket.TeamMember{}
	err := s.sel(ctx, &members, "SELECT * FROM team_members WHERE team_id = ? ORDER BY joined_at, user_id", teamID)
	return members, err
}

// CreditResult applies a verified result to both teams with in-place increments.
func (s *SQLStore) CreditResult(ctx context.Context, winnerID, loserID uuid.UUID, eliminateLoser bool) error {
	if _, err := s.exec(ctx, "UPDATE teams SET wins = wins + 1, points = points + ? WHERE id = ?", bracket.PointsPerWin, winnerID); err != nil {
		return err
	}
	query := "UPDATE teams SET losses = losses + 1 WHERE id = ?"
	if eliminateLoser {
		query = "UPDATE teams SET losses = losses + 1, eliminated = TRUE WHERE id = ?"
	}
	_, err := s.exec(ctx, query, loserID)
	return err
}
