package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/AdamBeresnev/clanhub/internal/apperr"
	"github.com/AdamBeresnev/clanhub/internal/bracket"
	"github.com/AdamBeresnev/clanhub/internal/live"
	"github.com/AdamBeresnev/clanhub/internal/store"
	users "github.com/AdamBeresnev/clanhub/internal/user"
	"github.com/google/uuid"
)

const MaxTeamNameLength = 64

type TeamService struct {
	repo     store.Repository
	notifier *Notifier
}

func NewTeamService(repo store.Repository, notifier *Notifier) *TeamService {
	return &TeamService{repo: repo, notifier: notifier}
}

type CreateTeamInput struct {
	Name string `json:"name"`
	Seed *int   `json:"seed,omitempty"`
}

type TeamView struct {
	bracket.Team
	Members []bracket.TeamMember `json:"members"`
}

// CreateTeam registers a team with the caller as captain and first member.
func (s *TeamService) CreateTeam(ctx context.Context, u users.User, tournamentID uuid.UUID, in CreateTeamInput) (*TeamView, error) {
	name, err := cleanText("name", in.Name, 1, MaxTeamNameLength)
	if err != nil {
		return nil, err
	}
	if in.Seed != nil && *in.Seed < 1 {
		return nil, fmt.Errorf("%w: seed must be at least 1", apperr.ErrValidation)
	}

	var view *TeamView
	err = s.repo.InTx(ctx, func(r store.Repository) error {
		if err := r.LockTournament(ctx, tournamentID); err != nil {
			return err
		}
		t, err := r.GetTournament(ctx, tournamentID)
		if err != nil {
			return err
		}
		if in.Seed != nil {
			if err := requireOrganizer(u, t); err != nil {
				return fmt.Errorf("%w: only the organizer can seed teams", apperr.ErrForbidden)
			}
		}
		if err := requireRegistrationOpen(t); err != nil {
			return err
		}

		count, err := r.CountTeams(ctx, t.ID)
		if err != nil {
			return err
		}
		if count >= t.TeamCapacity {
			return fmt.Errorf("%w: tournament is full (%d teams)", apperr.ErrConflict, t.TeamCapacity)
		}

		now := s.notifier.now()
		team := &bracket.Team{
			ID:           uuid.New(),
			TournamentID: t.ID,
			Name:         name,
			CaptainID:    u.ID,
			Seed:         in.Seed,
			CreatedAt:    now,
		}
		if err := r.CreateTeam(ctx, team); err != nil {
			return err
		}

		captain := bracket.TeamMember{TeamID: team.ID, TournamentID: t.ID, UserID: u.ID, JoinedAt: now}
		if err := r.AddMember(ctx, &captain, t.TeamSize); err != nil {
			return err
		}
		team.MemberCount = 1

		view = &TeamView{Team: *team, Members: []bracket.TeamMember{captain}}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.notifier.broadcast(live.EventTournamentUpdated, tournamentID, map[string]any{"team_registered": view.Team})
	return view, nil
}

func (s *TeamService) GetTeam(ctx context.Context, id uuid.UUID) (*TeamView, error) {
	team, err := s.repo.GetTeam(ctx, id)
	if err != nil {
		return nil, err
	}
	members, err := s.repo.ListMembers(ctx, id)
	if err != nil {
		return nil, err
	}
	return &TeamView{Team: *team, Members: members}, nil
}

func (s *TeamService) ListTeams(ctx context.Context, tournamentID uuid.UUID) ([]bracket.Team, error) {
	if _, err := s.repo.GetTournament(ctx, tournamentID); err != nil {
		return nil, err
	}
	return s.repo.ListTeams(ctx, tournamentID)
}

func (s *TeamService) AddMember(ctx context.Context, u users.User, teamID uuid.UUID, userID string) (*TeamView, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, fmt.Errorf("%w: user_id is required", apperr.ErrValidation)
	}

	err := s.repo.InTx(ctx, func(r store.Repository) error {
		team, t, err := loadTeam(ctx, r, teamID)
		if err != nil {
			return err
		}
		if !u.IsAdmin() && team.CaptainID != u.ID {
			return fmt.Errorf("%w: only the captain can add members", apperr.ErrForbidden)
		}
		if err := requireRegistrationOpen(t); err != nil {
			return err
		}
		return r.AddMember(ctx, &bracket.TeamMember{
			TeamID:       team.ID,
			TournamentID: t.ID,
			UserID:       userID,
			JoinedAt:     s.notifier.now(),
		}, t.TeamSize)
	})
	if err != nil {
		return nil, err
	}
	return s.GetTeam(ctx, teamID)
}

// RemoveMember drops a player from the roster. Players may leave on their own; rosters are frozen once play starts.
func (s *TeamService) RemoveMember(ctx context.Context, u users.User, teamID uuid.UUID, userID string) error {
	return s.repo.InTx(ctx, func(r store.Repository) error {
		team, t, err := loadTeam(ctx, r, teamID)
		if err != nil {
			return err
		}
		if !u.IsAdmin() && team.CaptainID != u.ID && u.ID != userID {
			return fmt.Errorf("%w: only the captain can remove other members", apperr.ErrForbidden)
		}
		if userID == team.CaptainID {
			return fmt.Errorf("%w: the captain cannot be removed", apperr.ErrValidation)
		}
		switch t.State {
		case bracket.TournamentOngoing, bracket.TournamentFinished:
			return fmt.Errorf("%w: tournament is %s", apperr.ErrInvalidState, t.State)
		}
		return r.RemoveMember(ctx, team.ID, userID)
	})
}

func loadTeam(ctx context.Context, r store.Repository, id uuid.UUID) (*bracket.Team, *bracket.Tournament, error) {
	team, err := r.GetTeam(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	t, err := r.GetTournament(ctx, team.TournamentID)
	if err != nil {
		return nil, nil, err
	}
	return team, t, nil
}

func requireRegistrationOpen(t *bracket.Tournament) error {
	if t.State != bracket.TournamentRegistrationOpen {
		return fmt.Errorf("%w: registration is not open (tournament is %s)", apperr.ErrInvalidState, t.State)
	}
	return nil
}
