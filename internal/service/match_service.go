package service

import (
	"context"
	"fmt"

	"github.com/AdamBeresnev/clanhub/internal/apperr"
	"github.com/AdamBeresnev/clanhub/internal/bracket"
	"github.com/AdamBeresnev/clanhub/internal/live"
	"github.com/AdamBeresnev/clanhub/internal/store"
	users "github.com/AdamBeresnev/clanhub/internal/user"
	"github.com/google/uuid"
)

type MatchService struct {
	repo     store.Repository
	notifier *Notifier
}

func NewMatchService(repo store.Repository, notifier *Notifier) *MatchService {
	return &MatchService{repo: repo, notifier: notifier}
}

func (s *MatchService) GetMatch(ctx context.Context, id uuid.UUID) (*bracket.Match, error) {
	return s.repo.GetMatch(ctx, id)
}

// Report records the score a captain claims. The first report wins; any later one finds the match already
// reported and fails.
func (s *MatchService) Report(ctx context.Context, u users.User, matchID uuid.UUID, scoreA, scoreB int) (*bracket.Match, error) {
	if scoreA < 0 || scoreB < 0 {
		return nil, fmt.Errorf("%w: scores must not be negative", apperr.ErrValidation)
	}
	if scoreA == scoreB {
		return nil, fmt.Errorf("%w: scores must differ, ties are not allowed", apperr.ErrValidation)
	}

	var reported *bracket.Match
	err := s.repo.InTx(ctx, func(r store.Repository) error {
		m, t, err := loadMatch(ctx, r, matchID)
		if err != nil {
			return err
		}
		if err := requireOngoing(t); err != nil {
			return err
		}
		if !m.Ready() {
			return fmt.Errorf("%w: match does not have two teams yet", apperr.ErrInvalidState)
		}

		a, b, err := matchTeams(ctx, r, m)
		if err != nil {
			return err
		}
		if !u.IsAdmin() && u.ID != a.CaptainID && u.ID != b.CaptainID {
			return fmt.Errorf("%w: only a captain of either team can report the score", apperr.ErrForbidden)
		}

		if err := r.ReportMatch(ctx, m.ID, scoreA, scoreB, u.ID, s.notifier.now()); err != nil {
			return err
		}
		reported, err = r.GetMatch(ctx, m.ID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.notifier.broadcast(live.EventMatchUpdated, reported.TournamentID, reported)
	return reported, nil
}

// Verify confirms a reported score. The reporter cannot confirm their own report unless they are an admin.
func (s *MatchService) Verify(ctx context.Context, u users.User, matchID uuid.UUID) (*bracket.Match, error) {
	var verified *bracket.Match
	var tournament *bracket.Tournament
	err := s.repo.InTx(ctx, func(r store.Repository) error {
		m, t, err := loadMatch(ctx, r, matchID)
		if err != nil {
			return err
		}
		if m.State != bracket.MatchReported {
			return fmt.Errorf("%w: match is %s, only reported matches can be verified", apperr.ErrInvalidState, m.State)
		}
		if err := requireOngoing(t); err != nil {
			return err
		}

		if !u.IsAdmin() {
			if m.ReportedBy != nil && *m.ReportedBy == u.ID {
				return fmt.Errorf("%w: the reporter cannot verify their own report", apperr.ErrForbidden)
			}
			a, b, err := matchTeams(ctx, r, m)
			if err != nil {
				return err
			}
			if !t.IsOrganizer(u.ID) && u.ID != a.CaptainID && u.ID != b.CaptainID {
				return fmt.Errorf("%w: only the opposing captain or the organizer can verify", apperr.ErrForbidden)
			}
		}

		winnerID, loserID, ok := m.Outcome()
		if !ok {
			return fmt.Errorf("%w: reported score has no winner", apperr.ErrInvalidState)
		}
		err = recordResult(ctx, r, s.notifier, result{
			tournament: t,
			match:      m,
			from:       []bracket.MatchState{bracket.MatchReported},
			winnerID:   winnerID,
			loserID:    loserID,
			by:         u.ID,
		})
		if err != nil {
			return err
		}
		verified, tournament = m, t
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.notifier.broadcastResult(tournament, verified)
	return verified, nil
}

// Forfeit settles a match for winnerTeamID without a score. Only the organizer or an admin can forfeit.
func (s *MatchService) Forfeit(ctx context.Context, u users.User, matchID, winnerTeamID uuid.UUID) (*bracket.Match, error) {
	var forfeited *bracket.Match
	var tournament *bracket.Tournament
	err := s.repo.InTx(ctx, func(r store.Repository) error {
		m, t, err := loadMatch(ctx, r, matchID)
		if err != nil {
			return err
		}
		if err := requireOrganizer(u, t); err != nil {
			return err
		}
		if err := requireOngoing(t); err != nil {
			return err
		}
		if m.State != bracket.MatchPending && m.State != bracket.MatchReported {
			return fmt.Errorf("%w: match is %s", apperr.ErrInvalidState, m.State)
		}
		if !m.Ready() {
			return fmt.Errorf("%w: match does not have two teams yet", apperr.ErrInvalidState)
		}
		if !m.HasTeam(winnerTeamID) {
			return fmt.Errorf("%w: winner must be one of the two teams of the match", apperr.ErrValidation)
		}

		err = recordResult(ctx, r, s.notifier, result{
			tournament: t,
			match:      m,
			from:       []bracket.MatchState{bracket.MatchPending, bracket.MatchReported},
			winnerID:   winnerTeamID,
			loserID:    *m.Opponent(winnerTeamID),
			by:         u.ID,
			forfeit:    true,
		})
		if err != nil {
			return err
		}
		forfeited, tournament = m, t
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.notifier.broadcastResult(tournament, forfeited)
	return forfeited, nil
}

func loadMatch(ctx context.Context, r store.Repository, matchID uuid.UUID) (*bracket.Match, *bracket.Tournament, error) {
	m, err := r.GetMatch(ctx, matchID)
	if err != nil {
		return nil, nil, err
	}
	t, err := r.GetTournament(ctx, m.TournamentID)
	if err != nil {
		return nil, nil, err
	}
	return m, t, nil
}
