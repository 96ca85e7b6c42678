package service

import (
	"context"
	"fmt"

	"github.com/AdamBeresnev/clanhub/internal/apperr"
	"github.com/AdamBeresnev/clanhub/internal/bracket"
	"github.com/AdamBeresnev/clanhub/internal/jobs"
	"github.com/AdamBeresnev/clanhub/internal/live"
	"github.com/AdamBeresnev/clanhub/internal/store"
	users "github.com/AdamBeresnev/clanhub/internal/user"
	"github.com/AdamBeresnev/clanhub/internal/utils"
	"github.com/google/uuid"
)

type DisputeService struct {
	repo     store.Repository
	notifier *Notifier
}

func NewDisputeService(repo store.Repository, notifier *Notifier) *DisputeService {
	return &DisputeService{repo: repo, notifier: notifier}
}

func (s *DisputeService) ListDisputes(ctx context.Context, matchID uuid.UUID) ([]bracket.Dispute, error) {
	if _, err := s.repo.GetMatch(ctx, matchID); err != nil {
		return nil, err
	}
	return s.repo.ListDisputes(ctx, matchID)
}

func (s *DisputeService) GetDispute(ctx context.Context, id uuid.UUID) (*bracket.Dispute, error) {
	return s.repo.GetDispute(ctx, id)
}

// Create contests a reported score. The filer must captain one of the two teams and must not be the reporter.
func (s *DisputeService) Create(ctx context.Context, u users.User, matchID uuid.UUID, reason string) (*bracket.Dispute, error) {
	reason, err := cleanText("reason", reason, 1, bracket.MaxDisputeReasonLength)
	if err != nil {
		return nil, err
	}

	var dispute *bracket.Dispute
	err = s.repo.InTx(ctx, func(r store.Repository) error {
		m, t, err := loadMatch(ctx, r, matchID)
		if err != nil {
			return err
		}
		if err := requireOngoing(t); err != nil {
			return err
		}

		existing, err := r.ListDisputes(ctx, m.ID)
		if err != nil {
			return err
		}
		for _, d := range existing {
			if d.Status.Active() {
				return fmt.Errorf("%w: match already has an active dispute", apperr.ErrConflict)
			}
		}

		if m.State != bracket.MatchReported {
			return fmt.Errorf("%w: match is %s, only reported matches can be disputed", apperr.ErrInvalidState, m.State)
		}

		a, b, err := matchTeams(ctx, r, m)
		if err != nil {
			return err
		}
		if u.ID != a.CaptainID && u.ID != b.CaptainID {
			return fmt.Errorf("%w: only a captain of either team can dispute the score", apperr.ErrForbidden)
		}
		if m.ReportedBy != nil && *m.ReportedBy == u.ID {
			return fmt.Errorf("%w: the reporter cannot dispute their own report", apperr.ErrForbidden)
		}

		now := s.notifier.now()
		dispute = &bracket.Dispute{
			ID:        uuid.New(),
			MatchID:   m.ID,
			FiledBy:   u.ID,
			Reason:    reason,
			Status:    bracket.DisputeOpen,
			CreatedAt: now,
		}
		if err := r.CreateDispute(ctx, dispute); err != nil {
			return err
		}
		if err := r.SetMatchState(ctx, m.ID, bracket.MatchReported, bracket.MatchDisputed, now); err != nil {
			return err
		}

		return s.notifier.enqueue(ctx, r, jobs.KindDisputeOpened, t.ID, jobs.Announcement{
			Title:   fmt.Sprintf("Score of %s vs %s disputed", a.Name, b.Name),
			Body:    reason,
			MatchID: &m.ID,
		})
	})
	if err != nil {
		return nil, err
	}

	m, err := s.repo.GetMatch(ctx, matchID)
	if err == nil {
		s.notifier.broadcast(live.EventDisputeUpdated, m.TournamentID, dispute)
		s.notifier.broadcast(live.EventMatchUpdated, m.TournamentID, m)
	}
	return dispute, nil
}

func (s *DisputeService) SetUnderReview(ctx context.Context, u users.User, disputeID uuid.UUID) (*bracket.Dispute, error) {
	var reviewed *bracket.Dispute
	var tournamentID uuid.UUID
	err := s.repo.InTx(ctx, func(r store.Repository) error {
		d, _, t, err := loadDispute(ctx, r, disputeID)
		if err != nil {
			return err
		}
		if err := requireOrganizer(u, t); err != nil {
			return err
		}
		if err := r.TransitionDispute(ctx, d.ID, []bracket.DisputeStatus{bracket.DisputeOpen}, bracket.DisputeUnderReview, nil); err != nil {
			return err
		}
		d.Status = bracket.DisputeUnderReview
		reviewed, tournamentID = d, t.ID
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.notifier.broadcast(live.EventDisputeUpdated, tournamentID, reviewed)
	return reviewed, nil
}

// Resolve closes a dispute. Approving it reopens the match as reported so the score can be confirmed again.
// Rejecting it confirms the reported score as it stands. Once the tournament is no longer ongoing the dispute
// is only closed and the match is left as it is.
func (s *DisputeService) Resolve(ctx context.Context, u users.User, disputeID uuid.UUID, approve bool, response string) (*bracket.Dispute, error) {
	response, err := cleanText("response", response, 0, bracket.MaxDisputeResponseLength)
	if err != nil {
		return nil, err
	}

	var resolved *bracket.Dispute
	var match *bracket.Match
	var tournament *bracket.Tournament
	var matchChanged bool
	err = s.repo.InTx(ctx, func(r store.Repository) error {
		d, m, t, err := loadDispute(ctx, r, disputeID)
		if err != nil {
			return err
		}
		if err := requireOrganizer(u, t); err != nil {
			return err
		}

		now := s.notifier.now()
		status := bracket.DisputeRejected
		if approve {
			status = bracket.DisputeResolved
		}
		resolution := &store.Resolution{ResolvedBy: u.ID, Response: utils.StringOrNil(response), ResolvedAt: now}
		active := []bracket.DisputeStatus{bracket.DisputeOpen, bracket.DisputeUnderReview}
		if err := r.TransitionDispute(ctx, d.ID, active, status, resolution); err != nil {
			return err
		}
		d.Status, d.ResolvedBy, d.Response, d.ResolvedAt = status, &resolution.ResolvedBy, resolution.Response, &resolution.ResolvedAt

		resolved, match, tournament = d, m, t
		switch {
		case t.State != bracket.TournamentOngoing:
			return nil
		case approve:
			if err := r.SetMatchState(ctx, m.ID, bracket.MatchDisputed, bracket.MatchReported, now); err != nil {
				return err
			}
			m.State = bracket.MatchReported
		default:
			winnerID, loserID, ok := m.Outcome()
			if !ok {
				return fmt.Errorf("%w: disputed score has no winner", apperr.ErrInvalidState)
			}
			err := recordResult(ctx, r, s.notifier, result{
				tournament: t,
				match:      m,
				from:       []bracket.MatchState{bracket.MatchDisputed},
				winnerID:   winnerID,
				loserID:    loserID,
				by:         u.ID,
			})
			if err != nil {
				return err
			}
		}
		matchChanged = true
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.notifier.broadcast(live.EventDisputeUpdated, tournament.ID, resolved)
	switch {
	case matchChanged && approve:
		s.notifier.broadcast(live.EventMatchUpdated, tournament.ID, match)
	case matchChanged:
		s.notifier.broadcastResult(tournament, match)
	}
	return resolved, nil
}

func loadDispute(ctx context.Context, r store.Repository, disputeID uuid.UUID) (*bracket.Dispute, *bracket.Match, *bracket.Tournament, error) {
	d, err := r.GetDispute(ctx, disputeID)
	if err != nil {
		return nil, nil, nil, err
	}
	m, t, err := loadMatch(ctx, r, d.MatchID)
	if err != nil {
		return nil, nil, nil, err
	}
	return d, m, t, nil
}
