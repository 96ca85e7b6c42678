package service

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/AdamBeresnev/clanhub/internal/apperr"
	"github.com/AdamBeresnev/clanhub/internal/bracket"
	"github.com/AdamBeresnev/clanhub/internal/jobs"
	"github.com/AdamBeresnev/clanhub/internal/live"
	"github.com/AdamBeresnev/clanhub/internal/store"
	users "github.com/AdamBeresnev/clanhub/internal/user"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

const (
	MaxTournamentNameLength = 100
	MinTeamCapacity         = 2
	MaxTeamCapacity         = 256
	MaxTeamSize             = 16
	MaxReminderLength       = 1000

	// Reminders that could not be sent within this window are dropped.
	reminderGrace = time.Hour
)

type TournamentService struct {
	repo     store.Repository
	notifier *Notifier
}

func NewTournamentService(repo store.Repository, notifier *Notifier) *TournamentService {
	return &TournamentService{repo: repo, notifier: notifier}
}

type CreateTournamentInput struct {
	Name         string         `json:"name"`
	Format       bracket.Format `json:"format"`
	TeamCapacity int            `json:"team_capacity"`
	TeamSize     int            `json:"team_size"`
}

func (s *TournamentService) CreateTournament(ctx context.Context, u users.User, in CreateTournamentInput) (*bracket.Tournament, error) {
	name, err := cleanText("name", in.Name, 1, MaxTournamentNameLength)
	if err != nil {
		return nil, err
	}
	if !in.Format.Valid() {
		return nil, fmt.Errorf("%w: unknown format %q", apperr.ErrValidation, in.Format)
	}
	if in.TeamCapacity < MinTeamCapacity || in.TeamCapacity > MaxTeamCapacity {
		return nil, fmt.Errorf("%w: team capacity must be between %d and %d", apperr.ErrValidation, MinTeamCapacity, MaxTeamCapacity)
	}
	if in.TeamSize < 1 || in.TeamSize > MaxTeamSize {
		return nil, fmt.Errorf("%w: team size must be between 1 and %d", apperr.ErrValidation, MaxTeamSize)
	}

	now := s.notifier.now()
	t := &bracket.Tournament{
		ID:           uuid.New(),
		OrganizerID:  u.ID,
		Name:         name,
		Format:       in.Format,
		TeamCapacity: in.TeamCapacity,
		TeamSize:     in.TeamSize,
		State:        bracket.TournamentDraft,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.repo.CreateTournament(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

func (s *TournamentService) GetTournament(ctx context.Context, id uuid.UUID) (*bracket.Tournament, error) {
	return s.repo.GetTournament(ctx, id)
}

func (s *TournamentService) ListTournaments(ctx context.Context, state bracket.TournamentState) ([]bracket.Tournament, error) {
	return s.repo.ListTournaments(ctx, state)
}

func (s *TournamentService) OpenRegistration(ctx context.Context, u users.User, id uuid.UUID) (*bracket.Tournament, error) {
	return s.transition(ctx, u, id, []bracket.TournamentState{bracket.TournamentDraft}, bracket.TournamentRegistrationOpen)
}

func (s *TournamentService) CloseRegistration(ctx context.Context, u users.User, id uuid.UUID) (*bracket.Tournament, error) {
	return s.transition(ctx, u, id, []bracket.TournamentState{bracket.TournamentRegistrationOpen}, bracket.TournamentRegistrationClosed)
}

func (s *TournamentService) Cancel(ctx context.Context, u users.User, id uuid.UUID) (*bracket.Tournament, error) {
	return s.transition(ctx, u, id, []bracket.TournamentState{
		bracket.TournamentDraft,
		bracket.TournamentRegistrationOpen,
		bracket.TournamentRegistrationClosed,
		bracket.TournamentOngoing,
	}, bracket.TournamentCancelled)
}

func (s *TournamentService) transition(ctx context.Context, u users.User, id uuid.UUID, from []bracket.TournamentState, to bracket.TournamentState) (*bracket.Tournament, error) {
	var updated *bracket.Tournament
	err := s.repo.InTx(ctx, func(r store.Repository) error {
		t, err := r.GetTournament(ctx, id)
		if err != nil {
			return err
		}
		if err := requireOrganizer(u, t); err != nil {
			return err
		}
		if err := r.TransitionTournament(ctx, id, from, to, s.notifier.now()); err != nil {
			return err
		}
		updated, err = r.GetTournament(ctx, id)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.notifier.broadcast(live.EventTournamentUpdated, updated.ID, updated)
	return updated, nil
}

// Start closes registration if needed, lays out every match of the tournament and settles round one byes.
func (s *TournamentService) Start(ctx context.Context, u users.User, id uuid.UUID) (*bracket.Tournament, error) {
	var started *bracket.Tournament
	err := s.repo.InTx(ctx, func(r store.Repository) error {
		t, err := r.GetTournament(ctx, id)
		if err != nil {
			return err
		}
		if err := requireOrganizer(u, t); err != nil {
			return err
		}
		if t.State != bracket.TournamentRegistrationOpen && t.State != bracket.TournamentRegistrationClosed {
			return fmt.Errorf("%w: tournament is %s", apperr.ErrInvalidState, t.State)
		}
		if t.Format == bracket.Swiss {
			return fmt.Errorf("%w: swiss format is not implemented", apperr.ErrValidation)
		}

		teams, err := r.ListTeams(ctx, t.ID)
		if err != nil {
			return err
		}
		if len(teams) < 2 {
			return fmt.Errorf("%w: at least two teams are needed to start", apperr.ErrValidation)
		}

		now := s.notifier.now()
		matches, rounds := generateMatches(t, teams, now)

		from := []bracket.TournamentState{bracket.TournamentRegistrationOpen, bracket.TournamentRegistrationClosed}
		if err := r.StartTournament(ctx, t.ID, from, rounds, now); err != nil {
			return err
		}
		if err := r.CreateMatches(ctx, matches); err != nil {
			return fmt.Errorf("failed to create matches: %w", err)
		}
		t.State, t.RoundsTotal, t.CurrentRound = bracket.TournamentOngoing, rounds, 1

		fields := []jobs.Field{
			{Name: "Format", Value: string(t.Format), Inline: true},
			{Name: "Teams", Value: strconv.Itoa(len(teams)), Inline: true},
			{Name: "Rounds", Value: strconv.Itoa(rounds), Inline: true},
		}
		if err := s.notifier.enqueue(ctx, r, jobs.KindTournamentStarted, t.ID, jobs.Announcement{
			Title:  fmt.Sprintf("%s has started", t.Name),
			Body:   "Round 1 is live. Good luck to every team!",
			Fields: fields,
		}); err != nil {
			return err
		}

		started = t
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.notifier.broadcast(live.EventTournamentUpdated, started.ID, started)
	s.notifier.broadcast(live.EventBracketUpdated, started.ID, map[string]any{"current_round": started.CurrentRound})
	return started, nil
}

// ScheduleReminder queues a message for the community channel at runAt.
func (s *TournamentService) ScheduleReminder(ctx context.Context, u users.User, id uuid.UUID, message string, runAt time.Time) (*jobs.Job, error) {
	message, err := cleanText("message", message, 1, MaxReminderLength)
	if err != nil {
		return nil, err
	}

	var job *jobs.Job
	err = s.repo.InTx(ctx, func(r store.Repository) error {
		t, err := r.GetTournament(ctx, id)
		if err != nil {
			return err
		}
		if err := requireOrganizer(u, t); err != nil {
			return err
		}
		if t.State.Terminal() {
			return fmt.Errorf("%w: tournament is %s", apperr.ErrInvalidState, t.State)
		}

		now := s.notifier.now()
		if runAt.IsZero() || runAt.Before(now) {
			runAt = now
		}
		expiresAt := runAt.UTC().Add(reminderGrace)
		job, err = s.notifier.enqueueAt(ctx, r, jobs.KindReminder, t.ID, jobs.Announcement{
			Title: fmt.Sprintf("Reminder: %s", t.Name),
			Body:  message,
		}, runAt, &expiresAt)
		return err
	})
	if err != nil {
		return nil, err
	}
	return job, nil
}

type TeamRef struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
	Seed *int      `json:"seed,omitempty"`
}

type MatchView struct {
	ID       uuid.UUID          `json:"id"`
	Round    int                `json:"round"`
	Position int                `json:"position"`
	TeamA    *TeamRef           `json:"team_a,omitempty"`
	TeamB    *TeamRef           `json:"team_b,omitempty"`
	ScoreA   *int               `json:"score_a,omitempty"`
	ScoreB   *int               `json:"score_b,omitempty"`
	State    bracket.MatchState `json:"state"`
	Winner   *TeamRef           `json:"winner,omitempty"`
	IsBye    bool               `json:"is_bye"`
}

type RoundView struct {
	Round   int         `json:"round"`
	Matches []MatchView `json:"matches"`
}

type BracketView struct {
	Tournament  *bracket.Tournament `json:"tournament"`
	Rounds      []RoundView         `json:"rounds"`
	Limitations []string            `json:"limitations,omitempty"`
}

type StandingsView struct {
	Tournament *bracket.Tournament `json:"tournament"`
	Standings  []bracket.Standing  `json:"standings"`
}

// load fetches the tournament with its teams and, when withMatches is set, its matches.
func (s *TournamentService) load(ctx context.Context, id uuid.UUID, withMatches bool) (*bracket.Tournament, []bracket.Team, []bracket.Match, error) {
	var (
		t       *bracket.Tournament
		teams   []bracket.Team
		matches []bracket.Match
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		t, err = s.repo.GetTournament(gctx, id)
		return err
	})
	g.Go(func() error {
		var err error
		teams, err = s.repo.ListTeams(gctx, id)
		return err
	})
	if withMatches {
		g.Go(func() error {
			var err error
			matches, err = s.repo.ListMatches(gctx, id)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, nil, err
	}
	return t, teams, matches, nil
}

// GetBracket groups the matches by round with team names resolved.
func (s *TournamentService) GetBracket(ctx context.Context, id uuid.UUID) (*BracketView, error) {
	t, teams, matches, err := s.load(ctx, id, true)
	if err != nil {
		return nil, err
	}

	refs := make(map[uuid.UUID]*TeamRef, len(teams))
	for _, team := range teams {
		refs[team.ID] = &TeamRef{ID: team.ID, Name: team.Name, Seed: team.Seed}
	}
	ref := func(id *uuid.UUID) *TeamRef {
		if id == nil {
			return nil
		}
		return refs[*id]
	}

	view := &BracketView{Tournament: t, Rounds: []RoundView{}}
	for _, m := range matches {
		if len(view.Rounds) == 0 || view.Rounds[len(view.Rounds)-1].Round != m.Round {
			view.Rounds = append(view.Rounds, RoundView{Round: m.Round})
		}
		current := &view.Rounds[len(view.Rounds)-1]
		current.Matches = append(current.Matches, MatchView{
			ID:       m.ID,
			Round:    m.Round,
			Position: m.Position,
			TeamA:    ref(m.TeamAID),
			TeamB:    ref(m.TeamBID),
			ScoreA:   m.ScoreA,
			ScoreB:   m.ScoreB,
			State:    m.State,
			Winner:   ref(m.WinnerID),
			IsBye:    m.IsBye,
		})
	}

	switch t.Format {
	case bracket.DoubleElimination:
		view.Limitations = append(view.Limitations, "double elimination is played as single elimination: there is no losers bracket")
	case bracket.Swiss:
		view.Limitations = append(view.Limitations, "swiss pairing is not implemented")
	}
	return view, nil
}

func (s *TournamentService) GetStandings(ctx context.Context, id uuid.UUID) (*StandingsView, error) {
	t, teams, _, err := s.load(ctx, id, false)
	if err != nil {
		return nil, err
	}
	return &StandingsView{Tournament: t, Standings: bracket.Standings(teams)}, nil
}
