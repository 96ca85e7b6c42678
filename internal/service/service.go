package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/AdamBeresnev/clanhub/internal/apperr"
	"github.com/AdamBeresnev/clanhub/internal/bracket"
	"github.com/AdamBeresnev/clanhub/internal/jobs"
	"github.com/AdamBeresnev/clanhub/internal/live"
	"github.com/AdamBeresnev/clanhub/internal/store"
	users "github.com/AdamBeresnev/clanhub/internal/user"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

// Broadcaster pushes events to clients watching a tournament live.
type Broadcaster interface {
	Broadcast(event live.Event)
}

// Notifier queues announcements inside the caller's transaction and broadcasts live events after commit.
type Notifier struct {
	broadcaster Broadcaster
	clock       clockwork.Clock
	logger      *slog.Logger
	maxAttempts int
}

func NewNotifier(broadcaster Broadcaster, clock clockwork.Clock, logger *slog.Logger, maxAttempts int) *Notifier {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Notifier{broadcaster: broadcaster, clock: clock, logger: logger, maxAttempts: maxAttempts}
}

func (n *Notifier) now() time.Time {
	return n.clock.Now().UTC()
}

func (n *Notifier) enqueue(ctx context.Context, r store.Repository, kind jobs.Kind, tournamentID uuid.UUID, a jobs.Announcement) error {
	_, err := n.enqueueAt(ctx, r, kind, tournamentID, a, n.now(), nil)
	return err
}

func (n *Notifier) enqueueAt(ctx context.Context, r store.Repository, kind jobs.Kind, tournamentID uuid.UUID, a jobs.Announcement, runAt time.Time, expiresAt *time.Time) (*jobs.Job, error) {
	job, err := jobs.New(kind, &tournamentID, a, n.now(), runAt, n.maxAttempts)
	if err != nil {
		return nil, err
	}
	job.ExpiresAt = expiresAt
	if err := r.EnqueueJob(ctx, job); err != nil {
		return nil, fmt.Errorf("failed to enqueue %s announcement: %w", kind, err)
	}
	n.logger.Debug("announcement queued", "kind", kind, "job_id", job.ID, "tournament_id", tournamentID)
	return job, nil
}

func (n *Notifier) broadcast(eventType live.EventType, tournamentID uuid.UUID, payload any) {
	if n.broadcaster == nil {
		return
	}
	n.broadcaster.Broadcast(live.Event{Type: eventType, TournamentID: tournamentID, Payload: payload})
}

func requireOrganizer(u users.User, t *bracket.Tournament) error {
	if u.IsAdmin() || t.IsOrganizer(u.ID) {
		return nil
	}
	return fmt.Errorf("%w: only the organizer or an admin can do this", apperr.ErrForbidden)
}

func requireOngoing(t *bracket.Tournament) error {
	if t.State != bracket.TournamentOngoing {
		return fmt.Errorf("%w: tournament is %s", apperr.ErrInvalidState, t.State)
	}
	return nil
}

// cleanText trims s and checks its length in characters.
func cleanText(field, s string, minLen, maxLen int) (string, error) {
	s = strings.TrimSpace(s)
	n := utf8.RuneCountInString(s)
	if n < minLen {
		if minLen == 1 {
			return "", fmt.Errorf("%w: %s is required", apperr.ErrValidation, field)
		}
		return "", fmt.Errorf("%w: %s must be at least %d characters", apperr.ErrValidation, field, minLen)
	}
	if n > maxLen {
		return "", fmt.Errorf("%w: %s must be at most %d characters", apperr.ErrValidation, field, maxLen)
	}
	return s, nil
}

// matchTeams loads both sides of a match. Missing sides come back nil.
func matchTeams(ctx context.Context, r store.TeamRepository, m *bracket.Match) (a, b *bracket.Team, err error) {
	if m.TeamAID != nil {
		if a, err = r.GetTeam(ctx, *m.TeamAID); err != nil {
			return nil, nil, err
		}
	}
	if m.TeamBID != nil {
		if b, err = r.GetTeam(ctx, *m.TeamBID); err != nil {
			return nil, nil, err
		}
	}
	return a, b, nil
}

func teamName(t *bracket.Team) string {
	if t == nil {
		return "TBD"
	}
	return t.Name
}

// broadcastResult tells live clients about a settled match and the bracket changes it caused.
func (n *Notifier) broadcastResult(t *bracket.Tournament, m *bracket.Match) {
	n.broadcast(live.EventMatchUpdated, t.ID, m)
	n.broadcast(live.EventBracketUpdated, t.ID, map[string]any{"current_round": t.CurrentRound})
	if t.State == bracket.TournamentFinished {
		n.broadcast(live.EventTournamentUpdated, t.ID, t)
	}
}
