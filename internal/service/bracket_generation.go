package service

import (
	"time"

	"github.com/AdamBeresnev/clanhub/internal/bracket"
	"github.com/google/uuid"
)

// generateMatches turns the layout for the tournament's format into match rows. Teams must be in seed order.
// Round one byes are settled here and their team is moved forward, following further byes.
func generateMatches(t *bracket.Tournament, teams []bracket.Team, now time.Time) ([]bracket.Match, int) {
	var (
		planned []bracket.PlannedMatch
		rounds  int
	)
	if t.Format.Eliminating() {
		planned, rounds = bracket.EliminationLayout(len(teams)), bracket.RoundsFor(len(teams))
	} else {
		planned, rounds = bracket.RoundRobinLayout(len(teams)), bracket.RoundRobinRounds(len(teams))
	}

	matches := make([]bracket.Match, len(planned))
	byPosition := make(map[[2]int]*bracket.Match, len(planned))
	for i, p := range planned {
		matches[i] = bracket.Match{
			ID:           uuid.New(),
			TournamentID: t.ID,
			Round:        p.Round,
			Position:     p.Position,
			TeamAID:      teamAt(teams, p.TeamA),
			TeamBID:      teamAt(teams, p.TeamB),
			State:        bracket.MatchPending,
			IsBye:        p.IsBye,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		byPosition[[2]int{p.Round, p.Position}] = &matches[i]
	}

	if !t.Format.Eliminating() {
		return matches, rounds
	}

	// Layouts are ordered by round, so a bye's team is always placed before the bye is visited
	for i := range matches {
		m := &matches[i]
		if !m.IsBye || m.TeamAID == nil {
			continue
		}
		m.State = bracket.MatchVerified
		m.WinnerID = m.TeamAID
		if m.Round == rounds {
			continue
		}

		nextRound, nextPosition, slot := bracket.NextSlot(m.Round, m.Position)
		next := byPosition[[2]int{nextRound, nextPosition}]
		if slot == bracket.SlotA {
			next.TeamAID = m.TeamAID
		} else {
			next.TeamBID = m.TeamAID
		}
	}
	return matches, rounds
}

func teamAt(teams []bracket.Team, index int) *uuid.UUID {
	if index == bracket.NoTeam {
		return nil
	}
	id := teams[index].ID
	return &id
}
