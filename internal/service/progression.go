package service

import (
	"context"
	"fmt"
	"strconv"

	"github.com/AdamBeresnev/clanhub/internal/bracket"
	"github.com/AdamBeresnev/clanhub/internal/jobs"
	"github.com/AdamBeresnev/clanhub/internal/store"
	"github.com/google/uuid"
)

// result is a confirmed match outcome about to be applied to standings and the bracket.
type result struct {
	tournament *bracket.Tournament
	match      *bracket.Match
	from       []bracket.MatchState
	winnerID   uuid.UUID
	loserID    uuid.UUID
	by         string
	forfeit    bool
}

// recordResult verifies the match and applies everything that follows from it: team aggregates, advancement
// of the winner, the current round and the end of the tournament. It must run inside a transaction.
func recordResult(ctx context.Context, r store.Repository, n *Notifier, res result) error {
	t, m := res.tournament, res.match
	now := n.now()

	settle := r.VerifyMatch
	if res.forfeit {
		settle = r.ForfeitMatch
	}
	if err := settle(ctx, m.ID, res.from, res.winnerID, res.loserID, res.by, now); err != nil {
		return err
	}
	if res.forfeit {
		m.ScoreA, m.ScoreB = nil, nil
	}
	if err := r.CreditResult(ctx, res.winnerID, res.loserID, t.Format.Eliminating()); err != nil {
		return fmt.Errorf("failed to credit result: %w", err)
	}
	m.State, m.WinnerID, m.LoserID, m.VerifiedBy = bracket.MatchVerified, &res.winnerID, &res.loserID, &res.by

	winner, err := r.GetTeam(ctx, res.winnerID)
	if err != nil {
		return err
	}
	loser, err := r.GetTeam(ctx, res.loserID)
	if err != nil {
		return err
	}
	if err := n.enqueue(ctx, r, jobs.KindMatchResult, t.ID, resultAnnouncement(m, winner, loser, res.forfeit)); err != nil {
		return err
	}

	if t.Format.Eliminating() {
		if m.Round >= t.RoundsTotal {
			return finish(ctx, r, n, t, winner)
		}
		if err := advance(ctx, r, n, t, m.Round, m.Position, res.winnerID); err != nil {
			return err
		}
		return syncRound(ctx, r, n, t)
	}

	if err := syncRound(ctx, r, n, t); err != nil {
		return err
	}
	open, err := r.CountOpenMatches(ctx, t.ID, 0)
	if err != nil || open > 0 {
		return err
	}
	teams, err := r.ListTeams(ctx, t.ID)
	if err != nil {
		return err
	}
	standings := bracket.Standings(teams)
	for i := range teams {
		if teams[i].ID == standings[0].TeamID {
			return finish(ctx, r, n, t, &teams[i])
		}
	}
	return nil
}

// advance places teamID into the next round. A bye waiting there is settled on the spot and the team moves on.
func advance(ctx context.Context, r store.Repository, n *Notifier, t *bracket.Tournament, round, position int, teamID uuid.UUID) error {
	nextRound, nextPosition, slot := bracket.NextSlot(round, position)
	next, err := r.GetMatchAt(ctx, t.ID, nextRound, nextPosition)
	if err != nil {
		return fmt.Errorf("failed to find next match: %w", err)
	}

	now := n.now()
	if err := r.PlaceTeam(ctx, next.ID, slot, teamID, now); err != nil {
		return err
	}

	if next.IsBye {
		if err := r.VerifyBye(ctx, next.ID, teamID, now); err != nil {
			return err
		}
		return advance(ctx, r, n, t, nextRound, nextPosition, teamID)
	}

	if slot == bracket.SlotA {
		next.TeamAID = &teamID
	} else {
		next.TeamBID = &teamID
	}
	if !next.Ready() {
		return nil
	}

	a, b, err := matchTeams(ctx, r, next)
	if err != nil {
		return err
	}
	return n.enqueue(ctx, r, jobs.KindMatchReady, t.ID, jobs.Announcement{
		Title:   fmt.Sprintf("%s vs %s", a.Name, b.Name),
		Body:    fmt.Sprintf("Round %d match is ready. Captains, report the score when you are done.", next.Round),
		MatchID: &next.ID,
	})
}

// syncRound moves current_round past every round whose matches are all verified.
func syncRound(ctx context.Context, r store.Repository, n *Notifier, t *bracket.Tournament) error {
	round := t.CurrentRound
	for round < t.RoundsTotal {
		open, err := r.CountOpenMatches(ctx, t.ID, round)
		if err != nil {
			return err
		}
		if open > 0 {
			break
		}
		round++
	}
	if round <= t.CurrentRound {
		return nil
	}
	if err := r.AdvanceRound(ctx, t.ID, round, n.now()); err != nil {
		return err
	}
	t.CurrentRound = round
	return nil
}

func finish(ctx context.Context, r store.Repository, n *Notifier, t *bracket.Tournament, winner *bracket.Team) error {
	if err := r.FinishTournament(ctx, t.ID, &winner.ID, n.now()); err != nil {
		return err
	}
	t.State, t.WinnerTeamID = bracket.TournamentFinished, &winner.ID

	return n.enqueue(ctx, r, jobs.KindTournamentFinished, t.ID, jobs.Announcement{
		Title: fmt.Sprintf("%s wins %s!", winner.Name, t.Name),
		Body:  fmt.Sprintf("Final record: %d wins, %d losses.", winner.Wins, winner.Losses),
	})
}

func resultAnnouncement(m *bracket.Match, winner, loser *bracket.Team, forfeit bool) jobs.Announcement {
	a := jobs.Announcement{
		MatchID: &m.ID,
		Fields:  []jobs.Field{{Name: "Round", Value: strconv.Itoa(m.Round), Inline: true}},
	}
	if forfeit || m.ScoreA == nil || m.ScoreB == nil {
		a.Title = fmt.Sprintf("%s wins by forfeit", winner.Name)
		a.Body = fmt.Sprintf("%s forfeited their round %d match.", loser.Name, m.Round)
		return a
	}

	winnerScore, loserScore := *m.ScoreA, *m.ScoreB
	if loserScore > winnerScore {
		winnerScore, loserScore = loserScore, winnerScore
	}
	a.Title = fmt.Sprintf("%s %d - %d %s", winner.Name, winnerScore, loserScore, loser.Name)
	a.Body = fmt.Sprintf("%s take round %d.", winner.Name, m.Round)
	return a
}
