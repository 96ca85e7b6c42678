package bracket

import (
	"time"

	"github.com/google/uuid"
)

type MatchState string

const (
	MatchPending  MatchState = "pending"
	MatchReported MatchState = "reported"
	MatchDisputed MatchState = "disputed"
	MatchVerified MatchState = "verified"
)

// Slot identifies one of the two team places of a match.
type Slot string

const (
	SlotA Slot = "a"
	SlotB Slot = "b"
)

type Match struct {
	ID           uuid.UUID `db:"id" json:"id"`
	TournamentID uuid.UUID `db:"tournament_id" json:"tournament_id"`

	// Position in the tournament for reconstructing the view
	Round    int `db:"round" json:"round"`
	Position int `db:"position" json:"position"`

	TeamAID *uuid.UUID `db:"team_a_id" json:"team_a_id,omitempty"`
	TeamBID *uuid.UUID `db:"team_b_id" json:"team_b_id,omitempty"`

	WinnerID *uuid.UUID `db:"winner_id" json:"winner_id,omitempty"`
	LoserID  *uuid.UUID `db:"loser_id" json:"loser_id,omitempty"`

	ScoreA *int       `db:"score_a" json:"score_a,omitempty"`
	ScoreB *int       `db:"score_b" json:"score_b,omitempty"`
	State  MatchState `db:"state" json:"state"`

	ReportedBy *string `db:"reported_by" json:"reported_by,omitempty"`
	VerifiedBy *string `db:"verified_by" json:"verified_by,omitempty"`

	// A bye has only one team and never gets a second one.
	IsBye bool `db:"is_bye" json:"is_bye"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

func (m *Match) HasTeam(teamID uuid.UUID) bool {
	return (m.TeamAID != nil && *m.TeamAID == teamID) || (m.TeamBID != nil && *m.TeamBID == teamID)
}

func (m *Match) Ready() bool {
	return m.TeamAID != nil && m.TeamBID != nil
}

// Opponent returns the other team of the match, or nil when teamID is not playing or has no opponent yet.
func (m *Match) Opponent(teamID uuid.UUID) *uuid.UUID {
	switch {
	case m.TeamAID != nil && *m.TeamAID == teamID:
		return m.TeamBID
	case m.TeamBID != nil && *m.TeamBID == teamID:
		return m.TeamAID
	}
	return nil
}

// Outcome derives winner and loser from the reported scores. Both scores must be set and differ.
func (m *Match) Outcome() (winner, loser uuid.UUID, ok bool) {
	if m.ScoreA == nil || m.ScoreB == nil || m.TeamAID == nil || m.TeamBID == nil || *m.ScoreA == *m.ScoreB {
		return uuid.Nil, uuid.Nil, false
	}
	if *m.ScoreA > *m.ScoreB {
		return *m.TeamAID, *m.TeamBID, true
	}
	return *m.TeamBID, *m.TeamAID, true
}

// NextSlot is where the winner of the match at (round, position) lands in an elimination tree.
func NextSlot(round, position int) (nextRound, nextPosition int, slot Slot) {
	slot = SlotA
	if position%2 == 1 {
		slot = SlotB
	}
	return round + 1, position / 2, slot
}
