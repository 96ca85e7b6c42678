package bracket

import (
	"time"

	"github.com/google/uuid"
)

type TournamentState string

const (
	TournamentDraft              TournamentState = "draft"
	TournamentRegistrationOpen   TournamentState = "registration_open"
	TournamentRegistrationClosed TournamentState = "registration_closed"
	TournamentOngoing            TournamentState = "ongoing"
	TournamentFinished           TournamentState = "finished"
	TournamentCancelled          TournamentState = "cancelled"
)

func (s TournamentState) Terminal() bool {
	return s == TournamentFinished || s == TournamentCancelled
}

type Format string

const (
	SingleElimination Format = "single_elimination"
	DoubleElimination Format = "double_elimination"
	RoundRobin        Format = "round_robin"
	// Swiss is accepted at creation so the format can be stored, but no schedule can be generated for it.
	Swiss Format = "swiss"
)

func (f Format) Valid() bool {
	switch f {
	case SingleElimination, DoubleElimination, RoundRobin, Swiss:
		return true
	}
	return false
}

// Eliminating reports whether losers drop out and winners advance through the tree.
func (f Format) Eliminating() bool {
	return f == SingleElimination || f == DoubleElimination
}

// PointsPerWin is credited to the winner of every verified match.
const PointsPerWin = 3

type Tournament struct {
	ID           uuid.UUID       `db:"id" json:"id"`
	OrganizerID  string          `db:"organizer_id" json:"organizer_id"`
	Name         string          `db:"name" json:"name"`
	Format       Format          `db:"format" json:"format"`
	TeamCapacity int             `db:"team_capacity" json:"team_capacity"`
	TeamSize     int             `db:"team_size" json:"team_size"`
	State        TournamentState `db:"state" json:"state"`
	RoundsTotal  int             `db:"rounds_total" json:"rounds_total"`
	CurrentRound int             `db:"current_round" json:"current_round"`
	WinnerTeamID *uuid.UUID      `db:"winner_team_id" json:"winner_team_id,omitempty"`
	CreatedAt    time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time       `db:"updated_at" json:"updated_at"`
}

func (t *Tournament) IsOrganizer(userID string) bool {
	return t.OrganizerID == userID
}
