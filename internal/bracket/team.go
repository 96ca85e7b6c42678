package bracket

import (
	"time"

	"github.com/google/uuid"
)

type Team struct {
	ID           uuid.UUID `db:"id" json:"id"`
	TournamentID uuid.UUID `db:"tournament_id" json:"tournament_id"`
	Name         string    `db:"name" json:"name"`
	CaptainID    string    `db:"captain_id" json:"captain_id"`
	MemberCount  int       `db:"member_count" json:"member_count"`
	Wins         int       `db:"wins" json:"wins"`
	Losses       int       `db:"losses" json:"losses"`
	Points       int       `db:"points" json:"points"`
	Eliminated   bool      `db:"eliminated" json:"eliminated"`
	Seed         *int      `db:"seed" json:"seed,omitempty"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

type TeamMember struct {
	TeamID       uuid.UUID `db:"team_id" json:"team_id"`
	TournamentID uuid.UUID `db:"tournament_id" json:"tournament_id"`
	UserID       string    `db:"user_id" json:"user_id"`
	JoinedAt     time.Time `db:"joined_at" json:"joined_at"`
}
